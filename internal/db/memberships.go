package db

import (
	"context"
	"iter"

	"github.com/Masterminds/squirrel"

	"github.com/Rogue-Bear-Innovations/recipebook-back/internal/models"
)

func membershipRow(kind models.RelationKind, userID, recipeID uint64) (interface{}, error) {
	switch kind {
	case models.RelationFavorite:
		return &Favorite{UserID: userID, RecipeID: recipeID}, nil
	case models.RelationCart:
		return &ShoppingCartItem{UserID: userID, RecipeID: recipeID}, nil
	default:
		return nil, models.NewStorageError("membership", errUnknownRelation(kind))
	}
}

type errUnknownRelation models.RelationKind

func (e errUnknownRelation) Error() string {
	return "unknown relation " + models.RelationKind(e).String()
}

func (s *GormStore) AddMembership(ctx context.Context, kind models.RelationKind, userID, recipeID uint64) error {
	row, err := membershipRow(kind, userID, recipeID)
	if err != nil {
		return err
	}
	if err := s.conn(ctx).Create(row).Error; err != nil {
		return translate("add "+kind.String(), err, models.ErrNotFound)
	}
	return nil
}

func (s *GormStore) RemoveMembership(ctx context.Context, kind models.RelationKind, userID, recipeID uint64) error {
	row, err := membershipRow(kind, 0, 0)
	if err != nil {
		return err
	}
	res := s.conn(ctx).Where("user_id = ? AND recipe_id = ?", userID, recipeID).Delete(row)
	if res.Error != nil {
		return translate("remove "+kind.String(), res.Error, models.ErrNotFound)
	}
	if res.RowsAffected == 0 {
		return models.ErrNotFound
	}
	return nil
}

// ShoppingList streams the cart aggregate straight from the result set.
func (s *GormStore) ShoppingList(ctx context.Context, userID uint64) iter.Seq2[models.ShoppingLine, error] {
	return func(yield func(models.ShoppingLine, error) bool) {
		sql, args, err := squirrel.
			Select("i.name", "i.measurement_unit", "SUM(ri.amount) AS total").
			From("shopping_cart_items sc").
			Join("recipe_ingredients ri ON ri.recipe_id = sc.recipe_id").
			Join("ingredients i ON i.id = ri.ingredient_id").
			Where(squirrel.Eq{"sc.user_id": userID}).
			GroupBy("i.name", "i.measurement_unit").
			OrderBy("i.name", "i.measurement_unit").
			ToSql()
		if err != nil {
			yield(models.ShoppingLine{}, models.NewStorageError("build shopping list sql", err))
			return
		}

		rows, err := s.conn(ctx).Raw(sql, args...).Rows()
		if err != nil {
			yield(models.ShoppingLine{}, models.NewStorageError("query shopping list", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			line := models.ShoppingLine{}
			if err := rows.Scan(&line.Name, &line.MeasurementUnit, &line.Total); err != nil {
				yield(models.ShoppingLine{}, models.NewStorageError("scan shopping list", err))
				return
			}
			if !yield(line, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(models.ShoppingLine{}, models.NewStorageError("read shopping list", err))
		}
	}
}
