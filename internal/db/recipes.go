package db

import (
	"context"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/Rogue-Bear-Innovations/recipebook-back/internal/models"
)

const (
	favoritedExpr  = "EXISTS (SELECT 1 FROM favorites f WHERE f.recipe_id = r.id AND f.user_id = ?)"
	inCartExpr     = "EXISTS (SELECT 1 FROM shopping_cart_items sc WHERE sc.recipe_id = r.id AND sc.user_id = ?)"
	subscribedExpr = "EXISTS (SELECT 1 FROM follows fl WHERE fl.author_id = r.author_id AND fl.user_id = ?)"
)

type recipeRow struct {
	ID              uint64
	AuthorID        uint64
	Name            string
	Image           *string
	Text            string
	CookingTime     int
	CreatedAt       time.Time
	AuthorEmail     string
	AuthorUsername  string
	AuthorFirstName string
	AuthorLastName  string
	IsFavorited     bool
	IsInCart        bool
	IsSubscribed    bool
}

type compositionRow struct {
	RecipeID        uint64
	IngredientID    uint64
	Name            string
	MeasurementUnit string
	Amount          int
}

type recipeTagRow struct {
	RecipeID uint64
	TagID    uint64
	Name     string
	Slug     string
}

func (s *GormStore) CreateRecipe(ctx context.Context, recipe *models.Recipe) error {
	row := Recipe{
		AuthorID:    recipe.AuthorID,
		Name:        recipe.Name,
		Image:       recipe.Image,
		Text:        recipe.Text,
		CookingTime: recipe.CookingTime,
	}
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			return errors.Wrap(err, "insert recipe")
		}
		return writeComposition(tx, row.ID, recipe)
	})
	if err != nil {
		return translateComposition("create recipe", err)
	}

	recipe.ID = row.ID
	recipe.CreatedAt = row.CreatedAt
	return nil
}

func (s *GormStore) ReplaceRecipe(ctx context.Context, recipe *models.Recipe) error {
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Recipe{}).Where("id = ?", recipe.ID).Updates(map[string]interface{}{
			"name":         recipe.Name,
			"image":        recipe.Image,
			"text":         recipe.Text,
			"cooking_time": recipe.CookingTime,
			"updated_at":   time.Now(),
		})
		if res.Error != nil {
			return errors.Wrap(res.Error, "update recipe")
		}
		if res.RowsAffected == 0 {
			return models.ErrRecipeNotFound
		}

		if err := tx.Where("recipe_id = ?", recipe.ID).Delete(&RecipeIngredient{}).Error; err != nil {
			return errors.Wrap(err, "clear ingredients")
		}
		if err := tx.Where("recipe_id = ?", recipe.ID).Delete(&RecipeTag{}).Error; err != nil {
			return errors.Wrap(err, "clear tags")
		}
		return writeComposition(tx, recipe.ID, recipe)
	})
	if errors.Is(err, models.ErrRecipeNotFound) {
		return models.ErrRecipeNotFound
	}
	return translateComposition("replace recipe", err)
}

// writeComposition inserts ingredients and tags in separate statements so a
// unique violation maps to the list that caused it: uidx_recipe_ingredient
// for ingredients, the recipe_tags primary key for tags.
func writeComposition(tx *gorm.DB, recipeID uint64, recipe *models.Recipe) error {
	ingredients := make([]RecipeIngredient, len(recipe.Ingredients))
	ingredientIDs := make([]uint64, len(recipe.Ingredients))
	for i, ing := range recipe.Ingredients {
		ingredients[i] = RecipeIngredient{
			RecipeID:     recipeID,
			IngredientID: ing.ID,
			Amount:       ing.Amount,
		}
		ingredientIDs[i] = ing.ID
	}
	if err := tx.Create(&ingredients).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return models.DuplicateAt(models.DuplicateIngredient, ingredientIDs)
		}
		return errors.Wrap(err, "insert ingredients")
	}

	tags := make([]RecipeTag, len(recipe.Tags))
	tagIDs := make([]uint64, len(recipe.Tags))
	for i, tag := range recipe.Tags {
		tags[i] = RecipeTag{RecipeID: recipeID, TagID: tag.ID}
		tagIDs[i] = tag.ID
	}
	if err := tx.Create(&tags).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return models.DuplicateAt(models.DuplicateTag, tagIDs)
		}
		return errors.Wrap(err, "insert tags")
	}
	return nil
}

func translateComposition(op string, err error) error {
	var ce *models.CompositionError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &ce):
		return ce
	default:
		return models.NewStorageError(op, err)
	}
}

func (s *GormStore) DeleteRecipe(ctx context.Context, id uint64) error {
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		for _, dependent := range []interface{}{
			&RecipeIngredient{}, &RecipeTag{}, &Favorite{}, &ShoppingCartItem{}, &ShortLink{},
		} {
			if err := tx.Where("recipe_id = ?", id).Delete(dependent).Error; err != nil {
				return errors.Wrapf(err, "delete %T", dependent)
			}
		}
		res := tx.Delete(&Recipe{}, id)
		if res.Error != nil {
			return errors.Wrap(res.Error, "delete recipe")
		}
		if res.RowsAffected == 0 {
			return models.ErrRecipeNotFound
		}
		return nil
	})
	if errors.Is(err, models.ErrRecipeNotFound) {
		return models.ErrRecipeNotFound
	}
	return translate("delete recipe", err, models.ErrRecipeNotFound)
}

func (s *GormStore) RecipeSummaryByID(ctx context.Context, id uint64) (models.RecipeSummary, error) {
	row := Recipe{}
	if err := s.conn(ctx).First(&row, id).Error; err != nil {
		return models.RecipeSummary{}, translate("find recipe", err, models.ErrRecipeNotFound)
	}
	return row.summary(), nil
}

func (s *GormStore) RecipeByID(ctx context.Context, viewer models.Viewer, id uint64) (models.AnnotatedRecipe, error) {
	q := annotatedSelect(viewer).Where(squirrel.Eq{"r.id": id})
	recipes, err := s.loadRecipes(ctx, q)
	if err != nil {
		return models.AnnotatedRecipe{}, err
	}
	if len(recipes) == 0 {
		return models.AnnotatedRecipe{}, models.ErrRecipeNotFound
	}
	return recipes[0], nil
}

// ListRecipes runs the page query with flags computed as EXISTS
// sub-queries, a count over the same predicates, then loads compositions
// for the whole page at once.
func (s *GormStore) ListRecipes(ctx context.Context, viewer models.Viewer, filter models.RecipeFilter) (models.Page[models.AnnotatedRecipe], error) {
	page := models.Page[models.AnnotatedRecipe]{Items: []models.AnnotatedRecipe{}}

	where := recipePredicates(viewer, filter)

	countQ := squirrel.Select("COUNT(*)").From("recipes r")
	for _, w := range where {
		countQ = countQ.Where(w)
	}
	sql, args, err := countQ.ToSql()
	if err != nil {
		return page, models.NewStorageError("build count sql", err)
	}
	if err := s.conn(ctx).Raw(sql, args...).Scan(&page.Count).Error; err != nil {
		return page, models.NewStorageError("count recipes", err)
	}
	if page.Count == 0 {
		return page, nil
	}

	q := annotatedSelect(viewer).
		OrderBy("r.created_at DESC", "r.id DESC")
	for _, w := range where {
		q = q.Where(w)
	}
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit)).Offset(uint64(filter.Offset()))
	}

	page.Items, err = s.loadRecipes(ctx, q)
	if err != nil {
		return page, err
	}
	return page, nil
}

func recipePredicates(viewer models.Viewer, filter models.RecipeFilter) []squirrel.Sqlizer {
	where := make([]squirrel.Sqlizer, 0, 4)
	if filter.AuthorID != 0 {
		where = append(where, squirrel.Eq{"r.author_id": filter.AuthorID})
	}
	if len(filter.TagSlugs) > 0 {
		where = append(where, squirrel.Select("1").
			Prefix("EXISTS (").
			From("recipe_tags rt").
			Join("tags t ON t.id = rt.tag_id").
			Where("rt.recipe_id = r.id").
			Where(squirrel.Eq{"t.slug": filter.TagSlugs}).
			Suffix(")"))
	}
	if viewer.Anonymous() {
		return where
	}
	// A false flag filter is not a filter.
	if filter.IsFavorited != nil && *filter.IsFavorited {
		where = append(where, squirrel.Expr(favoritedExpr, viewer.UserID))
	}
	if filter.IsInCart != nil && *filter.IsInCart {
		where = append(where, squirrel.Expr(inCartExpr, viewer.UserID))
	}
	return where
}

// annotatedSelect selects recipe and author columns; per-viewer flags are
// only joined in for authenticated viewers.
func annotatedSelect(viewer models.Viewer) squirrel.SelectBuilder {
	q := squirrel.Select(
		"r.id", "r.author_id", "r.name", "r.image", "r.text", "r.cooking_time", "r.created_at",
		"u.email AS author_email", "u.username AS author_username",
		"u.first_name AS author_first_name", "u.last_name AS author_last_name",
	).
		From("recipes r").
		Join("users u ON u.id = r.author_id")

	if viewer.Anonymous() {
		return q
	}
	return q.
		Column(favoritedExpr+" AS is_favorited", viewer.UserID).
		Column(inCartExpr+" AS is_in_cart", viewer.UserID).
		Column(subscribedExpr+" AS is_subscribed", viewer.UserID)
}

func (s *GormStore) loadRecipes(ctx context.Context, q squirrel.SelectBuilder) ([]models.AnnotatedRecipe, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, models.NewStorageError("build recipes sql", err)
	}

	rows := make([]recipeRow, 0)
	if err := s.conn(ctx).Raw(sql, args...).Scan(&rows).Error; err != nil {
		return nil, models.NewStorageError("scan recipes", err)
	}
	if len(rows) == 0 {
		return []models.AnnotatedRecipe{}, nil
	}

	ids := make([]uint64, len(rows))
	for i := range rows {
		ids[i] = rows[i].ID
	}
	ingredients, err := s.compositions(ctx, ids)
	if err != nil {
		return nil, err
	}
	tags, err := s.recipeTags(ctx, ids)
	if err != nil {
		return nil, err
	}

	res := make([]models.AnnotatedRecipe, len(rows))
	for i, row := range rows {
		res[i] = row.toModel()
		res[i].Ingredients = ingredients[row.ID]
		res[i].Tags = tags[row.ID]
	}
	return res, nil
}

func (s *GormStore) compositions(ctx context.Context, recipeIDs []uint64) (map[uint64][]models.RecipeIngredient, error) {
	sql, args, err := squirrel.
		Select("ri.recipe_id", "i.id AS ingredient_id", "i.name", "i.measurement_unit", "ri.amount").
		From("recipe_ingredients ri").
		Join("ingredients i ON i.id = ri.ingredient_id").
		Where(squirrel.Eq{"ri.recipe_id": recipeIDs}).
		OrderBy("ri.id").
		ToSql()
	if err != nil {
		return nil, models.NewStorageError("build ingredients sql", err)
	}

	rows := make([]compositionRow, 0)
	if err := s.conn(ctx).Raw(sql, args...).Scan(&rows).Error; err != nil {
		return nil, models.NewStorageError("scan ingredients", err)
	}

	res := make(map[uint64][]models.RecipeIngredient, len(recipeIDs))
	for _, row := range rows {
		res[row.RecipeID] = append(res[row.RecipeID], models.RecipeIngredient{
			Ingredient: models.Ingredient{
				ID:              row.IngredientID,
				Name:            row.Name,
				MeasurementUnit: row.MeasurementUnit,
			},
			Amount: row.Amount,
		})
	}
	return res, nil
}

func (s *GormStore) recipeTags(ctx context.Context, recipeIDs []uint64) (map[uint64][]models.Tag, error) {
	sql, args, err := squirrel.
		Select("rt.recipe_id", "t.id AS tag_id", "t.name", "t.slug").
		From("recipe_tags rt").
		Join("tags t ON t.id = rt.tag_id").
		Where(squirrel.Eq{"rt.recipe_id": recipeIDs}).
		OrderBy("t.name").
		ToSql()
	if err != nil {
		return nil, models.NewStorageError("build tags sql", err)
	}

	rows := make([]recipeTagRow, 0)
	if err := s.conn(ctx).Raw(sql, args...).Scan(&rows).Error; err != nil {
		return nil, models.NewStorageError("scan tags", err)
	}

	res := make(map[uint64][]models.Tag, len(recipeIDs))
	for _, row := range rows {
		res[row.RecipeID] = append(res[row.RecipeID], models.Tag{ID: row.TagID, Name: row.Name, Slug: row.Slug})
	}
	return res, nil
}

func (s *GormStore) RecipeSummariesByAuthors(ctx context.Context, authorIDs []uint64) ([]models.RecipeSummary, error) {
	rows := make([]Recipe, 0)
	if len(authorIDs) == 0 {
		return []models.RecipeSummary{}, nil
	}
	err := s.conn(ctx).
		Where("author_id IN ?", authorIDs).
		Order("author_id").Order("created_at DESC").Order("id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, translate("list author recipes", err, models.ErrNotFound)
	}

	res := make([]models.RecipeSummary, len(rows))
	for i := range rows {
		res[i] = rows[i].summary()
	}
	return res, nil
}

func (r Recipe) summary() models.RecipeSummary {
	return models.RecipeSummary{
		ID:          r.ID,
		AuthorID:    r.AuthorID,
		Name:        r.Name,
		Image:       r.Image,
		CookingTime: r.CookingTime,
		CreatedAt:   r.CreatedAt,
	}
}

func (r recipeRow) toModel() models.AnnotatedRecipe {
	return models.AnnotatedRecipe{
		Recipe: models.Recipe{
			ID:          r.ID,
			AuthorID:    r.AuthorID,
			Name:        r.Name,
			Image:       r.Image,
			Text:        r.Text,
			CookingTime: r.CookingTime,
			CreatedAt:   r.CreatedAt,
		},
		Author: models.Author{
			User: models.User{
				ID:        r.AuthorID,
				Email:     r.AuthorEmail,
				Username:  r.AuthorUsername,
				FirstName: r.AuthorFirstName,
				LastName:  r.AuthorLastName,
			},
			IsSubscribed: r.IsSubscribed,
		},
		Flags: models.RecipeFlags{
			IsFavorited: r.IsFavorited,
			IsInCart:    r.IsInCart,
		},
	}
}
