package db

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Rogue-Bear-Innovations/recipebook-back/internal/models"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (s *GormStore) ListIngredients(ctx context.Context, namePrefix string) ([]models.Ingredient, error) {
	rows := make([]Ingredient, 0)
	q := s.conn(ctx).Order("name").Order("measurement_unit")
	if namePrefix != "" {
		q = q.Where(`LOWER(name) LIKE ? ESCAPE '\'`, likeEscaper.Replace(strings.ToLower(namePrefix))+"%")
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, translate("list ingredients", err, models.ErrNotFound)
	}

	res := make([]models.Ingredient, len(rows))
	for i := range rows {
		res[i] = rows[i].toModel()
	}
	return res, nil
}

func (s *GormStore) IngredientByID(ctx context.Context, id uint64) (models.Ingredient, error) {
	row := Ingredient{}
	if err := s.conn(ctx).First(&row, id).Error; err != nil {
		return models.Ingredient{}, translate("find ingredient", err, models.ErrNotFound)
	}
	return row.toModel(), nil
}

func (s *GormStore) ListTags(ctx context.Context) ([]models.Tag, error) {
	rows := make([]Tag, 0)
	if err := s.conn(ctx).Order("name").Find(&rows).Error; err != nil {
		return nil, translate("list tags", err, models.ErrNotFound)
	}

	res := make([]models.Tag, len(rows))
	for i := range rows {
		res[i] = rows[i].toModel()
	}
	return res, nil
}

func (s *GormStore) TagByID(ctx context.Context, id uint64) (models.Tag, error) {
	row := Tag{}
	if err := s.conn(ctx).First(&row, id).Error; err != nil {
		return models.Tag{}, translate("find tag", err, models.ErrNotFound)
	}
	return row.toModel(), nil
}

func (s *GormStore) ExistingIngredientIDs(ctx context.Context, ids []uint64) (map[uint64]bool, error) {
	return s.existingIDs(ctx, &Ingredient{}, ids)
}

func (s *GormStore) ExistingTagIDs(ctx context.Context, ids []uint64) (map[uint64]bool, error) {
	return s.existingIDs(ctx, &Tag{}, ids)
}

func (s *GormStore) existingIDs(ctx context.Context, model interface{}, ids []uint64) (map[uint64]bool, error) {
	found := make(map[uint64]bool, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	existing := make([]uint64, 0, len(ids))
	if err := s.conn(ctx).Model(model).Where("id IN ?", ids).Pluck("id", &existing).Error; err != nil {
		return nil, translate("check ids", err, models.ErrNotFound)
	}
	for _, id := range existing {
		found[id] = true
	}
	return found, nil
}

func (s *GormStore) ImportCatalog(ctx context.Context, catalog models.Catalog) (int, error) {
	var inserted int64
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if len(catalog.Ingredients) > 0 {
			rows := make([]Ingredient, len(catalog.Ingredients))
			for i, ing := range catalog.Ingredients {
				rows[i] = Ingredient{Name: ing.Name, MeasurementUnit: ing.MeasurementUnit}
			}
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(&rows, 500)
			if res.Error != nil {
				return res.Error
			}
			inserted += res.RowsAffected
		}
		if len(catalog.Tags) > 0 {
			rows := make([]Tag, len(catalog.Tags))
			for i, tag := range catalog.Tags {
				rows[i] = Tag{Name: tag.Name, Slug: tag.Slug}
			}
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(&rows, 500)
			if res.Error != nil {
				return res.Error
			}
			inserted += res.RowsAffected
		}
		return nil
	})
	if err != nil {
		return 0, translate("import catalog", err, models.ErrNotFound)
	}
	return int(inserted), nil
}

func (i Ingredient) toModel() models.Ingredient {
	return models.Ingredient{ID: i.ID, Name: i.Name, MeasurementUnit: i.MeasurementUnit}
}

func (t Tag) toModel() models.Tag {
	return models.Tag{ID: t.ID, Name: t.Name, Slug: t.Slug}
}
