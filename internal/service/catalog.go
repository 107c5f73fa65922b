package service

import (
	"context"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Rogue-Bear-Innovations/recipebook-back/internal/models"
)

// Catalog serves the read-mostly ingredient and tag reference data.
type Catalog struct {
	store  Store
	logger *zap.SugaredLogger
}

func NewCatalog(store Store, l *zap.SugaredLogger) *Catalog {
	return &Catalog{
		store:  store,
		logger: l,
	}
}

// ListIngredients matches namePrefix case-insensitively against the start
// of the ingredient name.
func (s *Catalog) ListIngredients(ctx context.Context, namePrefix string) ([]models.Ingredient, error) {
	return s.store.ListIngredients(ctx, strings.TrimSpace(namePrefix))
}

func (s *Catalog) GetIngredient(ctx context.Context, id uint64) (models.Ingredient, error) {
	return s.store.IngredientByID(ctx, id)
}

func (s *Catalog) ListTags(ctx context.Context) ([]models.Tag, error) {
	return s.store.ListTags(ctx)
}

func (s *Catalog) GetTag(ctx context.Context, id uint64) (models.Tag, error) {
	return s.store.TagByID(ctx, id)
}

// Import loads reference rows, skipping ones already present.
func (s *Catalog) Import(ctx context.Context, catalog models.Catalog) (int, error) {
	for i, ing := range catalog.Ingredients {
		if strings.TrimSpace(ing.Name) == "" || strings.TrimSpace(ing.MeasurementUnit) == "" {
			return 0, &models.ValidationError{Field: "ingredients", Message: "row " + strconv.Itoa(i) + " has an empty name or unit"}
		}
	}
	for i, tag := range catalog.Tags {
		if strings.TrimSpace(tag.Name) == "" || strings.TrimSpace(tag.Slug) == "" {
			return 0, &models.ValidationError{Field: "tags", Message: "row " + strconv.Itoa(i) + " has an empty name or slug"}
		}
	}

	n, err := s.store.ImportCatalog(ctx, catalog)
	if err != nil {
		return 0, errors.Wrap(err, "import catalog")
	}
	s.logger.Infow("catalog imported", "inserted", n,
		"ingredients", len(catalog.Ingredients), "tags", len(catalog.Tags))
	return n, nil
}
