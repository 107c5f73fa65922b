package db

import (
	"context"

	"github.com/Rogue-Bear-Innovations/recipebook-back/internal/models"
)

func (s *GormStore) ShortLinkByRecipe(ctx context.Context, recipeID uint64) (models.ShortLink, error) {
	row := ShortLink{}
	if err := s.conn(ctx).Where("recipe_id = ?", recipeID).First(&row).Error; err != nil {
		return models.ShortLink{}, translate("find short link", err, models.ErrNotFound)
	}
	return row.toModel(), nil
}

func (s *GormStore) ShortLinkByCode(ctx context.Context, code string) (models.ShortLink, error) {
	row := ShortLink{}
	if err := s.conn(ctx).Where("short_url = ?", code).First(&row).Error; err != nil {
		return models.ShortLink{}, translate("resolve short link", err, models.ErrNotFound)
	}
	return row.toModel(), nil
}

func (s *GormStore) CreateShortLink(ctx context.Context, link models.ShortLink) error {
	row := ShortLink{
		RecipeID: link.RecipeID,
		ShortURL: link.Code,
		FullURL:  link.FullURL,
	}
	if err := s.conn(ctx).Create(&row).Error; err != nil {
		return translate("create short link", err, models.ErrNotFound)
	}
	return nil
}

func (l ShortLink) toModel() models.ShortLink {
	return models.ShortLink{RecipeID: l.RecipeID, Code: l.ShortURL, FullURL: l.FullURL}
}
