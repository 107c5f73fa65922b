package service

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Rogue-Bear-Innovations/recipebook-back/internal/models"
)

// Toggle is the Absent/Present state machine of one (user, recipe)
// membership set. Add on Present fails with models.ErrAlreadyExists, Remove
// on Absent with models.ErrNotFound.
type Toggle struct {
	kind   models.RelationKind
	store  Store
	logger *zap.SugaredLogger
}

type Memberships struct {
	Favorites *Toggle
	Cart      *Toggle

	store Store
}

func NewMemberships(store Store, l *zap.SugaredLogger) *Memberships {
	return &Memberships{
		Favorites: &Toggle{kind: models.RelationFavorite, store: store, logger: l},
		Cart:      &Toggle{kind: models.RelationCart, store: store, logger: l},
		store:     store,
	}
}

func (m *Memberships) Toggle(kind models.RelationKind) *Toggle {
	if kind == models.RelationCart {
		return m.Cart
	}
	return m.Favorites
}

func (t *Toggle) Kind() models.RelationKind {
	return t.kind
}

// Add checks the recipe first and then lets the unique key decide between
// concurrent adds of the same pair.
func (t *Toggle) Add(ctx context.Context, user models.User, recipeID uint64) (models.RecipeSummary, error) {
	recipe, err := t.store.RecipeSummaryByID(ctx, recipeID)
	if err != nil {
		return models.RecipeSummary{}, err
	}
	if err := t.store.AddMembership(ctx, t.kind, user.ID, recipeID); err != nil {
		if errors.Is(err, models.ErrAlreadyExists) {
			return models.RecipeSummary{}, models.ErrAlreadyExists
		}
		return models.RecipeSummary{}, errors.Wrapf(err, "add %s", t.kind)
	}
	t.logger.Debugw("membership added", "kind", t.kind.String(), "user_id", user.ID, "recipe_id", recipeID)
	return recipe, nil
}

func (t *Toggle) Remove(ctx context.Context, user models.User, recipeID uint64) error {
	if _, err := t.store.RecipeSummaryByID(ctx, recipeID); err != nil {
		return err
	}
	if err := t.store.RemoveMembership(ctx, t.kind, user.ID, recipeID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		return errors.Wrapf(err, "remove %s", t.kind)
	}
	t.logger.Debugw("membership removed", "kind", t.kind.String(), "user_id", user.ID, "recipe_id", recipeID)
	return nil
}
