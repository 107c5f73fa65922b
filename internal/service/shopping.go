package service

import (
	"context"
	"iter"

	"github.com/Rogue-Bear-Innovations/recipebook-back/internal/models"
)

// ShoppingList merges the ingredients of every recipe in the user's cart by
// (name, unit). It is recomputed on every call and yields lines ordered by
// name, then unit.
func (m *Memberships) ShoppingList(ctx context.Context, user models.User) iter.Seq2[models.ShoppingLine, error] {
	return m.store.ShoppingList(ctx, user.ID)
}

// ShoppingListText renders ShoppingList as report lines.
func (m *Memberships) ShoppingListText(ctx context.Context, user models.User) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for line, err := range m.ShoppingList(ctx, user) {
			if err != nil {
				yield("", err)
				return
			}
			if !yield(line.String(), nil) {
				return
			}
		}
	}
}
