package service

import (
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rogue-Bear-Innovations/recipebook-back/internal/models"
)

func TestToggleTransitions(t *testing.T) {
	for _, kind := range []models.RelationKind{models.RelationFavorite, models.RelationCart} {
		t.Run(kind.String(), func(t *testing.T) {
			e := newEnv(t)
			author := e.user("author")
			fan := e.user("fan")
			recipe := e.recipe(author, e.amount("salt/g", 1))
			toggle := e.memberships.Toggle(kind)
			assert.Equal(t, kind, toggle.Kind())

			summary, err := toggle.Add(e.ctx, fan, recipe.ID)
			require.NoError(t, err)
			assert.Equal(t, recipe.ID, summary.ID)

			_, err = toggle.Add(e.ctx, fan, recipe.ID)
			assert.ErrorIs(t, err, models.ErrAlreadyExists)

			require.NoError(t, toggle.Remove(e.ctx, fan, recipe.ID))
			assert.ErrorIs(t, toggle.Remove(e.ctx, fan, recipe.ID), models.ErrNotFound)

			_, err = toggle.Add(e.ctx, fan, 99999)
			assert.ErrorIs(t, err, models.ErrRecipeNotFound)
			assert.ErrorIs(t, toggle.Remove(e.ctx, fan, 99999), models.ErrRecipeNotFound)
		})
	}
}

func TestTogglesAreIndependent(t *testing.T) {
	e := newEnv(t)
	author := e.user("author")
	fan := e.user("fan")
	recipe := e.recipe(author, e.amount("salt/g", 1))

	_, err := e.memberships.Favorites.Add(e.ctx, fan, recipe.ID)
	require.NoError(t, err)
	_, err = e.memberships.Cart.Add(e.ctx, fan, recipe.ID)
	require.NoError(t, err)

	require.NoError(t, e.memberships.Favorites.Remove(e.ctx, fan, recipe.ID))

	got, err := e.recipes.GetRecipe(e.ctx, models.Viewer{UserID: fan.ID}, recipe.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RecipeFlags{IsInCart: true}, got.Flags)
}

func TestConcurrentAddHasOneWinner(t *testing.T) {
	e := newEnv(t)
	author := e.user("author")
	fan := e.user("fan")
	recipe := e.recipe(author, e.amount("salt/g", 1))

	const workers = 8
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.memberships.Favorites.Add(e.ctx, fan, recipe.ID)
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, models.ErrAlreadyExists)
	}
	assert.Equal(t, 1, ok)
}

func TestShoppingListAggregates(t *testing.T) {
	e := newEnv(t)
	author := e.user("author")
	cook := e.user("cook")

	first := e.recipe(author, e.amount("salt/g", 5))
	second := e.recipe(author, e.amount("pepper/g", 1), e.amount("salt/g", 3))
	third := e.recipe(author, e.amount("salt/pinch", 2))
	e.recipe(author, e.amount("water/ml", 500))

	for _, id := range []uint64{second.ID, first.ID, third.ID} {
		_, err := e.memberships.Cart.Add(e.ctx, cook, id)
		require.NoError(t, err)
	}

	var lines []string
	for line, err := range e.memberships.ShoppingListText(e.ctx, cook) {
		require.NoError(t, err)
		lines = append(lines, line)
	}
	assert.Equal(t, []string{"pepper (1 g)", "salt (8 g)", "salt (2 pinch)"}, lines)

	var totals []models.ShoppingLine
	for line, err := range e.memberships.ShoppingList(e.ctx, cook) {
		require.NoError(t, err)
		totals = append(totals, line)
	}
	assert.True(t, slices.IsSortedFunc(totals, func(a, b models.ShoppingLine) int {
		if a.Name != b.Name {
			if a.Name < b.Name {
				return -1
			}
			return 1
		}
		if a.MeasurementUnit < b.MeasurementUnit {
			return -1
		}
		if a.MeasurementUnit > b.MeasurementUnit {
			return 1
		}
		return 0
	}))
}

func TestShoppingListEmptyAndEarlyStop(t *testing.T) {
	e := newEnv(t)
	author := e.user("author")
	cook := e.user("cook")

	for line, err := range e.memberships.ShoppingListText(e.ctx, cook) {
		t.Fatalf("unexpected line %q (err %v)", line, err)
	}

	recipe := e.recipe(author, e.amount("salt/g", 5), e.amount("pepper/g", 1))
	_, err := e.memberships.Cart.Add(e.ctx, cook, recipe.ID)
	require.NoError(t, err)

	n := 0
	for _, err := range e.memberships.ShoppingListText(e.ctx, cook) {
		require.NoError(t, err)
		n++
		break
	}
	assert.Equal(t, 1, n)
}

func TestDeleteRecipeDropsMemberships(t *testing.T) {
	e := newEnv(t)
	author := e.user("author")
	cook := e.user("cook")
	recipe := e.recipe(author, e.amount("salt/g", 5))

	_, err := e.memberships.Cart.Add(e.ctx, cook, recipe.ID)
	require.NoError(t, err)
	require.NoError(t, e.recipes.DeleteRecipe(e.ctx, author, recipe.ID))

	for line := range e.memberships.ShoppingListText(e.ctx, cook) {
		t.Fatalf("unexpected line %q", line)
	}
}
