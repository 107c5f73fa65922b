package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/Rogue-Bear-Innovations/recipebook-back/internal/config"
	"github.com/Rogue-Bear-Innovations/recipebook-back/internal/db"
	"github.com/Rogue-Bear-Innovations/recipebook-back/internal/models"
)

type env struct {
	t     *testing.T
	ctx   context.Context
	store *db.MemoryStore

	accounts    *Accounts
	recipes     *Recipes
	memberships *Memberships
	follows     *Follows
	links       *ShortLinks

	ingredients map[string]uint64
	tags        map[string]uint64
}

func newEnv(t *testing.T) *env {
	t.Helper()
	l := zap.NewNop().Sugar()
	store := db.NewMemoryStore()
	ctx := context.Background()

	_, err := store.ImportCatalog(ctx, models.Catalog{
		Ingredients: []models.Ingredient{
			{Name: "salt", MeasurementUnit: "g"},
			{Name: "pepper", MeasurementUnit: "g"},
			{Name: "water", MeasurementUnit: "ml"},
			{Name: "salt", MeasurementUnit: "pinch"},
		},
		Tags: []models.Tag{
			{Name: "Soup", Slug: "soup"},
			{Name: "Quick", Slug: "quick"},
		},
	})
	require.NoError(t, err)

	e := &env{
		t:           t,
		ctx:         ctx,
		store:       store,
		accounts:    NewAccounts(store, l).WithBcryptCost(bcrypt.MinCost),
		recipes:     NewRecipes(store, config.DefaultLimits(), l),
		memberships: NewMemberships(store, l),
		follows:     NewFollows(store, l),
		links:       NewShortLinks(store, nil, "http://recipes.test/", 0, l),
		ingredients: map[string]uint64{},
		tags:        map[string]uint64{},
	}

	ingredients, err := store.ListIngredients(ctx, "")
	require.NoError(t, err)
	for _, ing := range ingredients {
		e.ingredients[ing.Name+"/"+ing.MeasurementUnit] = ing.ID
	}
	tags, err := store.ListTags(ctx)
	require.NoError(t, err)
	for _, tag := range tags {
		e.tags[tag.Slug] = tag.ID
	}
	return e
}

func (e *env) user(name string) models.User {
	e.t.Helper()
	account, err := e.accounts.Register(e.ctx, Registration{
		Email:    name + "@example.com",
		Username: name,
		Password: "password123",
	})
	require.NoError(e.t, err)
	return account.User
}

func (e *env) amount(key string, amount int) models.IngredientAmount {
	return models.IngredientAmount{IngredientID: e.ingredients[key], Amount: amount}
}

func (e *env) draft(items ...models.IngredientAmount) models.RecipeDraft {
	return models.RecipeDraft{
		Name:        "Soup",
		Text:        "Boil everything.",
		CookingTime: 30,
		Ingredients: items,
		TagIDs:      []uint64{e.tags["soup"]},
	}
}

func (e *env) recipe(author models.User, items ...models.IngredientAmount) models.AnnotatedRecipe {
	e.t.Helper()
	r, err := e.recipes.CreateRecipe(e.ctx, author, e.draft(items...))
	require.NoError(e.t, err)
	return r
}

func (e *env) recipeCount() int64 {
	e.t.Helper()
	page, err := e.store.ListRecipes(e.ctx, models.Viewer{}, models.RecipeFilter{Page: 1, Limit: 100})
	require.NoError(e.t, err)
	return page.Count
}
