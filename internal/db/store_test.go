package db

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Rogue-Bear-Innovations/recipebook-back/internal/models"
)

// store is the method set both implementations share.
type store interface {
	CreateAccount(ctx context.Context, account *models.Account) error
	UserByToken(ctx context.Context, token string) (models.User, error)
	ListIngredients(ctx context.Context, namePrefix string) ([]models.Ingredient, error)
	ListTags(ctx context.Context) ([]models.Tag, error)
	ExistingIngredientIDs(ctx context.Context, ids []uint64) (map[uint64]bool, error)
	ImportCatalog(ctx context.Context, catalog models.Catalog) (int, error)
	CreateRecipe(ctx context.Context, recipe *models.Recipe) error
	ReplaceRecipe(ctx context.Context, recipe *models.Recipe) error
	DeleteRecipe(ctx context.Context, id uint64) error
	RecipeByID(ctx context.Context, viewer models.Viewer, id uint64) (models.AnnotatedRecipe, error)
	ListRecipes(ctx context.Context, viewer models.Viewer, filter models.RecipeFilter) (models.Page[models.AnnotatedRecipe], error)
	RecipeSummariesByAuthors(ctx context.Context, authorIDs []uint64) ([]models.RecipeSummary, error)
	AddMembership(ctx context.Context, kind models.RelationKind, userID, recipeID uint64) error
	RemoveMembership(ctx context.Context, kind models.RelationKind, userID, recipeID uint64) error
	AddFollow(ctx context.Context, userID, authorID uint64) error
	IsFollowing(ctx context.Context, userID, authorID uint64) (bool, error)
	FollowedAuthors(ctx context.Context, userID uint64, limit, offset int) (models.Page[models.User], error)
	ShoppingList(ctx context.Context, userID uint64) iter.Seq2[models.ShoppingLine, error]
	ShortLinkByRecipe(ctx context.Context, recipeID uint64) (models.ShortLink, error)
	ShortLinkByCode(ctx context.Context, code string) (models.ShortLink, error)
	CreateShortLink(ctx context.Context, link models.ShortLink) error
}

var (
	_ store = (*GormStore)(nil)
	_ store = (*MemoryStore)(nil)
)

func newSQLiteStore(t *testing.T) *GormStore {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared",
		strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()))
	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, Migrate(gormDB))
	return NewGormStore(gormDB)
}

type fixture struct {
	t     *testing.T
	ctx   context.Context
	s     store
	ing   map[string]uint64
	tags  map[string]uint64
	users map[string]uint64
}

func forEachStore(t *testing.T, test func(t *testing.T, f *fixture)) {
	stores := map[string]func(t *testing.T) store{
		"gorm":   func(t *testing.T) store { return newSQLiteStore(t) },
		"memory": func(t *testing.T) store { return NewMemoryStore() },
	}
	for name, open := range stores {
		t.Run(name, func(t *testing.T) {
			f := &fixture{
				t:     t,
				ctx:   context.Background(),
				s:     open(t),
				ing:   map[string]uint64{},
				tags:  map[string]uint64{},
				users: map[string]uint64{},
			}
			f.seed()
			test(t, f)
		})
	}
}

func (f *fixture) seed() {
	n, err := f.s.ImportCatalog(f.ctx, models.Catalog{
		Ingredients: []models.Ingredient{
			{Name: "salt", MeasurementUnit: "g"},
			{Name: "pepper", MeasurementUnit: "g"},
			{Name: "100%_juice", MeasurementUnit: "ml"},
		},
		Tags: []models.Tag{
			{Name: "Breakfast", Slug: "breakfast"},
			{Name: "Dinner", Slug: "dinner"},
		},
	})
	require.NoError(f.t, err)
	require.Equal(f.t, 5, n)

	ingredients, err := f.s.ListIngredients(f.ctx, "")
	require.NoError(f.t, err)
	for _, ing := range ingredients {
		f.ing[ing.Name] = ing.ID
	}
	tags, err := f.s.ListTags(f.ctx)
	require.NoError(f.t, err)
	for _, tag := range tags {
		f.tags[tag.Slug] = tag.ID
	}

	for _, name := range []string{"author", "fan", "other"} {
		account := models.Account{
			User:         models.User{Email: name + "@example.com", Username: name},
			PasswordHash: "hash",
			Token:        "token-" + name,
		}
		require.NoError(f.t, f.s.CreateAccount(f.ctx, &account))
		f.users[name] = account.ID
	}
}

func (f *fixture) recipe(name string, tag string, items map[string]int) uint64 {
	f.t.Helper()
	r := &models.Recipe{
		AuthorID:    f.users["author"],
		Name:        name,
		Text:        "text",
		CookingTime: 10,
		Tags:        []models.Tag{{ID: f.tags[tag]}},
	}
	for _, ing := range []string{"salt", "pepper", "100%_juice"} {
		if amount, ok := items[ing]; ok {
			r.Ingredients = append(r.Ingredients, models.RecipeIngredient{
				Ingredient: models.Ingredient{ID: f.ing[ing]},
				Amount:     amount,
			})
		}
	}
	require.NoError(f.t, f.s.CreateRecipe(f.ctx, r))
	require.NotZero(f.t, r.ID)
	return r.ID
}

func (f *fixture) count() int64 {
	f.t.Helper()
	page, err := f.s.ListRecipes(f.ctx, models.Viewer{}, models.RecipeFilter{Page: 1, Limit: 10})
	require.NoError(f.t, err)
	return page.Count
}

func TestCatalog(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		n, err := f.s.ImportCatalog(f.ctx, models.Catalog{
			Ingredients: []models.Ingredient{{Name: "salt", MeasurementUnit: "g"}},
			Tags:        []models.Tag{{Name: "Breakfast", Slug: "breakfast"}},
		})
		require.NoError(t, err)
		assert.Zero(t, n)

		found, err := f.s.ListIngredients(f.ctx, "100%")
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, "100%_juice", found[0].Name)

		found, err = f.s.ListIngredients(f.ctx, "P")
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, "pepper", found[0].Name)

		known, err := f.s.ExistingIngredientIDs(f.ctx, []uint64{f.ing["salt"], 99999})
		require.NoError(t, err)
		assert.Equal(t, map[uint64]bool{f.ing["salt"]: true}, known)
	})
}

func TestRecipeComposition(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		id := f.recipe("Soup", "dinner", map[string]int{"salt": 1, "pepper": 2})

		err := f.s.ReplaceRecipe(f.ctx, &models.Recipe{
			ID:          id,
			Name:        "Brine",
			Text:        "text",
			CookingTime: 5,
			Ingredients: []models.RecipeIngredient{{Ingredient: models.Ingredient{ID: f.ing["salt"]}, Amount: 3}},
			Tags:        []models.Tag{{ID: f.tags["breakfast"]}},
		})
		require.NoError(t, err)

		got, err := f.s.RecipeByID(f.ctx, models.Viewer{}, id)
		require.NoError(t, err)
		assert.Equal(t, "Brine", got.Name)
		assert.Equal(t, "author", got.Author.Username)
		require.Len(t, got.Ingredients, 1)
		assert.Equal(t, "salt", got.Ingredients[0].Name)
		assert.Equal(t, 3, got.Ingredients[0].Amount)
		require.Len(t, got.Tags, 1)
		assert.Equal(t, "breakfast", got.Tags[0].Slug)

		err = f.s.ReplaceRecipe(f.ctx, &models.Recipe{ID: 99999, Name: "x", Text: "x", CookingTime: 1})
		assert.ErrorIs(t, err, models.ErrRecipeNotFound)
	})
}

func TestDuplicateIngredientIsAtomic(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		salt := models.RecipeIngredient{Ingredient: models.Ingredient{ID: f.ing["salt"]}, Amount: 1}
		err := f.s.CreateRecipe(f.ctx, &models.Recipe{
			AuthorID:    f.users["author"],
			Name:        "Salty",
			Text:        "text",
			CookingTime: 1,
			Ingredients: []models.RecipeIngredient{salt, salt},
			Tags:        []models.Tag{{ID: f.tags["dinner"]}},
		})
		var ce *models.CompositionError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, models.DuplicateIngredient, ce.Kind)
		assert.Equal(t, 1, ce.Index)
		assert.Equal(t, f.ing["salt"], ce.ID)
		assert.ErrorIs(t, err, models.ErrConflict)
		assert.Zero(t, f.count())
	})
}

func TestDuplicateTagIsAtomic(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		dinner := models.Tag{ID: f.tags["dinner"]}
		err := f.s.CreateRecipe(f.ctx, &models.Recipe{
			AuthorID:    f.users["author"],
			Name:        "Stew",
			Text:        "text",
			CookingTime: 1,
			Ingredients: []models.RecipeIngredient{{Ingredient: models.Ingredient{ID: f.ing["salt"]}, Amount: 1}},
			Tags:        []models.Tag{dinner, dinner},
		})
		var ce *models.CompositionError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, models.DuplicateTag, ce.Kind)
		assert.Equal(t, 1, ce.Index)
		assert.Equal(t, f.tags["dinner"], ce.ID)
		assert.Equal(t, "tags", ce.Field())
		assert.Zero(t, f.count())

		id := f.recipe("Soup", "dinner", map[string]int{"salt": 1})
		err = f.s.ReplaceRecipe(f.ctx, &models.Recipe{
			ID:          id,
			Name:        "Soup",
			Text:        "text",
			CookingTime: 1,
			Ingredients: []models.RecipeIngredient{{Ingredient: models.Ingredient{ID: f.ing["pepper"]}, Amount: 2}},
			Tags:        []models.Tag{dinner, dinner},
		})
		assert.True(t, models.IsCompositionError(err, models.DuplicateTag), "got %v", err)

		got, err := f.s.RecipeByID(f.ctx, models.Viewer{}, id)
		require.NoError(t, err)
		require.Len(t, got.Ingredients, 1)
		assert.Equal(t, "salt", got.Ingredients[0].Name)
	})
}

func TestFlagsAndFilters(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		soup := f.recipe("Soup", "dinner", map[string]int{"salt": 1})
		eggs := f.recipe("Eggs", "breakfast", map[string]int{"pepper": 1})
		fan := f.users["fan"]

		require.NoError(t, f.s.AddMembership(f.ctx, models.RelationFavorite, fan, soup))
		require.NoError(t, f.s.AddMembership(f.ctx, models.RelationCart, fan, eggs))
		require.NoError(t, f.s.AddFollow(f.ctx, fan, f.users["author"]))

		err := f.s.AddMembership(f.ctx, models.RelationFavorite, fan, soup)
		assert.ErrorIs(t, err, models.ErrAlreadyExists)

		anon, err := f.s.ListRecipes(f.ctx, models.Viewer{}, models.RecipeFilter{Page: 1, Limit: 10})
		require.NoError(t, err)
		require.EqualValues(t, 2, anon.Count)
		for _, r := range anon.Items {
			assert.Equal(t, models.RecipeFlags{}, r.Flags)
			assert.False(t, r.Author.IsSubscribed)
		}

		yes := true
		fanView := models.Viewer{UserID: fan}
		favs, err := f.s.ListRecipes(f.ctx, fanView, models.RecipeFilter{IsFavorited: &yes, Page: 1, Limit: 10})
		require.NoError(t, err)
		require.EqualValues(t, 1, favs.Count)
		assert.Equal(t, soup, favs.Items[0].ID)
		assert.Equal(t, models.RecipeFlags{IsFavorited: true}, favs.Items[0].Flags)
		assert.True(t, favs.Items[0].Author.IsSubscribed)

		no := false
		notFav, err := f.s.ListRecipes(f.ctx, fanView, models.RecipeFilter{IsFavorited: &no, IsInCart: &no, Page: 1, Limit: 10})
		require.NoError(t, err)
		assert.EqualValues(t, 2, notFav.Count)
		assert.Len(t, notFav.Items, 2)

		byTag, err := f.s.ListRecipes(f.ctx, fanView, models.RecipeFilter{TagSlugs: []string{"breakfast"}, Page: 1, Limit: 10})
		require.NoError(t, err)
		require.EqualValues(t, 1, byTag.Count)
		assert.Equal(t, eggs, byTag.Items[0].ID)
		assert.True(t, byTag.Items[0].Flags.IsInCart)

		byAuthor, err := f.s.ListRecipes(f.ctx, fanView, models.RecipeFilter{AuthorID: fan, Page: 1, Limit: 10})
		require.NoError(t, err)
		assert.Zero(t, byAuthor.Count)
		assert.Empty(t, byAuthor.Items)

		paged, err := f.s.ListRecipes(f.ctx, fanView, models.RecipeFilter{Page: 2, Limit: 1})
		require.NoError(t, err)
		assert.EqualValues(t, 2, paged.Count)
		require.Len(t, paged.Items, 1)

		require.NoError(t, f.s.RemoveMembership(f.ctx, models.RelationFavorite, fan, soup))
		err = f.s.RemoveMembership(f.ctx, models.RelationFavorite, fan, soup)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}

func TestShoppingListAggregation(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		first := f.recipe("First", "dinner", map[string]int{"salt": 5})
		second := f.recipe("Second", "dinner", map[string]int{"salt": 3, "pepper": 1})
		f.recipe("Ignored", "dinner", map[string]int{"salt": 100})
		fan := f.users["fan"]

		assert.Empty(t, shoppingList(t, f, fan))

		require.NoError(t, f.s.AddMembership(f.ctx, models.RelationCart, fan, second))
		require.NoError(t, f.s.AddMembership(f.ctx, models.RelationCart, fan, first))

		assert.Equal(t, []string{"pepper (1 g)", "salt (8 g)"}, shoppingList(t, f, fan))
	})
}

func shoppingList(t *testing.T, f *fixture, userID uint64) []string {
	t.Helper()
	var lines []string
	for line, err := range f.s.ShoppingList(f.ctx, userID) {
		require.NoError(t, err)
		lines = append(lines, line.String())
	}
	return lines
}

func TestDeleteRecipeCascades(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		id := f.recipe("Soup", "dinner", map[string]int{"salt": 1})
		fan := f.users["fan"]
		require.NoError(t, f.s.AddMembership(f.ctx, models.RelationCart, fan, id))
		require.NoError(t, f.s.CreateShortLink(f.ctx, models.ShortLink{RecipeID: id, Code: "abc", FullURL: "http://x/1"}))

		require.NoError(t, f.s.DeleteRecipe(f.ctx, id))
		assert.ErrorIs(t, f.s.DeleteRecipe(f.ctx, id), models.ErrRecipeNotFound)

		_, err := f.s.RecipeByID(f.ctx, models.Viewer{}, id)
		assert.ErrorIs(t, err, models.ErrRecipeNotFound)
		_, err = f.s.ShortLinkByRecipe(f.ctx, id)
		assert.ErrorIs(t, err, models.ErrNotFound)
		assert.Empty(t, shoppingList(t, f, fan))
	})
}

func TestShortLinksAreUnique(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		id := f.recipe("Soup", "dinner", map[string]int{"salt": 1})
		link := models.ShortLink{RecipeID: id, Code: "abc1", FullURL: "http://x/recipes/1"}

		require.NoError(t, f.s.CreateShortLink(f.ctx, link))
		assert.ErrorIs(t, f.s.CreateShortLink(f.ctx, link), models.ErrAlreadyExists)

		got, err := f.s.ShortLinkByCode(f.ctx, "abc1")
		require.NoError(t, err)
		assert.Equal(t, link, got)

		_, err = f.s.ShortLinkByCode(f.ctx, "missing")
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}

func TestFollows(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		fan, author, other := f.users["fan"], f.users["author"], f.users["other"]

		require.NoError(t, f.s.AddFollow(f.ctx, fan, author))
		require.NoError(t, f.s.AddFollow(f.ctx, fan, other))
		assert.ErrorIs(t, f.s.AddFollow(f.ctx, fan, author), models.ErrAlreadyExists)

		ok, err := f.s.IsFollowing(f.ctx, fan, author)
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = f.s.IsFollowing(f.ctx, author, fan)
		require.NoError(t, err)
		assert.False(t, ok)

		page, err := f.s.FollowedAuthors(f.ctx, fan, 1, 0)
		require.NoError(t, err)
		assert.EqualValues(t, 2, page.Count)
		assert.Len(t, page.Items, 1)

		page, err = f.s.FollowedAuthors(f.ctx, author, 10, 0)
		require.NoError(t, err)
		assert.Zero(t, page.Count)
		assert.Empty(t, page.Items)
	})
}

func TestAccounts(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		dup := models.Account{User: models.User{Email: "author@example.com", Username: "new"}, PasswordHash: "h", Token: "t"}
		assert.ErrorIs(t, f.s.CreateAccount(f.ctx, &dup), models.ErrAlreadyExists)

		user, err := f.s.UserByToken(f.ctx, "token-fan")
		require.NoError(t, err)
		assert.Equal(t, f.users["fan"], user.ID)

		_, err = f.s.UserByToken(f.ctx, "nope")
		assert.ErrorIs(t, err, models.ErrUserNotFound)
	})
}
