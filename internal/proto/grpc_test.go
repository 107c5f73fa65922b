package proto

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/Rogue-Bear-Innovations/recipebook-back/internal/config"
	"github.com/Rogue-Bear-Innovations/recipebook-back/internal/db"
	"github.com/Rogue-Bear-Innovations/recipebook-back/internal/models"
	"github.com/Rogue-Bear-Innovations/recipebook-back/internal/service"
)

type fixture struct {
	client   *RecipesClient
	token    string
	recipeID uint64
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	l := zap.NewNop().Sugar()
	store := db.NewMemoryStore()

	accounts := service.NewAccounts(store, l).WithBcryptCost(bcrypt.MinCost)
	recipes := service.NewRecipes(store, config.DefaultLimits(), l)
	memberships := service.NewMemberships(store, l)
	links := service.NewShortLinks(store, nil, "http://recipes.test", 0, l)

	_, err := store.ImportCatalog(ctx, models.Catalog{
		Ingredients: []models.Ingredient{{Name: "rice", MeasurementUnit: "g"}},
		Tags:        []models.Tag{{Name: "Lunch", Slug: "lunch"}},
	})
	require.NoError(t, err)
	ingredients, err := store.ListIngredients(ctx, "")
	require.NoError(t, err)
	tags, err := store.ListTags(ctx)
	require.NoError(t, err)

	account, err := accounts.Register(ctx, service.Registration{
		Email:    "cook@example.com",
		Username: "cook",
		Password: "password123",
	})
	require.NoError(t, err)

	recipe, err := recipes.CreateRecipe(ctx, account.User, models.RecipeDraft{
		Name:        "Rice",
		Text:        "Boil.",
		CookingTime: 15,
		Ingredients: []models.IngredientAmount{{IngredientID: ingredients[0].ID, Amount: 150}},
		TagIDs:      []uint64{tags[0].ID},
	})
	require.NoError(t, err)
	_, err = memberships.Cart.Add(ctx, account.User, recipe.ID)
	require.NoError(t, err)

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterRecipesServer(srv, NewRecipesServer(accounts, memberships, links, l))
	go func() {
		_ = srv.Serve(lis)
	}()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return fixture{
		client:   NewRecipesClient(conn),
		token:    account.Token,
		recipeID: recipe.ID,
	}
}

func TestShortLinkRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	shortURL, err := f.client.GetShortLink(ctx, f.recipeID)
	require.NoError(t, err)
	assert.Equal(t, "http://recipes.test/s/"+service.ShortCode(f.recipeID), shortURL)

	again, err := f.client.GetShortLink(ctx, f.recipeID)
	require.NoError(t, err)
	assert.Equal(t, shortURL, again)

	fullURL, err := f.client.ResolveShortLink(ctx, service.ShortCode(f.recipeID))
	require.NoError(t, err)
	assert.Contains(t, fullURL, "/recipes/")

	_, err = f.client.GetShortLink(ctx, f.recipeID+1000)
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestShoppingListStream(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := f.client.ShoppingList(ctx)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	authed := metadata.AppendToOutgoingContext(ctx, TokenMetadataKey, f.token)
	lines, err := f.client.ShoppingList(authed)
	require.NoError(t, err)
	assert.Equal(t, []string{"rice (150 g)"}, lines)
}

func TestModuleLifecycle(t *testing.T) {
	l := zap.NewNop().Sugar()
	store := db.NewMemoryStore()

	app := fxtest.New(t,
		Module,
		fx.Supply(
			&config.Config{Host: "127.0.0.1", GRPCPort: "0"},
			l,
			service.NewAccounts(store, l),
			service.NewMemberships(store, l),
			service.NewShortLinks(store, nil, "http://recipes.test", 0, l),
		),
	)
	app.RequireStart()
	app.RequireStop()
}
