package service

import (
	"context"
	"iter"

	"github.com/Rogue-Bear-Innovations/recipebook-back/internal/models"
)

type (
	UserStore interface {
		CreateAccount(ctx context.Context, account *models.Account) error
		AccountByEmail(ctx context.Context, email string) (models.Account, error)
		UserByToken(ctx context.Context, token string) (models.User, error)
		UserByID(ctx context.Context, id uint64) (models.User, error)
		SetToken(ctx context.Context, userID uint64, token string) error
	}

	CatalogStore interface {
		ListIngredients(ctx context.Context, namePrefix string) ([]models.Ingredient, error)
		IngredientByID(ctx context.Context, id uint64) (models.Ingredient, error)
		ListTags(ctx context.Context) ([]models.Tag, error)
		TagByID(ctx context.Context, id uint64) (models.Tag, error)
		// ExistingIngredientIDs returns the subset of ids present in the catalog.
		ExistingIngredientIDs(ctx context.Context, ids []uint64) (map[uint64]bool, error)
		ExistingTagIDs(ctx context.Context, ids []uint64) (map[uint64]bool, error)
		ImportCatalog(ctx context.Context, catalog models.Catalog) (int, error)
	}

	RecipeStore interface {
		// CreateRecipe writes the recipe and its composition in one
		// transaction and fills in ID and CreatedAt.
		CreateRecipe(ctx context.Context, recipe *models.Recipe) error
		// ReplaceRecipe overwrites scalar fields and swaps the whole
		// composition in one transaction.
		ReplaceRecipe(ctx context.Context, recipe *models.Recipe) error
		DeleteRecipe(ctx context.Context, id uint64) error
		RecipeSummaryByID(ctx context.Context, id uint64) (models.RecipeSummary, error)
		RecipeByID(ctx context.Context, viewer models.Viewer, id uint64) (models.AnnotatedRecipe, error)
		ListRecipes(ctx context.Context, viewer models.Viewer, filter models.RecipeFilter) (models.Page[models.AnnotatedRecipe], error)
		// RecipeSummariesByAuthors lists recipes of the given authors, newest first.
		RecipeSummariesByAuthors(ctx context.Context, authorIDs []uint64) ([]models.RecipeSummary, error)
	}

	MembershipStore interface {
		AddMembership(ctx context.Context, kind models.RelationKind, userID, recipeID uint64) error
		RemoveMembership(ctx context.Context, kind models.RelationKind, userID, recipeID uint64) error
		ShoppingList(ctx context.Context, userID uint64) iter.Seq2[models.ShoppingLine, error]
	}

	FollowStore interface {
		AddFollow(ctx context.Context, userID, authorID uint64) error
		RemoveFollow(ctx context.Context, userID, authorID uint64) error
		IsFollowing(ctx context.Context, userID, authorID uint64) (bool, error)
		FollowedAuthors(ctx context.Context, userID uint64, limit, offset int) (models.Page[models.User], error)
	}

	ShortLinkStore interface {
		ShortLinkByRecipe(ctx context.Context, recipeID uint64) (models.ShortLink, error)
		ShortLinkByCode(ctx context.Context, code string) (models.ShortLink, error)
		CreateShortLink(ctx context.Context, link models.ShortLink) error
	}

	// Store is the persistence boundary of every service in this package.
	// Implementations report missing rows with models.ErrNotFound (or a more
	// specific not-found error), unique constraint hits with
	// models.ErrAlreadyExists and everything else as *models.StorageError.
	Store interface {
		UserStore
		CatalogStore
		RecipeStore
		MembershipStore
		FollowStore
		ShortLinkStore
	}
)
