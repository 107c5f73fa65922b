package models

import (
	"fmt"
	"time"
)

type (
	User struct {
		ID        uint64
		Email     string
		Username  string
		FirstName string
		LastName  string
	}

	// Viewer is the identity a read is made on behalf of. The zero value is
	// an anonymous viewer.
	Viewer struct {
		UserID uint64
	}

	Ingredient struct {
		ID              uint64
		Name            string
		MeasurementUnit string
	}

	Tag struct {
		ID   uint64
		Name string
		Slug string
	}

	IngredientAmount struct {
		IngredientID uint64
		Amount       int
	}

	// RecipeDraft is the client supplied content of a recipe. Ingredient and
	// tag order is kept for error reporting.
	RecipeDraft struct {
		Name        string
		Text        string
		Image       *string
		CookingTime int
		Ingredients []IngredientAmount
		TagIDs      []uint64
	}

	RecipeIngredient struct {
		Ingredient
		Amount int
	}

	Recipe struct {
		ID          uint64
		AuthorID    uint64
		Name        string
		Image       *string
		Text        string
		CookingTime int
		CreatedAt   time.Time
		Ingredients []RecipeIngredient
		Tags        []Tag
	}

	RecipeFlags struct {
		IsFavorited bool
		IsInCart    bool
	}

	Author struct {
		User
		IsSubscribed bool
	}

	AnnotatedRecipe struct {
		Recipe
		Author Author
		Flags  RecipeFlags
	}

	RecipeSummary struct {
		ID          uint64
		AuthorID    uint64
		Name        string
		Image       *string
		CookingTime int
		CreatedAt   time.Time
	}

	// RecipeFilter narrows a recipe listing. Nil flag filters are not applied.
	RecipeFilter struct {
		AuthorID    uint64
		TagSlugs    []string
		IsFavorited *bool
		IsInCart    *bool
		Page        int
		Limit       int
	}

	Page[T any] struct {
		Count int64
		Items []T
	}

	Subscription struct {
		Author
		RecipesCount int64
		Recipes      []RecipeSummary
	}

	ShoppingLine struct {
		Name            string
		MeasurementUnit string
		Total           int64
	}

	// ShortLink maps a short code to the canonical recipe URL.
	ShortLink struct {
		RecipeID uint64
		Code     string
		FullURL  string
	}

	Catalog struct {
		Ingredients []Ingredient
		Tags        []Tag
	}
)

// RelationKind selects one of the per-user recipe membership sets.
type RelationKind int

const (
	RelationFavorite RelationKind = iota + 1
	RelationCart
)

func (k RelationKind) String() string {
	switch k {
	case RelationFavorite:
		return "favorite"
	case RelationCart:
		return "shopping_cart"
	default:
		return fmt.Sprintf("relation(%d)", int(k))
	}
}

func (v Viewer) Anonymous() bool {
	return v.UserID == 0
}

func (l ShoppingLine) String() string {
	return fmt.Sprintf("%s (%d %s)", l.Name, l.Total, l.MeasurementUnit)
}

func (r Recipe) Summary() RecipeSummary {
	return RecipeSummary{
		ID:          r.ID,
		AuthorID:    r.AuthorID,
		Name:        r.Name,
		Image:       r.Image,
		CookingTime: r.CookingTime,
		CreatedAt:   r.CreatedAt,
	}
}

// Offset converts the 1-based page into a row offset.
func (f RecipeFilter) Offset() int {
	if f.Page <= 1 {
		return 0
	}
	return (f.Page - 1) * f.Limit
}

// Account is a user together with its login secrets.
type Account struct {
	User
	PasswordHash string
	Token        string
}
