package transport

import (
	"time"

	"github.com/Rogue-Bear-Innovations/recipebook-back/internal/models"
)

// Projection selects how much of a recipe a response carries.
type Projection int

const (
	// ProjectionFull is the recipe page: composition, author and flags.
	ProjectionFull Projection = iota
	// ProjectionShort is the card shown in favorites, cart and subscriptions.
	ProjectionShort
)

type (
	UserResp struct {
		ID           uint64 `json:"id"`
		Email        string `json:"email"`
		Username     string `json:"username"`
		FirstName    string `json:"first_name"`
		LastName     string `json:"last_name"`
		IsSubscribed bool   `json:"is_subscribed"`
	}

	IngredientResp struct {
		ID              uint64 `json:"id"`
		Name            string `json:"name"`
		MeasurementUnit string `json:"measurement_unit"`
	}

	RecipeIngredientResp struct {
		IngredientResp
		Amount int `json:"amount"`
	}

	TagResp struct {
		ID   uint64 `json:"id"`
		Name string `json:"name"`
		Slug string `json:"slug"`
	}

	RecipeResp struct {
		ID          uint64                 `json:"id"`
		Name        string                 `json:"name"`
		Image       *string                `json:"image"`
		CookingTime int                    `json:"cooking_time"`
		Text        string                 `json:"text,omitempty"`
		CreatedAt   *time.Time             `json:"created_at,omitempty"`
		Author      *UserResp              `json:"author,omitempty"`
		Tags        []TagResp              `json:"tags,omitempty"`
		Ingredients []RecipeIngredientResp `json:"ingredients,omitempty"`
		IsFavorited *bool                  `json:"is_favorited,omitempty"`
		IsInCart    *bool                  `json:"is_in_shopping_cart,omitempty"`
	}

	SubscriptionResp struct {
		UserResp
		RecipesCount int64        `json:"recipes_count"`
		Recipes      []RecipeResp `json:"recipes"`
	}

	PageResp[T any] struct {
		Count   int64 `json:"count"`
		Results []T   `json:"results"`
	}
)

func newRecipeResp(r models.AnnotatedRecipe, p Projection) RecipeResp {
	resp := RecipeResp{
		ID:          r.ID,
		Name:        r.Name,
		Image:       r.Image,
		CookingTime: r.CookingTime,
	}
	if p == ProjectionShort {
		return resp
	}

	created := r.CreatedAt
	author := newUserResp(r.Author)
	favorited, inCart := r.Flags.IsFavorited, r.Flags.IsInCart
	resp.Text = r.Text
	resp.CreatedAt = &created
	resp.Author = &author
	resp.IsFavorited = &favorited
	resp.IsInCart = &inCart

	resp.Tags = make([]TagResp, len(r.Tags))
	for i, t := range r.Tags {
		resp.Tags[i] = newTagResp(t)
	}
	resp.Ingredients = make([]RecipeIngredientResp, len(r.Ingredients))
	for i, ing := range r.Ingredients {
		resp.Ingredients[i] = RecipeIngredientResp{
			IngredientResp: newIngredientResp(ing.Ingredient),
			Amount:         ing.Amount,
		}
	}
	return resp
}

func newRecipeSummaryResp(r models.RecipeSummary) RecipeResp {
	return newRecipeResp(models.AnnotatedRecipe{Recipe: models.Recipe{
		ID:          r.ID,
		Name:        r.Name,
		Image:       r.Image,
		CookingTime: r.CookingTime,
	}}, ProjectionShort)
}

func newUserResp(a models.Author) UserResp {
	return UserResp{
		ID:           a.ID,
		Email:        a.Email,
		Username:     a.Username,
		FirstName:    a.FirstName,
		LastName:     a.LastName,
		IsSubscribed: a.IsSubscribed,
	}
}

func newIngredientResp(i models.Ingredient) IngredientResp {
	return IngredientResp{ID: i.ID, Name: i.Name, MeasurementUnit: i.MeasurementUnit}
}

func newTagResp(t models.Tag) TagResp {
	return TagResp{ID: t.ID, Name: t.Name, Slug: t.Slug}
}

func newSubscriptionResp(s models.Subscription) SubscriptionResp {
	resp := SubscriptionResp{
		UserResp:     newUserResp(s.Author),
		RecipesCount: s.RecipesCount,
		Recipes:      make([]RecipeResp, len(s.Recipes)),
	}
	for i, r := range s.Recipes {
		resp.Recipes[i] = newRecipeSummaryResp(r)
	}
	return resp
}
