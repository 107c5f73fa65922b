package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Rogue-Bear-Innovations/recipebook-back/internal/config"
	"github.com/Rogue-Bear-Innovations/recipebook-back/internal/models"
)

const maxRecipeNameLen = 256

// Recipes validates and persists recipe compositions and serves
// viewer-annotated reads.
type Recipes struct {
	store  Store
	limits config.Limits
	links  *ShortLinks
	logger *zap.SugaredLogger
}

func NewRecipes(store Store, limits config.Limits, l *zap.SugaredLogger) *Recipes {
	return &Recipes{
		store:  store,
		limits: limits,
		logger: l,
	}
}

// WithShortLinks makes deletes evict the recipe's cached short link.
func (s *Recipes) WithShortLinks(links *ShortLinks) *Recipes {
	s.links = links
	return s
}

func (s *Recipes) CreateRecipe(ctx context.Context, author models.User, draft models.RecipeDraft) (models.AnnotatedRecipe, error) {
	recipe, err := s.validate(ctx, draft)
	if err != nil {
		return models.AnnotatedRecipe{}, err
	}
	recipe.AuthorID = author.ID

	if err := s.store.CreateRecipe(ctx, &recipe); err != nil {
		return models.AnnotatedRecipe{}, errors.Wrap(err, "create recipe")
	}
	s.logger.Infow("recipe created", "recipe_id", recipe.ID, "author_id", author.ID)

	return s.store.RecipeByID(ctx, models.Viewer{UserID: author.ID}, recipe.ID)
}

// UpdateRecipe replaces the recipe's fields and its whole composition; the
// previous ingredients and tags are never merged with the new ones.
func (s *Recipes) UpdateRecipe(ctx context.Context, editor models.User, recipeID uint64, draft models.RecipeDraft) (models.AnnotatedRecipe, error) {
	current, err := s.store.RecipeSummaryByID(ctx, recipeID)
	if err != nil {
		return models.AnnotatedRecipe{}, err
	}
	if current.AuthorID != editor.ID {
		return models.AnnotatedRecipe{}, models.ErrForbidden
	}

	recipe, err := s.validate(ctx, draft)
	if err != nil {
		return models.AnnotatedRecipe{}, err
	}
	recipe.ID = recipeID
	recipe.AuthorID = current.AuthorID

	if err := s.store.ReplaceRecipe(ctx, &recipe); err != nil {
		return models.AnnotatedRecipe{}, errors.Wrap(err, "replace recipe")
	}
	s.logger.Infow("recipe updated", "recipe_id", recipeID, "author_id", editor.ID)

	return s.store.RecipeByID(ctx, models.Viewer{UserID: editor.ID}, recipeID)
}

func (s *Recipes) DeleteRecipe(ctx context.Context, editor models.User, recipeID uint64) error {
	current, err := s.store.RecipeSummaryByID(ctx, recipeID)
	if err != nil {
		return err
	}
	if current.AuthorID != editor.ID {
		return models.ErrForbidden
	}
	if err := s.store.DeleteRecipe(ctx, recipeID); err != nil {
		return errors.Wrap(err, "delete recipe")
	}
	if s.links != nil {
		s.links.Forget(ctx, recipeID)
	}
	s.logger.Infow("recipe deleted", "recipe_id", recipeID, "author_id", editor.ID)
	return nil
}

func (s *Recipes) GetRecipe(ctx context.Context, viewer models.Viewer, recipeID uint64) (models.AnnotatedRecipe, error) {
	return s.store.RecipeByID(ctx, viewer, recipeID)
}

// ListRecipes returns one page of recipes annotated for the viewer. A flag
// filter only narrows the list when set to true; false filters nothing. An
// anonymous viewer has no favorites and no cart, so a true flag filter yields
// an empty page.
func (s *Recipes) ListRecipes(ctx context.Context, viewer models.Viewer, filter models.RecipeFilter) (models.Page[models.AnnotatedRecipe], error) {
	filter.IsFavorited = onlyTrue(filter.IsFavorited)
	filter.IsInCart = onlyTrue(filter.IsInCart)
	if viewer.Anonymous() && (filter.IsFavorited != nil || filter.IsInCart != nil) {
		return models.Page[models.AnnotatedRecipe]{Items: []models.AnnotatedRecipe{}}, nil
	}
	return s.store.ListRecipes(ctx, viewer, filter)
}

func onlyTrue(b *bool) *bool {
	if b == nil || !*b {
		return nil
	}
	return b
}

// validate checks the whole draft before anything is written. Checks run in
// a fixed order so the reported error is reproducible: scalar fields, the
// ingredient list in submission order, the tag list, then catalog lookups.
func (s *Recipes) validate(ctx context.Context, draft models.RecipeDraft) (models.Recipe, error) {
	name := strings.TrimSpace(draft.Name)
	if name == "" {
		return models.Recipe{}, &models.ValidationError{Field: "name", Message: "must not be empty"}
	}
	if utf8.RuneCountInString(name) > maxRecipeNameLen {
		return models.Recipe{}, &models.ValidationError{Field: "name", Message: "is too long"}
	}
	if strings.TrimSpace(draft.Text) == "" {
		return models.Recipe{}, &models.ValidationError{Field: "text", Message: "must not be empty"}
	}
	if draft.CookingTime < s.limits.MinCookingTime || draft.CookingTime > s.limits.MaxCookingTime {
		return models.Recipe{}, &models.ValidationError{Field: "cooking_time", Message: "is out of range"}
	}

	if err := s.checkIngredients(draft.Ingredients); err != nil {
		return models.Recipe{}, err
	}
	if err := checkTags(draft.TagIDs); err != nil {
		return models.Recipe{}, err
	}

	ingredientIDs := make([]uint64, len(draft.Ingredients))
	for i, item := range draft.Ingredients {
		ingredientIDs[i] = item.IngredientID
	}
	known, err := s.store.ExistingIngredientIDs(ctx, ingredientIDs)
	if err != nil {
		return models.Recipe{}, errors.Wrap(err, "look up ingredients")
	}
	for i, id := range ingredientIDs {
		if !known[id] {
			return models.Recipe{}, &models.CompositionError{Kind: models.UnknownIngredient, Index: i, ID: id}
		}
	}

	knownTags, err := s.store.ExistingTagIDs(ctx, draft.TagIDs)
	if err != nil {
		return models.Recipe{}, errors.Wrap(err, "look up tags")
	}
	for i, id := range draft.TagIDs {
		if !knownTags[id] {
			return models.Recipe{}, &models.CompositionError{Kind: models.UnknownTag, Index: i, ID: id}
		}
	}

	recipe := models.Recipe{
		Name:        name,
		Image:       draft.Image,
		Text:        draft.Text,
		CookingTime: draft.CookingTime,
		Ingredients: make([]models.RecipeIngredient, len(draft.Ingredients)),
		Tags:        make([]models.Tag, len(draft.TagIDs)),
	}
	for i, item := range draft.Ingredients {
		recipe.Ingredients[i] = models.RecipeIngredient{
			Ingredient: models.Ingredient{ID: item.IngredientID},
			Amount:     item.Amount,
		}
	}
	for i, id := range draft.TagIDs {
		recipe.Tags[i] = models.Tag{ID: id}
	}
	return recipe, nil
}

// checkIngredients reports the first offending item in submission order.
func (s *Recipes) checkIngredients(items []models.IngredientAmount) error {
	if len(items) == 0 {
		return models.NewCompositionError(models.EmptyIngredients)
	}
	seen := make(map[uint64]bool, len(items))
	for i, item := range items {
		if seen[item.IngredientID] {
			return &models.CompositionError{Kind: models.DuplicateIngredient, Index: i, ID: item.IngredientID}
		}
		seen[item.IngredientID] = true
		if item.Amount < s.limits.MinAmount || item.Amount > s.limits.MaxAmount {
			return &models.CompositionError{Kind: models.InvalidAmount, Index: i, ID: item.IngredientID}
		}
	}
	return nil
}

func checkTags(ids []uint64) error {
	if len(ids) == 0 {
		return models.NewCompositionError(models.EmptyTags)
	}
	seen := make(map[uint64]bool, len(ids))
	for i, id := range ids {
		if seen[id] {
			return &models.CompositionError{Kind: models.DuplicateTag, Index: i, ID: id}
		}
		seen[id] = true
	}
	return nil
}
