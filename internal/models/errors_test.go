package models

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestNotFoundErrors(t *testing.T) {
	assert.ErrorIs(t, ErrRecipeNotFound, ErrNotFound)
	assert.ErrorIs(t, errors.Wrap(ErrUserNotFound, "load"), ErrNotFound)
	assert.NotErrorIs(t, ErrRecipeNotFound, ErrUserNotFound)
	assert.Equal(t, "recipe not found", ErrRecipeNotFound.Error())
}

func TestCompositionError(t *testing.T) {
	err := &CompositionError{Kind: DuplicateIngredient, Index: 2, ID: 7}
	assert.Equal(t, "ingredients[2]: ingredient 7 is listed more than once", err.Error())
	assert.Equal(t, "ingredients", err.Field())
	assert.ErrorIs(t, err, ErrConflict)

	wrapped := errors.Wrap(err, "create recipe")
	assert.True(t, IsCompositionError(wrapped, DuplicateIngredient))
	assert.False(t, IsCompositionError(wrapped, EmptyTags))

	tags := NewCompositionError(EmptyTags)
	assert.Equal(t, -1, tags.Index)
	assert.Equal(t, "tags", tags.Field())
	assert.NotErrorIs(t, tags, ErrConflict)

	dupTag := NewCompositionError(DuplicateTag)
	assert.Equal(t, "tags: a tag is listed more than once", dupTag.Error())
	assert.Equal(t, "tags", dupTag.Field())
	assert.ErrorIs(t, dupTag, ErrConflict)
	assert.Equal(t, "ingredients: an ingredient is listed more than once",
		NewCompositionError(DuplicateIngredient).Error())

	assert.Equal(t, "UnknownTag", UnknownTag.String())
	assert.Equal(t, "CompositionErrorKind(99)", CompositionErrorKind(99).String())
}

func TestStorageErrorUnwraps(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewStorageError("insert recipe", cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "storage: insert recipe: connection reset", err.Error())
}

func TestRecipeFilterOffset(t *testing.T) {
	assert.Equal(t, 0, RecipeFilter{Page: 0, Limit: 6}.Offset())
	assert.Equal(t, 0, RecipeFilter{Page: 1, Limit: 6}.Offset())
	assert.Equal(t, 12, RecipeFilter{Page: 3, Limit: 6}.Offset())
}

func TestShoppingLineString(t *testing.T) {
	assert.Equal(t, "salt (8 g)", ShoppingLine{Name: "salt", MeasurementUnit: "g", Total: 8}.String())
	assert.Equal(t, "shopping_cart", RelationCart.String())
}

func TestDuplicateAt(t *testing.T) {
	err := DuplicateAt(DuplicateTag, []uint64{4, 9, 4})
	assert.Equal(t, &CompositionError{Kind: DuplicateTag, Index: 2, ID: 4}, err)
	assert.Equal(t, "tags[2]: tag 4 is listed more than once", err.Error())

	err = DuplicateAt(DuplicateIngredient, []uint64{1, 2})
	assert.Equal(t, -1, err.Index)
	assert.Equal(t, "ingredients: an ingredient is listed more than once", err.Error())
}
