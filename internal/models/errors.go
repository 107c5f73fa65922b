package models

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrRecipeNotFound = &notFoundError{what: "recipe"}
	ErrUserNotFound   = &notFoundError{what: "user"}
	ErrAlreadyExists  = errors.New("already exists")
	ErrConflict       = errors.New("conflict")
	ErrForbidden      = errors.New("forbidden")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrSelfFollow     = &ValidationError{Field: "author", Message: "cannot subscribe to yourself"}
	ErrBadCredentials = &ValidationError{Field: "credentials", Message: "invalid email or password"}
)

type notFoundError struct {
	what string
}

func (e *notFoundError) Error() string { return e.what + " not found" }

func (e *notFoundError) Is(target error) bool { return target == ErrNotFound }

// ValidationError reports a malformed request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

type CompositionErrorKind int

const (
	EmptyIngredients CompositionErrorKind = iota + 1
	UnknownIngredient
	DuplicateIngredient
	InvalidAmount
	EmptyTags
	UnknownTag
	DuplicateTag
)

var compositionKindNames = map[CompositionErrorKind]string{
	EmptyIngredients:    "EmptyIngredients",
	UnknownIngredient:   "UnknownIngredient",
	DuplicateIngredient: "DuplicateIngredient",
	InvalidAmount:       "InvalidAmount",
	EmptyTags:           "EmptyTags",
	UnknownTag:          "UnknownTag",
	DuplicateTag:        "DuplicateTag",
}

func (k CompositionErrorKind) String() string {
	if name, ok := compositionKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("CompositionErrorKind(%d)", int(k))
}

// CompositionError rejects a recipe's ingredient or tag list. Index is the
// position of the offending item in the submitted list, -1 for list-level
// problems.
type CompositionError struct {
	Kind  CompositionErrorKind
	Index int
	ID    uint64
}

func NewCompositionError(kind CompositionErrorKind) *CompositionError {
	return &CompositionError{Kind: kind, Index: -1}
}

func (e *CompositionError) Error() string {
	if e.Index < 0 {
		return e.listError()
	}
	switch e.Kind {
	case EmptyIngredients:
		return "ingredients: at least one ingredient is required"
	case EmptyTags:
		return "tags: at least one tag is required"
	case UnknownIngredient:
		return fmt.Sprintf("ingredients[%d]: ingredient %d does not exist", e.Index, e.ID)
	case DuplicateIngredient:
		return fmt.Sprintf("ingredients[%d]: ingredient %d is listed more than once", e.Index, e.ID)
	case InvalidAmount:
		return fmt.Sprintf("ingredients[%d]: amount of ingredient %d is out of range", e.Index, e.ID)
	case UnknownTag:
		return fmt.Sprintf("tags[%d]: tag %d does not exist", e.Index, e.ID)
	case DuplicateTag:
		return fmt.Sprintf("tags[%d]: tag %d is listed more than once", e.Index, e.ID)
	default:
		return e.Kind.String()
	}
}

func (e *CompositionError) listError() string {
	switch e.Kind {
	case EmptyIngredients:
		return "ingredients: at least one ingredient is required"
	case EmptyTags:
		return "tags: at least one tag is required"
	case DuplicateIngredient:
		return "ingredients: an ingredient is listed more than once"
	case DuplicateTag:
		return "tags: a tag is listed more than once"
	case UnknownIngredient, InvalidAmount:
		return "ingredients: " + e.Kind.String()
	case UnknownTag:
		return "tags: " + e.Kind.String()
	default:
		return e.Kind.String()
	}
}

// Field names the request field the error belongs to.
func (e *CompositionError) Field() string {
	switch e.Kind {
	case EmptyTags, UnknownTag, DuplicateTag:
		return "tags"
	default:
		return "ingredients"
	}
}

// Is lets a duplicate caught by a unique key be handled as a conflict.
func (e *CompositionError) Is(target error) bool {
	return target == ErrConflict && (e.Kind == DuplicateIngredient || e.Kind == DuplicateTag)
}

// DuplicateAt reports the first repeated id in ids as a composition error of
// the given kind, or a list-level error when no id repeats.
func DuplicateAt(kind CompositionErrorKind, ids []uint64) *CompositionError {
	seen := make(map[uint64]bool, len(ids))
	for i, id := range ids {
		if seen[id] {
			return &CompositionError{Kind: kind, Index: i, ID: id}
		}
		seen[id] = true
	}
	return NewCompositionError(kind)
}

// StorageError wraps an unexpected persistence failure.
type StorageError struct {
	Op  string
	Err error
}

func NewStorageError(op string, err error) *StorageError {
	return &StorageError{Op: op, Err: err}
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func IsCompositionError(err error, kind CompositionErrorKind) bool {
	var ce *CompositionError
	return errors.As(err, &ce) && ce.Kind == kind
}
