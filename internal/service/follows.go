package service

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Rogue-Bear-Innovations/recipebook-back/internal/models"
)

type Follows struct {
	store  Store
	logger *zap.SugaredLogger
}

func NewFollows(store Store, l *zap.SugaredLogger) *Follows {
	return &Follows{
		store:  store,
		logger: l,
	}
}

func (s *Follows) Follow(ctx context.Context, user models.User, authorID uint64) (models.Author, error) {
	if user.ID == authorID {
		return models.Author{}, models.ErrSelfFollow
	}
	author, err := s.store.UserByID(ctx, authorID)
	if err != nil {
		return models.Author{}, err
	}
	if err := s.store.AddFollow(ctx, user.ID, authorID); err != nil {
		if errors.Is(err, models.ErrAlreadyExists) {
			return models.Author{}, models.ErrAlreadyExists
		}
		return models.Author{}, errors.Wrap(err, "add follow")
	}
	s.logger.Debugw("author followed", "user_id", user.ID, "author_id", authorID)
	return models.Author{User: author, IsSubscribed: true}, nil
}

func (s *Follows) Unfollow(ctx context.Context, user models.User, authorID uint64) error {
	if user.ID == authorID {
		return models.ErrSelfFollow
	}
	if _, err := s.store.UserByID(ctx, authorID); err != nil {
		return err
	}
	if err := s.store.RemoveFollow(ctx, user.ID, authorID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		return errors.Wrap(err, "remove follow")
	}
	s.logger.Debugw("author unfollowed", "user_id", user.ID, "author_id", authorID)
	return nil
}

// Subscriptions lists followed authors with their recipe counts and at most
// recipesLimit of their newest recipes; a non-positive limit keeps them all.
func (s *Follows) Subscriptions(ctx context.Context, user models.User, page, limit, recipesLimit int) (models.Page[models.Subscription], error) {
	offset := 0
	if page > 1 {
		offset = (page - 1) * limit
	}
	authors, err := s.store.FollowedAuthors(ctx, user.ID, limit, offset)
	if err != nil {
		return models.Page[models.Subscription]{}, errors.Wrap(err, "list followed authors")
	}

	res := models.Page[models.Subscription]{
		Count: authors.Count,
		Items: make([]models.Subscription, len(authors.Items)),
	}
	if len(authors.Items) == 0 {
		return res, nil
	}

	ids := make([]uint64, len(authors.Items))
	for i, a := range authors.Items {
		ids[i] = a.ID
	}
	recipes, err := s.store.RecipeSummariesByAuthors(ctx, ids)
	if err != nil {
		return models.Page[models.Subscription]{}, errors.Wrap(err, "list author recipes")
	}
	byAuthor := make(map[uint64][]models.RecipeSummary, len(ids))
	for _, r := range recipes {
		byAuthor[r.AuthorID] = append(byAuthor[r.AuthorID], r)
	}

	for i, a := range authors.Items {
		own := byAuthor[a.ID]
		sub := models.Subscription{
			Author:       models.Author{User: a, IsSubscribed: true},
			RecipesCount: int64(len(own)),
			Recipes:      own,
		}
		if recipesLimit > 0 && len(own) > recipesLimit {
			sub.Recipes = own[:recipesLimit]
		}
		if sub.Recipes == nil {
			sub.Recipes = []models.RecipeSummary{}
		}
		res.Items[i] = sub
	}
	return res, nil
}
