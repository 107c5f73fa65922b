package service

import (
	"context"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Rogue-Bear-Innovations/recipebook-back/internal/models"
)

var shortLinkNamespace = uuid.MustParse("6f1d0c4e-2b7a-5d8e-9c3f-4a1b2c3d4e5f")

// LinkCache is an optional read-through cache of code -> full URL.
type LinkCache interface {
	Get(ctx context.Context, code string) (string, bool, error)
	Set(ctx context.Context, code, fullURL string, ttl time.Duration) error
	Delete(ctx context.Context, code string) error
}

type ShortLinks struct {
	store   Store
	cache   LinkCache
	siteURL string
	ttl     time.Duration
	logger  *zap.SugaredLogger
}

// NewShortLinks builds the service; cache may be nil.
func NewShortLinks(store Store, cache LinkCache, siteURL string, ttl time.Duration, l *zap.SugaredLogger) *ShortLinks {
	return &ShortLinks{
		store:   store,
		cache:   cache,
		siteURL: strings.TrimRight(siteURL, "/"),
		ttl:     ttl,
		logger:  l,
	}
}

// ShortCode derives the code of a recipe. The base36 tail is unique per id,
// the hashed head keeps consecutive codes from looking sequential.
func ShortCode(recipeID uint64) string {
	var raw [8]byte
	binary.BigEndian.PutUint64(raw[:], recipeID)
	head := strings.ReplaceAll(uuid.NewSHA1(shortLinkNamespace, raw[:]).String(), "-", "")[:4]
	return head + strconv.FormatUint(recipeID, 36)
}

func (s *ShortLinks) FullURL(recipeID uint64) string {
	return fmt.Sprintf("%s/recipes/%d", s.siteURL, recipeID)
}

func (s *ShortLinks) ShortURL(code string) string {
	return fmt.Sprintf("%s/s/%s", s.siteURL, code)
}

// GetOrCreate returns the recipe's link, creating it on first use. When two
// first requests race, the loser's insert conflict is answered by reading
// the winner's row.
func (s *ShortLinks) GetOrCreate(ctx context.Context, recipeID uint64) (models.ShortLink, error) {
	link, err := s.store.ShortLinkByRecipe(ctx, recipeID)
	if err == nil {
		return link, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return models.ShortLink{}, errors.Wrap(err, "find short link")
	}

	if _, err := s.store.RecipeSummaryByID(ctx, recipeID); err != nil {
		return models.ShortLink{}, err
	}

	link = models.ShortLink{
		RecipeID: recipeID,
		Code:     ShortCode(recipeID),
		FullURL:  s.FullURL(recipeID),
	}
	err = s.store.CreateShortLink(ctx, link)
	switch {
	case err == nil:
		s.logger.Debugw("short link created", "recipe_id", recipeID, "code", link.Code)
		return link, nil
	case errors.Is(err, models.ErrAlreadyExists):
		stored, err := s.store.ShortLinkByRecipe(ctx, recipeID)
		if err != nil {
			return models.ShortLink{}, errors.Wrap(err, "reread short link")
		}
		return stored, nil
	default:
		return models.ShortLink{}, errors.Wrap(err, "create short link")
	}
}

func (s *ShortLinks) Resolve(ctx context.Context, code string) (string, error) {
	if s.cache != nil {
		fullURL, ok, err := s.cache.Get(ctx, code)
		if err != nil {
			s.logger.Warnw("short link cache read failed", "code", code, "error", err)
		} else if ok {
			return fullURL, nil
		}
	}

	link, err := s.store.ShortLinkByCode(ctx, code)
	if err != nil {
		return "", err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, code, link.FullURL, s.ttl); err != nil {
			s.logger.Warnw("short link cache write failed", "code", code, "error", err)
		}
	}
	return link.FullURL, nil
}

// Forget drops the cached redirect of a recipe. The stored link row goes
// away with the recipe itself.
func (s *ShortLinks) Forget(ctx context.Context, recipeID uint64) {
	if s.cache == nil {
		return
	}
	code := ShortCode(recipeID)
	if err := s.cache.Delete(ctx, code); err != nil {
		s.logger.Warnw("short link cache evict failed", "recipe_id", recipeID, "code", code, "error", err)
	}
}
