package db

import (
	"cmp"
	"context"
	"iter"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Rogue-Bear-Innovations/recipebook-back/internal/models"
)

type (
	memberKey struct {
		userID   uint64
		targetID uint64
	}

	memRecipe struct {
		models.Recipe
		ingredientIDs []uint64
		amounts       []int
		tagIDs        []uint64
	}

	memFollow struct {
		key     memberKey
		created time.Time
		seq     uint64
	}
)

// MemoryStore keeps the whole domain in process memory behind one lock.
// Every write holds the lock for its full duration, which gives the same
// all-or-nothing visibility the relational store gets from transactions.
type MemoryStore struct {
	mu  sync.RWMutex
	seq uint64

	accounts    map[uint64]models.Account
	ingredients map[uint64]models.Ingredient
	tags        map[uint64]models.Tag
	recipes     map[uint64]*memRecipe
	favorites   map[memberKey]struct{}
	carts       map[memberKey]struct{}
	follows     map[memberKey]memFollow
	shortLinks  map[uint64]models.ShortLink
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:    map[uint64]models.Account{},
		ingredients: map[uint64]models.Ingredient{},
		tags:        map[uint64]models.Tag{},
		recipes:     map[uint64]*memRecipe{},
		favorites:   map[memberKey]struct{}{},
		carts:       map[memberKey]struct{}{},
		follows:     map[memberKey]memFollow{},
		shortLinks:  map[uint64]models.ShortLink{},
	}
}

func (s *MemoryStore) nextID() uint64 {
	s.seq++
	return s.seq
}

func (s *MemoryStore) CreateAccount(_ context.Context, account *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.accounts {
		if a.Email == account.Email || a.Username == account.Username {
			return models.ErrAlreadyExists
		}
	}
	account.ID = s.nextID()
	s.accounts[account.ID] = *account
	return nil
}

func (s *MemoryStore) AccountByEmail(_ context.Context, email string) (models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.accounts {
		if a.Email == email {
			return a, nil
		}
	}
	return models.Account{}, models.ErrUserNotFound
}

func (s *MemoryStore) UserByToken(_ context.Context, token string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.accounts {
		if a.Token == token {
			return a.User, nil
		}
	}
	return models.User{}, models.ErrUserNotFound
}

func (s *MemoryStore) UserByID(_ context.Context, id uint64) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[id]
	if !ok {
		return models.User{}, models.ErrUserNotFound
	}
	return a.User, nil
}

func (s *MemoryStore) SetToken(_ context.Context, userID uint64, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[userID]
	if !ok {
		return models.ErrUserNotFound
	}
	a.Token = token
	s.accounts[userID] = a
	return nil
}

func (s *MemoryStore) ListIngredients(_ context.Context, namePrefix string) ([]models.Ingredient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prefix := strings.ToLower(namePrefix)
	res := make([]models.Ingredient, 0, len(s.ingredients))
	for _, ing := range s.ingredients {
		if strings.HasPrefix(strings.ToLower(ing.Name), prefix) {
			res = append(res, ing)
		}
	}
	slices.SortFunc(res, func(a, b models.Ingredient) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.MeasurementUnit, b.MeasurementUnit))
	})
	return res, nil
}

func (s *MemoryStore) IngredientByID(_ context.Context, id uint64) (models.Ingredient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ing, ok := s.ingredients[id]
	if !ok {
		return models.Ingredient{}, models.ErrNotFound
	}
	return ing, nil
}

func (s *MemoryStore) ListTags(_ context.Context) ([]models.Tag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := make([]models.Tag, 0, len(s.tags))
	for _, tag := range s.tags {
		res = append(res, tag)
	}
	slices.SortFunc(res, func(a, b models.Tag) int { return cmp.Compare(a.Name, b.Name) })
	return res, nil
}

func (s *MemoryStore) TagByID(_ context.Context, id uint64) (models.Tag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tag, ok := s.tags[id]
	if !ok {
		return models.Tag{}, models.ErrNotFound
	}
	return tag, nil
}

func (s *MemoryStore) ExistingIngredientIDs(_ context.Context, ids []uint64) (map[uint64]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	found := make(map[uint64]bool, len(ids))
	for _, id := range ids {
		if _, ok := s.ingredients[id]; ok {
			found[id] = true
		}
	}
	return found, nil
}

func (s *MemoryStore) ExistingTagIDs(_ context.Context, ids []uint64) (map[uint64]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	found := make(map[uint64]bool, len(ids))
	for _, id := range ids {
		if _, ok := s.tags[id]; ok {
			found[id] = true
		}
	}
	return found, nil
}

func (s *MemoryStore) ImportCatalog(_ context.Context, catalog models.Catalog) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := 0
	for _, ing := range catalog.Ingredients {
		dup := false
		for _, existing := range s.ingredients {
			if existing.Name == ing.Name && existing.MeasurementUnit == ing.MeasurementUnit {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		ing.ID = s.nextID()
		s.ingredients[ing.ID] = ing
		inserted++
	}
	for _, tag := range catalog.Tags {
		dup := false
		for _, existing := range s.tags {
			if existing.Name == tag.Name || existing.Slug == tag.Slug {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		tag.ID = s.nextID()
		s.tags[tag.ID] = tag
		inserted++
	}
	return inserted, nil
}

func (s *MemoryStore) CreateRecipe(_ context.Context, recipe *models.Recipe) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.composition(recipe)
	if err != nil {
		return err
	}
	stored.ID = s.nextID()
	stored.CreatedAt = time.Now()
	s.recipes[stored.ID] = stored

	recipe.ID = stored.ID
	recipe.CreatedAt = stored.CreatedAt
	return nil
}

func (s *MemoryStore) ReplaceRecipe(_ context.Context, recipe *models.Recipe) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.recipes[recipe.ID]
	if !ok {
		return models.ErrRecipeNotFound
	}
	stored, err := s.composition(recipe)
	if err != nil {
		return err
	}
	stored.ID = current.ID
	stored.AuthorID = current.AuthorID
	stored.CreatedAt = current.CreatedAt
	s.recipes[stored.ID] = stored
	return nil
}

// composition enforces the same keys the relational schema does.
func (s *MemoryStore) composition(recipe *models.Recipe) (*memRecipe, error) {
	stored := &memRecipe{Recipe: models.Recipe{
		AuthorID:    recipe.AuthorID,
		Name:        recipe.Name,
		Image:       recipe.Image,
		Text:        recipe.Text,
		CookingTime: recipe.CookingTime,
	}}

	seen := make(map[uint64]bool, len(recipe.Ingredients))
	for i, ing := range recipe.Ingredients {
		if seen[ing.ID] {
			return nil, &models.CompositionError{Kind: models.DuplicateIngredient, Index: i, ID: ing.ID}
		}
		if _, ok := s.ingredients[ing.ID]; !ok {
			return nil, models.NewStorageError("insert ingredients", models.ErrNotFound)
		}
		seen[ing.ID] = true
		stored.ingredientIDs = append(stored.ingredientIDs, ing.ID)
		stored.amounts = append(stored.amounts, ing.Amount)
	}
	seenTags := make(map[uint64]bool, len(recipe.Tags))
	for i, tag := range recipe.Tags {
		if seenTags[tag.ID] {
			return nil, &models.CompositionError{Kind: models.DuplicateTag, Index: i, ID: tag.ID}
		}
		if _, ok := s.tags[tag.ID]; !ok {
			return nil, models.NewStorageError("insert tags", models.ErrNotFound)
		}
		seenTags[tag.ID] = true
		stored.tagIDs = append(stored.tagIDs, tag.ID)
	}
	return stored, nil
}

func (s *MemoryStore) DeleteRecipe(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.recipes[id]; !ok {
		return models.ErrRecipeNotFound
	}
	delete(s.recipes, id)
	delete(s.shortLinks, id)
	for key := range s.favorites {
		if key.targetID == id {
			delete(s.favorites, key)
		}
	}
	for key := range s.carts {
		if key.targetID == id {
			delete(s.carts, key)
		}
	}
	return nil
}

func (s *MemoryStore) RecipeSummaryByID(_ context.Context, id uint64) (models.RecipeSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.recipes[id]
	if !ok {
		return models.RecipeSummary{}, models.ErrRecipeNotFound
	}
	return r.Summary(), nil
}

func (s *MemoryStore) RecipeByID(_ context.Context, viewer models.Viewer, id uint64) (models.AnnotatedRecipe, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.recipes[id]
	if !ok {
		return models.AnnotatedRecipe{}, models.ErrRecipeNotFound
	}
	return s.annotate(viewer, r), nil
}

func (s *MemoryStore) ListRecipes(_ context.Context, viewer models.Viewer, filter models.RecipeFilter) (models.Page[models.AnnotatedRecipe], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]models.AnnotatedRecipe, 0)
	for _, r := range s.recipes {
		if filter.AuthorID != 0 && r.AuthorID != filter.AuthorID {
			continue
		}
		if len(filter.TagSlugs) > 0 && !s.hasAnyTag(r, filter.TagSlugs) {
			continue
		}
		a := s.annotate(viewer, r)
		if !viewer.Anonymous() {
			if filter.IsFavorited != nil && *filter.IsFavorited && !a.Flags.IsFavorited {
				continue
			}
			if filter.IsInCart != nil && *filter.IsInCart && !a.Flags.IsInCart {
				continue
			}
		}
		matched = append(matched, a)
	}
	slices.SortFunc(matched, func(a, b models.AnnotatedRecipe) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), cmp.Compare(b.ID, a.ID))
	})

	page := models.Page[models.AnnotatedRecipe]{Count: int64(len(matched)), Items: matched}
	if filter.Limit > 0 {
		from := min(filter.Offset(), len(matched))
		to := min(from+filter.Limit, len(matched))
		page.Items = matched[from:to]
	}
	return page, nil
}

func (s *MemoryStore) hasAnyTag(r *memRecipe, slugs []string) bool {
	for _, id := range r.tagIDs {
		if slices.Contains(slugs, s.tags[id].Slug) {
			return true
		}
	}
	return false
}

func (s *MemoryStore) annotate(viewer models.Viewer, r *memRecipe) models.AnnotatedRecipe {
	res := models.AnnotatedRecipe{Recipe: r.Recipe}
	res.Author.User = s.accounts[r.AuthorID].User

	res.Ingredients = make([]models.RecipeIngredient, len(r.ingredientIDs))
	for i, id := range r.ingredientIDs {
		res.Ingredients[i] = models.RecipeIngredient{Ingredient: s.ingredients[id], Amount: r.amounts[i]}
	}
	res.Tags = make([]models.Tag, len(r.tagIDs))
	for i, id := range r.tagIDs {
		res.Tags[i] = s.tags[id]
	}
	slices.SortFunc(res.Tags, func(a, b models.Tag) int { return cmp.Compare(a.Name, b.Name) })

	if viewer.Anonymous() {
		return res
	}
	key := memberKey{userID: viewer.UserID, targetID: r.ID}
	_, res.Flags.IsFavorited = s.favorites[key]
	_, res.Flags.IsInCart = s.carts[key]
	_, res.Author.IsSubscribed = s.follows[memberKey{userID: viewer.UserID, targetID: r.AuthorID}]
	return res
}

func (s *MemoryStore) RecipeSummariesByAuthors(_ context.Context, authorIDs []uint64) ([]models.RecipeSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := make([]models.RecipeSummary, 0)
	for _, r := range s.recipes {
		if slices.Contains(authorIDs, r.AuthorID) {
			res = append(res, r.Summary())
		}
	}
	slices.SortFunc(res, func(a, b models.RecipeSummary) int {
		return cmp.Or(
			cmp.Compare(a.AuthorID, b.AuthorID),
			b.CreatedAt.Compare(a.CreatedAt),
			cmp.Compare(b.ID, a.ID),
		)
	})
	return res, nil
}

func (s *MemoryStore) memberships(kind models.RelationKind) (map[memberKey]struct{}, error) {
	switch kind {
	case models.RelationFavorite:
		return s.favorites, nil
	case models.RelationCart:
		return s.carts, nil
	default:
		return nil, models.NewStorageError("membership", errUnknownRelation(kind))
	}
}

func (s *MemoryStore) AddMembership(_ context.Context, kind models.RelationKind, userID, recipeID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, err := s.memberships(kind)
	if err != nil {
		return err
	}
	key := memberKey{userID: userID, targetID: recipeID}
	if _, ok := set[key]; ok {
		return models.ErrAlreadyExists
	}
	set[key] = struct{}{}
	return nil
}

func (s *MemoryStore) RemoveMembership(_ context.Context, kind models.RelationKind, userID, recipeID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, err := s.memberships(kind)
	if err != nil {
		return err
	}
	key := memberKey{userID: userID, targetID: recipeID}
	if _, ok := set[key]; !ok {
		return models.ErrNotFound
	}
	delete(set, key)
	return nil
}

// ShoppingList aggregates under the read lock and yields after releasing it.
func (s *MemoryStore) ShoppingList(_ context.Context, userID uint64) iter.Seq2[models.ShoppingLine, error] {
	return func(yield func(models.ShoppingLine, error) bool) {
		type groupKey struct{ name, unit string }

		s.mu.RLock()
		totals := map[groupKey]int64{}
		for key := range s.carts {
			if key.userID != userID {
				continue
			}
			r, ok := s.recipes[key.targetID]
			if !ok {
				continue
			}
			for i, id := range r.ingredientIDs {
				ing := s.ingredients[id]
				totals[groupKey{ing.Name, ing.MeasurementUnit}] += int64(r.amounts[i])
			}
		}
		s.mu.RUnlock()

		lines := make([]models.ShoppingLine, 0, len(totals))
		for k, total := range totals {
			lines = append(lines, models.ShoppingLine{Name: k.name, MeasurementUnit: k.unit, Total: total})
		}
		slices.SortFunc(lines, func(a, b models.ShoppingLine) int {
			return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.MeasurementUnit, b.MeasurementUnit))
		})
		for _, line := range lines {
			if !yield(line, nil) {
				return
			}
		}
	}
}

func (s *MemoryStore) AddFollow(_ context.Context, userID, authorID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memberKey{userID: userID, targetID: authorID}
	if _, ok := s.follows[key]; ok {
		return models.ErrAlreadyExists
	}
	s.follows[key] = memFollow{key: key, created: time.Now(), seq: s.nextID()}
	return nil
}

func (s *MemoryStore) RemoveFollow(_ context.Context, userID, authorID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memberKey{userID: userID, targetID: authorID}
	if _, ok := s.follows[key]; !ok {
		return models.ErrNotFound
	}
	delete(s.follows, key)
	return nil
}

func (s *MemoryStore) IsFollowing(_ context.Context, userID, authorID uint64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.follows[memberKey{userID: userID, targetID: authorID}]
	return ok, nil
}

func (s *MemoryStore) FollowedAuthors(_ context.Context, userID uint64, limit, offset int) (models.Page[models.User], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	follows := make([]memFollow, 0)
	for key, f := range s.follows {
		if key.userID == userID {
			follows = append(follows, f)
		}
	}
	slices.SortFunc(follows, func(a, b memFollow) int {
		return cmp.Or(b.created.Compare(a.created), cmp.Compare(b.seq, a.seq))
	})

	page := models.Page[models.User]{Count: int64(len(follows)), Items: []models.User{}}
	if limit > 0 {
		from := min(offset, len(follows))
		follows = follows[from:min(from+limit, len(follows))]
	}
	for _, f := range follows {
		page.Items = append(page.Items, s.accounts[f.key.targetID].User)
	}
	return page, nil
}

func (s *MemoryStore) ShortLinkByRecipe(_ context.Context, recipeID uint64) (models.ShortLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	link, ok := s.shortLinks[recipeID]
	if !ok {
		return models.ShortLink{}, models.ErrNotFound
	}
	return link, nil
}

func (s *MemoryStore) ShortLinkByCode(_ context.Context, code string) (models.ShortLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, link := range s.shortLinks {
		if link.Code == code {
			return link, nil
		}
	}
	return models.ShortLink{}, models.ErrNotFound
}

func (s *MemoryStore) CreateShortLink(_ context.Context, link models.ShortLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.shortLinks {
		if existing.RecipeID == link.RecipeID || existing.Code == link.Code || existing.FullURL == link.FullURL {
			return models.ErrAlreadyExists
		}
	}
	s.shortLinks[link.RecipeID] = link
	return nil
}

// ShortLinkCount reports how many links are stored.
func (s *MemoryStore) ShortLinkCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.shortLinks)
}
