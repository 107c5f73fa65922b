package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/Rogue-Bear-Innovations/recipebook-back/internal/models"
)

type Registration struct {
	Email     string
	Username  string
	FirstName string
	LastName  string
	Password  string
}

// Accounts issues and checks the opaque tokens requests authenticate with.
type Accounts struct {
	store      Store
	bcryptCost int
	logger     *zap.SugaredLogger
}

func NewAccounts(store Store, l *zap.SugaredLogger) *Accounts {
	return &Accounts{
		store:      store,
		bcryptCost: bcrypt.DefaultCost,
		logger:     l,
	}
}

// WithBcryptCost is meant for tests, where the default cost is too slow.
func (s *Accounts) WithBcryptCost(cost int) *Accounts {
	s.bcryptCost = cost
	return s
}

func (s *Accounts) Register(ctx context.Context, reg Registration) (models.Account, error) {
	hash, err := s.bcryptGen(reg.Password)
	if err != nil {
		return models.Account{}, errors.Wrap(err, "bcryptGen")
	}
	account := models.Account{
		User: models.User{
			Email:     strings.ToLower(strings.TrimSpace(reg.Email)),
			Username:  strings.TrimSpace(reg.Username),
			FirstName: reg.FirstName,
			LastName:  reg.LastName,
		},
		PasswordHash: hash,
		Token:        uuid.New().String(),
	}
	if err := s.store.CreateAccount(ctx, &account); err != nil {
		if errors.Is(err, models.ErrAlreadyExists) {
			return models.Account{}, models.ErrAlreadyExists
		}
		return models.Account{}, errors.Wrap(err, "create account")
	}
	s.logger.Infow("user registered", "user_id", account.ID)
	return account, nil
}

// Login checks the password and rotates the user's token.
func (s *Accounts) Login(ctx context.Context, email, pass string) (string, error) {
	account, err := s.store.AccountByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return "", models.ErrBadCredentials
		}
		return "", err
	}

	if err := s.bcryptCheck(account.PasswordHash, pass); err != nil {
		return "", models.ErrBadCredentials
	}

	token := uuid.New().String()
	if err := s.store.SetToken(ctx, account.ID, token); err != nil {
		return "", errors.Wrap(err, "update token")
	}
	return token, nil
}

func (s *Accounts) Authenticate(ctx context.Context, token string) (models.User, error) {
	if token == "" {
		return models.User{}, models.ErrUnauthorized
	}
	user, err := s.store.UserByToken(ctx, token)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.User{}, models.ErrUnauthorized
		}
		return models.User{}, err
	}
	return user, nil
}

// GetUser returns the user as seen by viewer.
func (s *Accounts) GetUser(ctx context.Context, viewer models.Viewer, id uint64) (models.Author, error) {
	user, err := s.store.UserByID(ctx, id)
	if err != nil {
		return models.Author{}, err
	}
	res := models.Author{User: user}
	if viewer.Anonymous() || viewer.UserID == id {
		return res, nil
	}
	res.IsSubscribed, err = s.store.IsFollowing(ctx, viewer.UserID, id)
	if err != nil {
		return models.Author{}, errors.Wrap(err, "check follow")
	}
	return res, nil
}

func (s *Accounts) bcryptGen(pass string) (string, error) {
	passwordHashB, err := bcrypt.GenerateFromPassword([]byte(pass), s.bcryptCost)
	if err != nil {
		return "", errors.Wrap(err, "generate password hash")
	}
	return string(passwordHashB), nil
}

func (s *Accounts) bcryptCheck(hash, pass string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pass))
}
