package db

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/Rogue-Bear-Innovations/recipebook-back/internal/models"
)

// GormStore persists the domain in a relational database through gorm.
// The database must be opened with TranslateError enabled so constraint
// violations surface as gorm.ErrDuplicatedKey.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

// translate maps gorm errors onto the storage contract.
func translate(op string, err error, notFound error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return notFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return models.ErrAlreadyExists
	default:
		return models.NewStorageError(op, err)
	}
}

func (s *GormStore) CreateAccount(ctx context.Context, account *models.Account) error {
	row := User{
		Email:     account.Email,
		Username:  account.Username,
		FirstName: account.FirstName,
		LastName:  account.LastName,
		Password:  account.PasswordHash,
		Token:     account.Token,
	}
	if err := s.conn(ctx).Create(&row).Error; err != nil {
		return translate("create user", err, models.ErrUserNotFound)
	}
	account.ID = row.ID
	return nil
}

func (s *GormStore) AccountByEmail(ctx context.Context, email string) (models.Account, error) {
	row := User{}
	if err := s.conn(ctx).Where("email = ?", email).First(&row).Error; err != nil {
		return models.Account{}, translate("find user by email", err, models.ErrUserNotFound)
	}
	return models.Account{
		User:         row.toModel(),
		PasswordHash: row.Password,
		Token:        row.Token,
	}, nil
}

func (s *GormStore) UserByToken(ctx context.Context, token string) (models.User, error) {
	row := User{}
	if err := s.conn(ctx).Where("token = ?", token).First(&row).Error; err != nil {
		return models.User{}, translate("find user by token", err, models.ErrUserNotFound)
	}
	return row.toModel(), nil
}

func (s *GormStore) UserByID(ctx context.Context, id uint64) (models.User, error) {
	row := User{}
	if err := s.conn(ctx).First(&row, id).Error; err != nil {
		return models.User{}, translate("find user", err, models.ErrUserNotFound)
	}
	return row.toModel(), nil
}

func (s *GormStore) SetToken(ctx context.Context, userID uint64, token string) error {
	res := s.conn(ctx).Model(&User{}).Where("id = ?", userID).Update("token", token)
	if res.Error != nil {
		return translate("update token", res.Error, models.ErrUserNotFound)
	}
	if res.RowsAffected == 0 {
		return models.ErrUserNotFound
	}
	return nil
}

func (u User) toModel() models.User {
	return models.User{
		ID:        u.ID,
		Email:     u.Email,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}
