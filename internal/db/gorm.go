package db

import (
	"log"
	"os"
	"time"

	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Rogue-Bear-Innovations/recipebook-back/internal/config"
)

type (
	GormForkedModel struct {
		ID        uint64 `gorm:"primarykey"`
		CreatedAt time.Time
		UpdatedAt time.Time
	}

	User struct {
		GormForkedModel
		Email     string `gorm:"unique;not null"`
		Username  string `gorm:"unique;not null"`
		FirstName string
		LastName  string
		Password  string `gorm:"not null"`
		Token     string `gorm:"not null;index"`
	}

	Ingredient struct {
		ID              uint64 `gorm:"primarykey"`
		Name            string `gorm:"not null;size:128;uniqueIndex:uidx_ingredient_name_unit"`
		MeasurementUnit string `gorm:"not null;size:64;uniqueIndex:uidx_ingredient_name_unit"`
	}

	Tag struct {
		ID   uint64 `gorm:"primarykey"`
		Name string `gorm:"not null;unique;size:64"`
		Slug string `gorm:"not null;unique;size:64"`
	}

	Recipe struct {
		GormForkedModel
		AuthorID    uint64 `gorm:"not null;index"`
		Name        string `gorm:"not null;size:256"`
		Image       *string
		Text        string `gorm:"not null"`
		CookingTime int    `gorm:"not null"`
	}

	RecipeIngredient struct {
		ID           uint64 `gorm:"primarykey"`
		RecipeID     uint64 `gorm:"not null;uniqueIndex:uidx_recipe_ingredient"`
		IngredientID uint64 `gorm:"not null;uniqueIndex:uidx_recipe_ingredient;index"`
		Amount       int    `gorm:"not null"`
	}

	RecipeTag struct {
		RecipeID uint64 `gorm:"primaryKey"`
		TagID    uint64 `gorm:"primaryKey;index"`
	}

	Favorite struct {
		ID        uint64 `gorm:"primarykey"`
		UserID    uint64 `gorm:"not null;uniqueIndex:uidx_favorite_user_recipe"`
		RecipeID  uint64 `gorm:"not null;uniqueIndex:uidx_favorite_user_recipe;index"`
		CreatedAt time.Time
	}

	ShoppingCartItem struct {
		ID        uint64 `gorm:"primarykey"`
		UserID    uint64 `gorm:"not null;uniqueIndex:uidx_cart_user_recipe"`
		RecipeID  uint64 `gorm:"not null;uniqueIndex:uidx_cart_user_recipe;index"`
		CreatedAt time.Time
	}

	Follow struct {
		ID        uint64 `gorm:"primarykey"`
		UserID    uint64 `gorm:"not null;uniqueIndex:uidx_follow_user_author;check:chk_follow_not_self,user_id <> author_id"`
		AuthorID  uint64 `gorm:"not null;uniqueIndex:uidx_follow_user_author;index"`
		CreatedAt time.Time
	}

	ShortLink struct {
		ID       uint64 `gorm:"primarykey"`
		RecipeID uint64 `gorm:"not null;unique"`
		ShortURL string `gorm:"not null;unique;size:32"`
		FullURL  string `gorm:"not null;unique"`
	}
)

var allModels = []interface{}{
	&User{},
	&Ingredient{},
	&Tag{},
	&Recipe{},
	&RecipeIngredient{},
	&RecipeTag{},
	&Favorite{},
	&ShoppingCartItem{},
	&Follow{},
	&ShortLink{},
}

func NewGormClient(cfg *config.Config) (*gorm.DB, error) {
	newLogger := logger.New(log.New(os.Stdout, "\r\n", log.LstdFlags), logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logger.Warn,
		Colorful:                  cfg.LogDev,
		IgnoreRecordNotFoundError: true,
	})

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:         newLogger,
		TranslateError: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect database")
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

func Migrate(db *gorm.DB) error {
	for _, model := range allModels {
		if err := db.AutoMigrate(model); err != nil {
			return errors.Wrapf(err, "migrate %T", model)
		}
	}
	return nil
}
