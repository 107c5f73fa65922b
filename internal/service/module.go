package service

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Rogue-Bear-Innovations/recipebook-back/internal/config"
)

var (
	Module = fx.Provide(
		NewAccounts,
		NewCatalog,
		NewMemberships,
		NewFollows,
		func(store Store, cfg *config.Config, links *ShortLinks, l *zap.SugaredLogger) *Recipes {
			return NewRecipes(store, cfg.Limits, l).WithShortLinks(links)
		},
		func(store Store, cache LinkCache, cfg *config.Config, l *zap.SugaredLogger) *ShortLinks {
			return NewShortLinks(store, cache, cfg.SiteURL, cfg.CacheTTL, l)
		},
	)
)
