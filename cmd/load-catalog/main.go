package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Rogue-Bear-Innovations/recipebook-back/internal/app"
	"github.com/Rogue-Bear-Innovations/recipebook-back/internal/catalogfile"
	"github.com/Rogue-Bear-Innovations/recipebook-back/internal/service"
)

var catalogPath string

var rootCmd = &cobra.Command{
	Use:   "load-catalog",
	Short: "Load reference ingredients and tags",
	Long:  `Load ingredients and tags from a .csv, .json or .yaml file. Rows already present are skipped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rows, err := catalogfile.Load(catalogPath)
		if err != nil {
			return err
		}

		var (
			catalog *service.Catalog
			logger  *zap.SugaredLogger
		)
		fxApp := fx.New(
			app.Base,
			fx.Provide(service.NewCatalog),
			fx.Populate(&catalog, &logger),
		)
		if err := fxApp.Err(); err != nil {
			return fmt.Errorf("build app: %w", err)
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
		defer cancel()
		if err := fxApp.Start(ctx); err != nil {
			return fmt.Errorf("start app: %w", err)
		}
		defer func() {
			if err := fxApp.Stop(context.Background()); err != nil {
				logger.Errorw("stop app", "error", err)
			}
		}()

		n, err := catalog.Import(ctx, rows)
		if err != nil {
			return err
		}
		logger.Infow("catalog loaded", "file", catalogPath, "inserted", n,
			"skipped", len(rows.Ingredients)+len(rows.Tags)-n)
		return nil
	},
}

func init() {
	rootCmd.Flags().StringVarP(&catalogPath, "file", "f", "data/ingredients.csv", "catalog file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
