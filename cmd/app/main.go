package main

import (
	"go.uber.org/fx"

	"github.com/Rogue-Bear-Innovations/recipebook-back/internal/app"
)

func main() {
	fx.New(app.Server).Run()
}
