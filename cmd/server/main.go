package main

import (
	"context"
	"log"

	"github.com/dmitrijs2005/weavekeeper/internal/server"
	"github.com/dmitrijs2005/weavekeeper/internal/server/config"
	"github.com/joho/godotenv"
)

func main() {
	// A missing .env file is fine; the environment may already be set.
	_ = godotenv.Load()

	ctx := context.Background()
	cfg := config.LoadConfig()
	app, err := server.NewApp(ctx, cfg)

	if err != nil {
		log.Fatalf("%v", err)
	}

	if err := app.Run(ctx); err != nil {
		log.Fatalf("%v", err)
	}
}
