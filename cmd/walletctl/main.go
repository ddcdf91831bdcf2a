package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dmitrijs2005/weavekeeper/internal/logging"
	"github.com/dmitrijs2005/weavekeeper/internal/server/config"
	"github.com/dmitrijs2005/weavekeeper/internal/walletctl"
	"github.com/joho/godotenv"
	"github.com/spf13/afero"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadEnvConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := logging.New("text", "warn", os.Stderr)
	app := walletctl.NewApp(cfg, afero.NewOsFs(), logger)

	if err := app.RootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
