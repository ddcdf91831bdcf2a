// Package server initializes and runs the weavekeeper backend.
// It opens the ledger database, resolves the signing wallet lazily, wires the
// upload services and serves the HTTP API until a shutdown signal arrives.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/weavekeeper/internal/arweave"
	"github.com/dmitrijs2005/weavekeeper/internal/logging"
	"github.com/dmitrijs2005/weavekeeper/internal/server/auth"
	"github.com/dmitrijs2005/weavekeeper/internal/server/blobstore"
	"github.com/dmitrijs2005/weavekeeper/internal/server/config"
	"github.com/dmitrijs2005/weavekeeper/internal/server/credentials"
	"github.com/dmitrijs2005/weavekeeper/internal/server/httpapi"
	"github.com/dmitrijs2005/weavekeeper/internal/server/metrics"
	"github.com/dmitrijs2005/weavekeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/weavekeeper/internal/server/services"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

type App struct {
	config *config.Config
	logger logging.Logger
	repos  repomanager.RepositoryManager
	server *httpapi.Server
	reaper *services.Reaper
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.New(c.LogFormat, c.LogLevel, os.Stdout)

	if err := c.Validate(); err != nil {
		return nil, err
	}

	repos, err := repomanager.Open(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := repos.RunMigrations(ctx); err != nil {
		_ = repos.Close(ctx)
		return nil, fmt.Errorf("db migration error: %w", err)
	}

	app, err := wire(ctx, c, logger, repos)
	if err != nil {
		_ = repos.Close(ctx)
		return nil, err
	}
	return app, nil
}

func wire(ctx context.Context, c *config.Config, logger logging.Logger, repos repomanager.RepositoryManager) (*App, error) {
	tokens, err := auth.NewTokenService(c.SecretKey)
	if err != nil {
		return nil, err
	}

	m, err := metrics.New("", nil)
	if err != nil {
		return nil, fmt.Errorf("metrics init error: %w", err)
	}

	blobs, err := newBlobStore(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("blob store init error: %w", err)
	}

	wallets := credentials.NewProvider(credentials.Settings{
		Development:   c.IsDevelopment(),
		WalletJWK:     c.ArweaveWalletJWK,
		TestWalletJWK: c.ArweaveTestWallet,
		DevWalletPath: c.DevWalletPath,
	}, afero.NewOsFs(), logger)

	client := arweave.NewClient(c.ArweaveEndpoint())
	network := services.NewArweaveNetwork(client, wallets, m)
	prices := services.NewPriceEstimator(client, c.PriceCacheSize, c.PriceCacheTTL, m)

	us := services.NewUserService(repos.Users(), tokens, logger)
	ups := services.NewUploadService(repos.Uploads(), network, prices, blobs, m, logger)

	h := httpapi.NewHandler(us, ups, m, logger, httpapi.Options{
		MaxUploadSize:  c.MaxUploadSize,
		AllowedOrigins: c.CORSAllowedOrigins,
	})

	return &App{
		config: c,
		logger: logger,
		repos:  repos,
		server: httpapi.NewServer(c.EndpointAddrHTTP, h.Routes(), logger),
		reaper: services.NewReaper(repos.Uploads(), c.ReaperInterval, c.ProcessingTimeout, m, logger),
	}, nil
}

func newBlobStore(ctx context.Context, c *config.Config) (blobstore.Store, error) {
	if c.BlobBackend == "s3" {
		return blobstore.NewS3Store(ctx, blobstore.S3Options{
			Region:       c.S3Region,
			AccessKey:    c.S3RootUser,
			SecretKey:    c.S3RootPassword,
			Bucket:       c.S3Bucket,
			BaseEndpoint: c.S3BaseEndpoint,
		})
	}
	return blobstore.NewFSStore(afero.NewOsFs(), c.BlobDir)
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves until ctx is cancelled, a shutdown signal arrives or a
// component fails. The database is closed on the way out.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "environment", app.config.Environment)

	app.initSignalHandler(cancelFunc)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return app.server.Run(gctx)
	})

	if app.reaper.Enabled() {
		g.Go(func() error {
			return app.reaper.Run(gctx)
		})
	}

	err := g.Wait()

	if cerr := app.repos.Close(context.WithoutCancel(ctx)); cerr != nil {
		app.logger.Error(ctx, "db close error", "error", cerr)
	}
	app.logger.Info(ctx, "App stopped")
	return err
}
