// Package walletctl implements the weavekeeper admin command line: wallet
// inspection against the configured Arweave network and user administration.
package walletctl

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/dmitrijs2005/weavekeeper/internal/arweave"
	"github.com/dmitrijs2005/weavekeeper/internal/common"
	"github.com/dmitrijs2005/weavekeeper/internal/logging"
	"github.com/dmitrijs2005/weavekeeper/internal/server/config"
	"github.com/dmitrijs2005/weavekeeper/internal/server/credentials"
	"github.com/dmitrijs2005/weavekeeper/internal/server/repositories/repomanager"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

type App struct {
	cfg    *config.Config
	fs     afero.Fs
	logger logging.Logger

	// openRepos is a seam for tests.
	openRepos  func(ctx context.Context, dsn string) (repomanager.RepositoryManager, error)
	clientOpts []arweave.Option

	walletPath string
	node       string
}

func NewApp(cfg *config.Config, fsys afero.Fs, logger logging.Logger) *App {
	return &App{
		cfg:       cfg,
		fs:        fsys,
		logger:    logger,
		openRepos: repomanager.Open,
	}
}

// RootCommand builds the command tree. Persistent flags override the
// configuration loaded from the environment.
func (a *App) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "walletctl",
		Short:         "Inspect the upload wallet and administer weavekeeper users",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return a.applyNode()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfg.Environment, "env", a.cfg.Environment, "deployment environment: development, testnet or production")
	pf.StringVar(&a.cfg.DatabaseDSN, "database", a.cfg.DatabaseDSN, "database DSN (postgres://, mongodb://, memory://)")
	pf.StringVar(&a.node, "node", "", "Arweave node URL, overrides the environment default")
	pf.StringVarP(&a.walletPath, "wallet", "w", "", "JWK key file; by default the wallet is resolved like the server does")

	root.AddCommand(
		a.addressCommand(),
		a.balanceCommand(),
		a.generateCommand(),
		a.mintCommand(),
		a.usersCommand(),
	)
	return root
}

func (a *App) applyNode() error {
	if a.node == "" {
		return nil
	}
	u, err := url.Parse(a.node)
	if err != nil || u.Scheme == "" || u.Hostname() == "" {
		return fmt.Errorf("%w: bad node URL %q", common.ErrValidation, a.node)
	}
	a.cfg.ArweaveProtocol = u.Scheme
	a.cfg.ArweaveHost = u.Hostname()
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("%w: bad node port %q", common.ErrValidation, p)
		}
		a.cfg.ArweavePort = port
	}
	return nil
}

func (a *App) client() *arweave.Client {
	return arweave.NewClient(a.cfg.ArweaveEndpoint(), a.clientOpts...)
}

// wallet loads --wallet when given, otherwise resolves the wallet the way
// the server would for the configured environment.
func (a *App) wallet(ctx context.Context) (*arweave.Wallet, error) {
	if a.walletPath != "" {
		data, err := afero.ReadFile(a.fs, a.walletPath)
		if err != nil {
			return nil, fmt.Errorf("read wallet: %w", err)
		}
		return arweave.ParseJWK(data)
	}

	p := credentials.NewProvider(credentials.Settings{
		Development:   a.cfg.IsDevelopment(),
		WalletJWK:     a.cfg.ArweaveWalletJWK,
		TestWalletJWK: a.cfg.ArweaveTestWallet,
		DevWalletPath: a.cfg.DevWalletPath,
	}, a.fs, a.logger)
	return p.Wallet(ctx)
}
