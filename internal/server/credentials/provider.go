// Package credentials resolves the Arweave wallet that signs uploads.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"

	"github.com/dmitrijs2005/weavekeeper/internal/arweave"
	"github.com/dmitrijs2005/weavekeeper/internal/common"
	"github.com/dmitrijs2005/weavekeeper/internal/logging"
	"github.com/spf13/afero"
)

// Settings selects where the wallet comes from.
//
// In development the wallet is TestWalletJWK when it parses, otherwise a key
// file at DevWalletPath, generated on first use. Other environments require
// WalletJWK.
type Settings struct {
	Development   bool
	WalletJWK     string
	TestWalletJWK string
	DevWalletPath string
	KeyBits       int
}

// Provider resolves the signing wallet once and caches it.
type Provider struct {
	settings Settings
	fs       afero.Fs
	logger   logging.Logger
	generate func(bits int) (*arweave.Wallet, error)

	mu     sync.Mutex
	wallet *arweave.Wallet
}

func NewProvider(s Settings, fsys afero.Fs, logger logging.Logger) *Provider {
	if s.KeyBits == 0 {
		s.KeyBits = arweave.DefaultKeyBits
	}
	return &Provider{
		settings: s,
		fs:       fsys,
		logger:   logger.With("module", "credentials"),
		generate: arweave.GenerateWallet,
	}
}

// Wallet returns the signing wallet. Missing or malformed production
// credentials are reported as common.ErrConfig.
func (p *Provider) Wallet(ctx context.Context) (*arweave.Wallet, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.wallet != nil {
		return p.wallet, nil
	}

	var (
		w   *arweave.Wallet
		err error
	)
	if p.settings.Development {
		w, err = p.developmentWallet(ctx)
	} else {
		w, err = p.productionWallet()
	}
	if err != nil {
		return nil, err
	}

	p.wallet = w
	p.logger.Info(ctx, "wallet loaded", "address", w.Address())
	return w, nil
}

func (p *Provider) productionWallet() (*arweave.Wallet, error) {
	if p.settings.WalletJWK == "" {
		return nil, fmt.Errorf("%w: ARWEAVE_WALLET_JWK is required outside development", common.ErrConfig)
	}
	w, err := arweave.ParseJWK([]byte(p.settings.WalletJWK))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrConfig, err)
	}
	return w, nil
}

func (p *Provider) developmentWallet(ctx context.Context) (*arweave.Wallet, error) {
	if p.settings.TestWalletJWK != "" {
		w, err := arweave.ParseJWK([]byte(p.settings.TestWalletJWK))
		if err == nil {
			return w, nil
		}
		p.logger.Warn(ctx, "test wallet is not a valid JWK, falling back to key file", "error", err)
	}

	path := p.settings.DevWalletPath
	if path == "" {
		return nil, fmt.Errorf("%w: no development wallet path", common.ErrConfig)
	}

	raw, err := afero.ReadFile(p.fs, path)
	switch {
	case err == nil:
		w, err := arweave.ParseJWK(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: key file %s: %v", common.ErrConfig, path, err)
		}
		return w, nil
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("read key file: %w", err)
	}

	w, err := p.generate(p.settings.KeyBits)
	if err != nil {
		return nil, fmt.Errorf("generate wallet: %w", err)
	}
	jwk, err := w.MarshalJWK()
	if err != nil {
		return nil, err
	}
	if err := p.fs.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create key dir: %w", err)
	}
	if err := afero.WriteFile(p.fs, path, jwk, 0o600); err != nil {
		return nil, fmt.Errorf("write key file: %w", err)
	}

	p.logger.Info(ctx, "generated development wallet", "path", path)
	return w, nil
}
