package credentials

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"sync"
	"testing"

	"github.com/dmitrijs2005/weavekeeper/internal/arweave"
	"github.com/dmitrijs2005/weavekeeper/internal/common"
	"github.com/dmitrijs2005/weavekeeper/internal/logging"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	keyOnce sync.Once
	key     *rsa.PrivateKey
)

func testJWK(t *testing.T) (string, *arweave.Wallet) {
	t.Helper()
	keyOnce.Do(func() {
		k, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
		key = k
	})
	w := arweave.NewWallet(key)
	raw, err := w.MarshalJWK()
	require.NoError(t, err)
	return string(raw), w
}

func TestProduction_RequiresJWK(t *testing.T) {
	p := NewProvider(Settings{}, afero.NewMemMapFs(), logging.Nop{})

	_, err := p.Wallet(context.Background())
	assert.True(t, errors.Is(err, common.ErrConfig), "got %v", err)
}

func TestProduction_InvalidJWK(t *testing.T) {
	p := NewProvider(Settings{WalletJWK: `{"kty":"RSA"}`}, afero.NewMemMapFs(), logging.Nop{})

	_, err := p.Wallet(context.Background())
	assert.True(t, errors.Is(err, common.ErrConfig), "got %v", err)
}

func TestProduction_LoadsAndCaches(t *testing.T) {
	jwk, want := testJWK(t)
	p := NewProvider(Settings{WalletJWK: jwk}, afero.NewMemMapFs(), logging.Nop{})

	w1, err := p.Wallet(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want.Address(), w1.Address())

	w2, err := p.Wallet(context.Background())
	require.NoError(t, err)
	assert.Same(t, w1, w2)
}

func TestDevelopment_PrefersTestWallet(t *testing.T) {
	jwk, want := testJWK(t)
	fsys := afero.NewMemMapFs()
	p := NewProvider(Settings{Development: true, TestWalletJWK: jwk, DevWalletPath: "/data/key.json"}, fsys, logging.Nop{})

	w, err := p.Wallet(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want.Address(), w.Address())

	exists, _ := afero.Exists(fsys, "/data/key.json")
	assert.False(t, exists, "no key file is written when the test wallet is usable")
}

func TestDevelopment_GeneratesAndPersists(t *testing.T) {
	_, generated := testJWK(t)
	fsys := afero.NewMemMapFs()

	calls := 0
	p := NewProvider(Settings{Development: true, TestWalletJWK: "not json", DevWalletPath: "/data/key.json"}, fsys, logging.Nop{})
	p.generate = func(bits int) (*arweave.Wallet, error) {
		calls++
		return generated, nil
	}

	w, err := p.Wallet(context.Background())
	require.NoError(t, err)
	assert.Equal(t, generated.Address(), w.Address())
	assert.Equal(t, 1, calls)

	raw, err := afero.ReadFile(fsys, "/data/key.json")
	require.NoError(t, err)
	reloaded, err := arweave.ParseJWK(raw)
	require.NoError(t, err)
	assert.Equal(t, generated.Address(), reloaded.Address())

	// a fresh provider reuses the persisted key
	p2 := NewProvider(Settings{Development: true, DevWalletPath: "/data/key.json"}, fsys, logging.Nop{})
	p2.generate = func(int) (*arweave.Wallet, error) {
		t.Fatal("must not generate when a key file exists")
		return nil, nil
	}
	w2, err := p2.Wallet(context.Background())
	require.NoError(t, err)
	assert.Equal(t, generated.Address(), w2.Address())
}

func TestDevelopment_CorruptKeyFile(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/data/key.json", []byte("garbage"), 0o600))

	p := NewProvider(Settings{Development: true, DevWalletPath: "/data/key.json"}, fsys, logging.Nop{})
	_, err := p.Wallet(context.Background())
	assert.True(t, errors.Is(err, common.ErrConfig), "got %v", err)
}
