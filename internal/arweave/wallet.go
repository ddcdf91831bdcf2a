package arweave

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
)

// DefaultKeyBits is the modulus size of generated wallets.
const DefaultKeyBits = 4096

// Wallet is an RSA signing key in Arweave's JWK form.
type Wallet struct {
	key *rsa.PrivateKey
}

type jwk struct {
	Kty string `json:"kty"`
	N   string `json:"n"`
	E   string `json:"e"`
	D   string `json:"d,omitempty"`
	P   string `json:"p,omitempty"`
	Q   string `json:"q,omitempty"`
	DP  string `json:"dp,omitempty"`
	DQ  string `json:"dq,omitempty"`
	QI  string `json:"qi,omitempty"`
}

// ParseJWK decodes a JSON Web Key holding an RSA private key.
func ParseJWK(data []byte) (*Wallet, error) {
	var k jwk
	if err := json.Unmarshal(data, &k); err != nil {
		return nil, fmt.Errorf("wallet: invalid JSON: %w", err)
	}
	if k.Kty != "RSA" {
		return nil, fmt.Errorf("wallet: unsupported key type %q", k.Kty)
	}
	if k.D == "" || k.P == "" || k.Q == "" {
		return nil, errors.New("wallet: private key parameters missing")
	}

	ints := make(map[string]*big.Int, 5)
	for name, v := range map[string]string{"n": k.N, "e": k.E, "d": k.D, "p": k.P, "q": k.Q} {
		b, err := decode(v)
		if err != nil {
			return nil, fmt.Errorf("wallet: field %s: %w", name, err)
		}
		ints[name] = new(big.Int).SetBytes(b)
	}
	if !ints["e"].IsInt64() {
		return nil, errors.New("wallet: public exponent too large")
	}

	key := &rsa.PrivateKey{
		PublicKey: rsa.PublicKey{N: ints["n"], E: int(ints["e"].Int64())},
		D:         ints["d"],
		Primes:    []*big.Int{ints["p"], ints["q"]},
	}
	key.Precompute()
	if err := key.Validate(); err != nil {
		return nil, fmt.Errorf("wallet: %w", err)
	}

	return &Wallet{key: key}, nil
}

// GenerateWallet creates a new random wallet.
func GenerateWallet(bits int) (*Wallet, error) {
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, err
	}
	key.Precompute()
	return &Wallet{key: key}, nil
}

// NewWallet wraps an existing RSA key.
func NewWallet(key *rsa.PrivateKey) *Wallet {
	return &Wallet{key: key}
}

// MarshalJWK encodes the wallet as a JSON Web Key.
func (w *Wallet) MarshalJWK() ([]byte, error) {
	k := w.key
	if len(k.Primes) != 2 {
		return nil, errors.New("wallet: multi-prime keys are not supported")
	}
	return json.Marshal(jwk{
		Kty: "RSA",
		N:   encode(k.N.Bytes()),
		E:   encode(big.NewInt(int64(k.E)).Bytes()),
		D:   encode(k.D.Bytes()),
		P:   encode(k.Primes[0].Bytes()),
		Q:   encode(k.Primes[1].Bytes()),
		DP:  encode(k.Precomputed.Dp.Bytes()),
		DQ:  encode(k.Precomputed.Dq.Bytes()),
		QI:  encode(k.Precomputed.Qinv.Bytes()),
	})
}

// Owner is the base64url encoded public modulus, as carried in transactions.
func (w *Wallet) Owner() string {
	return encode(w.key.N.Bytes())
}

// Address is the wallet address: base64url(sha256(modulus)).
func (w *Wallet) Address() string {
	return OwnerToAddress(w.key.N.Bytes())
}

// OwnerToAddress derives a wallet address from a raw public modulus.
func OwnerToAddress(owner []byte) string {
	sum := sha256.Sum256(owner)
	return encode(sum[:])
}

func (w *Wallet) privateKey() *rsa.PrivateKey {
	return w.key
}
