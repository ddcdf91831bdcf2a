package arweave

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"errors"
	"fmt"
	"strconv"
)

// pssSaltLength matches the salt length used by Arweave reference clients.
const pssSaltLength = 32

// Tag is a transaction tag with base64url encoded name and value, exactly as
// sent on the wire.
type Tag struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Decode returns the tag's plain-text name and value.
func (t Tag) Decode() (string, string, error) {
	name, err := decode(t.Name)
	if err != nil {
		return "", "", fmt.Errorf("tag name: %w", err)
	}
	value, err := decode(t.Value)
	if err != nil {
		return "", "", fmt.Errorf("tag value: %w", err)
	}
	return string(name), string(value), nil
}

// Transaction is a format-2 Arweave transaction.
type Transaction struct {
	Format    int    `json:"format"`
	ID        string `json:"id"`
	LastTx    string `json:"last_tx"`
	Owner     string `json:"owner"`
	Tags      []Tag  `json:"tags"`
	Target    string `json:"target"`
	Quantity  string `json:"quantity"`
	Data      string `json:"data"`
	DataSize  string `json:"data_size"`
	DataRoot  string `json:"data_root"`
	Reward    string `json:"reward"`
	Signature string `json:"signature"`

	data   []byte
	chunks *chunkSet
}

// NewTransaction builds an unsigned data transaction carrying data, owned by
// w, anchored to lastTx and paying reward winston.
func NewTransaction(data []byte, w *Wallet, lastTx, reward string) *Transaction {
	chunks := prepareChunks(data)
	return &Transaction{
		Format:   2,
		LastTx:   lastTx,
		Owner:    w.Owner(),
		Tags:     []Tag{},
		Quantity: "0",
		DataSize: strconv.Itoa(len(data)),
		DataRoot: dataRootString(data, chunks),
		Reward:   reward,
		data:     data,
		chunks:   chunks,
	}
}

// dataRootString is empty for empty data, as nodes expect.
func dataRootString(data []byte, cs *chunkSet) string {
	if len(data) == 0 {
		return ""
	}
	return encode(cs.dataRoot[:])
}

// AddTag appends a plain-text name/value tag. Tags must be added before Sign.
func (t *Transaction) AddTag(name, value string) {
	t.Tags = append(t.Tags, Tag{Name: encode([]byte(name)), Value: encode([]byte(value))})
}

// RawData returns the data carried by the transaction.
func (t *Transaction) RawData() []byte {
	return t.data
}

// SignatureData returns the deep hash the owner signs.
func (t *Transaction) SignatureData() ([]byte, error) {
	if t.Format != 2 {
		return nil, fmt.Errorf("unsupported transaction format %d", t.Format)
	}

	fields := make(map[string][]byte, 4)
	for name, v := range map[string]string{"owner": t.Owner, "target": t.Target, "last_tx": t.LastTx, "data_root": t.DataRoot} {
		b, err := decode(v)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}
		fields[name] = b
	}

	tags := make([]any, 0, len(t.Tags))
	for _, tag := range t.Tags {
		name, err := decode(tag.Name)
		if err != nil {
			return nil, fmt.Errorf("tag name: %w", err)
		}
		value, err := decode(tag.Value)
		if err != nil {
			return nil, fmt.Errorf("tag value: %w", err)
		}
		tags = append(tags, []any{name, value})
	}

	h := deepHash([]any{
		[]byte(strconv.Itoa(t.Format)),
		fields["owner"],
		fields["target"],
		[]byte(t.Quantity),
		[]byte(t.Reward),
		fields["last_tx"],
		tags,
		[]byte(t.DataSize),
		fields["data_root"],
	})
	return h[:], nil
}

// Sign signs the transaction with w (RSA-PSS over SHA-256) and sets ID to
// base64url(sha256(signature)).
func (t *Transaction) Sign(w *Wallet) error {
	if t.Owner != w.Owner() {
		return errors.New("transaction owner does not match signing wallet")
	}

	payload, err := t.SignatureData()
	if err != nil {
		return err
	}

	digest := sha256.Sum256(payload)
	sig, err := rsa.SignPSS(rand.Reader, w.privateKey(), crypto.SHA256, digest[:], &rsa.PSSOptions{SaltLength: pssSaltLength})
	if err != nil {
		return fmt.Errorf("sign: %w", err)
	}

	id := sha256.Sum256(sig)
	t.Signature = encode(sig)
	t.ID = encode(id[:])
	return nil
}

// Verify checks the signature against the owner key and the id against the
// signature.
func (t *Transaction) Verify() error {
	sig, err := decode(t.Signature)
	if err != nil {
		return fmt.Errorf("signature: %w", err)
	}
	if id := sha256.Sum256(sig); encode(id[:]) != t.ID {
		return errors.New("transaction id does not match signature")
	}

	owner, err := decode(t.Owner)
	if err != nil {
		return fmt.Errorf("owner: %w", err)
	}
	payload, err := t.SignatureData()
	if err != nil {
		return err
	}

	pub := &rsa.PublicKey{N: newInt(owner), E: 65537}
	digest := sha256.Sum256(payload)
	if err := rsa.VerifyPSS(pub, crypto.SHA256, digest[:], sig, &rsa.PSSOptions{SaltLength: pssSaltLength}); err != nil {
		return fmt.Errorf("invalid signature: %w", err)
	}
	return nil
}

// Signed reports whether Sign has been called.
func (t *Transaction) Signed() bool {
	return t.Signature != "" && t.ID != ""
}
