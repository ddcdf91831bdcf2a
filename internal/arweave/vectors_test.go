package arweave

import (
	"crypto/sha256"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type vectorTag struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// testdata/vectors.json and testdata/wallet.json come from
// testdata/gen_vectors.mjs, which computes them with Node's crypto module
// and signs with OpenSSL.
type vectors struct {
	Merkle []struct {
		Name     string `json:"name"`
		Size     int    `json:"size"`
		DataRoot string `json:"data_root"`
		Chunks   []struct {
			Min         int64  `json:"min"`
			Max         int64  `json:"max"`
			DataHash    string `json:"data_hash"`
			Offset      int64  `json:"offset"`
			ProofSHA256 string `json:"proof_sha256"`
		} `json:"chunks"`
	} `json:"merkle"`
	DeepHash []struct {
		Name string `json:"name"`
		Hash string `json:"hash"`
	} `json:"deep_hash"`
	Transaction struct {
		Address       string      `json:"address"`
		LastTx        string      `json:"last_tx"`
		Reward        string      `json:"reward"`
		Data          string      `json:"data"`
		Tags          []vectorTag `json:"tags"`
		DataRoot      string      `json:"data_root"`
		SignatureData string      `json:"signature_data"`
		Signature     string      `json:"signature"`
		ID            string      `json:"id"`
	} `json:"transaction"`
}

func loadVectors(t *testing.T) vectors {
	t.Helper()
	raw, err := os.ReadFile("testdata/vectors.json")
	require.NoError(t, err)
	var v vectors
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

// patterned returns n bytes where byte i is i mod 251.
func patterned(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i % 251)
	}
	return b
}

func TestVectors_Merkle(t *testing.T) {
	v := loadVectors(t)
	require.NotEmpty(t, v.Merkle)

	for _, tc := range v.Merkle {
		t.Run(tc.Name, func(t *testing.T) {
			data := patterned(tc.Size)
			if tc.Name == "text" {
				data = []byte("hello arweave")
			}
			require.Len(t, data, tc.Size)

			cs := prepareChunks(data)
			assert.Equal(t, tc.DataRoot, encode(cs.dataRoot[:]))
			require.Len(t, cs.chunks, len(tc.Chunks))
			for i, want := range tc.Chunks {
				c := cs.chunks[i]
				assert.Equal(t, want.Min, c.MinByteRange, "chunk %d", i)
				assert.Equal(t, want.Max, c.MaxByteRange, "chunk %d", i)
				assert.Equal(t, want.DataHash, encode(c.DataHash[:]), "chunk %d", i)
				assert.Equal(t, want.Offset, cs.proofs[i].Offset, "chunk %d", i)
				sum := sha256.Sum256(cs.proofs[i].Proof)
				assert.Equal(t, want.ProofSHA256, encode(sum[:]), "chunk %d", i)
			}
		})
	}
}

func TestVectors_DeepHash(t *testing.T) {
	inputs := map[string]any{
		"empty blob":  []byte{},
		"blob":        []byte("hello"),
		"nested list": []any{[]byte("a"), []any{[]byte("b"), []byte("c")}, []any{}},
	}

	v := loadVectors(t)
	require.Len(t, v.DeepHash, len(inputs))
	for _, tc := range v.DeepHash {
		in, ok := inputs[tc.Name]
		require.True(t, ok, tc.Name)
		h := deepHash(in)
		assert.Equal(t, tc.Hash, encode(h[:]), tc.Name)
	}
}

func TestVectors_Transaction(t *testing.T) {
	v := loadVectors(t).Transaction

	raw, err := os.ReadFile("testdata/wallet.json")
	require.NoError(t, err)
	w, err := ParseJWK(raw)
	require.NoError(t, err)
	assert.Equal(t, v.Address, w.Address())

	tx := NewTransaction([]byte(v.Data), w, v.LastTx, v.Reward)
	for _, tag := range v.Tags {
		tx.AddTag(tag.Name, tag.Value)
	}
	assert.Equal(t, v.DataRoot, tx.DataRoot)

	payload, err := tx.SignatureData()
	require.NoError(t, err)
	assert.Equal(t, v.SignatureData, encode(payload))

	// A signature made elsewhere verifies, and the id is derived from it.
	tx.Signature = v.Signature
	tx.ID = v.ID
	require.NoError(t, tx.Verify())

	sig, err := decode(v.Signature)
	require.NoError(t, err)
	id := sha256.Sum256(sig)
	assert.Equal(t, v.ID, encode(id[:]))

	// Our own signature over the same payload verifies too.
	require.NoError(t, tx.Sign(w))
	require.NoError(t, tx.Verify())
	assert.NotEqual(t, v.ID, tx.ID, "PSS signatures are salted")
}
