// Package arweavetest provides an in-process fake Arweave node for tests.
package arweavetest

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Tx is the subset of a posted transaction the fake node keeps.
type Tx struct {
	ID       string `json:"id"`
	Owner    string `json:"owner"`
	Tags     []Tag  `json:"tags"`
	Data     string `json:"data"`
	DataSize string `json:"data_size"`
	DataRoot string `json:"data_root"`
	Reward   string `json:"reward"`
}

// Tag is a base64url encoded tag as posted.
type Tag struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type chunk struct {
	Offset int64
	Data   []byte
}

// Node is a fake node. Prices are BasePrice + size*PricePerByte winston.
type Node struct {
	Server *httptest.Server

	BasePrice    int64
	PricePerByte int64
	Anchor       string

	mu         sync.Mutex
	txs        map[string]Tx
	chunks     map[string][]chunk
	balances   map[string]int64
	failTx     int
	failChunks int
	failPrice  bool
	chunkPosts int
}

// NewNode starts a fake node. Close it with Close.
func NewNode() *Node {
	n := &Node{
		BasePrice:    1000,
		PricePerByte: 10,
		Anchor:       "anchor-" + strings.Repeat("A", 57),
		txs:          make(map[string]Tx),
		chunks:       make(map[string][]chunk),
		balances:     make(map[string]int64),
	}
	n.Server = httptest.NewServer(http.HandlerFunc(n.serve))
	return n
}

func (n *Node) Close() {
	n.Server.Close()
}

// HostPort splits the server address for building client endpoints.
func (n *Node) HostPort() (host string, port int) {
	u, _ := url.Parse(n.Server.URL)
	p, _ := strconv.Atoi(u.Port())
	return u.Hostname(), p
}

// FailNextTx makes the next k transaction posts fail with 500.
func (n *Node) FailNextTx(k int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failTx = k
}

// FailNextChunks makes the next k chunk posts fail with 503.
func (n *Node) FailNextChunks(k int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failChunks = k
}

// FailPrice toggles price endpoint failures.
func (n *Node) FailPrice(fail bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failPrice = fail
}

// Transaction returns a posted transaction by id.
func (n *Node) Transaction(id string) (Tx, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	tx, ok := n.txs[id]
	return tx, ok
}

// TransactionCount is the number of accepted transactions.
func (n *Node) TransactionCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.txs)
}

// ChunkPosts counts every /chunk request, failed ones included.
func (n *Node) ChunkPosts() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.chunkPosts
}

// Data reassembles the data of a transaction from its inline body or chunks.
func (n *Node) Data(id string) ([]byte, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	tx, ok := n.txs[id]
	if !ok {
		return nil, false
	}
	if tx.Data != "" {
		b, err := base64.RawURLEncoding.DecodeString(tx.Data)
		return b, err == nil
	}

	parts := append([]chunk(nil), n.chunks[tx.DataRoot]...)
	sort.Slice(parts, func(i, j int) bool { return parts[i].Offset < parts[j].Offset })
	var out []byte
	for _, p := range parts {
		out = append(out, p.Data...)
	}
	size, _ := strconv.Atoi(tx.DataSize)
	return out, len(out) == size
}

// Balance returns the winston balance of address.
func (n *Node) Balance(address string) int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.balances[address]
}

func (n *Node) serve(w http.ResponseWriter, r *http.Request) {
	n.mu.Lock()
	defer n.mu.Unlock()

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")

	switch {
	case r.Method == http.MethodGet && parts[0] == "tx_anchor":
		_, _ = w.Write([]byte(n.Anchor))

	case r.Method == http.MethodGet && parts[0] == "price" && len(parts) >= 2:
		if n.failPrice {
			http.Error(w, "pricing offline", http.StatusServiceUnavailable)
			return
		}
		size, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			http.Error(w, "bad size", http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(strconv.FormatInt(n.BasePrice+size*n.PricePerByte, 10)))

	case r.Method == http.MethodGet && parts[0] == "wallet" && len(parts) == 3 && parts[2] == "balance":
		_, _ = w.Write([]byte(strconv.FormatInt(n.balances[parts[1]], 10)))

	case r.Method == http.MethodGet && parts[0] == "mint" && len(parts) == 3:
		amount, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			http.Error(w, "bad amount", http.StatusBadRequest)
			return
		}
		n.balances[parts[1]] += amount
		_, _ = w.Write([]byte(strconv.FormatInt(n.balances[parts[1]], 10)))

	case r.Method == http.MethodGet && parts[0] == "mine":
		_, _ = w.Write([]byte(`{"ok":true}`))

	case r.Method == http.MethodPost && parts[0] == "tx":
		if n.failTx > 0 {
			n.failTx--
			http.Error(w, "node overloaded", http.StatusInternalServerError)
			return
		}
		var tx Tx
		if err := json.NewDecoder(r.Body).Decode(&tx); err != nil || tx.ID == "" {
			http.Error(w, "invalid_json", http.StatusBadRequest)
			return
		}
		if _, dup := n.txs[tx.ID]; dup {
			w.WriteHeader(http.StatusAlreadyReported)
			return
		}
		n.txs[tx.ID] = tx
		_, _ = w.Write([]byte("OK"))

	case r.Method == http.MethodPost && parts[0] == "chunk":
		n.chunkPosts++
		if n.failChunks > 0 {
			n.failChunks--
			http.Error(w, "try later", http.StatusServiceUnavailable)
			return
		}
		var body struct {
			DataRoot string `json:"data_root"`
			Offset   string `json:"offset"`
			Chunk    string `json:"chunk"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, `{"error":"invalid_json"}`, http.StatusBadRequest)
			return
		}
		data, err := base64.RawURLEncoding.DecodeString(body.Chunk)
		if err != nil {
			http.Error(w, `{"error":"invalid_json"}`, http.StatusBadRequest)
			return
		}
		offset, _ := strconv.ParseInt(body.Offset, 10, 64)
		n.chunks[body.DataRoot] = append(n.chunks[body.DataRoot], chunk{Offset: offset, Data: data})
		_, _ = w.Write([]byte("OK"))

	default:
		http.NotFound(w, r)
	}
}
