package services

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/weavekeeper/internal/arweave"
	"github.com/dmitrijs2005/weavekeeper/internal/server/metrics"
	"github.com/dmitrijs2005/weavekeeper/internal/server/models"
)

// Network stores data permanently and names the result.
type Network interface {
	PriceSource
	// Send signs and uploads data with tags in order, returning the
	// network-assigned transaction id once every chunk is accepted.
	Send(ctx context.Context, data []byte, tags []models.Tag) (string, error)
	PermanentURL(id string) string
}

// WalletSource resolves the wallet that signs transactions.
type WalletSource interface {
	Wallet(ctx context.Context) (*arweave.Wallet, error)
}

// ArweaveNetwork is the Network backed by an Arweave node.
type ArweaveNetwork struct {
	client  *arweave.Client
	wallets WalletSource
	metrics *metrics.Metrics
}

func NewArweaveNetwork(client *arweave.Client, wallets WalletSource, m *metrics.Metrics) *ArweaveNetwork {
	return &ArweaveNetwork{client: client, wallets: wallets, metrics: m}
}

func (n *ArweaveNetwork) Price(ctx context.Context, size int64) (string, error) {
	return n.client.Price(ctx, size)
}

func (n *ArweaveNetwork) Send(ctx context.Context, data []byte, tags []models.Tag) (string, error) {
	w, err := n.wallets.Wallet(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve wallet: %w", err)
	}

	tx, err := n.client.CreateTransaction(ctx, data, w)
	if err != nil {
		return "", fmt.Errorf("create transaction: %w", err)
	}
	for _, t := range tags {
		tx.AddTag(t.Name, t.Value)
	}
	if err := tx.Sign(w); err != nil {
		return "", fmt.Errorf("sign transaction: %w", err)
	}

	up, err := n.client.Uploader(tx)
	if err != nil {
		return "", err
	}
	for !up.IsComplete() {
		if err := up.UploadChunk(ctx); err != nil {
			return "", fmt.Errorf("upload %d/%d chunks: %w", up.UploadedChunks(), up.TotalChunks(), err)
		}
		n.metrics.RecordChunk()
	}

	return tx.ID, nil
}

func (n *ArweaveNetwork) PermanentURL(id string) string {
	return n.client.Endpoint().PermanentURL(id)
}
