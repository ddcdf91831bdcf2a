package arweave

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

// maxChunksInBody is the largest number of chunks sent inline with the
// transaction header instead of through /chunk.
const maxChunksInBody = 1

// Uploader posts a signed transaction and then its data chunk by chunk.
// It is not safe for concurrent use.
type Uploader struct {
	client     *Client
	tx         *Transaction
	txPosted   bool
	chunkIndex int
	inline     bool
}

// Uploader returns an uploader for a signed transaction.
func (c *Client) Uploader(tx *Transaction) (*Uploader, error) {
	if !tx.Signed() {
		return nil, errors.New("arweave: transaction is not signed")
	}
	if tx.chunks == nil {
		tx.chunks = prepareChunks(tx.data)
	}
	return &Uploader{
		client: c,
		tx:     tx,
		inline: len(tx.chunks.chunks) <= maxChunksInBody,
	}, nil
}

// TotalChunks is the number of data chunks of the transaction.
func (u *Uploader) TotalChunks() int {
	return len(u.tx.chunks.chunks)
}

// UploadedChunks is the number of chunks the node has accepted so far.
func (u *Uploader) UploadedChunks() int {
	if u.inline && u.txPosted {
		return u.TotalChunks()
	}
	return u.chunkIndex
}

// IsComplete reports whether the header and every chunk have been accepted.
func (u *Uploader) IsComplete() bool {
	return u.txPosted && u.UploadedChunks() >= u.TotalChunks()
}

// UploadChunk performs the next upload step: the transaction header first
// (with the data inline for single-chunk payloads), then one chunk per call.
func (u *Uploader) UploadChunk(ctx context.Context) error {
	if u.IsComplete() {
		return errors.New("arweave: upload already complete")
	}

	if !u.txPosted {
		if err := u.client.postTransaction(ctx, u.tx, u.inline); err != nil {
			return err
		}
		u.txPosted = true
		return nil
	}

	cs := u.tx.chunks
	chunk := cs.chunks[u.chunkIndex]
	proof := cs.proofs[u.chunkIndex]

	if _, _, _, ok := validatePath(cs.dataRoot, proof.Offset, 0, int64(len(u.tx.data)), proof.Proof); !ok {
		return fmt.Errorf("arweave: unable to validate chunk %d", u.chunkIndex)
	}

	err := u.client.postChunk(ctx, chunkRequest{
		DataRoot: u.tx.DataRoot,
		DataSize: u.tx.DataSize,
		DataPath: encode(proof.Proof),
		Offset:   strconv.FormatInt(proof.Offset, 10),
		Chunk:    encode(u.tx.data[chunk.MinByteRange:chunk.MaxByteRange]),
	})
	if err != nil {
		return fmt.Errorf("arweave: chunk %d of %d: %w", u.chunkIndex+1, u.TotalChunks(), err)
	}

	u.chunkIndex++
	return nil
}
