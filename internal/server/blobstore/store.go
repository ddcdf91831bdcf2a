// Package blobstore keeps the raw bytes of submitted files so that failed
// uploads can be retried without the client sending them again.
package blobstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/weavekeeper/internal/common"
)

// Store is a flat key/value byte store. Get returns common.ErrContentUnavailable
// for a key that was never stored or has been deleted.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

func checkKey(key string) error {
	if key == "" || strings.ContainsAny(key, `/\`) || strings.Contains(key, "..") {
		return fmt.Errorf("%w: bad blob key %q", common.ErrValidation, key)
	}
	return nil
}
