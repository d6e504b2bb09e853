// Package middleware decorates recording stores with at-rest protections:
// sealing recordings with AES-GCM and redacting sensitive variables.
package middleware

import (
	"io"

	"github.com/aretw0/codeflow/pkg/ports"
)

// Middleware allows wrapping a RecordingStore to add behavior.
type Middleware func(ports.RecordingStore) ports.RecordingStore

// Chain wraps store with mws. The first middleware is the outermost, so it
// sees a recording before the others on Save.
func Chain(store ports.RecordingStore, mws ...Middleware) ports.RecordingStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}

// closeNext releases a wrapped store that holds resources.
func closeNext(next ports.RecordingStore) error {
	if c, ok := next.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
