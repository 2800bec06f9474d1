package registry

import (
	"context"
	"crypto/sha256"
	"log/slog"
	"sync"
	"time"
)

// readFunc fetches the current content of a resource.
type readFunc func(ctx context.Context) (*ResourceContent, error)

// PollResource watches a resource by re-reading it on an interval and
// comparing content hashes. The callback fires on the first successful read
// and again whenever the content changes; identical re-reads are silent.
// Read failures are logged and the poll continues.
//
// The returned cancel function is idempotent and blocks until it can
// guarantee no further callback will be delivered.
func PollResource(read readFunc, interval time.Duration, onUpdate func(ResourceContent), log *slog.Logger) (cancel func()) {
	ctx, stop := context.WithCancel(context.Background())

	// mu serializes callback delivery against cancellation so that once
	// cancel returns, onUpdate cannot fire again.
	var mu sync.Mutex
	cancelled := false

	var lastHash [sha256.Size]byte
	seeded := false

	poll := func() {
		content, err := read(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Debug("resource poll failed", "error", err)
			}
			return
		}

		hash := hashContent(content)
		if seeded && hash == lastHash {
			return
		}
		lastHash = hash
		seeded = true

		mu.Lock()
		defer mu.Unlock()
		if cancelled {
			return
		}
		onUpdate(*content)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		poll()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				poll()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			stop()
			mu.Lock()
			cancelled = true
			mu.Unlock()
			<-done
		})
	}
}

func hashContent(content *ResourceContent) [sha256.Size]byte {
	h := sha256.New()
	h.Write([]byte(content.Text))
	h.Write(content.Blob)
	var out [sha256.Size]byte
	copy(out[:], h.Sum(nil))
	return out
}
