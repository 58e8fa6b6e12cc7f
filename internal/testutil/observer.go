package testutil

import (
	"sync"

	"myz-go/internal/vault"
)

// ProgressSample is one recorded observer callback.
type ProgressSample struct {
	Processed int64
	Total     int64
}

// CollectingObserver records every progress callback. Safe for
// concurrent use.
type CollectingObserver struct {
	mu      sync.Mutex
	samples []ProgressSample
}

var _ vault.ProgressObserver = (*CollectingObserver)(nil)

func (o *CollectingObserver) OnProgress(bytesProcessed, totalBytes int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.samples = append(o.samples, ProgressSample{Processed: bytesProcessed, Total: totalBytes})
}

// Samples returns the callbacks recorded so far, in order.
func (o *CollectingObserver) Samples() []ProgressSample {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]ProgressSample(nil), o.samples...)
}
