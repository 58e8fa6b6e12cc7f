package vault

// ProgressObserver receives byte-level progress. The engine calls it once
// per drained block, on the scheduler goroutine, so implementations must
// be cheap; throttling belongs to the observer, not the engine.
type ProgressObserver interface {
	OnProgress(bytesProcessed, totalBytes int64)
}

// NopObserver discards progress. Used when no caller is watching.
type NopObserver struct{}

func (NopObserver) OnProgress(int64, int64) {}
