package app

import (
	"fmt"
	"io"
	"time"

	"github.com/agilira/go-timecache"

	"myz-go/internal/vault"
)

// progressInterval is the minimum gap between printed progress lines.
const progressInterval = 200 * time.Millisecond

// ConsoleProgress prints in-place progress lines. The engine reports
// after every block, so the printer throttles by time; timecache keeps
// the per-block clock reads off the syscall path. The final report is
// always printed.
type ConsoleProgress struct {
	w    io.Writer
	last time.Time
}

// NewConsoleProgress creates a progress printer writing to w.
func NewConsoleProgress(w io.Writer) *ConsoleProgress {
	return &ConsoleProgress{w: w}
}

func (p *ConsoleProgress) OnProgress(bytesProcessed, totalBytes int64) {
	now := timecache.CachedTime()
	if bytesProcessed < totalBytes && now.Sub(p.last) < progressInterval {
		return
	}
	p.last = now

	fmt.Fprintf(p.w, "\r%8.2f / %.2f MiB", mib(bytesProcessed), mib(totalBytes))
	if bytesProcessed >= totalBytes {
		fmt.Fprintln(p.w)
	}
}

func mib(n int64) float64 { return float64(n) / (1 << 20) }

var _ vault.ProgressObserver = (*ConsoleProgress)(nil)
