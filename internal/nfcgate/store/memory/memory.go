package memory

import (
	"sync/atomic"
	"time"

	"github.com/BrandonDHaskell/nfcgate/internal/nfcgate/store"
)

// Faults lets tests simulate a backend outage. The zero value is healthy.
type Faults struct {
	down atomic.Bool
}

// SetUnavailable makes every subsequent call fail with store.ErrUnavailable
// until it is called again with false.
func (f *Faults) SetUnavailable(down bool) { f.down.Store(down) }

func (f *Faults) check() error {
	if f.down.Load() {
		return store.ErrUnavailable
	}
	return nil
}

// Clock returns the timestamp stored on new rows. Tests may replace it.
type Clock func() time.Time

func defaultClock() time.Time { return time.Now().UTC() }
