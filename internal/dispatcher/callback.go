package dispatcher

import (
	"fmt"
	"time"

	"github.com/quantforge/barstream/internal/log"
	"github.com/quantforge/barstream/internal/scheduler"
	"github.com/quantforge/barstream/internal/xerrors"
)

// runCallback invokes a scheduled callback under the same
// suppress-or-fatal policy as event handlers (spec.md §7).
func (b *base) runCallback(cb scheduler.Callback, due time.Time) (fatalErr error) {
	defer func() {
		if r := recover(); r != nil {
			fatalErr = b.onCallbackError(fmt.Errorf("callback panicked: %v", r), due)
		}
	}()
	if err := cb(due); err != nil {
		return b.onCallbackError(err, due)
	}
	return nil
}

func (b *base) onCallbackError(err error, due time.Time) error {
	log.Errorf(log.Dispatcher, "scheduled callback error at %s: %v", due, err)
	if !b.strict {
		return nil
	}
	return xerrors.NewFatal("callback-error", err, map[string]any{"due": due})
}
