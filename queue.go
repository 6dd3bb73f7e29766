package cmdbuf

import (
	"sync/atomic"

	"github.com/cockroachdb/errors"
)

// Queue submits command buffers to the device backend.
type Queue struct {
	device    *Device
	submitted atomic.Uint64
}

// Submit validates every buffer, then executes them in order on the
// backend. If any buffer fails validation nothing is executed.
func (q *Queue) Submit(buffers ...*CommandBuffer) error {
	for i, cb := range buffers {
		var err error
		if cb == nil {
			err = errors.Wrapf(ErrNilCommandBuffer, "submit: buffer %d", i)
		} else if verr := cb.ValidateResourceUsagesImmediate(); verr != nil {
			err = errors.Wrapf(verr, "submit: buffer %d", i)
		}
		if err != nil {
			q.device.HandleError(err)
			return err
		}
	}

	for i, cb := range buffers {
		if err := q.device.backend.Execute(cb); err != nil {
			err = errors.Wrapf(err, "submit: executing buffer %d (%q)", i, cb.Label())
			q.device.HandleError(err)
			return err
		}
		q.submitted.Add(1)
		Logger().Debug("cmdbuf: command buffer submitted",
			"device", q.device.label,
			"label", cb.Label(),
			"commands", cb.Len())
	}
	return nil
}

// Submitted returns the number of command buffers executed so far.
func (q *Queue) Submitted() uint64 {
	return q.submitted.Load()
}
