package source

import (
	"fmt"
	"log/slog"

	"github.com/teslashibe/irdrowsy/pkg/frame"
)

// defaultDrainLimit bounds one drain when the buffer count is left to the driver.
const defaultDrainLimit = 8

// bufferQueue is the slice of a streaming device that draining needs.
type bufferQueue interface {
	// Ready reports whether a buffer can be dequeued without blocking.
	Ready() (bool, error)
	// Dequeue takes the next filled buffer. buf is valid until Requeue.
	Dequeue() (buf []byte, index uint32, err error)
	// Requeue hands the buffer back to the driver.
	Requeue(index uint32) error
}

// drainLatest dequeues at most limit ready buffers, decoding each and keeping
// only the newest frame. Every dequeued buffer is requeued before the next
// one is taken. A failing dequeue ends the drain at once: a dead device keeps
// reporting ready, so retrying would never return.
func drainLatest(q bufferQueue, limit int, decode func([]byte) (*frame.Gray, error), logger *slog.Logger) (*frame.Gray, error) {
	if limit <= 0 {
		limit = defaultDrainLimit
	}

	var (
		latest    *frame.Gray
		decodeErr error
	)
	for i := 0; i < limit; i++ {
		ready, err := q.Ready()
		if err != nil {
			if latest != nil {
				break
			}
			return nil, fmt.Errorf("source: wait for frame: %w", err)
		}
		if !ready {
			break
		}

		buf, index, err := q.Dequeue()
		if err != nil {
			if latest != nil {
				break
			}
			return nil, fmt.Errorf("source: dequeue buffer: %w", err)
		}

		g, err := decode(buf)
		if rerr := q.Requeue(index); rerr != nil {
			logger.Warn("release frame failed", "index", index, "error", rerr)
		}
		if err != nil {
			decodeErr = err
			continue
		}
		latest = g
	}

	switch {
	case latest != nil:
		return latest, nil
	case decodeErr != nil:
		return nil, decodeErr
	default:
		return nil, ErrNoFrame
	}
}
