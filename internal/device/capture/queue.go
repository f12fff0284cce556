// Package capture implements the stop-motion pipeline: a timed frame
// loop feeding a bounded drop-oldest queue, with a face check on every
// frame that can synthesize FACE_DETECTED events back into the device.
package capture

import (
	"log"
	"time"

	"github.com/Carlos-Mesquita/SE-Doorbell-Camera/internal/metrics"
)

// Item is one captured frame on its way to the hub, tagged with the
// event id of the recording window it belongs to.
type Item struct {
	EventID   string
	Timestamp time.Time
	Data      []byte
	Format    string
	HasFace   bool
}

// Queue is the bounded capture queue. On overflow the oldest item is
// dropped: captures are lossy by policy, events are not.
type Queue struct {
	ch    chan Item
	drops uint64
}

func NewQueue(size int) *Queue {
	if size <= 0 {
		size = 64
	}
	return &Queue{ch: make(chan Item, size)}
}

// Push enqueues item, evicting the oldest entry if the buffer is full.
func (q *Queue) Push(item Item) {
	for {
		select {
		case q.ch <- item:
			return
		default:
		}
		select {
		case dropped := <-q.ch:
			q.drops++
			metrics.CaptureQueueDrops.Inc()
			log.Printf("[capture] queue full, dropped frame for event %s (%d total)", dropped.EventID, q.drops)
		default:
		}
	}
}

// Out is the consumer side, drained by the device's capture sender.
func (q *Queue) Out() <-chan Item { return q.ch }

// Drops returns the number of frames evicted so far.
func (q *Queue) Drops() uint64 { return q.drops }
