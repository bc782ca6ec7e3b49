// Package queue implements the two-class message queue consulted by the
// agent loop between tool batches (steering) and after a clean completion
// (follow-up).
package queue

import (
	"fmt"
	"sync"
	"time"

	"github.com/outpostrun/conductor/pkg/models"
)

// DrainMode controls how many queued messages of a class are returned by a
// single take call.
type DrainMode string

const (
	// DrainOneAtATime returns only the head of the FIFO. This is the default.
	DrainOneAtATime DrainMode = "one-at-a-time"
	// DrainAll returns and clears the entire FIFO for that class.
	DrainAll DrainMode = "all"
)

// Queue holds two independent FIFOs behind one lock: steering messages,
// consulted by the agent loop between tool batches, and follow-up messages,
// consulted only after a tool-free completion. All six operations named by
// the component contract are safe for concurrent use by one enqueuer and
// one dequeuer.
type Queue struct {
	mu sync.Mutex

	steering []models.QueuedMessage
	followUp []models.QueuedMessage

	steeringMode DrainMode
	followUpMode DrainMode

	now func() time.Time
}

// New returns a Queue with both drain modes defaulted to one-at-a-time.
func New() *Queue {
	return &Queue{
		steeringMode: DrainOneAtATime,
		followUpMode: DrainOneAtATime,
		now:          time.Now,
	}
}

// SetSteeringMode configures the drain mode used by TakeSteering.
func (q *Queue) SetSteeringMode(mode DrainMode) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.steeringMode = mode
}

// SetFollowUpMode configures the drain mode used by TakeFollowUp.
func (q *Queue) SetFollowUpMode(mode DrainMode) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.followUpMode = mode
}

// AddSteering appends a preemptive message to the steering FIFO.
func (q *Queue) AddSteering(content string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.steering = append(q.steering, models.QueuedMessage{
		Content:    content,
		Class:      models.ClassSteering,
		EnqueuedAt: q.now(),
	})
}

// AddFollowUp appends a deferred message to the follow-up FIFO.
func (q *Queue) AddFollowUp(content string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.followUp = append(q.followUp, models.QueuedMessage{
		Content:    content,
		Class:      models.ClassFollowUp,
		EnqueuedAt: q.now(),
	})
}

// TakeSteering removes and returns either the head of the steering FIFO
// (one-at-a-time) or the whole FIFO (all). Follow-ups are unaffected.
func (q *Queue) TakeSteering() []models.QueuedMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	return takeFrom(&q.steering, q.steeringMode)
}

// TakeFollowUp mirrors TakeSteering for the follow-up FIFO.
func (q *Queue) TakeFollowUp() []models.QueuedMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	return takeFrom(&q.followUp, q.followUpMode)
}

func takeFrom(fifo *[]models.QueuedMessage, mode DrainMode) []models.QueuedMessage {
	if len(*fifo) == 0 {
		return nil
	}
	if mode == DrainAll {
		out := *fifo
		*fifo = nil
		return out
	}
	head := (*fifo)[0]
	*fifo = (*fifo)[1:]
	return []models.QueuedMessage{head}
}

// HasSteering is an O(1) observer of steering FIFO occupancy.
func (q *Queue) HasSteering() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.steering) > 0
}

// HasFollowUp is an O(1) observer of follow-up FIFO occupancy.
func (q *Queue) HasFollowUp() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.followUp) > 0
}

// Status returns a human-readable summary, e.g. "Queued: 2 steering,
// 1 follow-up" or "Queue empty".
func (q *Queue) Status() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.steering) == 0 && len(q.followUp) == 0 {
		return "Queue empty"
	}
	var parts []string
	if n := len(q.steering); n > 0 {
		parts = append(parts, fmt.Sprintf("%d steering", n))
	}
	if n := len(q.followUp); n > 0 {
		parts = append(parts, fmt.Sprintf("%d follow-up", n))
	}
	summary := parts[0]
	for _, p := range parts[1:] {
		summary += ", " + p
	}
	return "Queued: " + summary
}

// Clear empties both FIFOs and returns whatever was drained, steering
// messages first in original order followed by follow-up messages in
// original order.
func (q *Queue) Clear() []models.QueuedMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	drained := make([]models.QueuedMessage, 0, len(q.steering)+len(q.followUp))
	drained = append(drained, q.steering...)
	drained = append(drained, q.followUp...)
	q.steering = nil
	q.followUp = nil
	return drained
}
