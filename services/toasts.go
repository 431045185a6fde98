package services

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lborres/shopfront/core"
)

const DefaultToastCapacity = 50

// ToastQueue holds transient notices until the UI drains them.
// When full, the oldest notice is dropped.
type ToastQueue struct {
	mu       sync.Mutex
	toasts   []core.Toast
	capacity int
	dropped  int64
	logger   *slog.Logger
	now      func() time.Time
}

var _ core.Notifier = (*ToastQueue)(nil)

func NewToastQueue(capacity int, logger *slog.Logger) *ToastQueue {
	if capacity <= 0 {
		capacity = DefaultToastCapacity
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ToastQueue{capacity: capacity, logger: logger, now: time.Now}
}

// Notify queues a notice.
func (q *ToastQueue) Notify(level core.ToastLevel, message string) {
	toast := core.Toast{
		ID:        uuid.NewString(),
		Level:     level,
		Message:   message,
		CreatedAt: q.now(),
	}

	q.mu.Lock()
	if len(q.toasts) >= q.capacity {
		q.toasts = q.toasts[1:]
		q.dropped++
	}
	q.toasts = append(q.toasts, toast)
	q.mu.Unlock()

	q.logger.Debug("toast", "level", level, "message", message)
}

// Pending returns the queued notices without removing them.
func (q *ToastQueue) Pending() []core.Toast {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]core.Toast(nil), q.toasts...)
}

// Drain returns and removes the queued notices, oldest first.
func (q *ToastQueue) Drain() []core.Toast {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.toasts
	q.toasts = nil
	return out
}

// Dropped counts notices discarded because the queue was full.
func (q *ToastQueue) Dropped() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
