package device

import (
	"context"
	"sync"
	"time"

	"github.com/emirpasic/gods/queues/linkedlistqueue"
)

// DefaultCommand is what an idle terminal is told to do: upload everything
// it has.
const DefaultCommand = "GET ATTLOG ALL"

const defaultQueueLimit = 64

// CommandQueue holds per-device command queues in memory. Terminals poll for
// work, so nothing here needs to survive a restart; a lost queue just means
// the device falls back to [DefaultCommand] on its next poll.
type CommandQueue struct {
	mu     sync.Mutex
	queues map[string]*linkedlistqueue.Queue
	limit  int
}

// NewCommandQueue creates a [CommandQueue]. limit caps pending commands per
// device; zero means a limit of 64.
func NewCommandQueue(limit int) *CommandQueue {
	if limit <= 0 {
		limit = defaultQueueLimit
	}
	return &CommandQueue{
		queues: make(map[string]*linkedlistqueue.Queue),
		limit:  limit,
	}
}

// Push enqueues a command for a device. Returns false when the device's
// queue is full.
func (c *CommandQueue) Push(sn, cmd string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	q, ok := c.queues[sn]
	if !ok {
		q = linkedlistqueue.New()
		c.queues[sn] = q
	}
	if q.Size() >= c.limit {
		return false
	}
	q.Enqueue(cmd)
	return true
}

// Replace discards everything pending for a device and queues cmd alone.
func (c *CommandQueue) Replace(sn, cmd string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	q := linkedlistqueue.New()
	q.Enqueue(cmd)
	c.queues[sn] = q
}

// Pop dequeues the oldest pending command for a device.
func (c *CommandQueue) Pop(sn string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	q, ok := c.queues[sn]
	if !ok {
		return "", false
	}
	v, ok := q.Dequeue()
	if !ok {
		return "", false
	}
	cmd, ok := v.(string)
	return cmd, ok
}

// PopOrDefault dequeues the oldest pending command, or [DefaultCommand] when
// the queue is empty.
func (c *CommandQueue) PopOrDefault(sn string) string {
	if cmd, ok := c.Pop(sn); ok {
		return cmd
	}
	return DefaultCommand
}

// Pending returns how many commands wait for a device.
func (c *CommandQueue) Pending(sn string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	q, ok := c.queues[sn]
	if !ok {
		return 0
	}
	return q.Size()
}

// AutoQueue seeds [DefaultCommand] for every device that pushed within
// window and has nothing pending, and returns how many devices got one.
// Meant to run on a ticker so recently active terminals keep uploading even
// when nobody asked them anything.
func AutoQueue(ctx context.Context, reg *Registry, queue *CommandQueue, window time.Duration) (int, error) {
	infos, err := reg.All(ctx)
	if err != nil {
		return 0, err
	}

	queued := 0
	for _, info := range infos {
		if info.LastSeen.IsZero() || time.Since(info.LastSeen) > window {
			continue
		}
		if queue.Pending(info.SerialNumber) > 0 {
			continue
		}
		if queue.Push(info.SerialNumber, DefaultCommand) {
			queued++
		}
	}
	return queued, nil
}
