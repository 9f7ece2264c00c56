package userqueue

import (
	"errors"
	"fmt"
)

// ErrRegistryClosed is returned by Submit after Stop.
var ErrRegistryClosed = errors.New("userqueue: registry closed")

// ErrQueueFull is the sentinel matched by errors.Is for QueueFullError.
var ErrQueueFull = errors.New("userqueue: queue full")

// QueueFullError reports that a user's queue had no room within the
// enqueue timeout.
type QueueFullError struct {
	Username string
	Length   int
	Capacity int
}

func (e *QueueFullError) Error() string {
	return fmt.Sprintf("userqueue: queue for %q full (%d/%d)", e.Username, e.Length, e.Capacity)
}

func (e *QueueFullError) Is(target error) bool { return target == ErrQueueFull }
