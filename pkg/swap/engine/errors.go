package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrNotOwner is returned when a caller tries to cancel an order they
	// do not currently own.
	ErrNotOwner = errors.New("caller does not own order")
	// ErrNotAdmin gates plugin management, surplus withdrawal, and the
	// one-time admin hand-off.
	ErrNotAdmin = errors.New("caller is not the engine admin")
	// ErrReentrantCall is returned when a settlement call is made while
	// another operation is still in flight. The engine is a serializing
	// executor; overlapping entry is rejected, never queued, so a
	// misbehaving plugin or token callback cannot interleave state.
	ErrReentrantCall = errors.New("nested settlement call rejected")
	// ErrInvalidFillAmount is returned when a partial fill amount is not
	// positive, exceeds the order's remaining buy amount, or is too small
	// to produce any payout.
	ErrInvalidFillAmount = errors.New("fill amount out of range")
)

// ExpiredError is returned when an order's deadline has passed at fill time.
type ExpiredError struct {
	ID       uint64
	Deadline int64
	Now      int64
}

func (e ExpiredError) Error() string {
	return fmt.Sprintf("order %d expired at %d (now %d)", e.ID, e.Deadline, e.Now)
}
