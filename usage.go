package cmdbuf

import (
	"sync/atomic"

	"github.com/cockroachdb/errors"
)

// usageBits is the set of integer types gputypes uses for usage bitmasks.
type usageBits interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64
}

// usageState tracks the declared usage of a buffer or texture.
//
// The allowed usage is fixed at creation. The current usage is changed by
// transitions until the resource is frozen; after that it never changes.
// Fields are atomics so a concurrent reader never observes a torn value,
// but a transition is not serialised against other transitions: callers
// recording command buffers that transition the same resource must order
// those recordings themselves, and submission-time validation reports
// resources frozen in between.
type usageState[U usageBits] struct {
	allowed  U
	writable U
	current  atomic.Uint64
	frozen   atomic.Bool
}

func (s *usageState[U]) init(allowed, writable, initial U) {
	s.allowed = allowed
	s.writable = writable
	s.current.Store(uint64(initial))
}

func (s *usageState[U]) Current() U {
	return U(s.current.Load())
}

func (s *usageState[U]) IsFrozen() bool {
	return s.frozen.Load()
}

// has reports whether usage is a subset of the current usage.
func (s *usageState[U]) has(usage U) bool {
	return s.Current()&usage == usage
}

func (s *usageState[U]) hasFrozen(usage U) bool {
	return s.IsFrozen() && s.has(usage)
}

// isPossible reports whether usage may be declared at all: it must be
// allowed, and a usage that writes must be used alone.
func (s *usageState[U]) isPossible(usage U) bool {
	return isUsagePossible(s.allowed, s.writable, usage)
}

func isUsagePossible[U usageBits](allowed, writable, usage U) bool {
	allowedUsage := usage&allowed == usage
	readOnly := usage&writable == 0
	singleUse := usage != 0 && usage&(usage-1) == 0
	return allowedUsage && (readOnly || singleUse)
}

func (s *usageState[U]) isTransitionPossible(usage U) bool {
	return !s.IsFrozen() && s.isPossible(usage)
}

func (s *usageState[U]) transition(usage U) error {
	if s.IsFrozen() {
		return errors.Wrapf(ErrFrozenUsage, "frozen with usage %#x, requested %#x", uint64(s.Current()), uint64(usage))
	}
	if !s.isPossible(usage) {
		return errors.Wrapf(ErrUsageNotAllowed, "allowed %#x, requested %#x", uint64(s.allowed), uint64(usage))
	}
	s.current.Store(uint64(usage))
	return nil
}

func (s *usageState[U]) freeze(usage U) error {
	if err := s.transition(usage); err != nil {
		return err
	}
	s.frozen.Store(true)
	return nil
}
