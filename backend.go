package cmdbuf

import (
	"sync"

	"github.com/gogpu/cmdbuf/command"
)

// Backend executes submitted command buffers. Implementations translate the
// commands yielded by CommandBuffer.Replay into driver calls.
type Backend interface {
	Execute(cb *CommandBuffer) error
}

// NullBackend executes command buffers by counting their commands. It is
// the default backend of a Device.
type NullBackend struct {
	mu       sync.Mutex
	executed uint64
	counts   [command.Count]uint64
}

// NewNullBackend creates a NullBackend.
func NewNullBackend() *NullBackend {
	return &NullBackend{}
}

// Execute replays cb and counts its commands.
func (n *NullBackend) Execute(cb *CommandBuffer) error {
	var counts [command.Count]uint64
	err := cb.Replay(func(c Command) error {
		counts[c.ID()]++
		return nil
	})
	if err != nil {
		return err
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	n.executed++
	for i, c := range counts {
		n.counts[i] += c
	}
	return nil
}

// Executed returns the number of command buffers executed.
func (n *NullBackend) Executed() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.executed
}

// Count returns how many commands with id have been executed.
func (n *NullBackend) Count(id command.ID) uint64 {
	if !id.IsValid() {
		return 0
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.counts[id]
}
