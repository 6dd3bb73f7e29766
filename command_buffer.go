package cmdbuf

import (
	"slices"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"

	"github.com/gogpu/cmdbuf/command"
)

// CommandBuffer is a validated, immutable command stream.
//
// It holds references on every object its commands use, so it stays valid
// after the application releases them. Replay and submission may happen
// from any goroutine; replays of one buffer are serialised.
type CommandBuffer struct {
	refCounted
	device *Device
	label  string

	mu       sync.Mutex
	commands *command.Iterator

	buffersTransitioned  []*Buffer
	texturesTransitioned []*Texture
}

func newCommandBuffer(d *Device, label string, it *command.Iterator, t *stateTracker) *CommandBuffer {
	cb := &CommandBuffer{
		device:               d,
		label:                label,
		commands:             it,
		buffersTransitioned:  t.buffersTransitioned.items,
		texturesTransitioned: t.texturesTransitioned.items,
	}
	cb.initRefs(cb.destroy)
	d.stats.commandBuffers.Add(1)
	return cb
}

func (c *CommandBuffer) destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	freeCommands(c.commands)
	Logger().Debug("cmdbuf: command buffer released", "label", c.label)
}

// Label returns the debug label.
func (c *CommandBuffer) Label() string { return c.label }

// Len returns the number of commands.
func (c *CommandBuffer) Len() int { return c.commands.Len() }

// TransitionedBuffers returns the buffers whose usage the command buffer
// transitions, each once, in first-transition order.
func (c *CommandBuffer) TransitionedBuffers() []*Buffer {
	return slices.Clone(c.buffersTransitioned)
}

// TransitionedTextures returns the textures whose usage the command buffer
// transitions, each once, in first-transition order.
func (c *CommandBuffer) TransitionedTextures() []*Texture {
	return slices.Clone(c.texturesTransitioned)
}

// ValidateResourceUsagesImmediate checks, at submission time, that no
// transitioned resource was frozen after the command buffer was recorded.
func (c *CommandBuffer) ValidateResourceUsagesImmediate() error {
	if c.IsReleased() {
		return errors.Wrapf(ErrCommandBufferReleased, "command buffer %q", c.label)
	}
	for _, b := range c.buffersTransitioned {
		if b.IsFrozen() {
			return errors.Wrapf(ErrResourceFrozenSinceRecording, "command buffer %q: buffer %q", c.label, b.Label())
		}
	}
	for _, t := range c.texturesTransitioned {
		if t.IsFrozen() {
			return errors.Wrapf(ErrResourceFrozenSinceRecording, "command buffer %q: texture %q", c.label, t.Label())
		}
	}
	return nil
}

// walk decodes every record in order. It stops at the first error fn returns.
func (c *CommandBuffer) walk(fn func(record) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.commands.IsDestroyed() {
		return errors.Wrapf(ErrCommandBufferReleased, "command buffer %q", c.label)
	}

	it := c.commands
	it.Reset()
	defer it.Reset()
	for id, ok := it.NextCommandID(); ok; id, ok = it.NextCommandID() {
		if err := fn(decodeCommand(it, id)); err != nil {
			// Finish the pass so the stream is left consistent.
			for id, ok := it.NextCommandID(); ok; id, ok = it.NextCommandID() {
				skipCommand(it, id)
			}
			return err
		}
	}
	return nil
}

// Replay yields every command in recording order. Commands must not be
// modified or retained past the call.
func (c *CommandBuffer) Replay(fn func(Command) error) error {
	return c.walk(func(r record) error { return fn(r) })
}

// WriteJSON writes the label, the transitioned resources and every command
// with its operands to w.
func (c *CommandBuffer) WriteJSON(w *jwriter.Writer) error {
	obj := w.Object()
	obj.Name("Label").String(c.label)

	buffers := obj.Name("TransitionedBuffers").Array()
	for _, b := range c.buffersTransitioned {
		buffers.String(b.Label())
	}
	buffers.End()
	textures := obj.Name("TransitionedTextures").Array()
	for _, t := range c.texturesTransitioned {
		textures.String(t.Label())
	}
	textures.End()

	commands := obj.Name("Commands").Array()
	err := c.walk(func(r record) error {
		cmd := commands.Object()
		cmd.Name("Op").String(r.ID().String())
		r.writeJSON(&cmd)
		cmd.End()
		return nil
	})
	commands.End()
	obj.End()
	return err
}

// DumpJSON returns the WriteJSON output as a byte slice.
func (c *CommandBuffer) DumpJSON() ([]byte, error) {
	w := jwriter.NewWriter()
	if err := c.WriteJSON(&w); err != nil {
		return nil, err
	}
	if err := w.Error(); err != nil {
		return nil, errors.Wrap(err, "cmdbuf: writing JSON")
	}
	return w.Bytes(), nil
}
