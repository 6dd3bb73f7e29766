package cmdbuf

import (
	"sync/atomic"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"

	"github.com/gogpu/cmdbuf/internal/cache"
)

// Device creates objects and owns the error handler and the queue.
//
// A Device is safe for concurrent use. Objects created from it may be
// shared between goroutines; builders may not.
type Device struct {
	label         string
	errorCallback func(error)
	compiler      ShaderCompiler
	backend       Backend
	queue         *Queue

	// layouts deduplicates bind group layouts by descriptor so that layout
	// compatibility is pointer identity.
	layouts *cache.Registry[*BindGroupLayout]

	// emptyInputState is used by render pipelines without an input state.
	emptyInputState *InputState

	stats deviceStats
}

type deviceStats struct {
	buffers        atomic.Uint64
	textures       atomic.Uint64
	bindGroups     atomic.Uint64
	pipelines      atomic.Uint64
	commandBuffers atomic.Uint64
	errors         atomic.Uint64
}

// NewDevice creates a device.
//
// Example:
//
//	dev := cmdbuf.NewDevice(cmdbuf.WithLabel("main"))
//	b := dev.CreateCommandBufferBuilder("frame")
func NewDevice(opts ...DeviceOption) *Device {
	o := defaultDeviceOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.backend == nil {
		o.backend = NewNullBackend()
	}
	d := &Device{
		label:         o.label,
		errorCallback: o.errorCallback,
		compiler:      o.compiler,
		backend:       o.backend,
		layouts:       cache.New[*BindGroupLayout](nil),
	}
	d.queue = &Queue{device: d}
	d.emptyInputState = &InputState{label: "empty"}
	d.emptyInputState.initRefs(nil)
	return d
}

// Label returns the debug label.
func (d *Device) Label() string { return d.label }

// Queue returns the device queue.
func (d *Device) Queue() *Queue { return d.queue }

// Backend returns the backend that executes submitted command buffers.
func (d *Device) Backend() Backend { return d.backend }

// HandleError reports err to the device: it is logged at warning level and
// passed to the error callback. Recording continues after an error; the
// command buffer being built will fail in GetResult.
func (d *Device) HandleError(err error) {
	if err == nil {
		return
	}
	d.stats.errors.Add(1)
	Logger().Warn("cmdbuf: device error",
		"device", d.label,
		"kind", KindOf(err).String(),
		"err", err)
	if d.errorCallback != nil {
		d.errorCallback(err)
	}
}

// ErrorCount returns the number of errors reported through HandleError.
func (d *Device) ErrorCount() uint64 {
	return d.stats.errors.Load()
}

func (d *Device) creationFailed(err error) error {
	d.HandleError(err)
	return err
}

// WriteStatsJSON writes object counters and layout cache statistics to w.
func (d *Device) WriteStatsJSON(w *jwriter.Writer) {
	obj := w.Object()
	defer obj.End()

	obj.Name("Label").String(d.label)
	created := obj.Name("Created").Object()
	writeUint(created.Name("Buffers"), d.stats.buffers.Load())
	writeUint(created.Name("Textures"), d.stats.textures.Load())
	writeUint(created.Name("BindGroups"), d.stats.bindGroups.Load())
	writeUint(created.Name("Pipelines"), d.stats.pipelines.Load())
	writeUint(created.Name("CommandBuffers"), d.stats.commandBuffers.Load())
	created.End()

	writeUint(obj.Name("Errors"), d.stats.errors.Load())
	writeUint(obj.Name("Submitted"), d.queue.submitted.Load())

	s := d.layouts.Stats()
	layouts := obj.Name("BindGroupLayouts").Object()
	layouts.Name("Live").Int(s.Len)
	writeUint(layouts.Name("Hits"), s.Hits)
	writeUint(layouts.Name("Misses"), s.Misses)
	layouts.End()
}
