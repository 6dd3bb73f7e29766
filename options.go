package cmdbuf

import (
	"github.com/gogpu/naga"
)

// ShaderCompiler turns WGSL source into a SPIR-V binary.
type ShaderCompiler func(wgsl string) ([]byte, error)

// compileWGSL is the default ShaderCompiler, backed by naga.
func compileWGSL(wgsl string) ([]byte, error) {
	return naga.Compile(wgsl)
}

// DeviceOption configures a Device during creation.
//
// Example:
//
//	dev := cmdbuf.NewDevice(
//	    cmdbuf.WithLabel("main"),
//	    cmdbuf.WithErrorCallback(func(err error) { log.Print(err) }),
//	)
type DeviceOption func(*deviceOptions)

// deviceOptions holds optional configuration for Device creation.
type deviceOptions struct {
	label         string
	errorCallback func(error)
	compiler      ShaderCompiler
	backend       Backend
}

// defaultDeviceOptions returns the default device options.
func defaultDeviceOptions() deviceOptions {
	return deviceOptions{
		compiler: compileWGSL,
		backend:  nil, // NewDevice creates a NullBackend
	}
}

// WithLabel sets the debug label of the Device. The label is attached to
// every log line the device emits.
func WithLabel(label string) DeviceOption {
	return func(o *deviceOptions) {
		o.label = label
	}
}

// WithErrorCallback installs the device error handler. It receives every
// error passed to Device.HandleError: recording errors, validation errors,
// submission errors and object creation errors. The callback may be invoked
// from any goroutine that records or submits on the device.
func WithErrorCallback(fn func(error)) DeviceOption {
	return func(o *deviceOptions) {
		o.errorCallback = fn
	}
}

// WithShaderCompiler replaces the WGSL compiler used by CreateShaderModule.
// A nil compiler keeps the default.
func WithShaderCompiler(c ShaderCompiler) DeviceOption {
	return func(o *deviceOptions) {
		if c != nil {
			o.compiler = c
		}
	}
}

// WithBackend sets the backend that executes submitted command buffers.
// By default a NullBackend is used.
func WithBackend(b Backend) DeviceOption {
	return func(o *deviceOptions) {
		o.backend = b
	}
}
