package cmdbuf

import (
	"github.com/cockroachdb/errors"
)

// Error categories. Every error produced by this package is marked with
// exactly one of them; use [KindOf] or errors.Is to tell them apart.
var (
	// ErrCreation marks invalid object descriptors passed to Device.Create* methods.
	ErrCreation = errors.New("cmdbuf: object creation error")

	// ErrRecording marks errors detected immediately by a recording call.
	// The offending command is not recorded.
	ErrRecording = errors.New("cmdbuf: recording error")

	// ErrValidation marks errors detected while GetResult replays the
	// command stream through the state tracker.
	ErrValidation = errors.New("cmdbuf: validation error")

	// ErrSubmission marks errors detected when a command buffer is submitted.
	ErrSubmission = errors.New("cmdbuf: submission error")
)

// sentinel is a specific error of one category. errors.Is matches it by
// identity and matches its category through Is.
type sentinel struct {
	msg  string
	kind error
}

func (e *sentinel) Error() string        { return e.msg }
func (e *sentinel) Is(target error) bool { return target == e.kind }

func creationError(msg string) error   { return &sentinel{msg: msg, kind: ErrCreation} }
func recordingError(msg string) error  { return &sentinel{msg: msg, kind: ErrRecording} }
func validationError(msg string) error { return &sentinel{msg: msg, kind: ErrValidation} }
func submissionError(msg string) error { return &sentinel{msg: msg, kind: ErrSubmission} }

// markAs marks err with a sentinel and the sentinel's category while
// keeping err as the cause.
func markAs(err, s error) error {
	err = errors.Mark(err, s)
	if se, ok := s.(*sentinel); ok {
		err = errors.Mark(err, se.kind)
	}
	return err
}

// Object creation errors.
var (
	// ErrNilObject is returned when a required object argument is nil.
	ErrNilObject = creationError("cmdbuf: required object is nil")

	// ErrInvalidDescriptor is returned for malformed descriptors.
	ErrInvalidDescriptor = creationError("cmdbuf: invalid descriptor")

	// ErrShaderCompilation is returned when WGSL cannot be compiled.
	ErrShaderCompilation = creationError("cmdbuf: shader compilation failed")

	// ErrDestroyed is returned when an object is used after its last
	// reference was released.
	ErrDestroyed = creationError("cmdbuf: object has been released")
)

// Recording-time errors.
var (
	// ErrBindGroupIndexOutOfRange is returned when a bind group index is >= MaxBindGroups.
	ErrBindGroupIndexOutOfRange = recordingError("cmdbuf: bind group index out of range")

	// ErrPushConstantsOutOfRange is returned when offset+count exceeds MaxPushConstants.
	ErrPushConstantsOutOfRange = recordingError("cmdbuf: push constant range out of bounds")

	// ErrVertexSlotOutOfRange is returned when a vertex buffer range exceeds MaxVertexInputs.
	ErrVertexSlotOutOfRange = recordingError("cmdbuf: vertex buffer slots out of range")

	// ErrVertexBufferMismatch is returned when the buffer and offset lists differ in length.
	ErrVertexBufferMismatch = recordingError("cmdbuf: vertex buffer and offset counts differ")

	// ErrNilArgument is returned when a recording call receives a nil object.
	ErrNilArgument = recordingError("cmdbuf: nil object passed to recording call")

	// ErrBuilderConsumed is returned when a builder is used after GetResult or Release.
	ErrBuilderConsumed = recordingError("cmdbuf: command buffer builder already consumed")

	// ErrAlreadyAcquired is returned when the commands of a builder are acquired twice.
	ErrAlreadyAcquired = recordingError("cmdbuf: commands already acquired")
)

// State machine errors raised during GetResult.
var (
	// ErrPassNesting is returned for illegal Begin/End ordering of passes and subpasses.
	ErrPassNesting = validationError("cmdbuf: invalid pass nesting")

	// ErrOpenPass is returned when the command stream ends inside a pass.
	ErrOpenPass = validationError("cmdbuf: command buffer ended with an open pass")

	// ErrOutsideRenderSubpass is returned for render commands outside a render subpass.
	ErrOutsideRenderSubpass = validationError("cmdbuf: command requires an active render subpass")

	// ErrOutsideComputePass is returned for compute commands outside a compute pass.
	ErrOutsideComputePass = validationError("cmdbuf: command requires an active compute pass")

	// ErrOutsidePass is returned for commands that need a render subpass or a compute pass.
	ErrOutsidePass = validationError("cmdbuf: command requires an active subpass or compute pass")

	// ErrIncompatibleFramebuffer is returned when a framebuffer does not match its render pass.
	ErrIncompatibleFramebuffer = validationError("cmdbuf: framebuffer is incompatible with the render pass")

	// ErrIncompatiblePipeline is returned when a render pipeline does not match the current subpass.
	ErrIncompatiblePipeline = validationError("cmdbuf: pipeline is incompatible with the current subpass")

	// ErrIncompatibleBindGroup is returned when a bind group layout differs from the pipeline layout.
	ErrIncompatibleBindGroup = validationError("cmdbuf: bind group layout does not match the pipeline layout")

	// ErrNoPipeline is returned by draws and dispatches without a pipeline.
	ErrNoPipeline = validationError("cmdbuf: no pipeline set")

	// ErrBindGroupsNotSet is returned when a bind group required by the pipeline layout is missing.
	ErrBindGroupsNotSet = validationError("cmdbuf: required bind groups are not set")

	// ErrVertexBuffersNotSet is returned when a vertex slot required by the input state is unbound.
	ErrVertexBuffersNotSet = validationError("cmdbuf: required vertex buffers are not set")

	// ErrIndexBufferNotSet is returned by DrawElements without an index buffer.
	ErrIndexBufferNotSet = validationError("cmdbuf: index buffer not set")

	// ErrPushConstantStages is returned when push constant stages do not fit the current pass.
	ErrPushConstantStages = validationError("cmdbuf: push constant stages invalid for the current pass")

	// ErrCopyInPass is returned when a copy is recorded inside a pass.
	ErrCopyInPass = validationError("cmdbuf: copies cannot occur inside a pass")

	// ErrCopyOutOfBounds is returned when a copy touches memory outside a buffer or texture.
	ErrCopyOutOfBounds = validationError("cmdbuf: copy out of bounds")

	// ErrRowPitchAlignment is returned when a row pitch is not a multiple of TextureRowPitchAlignment.
	ErrRowPitchAlignment = validationError("cmdbuf: row pitch must be a multiple of 256")

	// ErrRowPitchTooSmall is returned when a row pitch is smaller than one row of texels.
	ErrRowPitchTooSmall = validationError("cmdbuf: row pitch is smaller than a row of texels")

	// ErrTexelOffsetAlignment is returned when a buffer offset is not a multiple of the texel size.
	ErrTexelOffsetAlignment = validationError("cmdbuf: buffer offset must be a multiple of the texel size")

	// ErrMipLevelOutOfRange is returned when a copy names a missing mip level.
	ErrMipLevelOutOfRange = validationError("cmdbuf: copy mip level out of range")

	// ErrUnsupportedCopyDepth is returned for copies with z != 0 or depth != 1.
	ErrUnsupportedCopyDepth = validationError("cmdbuf: copies require z == 0 and depth == 1")

	// ErrFormatNotCopyable is returned for copies of textures whose format has no texel size.
	ErrFormatNotCopyable = validationError("cmdbuf: texture format cannot be copied")

	// ErrFrozenUsage is returned when a frozen resource is transitioned.
	ErrFrozenUsage = validationError("cmdbuf: resource usage is frozen")

	// ErrUsageNotAllowed is returned when a transition asks for a usage the resource cannot have.
	ErrUsageNotAllowed = validationError("cmdbuf: usage not allowed for resource")

	// ErrUsageNotDeclared is returned when a resource is used without the matching declared usage.
	ErrUsageNotDeclared = validationError("cmdbuf: resource is not in the required usage")
)

// Submission errors.
var (
	// ErrResourceFrozenSinceRecording is returned when a transitioned resource
	// became frozen between recording and submission.
	ErrResourceFrozenSinceRecording = submissionError("cmdbuf: resource usage frozen since recording")

	// ErrNilCommandBuffer is returned when a nil command buffer is submitted.
	ErrNilCommandBuffer = submissionError("cmdbuf: nil command buffer submitted")

	// ErrCommandBufferReleased is returned when a released command buffer is submitted or replayed.
	ErrCommandBufferReleased = submissionError("cmdbuf: command buffer has been released")
)

// ErrorKind is the category of an error.
type ErrorKind int

const (
	// KindUnknown is any error not produced by this package.
	KindUnknown ErrorKind = iota
	// KindCreation is an invalid object descriptor.
	KindCreation
	// KindRecording is a local error caught by a recording call.
	KindRecording
	// KindValidation is a state machine error caught by GetResult.
	KindValidation
	// KindSubmission is an error caught by Queue.Submit.
	KindSubmission
)

// String returns the string representation of ErrorKind.
func (k ErrorKind) String() string {
	switch k {
	case KindCreation:
		return "Creation"
	case KindRecording:
		return "Recording"
	case KindValidation:
		return "Validation"
	case KindSubmission:
		return "Submission"
	default:
		return "Unknown"
	}
}

// KindOf returns the category err belongs to.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrCreation):
		return KindCreation
	case errors.Is(err, ErrRecording):
		return KindRecording
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrSubmission):
		return KindSubmission
	default:
		return KindUnknown
	}
}
