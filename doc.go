// Package cmdbuf records, validates and replays GPU command buffers.
//
// # Overview
//
// Applications create resources and pipelines from a [Device], record
// commands with a [CommandBufferBuilder], and submit the resulting
// [CommandBuffer] to the device [Queue]:
//
//	dev := cmdbuf.NewDevice(cmdbuf.WithLabel("main"))
//
//	b := dev.CreateCommandBufferBuilder("upload")
//	_ = b.TransitionBufferUsage(staging, gputypes.BufferUsageCopySrc)
//	_ = b.CopyBufferToTexture(
//	    cmdbuf.BufferCopyLocation{Buffer: staging},
//	    cmdbuf.TextureCopyLocation{Texture: tex, Size: gputypes.Extent3D{Width: 64, Height: 64, DepthOrArrayLayers: 1}},
//	)
//	cb, err := b.GetResult()
//	if err != nil {
//	    return err
//	}
//	defer cb.Release()
//	return dev.Queue().Submit(cb)
//
// # Validation
//
// Validation happens in three places:
//
//   - Recording calls check their own arguments (index ranges, push
//     constant bounds, nil objects). A failing call records nothing.
//   - GetResult replays the whole stream through a state tracker that
//     knows the pass nesting rules, the bound pipeline and bind groups,
//     declared resource usages and copy geometry. Any error rejects the
//     whole command buffer.
//   - Queue.Submit checks that no resource transitioned by a command
//     buffer has been frozen since it was recorded.
//
// All errors are also passed to Device.HandleError, which logs them and
// calls the callback installed with [WithErrorCallback]. Use [KindOf] or
// errors.Is with the Err* values to classify them.
//
// # Resource usage
//
// Buffers and textures always have one declared usage. Transition commands
// change it while GetResult validates the stream, so the effect is visible
// to other command buffers recorded afterwards. FreezeUsage pins a
// resource to one usage for good.
//
// # Lifetime
//
// Objects are reference counted. Recorded commands and objects that point
// at other objects hold references, so releasing an object the
// application no longer needs is always safe.
//
// # Logging
//
// cmdbuf is silent by default. Use [SetLogger] to route its slog output.
package cmdbuf
