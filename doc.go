// Package imageflow is a three-stage image pipeline built on Watermill:
// a source that paces raw frames onto a topic, a relay that runs a feature
// extractor over each frame, and a sink that persists the enriched result
// to SQLite. Stages are independent processes linked only by the transport,
// so any subset of them can run at a time.
//
// Frames travel in a compact big-endian binary format defined in the wire
// package. Every record starts with a one-byte discriminant so a receiver
// can route or reject a payload before parsing it.
//
// # Transports
//
// Imageflow supports 2 message transports out of the box:
//   - channel: In-memory Go channels for testing and single-process runs
//   - nats: NATS Core for cross-process deployments
//
// Both are lossy by construction: a publisher whose peer is absent or slow
// drops frames instead of blocking, and a stage never fails because the
// stage next to it is down. The only fatal condition is a stage failing to
// acquire its own endpoints at startup.
//
// # Stages
//
// The runtime package implements one generic stage loop; NewSourceStage,
// NewRelayStage, and NewSinkStage specialize it. Inbound waits are bounded
// by a receive timeout so cancellation is observed promptly, and the sink
// logs storage statistics while its inbound side is quiet.
//
// A minimal setup fills Config, builds a transport via BuildTransport,
// constructs a stage, and calls Run with a signal-aware context; the cmd
// directory holds one binary per stage doing exactly that.
package imageflow
