package errors

import sterrors "errors"

var (
	ErrStageNameRequired  = sterrors.New("imageflow: stage name is required")
	ErrTransformRequired  = sterrors.New("imageflow: transform function is required")
	ErrInboundRequired    = sterrors.New("imageflow: stage needs an inbound topic with decoder, or a producer")
	ErrDecodeRequired     = sterrors.New("imageflow: inbound topic requires a decode function")
	ErrEncodeRequired     = sterrors.New("imageflow: outbound topic requires an encode function")
	ErrPublisherRequired  = sterrors.New("imageflow: outbound topic requires a publisher")
	ErrSubscriberRequired = sterrors.New("imageflow: inbound topic requires a subscriber")
	ErrLoggerRequired     = sterrors.New("imageflow: logger is required")

	// ErrSkipMessage tells the stage loop to discard the current message
	// without treating it as a failure. Decoders return it for control
	// messages like heartbeats.
	ErrSkipMessage = sterrors.New("imageflow: skip message")
)
