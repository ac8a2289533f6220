package errors

import "fmt"

var (
	// Validation failures, reported to the offending client only.
	ErrInvalidPseudo  = fmt.Errorf("pseudo must be 2-20 letters, digits, space, '_' or '-'")
	ErrEmptyMessage   = fmt.Errorf("message is empty")
	ErrMessageTooLong = fmt.Errorf("message exceeds the maximum length")
	ErrEmptyAuthor    = fmt.Errorf("author is empty")

	// ErrRegistryFull is returned when the registry already holds the
	// maximum number of distinct display names.
	ErrRegistryFull = fmt.Errorf("no more seats available")

	// Frame decoding failures. Logged and ignored, never fatal.
	ErrMalformedFrame = fmt.Errorf("malformed frame")
	ErrUnknownFrame   = fmt.Errorf("unknown frame type")

	// ErrSendQueueFull means a peer is too slow to drain its outbound
	// queue. The hub schedules such connections for close.
	ErrSendQueueFull = fmt.Errorf("outbound queue full")

	ErrNotALink = fmt.Errorf("segment is not a link")

	ErrWorkerPanic = fmt.Errorf("worker panic")
)
