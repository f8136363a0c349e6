package wire

import "errors"

var (
	// ErrLineTooLong indicates a line exceeded the parser limit and was
	// discarded.
	ErrLineTooLong = errors.New("line too long")
	// ErrNoTopic indicates a frame line without the topic separator.
	ErrNoTopic = errors.New("missing topic separator")
	// ErrOverflow indicates the outbound queue is full and the line was
	// dropped.
	ErrOverflow = errors.New("outbound queue overflow")
)
