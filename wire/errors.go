package wire

import "errors"

var (
	// ErrInvalidFraming is returned when a varint length prefix or a
	// field tag cannot be decoded from the available bytes.
	ErrInvalidFraming = errors.New("wire: invalid message framing")

	// ErrTruncatedBody is returned when a message body is shorter than
	// its length prefix, or a length-delimited field runs past the end
	// of its enclosing message.
	ErrTruncatedBody = errors.New("wire: truncated message body")

	// ErrSchemaMismatch is returned when a field's wire type does not
	// match any case this decoder understands.
	ErrSchemaMismatch = errors.New("wire: schema mismatch")

	// ErrMessageTooLarge is returned when a length prefix exceeds
	// MaxMessageLength.
	ErrMessageTooLarge = errors.New("wire: message exceeds maximum length")

	// ErrMissingOneof is returned when a oneof message decodes with
	// none of its known variants set.
	ErrMissingOneof = errors.New("wire: no oneof variant present")
)
