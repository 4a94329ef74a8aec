package services

import "errors"

// Shared sentinel errors returned by the service layer. Handlers map these
// onto HTTP status codes; everything else is treated as an internal error.
var (
	// ErrUnknownNumber indicates the destination WhatsApp number is not
	// registered to any client.
	ErrUnknownNumber = errors.New("unknown destination number")

	// ErrConversationNotFound indicates the referenced conversation does not exist.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrMessageNotFound indicates the referenced message does not exist.
	ErrMessageNotFound = errors.New("message not found")

	// ErrContactNotFound indicates the referenced contact does not exist.
	ErrContactNotFound = errors.New("contact not found")

	// ErrEmptyText indicates a message body was empty after trimming.
	ErrEmptyText = errors.New("empty message text")

	// ErrInvalidInput indicates malformed or missing input parameters.
	ErrInvalidInput = errors.New("invalid input")
)
