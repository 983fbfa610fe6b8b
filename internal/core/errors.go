package core

import "errors"

var (
	// ErrProviderUnavailable means no credential is configured for the provider key.
	ErrProviderUnavailable = errors.New("provider unavailable")
	// ErrProviderRequestFailed is a transient upstream failure, timeouts included.
	ErrProviderRequestFailed = errors.New("provider request failed")

	ErrMemoryStoreDisabled = errors.New("memory store disabled")

	ErrConversationNotFound = errors.New("conversation not found")
	ErrConversationArchived = errors.New("conversation archived")
	ErrMaterialNotFound     = errors.New("material not found")
	ErrMemoryNotFound       = errors.New("memory not found")
	ErrKnowledgeNotFound    = errors.New("knowledge topic not found")

	ErrAuthorizationDenied = errors.New("authorization denied")
	ErrInvalidInput        = errors.New("invalid input")
	ErrInvalidState        = errors.New("invalid state transition")
	ErrVersionConflict     = errors.New("version conflict")
)
