package migration

import "github.com/contentstack/cli-sub008/internal/domain/shared"

var (
	ErrMissingUID        = shared.NewDomainError("MISSING_UID", "Record has no uid")
	ErrInvalidTotal      = shared.NewDomainError("INVALID_TOTAL", "Process total cannot be negative")
	ErrProcessNotStarted = shared.NewDomainError("PROCESS_NOT_STARTED", "Process has not been started")
	ErrProcessCompleted  = shared.NewDomainError("PROCESS_COMPLETED", "Process is already completed")
	ErrProcessOverflow   = shared.NewDomainError("PROCESS_OVERFLOW", "Process received more ticks than its total")
	ErrProcessExists     = shared.NewDomainError("PROCESS_EXISTS", "Process is already registered")
	ErrUnknownProcess    = shared.NewDomainError("UNKNOWN_PROCESS", "Process is not registered")
	ErrProgressCompleted = shared.NewDomainError("PROGRESS_COMPLETED", "Module progress is already completed")
	ErrInvalidPayload    = shared.NewDomainError("INVALID_PAYLOAD", "Payload failed validation")
	ErrRunNotFound       = shared.NewDomainError("RUN_NOT_FOUND", "Run history not found")
	ErrInvalidRunState   = shared.NewDomainError("INVALID_RUN_STATE", "Run history is not in a valid state for this operation")
	ErrInvalidEntityKind = shared.NewDomainError("INVALID_ENTITY_KIND", "Unknown entity kind")
)
