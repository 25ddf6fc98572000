package services

import "errors"

// Named failures surfaced to handlers so the UI can tell the caller *why* a
// transition was rejected, not just that it failed.
var (
	// ErrInvalidAmount rejects ledger appends without a positive amount.
	ErrInvalidAmount = errors.New("amount must be a positive integer")

	// ErrAlreadyClaimed means another collector claimed the task first.
	ErrAlreadyClaimed = errors.New("task already claimed by another collector")

	// ErrNotAssignedCollector guards in-progress tasks: only the assigned
	// collector may act on them.
	ErrNotAssignedCollector = errors.New("not the assigned collector for this task")

	// ErrTaskNotInProgress means the requested transition is only valid from
	// in_progress (e.g. verifying a pending or already-verified task).
	ErrTaskNotInProgress = errors.New("task is not in progress")

	// ErrInsufficientBalance means redemption cost exceeds the derived balance.
	ErrInsufficientBalance = errors.New("insufficient point balance")

	// ErrVerificationRejected covers both a failing oracle judgment and an
	// oracle call that errored or timed out; failure is never success.
	ErrVerificationRejected = errors.New("verification not accepted")
)
