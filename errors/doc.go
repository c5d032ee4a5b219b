// Package errors provides structured error types for the script bridge.
//
// Errors are categorized by Phase (which bridge operation failed) and Kind
// (error category). The Error type carries the entity and owner involved, a
// human-readable detail and an optional cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseDispatch, errors.KindEntityAbsent).
//		Entity(42).
//		Owner("quest:7").
//		Detail("follow target %d is not alive", 9).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.HostUnavailable(errors.PhaseAcquire, "GrantControl")
//	err := errors.CapacityExhausted(errors.PhaseSchedule, 20)
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
