package errors

import (
	stderrors "errors"
	"fmt"
	"strconv"
	"strings"
)

// Phase indicates which bridge operation produced the error
type Phase string

const (
	PhaseHost        Phase = "host"        // host table resolution
	PhaseHandle      Phase = "handle"      // entity handle wrap/release
	PhaseAcquire     Phase = "acquire"     // control acquisition
	PhaseRelease     Phase = "release"     // control release
	PhaseDispatch    Phase = "dispatch"    // action dispatch
	PhaseSchedule    Phase = "schedule"    // scheduler slot registration/invocation
	PhaseEnvironment Phase = "environment" // environment create/destroy
	PhaseScript      Phase = "script"      // interpreted code
	PhasePersist     Phase = "persist"     // save/load routing
	PhaseConfig      Phase = "config"      // configuration loading
)

// Kind categorizes the error
type Kind string

const (
	KindHostUnavailable   Kind = "host_unavailable"
	KindEntityAbsent      Kind = "entity_absent"
	KindScriptFault       Kind = "script_fault"
	KindCapacityExhausted Kind = "capacity_exhausted"
	KindInvalidState      Kind = "invalid_state"
	KindUnsupported       Kind = "unsupported"
	KindCancelled         Kind = "cancelled"
	KindInvalidInput      Kind = "invalid_input"
	KindNotFound          Kind = "not_found"
	KindClosed            Kind = "closed"
	KindLoad              Kind = "load"
)

// Error is the structured error type used throughout the bridge
type Error struct {
	Cause  error
	Phase  Phase
	Kind   Kind
	Owner  string
	Detail string
	Entity uint64
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Entity != 0 {
		b.WriteString(" entity=")
		b.WriteString(strconv.FormatUint(e.Entity, 10))
	}
	if e.Owner != "" {
		b.WriteString(" owner=")
		b.WriteString(e.Owner)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// IsKind reports whether err is a bridge error of the given kind, in any phase.
// Every branch of a joined error is searched.
func IsKind(err error, kind Kind) bool {
	if e, ok := err.(*Error); ok && e.Kind == kind {
		return true
	}
	switch u := err.(type) {
	case interface{ Unwrap() error }:
		return IsKind(u.Unwrap(), kind)
	case interface{ Unwrap() []error }:
		for _, e := range u.Unwrap() {
			if IsKind(e, kind) {
				return true
			}
		}
	}
	return false
}

// KindOf returns the kind of the first bridge error in err's tree, or the
// empty kind.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Entity sets the entity id involved
func (b *Builder) Entity(id uint64) *Builder {
	b.err.Entity = id
	return b
}

// Owner sets the owning environment key
func (b *Builder) Owner(owner string) *Builder {
	b.err.Owner = owner
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// HostUnavailable creates an error for a host entry point that was never resolved
func HostUnavailable(phase Phase, entry string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindHostUnavailable,
		Detail: fmt.Sprintf("host entry point %s not resolved", entry),
	}
}

// EntityAbsent creates an error for an invalid or despawned entity
func EntityAbsent(phase Phase, entity uint64) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindEntityAbsent,
		Entity: entity,
		Detail: "entity is not present",
	}
}

// ScriptFault wraps an error raised by interpreted code
func ScriptFault(phase Phase, owner, entry string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindScriptFault,
		Owner:  owner,
		Detail: entry,
		Cause:  cause,
	}
}

// CapacityExhausted creates an error for a full fixed-size table
func CapacityExhausted(phase Phase, capacity int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindCapacityExhausted,
		Detail: fmt.Sprintf("all %d slots in use", capacity),
	}
}

// InvalidState creates an error for an operation attempted in the wrong state
func InvalidState(phase Phase, entity uint64, state string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidState,
		Entity: entity,
		Detail: fmt.Sprintf("not allowed in state %s", state),
	}
}

// Unsupported creates an error for a capability the entity does not expose
func Unsupported(phase Phase, entity uint64, capability string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Entity: entity,
		Detail: fmt.Sprintf("entity does not support %s", capability),
	}
}

// Cancelled creates an error for a wait abandoned through the cancellation signal
func Cancelled(phase Phase, entity uint64) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindCancelled,
		Entity: entity,
		Detail: "cancelled",
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// Closed creates an error for an operation on a torn-down service
func Closed(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindClosed,
		Detail: fmt.Sprintf("%s closed", what),
	}
}

// Load creates a script loading error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseEnvironment,
		Kind:   KindLoad,
		Detail: detail,
		Cause:  cause,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// MissingEntriesError is returned when the host table lacks required entry points
type MissingEntriesError struct {
	Entries []string
}

func (e *MissingEntriesError) Error() string {
	if len(e.Entries) == 0 {
		return "[host] host_unavailable: no entries specified"
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("missing %d host entry point(s):", len(e.Entries)))
	for _, name := range e.Entries {
		b.WriteString("\n  - ")
		b.WriteString(name)
	}
	return b.String()
}

// Is reports whether target matches this error type
func (e *MissingEntriesError) Is(target error) bool {
	_, ok := target.(*MissingEntriesError)
	return ok
}
