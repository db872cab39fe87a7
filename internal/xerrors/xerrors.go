// Package xerrors declares the typed error kinds the engine surfaces, each
// chaining its cause the way github.com/cockroachdb/errors does throughout
// this codebase.
package xerrors

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Kind identifies one of the engine's error categories. Every fatal error
// the engine returns is tagged with a Kind so callers can distinguish, e.g.,
// a source-availability failure from an archive-integrity violation without
// string-matching messages.
type Kind struct {
	name string
}

var (
	// SourceAvailability covers FFI open failure, RPC unreachable, empty
	// bounds: fatal for the current operation.
	SourceAvailability = Kind{"source-availability"}
	// SourceProtocol covers RPC error responses, unexpected heights in a
	// batch, decode failures, and empty batches when progress is required.
	SourceProtocol = Kind{"source-protocol"}
	// ArchiveIntegrity covers version/chain-id mismatch on open, duplicate
	// height insertion without consent, and missing blocks/geneses during
	// a feasibility check.
	ArchiveIntegrity = Kind{"archive-integrity"}
	// PlanInfeasible covers an unknown chain id or an archive missing
	// required heights with no remote source configured.
	PlanInfeasible = Kind{"plan-infeasible"}
	// VersionRuntime covers state-store exclusivity denial, a migrate
	// invoked against the wrong "from" version, and commit failure.
	VersionRuntime = Kind{"version-runtime"}
	// IndexConflict covers a duplicate block/tx row under default
	// settings (without allow_existing_data).
	IndexConflict = Kind{"index-conflict"}
)

type wrapped struct {
	kind Kind
	error
}

// Wrap chains err as the cause of a new error tagged with this Kind.
func (k Kind) Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return &wrapped{kind: k, error: errors.Wrap(err, msg)}
}

// Wrapf is Wrap with a formatted message.
func (k Kind) Wrapf(err error, format string, args ...interface{}) error {
	return k.Wrap(err, fmt.Sprintf(format, args...))
}

// New creates a new error tagged with this Kind.
func (k Kind) New(msg string) error {
	return &wrapped{kind: k, error: errors.New(msg)}
}

// Newf is New with a formatted message.
func (k Kind) Newf(format string, args ...interface{}) error {
	return k.New(fmt.Sprintf(format, args...))
}

func (w *wrapped) Unwrap() error { return w.error }

func (w *wrapped) Error() string {
	return fmt.Sprintf("%s: %s", w.kind.name, w.error.Error())
}

// KindOf reports the Kind an error was tagged with, if any.
func KindOf(err error) (Kind, bool) {
	var w *wrapped
	if errors.As(err, &w) {
		return w.kind, true
	}
	return Kind{}, false
}

// Is reports whether err (or a cause in its chain) was tagged with kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
