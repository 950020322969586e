// Package httperr classifies request failures and carries the HTTP status,
// a client-facing message, the underlying cause and slog metadata for them.
package httperr

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"sort"
)

type Kind string

const (
	KindValidation     Kind = "validation"
	KindUploadRejected Kind = "upload_rejected"
	KindFilesystem     Kind = "filesystem"
	KindNotFound       Kind = "not_found"
	KindStore          Kind = "store"
	KindBadRequest     Kind = "bad_request"
	KindInternal       Kind = "internal"
)

// Error is a classified request failure.
type Error struct {
	kind     Kind
	status   int
	msg      string
	cause    error
	metadata map[string]any
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.cause)
	}
	return e.msg
}

// Unwrap exposes the cause to errors.Is and errors.As.
func (e *Error) Unwrap() error {
	return e.cause
}

// Kind returns the error class.
func (e *Error) Kind() Kind { return e.kind }

// Status returns the HTTP status the error maps to.
func (e *Error) Status() int { return e.status }

// Message returns the client-facing message, without the cause.
func (e *Error) Message() string { return e.msg }

// Metadata returns a copy of the metadata map.
func (e *Error) Metadata() map[string]any {
	if e.metadata == nil {
		return nil
	}
	out := make(map[string]any, len(e.metadata))
	maps.Copy(out, e.metadata)
	return out
}

// With returns a copy of e with extra key/value metadata. Newer keys win.
func (e *Error) With(fields ...any) *Error {
	if len(fields)%2 != 0 {
		panic("an even number of fields is required")
	}
	md := make(map[string]any, len(e.metadata)+len(fields)/2)
	maps.Copy(md, e.metadata)
	for i := 0; i < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			panic("keys must be strings")
		}
		md[key] = fields[i+1]
	}
	cp := *e
	cp.metadata = md
	return &cp
}

func newError(kind Kind, status int, msg string, cause error) *Error {
	return &Error{kind: kind, status: status, msg: msg, cause: cause}
}

// Rejected reports an upload refused by intake (wrong type, too large...).
// It is recoverable and rendered inline with the given status.
func Rejected(status int, field, msg string) *Error {
	return newError(KindUploadRejected, status, msg, nil).With("field", field)
}

// Filesystem reports a failed delete, move or write on disk.
func Filesystem(op, path string, cause error) *Error {
	return newError(KindFilesystem, http.StatusInternalServerError, "file "+op+" failed", cause).With("op", op, "path", path)
}

// Store reports a failed session store operation.
func Store(op string, cause error) *Error {
	return newError(KindStore, http.StatusInternalServerError, "session "+op+" failed", cause).With("op", op)
}

// NotFound reports an unmatched route.
func NotFound(path string) *Error {
	return newError(KindNotFound, http.StatusNotFound, "Not Found", nil).With("path", path)
}

// BadRequest reports malformed client input that cannot be rendered inline.
func BadRequest(msg string, cause error) *Error {
	return newError(KindBadRequest, http.StatusBadRequest, msg, cause)
}

// Internal wraps an unexpected failure.
func Internal(msg string, cause error) *Error {
	return newError(KindInternal, http.StatusInternalServerError, msg, cause)
}

// StatusOf returns the HTTP status carried by err, or 500.
func StatusOf(err error) int {
	var herr *Error
	if errors.As(err, &herr) && herr.status != 0 {
		return herr.status
	}
	return http.StatusInternalServerError
}

// KindOf returns the class of err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var herr *Error
	if errors.As(err, &herr) {
		return herr.kind
	}
	return KindInternal
}

// MessageOf returns the client-facing message of err.
func MessageOf(err error) string {
	var herr *Error
	if errors.As(err, &herr) {
		return herr.msg
	}
	return http.StatusText(http.StatusInternalServerError)
}

// Log writes err to logger, rendering metadata and cause as slog fields.
// Client errors are logged at warn level, everything else at error level.
func Log(logger *slog.Logger, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	var herr *Error
	if !errors.As(err, &herr) {
		logger.Error(err.Error())
		return
	}

	args := make([]any, 0, len(herr.metadata)*2+4)
	args = append(args, "kind", string(herr.kind), "status", herr.status)
	if herr.cause != nil {
		args = append(args, "cause", herr.cause)
	}
	keys := make([]string, 0, len(herr.metadata))
	for k := range herr.metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, k, herr.metadata[k])
	}

	if herr.status < http.StatusInternalServerError {
		logger.Warn(herr.msg, args...)
		return
	}
	logger.Error(herr.msg, args...)
}
