package sendfile

import (
	"io/fs"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// VerdictKind classifies the outcome of validating a requested path.
type VerdictKind int

const (
	VerdictSuccess VerdictKind = iota
	VerdictBadRequest
	VerdictForbidden
	VerdictNotFound
	VerdictInternalError
)

func (k VerdictKind) String() string {
	switch k {
	case VerdictSuccess:
		return "success"
	case VerdictBadRequest:
		return "bad_request"
	case VerdictForbidden:
		return "forbidden"
	case VerdictNotFound:
		return "not_found"
	case VerdictInternalError:
		return "internal_error"
	}
	return "unknown"
}

// Status returns the HTTP status code the verdict is reported with.
// Success has no status line of its own and reports 200.
func (k VerdictKind) Status() int {
	switch k {
	case VerdictBadRequest:
		return StatusBadRequest
	case VerdictForbidden:
		return StatusForbidden
	case VerdictNotFound:
		return StatusNotFound
	case VerdictInternalError:
		return StatusInternalServerError
	}
	return 200
}

// Verdict is produced once per matched request and consumed by the Emitter.
type Verdict struct {
	Kind          VerdictKind
	Path          string
	IsBlockDevice bool
	Err           error // underlying filesystem error, if any
}

// OK reports whether the verdict delegates the file to the web server.
func (v Verdict) OK() bool { return v.Kind == VerdictSuccess }

// Validator checks that a requested path may be handed to the web server.
// It performs no traversal or symlink checks: the web server in front of
// this responder decides who may reach it.
type Validator struct {
	stat   func(name string) (fs.FileInfo, error)
	access func(name string) error
}

// NewValidator returns a Validator backed by the real filesystem.
func NewValidator() *Validator {
	return &Validator{
		stat: os.Stat,
		access: func(name string) error {
			return unix.Access(name, unix.R_OK)
		},
	}
}

// Validate classifies path into a Verdict.
func (v *Validator) Validate(path string) Verdict {
	if len(path) == 0 || path[0] != '/' {
		return Verdict{Kind: VerdictBadRequest, Path: path}
	}

	info, err := v.stat(path)
	if err != nil {
		return Verdict{Kind: classifyStatError(err), Path: path, Err: err}
	}

	if err := v.access(path); err != nil {
		return Verdict{Kind: VerdictForbidden, Path: path, Err: errors.Wrap(err, "read access")}
	}

	mode := info.Mode()
	return Verdict{
		Kind:          VerdictSuccess,
		Path:          path,
		IsBlockDevice: mode&fs.ModeDevice != 0 && mode&fs.ModeCharDevice == 0,
	}
}

func classifyStatError(err error) VerdictKind {
	switch {
	case errors.Is(err, fs.ErrPermission):
		return VerdictForbidden
	case errors.Is(err, fs.ErrNotExist):
		return VerdictNotFound
	}
	return VerdictInternalError
}
