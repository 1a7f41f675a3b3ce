// Package reader loads export files. Files written by cloud-sync clients are sometimes
// still placeholders when the watcher fires, so reads go through a primary reader and,
// on failure, a fallback that forces the platform to materialize the content.
package reader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/agentworkforce/courtwatch/internal/workout"
)

var (
	ErrPrimaryRead  = errors.New("primary read failed")
	ErrFallbackRead = errors.New("fallback read failed")
	ErrUnknownKind  = errors.New("unknown fallback reader")
)

const DefaultCommandTimeout = 10 * time.Second

// Reader returns the raw bytes of a file.
type Reader interface {
	Read(ctx context.Context, path string) ([]byte, error)
}

// FSReader reads through an afero filesystem.
type FSReader struct {
	Fs afero.Fs
}

func NewFSReader(fsys afero.Fs) *FSReader {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return &FSReader{Fs: fsys}
}

func (r *FSReader) Read(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return afero.ReadFile(r.Fs, path)
}

// CommandReader shells out to an external program and returns its stdout.
type CommandReader struct {
	Path    string
	Args    []string
	Timeout time.Duration
}

func NewCatReader() *CommandReader {
	return &CommandReader{Path: "cat", Timeout: DefaultCommandTimeout}
}

func (r *CommandReader) Read(ctx context.Context, path string) ([]byte, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := append(append([]string(nil), r.Args...), path)
	cmd := exec.CommandContext(ctx, r.Path, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s %s: %w: %s", r.Path, path, err, msg)
		}
		return nil, fmt.Errorf("%s %s: %w", r.Path, path, err)
	}
	return out, nil
}

// NewFallback builds the fallback reader named by kind: "cat" or "syscall".
func NewFallback(kind string, timeout time.Duration) (Reader, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "cat":
		r := NewCatReader()
		if timeout > 0 {
			r.Timeout = timeout
		}
		return r, nil
	case "syscall":
		return SyscallReader{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// ReadError reports that every reader in a chain failed.
type ReadError struct {
	Path     string
	Primary  error
	Fallback error
}

func (e *ReadError) Error() string {
	if e.Fallback == nil {
		return fmt.Sprintf("read %s: %v", e.Path, e.Primary)
	}
	return fmt.Sprintf("read %s: primary: %v; fallback: %v", e.Path, e.Primary, e.Fallback)
}

func (e *ReadError) Unwrap() []error {
	var errs []error
	if e.Primary != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrPrimaryRead, e.Primary))
	}
	if e.Fallback != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrFallbackRead, e.Fallback))
	}
	return errs
}

// Absent reports whether the file vanished before it could be read. Exporters rotate files,
// so this is not worth a warning.
func (e *ReadError) Absent() bool {
	return errors.Is(e.Primary, fs.ErrNotExist) && (e.Fallback == nil || errors.Is(e.Fallback, fs.ErrNotExist))
}

// Chain reads a file with Primary and falls back to Fallback when the read fails or the
// bytes do not parse.
type Chain struct {
	Primary  Reader
	Fallback Reader
}

// Load returns the parsed document. onFallback, when non-nil, is called with the primary
// failure before the fallback runs.
func (c Chain) Load(ctx context.Context, path string, onFallback func(error)) (workout.Document, error) {
	doc, primaryErr := c.attempt(ctx, c.Primary, path)
	if primaryErr == nil {
		return doc, nil
	}
	if errors.Is(primaryErr, os.ErrNotExist) || c.Fallback == nil || ctx.Err() != nil {
		return nil, &ReadError{Path: path, Primary: primaryErr}
	}
	if onFallback != nil {
		onFallback(primaryErr)
	}
	doc, fallbackErr := c.attempt(ctx, c.Fallback, path)
	if fallbackErr == nil {
		return doc, nil
	}
	return nil, &ReadError{Path: path, Primary: primaryErr, Fallback: fallbackErr}
}

func (c Chain) attempt(ctx context.Context, r Reader, path string) (workout.Document, error) {
	if r == nil {
		return nil, errors.New("no reader configured")
	}
	data, err := r.Read(ctx, path)
	if err != nil {
		return nil, err
	}
	return workout.ParseDocument(data)
}
