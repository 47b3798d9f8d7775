// Package workspace reads the code template and writes generated code and
// the API schema at configured paths.
package workspace

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	perrors "github.com/p-blackswan/autodev/internal/errors"
)

// Paths locates the files a run touches.
type Paths struct {
	Template  string
	Output    string
	APISchema string
}

// Workspace is the filesystem collaborator for agents.
type Workspace struct {
	paths  Paths
	logger zerolog.Logger
}

// New creates a Workspace for the given paths.
func New(paths Paths, logger zerolog.Logger) *Workspace {
	return &Workspace{
		paths:  paths,
		logger: logger.With().Str("component", "workspace").Logger(),
	}
}

// Paths returns the configured paths.
func (w *Workspace) Paths() Paths { return w.paths }

// OutputDir is the directory holding the generated output file.
func (w *Workspace) OutputDir() string { return filepath.Dir(w.paths.Output) }

// ReadTemplate returns the code template contents.
func (w *Workspace) ReadTemplate() (string, error) {
	return w.read("read template", w.paths.Template)
}

// ReadGeneratedOutput returns the last generated code written to disk.
func (w *Workspace) ReadGeneratedOutput() (string, error) {
	return w.read("read generated output", w.paths.Output)
}

// WriteGeneratedOutput replaces the generated code file.
func (w *Workspace) WriteGeneratedOutput(code string) error {
	return w.write("write generated output", w.paths.Output, code)
}

// WriteAPISchema replaces the API schema file.
func (w *Workspace) WriteAPISchema(schema string) error {
	return w.write("write api schema", w.paths.APISchema, schema)
}

func (w *Workspace) read(op, path string) (string, error) {
	if path == "" {
		return "", &perrors.IOError{Op: op, Path: "(unset)", Err: perrors.ErrInvalidInput}
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			err = errors.Join(perrors.ErrNotFound, err)
		}
		return "", &perrors.IOError{Op: op, Path: path, Err: err}
	}
	return string(b), nil
}

func (w *Workspace) write(op, path, contents string) error {
	if path == "" {
		return &perrors.IOError{Op: op, Path: "(unset)", Err: perrors.ErrInvalidInput}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &perrors.IOError{Op: op, Path: path, Err: err}
	}
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		return &perrors.IOError{Op: op, Path: path, Err: err}
	}
	w.logger.Debug().Str("path", path).Int("bytes", len(contents)).Msg(op)
	return nil
}
