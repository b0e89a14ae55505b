package scan

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
)

// Scanner failures. These are distinct from parse failures: no text was produced.
var (
	ErrCancelled        = errors.New("scan cancelled")
	ErrPermissionDenied = errors.New("scanner permission denied")
	ErrUnavailable      = errors.New("scanner unavailable")
)

// Scanner produces raw payload text, typically by reading a printed code.
type Scanner interface {
	Scan(ctx context.Context) (string, error)
}

// ScannerFunc adapts a function to the Scanner interface.
type ScannerFunc func(ctx context.Context) (string, error)

// Scan implements Scanner.
func (f ScannerFunc) Scan(ctx context.Context) (string, error) {
	return f(ctx)
}

// LineScanner reads one payload per line from a reader, such as a
// keyboard-wedge barcode reader attached to stdin.
type LineScanner struct {
	lines *bufio.Scanner
}

// NewLineScanner creates a LineScanner over r.
func NewLineScanner(r io.Reader) *LineScanner {
	return &LineScanner{lines: bufio.NewScanner(r)}
}

type lineResult struct {
	text string
	err  error
}

// Scan returns the next line. End of input maps to ErrUnavailable and a done
// context to ErrCancelled.
func (s *LineScanner) Scan(ctx context.Context) (string, error) {
	done := make(chan lineResult, 1)

	go func() {
		if s.lines.Scan() {
			done <- lineResult{text: s.lines.Text()}

			return
		}

		err := s.lines.Err()
		if err == nil {
			err = io.EOF
		}

		done <- lineResult{err: err}
	}()

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
	case res := <-done:
		if res.err != nil {
			return "", fmt.Errorf("%w: %w", ErrUnavailable, res.err)
		}

		return res.text, nil
	}
}
