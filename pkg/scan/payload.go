// Package scan turns raw scanned text into checkpoint identifiers and abstracts
// the capability that produces that text.
package scan

import (
	"errors"
	"fmt"
)

// Format names the payload shape a code was printed in.
type Format string

// Supported payload formats.
const (
	FormatStructured Format = "json"
	FormatScheme     Format = "checkpoint"
	FormatDirect     Format = "direct"
)

// ErrUnknownFormat is returned by Encode for an unsupported format.
var ErrUnknownFormat = errors.New("unknown payload format")

// ParseFormat resolves a format name; the empty string selects the scheme format.
func ParseFormat(name string) (Format, error) {
	switch Format(name) {
	case "", FormatScheme:
		return FormatScheme, nil
	case FormatStructured, FormatDirect:
		return Format(name), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
}

// Payload is a successfully parsed scan. The concrete type records which
// attempt matched: *StructuredPayload, *SchemePayload or *DirectPayload.
type Payload interface {
	// CheckpointID returns the normalized checkpoint id.
	CheckpointID() string
	// Format reports the shape the payload was recognized as.
	Format() Format

	payload()
}

// StructuredPayload is a JSON object carrying the id in one of its fields.
type StructuredPayload struct {
	ID string
	// Fields holds the decoded document, including fields the parser ignores.
	Fields map[string]any
}

// CheckpointID implements Payload.
func (p *StructuredPayload) CheckpointID() string { return p.ID }

// Format implements Payload.
func (p *StructuredPayload) Format() Format { return FormatStructured }

func (p *StructuredPayload) payload() {}

// SchemePayload is a "<scheme>:<id>" string.
type SchemePayload struct {
	Scheme string
	ID     string
}

// CheckpointID implements Payload.
func (p *SchemePayload) CheckpointID() string { return p.ID }

// Format implements Payload.
func (p *SchemePayload) Format() Format { return FormatScheme }

func (p *SchemePayload) payload() {}

// DirectPayload is a bare checkpoint id.
type DirectPayload struct {
	ID string
}

// CheckpointID implements Payload.
func (p *DirectPayload) CheckpointID() string { return p.ID }

// Format implements Payload.
func (p *DirectPayload) Format() Format { return FormatDirect }

func (p *DirectPayload) payload() {}
