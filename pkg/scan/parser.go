package scan

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Sumatoshi-tech/stamprally/pkg/registry"
)

// DefaultScheme is the reserved keyword of the "<scheme>:<id>" format.
const DefaultScheme = "checkpoint"

const (
	schemeSeparator = ":"
	typeField       = "type"
	previewLimit    = 64
)

// idFields lists the structured-document fields accepted as the checkpoint id, in priority order.
var idFields = []string{"id", "checkpointId", "checkpoint_id"}

// Sentinel errors for parsing and encoding.
var (
	// ErrUnrecognized means no parse attempt matched the input.
	ErrUnrecognized = errors.New("unrecognized scan payload")
	// ErrUnknownID is returned by Encode for an id outside the known set.
	ErrUnknownID = errors.New("unknown checkpoint id")
)

// ParseError describes input that could not be turned into a checkpoint id.
type ParseError struct {
	Raw string
	Err error
}

// Error implements error.
func (e *ParseError) Error() string {
	return fmt.Sprintf("parse scan %q: %v", preview(e.Raw), e.Err)
}

// Unwrap returns the underlying cause.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parser recognizes the structured, scheme and direct payload formats.
// It holds no mutable state and is safe for concurrent use.
type Parser struct {
	known  map[string]struct{}
	scheme string
}

// Option configures a Parser.
type Option func(*Parser)

// WithScheme overrides the reserved scheme keyword.
func WithScheme(scheme string) Option {
	return func(p *Parser) {
		scheme = strings.ToLower(strings.TrimSpace(scheme))
		if scheme != "" {
			p.scheme = scheme
		}
	}
}

// NewParser creates a parser for the given set of known checkpoint ids.
func NewParser(ids []string, opts ...Option) *Parser {
	p := &Parser{
		known:  make(map[string]struct{}, len(ids)),
		scheme: DefaultScheme,
	}

	for _, id := range ids {
		p.known[registry.NormalizeID(id)] = struct{}{}
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// NewRegistryParser creates a parser over the ids of reg.
func NewRegistryParser(reg *registry.Registry, opts ...Option) *Parser {
	return NewParser(reg.IDs(), opts...)
}

// Scheme returns the reserved scheme keyword.
func (p *Parser) Scheme() string {
	return p.scheme
}

// Parse runs the structured, scheme and direct attempts in order; the first
// match wins. Malformed input yields a *ParseError wrapping ErrUnrecognized.
func (p *Parser) Parse(raw string) (Payload, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, &ParseError{Raw: raw, Err: ErrUnrecognized}
	}

	if payload, ok := p.parseStructured(text); ok {
		return payload, nil
	}

	if payload, ok := p.parseScheme(text); ok {
		return payload, nil
	}

	if payload, ok := p.parseDirect(text); ok {
		return payload, nil
	}

	return nil, &ParseError{Raw: raw, Err: ErrUnrecognized}
}

func (p *Parser) parseStructured(text string) (Payload, bool) {
	if !strings.HasPrefix(text, "{") {
		return nil, false
	}

	var fields map[string]any

	err := json.Unmarshal([]byte(text), &fields)
	if err != nil {
		return nil, false
	}

	if kind, present := fields[typeField]; present {
		s, isString := kind.(string)
		if !isString || !strings.EqualFold(strings.TrimSpace(s), p.scheme) {
			return nil, false
		}
	}

	for _, name := range idFields {
		value, isString := fields[name].(string)
		if !isString {
			continue
		}

		id := registry.NormalizeID(value)
		if id != "" {
			return &StructuredPayload{ID: id, Fields: fields}, true
		}
	}

	return nil, false
}

func (p *Parser) parseScheme(text string) (Payload, bool) {
	if strings.Count(text, schemeSeparator) != 1 {
		return nil, false
	}

	scheme, value, _ := strings.Cut(text, schemeSeparator)

	scheme = strings.ToLower(strings.TrimSpace(scheme))
	if scheme != p.scheme {
		return nil, false
	}

	id := registry.NormalizeID(value)
	if id == "" {
		return nil, false
	}

	return &SchemePayload{Scheme: scheme, ID: id}, true
}

func (p *Parser) parseDirect(text string) (Payload, bool) {
	id := registry.NormalizeID(text)

	if _, ok := p.known[id]; !ok {
		return nil, false
	}

	return &DirectPayload{ID: id}, true
}

// Encode renders the payload text for a printed code of the given format.
func (p *Parser) Encode(id string, format Format) (string, error) {
	id = registry.NormalizeID(id)

	if _, ok := p.known[id]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownID, id)
	}

	switch format {
	case FormatScheme:
		return p.scheme + schemeSeparator + id, nil
	case FormatDirect:
		return id, nil
	case FormatStructured:
		data, err := json.Marshal(struct {
			Type string `json:"type"`
			ID   string `json:"id"`
		}{Type: p.scheme, ID: id})
		if err != nil {
			return "", fmt.Errorf("encode payload: %w", err)
		}

		return string(data), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

func preview(raw string) string {
	runes := []rune(raw)
	if len(runes) <= previewLimit {
		return raw
	}

	return string(runes[:previewLimit]) + "..."
}
