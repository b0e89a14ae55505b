package store

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/Sumatoshi-tech/stamprally/pkg/progress"
)

// RecordVersion is written into every persisted record.
const RecordVersion = 1

//go:embed record.schema.json
var recordSchemaJSON []byte

var (
	schemaOnce     sync.Once
	compiledSchema *gojsonschema.Schema
	errSchema      error
)

// Record is the persisted shape of UserProgress. Instants are epoch milliseconds.
type Record struct {
	Version              int              `json:"version"`
	GateCompleted        bool             `json:"gateCompleted"`
	CompletedCheckpoints []string         `json:"completedCheckpoints"`
	CompletionTimestamps map[string]int64 `json:"completionTimestamps"`
	TotalCheckpoints     int              `json:"totalCheckpoints"`
	IsFullyComplete      bool             `json:"isFullyComplete"`
	LastScanInstant      *int64           `json:"lastScanInstant"`
	UpdatedAt            int64            `json:"updatedAt"`
}

// FromProgress converts a snapshot into its persisted form.
func FromProgress(p progress.UserProgress, updatedAt time.Time) Record {
	rec := Record{
		Version:              RecordVersion,
		GateCompleted:        p.GateCompleted,
		CompletedCheckpoints: append([]string{}, p.CompletedCheckpoints...),
		CompletionTimestamps: make(map[string]int64, len(p.CompletionTimestamps)),
		TotalCheckpoints:     p.TotalCheckpoints,
		IsFullyComplete:      progress.IsFullyComplete(p),
		UpdatedAt:            updatedAt.UnixMilli(),
	}

	for id, at := range p.CompletionTimestamps {
		rec.CompletionTimestamps[id] = at.UnixMilli()
	}

	if p.LastScanInstant != nil {
		last := p.LastScanInstant.UnixMilli()
		rec.LastScanInstant = &last
	}

	return rec
}

// Progress converts the record back into a snapshot. Derived fields are copied
// as stored; callers normalize the result.
func (r Record) Progress() progress.UserProgress {
	p := progress.New(r.TotalCheckpoints)
	p.GateCompleted = r.GateCompleted
	p.IsFullyComplete = r.IsFullyComplete
	p.CompletedCheckpoints = append(p.CompletedCheckpoints, r.CompletedCheckpoints...)

	for id, ms := range r.CompletionTimestamps {
		p.CompletionTimestamps[id] = fromMillis(ms)
	}

	if r.LastScanInstant != nil {
		last := fromMillis(*r.LastScanInstant)
		p.LastScanInstant = &last
	}

	return p
}

// SchemaError lists the schema violations of a stored record.
type SchemaError struct {
	Problems []string
}

// Error implements error.
func (e *SchemaError) Error() string {
	return fmt.Sprintf("%v: %s", ErrCorruptRecord, strings.Join(e.Problems, "; "))
}

// Unwrap makes SchemaError match ErrCorruptRecord.
func (e *SchemaError) Unwrap() error {
	return ErrCorruptRecord
}

// CheckRecord validates raw record bytes against the embedded schema. Invalid
// JSON and schema violations both yield an error wrapping ErrCorruptRecord.
func CheckRecord(data []byte) error {
	schema, err := recordSchema()
	if err != nil {
		return err
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCorruptRecord, err)
	}

	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))

	for _, verr := range result.Errors() {
		problems = append(problems, verr.Field()+": "+verr.Description())
	}

	return &SchemaError{Problems: problems}
}

// RecordSchema returns the embedded JSON Schema document.
func RecordSchema() []byte {
	return append([]byte(nil), recordSchemaJSON...)
}

func recordSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(recordSchemaJSON))
		if err != nil {
			errSchema = fmt.Errorf("compile record schema: %w", err)

			return
		}

		compiledSchema = schema
	})

	return compiledSchema, errSchema
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// toMillisPrecision drops sub-millisecond precision so in-memory snapshots
// match what a reload returns.
func toMillisPrecision(t time.Time) time.Time {
	return fromMillis(t.UnixMilli())
}
