// Package main generates JSON schemas for the wire types of the HTTP API and
// the MCP tools.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/Sumatoshi-tech/stamprally/pkg/engine"
	"github.com/Sumatoshi-tech/stamprally/pkg/registry"
	"github.com/Sumatoshi-tech/stamprally/pkg/server"
	"github.com/Sumatoshi-tech/stamprally/pkg/store"
)

const (
	schemaDraft = "https://json-schema.org/draft-07/schema#"
	dirPerm     = 0o755
	filePerm    = 0o644
)

// Schema represents a JSON Schema.
type Schema struct {
	Schema               string             `json:"$schema,omitempty"`
	Title                string             `json:"title,omitempty"`
	Description          string             `json:"description,omitempty"`
	Type                 string             `json:"type,omitempty"`
	Properties           map[string]*Schema `json:"properties,omitempty"`
	AdditionalProperties *Schema            `json:"additionalProperties,omitempty"`
	Items                *Schema            `json:"items,omitempty"`
	Required             []string           `json:"required,omitempty"`
	Ref                  string             `json:"$ref,omitempty"`
	Definitions          map[string]*Schema `json:"definitions,omitempty"`
}

// wireTypes lists the documents exchanged with clients, keyed by file name.
var wireTypes = map[string]any{
	"scan_outcome":  &engine.Outcome{},
	"progress":      &server.ProgressResponse{},
	"history_entry": &store.HistoryEntry{},
	"checkpoint":    &registry.Checkpoint{},
}

func main() {
	var outputDir string

	flag.StringVar(&outputDir, "o", "docs/schemas", "Output directory for schemas")
	flag.Parse()

	err := run(outputDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(outputDir string) error {
	err := os.MkdirAll(outputDir, dirPerm)
	if err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	names := make([]string, 0, len(wireTypes))
	for name := range wireTypes {
		names = append(names, name)
	}

	slices.Sort(names)

	for _, name := range names {
		err = writeSchema(outputDir, name, generateSchema(name, wireTypes[name]))
		if err != nil {
			return fmt.Errorf("write schema for %s: %w", name, err)
		}

		fmt.Fprintf(os.Stdout, "Generated schema for %s\n", name)
	}

	return nil
}

// primitives maps scalar kinds onto JSON schema types.
var primitives = map[reflect.Kind]string{
	reflect.String:  "string",
	reflect.Bool:    "boolean",
	reflect.Int:     "integer",
	reflect.Int8:    "integer",
	reflect.Int16:   "integer",
	reflect.Int32:   "integer",
	reflect.Int64:   "integer",
	reflect.Uint:    "integer",
	reflect.Uint8:   "integer",
	reflect.Uint16:  "integer",
	reflect.Uint32:  "integer",
	reflect.Uint64:  "integer",
	reflect.Float32: "number",
	reflect.Float64: "number",
}

// generator collects named struct definitions while walking a type.
type generator struct {
	defs map[string]*Schema
}

func generateSchema(name string, v any) *Schema {
	gen := &generator{defs: make(map[string]*Schema)}

	root := gen.object(reflect.Indirect(reflect.ValueOf(v)).Type())
	root.Schema = schemaDraft
	root.Title = title(name)
	root.Description = "JSON schema for the " + strings.ReplaceAll(name, "_", " ") + " document"

	if len(gen.defs) > 0 {
		root.Definitions = gen.defs
	}

	return root
}

// title turns "scan_outcome" into "Scan Outcome".
func title(name string) string {
	words := strings.Fields(strings.ReplaceAll(name, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}

	return strings.Join(words, " ")
}

// object describes a struct inline. Fields tagged omitempty or omitzero are
// optional; pointers and maps may encode as null and are never required.
func (g *generator) object(t reflect.Type) *Schema {
	obj := &Schema{Type: "object", Properties: make(map[string]*Schema)}

	for i := range t.NumField() {
		field := t.Field(i)
		name, opts, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			continue
		}

		obj.Properties[name] = g.describe(field.Type)

		optional := strings.Contains(opts, "omitempty") || strings.Contains(opts, "omitzero")
		nullable := field.Type.Kind() == reflect.Pointer || field.Type.Kind() == reflect.Map

		if !optional && !nullable {
			obj.Required = append(obj.Required, name)
		}
	}

	return obj
}

func (g *generator) describe(t reflect.Type) *Schema {
	switch {
	case t == reflect.TypeFor[time.Duration]():
		return &Schema{Type: "integer", Description: "Duration in nanoseconds"}
	case t == reflect.TypeFor[time.Time]():
		return &Schema{Type: "string", Description: "RFC 3339 timestamp"}
	case primitives[t.Kind()] != "":
		return &Schema{Type: primitives[t.Kind()]}
	}

	switch t.Kind() {
	case reflect.Pointer:
		return g.describe(t.Elem())
	case reflect.Slice, reflect.Array:
		return &Schema{Type: "array", Items: g.describe(t.Elem())}
	case reflect.Map:
		return &Schema{Type: "object", AdditionalProperties: g.describe(t.Elem())}
	case reflect.Struct:
		return g.reference(t)
	default:
		return &Schema{}
	}
}

// reference registers a named struct under definitions and points at it.
// Anonymous structs are described inline.
func (g *generator) reference(t reflect.Type) *Schema {
	if t.Name() == "" {
		return g.object(t)
	}

	if _, seen := g.defs[t.Name()]; !seen {
		// Reserve the slot before recursing so self-referencing types end.
		g.defs[t.Name()] = &Schema{}
		*g.defs[t.Name()] = *g.object(t)
	}

	return &Schema{Ref: "#/definitions/" + t.Name()}
}

func writeSchema(outputDir, name string, schema *Schema) error {
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}

	path := filepath.Join(outputDir, name+".json")

	err = os.WriteFile(path, append(data, '\n'), filePerm)
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	return nil
}
