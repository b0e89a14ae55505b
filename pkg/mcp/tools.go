package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sumatoshi-tech/stamprally/pkg/engine"
	"github.com/Sumatoshi-tech/stamprally/pkg/progress"
	"github.com/Sumatoshi-tech/stamprally/pkg/registry"
)

// Tool name constants.
const (
	ToolNameScan        = "stamp_scan"
	ToolNameProgress    = "stamp_progress"
	ToolNameReset       = "stamp_reset"
	ToolNameHistory     = "stamp_history"
	ToolNameCheckpoints = "stamp_checkpoints"
)

// Input size limits.
const (
	// MaxPayloadBytes is the maximum allowed size for a raw scan payload.
	MaxPayloadBytes = 4 << 10
)

// Sentinel errors for tool input validation.
var (
	// ErrEmptyPayload indicates the payload parameter is empty.
	ErrEmptyPayload = errors.New("payload parameter is required and must not be empty")
	// ErrPayloadTooLarge indicates the payload exceeds the size limit.
	ErrPayloadTooLarge = errors.New("payload exceeds maximum size")
	// ErrResetNotConfirmed indicates stamp_reset was called without confirm=true.
	ErrResetNotConfirmed = errors.New("reset discards all stamps and requires confirm=true")
	// ErrNegativeLimit indicates a negative history limit.
	ErrNegativeLimit = errors.New("limit must not be negative")
)

// Input types (auto-generate JSON schemas via struct tags).

// ScanInput is the input schema for the stamp_scan tool.
type ScanInput struct {
	Payload string `json:"payload" jsonschema:"raw text read from the checkpoint code"`
}

// ProgressInput is the input schema for the stamp_progress tool.
type ProgressInput struct{}

// ResetInput is the input schema for the stamp_reset tool.
type ResetInput struct {
	Confirm bool `json:"confirm" jsonschema:"must be true to discard all stamps"`
}

// HistoryInput is the input schema for the stamp_history tool.
type HistoryInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum number of entries (default: all)"`
}

// CheckpointsInput is the input schema for the stamp_checkpoints tool.
type CheckpointsInput struct {
	Sort    string `json:"sort,omitempty"    jsonschema:"order, name or area (default: order)"`
	Keyword string `json:"keyword,omitempty" jsonschema:"case-insensitive filter on name, area and description"`
}

// Output type (used as structured output for generic AddTool).

// ToolOutput is a generic wrapper for tool results.
type ToolOutput struct {
	Data any `json:"data"`
}

// ProgressOutput is the payload of stamp_progress and stamp_reset.
type ProgressOutput struct {
	Progress progress.UserProgress `json:"progress"`
	Stats    progress.Stats        `json:"stats"`
	Next     string                `json:"next,omitempty"`
}

type toolset struct {
	engine *engine.Engine
}

func (ts *toolset) handleScan(
	ctx context.Context, _ *mcpsdk.CallToolRequest, input ScanInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if input.Payload == "" {
		return errorResult(ErrEmptyPayload)
	}

	if len(input.Payload) > MaxPayloadBytes {
		return errorResult(fmt.Errorf("%w: %d bytes (max %d)", ErrPayloadTooLarge, len(input.Payload), MaxPayloadBytes))
	}

	out := ts.engine.Scan(ctx, input.Payload)

	// Rejections are normal outcomes; only failures are flagged as tool errors.
	result, output, err := jsonResult(out)
	if result != nil && (out.Kind == engine.KindPersistenceFailed || out.Kind == engine.KindParseFailed) {
		result.IsError = true
	}

	return result, output, err
}

func (ts *toolset) handleProgress(
	ctx context.Context, _ *mcpsdk.CallToolRequest, _ ProgressInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	p, err := ts.engine.Snapshot(ctx)
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(ts.progressOutput(p))
}

func (ts *toolset) handleReset(
	ctx context.Context, _ *mcpsdk.CallToolRequest, input ResetInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if !input.Confirm {
		return errorResult(ErrResetNotConfirmed)
	}

	p, err := ts.engine.Reset(ctx)
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(ts.progressOutput(p))
}

func (ts *toolset) handleHistory(
	ctx context.Context, _ *mcpsdk.CallToolRequest, input HistoryInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if input.Limit < 0 {
		return errorResult(ErrNegativeLimit)
	}

	entries, err := ts.engine.History(ctx, input.Limit)
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(entries)
}

func (ts *toolset) handleCheckpoints(
	_ context.Context, _ *mcpsdk.CallToolRequest, input CheckpointsInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	reg := ts.engine.Registry()

	if input.Keyword != "" {
		return jsonResult(reg.Search(input.Keyword))
	}

	return jsonResult(reg.Sorted(registry.SortKey(input.Sort)))
}

func (ts *toolset) progressOutput(p progress.UserProgress) ProgressOutput {
	out := ProgressOutput{Progress: p, Stats: progress.Summarize(p)}

	if next, ok := progress.NextCheckpoint(ts.engine.Registry(), p); ok {
		out.Next = next.ID
	}

	return out
}

// Result helpers.

// errorResult builds a CallToolResult with isError set.
func errorResult(err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: err.Error()},
		},
		IsError: true,
	}, ToolOutput{}, nil
}

// jsonResult builds a CallToolResult with JSON-encoded content.
func jsonResult(value any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: string(data)},
		},
	}, ToolOutput{Data: value}, nil
}
