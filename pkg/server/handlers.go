package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Sumatoshi-tech/stamprally/pkg/engine"
	"github.com/Sumatoshi-tech/stamprally/pkg/progress"
	"github.com/Sumatoshi-tech/stamprally/pkg/registry"
	"github.com/Sumatoshi-tech/stamprally/pkg/scan"
	"github.com/Sumatoshi-tech/stamprally/pkg/store"
)

// maxBodyBytes bounds request bodies; scan payloads are short.
const maxBodyBytes = 64 << 10

var (
	errEmptyBody       = errors.New("request body is empty")
	errInvalidBody     = errors.New("invalid request body")
	errConfirmRequired = errors.New("reset requires confirm=true")
	errBadLimit        = errors.New("limit must be a non-negative integer")
)

// ScanRequest is the body of POST /api/scan.
type ScanRequest struct {
	Raw string `json:"raw"`
}

// ResetRequest is the body of POST /api/reset.
type ResetRequest struct {
	Confirm bool `json:"confirm"`
}

// ProgressResponse is the body of GET /api/progress and POST /api/reset.
type ProgressResponse struct {
	Progress progress.UserProgress `json:"progress"`
	Stats    progress.Stats        `json:"stats"`
	Next     *registry.Checkpoint  `json:"next,omitempty"`
}

// CodeResponse is the body of GET /api/checkpoints/{id}/code.
type CodeResponse struct {
	Checkpoint string `json:"checkpoint"`
	Format     string `json:"format"`
	Payload    string `json:"payload"`
}

// ErrorResponse is returned for malformed requests and server failures.
type ErrorResponse struct {
	Error string `json:"error"`
}

type handlers struct {
	engine *engine.Engine
	logger *slog.Logger
}

// outcomeStatus maps an outcome to its HTTP status. Business rejections are
// successful requests.
func outcomeStatus(kind engine.Kind) int {
	switch kind {
	case engine.KindParseFailed:
		return http.StatusUnprocessableEntity
	case engine.KindPersistenceFailed, engine.KindScanUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusOK
	}
}

func (h *handlers) scan(rw http.ResponseWriter, hr *http.Request) {
	var req ScanRequest

	err := decodeBody(rw, hr, &req)
	if err != nil {
		writeError(hr.Context(), rw, http.StatusBadRequest, err)

		return
	}

	out := h.engine.Scan(hr.Context(), req.Raw)

	writeJSON(hr.Context(), rw, outcomeStatus(out.Kind), out)
}

func (h *handlers) progress(rw http.ResponseWriter, hr *http.Request) {
	p, err := h.engine.Snapshot(hr.Context())
	if err != nil {
		h.logger.ErrorContext(hr.Context(), "read progress", "error", err)
		writeError(hr.Context(), rw, http.StatusServiceUnavailable, err)

		return
	}

	writeJSON(hr.Context(), rw, http.StatusOK, h.progressResponse(p))
}

func (h *handlers) reset(rw http.ResponseWriter, hr *http.Request) {
	var req ResetRequest

	err := decodeBody(rw, hr, &req)
	if err != nil {
		writeError(hr.Context(), rw, http.StatusBadRequest, err)

		return
	}

	if !req.Confirm {
		writeError(hr.Context(), rw, http.StatusBadRequest, errConfirmRequired)

		return
	}

	p, err := h.engine.Reset(hr.Context())
	if err != nil {
		h.logger.ErrorContext(hr.Context(), "reset progress", "error", err)
		writeError(hr.Context(), rw, http.StatusServiceUnavailable, err)

		return
	}

	writeJSON(hr.Context(), rw, http.StatusOK, h.progressResponse(p))
}

func (h *handlers) history(rw http.ResponseWriter, hr *http.Request) {
	limit := 0

	if raw := hr.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(hr.Context(), rw, http.StatusBadRequest, errBadLimit)

			return
		}

		limit = parsed
	}

	entries, err := h.engine.History(hr.Context(), limit)
	if err != nil {
		writeError(hr.Context(), rw, http.StatusServiceUnavailable, err)

		return
	}

	if entries == nil {
		entries = []store.HistoryEntry{}
	}

	writeJSON(hr.Context(), rw, http.StatusOK, entries)
}

func (h *handlers) clearHistory(rw http.ResponseWriter, hr *http.Request) {
	err := h.engine.ClearHistory(hr.Context())
	if err != nil {
		writeError(hr.Context(), rw, http.StatusServiceUnavailable, err)

		return
	}

	rw.WriteHeader(http.StatusNoContent)
}

func (h *handlers) checkpoints(rw http.ResponseWriter, hr *http.Request) {
	reg := h.engine.Registry()
	query := hr.URL.Query()

	var list []registry.Checkpoint

	if keyword := query.Get("q"); keyword != "" {
		list = reg.Search(keyword)
	} else {
		list = reg.Sorted(registry.SortKey(query.Get("sort")))
	}

	if list == nil {
		list = []registry.Checkpoint{}
	}

	writeJSON(hr.Context(), rw, http.StatusOK, list)
}

func (h *handlers) code(rw http.ResponseWriter, hr *http.Request) {
	format, err := scan.ParseFormat(hr.URL.Query().Get("format"))
	if err != nil {
		writeError(hr.Context(), rw, http.StatusBadRequest, err)

		return
	}

	id := registry.NormalizeID(hr.PathValue("id"))

	payload, err := h.engine.Parser().Encode(id, format)
	if err != nil {
		writeError(hr.Context(), rw, http.StatusNotFound, err)

		return
	}

	writeJSON(hr.Context(), rw, http.StatusOK, CodeResponse{Checkpoint: id, Format: string(format), Payload: payload})
}

func (h *handlers) progressResponse(p progress.UserProgress) ProgressResponse {
	resp := ProgressResponse{Progress: p, Stats: progress.Summarize(p)}

	if next, ok := progress.NextCheckpoint(h.engine.Registry(), p); ok {
		resp.Next = &next
	}

	return resp
}

func decodeBody(rw http.ResponseWriter, hr *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(rw, hr.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	err := dec.Decode(dst)
	if errors.Is(err, io.EOF) {
		return errEmptyBody
	}

	if err != nil {
		return fmt.Errorf("%w: %w", errInvalidBody, err)
	}

	return nil
}

func writeError(ctx context.Context, rw http.ResponseWriter, status int, err error) {
	writeJSON(ctx, rw, status, ErrorResponse{Error: err.Error()})
}

// writeJSON encodes the given value as JSON and writes it with status.
func writeJSON(ctx context.Context, rw http.ResponseWriter, status int, value any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)

	encodeErr := json.NewEncoder(rw).Encode(value)
	if encodeErr != nil {
		slog.Default().ErrorContext(ctx, "failed to encode JSON response", "error", encodeErr)
	}
}
