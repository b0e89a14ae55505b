package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Sumatoshi-tech/stamprally/pkg/kv"
)

// DefaultHistoryLimit bounds the scan history; the oldest entries are evicted first.
const DefaultHistoryLimit = 100

// HistoryEntry records one scan attempt.
type HistoryEntry struct {
	ID           string `json:"id"`
	Raw          string `json:"raw"`
	CheckpointID string `json:"checkpointId,omitempty"`
	Format       string `json:"format,omitempty"`
	Outcome      string `json:"outcome"`
	Reason       string `json:"reason,omitempty"`
	At           int64  `json:"at"`
}

// Time returns the instant of the attempt.
func (e HistoryEntry) Time() time.Time {
	return fromMillis(e.At)
}

// AppendHistory stores entry as the newest history item. A missing id or
// instant is filled in.
func (s *Store) AppendHistory(ctx context.Context, entry HistoryEntry) (HistoryEntry, error) {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}

	if entry.At == 0 {
		entry.At = s.now().UnixMilli()
	}

	entries, err := s.loadHistory(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "scan history unreadable, starting fresh", "error", err)

		entries = nil
	}

	entries = append([]HistoryEntry{entry}, entries...)
	if len(entries) > s.historyLimit {
		entries = entries[:s.historyLimit]
	}

	err = s.history.Save(ctx, func() *[]HistoryEntry { return &entries })
	if err != nil {
		return entry, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	return entry, nil
}

// History returns up to limit entries, newest first. A non-positive limit returns all.
func (s *Store) History(ctx context.Context, limit int) ([]HistoryEntry, error) {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()

	entries, err := s.loadHistory(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	return entries, nil
}

// ClearHistory removes all history entries.
func (s *Store) ClearHistory(ctx context.Context) error {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()

	err := s.history.Clear(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	return nil
}

func (s *Store) loadHistory(ctx context.Context) ([]HistoryEntry, error) {
	entries := []HistoryEntry{}

	err := s.history.Load(ctx, func(loaded *[]HistoryEntry) {
		if *loaded != nil {
			entries = *loaded
		}
	})
	if errors.Is(err, kv.ErrNotFound) {
		return entries, nil
	}

	if err != nil {
		return nil, err
	}

	return entries, nil
}
