package store_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/stamprally/pkg/kv"
	"github.com/Sumatoshi-tech/stamprally/pkg/persist"
	"github.com/Sumatoshi-tech/stamprally/pkg/progress"
	"github.com/Sumatoshi-tech/stamprally/pkg/registry"
	"github.com/Sumatoshi-tech/stamprally/pkg/store"
	"github.com/Sumatoshi-tech/stamprally/pkg/validate"
)

var (
	t0      = time.Date(2026, 5, 2, 9, 30, 0, 0, time.UTC)
	errDisk = errors.New("disk full")
)

// flakyKV fails writes on demand.
type flakyKV struct {
	*kv.Memory

	failSet atomic.Bool
}

func (f *flakyKV) Set(ctx context.Context, key string, value []byte) error {
	if f.failSet.Load() {
		return errDisk
	}

	return f.Memory.Set(ctx, key, value)
}

func newStore(t *testing.T, backend kv.Store) *store.Store {
	t.Helper()

	return store.New(backend, registry.Default(), store.Options{Policy: validate.DefaultPolicy()})
}

func TestCurrent_PersistsDefaultsOnFirstRead(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := kv.NewMemory()

	p, err := newStore(t, backend).Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, progress.New(6), p)

	raw, err := backend.Get(ctx, store.ProgressKey)
	require.NoError(t, err)
	require.NoError(t, store.CheckRecord(raw))
	assert.JSONEq(t, `[]`, jsonField(t, raw, "completedCheckpoints"))
}

func TestRecordCompletion_GateThenStandardSurvivesReload(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := kv.NewMemory()
	s := newStore(t, backend)

	p, d, err := s.RecordCompletion(ctx, "signin", t0)
	require.NoError(t, err)
	require.True(t, d.Admissible)
	assert.True(t, p.GateCompleted)

	p, d, err = s.RecordCompletion(ctx, "coffee", t0.Add(2*time.Second))
	require.NoError(t, err)
	require.True(t, d.Admissible)
	assert.Equal(t, []string{"signin", "coffee"}, p.CompletedCheckpoints)
	require.NotNil(t, p.LastScanInstant)
	assert.Equal(t, t0.Add(2*time.Second), *p.LastScanInstant)

	reloaded, err := newStore(t, backend).Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, p, reloaded)
}

func TestRecordCompletion_RejectionLeavesRecordUntouched(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := kv.NewMemory()
	s := newStore(t, backend)

	before, err := s.Current(ctx)
	require.NoError(t, err)

	rawBefore, err := backend.Get(ctx, store.ProgressKey)
	require.NoError(t, err)

	p, d, err := s.RecordCompletion(ctx, "esports", t0)
	require.NoError(t, err)
	assert.False(t, d.Admissible)
	assert.Equal(t, validate.ReasonGateRequired, d.Reason)
	assert.Equal(t, before, p)

	rawAfter, err := backend.Get(ctx, store.ProgressKey)
	require.NoError(t, err)
	assert.Equal(t, rawBefore, rawAfter)
}

func TestRecordCompletion_Idempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newStore(t, kv.NewMemory())

	_, d, err := s.RecordCompletion(ctx, "signin", t0)
	require.NoError(t, err)
	require.True(t, d.Admissible)

	p, d, err := s.RecordCompletion(ctx, "signin", t0.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, validate.ReasonAlreadyCompleted, d.Reason)
	assert.Equal(t, 1, p.Completed())
	assert.Equal(t, t0, p.CompletionTimestamps["signin"])
}

func TestRecordCompletion_ConcurrentScansCountOnce(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newStore(t, kv.NewMemory())

	var (
		wg       sync.WaitGroup
		accepted atomic.Int32
	)

	for range 32 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, d, err := s.RecordCompletion(ctx, "signin", t0)
			if err == nil && d.Admissible {
				accepted.Add(1)
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, int32(1), accepted.Load())

	p, err := s.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"signin"}, p.CompletedCheckpoints)
}

func TestRecordCompletion_WriteFailureKeepsPreviousState(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := &flakyKV{Memory: kv.NewMemory()}
	s := newStore(t, backend)

	_, _, err := s.RecordCompletion(ctx, "signin", t0)
	require.NoError(t, err)

	backend.failSet.Store(true)

	p, d, err := s.RecordCompletion(ctx, "coffee", t0.Add(time.Minute))
	require.ErrorIs(t, err, store.ErrPersistence)
	require.ErrorIs(t, err, errDisk)
	assert.True(t, d.Admissible)
	assert.Equal(t, []string{"signin"}, p.CompletedCheckpoints)

	backend.failSet.Store(false)

	current, err := s.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"signin"}, current.CompletedCheckpoints)
}

func TestCurrent_CorruptRecord(t *testing.T) {
	t.Parallel()

	records := map[string]string{
		"invalid json":  `{"gateCompleted": tru`,
		"wrong type":    `{"gateCompleted":"yes","completedCheckpoints":[],"completionTimestamps":{},"totalCheckpoints":6}`,
		"missing field": `{"gateCompleted":false,"completionTimestamps":{},"totalCheckpoints":6}`,
	}

	for name, raw := range records {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			backend := kv.NewMemory()
			require.NoError(t, backend.Set(ctx, store.ProgressKey, []byte(raw)))

			s := newStore(t, backend)

			_, err := s.Current(ctx)
			require.ErrorIs(t, err, store.ErrPersistence)
			require.ErrorIs(t, err, store.ErrCorruptRecord)

			p, err := s.Reset(ctx)
			require.NoError(t, err)
			assert.Equal(t, progress.New(6), p)

			_, err = s.Current(ctx)
			require.NoError(t, err)
		})
	}
}

func TestCurrent_RecomputesDriftedFields(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := kv.NewMemory()
	raw := `{
		"gateCompleted": false,
		"completedCheckpoints": ["signin", "coffee", "coffee"],
		"completionTimestamps": {"signin": 1777714200000, "coffee": 1777714260000},
		"totalCheckpoints": 6,
		"isFullyComplete": true
	}`
	require.NoError(t, backend.Set(ctx, store.ProgressKey, []byte(raw)))

	p, err := newStore(t, backend).Current(ctx)
	require.NoError(t, err)

	assert.True(t, p.GateCompleted)
	assert.False(t, p.IsFullyComplete)
	assert.Equal(t, []string{"signin", "coffee"}, p.CompletedCheckpoints)
	assert.Nil(t, p.LastScanInstant)
}

func TestCurrent_RecordWithoutLastScanInstantKey(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := kv.NewMemory()
	raw := `{"gateCompleted":true,"completedCheckpoints":["signin"],"completionTimestamps":{"signin":1777714200000},"totalCheckpoints":6,"isFullyComplete":false}`
	require.NoError(t, backend.Set(ctx, store.ProgressKey, []byte(raw)))

	s := newStore(t, backend)

	p, err := s.Current(ctx)
	require.NoError(t, err)
	assert.Nil(t, p.LastScanInstant)
	assert.Equal(t, []string{"signin"}, p.CompletedCheckpoints)
	assert.True(t, p.GateCompleted)

	p, d, err := s.RecordCompletion(ctx, "coffee", t0)
	require.NoError(t, err)
	require.True(t, d.Admissible)
	require.NotNil(t, p.LastScanInstant)
	assert.Equal(t, t0, *p.LastScanInstant)
}

func TestCurrent_KeepsStoredTotalWhenCatalogShrinks(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := kv.NewMemory()
	raw := `{"gateCompleted":true,"completedCheckpoints":["signin"],"completionTimestamps":{"signin":1},"totalCheckpoints":8,"lastScanInstant":null}`
	require.NoError(t, backend.Set(ctx, store.ProgressKey, []byte(raw)))

	p, err := newStore(t, backend).Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, 8, p.TotalCheckpoints)
	assert.Equal(t, 13, progress.Percentage(p))
}

func TestReset_AlwaysWritesDefaults(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newStore(t, kv.NewMemory())

	_, _, err := s.RecordCompletion(ctx, "signin", t0)
	require.NoError(t, err)

	p, err := s.Reset(ctx)
	require.NoError(t, err)
	assert.Equal(t, progress.New(6), p)

	current, err := s.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, p, current)
}

func TestReset_WriteFailure(t *testing.T) {
	t.Parallel()

	backend := &flakyKV{Memory: kv.NewMemory()}
	backend.failSet.Store(true)

	_, err := newStore(t, backend).Reset(context.Background())
	require.ErrorIs(t, err, store.ErrPersistence)
}

func TestHistory_NewestFirstAndBounded(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := store.New(kv.NewMemory(), registry.Default(), store.Options{
		HistoryLimit: 3,
		Clock:        func() time.Time { return t0 },
	})

	for _, raw := range []string{"a", "b", "c", "d"} {
		entry, err := s.AppendHistory(ctx, store.HistoryEntry{Raw: raw, Outcome: "parse_failed"})
		require.NoError(t, err)
		assert.NotEmpty(t, entry.ID)
		assert.Equal(t, t0, entry.Time())
	}

	entries, err := s.History(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "d", entries[0].Raw)
	assert.Equal(t, "b", entries[2].Raw)

	limited, err := s.History(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)

	require.NoError(t, s.ClearHistory(ctx))

	entries, err = s.History(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestHistory_IsCompressedByDefault(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := kv.NewMemory()
	s := newStore(t, backend)

	_, err := s.AppendHistory(ctx, store.HistoryEntry{Raw: "checkpoint:signin", Outcome: "accepted"})
	require.NoError(t, err)

	raw, err := backend.Get(ctx, store.HistoryKey)
	require.NoError(t, err)

	var entries []store.HistoryEntry

	require.NoError(t, persist.Unmarshal(persist.NewLZ4Codec(nil), raw, &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "checkpoint:signin", entries[0].Raw)
}

func TestHistory_UnreadableHistoryStartsFresh(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := kv.NewMemory()
	require.NoError(t, backend.Set(ctx, store.HistoryKey, []byte("garbage")))

	s := newStore(t, backend)

	_, err := s.History(ctx, 0)
	require.ErrorIs(t, err, store.ErrPersistence)

	_, err = s.AppendHistory(ctx, store.HistoryEntry{Raw: "x", Outcome: "parse_failed"})
	require.NoError(t, err)

	entries, err := s.History(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
