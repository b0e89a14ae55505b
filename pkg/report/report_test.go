package report_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/stamprally/pkg/engine"
	"github.com/Sumatoshi-tech/stamprally/pkg/progress"
	"github.com/Sumatoshi-tech/stamprally/pkg/registry"
	"github.com/Sumatoshi-tech/stamprally/pkg/report"
	"github.com/Sumatoshi-tech/stamprally/pkg/store"
)

var t0 = time.Date(2026, 9, 5, 14, 0, 0, 0, time.UTC)

func sampleProgress() progress.UserProgress {
	reg := registry.Default()
	gate := reg.Gate().ID

	p := progress.New(reg.Len())
	p = p.WithCompletion(gate, gate, t0)
	p = p.WithCompletion(reg.Standard()[0].ID, gate, t0.Add(12*time.Minute))

	return p
}

func TestProgressBar(t *testing.T) {
	t.Parallel()

	bar := report.ProgressBar(progress.Stats{Total: 6, Completed: 3, Remaining: 3, Percentage: 50, Phase: progress.PhaseInProgress})

	assert.Contains(t, bar, "50% (3/6) in_progress")
	assert.Equal(t, 10, bytes.Count([]byte(bar), []byte("█")))
}

func TestPrinter_Progress(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	pr := report.NewPrinter(&buf, func() time.Time { return t0.Add(time.Hour) })
	reg := registry.Default()

	require.NoError(t, pr.Progress(reg, sampleProgress()))

	out := buf.String()
	assert.Contains(t, out, "33%")
	assert.Contains(t, out, "collected")
	assert.Contains(t, out, "open")
	assert.Contains(t, out, "1 hour ago")
	assert.Contains(t, out, "2/6")
	assert.Contains(t, out, "Next: "+reg.Standard()[1].Name)
}

func TestPrinter_ProgressBeforeGateShowsLocked(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	require.NoError(t, report.NewPrinter(&buf, nil).Progress(registry.Default(), progress.New(6)))

	assert.Contains(t, buf.String(), "locked")
	assert.Contains(t, buf.String(), "Next: "+registry.Default().Gate().Name)
}

func TestPrinter_Checkpoints(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	reg := registry.Default()
	require.NoError(t, report.NewPrinter(&buf, nil).Checkpoints(reg.All()))

	for _, cp := range reg.All() {
		assert.Contains(t, buf.String(), cp.ID)
	}

	assert.Contains(t, buf.String(), "Total: 6")
}

func TestPrinter_History(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	pr := report.NewPrinter(&buf, func() time.Time { return t0.Add(3 * time.Minute) })

	require.NoError(t, pr.History(nil))
	assert.Contains(t, buf.String(), "No scans yet.")

	buf.Reset()

	require.NoError(t, pr.History([]store.HistoryEntry{
		{ID: "b", CheckpointID: "coffee", Outcome: "rejected", Reason: "gate_required", Format: "direct", At: t0.UnixMilli()},
	}))

	assert.Contains(t, buf.String(), "gate_required")
	assert.Contains(t, buf.String(), "3 minutes ago")
}

func TestPrinter_Outcome(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	out := engine.Outcome{
		Kind:    engine.KindAccepted,
		Message: "Stamp collected at Coffee Corner! 4 to go.",
		Stats:   progress.Summarize(sampleProgress()),
	}

	require.NoError(t, report.NewPrinter(&buf, nil).Outcome(out))

	assert.Contains(t, buf.String(), "4 to go")
	assert.Contains(t, buf.String(), "33%")
}

func TestPrinter_OutcomeWithoutProgressOmitsBar(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	out := engine.Outcome{
		Kind:    engine.KindPersistenceFailed,
		Message: "Your progress could not be saved, please try again.",
	}

	require.NoError(t, report.NewPrinter(&buf, nil).Outcome(out))

	assert.Equal(t, 1, strings.Count(buf.String(), "\n"))
	assert.NotContains(t, buf.String(), "%")
}

func TestRenderHTML(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	history := []store.HistoryEntry{
		{Outcome: string(engine.KindAccepted)},
		{Outcome: string(engine.KindRejected)},
		{Outcome: string(engine.KindParseFailed)},
	}

	require.NoError(t, report.RenderHTML(&buf, registry.Default(), sampleProgress(), history))

	html := buf.String()
	assert.Contains(t, html, "<html")
	assert.Contains(t, html, "Stamp Rally Progress")
	assert.Contains(t, html, "Stamp timeline")
	assert.Contains(t, html, "Scan outcomes")
}
