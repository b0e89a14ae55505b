package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/Sumatoshi-tech/stamprally/pkg/engine"
	"github.com/Sumatoshi-tech/stamprally/pkg/progress"
	"github.com/Sumatoshi-tech/stamprally/pkg/registry"
	"github.com/Sumatoshi-tech/stamprally/pkg/store"
)

const (
	pageTitle   = "Stamp Rally Progress"
	chartWidth  = "900px"
	chartHeight = "420px"

	colorCollected = "#22c55e"
	colorMissing   = "#475569"
	colorRejected  = "#eab308"
	colorFailed    = "#ef4444"
)

var outcomeOrder = []engine.Kind{
	engine.KindAccepted,
	engine.KindRejected,
	engine.KindParseFailed,
	engine.KindPersistenceFailed,
}

// RenderHTML writes a standalone page with the completion ring, the stamp
// timeline and scan outcomes.
func RenderHTML(w io.Writer, reg *registry.Registry, p progress.UserProgress, history []store.HistoryEntry) error {
	page := components.NewPage()
	page.SetPageTitle(pageTitle)
	page.AddCharts(
		completionChart(p),
		timelineChart(reg, p),
		outcomeChart(history),
	)

	err := page.Render(w)
	if err != nil {
		return fmt.Errorf("render html: %w", err)
	}

	return nil
}

func initOpts() opts.Initialization {
	return opts.Initialization{Width: chartWidth, Height: chartHeight}
}

func completionChart(p progress.UserProgress) *charts.Pie {
	stats := progress.Summarize(p)

	pie := charts.NewPie()
	pie.SetGlobalOptions(
		charts.WithInitializationOpts(initOpts()),
		charts.WithTitleOpts(opts.Title{
			Title:    "Completion",
			Subtitle: fmt.Sprintf("%d%% collected, %d to go", stats.Percentage, stats.Remaining),
		}),
	)

	pie.AddSeries("stamps", []opts.PieData{
		{Name: "Collected", Value: stats.Completed, ItemStyle: &opts.ItemStyle{Color: colorCollected}},
		{Name: "Remaining", Value: stats.Remaining, ItemStyle: &opts.ItemStyle{Color: colorMissing}},
	}, charts.WithPieChartOpts(opts.PieChart{Radius: []string{"45%", "70%"}}))

	return pie
}

// timelineChart plots minutes from the gate stamp to each collected checkpoint.
func timelineChart(reg *registry.Registry, p progress.UserProgress) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(initOpts()),
		charts.WithTitleOpts(opts.Title{Title: "Stamp timeline", Subtitle: "minutes after sign-in"}),
	)

	start, started := p.CompletedAt(reg.Gate().ID)

	labels := make([]string, 0, reg.Len())
	data := make([]opts.BarData, 0, reg.Len())

	for _, cp := range reg.All() {
		labels = append(labels, cp.Name)

		at, ok := p.CompletedAt(cp.ID)
		if !ok || !started {
			data = append(data, opts.BarData{Value: 0, ItemStyle: &opts.ItemStyle{Color: colorMissing}})

			continue
		}

		data = append(data, opts.BarData{
			Value:     int(at.Sub(start).Minutes()),
			ItemStyle: &opts.ItemStyle{Color: colorCollected},
		})
	}

	bar.SetXAxis(labels)
	bar.AddSeries("minutes", data)

	return bar
}

func outcomeChart(history []store.HistoryEntry) *charts.Bar {
	counts := make(map[engine.Kind]int, len(outcomeOrder))
	for _, e := range history {
		counts[engine.Kind(e.Outcome)]++
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(initOpts()),
		charts.WithTitleOpts(opts.Title{
			Title:    "Scan outcomes",
			Subtitle: fmt.Sprintf("last %d attempts", len(history)),
		}),
	)

	labels := make([]string, 0, len(outcomeOrder))
	data := make([]opts.BarData, 0, len(outcomeOrder))

	for _, kind := range outcomeOrder {
		labels = append(labels, string(kind))
		data = append(data, opts.BarData{
			Value:     counts[kind],
			ItemStyle: &opts.ItemStyle{Color: outcomeColor(kind)},
		})
	}

	bar.SetXAxis(labels)
	bar.AddSeries("scans", data)

	return bar
}

func outcomeColor(kind engine.Kind) string {
	switch kind {
	case engine.KindAccepted:
		return colorCollected
	case engine.KindRejected:
		return colorRejected
	default:
		return colorFailed
	}
}
