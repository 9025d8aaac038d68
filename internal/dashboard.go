package fleettop

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"
)

var tabTitles = map[Metric]string{
	MetricCPU:     "CPU",
	MetricMemory:  "Memory",
	MetricDisk:    "Disk",
	MetricNetwork: "Network",
}

// Dashboard renders dashboard-mode polls of the fleet in the terminal
type Dashboard struct {
	poller  Poller
	fleet   *Fleet
	window  Window
	refresh time.Duration
}

func NewDashboard(p Poller, f *Fleet, window Window, refresh time.Duration) *Dashboard {
	if refresh <= 0 {
		refresh = DefaultRefreshInterval
	}
	return &Dashboard{poller: p, fleet: f, window: window, refresh: refresh}
}

// Run takes over the terminal until q is pressed or ctx is done
func (d *Dashboard) Run(ctx context.Context) error {
	if err := ui.Init(); err != nil {
		return fmt.Errorf("failed to initialize termui: %w", err)
	}
	defer ui.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	metrics := Metrics()
	names := d.fleet.Names()
	endpoints := d.fleet.Endpoints()
	listWidth := max(d.fleet.MaxNameLen()+6, 14)
	termWidth, termHeight := ui.TerminalDimensions()

	ls := widgets.NewList()
	ls.Title = "Machines"
	ls.Rows = machineRows(names, nil)
	ls.TextStyle = ui.NewStyle(ui.ColorYellow)
	ls.SelectedRowStyle = ui.NewStyle(ui.ColorBlack, ui.ColorYellow)
	ls.WrapText = false

	titles := make([]string, 0, len(metrics))
	for _, m := range metrics {
		titles = append(titles, tabTitles[m])
	}
	tabpane := widgets.NewTabPane(titles...)
	tabpane.Border = true

	plot := widgets.NewPlot()
	plot.Marker = widgets.MarkerBraille
	plot.AxesColor = ui.ColorWhite
	plot.LineColors = []ui.Color{ui.ColorCyan}

	status := widgets.NewParagraph()
	status.Title = "Status"

	layout := func(w, h int) {
		ls.SetRect(0, 0, listWidth, h)
		tabpane.SetRect(listWidth, 0, w, 3)
		plot.SetRect(listWidth, 3, w, h-3)
		status.SetRect(listWidth, h-3, w, h)
	}
	layout(termWidth, termHeight)

	var results map[string]MachineResult
	render := func() {
		ls.Rows = machineRows(names, results)
		metric := metrics[tabpane.ActiveTabIndex]
		name := ""
		if len(names) > 0 {
			name = names[ls.SelectedRow]
		}
		res, ok := results[name]
		values, text := chartView(res, ok, metric)
		plot.Title = fmt.Sprintf("%s %s", name, tabTitles[metric])
		status.Text = text
		status.TextStyle = ui.NewStyle(ui.ColorWhite)
		if ok && !res.OK() {
			status.TextStyle = ui.NewStyle(ui.ColorRed)
		}

		ui.Render(ls, tabpane, status)
		if data, ok := plotData(values); ok {
			plot.Data = data
			plot.MaxVal = plotMax(values)
			ui.Render(plot)
		}
	}

	updates := make(chan map[string]MachineResult, 1)
	polling := true
	poll := func() {
		go func() {
			r := d.poller.Poll(ctx, endpoints, d.window)
			select {
			case updates <- r:
			case <-ctx.Done():
			}
		}()
	}
	poll()
	render()

	uiEvents := ui.PollEvents()
	ticker := time.NewTicker(d.refresh)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-uiEvents:
			switch e.ID {
			case "q", "<C-c>":
				return nil
			case "j", "<Down>":
				ls.ScrollDown()
			case "k", "<Up>":
				ls.ScrollUp()
			case "h", "<Left>":
				tabpane.FocusLeft()
			case "l", "<Right>", "<Tab>":
				tabpane.FocusRight()
			case "g", "<Home>":
				ls.ScrollTop()
			case "G", "<End>":
				ls.ScrollBottom()
			case "r":
				if !polling {
					polling = true
					poll()
				}
			case "<Resize>":
				payload := e.Payload.(ui.Resize)
				layout(payload.Width, payload.Height)
				ui.Clear()
			}
			render()
		case r := <-updates:
			results = r
			polling = false
			ui.Clear()
			render()
		case <-ticker.C:
			if !polling {
				polling = true
				poll()
			}
		}
	}
}

// machineRows prefixes every machine with its state in the last poll
func machineRows(names []string, results map[string]MachineResult) []string {
	rows := make([]string, 0, len(names))
	for _, name := range names {
		res, ok := results[name]
		switch {
		case !ok:
			rows = append(rows, "… "+name)
		case res.OK():
			rows = append(rows, "✓ "+name)
		default:
			rows = append(rows, "✗ "+name)
		}
	}
	return rows
}

// chartView returns the values to plot for one metric and the status line
func chartView(res MachineResult, ok bool, metric Metric) ([]float64, string) {
	if !ok {
		return nil, "waiting for first poll"
	}
	if !res.OK() {
		return nil, "error: " + res.ErrorMessage()
	}

	switch r := res.Metrics.Get(metric).(type) {
	case TimeSeries:
		last, ok := r.Last()
		if !ok {
			return nil, "no points in window"
		}
		return r.Values, fmt.Sprintf("latest %s (%d points)", formatValue(last), r.Len())
	case Sample:
		return []float64{r.Value}, "latest " + formatValue(r.Value)
	default:
		return nil, "no data"
	}
}

// plotData shapes values for a termui Plot, which needs two points per line
func plotData(values []float64) ([][]float64, bool) {
	switch len(values) {
	case 0:
		return nil, false
	case 1:
		return [][]float64{{values[0], values[0]}}, true
	default:
		return [][]float64{slices.Clone(values)}, true
	}
}

func plotMax(values []float64) float64 {
	m := 0.0
	for _, v := range values {
		m = max(m, v)
	}
	if m <= 0 {
		return 1
	}
	return m * 1.1
}

func formatValue(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
