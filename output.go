package main

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strconv"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	fleettop "github.com/jondoveston/fleettop/internal"
	"github.com/jondoveston/fleettop/internal/store"
)

type outputFormat string

const (
	outputTable outputFormat = "table"
	outputJSON  outputFormat = "json"
	outputYAML  outputFormat = "yaml"
)

func parseOutputFormat(s string) (outputFormat, error) {
	switch f := outputFormat(s); f {
	case outputTable, outputJSON, outputYAML:
		return f, nil
	case "":
		return outputTable, nil
	}
	return "", fmt.Errorf("invalid output format %q (valid: table, json, yaml)", s)
}

// writeOutput encodes data as JSON or YAML, or hands the writer to table
// for the table format
func writeOutput(w io.Writer, format outputFormat, data any, table func(tw *tabwriter.Writer)) error {
	switch format {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(data); err != nil {
			return fmt.Errorf("marshal JSON: %w", err)
		}
		return nil
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(data); err != nil {
			return fmt.Errorf("marshal YAML: %w", err)
		}
		return enc.Close()
	default:
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		table(tw)
		return tw.Flush()
	}
}

// pollTable prints one line per machine in fleet order with the latest
// value of each metric
func pollTable(names []string, results map[string]fleettop.MachineResult) func(*tabwriter.Writer) {
	return func(tw *tabwriter.Writer) {
		fmt.Fprintln(tw, "MACHINE\tSTATUS\tCPU\tMEMORY\tDISK\tNETWORK\tERROR")
		for _, name := range names {
			res, ok := results[name]
			if !ok {
				fmt.Fprintf(tw, "%s\tmissing\t-\t-\t-\t-\t\n", name)
				continue
			}
			if !res.OK() {
				fmt.Fprintf(tw, "%s\t%s\t-\t-\t-\t-\t%s\n", name, statusOf(res), res.ErrorMessage())
				continue
			}
			sc, err := res.Metrics.Scalars()
			if err != nil {
				fmt.Fprintf(tw, "%s\tempty\t-\t-\t-\t-\t%s\n", name, err)
				continue
			}
			fmt.Fprintf(tw, "%s\tok\t%s\t%s\t%s\t%s\t\n", name,
				formatFloat(sc.CPU), formatFloat(sc.Memory), formatFloat(sc.Disk), formatFloat(sc.Network))
		}
	}
}

func statusOf(res fleettop.MachineResult) string {
	if kind := res.ErrorKind(); kind != "" {
		return kind
	}
	return "error"
}

func summaryTable(s fleettop.RunSummary) func(*tabwriter.Writer) {
	return func(tw *tabwriter.Writer) {
		fmt.Fprintf(tw, "RUN %s\t%s\n", s.RunID, s.At.Format(time.RFC3339))
		fmt.Fprintln(tw, "MACHINE\tSTATUS\tCPU\tMEMORY\tDISK\tNETWORK\tERROR")
		for _, l := range s.Logged {
			fmt.Fprintf(tw, "%s\tlogged\t%s\t%s\t%s\t%s\t\n", l.MachineName,
				formatFloat(l.CPUUsage), formatFloat(l.MemoryUsage), formatFloat(l.DiskUsage), formatFloat(l.NetworkUsage))
		}
		failed := make([]string, 0, len(s.Failed))
		for name := range s.Failed {
			failed = append(failed, name)
		}
		slices.Sort(failed)
		for _, name := range failed {
			fmt.Fprintf(tw, "%s\tskipped\t-\t-\t-\t-\t%s\n", name, s.Failed[name])
		}
	}
}

func historyTable(grouped map[string][]store.MetricLog) func(*tabwriter.Writer) {
	return func(tw *tabwriter.Writer) {
		machines := make([]string, 0, len(grouped))
		for name := range grouped {
			machines = append(machines, name)
		}
		slices.Sort(machines)

		fmt.Fprintln(tw, "MACHINE\tTIMESTAMP\tCPU\tMEMORY\tDISK\tNETWORK")
		for _, name := range machines {
			for _, l := range grouped[name] {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", name, l.Timestamp.Format(time.RFC3339),
					formatFloat(l.CPUUsage), formatFloat(l.MemoryUsage), formatFloat(l.DiskUsage), formatFloat(l.NetworkUsage))
			}
		}
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
