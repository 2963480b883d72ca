package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ternarybob/mfaflow/internal/models"
)

// printer renders run records as text, json or yaml
type printer struct {
	format string
	w      io.Writer
}

func newPrinter(format string, w io.Writer) *printer {
	return &printer{format: format, w: w}
}

// Runs prints a list of records
func (p *printer) Runs(runs []*models.RunRecord) error {
	switch p.format {
	case "json":
		return p.json(runs)
	case "yaml":
		return yaml.NewEncoder(p.w).Encode(runs)
	case "text", "":
		tw := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tSTARTED\tRESULT\tSTATE\tKIND\tDURATION")
		for _, r := range runs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
				r.ID, r.StartedAt.Format(time.RFC3339), result(r), r.State, dash(r.ErrorKind), r.Duration.Round(time.Millisecond))
		}
		return tw.Flush()
	}
	return fmt.Errorf("unsupported output format %q", p.format)
}

// Run prints one record
func (p *printer) Run(r *models.RunRecord) error {
	switch p.format {
	case "json":
		return p.json(r)
	case "yaml":
		return yaml.NewEncoder(p.w).Encode(r)
	case "text", "":
		printRecord(p.w, r)
		return nil
	}
	return fmt.Errorf("unsupported output format %q", p.format)
}

func (p *printer) json(v interface{}) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printRecord writes the human-readable summary of a run
func printRecord(w io.Writer, r *models.RunRecord) {
	if r == nil {
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Run:\t%s\n", r.ID)
	fmt.Fprintf(tw, "Scenario:\t%s\n", r.Scenario)
	fmt.Fprintf(tw, "Surface:\t%s\n", r.SurfaceURL)
	fmt.Fprintf(tw, "Result:\t%s\n", result(r))
	fmt.Fprintf(tw, "State:\t%s\n", r.State)
	if r.Welcome != "" {
		fmt.Fprintf(tw, "Welcome:\t%s\n", r.Welcome)
	}
	if !r.Passed {
		fmt.Fprintf(tw, "Failed step:\t%s\n", dash(r.Step.String()))
		fmt.Fprintf(tw, "Kind:\t%s\n", dash(r.ErrorKind))
		fmt.Fprintf(tw, "Error:\t%s\n", r.Error)
	}
	if r.Screenshot != "" {
		fmt.Fprintf(tw, "Screenshot:\t%s\n", r.Screenshot)
	}
	fmt.Fprintf(tw, "Duration:\t%s\n", r.Duration.Round(time.Millisecond))
	tw.Flush()
}

func result(r *models.RunRecord) string {
	if r.Passed {
		return "PASS"
	}
	return "FAIL"
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
