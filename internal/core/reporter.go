package core

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/olekukonko/tablewriter"

	"bankd/internal/bank"
	"bankd/internal/metrics"
	"bankd/util"
)

const (
	msgNoAccounts = "Bank Status: No accounts in bank"
	statusInUse   = "IN SERVICE"
)

// Reporter periodically prints the bank status table.  It only reads the
// store.
type Reporter struct {
	Store    *bank.Store
	Interval time.Duration
	Metrics  *metrics.Collector
	Logger   *util.Logger

	// Output defaults to os.Stdout when nil.
	Output io.Writer

	mu sync.Mutex // serialises writes to Output
}

func (r *Reporter) output() io.Writer {
	if r.Output != nil {
		return r.Output
	}
	return os.Stdout
}

// Run prints a report every Interval until ctx is cancelled.
func (r *Reporter) Run(ctx context.Context) error {
	if r.Interval <= 0 {
		return fmt.Errorf("status interval must be positive, got %v", r.Interval)
	}
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if r.Logger != nil {
				r.Logger.Verbose("status reporter stopped")
			}
			return nil
		case <-ticker.C:
			if err := r.Report(); err != nil && r.Logger != nil {
				r.Logger.Warn("status report: %v", err)
			}
		}
	}
}

// Report prints one snapshot of the store.
func (r *Reporter) Report() error {
	snap := r.Store.Snapshot()

	inUse := 0
	for _, a := range snap {
		if a.InSession {
			inUse++
		}
	}
	r.Metrics.RecordReport(len(snap), inUse)

	r.mu.Lock()
	defer r.mu.Unlock()
	w := r.output()

	if len(snap) == 0 {
		_, err := fmt.Fprintln(w, msgNoAccounts)
		return err
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Name", "Balance", "Status"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_LEFT})
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("-")
	table.SetHeaderLine(true)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)

	for _, a := range snap {
		status := ""
		if a.InSession {
			status = statusInUse
		}
		table.Append([]string{a.Name, a.Balance.String(), status})
	}
	table.Render()
	return nil
}
