package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"text/tabwriter"

	"github.com/hyperengineering/autoroi/internal/normalize"
	"github.com/hyperengineering/autoroi/internal/session"
	"github.com/hyperengineering/autoroi/internal/store"
	"github.com/hyperengineering/autoroi/internal/types"
)

// printJSON marshals v to JSON and writes to the given writer.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// newTabWriter returns a configured tabwriter for aligned columns.
func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

// formatMoney renders an amount with thousands separators and no cents.
func formatMoney(v float64) string {
	v = math.Round(v)
	sign := ""
	if v < 0 {
		sign = "-"
	}
	s := fmt.Sprintf("%.0f", math.Abs(v))
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	return sign + "$" + s
}

// formatPercent renders a ratio as a percentage.
func formatPercent(ratio float64) string {
	return fmt.Sprintf("%.1f%%", ratio*100)
}

// formatPayback renders payback months, spelling out the sentinels.
func formatPayback(months int) string {
	switch {
	case months == 0:
		return "-"
	case months < 0:
		return "never"
	default:
		return fmt.Sprintf("%d mo", months)
	}
}

// writeSummary prints the portfolio totals as aligned label/value pairs.
func writeSummary(w io.Writer, r *types.ROIResults) error {
	tw := newTabWriter(w)
	fmt.Fprintf(tw, "Horizon:\t%d months\n", r.TimeHorizonMonths)
	fmt.Fprintf(tw, "Annual net savings:\t%s\n", formatMoney(r.AnnualNetSavings))
	fmt.Fprintf(tw, "Total cost:\t%s\n", formatMoney(r.TotalCost))
	fmt.Fprintf(tw, "ROI:\t%s\n", formatPercent(r.ROI))
	fmt.Fprintf(tw, "Risk-adjusted ROI:\t%s\n", formatPercent(r.RiskAdjustedROI))
	fmt.Fprintf(tw, "NPV:\t%s\n", formatMoney(r.NPV))
	fmt.Fprintf(tw, "Payback:\t%s\n", formatPayback(r.PaybackPeriodMonths))
	fmt.Fprintf(tw, "FTEs freed:\t%.2f\n", r.TotalFTEsFreed)
	return tw.Flush()
}

// writeProcessTable prints one row per process result.
func writeProcessTable(w io.Writer, results []types.ProcessResult) error {
	tw := newTabWriter(w)
	fmt.Fprintln(tw, "ID\tNAME\tQUADRANT\tNPV\tROI\tPAYBACK")
	for _, p := range results {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			p.ProcessID,
			p.Name,
			p.CFO.Quadrant,
			formatMoney(p.CFO.NPVFinal),
			formatPercent(p.CFO.ROIA),
			formatPayback(p.PaybackPeriodMonths),
		)
	}
	return tw.Flush()
}

// importDataset stores the dataset file at path under orgID. A cost
// classification embedded in the file is stored alongside it.
func importDataset(ctx context.Context, s store.Store, path, orgID string) error {
	raw, err := session.ReadDatasetFile(path)
	if err != nil {
		return err
	}
	ds, err := normalize.Parse(raw)
	if err != nil {
		return err
	}
	if _, err := s.SaveData(ctx, orgID, *ds); err != nil {
		return fmt.Errorf("save dataset: %w", err)
	}

	ff := &session.FileFetcher{Path: path}
	if c, err := ff.LoadCostClassification(ctx, orgID); err == nil {
		if err := s.SaveCostClassification(ctx, orgID, *c); err != nil {
			return fmt.Errorf("save classification: %w", err)
		}
	}
	return nil
}
