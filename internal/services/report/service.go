// Package report assembles and renders the per-run summary: before/after
// deltas, per-method tallies, provider usage, and remaining-work counts.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/ternarybob/arbor"

	"github.com/sirvig/wheel-analyzer-sub001/internal/models"
)

var hundred = decimal.NewFromInt(100)

// Service builds run summaries. All delta arithmetic uses the same
// fixed-point decimals as the valuation engine.
type Service struct {
	logger arbor.ILogger
}

// NewService creates a new report service.
func NewService(logger arbor.ILogger) *Service {
	return &Service{logger: logger}
}

// BuildSummary aggregates the run's outcomes into a summary, computing the
// absolute and percentage delta for every successful outcome. The
// percentage is omitted, not reported as zero, when the previous value was
// nil or zero.
func (s *Service) BuildSummary(
	runID string,
	startedAt time.Time,
	selected int,
	outcomes []models.MethodOutcome,
	usage models.UsageStats,
	remaining models.RemainingWork,
) *models.RunSummary {
	summary := &models.RunSummary{
		RunID:      runID,
		StartedAt:  startedAt,
		FinishedAt: time.Now().UTC(),
		Selected:   selected,
		Usage:      usage,
		Remaining:  remaining,
	}

	for _, outcome := range outcomes {
		summary.Record(withDeltas(outcome))
	}
	return summary
}

// withDeltas fills Delta and DeltaPct for successful outcomes that have a
// previous value to compare against.
func withDeltas(outcome models.MethodOutcome) models.MethodOutcome {
	if outcome.Kind != models.OutcomeSuccess || outcome.After == nil || outcome.Before == nil {
		return outcome
	}

	delta := outcome.After.Sub(*outcome.Before).Round(2)
	outcome.Delta = &delta

	if !outcome.Before.IsZero() {
		pct := delta.Div(outcome.Before.Abs()).Mul(hundred).Round(2)
		outcome.DeltaPct = &pct
	}
	return outcome
}

// HitRate returns cache hits over total lookups, or nil when there were no
// lookups at all.
func HitRate(usage models.UsageStats) *decimal.Decimal {
	total := usage.CacheHits + usage.APICallsMade
	if total == 0 {
		return nil
	}
	rate := decimal.NewFromInt(int64(usage.CacheHits)).
		Div(decimal.NewFromInt(int64(total))).
		Mul(hundred).
		Round(2)
	return &rate
}

// Render formats the summary as a fixed-width text report. The report is
// always printable, whatever mixture of outcomes the run produced.
func (s *Service) Render(summary *models.RunSummary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Refresh run %s\n", summary.RunID)
	fmt.Fprintf(&b, "  started:  %s\n", summary.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "  finished: %s\n", summary.FinishedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "  entities selected: %d\n\n", summary.Selected)

	if len(summary.Outcomes) > 0 {
		fmt.Fprintf(&b, "%-8s %-6s %-9s %12s %12s %12s %10s  %s\n",
			"SYMBOL", "METHOD", "OUTCOME", "BEFORE", "AFTER", "DELTA", "DELTA%", "NOTE")
		for _, o := range summary.Outcomes {
			fmt.Fprintf(&b, "%-8s %-6s %-9s %12s %12s %12s %10s  %s\n",
				o.Symbol,
				strings.ToUpper(string(o.Method)),
				string(o.Kind),
				renderDecimal(o.Before),
				renderDecimal(o.After),
				renderDelta(o),
				renderPct(o.DeltaPct),
				o.Reason,
			)
		}
		b.WriteString("\n")
	}

	for _, method := range models.Methods() {
		tally := summary.Tallies[method]
		if tally == nil {
			tally = &models.MethodTally{}
		}
		fmt.Fprintf(&b, "%s method: %d success, %d skipped, %d errors\n",
			strings.ToUpper(string(method)), tally.Success, tally.Skipped, tally.Errors)
	}

	fmt.Fprintf(&b, "\nAPI usage: %d calls made, %d cache hits", summary.Usage.APICallsMade, summary.Usage.CacheHits)
	if rate := HitRate(summary.Usage); rate != nil {
		fmt.Fprintf(&b, " (%s%% hit rate)", rate.String())
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "Remaining: %d never valued, %d previously valued, %d active total\n",
		summary.Remaining.NeverValued, summary.Remaining.PreviouslyValued, summary.Remaining.TotalActive)

	return b.String()
}

func renderDecimal(d *decimal.Decimal) string {
	if d == nil {
		return "-"
	}
	return d.StringFixed(2)
}

// renderDelta reports "new" for first-time valuations instead of a number.
func renderDelta(o models.MethodOutcome) string {
	if o.Kind == models.OutcomeSuccess && o.IsNew {
		return "new"
	}
	return renderDecimal(o.Delta)
}

func renderPct(d *decimal.Decimal) string {
	if d == nil {
		return "-"
	}
	return d.StringFixed(2) + "%"
}
