// Package metrics exposes controller, store and portfolio state in the
// Prometheus exposition format.
package metrics

import (
	"context"
	"log/slog"
	"net/http"
	"sort"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"

	"github.com/hyperengineering/autoroi/internal/controller"
	"github.com/hyperengineering/autoroi/internal/engine"
	"github.com/hyperengineering/autoroi/internal/types"
)

const namespace = "autoroi_"

// ControllerSource reports recompute counters and the latest output.
type ControllerSource interface {
	Stats() controller.Stats
	Latest() *engine.Output
}

// StoreSource reports persisted totals.
type StoreSource interface {
	GetStats(ctx context.Context) (*types.StoreStats, error)
}

// ClientCounter reports connected push clients.
type ClientCounter interface {
	Count() int
}

// Collector gathers metric families on demand. Any source may be nil.
type Collector struct {
	Controller ControllerSource
	Store      StoreSource
	Clients    ClientCounter
}

// Gather builds the current metric families, sorted by name.
func (c *Collector) Gather(ctx context.Context) []*dto.MetricFamily {
	var families []*dto.MetricFamily

	if c.Controller != nil {
		s := c.Controller.Stats()
		families = append(families,
			counter("computes_total", "ROI computations accepted.", float64(s.Computes)),
			counter("gate_skips_total", "Triggers skipped because a readiness gate was closed.", float64(s.GateSkips)),
			counter("deduplicated_total", "Triggers served from an unchanged snapshot.", float64(s.Deduplicated)),
			counter("stale_dropped_total", "Triggers or results dropped as superseded.", float64(s.StaleDropped)),
			counter("resets_total", "Controller resets on organization change.", float64(s.Resets)),
			gauge("last_compute_seconds", "Duration of the most recent computation.", s.LastDuration.Seconds()),
			phaseFamily(s.Phase),
		)
		if out := c.Controller.Latest(); out != nil && out.Results != nil {
			families = append(families, portfolioFamilies(out.Results)...)
		}
	}

	if c.Store != nil {
		st, err := c.Store.GetStats(ctx)
		if err != nil {
			slog.Warn("metrics store stats unavailable", "component", "metrics", "error", err)
		} else {
			families = append(families,
				gauge("organizations", "Stored organizations.", float64(st.Organizations)),
				gauge("processes", "Stored processes across all organizations.", float64(st.Processes)),
			)
		}
	}

	if c.Clients != nil {
		families = append(families, gauge("ws_clients", "Connected result stream clients.", float64(c.Clients.Count())))
	}

	sort.Slice(families, func(i, j int) bool {
		return families[i].GetName() < families[j].GetName()
	})
	return families
}

// ServeHTTP writes the families in the format negotiated from Accept.
func (c *Collector) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	format := expfmt.Negotiate(r.Header)
	w.Header().Set("Content-Type", string(format))

	enc := expfmt.NewEncoder(w, format)
	for _, mf := range c.Gather(r.Context()) {
		if err := enc.Encode(mf); err != nil {
			slog.Warn("metrics encode failed", "component", "metrics", "metric", mf.GetName(), "error", err)
			return
		}
	}
}

func portfolioFamilies(r *types.ROIResults) []*dto.MetricFamily {
	perProcess := &dto.MetricFamily{
		Name: proto.String(namespace + "process_npv"),
		Help: proto.String("Risk-adjusted NPV per process in the latest results."),
		Type: dto.MetricType_GAUGE.Enum(),
	}
	for _, pr := range r.ProcessResults {
		perProcess.Metric = append(perProcess.Metric, &dto.Metric{
			Label: []*dto.LabelPair{
				{Name: proto.String("process_id"), Value: proto.String(pr.ProcessID)},
				{Name: proto.String("quadrant"), Value: proto.String(string(pr.CFO.Quadrant))},
			},
			Gauge: &dto.Gauge{Value: proto.Float64(pr.CFO.NPVFinal)},
		})
	}

	families := []*dto.MetricFamily{
		gauge("portfolio_npv", "Portfolio NPV of the latest results.", r.NPV),
		gauge("portfolio_roi", "Portfolio ROI of the latest results.", r.ROI),
		gauge("portfolio_annual_net_savings", "Annual net savings of the latest results.", r.AnnualNetSavings),
		gauge("portfolio_payback_months", "Portfolio payback month; -1 when never recovered.", float64(r.PaybackPeriodMonths)),
		gauge("portfolio_ftes_freed", "FTEs freed across selected processes.", r.TotalFTEsFreed),
	}
	if len(perProcess.Metric) > 0 {
		families = append(families, perProcess)
	}
	return families
}

func phaseFamily(current controller.Phase) *dto.MetricFamily {
	mf := &dto.MetricFamily{
		Name: proto.String(namespace + "controller_phase"),
		Help: proto.String("Current controller phase (1 for the active phase)."),
		Type: dto.MetricType_GAUGE.Enum(),
	}
	for _, p := range []controller.Phase{controller.PhaseIdle, controller.PhasePending, controller.PhaseComputing} {
		v := 0.0
		if p == current {
			v = 1
		}
		mf.Metric = append(mf.Metric, &dto.Metric{
			Label: []*dto.LabelPair{{Name: proto.String("phase"), Value: proto.String(p.String())}},
			Gauge: &dto.Gauge{Value: proto.Float64(v)},
		})
	}
	return mf
}

func counter(name, help string, v float64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name:   proto.String(namespace + name),
		Help:   proto.String(help),
		Type:   dto.MetricType_COUNTER.Enum(),
		Metric: []*dto.Metric{{Counter: &dto.Counter{Value: proto.Float64(v)}}},
	}
}

func gauge(name, help string, v float64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name:   proto.String(namespace + name),
		Help:   proto.String(help),
		Type:   dto.MetricType_GAUGE.Enum(),
		Metric: []*dto.Metric{{Gauge: &dto.Gauge{Value: proto.Float64(v)}}},
	}
}
