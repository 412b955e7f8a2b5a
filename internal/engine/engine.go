// Package engine runs the full ROI pipeline over one immutable snapshot:
// per-process savings, cashflow, CFO score and the opportunity matrix.
package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"math"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hyperengineering/autoroi/internal/cashflow"
	"github.com/hyperengineering/autoroi/internal/cfoscore"
	"github.com/hyperengineering/autoroi/internal/matrix"
	"github.com/hyperengineering/autoroi/internal/savings"
	"github.com/hyperengineering/autoroi/internal/types"
)

// Input is one snapshot. Dataset and Defaults must already be normalized.
type Input struct {
	Dataset        types.Dataset
	Defaults       types.GlobalDefaults
	Classification *types.CostClassification
	HorizonMonths  int
}

// Output is everything derived from one snapshot.
type Output struct {
	Results  *types.ROIResults
	Cashflow []types.CashflowData
	Matrix   []types.MatrixProcess
}

// Compute runs the pipeline. It has no side effects and never fails:
// degenerate ratios resolve to 0.
func Compute(in Input) Output {
	d := in.Defaults
	horizon := in.HorizonMonths
	if horizon < 0 {
		horizon = 0
	}

	results := make([]types.ProcessResult, 0, len(in.Dataset.Processes))
	portfolio := make([]types.CashflowData, horizon)
	for i := range portfolio {
		portfolio[i].Month = i + 1
	}

	var (
		annualNet     float64
		totalCost     float64
		totalSavings  float64
		riskedSavings float64
		npv           float64
		ftes          float64
	)

	for _, p := range in.Dataset.Processes {
		ps := savings.Calculate(p, d)
		series := cashflow.ProcessSeries(p, d, horizon, nil)
		yearly := YearlySavings(p, series, d.Financial.InflationRate)

		initialCost := p.OneTimeCost()
		score := cfoscore.Score(cfoscore.Input{
			InitialCost:                 initialCost,
			YearlySavings:               yearly,
			DiscountRate:                d.Financial.DiscountRate,
			RiskPremiumFactor:           d.Financial.RiskPremiumFactor,
			ComplexityIndex:             p.ComplexityMetrics.ComplexityIndex,
			GlobalRiskFactor:            d.Financial.GlobalRiskFactor,
			Budget:                      p.Budget,
			EstimateAtCompletion:        p.EstimateAtCompletion,
			ExpectedMonetaryValueOfRisk: p.ExpectedMonetaryValueOfRisk,
			EstimatedCost:               EstimatedCost(p),
			EstimatedTimeWeeks:          p.ImplementationWeeks,
			CostTarget:                  d.EffortAnchors.CostTarget,
			TimeTargetMonths:            d.EffortAnchors.TimeTarget,
		})

		annualSoftware := p.SoftwareCost * savings.MonthsPerYear
		var procCost, procSavings float64
		for i, row := range series {
			portfolio[i].Cost += row.Cost
			portfolio[i].Savings += row.Savings
			procCost += row.Cost
			procSavings += row.Savings
		}

		results = append(results, types.ProcessResult{
			ProcessID:           p.ID,
			Name:                p.Name,
			Group:               p.Group,
			Savings:             ps,
			OneTimeCost:         initialCost,
			AnnualSoftwareCost:  annualSoftware,
			AnnualNetSavings:    ps.AnnualSavings - annualSoftware,
			YearlySavings:       yearly,
			PaybackPeriodMonths: cashflow.PaybackMonth(series),
			CFO:                 score,
		})

		annualNet += ps.AnnualSavings - annualSoftware
		totalCost += procCost
		totalSavings += procSavings
		riskedSavings += procSavings * score.RiskFactor
		npv += score.NPV
		ftes += ps.FTEsFreed
	}
	accumulate(portfolio)

	res := &types.ROIResults{
		SnapshotID:          Fingerprint(in),
		TimeHorizonMonths:   horizon,
		AnnualNetSavings:    annualNet,
		TotalCost:           totalCost,
		ROI:                 ratio(totalSavings-totalCost, totalCost),
		RiskAdjustedROI:     ratio(riskedSavings-totalCost, totalCost),
		PaybackPeriodMonths: cashflow.PaybackMonth(portfolio),
		NPV:                 npv,
		TotalFTEsFreed:      ftes,
		ProcessResults:      results,
		ComputedAt:          time.Now().UTC(),
	}

	return Output{
		Results:  res,
		Cashflow: cashflow.Project(in.Dataset, d, horizon, in.Classification),
		Matrix:   matrix.Build(results),
	}
}

// EstimatedCost is the cost compared against the cost anchor: the estimate
// at completion when one is recorded, else one-time costs plus a year of
// software.
func EstimatedCost(p types.Process) float64 {
	if p.EstimateAtCompletion > 0 {
		return p.EstimateAtCompletion
	}
	return p.OneTimeCost() + p.SoftwareCost*savings.MonthsPerYear
}

// YearlySavings folds a process series into ceil(len/12) yearly figures of
// savings net of software cost, escalated by inflation from year 2.
func YearlySavings(p types.Process, series []types.CashflowData, inflation float64) []float64 {
	years := int(math.Ceil(float64(len(series)) / savings.MonthsPerYear))
	out := make([]float64, years)
	for _, row := range series {
		net := row.Savings
		if row.Month >= p.StartMonth {
			net -= p.SoftwareCost
		}
		out[(row.Month-1)/savings.MonthsPerYear] += net
	}
	for y := range out {
		out[y] *= math.Pow(1+inflation, float64(y))
	}
	return out
}

// Fingerprint identifies a snapshot by content. Identical inputs always map
// to the same ID.
func Fingerprint(in Input) string {
	payload, err := json.Marshal(struct {
		Dataset        types.Dataset             `json:"dataset"`
		Defaults       types.GlobalDefaults      `json:"defaults"`
		Classification *types.CostClassification `json:"classification"`
		HorizonMonths  int                       `json:"horizonMonths"`
	}{in.Dataset, in.Defaults, in.Classification, in.HorizonMonths})
	if err != nil {
		// NaN or Inf reached the engine without normalization. The ID never
		// matches another snapshot, so nothing is deduplicated against it.
		id := "unhashable-" + ulid.Make().String()
		slog.Warn("snapshot not hashable", "component", "engine", "snapshot_id", id, "error", err)
		return id
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:16])
}

func accumulate(rows []types.CashflowData) {
	var running float64
	for i := range rows {
		rows[i].Net = rows[i].Savings - rows[i].Cost
		running += rows[i].Net
		rows[i].Cumulative = running
	}
}

func ratio(num, den float64) float64 {
	if den <= 0 {
		return 0
	}
	return num / den
}
