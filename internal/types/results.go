package types

import "time"

// Quadrant is a process's position on the ROI x effort plane.
type Quadrant string

const (
	QuadrantQuickWin     Quadrant = "Quick Win"
	QuadrantStrategicBet Quadrant = "Strategic Bet"
	QuadrantNiceToHave   Quadrant = "Nice to Have"
	QuadrantDeprioritize Quadrant = "Deprioritize"
)

// SavingsBreakdown splits a dollar savings figure by source.
type SavingsBreakdown struct {
	Labor               float64 `json:"labor"`
	Overtime            float64 `json:"overtime"`
	SeasonalStaff       float64 `json:"seasonalStaff"`
	ErrorAvoidance      float64 `json:"errorAvoidance"`
	ComplianceAvoidance float64 `json:"complianceAvoidance"`
	RevenueUplift       float64 `json:"revenueUplift"`
	PromptPayment       float64 `json:"promptPayment"`
	SLAPenalty          float64 `json:"slaPenalty"`
	InternalCost        float64 `json:"internalCost"`
	Attrition           float64 `json:"attrition"`
}

// Total returns the sum of every category.
func (b SavingsBreakdown) Total() float64 {
	return b.Labor + b.Overtime + b.SeasonalStaff + b.ErrorAvoidance +
		b.ComplianceAvoidance + b.RevenueUplift + b.PromptPayment +
		b.SLAPenalty + b.InternalCost + b.Attrition
}

// Add returns the element-wise sum of b and o.
func (b SavingsBreakdown) Add(o SavingsBreakdown) SavingsBreakdown {
	return SavingsBreakdown{
		Labor:               b.Labor + o.Labor,
		Overtime:            b.Overtime + o.Overtime,
		SeasonalStaff:       b.SeasonalStaff + o.SeasonalStaff,
		ErrorAvoidance:      b.ErrorAvoidance + o.ErrorAvoidance,
		ComplianceAvoidance: b.ComplianceAvoidance + o.ComplianceAvoidance,
		RevenueUplift:       b.RevenueUplift + o.RevenueUplift,
		PromptPayment:       b.PromptPayment + o.PromptPayment,
		SLAPenalty:          b.SLAPenalty + o.SLAPenalty,
		InternalCost:        b.InternalCost + o.InternalCost,
		Attrition:           b.Attrition + o.Attrition,
	}
}

// Scale returns b with every category multiplied by f.
func (b SavingsBreakdown) Scale(f float64) SavingsBreakdown {
	return SavingsBreakdown{
		Labor:               b.Labor * f,
		Overtime:            b.Overtime * f,
		SeasonalStaff:       b.SeasonalStaff * f,
		ErrorAvoidance:      b.ErrorAvoidance * f,
		ComplianceAvoidance: b.ComplianceAvoidance * f,
		RevenueUplift:       b.RevenueUplift * f,
		PromptPayment:       b.PromptPayment * f,
		SLAPenalty:          b.SLAPenalty * f,
		InternalCost:        b.InternalCost * f,
		Attrition:           b.Attrition * f,
	}
}

// ByItem returns the breakdown keyed by cost classification item key.
func (b SavingsBreakdown) ByItem() map[string]float64 {
	return map[string]float64{
		ItemLaborSavings:         b.Labor,
		ItemOvertimeSavings:      b.Overtime,
		ItemSeasonalStaffSavings: b.SeasonalStaff,
		ItemErrorSavings:         b.ErrorAvoidance,
		ItemComplianceSavings:    b.ComplianceAvoidance,
		ItemRevenueUplift:        b.RevenueUplift,
		ItemPromptPaymentSavings: b.PromptPayment,
		ItemSLAPenaltySavings:    b.SLAPenalty,
		ItemInternalCostSavings:  b.InternalCost,
		ItemAttritionSavings:     b.Attrition,
	}
}

// ProcessSavings is the per-process output of the savings calculator.
// Monthly figures are calendar-year averages.
type ProcessSavings struct {
	MonthlyTasks         float64          `json:"monthlyTasks"`
	MonthlyHoursSaved    float64          `json:"monthlyHoursSaved"`
	AnnualHoursSaved     float64          `json:"annualHoursSaved"`
	BaseLaborCostMonthly float64          `json:"baseLaborCostMonthly"`
	MonthlySavings       float64          `json:"monthlySavings"`
	AnnualSavings        float64          `json:"annualSavings"`
	Monthly              SavingsBreakdown `json:"monthlyBreakdown"`
	Annual               SavingsBreakdown `json:"annualBreakdown"`
	FTEsFreed            float64          `json:"ftesFreed"`
}

// CFOScoreResult is the scoring engine's output for one process.
type CFOScoreResult struct {
	ROIA                 float64  `json:"roi_a"`
	ImplementationEffort float64  `json:"implementation_effort"`
	ExecutionHealth      float64  `json:"execution_health"`
	RiskFactor           float64  `json:"risk_factor"`
	EffectiveRisk        float64  `json:"effective_risk"`
	NPV                  float64  `json:"npv"`
	NPVFinal             float64  `json:"npv_final"`
	RAdj                 float64  `json:"r_adj"`
	Quadrant             Quadrant `json:"quadrant"`
}

// ProcessResult is one row of the portfolio results.
type ProcessResult struct {
	ProcessID           string         `json:"processId"`
	Name                string         `json:"name"`
	Group               string         `json:"group,omitempty"`
	Savings             ProcessSavings `json:"savings"`
	OneTimeCost         float64        `json:"oneTimeCost"`
	AnnualSoftwareCost  float64        `json:"annualSoftwareCost"`
	AnnualNetSavings    float64        `json:"annualNetSavings"`
	YearlySavings       []float64      `json:"yearlySavings"`
	PaybackPeriodMonths int            `json:"paybackPeriodMonths"`
	CFO                 CFOScoreResult `json:"cfoScore"`
}

// ROIResults is the portfolio aggregate handed to results and export screens.
type ROIResults struct {
	SnapshotID          string          `json:"snapshotId"`
	TimeHorizonMonths   int             `json:"timeHorizonMonths"`
	AnnualNetSavings    float64         `json:"annualNetSavings"`
	TotalCost           float64         `json:"totalCost"`
	ROI                 float64         `json:"roi"`
	RiskAdjustedROI     float64         `json:"riskAdjustedRoi"`
	PaybackPeriodMonths int             `json:"paybackPeriodMonths"`
	NPV                 float64         `json:"npv"`
	TotalFTEsFreed      float64         `json:"totalFTEsFreed"`
	ProcessResults      []ProcessResult `json:"processResults"`
	ComputedAt          time.Time       `json:"computedAt"`
}

// CashflowData is one month of the projected cashflow series.
type CashflowData struct {
	Month       int     `json:"month"`
	Cost        float64 `json:"cost"`
	Savings     float64 `json:"savings"`
	Net         float64 `json:"net"`
	Cumulative  float64 `json:"cumulative"`
	HardCost    float64 `json:"hardCost"`
	SoftCost    float64 `json:"softCost"`
	HardSavings float64 `json:"hardSavings"`
	SoftSavings float64 `json:"softSavings"`
}

// MatrixProcess positions one process on the opportunity matrix.
type MatrixProcess struct {
	ProcessID         string   `json:"processId"`
	Name              string   `json:"name"`
	ROI               float64  `json:"roi"`
	Effort            float64  `json:"effort"`
	NPV               float64  `json:"npv"`
	Quadrant          Quadrant `json:"quadrant"`
	BubbleRadius      float64  `json:"bubbleRadius"`
	IsStartingProcess bool     `json:"isStartingProcess"`
}
