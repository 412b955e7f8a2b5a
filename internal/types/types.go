package types

// VolumeUnit is the period a process's task volume is quoted in.
type VolumeUnit string

const (
	VolumePerDay     VolumeUnit = "day"
	VolumePerWeek    VolumeUnit = "week"
	VolumePerMonth   VolumeUnit = "month"
	VolumePerQuarter VolumeUnit = "quarter"
	VolumePerYear    VolumeUnit = "year"
)

// TimeUnit is the unit of a process's time-per-task.
type TimeUnit string

const (
	TimeMinutes TimeUnit = "minutes"
	TimeHours   TimeUnit = "hours"
)

// TaskType describes how a process's work arrives.
type TaskType string

const (
	TaskBatch    TaskType = "batch"
	TaskRealTime TaskType = "real-time"
	TaskSeasonal TaskType = "seasonal"
)

// FineType selects which compliance fine model applies to a process.
type FineType string

const (
	FineNone           FineType = "none"
	FineDaily          FineType = "daily"
	FinePerIncident    FineType = "per-incident"
	FinePerRecord      FineType = "per-record"
	FinePercentRevenue FineType = "percent-revenue"
)

// RiskCategory is the bucketed complexity of a process.
type RiskCategory string

const (
	RiskSimple   RiskCategory = "Simple"
	RiskModerate RiskCategory = "Moderate"
	RiskComplex  RiskCategory = "Complex"
)

// Dataset is the canonical group/process collection the engine operates on.
type Dataset struct {
	Groups    []GroupDefaults `json:"groups"`
	Processes []Process       `json:"processes"`
}

// GroupDefaults holds shared values copied into member processes when they
// are normalized. Processes keep their own values once set.
type GroupDefaults struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	AverageHourlyWage float64 `json:"averageHourlyWage,omitempty"`
	AutomationEngine  string  `json:"automationEngine,omitempty"`
}

// Process is one automatable unit of work.
//
// Optional sub-records are pointers in raw input. After normalization every
// pointer is non-nil, so calculation code dereferences them directly.
type Process struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Group string `json:"group,omitempty"`

	TaskVolume     float64    `json:"taskVolume"`
	TaskVolumeUnit VolumeUnit `json:"taskVolumeUnit"`
	TimePerTask    float64    `json:"timePerTask"`
	TimeUnit       TimeUnit   `json:"timeUnit"`

	FTECount          float64 `json:"fteCount"`
	AverageHourlyWage float64 `json:"averageHourlyWage"`

	TaskType         TaskType          `json:"taskType"`
	CyclicalPattern  *CyclicalPattern  `json:"cyclicalPattern,omitempty"`
	SeasonalPattern  *SeasonalPattern  `json:"seasonalPattern,omitempty"`
	SLARequirements  *SLARequirements  `json:"slaRequirements,omitempty"`
	ErrorReworkCosts *ErrorReworkCosts `json:"errorReworkCosts,omitempty"`
	ComplianceRisk   *ComplianceRisk   `json:"complianceRisk,omitempty"`
	RevenueImpact    *RevenueImpact    `json:"revenueImpact,omitempty"`
	InternalCosts    *InternalCosts    `json:"internalCosts,omitempty"`

	// SoftwareCost is a recurring monthly cost.
	SoftwareCost        float64 `json:"softwareCost"`
	AutomationCoverage  float64 `json:"automationCoverage"`
	ImplementationWeeks float64 `json:"implementationWeeks"`
	StartMonth          int     `json:"startMonth"`
	UpfrontCosts        float64 `json:"upfrontCosts"`
	TrainingCosts       float64 `json:"trainingCosts"`
	ConsultingCosts     float64 `json:"consultingCosts"`

	Budget                      float64 `json:"budget"`
	EstimateAtCompletion        float64 `json:"estimateAtCompletion"`
	ExpectedMonetaryValueOfRisk float64 `json:"expectedMonetaryValueOfRisk"`

	ComplexityMetrics *ComplexityMetrics `json:"complexityMetrics,omitempty"`
}

// OneTimeCost is the sum of costs that post once, in the start month.
func (p Process) OneTimeCost() float64 {
	return p.UpfrontCosts + p.TrainingCosts + p.ConsultingCosts
}

// CyclicalPattern describes intra-month peaks (e.g. month-end close) that are
// currently absorbed with overtime.
type CyclicalPattern struct {
	PeakVolumePercent      float64 `json:"peakVolumePercent"`
	OvertimePremiumPercent float64 `json:"overtimePremiumPercent"`
}

// SeasonalPattern describes calendar months with elevated volume.
type SeasonalPattern struct {
	PeakMonths                 []int   `json:"peakMonths"`
	VolumeMultiplier           float64 `json:"volumeMultiplier"`
	TemporaryStaffCostPerMonth float64 `json:"temporaryStaffCostPerMonth"`
}

// IsPeak reports whether calendarMonth (1-12) is a peak month.
func (s SeasonalPattern) IsPeak(calendarMonth int) bool {
	for _, m := range s.PeakMonths {
		if m == calendarMonth {
			return true
		}
	}
	return false
}

// SLARequirements captures penalty and prompt-payment terms tied to turnaround.
type SLARequirements struct {
	PenaltyPerBreach            float64 `json:"penaltyPerBreach"`
	BreachesPerMonth            float64 `json:"breachesPerMonth"`
	PaymentsValuePerMonth       float64 `json:"paymentsValuePerMonth"`
	EarlyPaymentDiscountPercent float64 `json:"earlyPaymentDiscountPercent"`
	DiscountCapturedPercent     float64 `json:"discountCapturedPercent"`
}

// ErrorReworkCosts captures the cost of manual errors.
type ErrorReworkCosts struct {
	ErrorRatePercent      float64 `json:"errorRatePercent"`
	ReworkMinutesPerError float64 `json:"reworkMinutesPerError"`
	DirectCostPerError    float64 `json:"directCostPerError"`
}

// ComplianceRisk captures a regulatory fine exposure. Exactly one fine model,
// selected by FineType, contributes to the expected fine.
type ComplianceRisk struct {
	FineType                 FineType `json:"fineType"`
	AmountPerDay             float64  `json:"amountPerDay"`
	ExpectedDurationDays     float64  `json:"expectedDurationDays"`
	AmountPerIncident        float64  `json:"amountPerIncident"`
	ExpectedIncidentsPerYear float64  `json:"expectedIncidentsPerYear"`
	AmountPerRecord          float64  `json:"amountPerRecord"`
	RecordsAtRisk            float64  `json:"recordsAtRisk"`
	RevenueAtRisk            float64  `json:"revenueAtRisk"`
	PercentageRate           float64  `json:"percentageRate"`
	ProbabilityOfOccurrence  float64  `json:"probabilityOfOccurrence"`
}

// RevenueImpact captures revenue influenced by faster or more accurate work.
type RevenueImpact struct {
	AnnualRevenueInfluenced float64 `json:"annualRevenueInfluenced"`
	UpliftPercent           float64 `json:"upliftPercent"`
}

// InternalCosts captures indirect monthly costs attached to the manual process.
type InternalCosts struct {
	SupervisionHoursPerMonth float64 `json:"supervisionHoursPerMonth"`
	SupervisionHourlyRate    float64 `json:"supervisionHourlyRate"`
	OtherMonthlyCosts        float64 `json:"otherMonthlyCosts"`
}

// ComplexityMetrics holds the workflow shape used as a risk proxy.
type ComplexityMetrics struct {
	InputsCount       int             `json:"inputsCount"`
	InputsScore       Metric[float64] `json:"inputsScore"`
	StepsCount        int             `json:"stepsCount"`
	StepsScore        Metric[float64] `json:"stepsScore"`
	DependenciesCount int             `json:"dependenciesCount"`
	DependenciesScore Metric[float64] `json:"dependenciesScore"`

	ComplexityIndex float64      `json:"complexityIndex"`
	RiskCategory    RiskCategory `json:"riskCategory"`
	RiskValue       float64      `json:"riskValue"`
}

// CostItem is one line item named in a cost classification.
type CostItem struct {
	Key   string `json:"key"`
	Label string `json:"label,omitempty"`
}

// CostClassification partitions cost and savings line items into hard and
// soft buckets for one organization.
type CostClassification struct {
	HardCosts []CostItem `json:"hardCosts"`
	SoftCosts []CostItem `json:"softCosts"`
}

// EmptyClassification is substituted when an organization has no stored
// classification. It unblocks projection without splitting anything.
func EmptyClassification() *CostClassification {
	return &CostClassification{HardCosts: []CostItem{}, SoftCosts: []CostItem{}}
}

// IsHard reports whether key is classified as a hard cost.
func (c *CostClassification) IsHard(key string) bool {
	return c != nil && containsKey(c.HardCosts, key)
}

// IsSoft reports whether key is classified as a soft cost.
func (c *CostClassification) IsSoft(key string) bool {
	return c != nil && containsKey(c.SoftCosts, key)
}

func containsKey(items []CostItem, key string) bool {
	for _, it := range items {
		if it.Key == key {
			return true
		}
	}
	return false
}

// Line item keys understood by the cashflow projector's hard/soft split.
const (
	ItemUpfrontCosts         = "upfrontCosts"
	ItemTrainingCosts        = "trainingCosts"
	ItemConsultingCosts      = "consultingCosts"
	ItemSoftwareCost         = "softwareCost"
	ItemLaborSavings         = "laborSavings"
	ItemOvertimeSavings      = "overtimeSavings"
	ItemSeasonalStaffSavings = "seasonalStaffSavings"
	ItemErrorSavings         = "errorSavings"
	ItemComplianceSavings    = "complianceSavings"
	ItemRevenueUplift        = "revenueUplift"
	ItemPromptPaymentSavings = "promptPaymentSavings"
	ItemSLAPenaltySavings    = "slaPenaltySavings"
	ItemInternalCostSavings  = "internalCostSavings"
	ItemAttritionSavings     = "attritionSavings"
)
