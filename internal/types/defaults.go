package types

// GlobalDefaults are the process-wide fallback values and financial
// assumptions applied to every organization's calculation.
type GlobalDefaults struct {
	AverageHourlyWage float64              `json:"averageHourlyWage" yaml:"average_hourly_wage"`
	Overhead          OverheadPercentages  `json:"overhead" yaml:"overhead"`
	BusinessHours     BusinessHours        `json:"businessHours" yaml:"business_hours"`
	Attrition         AttritionAssumptions `json:"attrition" yaml:"attrition"`
	Financial         FinancialAssumptions `json:"financial" yaml:"financial"`
	EffortAnchors     EffortAnchors        `json:"effortAnchors" yaml:"effort_anchors"`
}

// OverheadPercentages are loaded labor overheads, in percent of base wage.
// Total always equals the sum of the parts after normalization.
type OverheadPercentages struct {
	Benefits              float64 `json:"benefits" yaml:"benefits"`
	PayrollTaxes          float64 `json:"payrollTaxes" yaml:"payroll_taxes"`
	PTO                   float64 `json:"pto" yaml:"pto"`
	Training              float64 `json:"training" yaml:"training"`
	GeneralAdministrative float64 `json:"generalAdministrative" yaml:"general_administrative"`
	Total                 float64 `json:"total" yaml:"total"`
}

// Sum returns the sum of the individual overhead components.
func (o OverheadPercentages) Sum() float64 {
	return o.Benefits + o.PayrollTaxes + o.PTO + o.Training + o.GeneralAdministrative
}

// BusinessHours defines one FTE's working time.
type BusinessHours struct {
	HoursPerDay  float64 `json:"hoursPerDay" yaml:"hours_per_day"`
	DaysPerWeek  float64 `json:"daysPerWeek" yaml:"days_per_week"`
	WeeksPerYear float64 `json:"weeksPerYear" yaml:"weeks_per_year"`
}

// HoursPerYear returns annual working hours for one FTE.
func (b BusinessHours) HoursPerYear() float64 {
	return b.HoursPerDay * b.DaysPerWeek * b.WeeksPerYear
}

// HoursPerMonth returns average monthly working hours for one FTE.
func (b BusinessHours) HoursPerMonth() float64 {
	return b.HoursPerYear() / 12
}

// AttritionAssumptions drive the attrition savings category.
type AttritionAssumptions struct {
	AnnualAttritionPercent float64 `json:"annualAttritionPercent" yaml:"annual_attrition_percent"`
	ReplacementCostPercent float64 `json:"replacementCostPercent" yaml:"replacement_cost_percent"`
}

// FinancialAssumptions are the discounting inputs. Rates are fractions
// (0.10 = 10%). GlobalRiskFactor, when set, replaces every process's
// complexity index as the effective risk.
type FinancialAssumptions struct {
	DiscountRate      float64  `json:"discountRate" yaml:"discount_rate"`
	InflationRate     float64  `json:"inflationRate" yaml:"inflation_rate"`
	TaxRate           float64  `json:"taxRate" yaml:"tax_rate"`
	RiskPremiumFactor float64  `json:"riskPremiumFactor" yaml:"risk_premium_factor"`
	GlobalRiskFactor  *float64 `json:"globalRiskFactor,omitempty" yaml:"global_risk_factor,omitempty"`
}

// EffortAnchors are absolute benchmarks for implementation effort.
// TimeTarget is in months.
type EffortAnchors struct {
	CostTarget float64 `json:"costTarget" yaml:"cost_target"`
	TimeTarget float64 `json:"timeTarget" yaml:"time_target"`
}

// StandardDefaults returns the baseline assumptions used when neither the
// config file nor an organization overrides them.
func StandardDefaults() GlobalDefaults {
	return GlobalDefaults{
		AverageHourlyWage: 35,
		Overhead: OverheadPercentages{
			Benefits:              20,
			PayrollTaxes:          7.65,
			PTO:                   8,
			Training:              2,
			GeneralAdministrative: 5,
			Total:                 42.65,
		},
		BusinessHours: BusinessHours{
			HoursPerDay:  8,
			DaysPerWeek:  5,
			WeeksPerYear: 52,
		},
		Attrition: AttritionAssumptions{
			AnnualAttritionPercent: 15,
			ReplacementCostPercent: 30,
		},
		Financial: FinancialAssumptions{
			DiscountRate:      0.10,
			InflationRate:     0.03,
			TaxRate:           0.25,
			RiskPremiumFactor: 0.05,
		},
		EffortAnchors: EffortAnchors{
			CostTarget: 100000,
			TimeTarget: 6,
		},
	}
}
