package types

import (
	"encoding/json"
	"time"
)

// LoadResponse is the storage layer's reply to GET /data/load.
// Data is kept raw so shape checks happen in the normalizer.
type LoadResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// ClassificationResponse is the storage layer's reply to
// GET /cost-classification/{orgId}.
type ClassificationResponse struct {
	Success        bool            `json:"success"`
	Classification json.RawMessage `json:"classification,omitempty"`
	Error          string          `json:"error,omitempty"`
}

// SaveDataRequest is the body of POST /data/save.
type SaveDataRequest struct {
	OrganizationID string          `json:"organizationId"`
	Groups         []GroupDefaults `json:"groups"`
	Processes      []Process       `json:"processes"`
}

// RawSaveDataRequest is SaveDataRequest as the server decodes it, with
// groups and processes kept raw for the shape check.
type RawSaveDataRequest struct {
	OrganizationID string          `json:"organizationId"`
	Groups         json.RawMessage `json:"groups"`
	Processes      json.RawMessage `json:"processes"`
}

// ComputeRequest is the body of POST /api/v1/roi/compute. Groups and
// processes stay raw so a malformed payload surfaces as a shape error.
type ComputeRequest struct {
	Groups             json.RawMessage     `json:"groups"`
	Processes          json.RawMessage     `json:"processes"`
	Defaults           *GlobalDefaults     `json:"defaults,omitempty"`
	CostClassification *CostClassification `json:"costClassification,omitempty"`
	TimeHorizonMonths  int                 `json:"timeHorizonMonths"`
}

// ComputeResponse bundles everything the presentation layer renders.
type ComputeResponse struct {
	Results  *ROIResults     `json:"results"`
	Cashflow []CashflowData  `json:"cashflow"`
	Matrix   []MatrixProcess `json:"matrix"`
	Warnings []string        `json:"warnings,omitempty"`
}

// Organization is a tenant whose dataset is stored and computed separately.
type Organization struct {
	ID             string `json:"id"`
	Name           string `json:"name,omitempty"`
	ProcessCount   int    `json:"processCount"`
	HasCostClasses bool   `json:"hasCostClassification"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	Organizations int64  `json:"organizations"`
	Processes     int64  `json:"processes"`
}

// StoreStats contains aggregate store statistics.
type StoreStats struct {
	Organizations int64      `json:"organizations"`
	Processes     int64      `json:"processes"`
	LastSavedAt   *time.Time `json:"lastSavedAt,omitempty"`
}

// SaveDataResponse is the reply to POST /data/save. Data carries the stored
// dataset with generated process IDs.
type SaveDataResponse struct {
	Success bool     `json:"success"`
	Data    *Dataset `json:"data,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// SelectOrganizationRequest is the body of POST /api/v1/session/organization.
type SelectOrganizationRequest struct {
	OrganizationID string `json:"organizationId"`
}

// HorizonRequest is the body of PUT /api/v1/session/horizon.
type HorizonRequest struct {
	TimeHorizonMonths int `json:"timeHorizonMonths"`
}

// SelectionRequest is the body of PUT /api/v1/session/selection. A null or
// missing processIds selects every process.
type SelectionRequest struct {
	ProcessIDs []string `json:"processIds"`
}
