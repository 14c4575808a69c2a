package model

import "time"

// ScanStatus represents the current state of a visibility scan.
type ScanStatus string

const (
	ScanStatusQueued        ScanStatus = "queued"
	ScanStatusCrawling      ScanStatus = "crawling"
	ScanStatusAnalyzingSite ScanStatus = "analyzing_site"
	ScanStatusResearching   ScanStatus = "researching"
	ScanStatusQuerying      ScanStatus = "querying"
	ScanStatusAnalyzing     ScanStatus = "analyzing"
	ScanStatusComplete      ScanStatus = "complete"
	ScanStatusFailed        ScanStatus = "failed"
)

// Terminal reports whether the status is a terminal state.
func (s ScanStatus) Terminal() bool {
	return s == ScanStatusComplete || s == ScanStatusFailed
}

// Entity identifies the business being scanned, scoped to an organization.
// The (OrgID, EntityID) pair keys frozen sets, trend history, and the
// cancellation registry.
type Entity struct {
	OrgID    string `json:"org_id"`
	EntityID string `json:"entity_id"`
	Name     string `json:"name"`
	Domain   string `json:"domain"`
	Location string `json:"location,omitempty"`
}

// ScanRun is one execution of the pipeline for an entity.
type ScanRun struct {
	ID        string     `json:"id"`
	Entity    Entity     `json:"entity"`
	Status    ScanStatus `json:"status"`
	Progress  int        `json:"progress"`
	Error     string     `json:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// EmployerProfile is what site analysis learns about the entity from its
// crawled pages. It seeds question generation.
type EmployerProfile struct {
	Name         string   `json:"name"`
	Industry     string   `json:"industry"`
	Location     string   `json:"location,omitempty"`
	RoleFamilies []string `json:"role_families,omitempty"`
	Services     []string `json:"services,omitempty"`
	Summary      string   `json:"summary,omitempty"`
}
