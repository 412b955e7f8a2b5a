// Package session orchestrates one presentation context: it fetches an
// organization's inputs, applies the readiness gates and feeds snapshots to
// the recalculation controller.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hyperengineering/autoroi/internal/controller"
	"github.com/hyperengineering/autoroi/internal/engine"
	"github.com/hyperengineering/autoroi/internal/normalize"
	"github.com/hyperengineering/autoroi/internal/types"
	"github.com/hyperengineering/autoroi/internal/validation"
	"github.com/oklog/ulid/v2"
)

// ErrNoOrganization is returned when an operation needs an organization
// context and none is active.
var ErrNoOrganization = errors.New("no organization selected")

// ErrUnknownProcess is returned by SetSelection for IDs not in the dataset.
var ErrUnknownProcess = errors.New("unknown process id")

// Options configures a Session.
type Options struct {
	Defaults      types.GlobalDefaults
	HorizonMonths int
	Logger        *slog.Logger
}

// Status is a point-in-time view of the session.
type Status struct {
	OrganizationID           string   `json:"organizationId"`
	ContextID                string   `json:"contextId"`
	DataReadyForROI          bool     `json:"dataReadyForROI"`
	CostClassificationLoaded bool     `json:"costClassificationLoaded"`
	HorizonMonths            int      `json:"timeHorizonMonths"`
	Processes                int      `json:"processes"`
	Selected                 int      `json:"selected"`
	Phase                    string   `json:"phase"`
	Warnings                 []string `json:"warnings,omitempty"`
}

// Session owns the mutable inputs for one organization context.
type Session struct {
	ctrl    *controller.Controller
	fetcher Fetcher
	logger  *slog.Logger

	mu             sync.Mutex
	orgID          string
	contextID      string
	raw            types.Dataset
	dataset        types.Dataset
	selection      map[string]bool
	classification *types.CostClassification
	baseDefaults   types.GlobalDefaults
	orgDefaults    *types.GlobalDefaults
	horizon        int
	dataReady      bool
	classLoaded    bool
	normWarnings   []string
	classWarnings  []string
	staleDrops     uint64
}

// New creates a session with no active organization.
func New(ctrl *controller.Controller, fetcher Fetcher, opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	horizon := opts.HorizonMonths
	if horizon <= 0 {
		horizon = 36
	}
	return &Session{
		ctrl:         ctrl,
		fetcher:      fetcher,
		logger:       logger.With("component", "session"),
		baseDefaults: opts.Defaults,
		horizon:      horizon,
	}
}

// SwitchOrganization resets the controller, mints a new context ID and
// fetches data and classification for orgID concurrently. Responses for a
// superseded context are dropped. The returned error is the data load
// error, if any; classification failures degrade to an empty
// classification.
func (s *Session) SwitchOrganization(ctx context.Context, orgID string) error {
	s.mu.Lock()
	s.ctrl.Reset()
	contextID := ulid.Make().String()
	s.orgID = orgID
	s.contextID = contextID
	s.raw = types.Dataset{}
	s.dataset = types.Dataset{}
	s.selection = nil
	s.classification = nil
	s.orgDefaults = nil
	s.dataReady = false
	s.classLoaded = false
	s.normWarnings = nil
	s.classWarnings = nil
	s.mu.Unlock()

	s.logger.Info("switching organization", "action", "switch", "org_id", orgID, "context_id", contextID)
	return s.fetch(ctx, orgID, contextID)
}

// Reload re-fetches the active organization under a new context ID. The
// controller and the loaded inputs are kept, so a failed fetch leaves the
// last accepted results in place.
func (s *Session) Reload(ctx context.Context) error {
	s.mu.Lock()
	orgID := s.orgID
	if orgID == "" {
		s.mu.Unlock()
		return ErrNoOrganization
	}
	contextID := ulid.Make().String()
	s.contextID = contextID
	s.mu.Unlock()

	s.logger.Info("reloading organization", "action", "reload", "org_id", orgID, "context_id", contextID)
	return s.fetch(ctx, orgID, contextID)
}

// fetch loads data and classification for one context concurrently.
func (s *Session) fetch(ctx context.Context, orgID, contextID string) error {
	var (
		wg      sync.WaitGroup
		dataErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		var (
			d           *types.GlobalDefaults
			defaultsErr error
		)
		if df, ok := s.fetcher.(DefaultsFetcher); ok {
			if d, defaultsErr = df.LoadGlobalDefaults(ctx, orgID); defaultsErr != nil {
				s.logger.Warn("organization defaults unavailable", "org_id", orgID, "error", defaultsErr)
			}
		}
		ds, err := s.fetcher.LoadData(ctx, orgID)
		dataErr = s.applyData(contextID, ds, d, defaultsErr, err)
	}()
	go func() {
		defer wg.Done()
		c, err := s.fetcher.LoadCostClassification(ctx, orgID)
		s.applyClassification(contextID, c, err)
	}()
	wg.Wait()

	return dataErr
}

// ContextID returns the active context ID.
func (s *Session) ContextID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.contextID
}

// SetHorizon changes the projection horizon and triggers a recompute.
func (s *Session) SetHorizon(months int) error {
	if verr := validation.ValidateHorizon("timeHorizonMonths", months); verr != nil {
		return verr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.horizon = months
	s.triggerLocked("horizon changed")
	return nil
}

// SetSelection restricts computation to the given process IDs. A nil slice
// selects every process.
func (s *Session) SetSelection(ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ids == nil {
		s.selection = nil
		s.triggerLocked("selection cleared")
		return nil
	}

	known := make(map[string]bool, len(s.dataset.Processes))
	for _, p := range s.dataset.Processes {
		known[p.ID] = true
	}
	sel := make(map[string]bool, len(ids))
	for _, id := range ids {
		if !known[id] {
			return fmt.Errorf("%w: %s", ErrUnknownProcess, id)
		}
		sel[id] = true
	}
	s.selection = sel
	s.triggerLocked("selection changed")
	return nil
}

// SetDefaults replaces the base global defaults, re-normalizes the dataset
// and triggers a recompute. Organization defaults, when loaded, still take
// precedence.
func (s *Session) SetDefaults(d types.GlobalDefaults) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.baseDefaults = d
	if s.dataReady {
		s.renormalizeLocked()
	}
	s.triggerLocked("defaults changed")
}

// SetOrganizationDefaults installs per-organization defaults for the active
// context and triggers a recompute.
func (s *Session) SetOrganizationDefaults(orgID string, d types.GlobalDefaults) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if orgID != s.orgID {
		return
	}
	s.orgDefaults = &d
	if s.dataReady {
		s.renormalizeLocked()
	}
	s.triggerLocked("organization defaults changed")
}

// Latest returns the controller's most recent accepted output, or nil.
func (s *Session) Latest() *engine.Output {
	return s.ctrl.Latest()
}

// Status returns a snapshot of the session state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		OrganizationID:           s.orgID,
		ContextID:                s.contextID,
		DataReadyForROI:          s.dataReady,
		CostClassificationLoaded: s.classLoaded,
		HorizonMonths:            s.horizon,
		Processes:                len(s.dataset.Processes),
		Selected:                 len(s.filteredLocked().Processes),
		Phase:                    s.ctrl.Phase().String(),
		Warnings:                 s.warningsLocked(),
	}
}

// StaleDrops returns how many fetch responses were dropped because their
// context had been superseded.
func (s *Session) StaleDrops() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.staleDrops
}

// applyData installs a fetched dataset. Organization defaults are replaced
// only when their fetch succeeded.
func (s *Session) applyData(contextID string, ds *types.Dataset, orgDefaults *types.GlobalDefaults, defaultsErr, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if contextID != s.contextID {
		s.staleDrops++
		s.logger.Debug("dropping stale data response", "action", "drop", "context_id", contextID)
		return nil
	}
	if err != nil {
		s.logger.Error("data load failed", "action", "load", "org_id", s.orgID, "keeping_previous", s.dataReady, "error", err)
		return err
	}

	s.raw = *ds
	if defaultsErr == nil {
		s.orgDefaults = orgDefaults
	}
	s.renormalizeLocked()
	s.reconcileSelectionLocked()
	s.dataReady = true
	s.logger.Info("data loaded",
		"action", "load",
		"org_id", s.orgID,
		"groups", len(s.dataset.Groups),
		"processes", len(s.dataset.Processes),
	)
	s.triggerLocked("data loaded")
	return nil
}

func (s *Session) applyClassification(contextID string, c *types.CostClassification, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if contextID != s.contextID {
		s.staleDrops++
		s.logger.Debug("dropping stale classification response", "action", "drop", "context_id", contextID)
		return
	}
	s.classWarnings = nil
	if err != nil {
		s.classWarnings = append(s.classWarnings, "cost classification unavailable: "+err.Error())
		if s.classLoaded {
			s.logger.Warn("cost classification unavailable, keeping previous classification",
				"org_id", s.orgID,
				"error", err,
			)
			return
		}
		s.logger.Warn("cost classification unavailable, using empty classification",
			"org_id", s.orgID,
			"error", err,
		)
		c = types.EmptyClassification()
	}
	s.classification = c
	s.classLoaded = true
	s.triggerLocked("classification loaded")
}

func (s *Session) renormalizeLocked() {
	res := normalize.Apply(s.raw, s.effectiveDefaultsLocked())
	s.dataset = res.Dataset
	s.normWarnings = nil
	for _, w := range res.Warnings {
		s.normWarnings = append(s.normWarnings, w.Error())
	}
	if len(res.Warnings) > 0 {
		s.logger.Warn("dataset corrected during normalization", "org_id", s.orgID, "corrections", len(res.Warnings))
	}
}

// reconcileSelectionLocked drops selected IDs that are gone from the
// dataset. A fresh load, or a selection left empty, selects every process.
func (s *Session) reconcileSelectionLocked() {
	if s.selection == nil {
		return
	}
	known := make(map[string]bool, len(s.dataset.Processes))
	for _, p := range s.dataset.Processes {
		known[p.ID] = true
	}
	for id := range s.selection {
		if !known[id] {
			delete(s.selection, id)
		}
	}
	if len(s.selection) == 0 {
		s.selection = nil
	}
}

func (s *Session) warningsLocked() []string {
	out := make([]string, 0, len(s.normWarnings)+len(s.classWarnings))
	out = append(out, s.normWarnings...)
	return append(out, s.classWarnings...)
}

func (s *Session) effectiveDefaultsLocked() types.GlobalDefaults {
	if s.orgDefaults != nil {
		return *s.orgDefaults
	}
	return s.baseDefaults
}

func (s *Session) filteredLocked() types.Dataset {
	if s.selection == nil {
		return s.dataset
	}
	out := types.Dataset{
		Groups:    s.dataset.Groups,
		Processes: make([]types.Process, 0, len(s.selection)),
	}
	for _, p := range s.dataset.Processes {
		if s.selection[p.ID] {
			out.Processes = append(out.Processes, p)
		}
	}
	return out
}

// triggerLocked hands the current snapshot to the controller's debounced
// scheduler. The snapshot is copied here so later edits cannot leak into it.
func (s *Session) triggerLocked(reason string) {
	if s.orgID == "" {
		return
	}
	state := controller.State{
		DataReadyForROI:          s.dataReady,
		CostClassificationLoaded: s.classLoaded,
		Classification:           s.classification,
		Defaults:                 s.effectiveDefaultsLocked(),
	}
	filtered := s.filteredLocked()
	snapshot := types.Dataset{
		Groups:    append([]types.GroupDefaults(nil), filtered.Groups...),
		Processes: append([]types.Process(nil), filtered.Processes...),
	}
	s.ctrl.Defer(reason, state, snapshot, s.horizon)
}
