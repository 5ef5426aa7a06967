package engine

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"roadwise/internal/config"
	"roadwise/internal/domain"
	"roadwise/internal/events"
	"roadwise/internal/repo"
)

// Engine owns the signalement/maintenance collections and their cross-entity
// invariants. Every mutating operation runs in a single transaction so the
// back-reference column and the join table are never observable out of sync.
type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// ValidationError reports malformed create/update input. Recoverable; the
// caller surfaces it to the user.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e Engine) ListSignalements(ctx context.Context) ([]domain.Signalement, error) {
	return e.Repo.ListSignalements(ctx, repo.SignalementFilters{})
}

func (e Engine) GetSignalement(ctx context.Context, id string) (domain.Signalement, error) {
	return e.Repo.GetSignalement(ctx, id)
}

// FilterSignalements applies all supplied criteria (logical AND); omitted
// criteria match everything.
func (e Engine) FilterSignalements(ctx context.Context, f repo.SignalementFilters) ([]domain.Signalement, error) {
	if f.Status != "" && !domain.ValidSignalementStatus(f.Status) {
		return nil, ValidationError{Field: "status", Reason: "unknown status " + f.Status}
	}
	if f.Severity != "" && !domain.ValidSeverity(f.Severity) {
		return nil, ValidationError{Field: "severity", Reason: "unknown severity " + f.Severity}
	}
	if err := validateDateBound("date_from", f.DateFrom); err != nil {
		return nil, err
	}
	if err := validateDateBound("date_to", f.DateTo); err != nil {
		return nil, err
	}
	return e.Repo.ListSignalements(ctx, f)
}

func validateDateBound(field, value string) error {
	if value == "" {
		return nil
	}
	if _, err := time.Parse(time.RFC3339, value); err != nil {
		return ValidationError{Field: field, Reason: "must be RFC3339"}
	}
	return nil
}

// SignalementCreateOptions are parameters for report ingestion.
type SignalementCreateOptions struct {
	Lat          float64
	Lng          float64
	Address      string
	Severity     string
	Description  string
	DetectedBy   string
	ImageURL     string
	ThumbnailURL string
	ActorID      string
}

func (e Engine) CreateSignalement(ctx context.Context, opts SignalementCreateOptions) (domain.Signalement, error) {
	if opts.Address == "" {
		return domain.Signalement{}, ValidationError{Field: "address", Reason: "required"}
	}
	if !domain.ValidSeverity(opts.Severity) {
		return domain.Signalement{}, ValidationError{Field: "severity", Reason: "must be low, medium or high"}
	}
	if opts.DetectedBy == "" {
		opts.DetectedBy = domain.DetectedHuman
	}
	if opts.DetectedBy != domain.DetectedAutomated && opts.DetectedBy != domain.DetectedHuman {
		return domain.Signalement{}, ValidationError{Field: "detected_by", Reason: "unknown source " + opts.DetectedBy}
	}
	s := domain.Signalement{
		ID:           "sig-" + uuid.New().String(),
		Lat:          opts.Lat,
		Lng:          opts.Lng,
		Address:      opts.Address,
		ReportDate:   e.now().UTC().Format(time.RFC3339),
		Severity:     opts.Severity,
		Status:       domain.SignalementNew,
		Description:  opts.Description,
		DetectedBy:   opts.DetectedBy,
		ImageURL:     opts.ImageURL,
		ThumbnailURL: opts.ThumbnailURL,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Signalement{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertSignalementTx(ctx, tx, s); err != nil {
		return domain.Signalement{}, fmt.Errorf("insert signalement: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "signalement.created", "signalement", s.ID, opts.ActorID, events.EventPayload{
		"severity": s.Severity,
		"address":  s.Address,
	}); err != nil {
		return domain.Signalement{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Signalement{}, err
	}
	return s, nil
}

// SetSignalementStatus updates one report's status. It never touches the
// linked maintenance task; propagation only flows task -> signalement.
func (e Engine) SetSignalementStatus(ctx context.Context, id, status, actorID string) (domain.Signalement, error) {
	if !domain.ValidSignalementStatus(status) {
		return domain.Signalement{}, ValidationError{Field: "status", Reason: "unknown status " + status}
	}
	s, err := e.Repo.GetSignalement(ctx, id)
	if err != nil {
		return domain.Signalement{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Signalement{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateSignalementStatusTx(ctx, tx, id, status); err != nil {
		return domain.Signalement{}, err
	}
	if err := e.Events.Append(ctx, tx, "signalement.status.changed", "signalement", id, actorID, events.EventPayload{
		"from": s.Status,
		"to":   status,
	}); err != nil {
		return domain.Signalement{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Signalement{}, err
	}
	s.Status = status
	return s, nil
}

// MaintenanceCreateOptions are parameters for scheduling a repair.
type MaintenanceCreateOptions struct {
	Title             string
	Description       string
	ScheduledDate     string
	Status            string
	TeamID            string
	SignalementIDs    []string
	RepairType        string
	EstimatedDuration float64
	Notes             string
	ActorID           string
}

// CreateMaintenance schedules a repair covering one or more signalements and
// links each of them back to the new task in the same transaction. An initial
// status of inProgress propagates to the covered signalements; an initial
// status of completed does not mark anything repaired; only an explicit
// transition via SetMaintenanceStatus does.
func (e Engine) CreateMaintenance(ctx context.Context, opts MaintenanceCreateOptions) (domain.Maintenance, error) {
	if opts.Title == "" {
		return domain.Maintenance{}, ValidationError{Field: "title", Reason: "required"}
	}
	if opts.Status == "" {
		opts.Status = domain.MaintenanceScheduled
	}
	if !domain.ValidMaintenanceStatus(opts.Status) {
		return domain.Maintenance{}, ValidationError{Field: "status", Reason: "unknown status " + opts.Status}
	}
	if opts.EstimatedDuration <= 0 {
		return domain.Maintenance{}, ValidationError{Field: "estimated_duration", Reason: "must be positive"}
	}
	if len(opts.SignalementIDs) == 0 {
		return domain.Maintenance{}, ValidationError{Field: "signalement_ids", Reason: "at least one signalement required"}
	}
	if opts.ScheduledDate == "" {
		opts.ScheduledDate = e.now().UTC().Format(time.RFC3339)
	} else if _, err := time.Parse(time.RFC3339, opts.ScheduledDate); err != nil {
		return domain.Maintenance{}, ValidationError{Field: "scheduled_date", Reason: "must be RFC3339"}
	}
	if _, err := e.Repo.GetTeam(ctx, opts.TeamID); err != nil {
		if err == repo.ErrNotFound {
			return domain.Maintenance{}, ValidationError{Field: "team_id", Reason: "team " + opts.TeamID + " does not exist"}
		}
		return domain.Maintenance{}, err
	}

	m := domain.Maintenance{
		ID:                "mnt-" + uuid.New().String(),
		Title:             opts.Title,
		Description:       opts.Description,
		ScheduledDate:     opts.ScheduledDate,
		Status:            opts.Status,
		TeamID:            opts.TeamID,
		SignalementIDs:    opts.SignalementIDs,
		RepairType:        opts.RepairType,
		EstimatedDuration: opts.EstimatedDuration,
		Notes:             opts.Notes,
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Maintenance{}, err
	}
	defer tx.Rollback()

	seen := map[string]bool{}
	for _, sigID := range m.SignalementIDs {
		if seen[sigID] {
			return domain.Maintenance{}, ValidationError{Field: "signalement_ids", Reason: "duplicate id " + sigID}
		}
		seen[sigID] = true
		s, err := e.Repo.GetSignalementTx(ctx, tx, sigID)
		if err != nil {
			if err == repo.ErrNotFound {
				return domain.Maintenance{}, ValidationError{Field: "signalement_ids", Reason: "signalement " + sigID + " does not exist"}
			}
			return domain.Maintenance{}, err
		}
		if s.MaintenanceID != nil {
			return domain.Maintenance{}, ValidationError{Field: "signalement_ids", Reason: "signalement " + sigID + " already covered by " + *s.MaintenanceID}
		}
	}
	if err := e.Repo.InsertMaintenanceTx(ctx, tx, m); err != nil {
		return domain.Maintenance{}, fmt.Errorf("insert maintenance: %w", err)
	}
	propagate := ""
	if m.Status == domain.MaintenanceInProgress {
		propagate = domain.SignalementInProgress
	}
	for _, sigID := range m.SignalementIDs {
		if err := e.Repo.AttachSignalementTx(ctx, tx, sigID, m.ID, propagate); err != nil {
			return domain.Maintenance{}, err
		}
	}
	if err := e.Events.Append(ctx, tx, "maintenance.created", "maintenance", m.ID, opts.ActorID, events.EventPayload{
		"title":        m.Title,
		"status":       m.Status,
		"signalements": m.SignalementIDs,
	}); err != nil {
		return domain.Maintenance{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Maintenance{}, err
	}
	return m, nil
}

func (e Engine) ListMaintenances(ctx context.Context, f repo.MaintenanceFilters) ([]domain.Maintenance, error) {
	if f.Status != "" && !domain.ValidMaintenanceStatus(f.Status) {
		return nil, ValidationError{Field: "status", Reason: "unknown status " + f.Status}
	}
	return e.Repo.ListMaintenances(ctx, f)
}

func (e Engine) GetMaintenance(ctx context.Context, id string) (domain.Maintenance, error) {
	return e.Repo.GetMaintenance(ctx, id)
}

// SetMaintenanceStatus transitions a task and propagates to its signalements:
//
//	completed  -> completion date set to now, every covered signalement repaired
//	inProgress -> completion date cleared, every covered signalement inProgress
//	scheduled  -> completion date cleared, signalements untouched
func (e Engine) SetMaintenanceStatus(ctx context.Context, id, status, actorID string) (domain.Maintenance, error) {
	if !domain.ValidMaintenanceStatus(status) {
		return domain.Maintenance{}, ValidationError{Field: "status", Reason: "unknown status " + status}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Maintenance{}, err
	}
	defer tx.Rollback()

	m, err := e.Repo.GetMaintenanceTx(ctx, tx, id)
	if err != nil {
		return domain.Maintenance{}, err
	}
	previous := m.Status

	var completionDate *string
	var sigStatus string
	switch status {
	case domain.MaintenanceCompleted:
		ts := e.now().UTC().Format(time.RFC3339)
		completionDate = &ts
		sigStatus = domain.SignalementRepaired
	case domain.MaintenanceInProgress:
		sigStatus = domain.SignalementInProgress
	case domain.MaintenanceScheduled:
		// completion date cleared, no signalement change
	}

	if err := e.Repo.UpdateMaintenanceStatusTx(ctx, tx, id, status, completionDate); err != nil {
		return domain.Maintenance{}, err
	}
	if sigStatus != "" {
		for _, sigID := range m.SignalementIDs {
			if err := e.Repo.UpdateSignalementStatusTx(ctx, tx, sigID, sigStatus); err != nil {
				return domain.Maintenance{}, fmt.Errorf("propagate to %s: %w", sigID, err)
			}
		}
	}
	if err := e.Events.Append(ctx, tx, "maintenance.status.changed", "maintenance", id, actorID, events.EventPayload{
		"from": previous,
		"to":   status,
	}); err != nil {
		return domain.Maintenance{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Maintenance{}, err
	}
	m.Status = status
	m.CompletionDate = completionDate
	return m, nil
}

func (e Engine) ListTeams(ctx context.Context) ([]domain.Team, error) {
	return e.Repo.ListTeams(ctx)
}

func (e Engine) GetTeam(ctx context.Context, id string) (domain.Team, error) {
	return e.Repo.GetTeam(ctx, id)
}

const statsWindow = 30 * 24 * time.Hour

// Stats computes the dashboard snapshot fresh from current state.
func (e Engine) Stats(ctx context.Context) (domain.Stats, error) {
	cutoff := e.now().UTC().Add(-statsWindow).Format(time.RFC3339)
	st := domain.Stats{
		SignalementsByStatus: map[string]int{
			domain.SignalementNew:        0,
			domain.SignalementInProgress: 0,
			domain.SignalementRepaired:   0,
		},
		SignalementsBySeverity: map[string]int{
			domain.SeverityLow:    0,
			domain.SeverityMedium: 0,
			domain.SeverityHigh:   0,
		},
		MaintenancesByStatus: map[string]int{
			domain.MaintenanceScheduled:  0,
			domain.MaintenanceInProgress: 0,
			domain.MaintenanceCompleted:  0,
		},
	}
	byStatus, err := e.Repo.CountSignalementsByStatus(ctx)
	if err != nil {
		return st, err
	}
	for k, v := range byStatus {
		st.SignalementsByStatus[k] = v
		st.TotalSignalements += v
	}
	bySeverity, err := e.Repo.CountSignalementsBySeverity(ctx)
	if err != nil {
		return st, err
	}
	for k, v := range bySeverity {
		st.SignalementsBySeverity[k] = v
	}
	mByStatus, err := e.Repo.CountMaintenancesByStatus(ctx)
	if err != nil {
		return st, err
	}
	for k, v := range mByStatus {
		st.MaintenancesByStatus[k] = v
		st.TotalMaintenances += v
	}
	if st.SignalementsLast30Days, err = e.Repo.CountSignalementsSince(ctx, cutoff); err != nil {
		return st, err
	}
	if st.CompletedLast30Days, err = e.Repo.CountMaintenancesCompletedSince(ctx, cutoff); err != nil {
		return st, err
	}
	if st.RecentSignalements, err = e.Repo.RecentSignalements(ctx, 5); err != nil {
		return st, err
	}
	if st.UpcomingMaintenances, err = e.Repo.UpcomingMaintenances(ctx, 5); err != nil {
		return st, err
	}
	return st, nil
}
