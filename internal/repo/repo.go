package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"roadwise/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

const signalementColumns = `id,lat,lng,address,report_date,severity,status,description,detected_by,image_url,thumbnail_url,maintenance_id`

func scanSignalement(scan func(dest ...any) error) (domain.Signalement, error) {
	var s domain.Signalement
	var description, imageURL, thumbnailURL, maintenanceID sql.NullString
	err := scan(&s.ID, &s.Lat, &s.Lng, &s.Address, &s.ReportDate, &s.Severity, &s.Status,
		&description, &s.DetectedBy, &imageURL, &thumbnailURL, &maintenanceID)
	if err != nil {
		return s, err
	}
	if description.Valid {
		s.Description = description.String
	}
	if imageURL.Valid {
		s.ImageURL = imageURL.String
	}
	if thumbnailURL.Valid {
		s.ThumbnailURL = thumbnailURL.String
	}
	if maintenanceID.Valid {
		s.MaintenanceID = &maintenanceID.String
	}
	return s, nil
}

func (r Repo) InsertSignalement(ctx context.Context, s domain.Signalement) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO signalements(`+signalementColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		s.ID, s.Lat, s.Lng, s.Address, s.ReportDate, s.Severity, s.Status,
		nullable(s.Description), s.DetectedBy, nullable(s.ImageURL), nullable(s.ThumbnailURL), nullableStringPtr(s.MaintenanceID))
	return err
}

func (r Repo) InsertSignalementTx(ctx context.Context, tx *sql.Tx, s domain.Signalement) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO signalements(`+signalementColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		s.ID, s.Lat, s.Lng, s.Address, s.ReportDate, s.Severity, s.Status,
		nullable(s.Description), s.DetectedBy, nullable(s.ImageURL), nullable(s.ThumbnailURL), nullableStringPtr(s.MaintenanceID))
	return err
}

func (r Repo) GetSignalement(ctx context.Context, id string) (domain.Signalement, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+signalementColumns+` FROM signalements WHERE id=?`, id)
	s, err := scanSignalement(row.Scan)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	return s, err
}

func (r Repo) GetSignalementTx(ctx context.Context, tx *sql.Tx, id string) (domain.Signalement, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+signalementColumns+` FROM signalements WHERE id=?`, id)
	s, err := scanSignalement(row.Scan)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	return s, err
}

// SignalementFilters narrow ListSignalements; zero values match everything.
// Date bounds are inclusive RFC3339 comparisons against report_date.
type SignalementFilters struct {
	Status   string
	Severity string
	DateFrom string
	DateTo   string
}

// ListSignalements returns signalements in insertion order.
func (r Repo) ListSignalements(ctx context.Context, f SignalementFilters) ([]domain.Signalement, error) {
	var clauses []string
	var args []any
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.Severity != "" {
		clauses = append(clauses, "severity=?")
		args = append(args, f.Severity)
	}
	if f.DateFrom != "" {
		clauses = append(clauses, "report_date>=?")
		args = append(args, f.DateFrom)
	}
	if f.DateTo != "" {
		clauses = append(clauses, "report_date<=?")
		args = append(args, f.DateTo)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+signalementColumns+` FROM signalements `+where+` ORDER BY rowid ASC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Signalement
	for rows.Next() {
		s, err := scanSignalement(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// RecentSignalements returns the most recently reported signalements.
func (r Repo) RecentSignalements(ctx context.Context, limit int) ([]domain.Signalement, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+signalementColumns+` FROM signalements ORDER BY report_date DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Signalement
	for rows.Next() {
		s, err := scanSignalement(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

func (r Repo) UpdateSignalementStatusTx(ctx context.Context, tx *sql.Tx, id, status string) error {
	res, err := tx.ExecContext(ctx, `UPDATE signalements SET status=? WHERE id=?`, status, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// AttachSignalementTx sets the back-reference and optionally the status in one
// statement; called only inside maintenance transactions.
func (r Repo) AttachSignalementTx(ctx context.Context, tx *sql.Tx, sigID, maintenanceID, status string) error {
	if status != "" {
		_, err := tx.ExecContext(ctx, `UPDATE signalements SET maintenance_id=?, status=? WHERE id=?`, maintenanceID, status, sigID)
		return err
	}
	_, err := tx.ExecContext(ctx, `UPDATE signalements SET maintenance_id=? WHERE id=?`, maintenanceID, sigID)
	return err
}

const maintenanceColumns = `id,title,description,scheduled_date,completion_date,status,team_id,repair_type,estimated_duration,notes`

func scanMaintenance(scan func(dest ...any) error) (domain.Maintenance, error) {
	var m domain.Maintenance
	var description, completionDate, notes sql.NullString
	err := scan(&m.ID, &m.Title, &description, &m.ScheduledDate, &completionDate, &m.Status,
		&m.TeamID, &m.RepairType, &m.EstimatedDuration, &notes)
	if err != nil {
		return m, err
	}
	if description.Valid {
		m.Description = description.String
	}
	if completionDate.Valid {
		m.CompletionDate = &completionDate.String
	}
	if notes.Valid {
		m.Notes = notes.String
	}
	return m, nil
}

func (r Repo) InsertMaintenanceTx(ctx context.Context, tx *sql.Tx, m domain.Maintenance) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO maintenances(`+maintenanceColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		m.ID, m.Title, nullable(m.Description), m.ScheduledDate, nullableStringPtr(m.CompletionDate), m.Status,
		m.TeamID, m.RepairType, m.EstimatedDuration, nullable(m.Notes))
	if err != nil {
		return err
	}
	for i, sigID := range m.SignalementIDs {
		if _, err := tx.ExecContext(ctx, `INSERT INTO maintenance_signalements(maintenance_id,signalement_id,position) VALUES (?,?,?)`,
			m.ID, sigID, i); err != nil {
			return err
		}
	}
	return nil
}

func (r Repo) GetMaintenance(ctx context.Context, id string) (domain.Maintenance, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+maintenanceColumns+` FROM maintenances WHERE id=?`, id)
	m, err := scanMaintenance(row.Scan)
	if err == sql.ErrNoRows {
		return m, ErrNotFound
	}
	if err != nil {
		return m, err
	}
	m.SignalementIDs, err = r.listMaintenanceSignalements(ctx, id)
	return m, err
}

func (r Repo) GetMaintenanceTx(ctx context.Context, tx *sql.Tx, id string) (domain.Maintenance, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+maintenanceColumns+` FROM maintenances WHERE id=?`, id)
	m, err := scanMaintenance(row.Scan)
	if err == sql.ErrNoRows {
		return m, ErrNotFound
	}
	if err != nil {
		return m, err
	}
	rows, err := tx.QueryContext(ctx, `SELECT signalement_id FROM maintenance_signalements WHERE maintenance_id=? ORDER BY position ASC`, id)
	if err != nil {
		return m, err
	}
	defer rows.Close()
	for rows.Next() {
		var sigID string
		if err := rows.Scan(&sigID); err != nil {
			return m, err
		}
		m.SignalementIDs = append(m.SignalementIDs, sigID)
	}
	return m, rows.Err()
}

func (r Repo) listMaintenanceSignalements(ctx context.Context, maintenanceID string) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT signalement_id FROM maintenance_signalements WHERE maintenance_id=? ORDER BY position ASC`, maintenanceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// MaintenanceFilters narrow ListMaintenances; zero values match everything.
type MaintenanceFilters struct {
	Status string
	TeamID string
}

func (r Repo) ListMaintenances(ctx context.Context, f MaintenanceFilters) ([]domain.Maintenance, error) {
	var clauses []string
	var args []any
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.TeamID != "" {
		clauses = append(clauses, "team_id=?")
		args = append(args, f.TeamID)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+maintenanceColumns+` FROM maintenances `+where+` ORDER BY rowid ASC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Maintenance
	for rows.Next() {
		m, err := scanMaintenance(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range res {
		ids, err := r.listMaintenanceSignalements(ctx, res[i].ID)
		if err != nil {
			return nil, err
		}
		res[i].SignalementIDs = ids
	}
	return res, nil
}

// UpcomingMaintenances returns the next scheduled maintenances by date.
func (r Repo) UpcomingMaintenances(ctx context.Context, limit int) ([]domain.Maintenance, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+maintenanceColumns+` FROM maintenances WHERE status != 'completed' ORDER BY scheduled_date ASC, id ASC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Maintenance
	for rows.Next() {
		m, err := scanMaintenance(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range res {
		ids, err := r.listMaintenanceSignalements(ctx, res[i].ID)
		if err != nil {
			return nil, err
		}
		res[i].SignalementIDs = ids
	}
	return res, nil
}

// UpdateMaintenanceStatusTx sets status and completion date together.
// completionDate nil clears the column.
func (r Repo) UpdateMaintenanceStatusTx(ctx context.Context, tx *sql.Tx, id, status string, completionDate *string) error {
	res, err := tx.ExecContext(ctx, `UPDATE maintenances SET status=?, completion_date=? WHERE id=?`,
		status, nullableStringPtr(completionDate), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) InsertTeam(ctx context.Context, t domain.Team) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO teams(id,name,members,specialization) VALUES (?,?,?,?)`,
		t.ID, t.Name, t.Members, nullable(t.Specialization))
	return err
}

func (r Repo) GetTeam(ctx context.Context, id string) (domain.Team, error) {
	var t domain.Team
	var specialization sql.NullString
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,members,specialization FROM teams WHERE id=?`, id).
		Scan(&t.ID, &t.Name, &t.Members, &specialization)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if specialization.Valid {
		t.Specialization = specialization.String
	}
	return t, err
}

func (r Repo) ListTeams(ctx context.Context) ([]domain.Team, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,members,specialization FROM teams ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Team
	for rows.Next() {
		var t domain.Team
		var specialization sql.NullString
		if err := rows.Scan(&t.ID, &t.Name, &t.Members, &specialization); err != nil {
			return nil, err
		}
		if specialization.Valid {
			t.Specialization = specialization.String
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}
