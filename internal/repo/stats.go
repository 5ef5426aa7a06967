package repo

import (
	"context"
)

func (r Repo) countByColumn(ctx context.Context, query string, args ...any) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]int{}
	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return nil, err
		}
		res[key] = count
	}
	return res, rows.Err()
}

func (r Repo) CountSignalementsByStatus(ctx context.Context) (map[string]int, error) {
	return r.countByColumn(ctx, `SELECT status, count(*) FROM signalements GROUP BY status`)
}

func (r Repo) CountSignalementsBySeverity(ctx context.Context) (map[string]int, error) {
	return r.countByColumn(ctx, `SELECT severity, count(*) FROM signalements GROUP BY severity`)
}

func (r Repo) CountMaintenancesByStatus(ctx context.Context) (map[string]int, error) {
	return r.countByColumn(ctx, `SELECT status, count(*) FROM maintenances GROUP BY status`)
}

// CountSignalementsSince counts signalements reported at or after cutoff (RFC3339).
func (r Repo) CountSignalementsSince(ctx context.Context, cutoff string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM signalements WHERE report_date >= ?`, cutoff).Scan(&n)
	return n, err
}

// CountMaintenancesCompletedSince counts maintenances completed at or after cutoff.
func (r Repo) CountMaintenancesCompletedSince(ctx context.Context, cutoff string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM maintenances WHERE status='completed' AND completion_date IS NOT NULL AND completion_date >= ?`, cutoff).Scan(&n)
	return n, err
}
