package engine

import (
	"bytes"
	"context"
	"encoding/csv"
	"strconv"
	"strings"

	"roadwise/internal/repo"
)

// ExportSignalementsCSV serializes all signalements with RFC 4180 quoting.
// Coordinates render as a single "lat,lng" field.
func (e Engine) ExportSignalementsCSV(ctx context.Context) (string, error) {
	list, err := e.Repo.ListSignalements(ctx, repo.SignalementFilters{})
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"ID", "Address", "Coordinates", "Report Date", "Severity", "Status", "MaintenanceID"}); err != nil {
		return "", err
	}
	for _, s := range list {
		coords := formatFloat(s.Lat) + "," + formatFloat(s.Lng)
		maintenanceID := ""
		if s.MaintenanceID != nil {
			maintenanceID = *s.MaintenanceID
		}
		if err := w.Write([]string{s.ID, s.Address, coords, s.ReportDate, s.Severity, s.Status, maintenanceID}); err != nil {
			return "", err
		}
	}
	w.Flush()
	return buf.String(), w.Error()
}

// ExportMaintenancesCSV serializes all maintenance tasks; covered signalement
// ids are semicolon-joined into the last field.
func (e Engine) ExportMaintenancesCSV(ctx context.Context) (string, error) {
	list, err := e.Repo.ListMaintenances(ctx, repo.MaintenanceFilters{})
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"ID", "Title", "Description", "Scheduled Date", "Completion Date", "Status", "Team", "Repair Type", "Duration", "Notes", "Signalements"}); err != nil {
		return "", err
	}
	for _, m := range list {
		completion := ""
		if m.CompletionDate != nil {
			completion = *m.CompletionDate
		}
		if err := w.Write([]string{
			m.ID, m.Title, m.Description, m.ScheduledDate, completion, m.Status,
			m.TeamID, m.RepairType, formatFloat(m.EstimatedDuration), m.Notes,
			strings.Join(m.SignalementIDs, ";"),
		}); err != nil {
			return "", err
		}
	}
	w.Flush()
	return buf.String(), w.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
