package engine_test

import (
	"context"
	"encoding/csv"
	"errors"
	"strings"
	"testing"
	"time"

	"roadwise/internal/config"
	"roadwise/internal/db"
	"roadwise/internal/domain"
	"roadwise/internal/engine"
	"roadwise/internal/migrate"
	"roadwise/internal/repo"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	eng := engine.New(conn, config.Default())
	eng.Now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	ctx := context.Background()
	if err := eng.Repo.InsertTeam(ctx, domain.Team{ID: "team-1", Name: "Équipe Alpha", Members: 5, Specialization: "Réparation asphalte"}); err != nil {
		t.Fatalf("insert team: %v", err)
	}
	return testEnv{Engine: eng, Ctx: ctx}
}

func createSignalement(t *testing.T, env testEnv, address, severity string) domain.Signalement {
	t.Helper()
	s, err := env.Engine.CreateSignalement(env.Ctx, engine.SignalementCreateOptions{
		Lat:      33.5731,
		Lng:      -7.5898,
		Address:  address,
		Severity: severity,
		ActorID:  "tester",
	})
	if err != nil {
		t.Fatalf("create signalement: %v", err)
	}
	return s
}

func TestCreateMaintenanceLinksSignalements(t *testing.T) {
	env := newTestEnv(t)
	s1 := createSignalement(t, env, "12 Rue Atlas", "high")
	s2 := createSignalement(t, env, "5 Avenue Hassan II", "medium")

	m, err := env.Engine.CreateMaintenance(env.Ctx, engine.MaintenanceCreateOptions{
		Title:             "Nid-de-poule Rue Atlas",
		TeamID:            "team-1",
		SignalementIDs:    []string{s1.ID, s2.ID},
		RepairType:        "Asphalte à chaud",
		EstimatedDuration: 3,
		ActorID:           "tester",
	})
	if err != nil {
		t.Fatalf("create maintenance: %v", err)
	}
	if m.Status != "scheduled" {
		t.Fatalf("expected scheduled, got %s", m.Status)
	}
	if m.CompletionDate != nil {
		t.Fatalf("new maintenance should have no completion date")
	}
	got, err := env.Engine.GetMaintenance(env.Ctx, m.ID)
	if err != nil {
		t.Fatalf("get maintenance: %v", err)
	}
	if len(got.SignalementIDs) != 2 || got.SignalementIDs[0] != s1.ID || got.SignalementIDs[1] != s2.ID {
		t.Fatalf("signalement ids mismatch: %v", got.SignalementIDs)
	}
	for _, id := range []string{s1.ID, s2.ID} {
		s, err := env.Engine.GetSignalement(env.Ctx, id)
		if err != nil {
			t.Fatalf("get signalement: %v", err)
		}
		if s.MaintenanceID == nil || *s.MaintenanceID != m.ID {
			t.Fatalf("signalement %s not linked to %s", id, m.ID)
		}
		if s.Status != "new" {
			t.Fatalf("scheduled maintenance should not change status, got %s", s.Status)
		}
	}
}

func TestCreateMaintenanceInProgressPropagates(t *testing.T) {
	env := newTestEnv(t)
	s := createSignalement(t, env, "12 Rue Atlas", "high")
	m, err := env.Engine.CreateMaintenance(env.Ctx, engine.MaintenanceCreateOptions{
		Title:             "Réparation urgente",
		Status:            "inProgress",
		TeamID:            "team-1",
		SignalementIDs:    []string{s.ID},
		EstimatedDuration: 2,
		ActorID:           "tester",
	})
	if err != nil {
		t.Fatalf("create maintenance: %v", err)
	}
	got, _ := env.Engine.GetSignalement(env.Ctx, s.ID)
	if got.Status != "inProgress" {
		t.Fatalf("expected inProgress, got %s", got.Status)
	}
	if got.MaintenanceID == nil || *got.MaintenanceID != m.ID {
		t.Fatalf("signalement not linked")
	}
}

func TestCreateMaintenanceCompletedDoesNotPropagate(t *testing.T) {
	env := newTestEnv(t)
	s := createSignalement(t, env, "12 Rue Atlas", "low")
	m, err := env.Engine.CreateMaintenance(env.Ctx, engine.MaintenanceCreateOptions{
		Title:             "Déjà faite",
		Status:            "completed",
		TeamID:            "team-1",
		SignalementIDs:    []string{s.ID},
		EstimatedDuration: 1,
		ActorID:           "tester",
	})
	if err != nil {
		t.Fatalf("create maintenance: %v", err)
	}
	if m.CompletionDate != nil {
		t.Fatalf("creation must not set completion date")
	}
	got, _ := env.Engine.GetSignalement(env.Ctx, s.ID)
	if got.Status != "new" {
		t.Fatalf("creation must not mark signalements repaired, got %s", got.Status)
	}
}

func TestCreateMaintenanceRejectsBadInput(t *testing.T) {
	env := newTestEnv(t)
	s := createSignalement(t, env, "12 Rue Atlas", "high")

	cases := []struct {
		name  string
		opts  engine.MaintenanceCreateOptions
		field string
	}{
		{"missing title", engine.MaintenanceCreateOptions{TeamID: "team-1", SignalementIDs: []string{s.ID}, EstimatedDuration: 1}, "title"},
		{"no signalements", engine.MaintenanceCreateOptions{Title: "t", TeamID: "team-1", EstimatedDuration: 1}, "signalement_ids"},
		{"zero duration", engine.MaintenanceCreateOptions{Title: "t", TeamID: "team-1", SignalementIDs: []string{s.ID}}, "estimated_duration"},
		{"negative duration", engine.MaintenanceCreateOptions{Title: "t", TeamID: "team-1", SignalementIDs: []string{s.ID}, EstimatedDuration: -2}, "estimated_duration"},
		{"unknown team", engine.MaintenanceCreateOptions{Title: "t", TeamID: "team-404", SignalementIDs: []string{s.ID}, EstimatedDuration: 1}, "team_id"},
		{"unknown signalement", engine.MaintenanceCreateOptions{Title: "t", TeamID: "team-1", SignalementIDs: []string{"sig-404"}, EstimatedDuration: 1}, "signalement_ids"},
		{"duplicate signalement", engine.MaintenanceCreateOptions{Title: "t", TeamID: "team-1", SignalementIDs: []string{s.ID, s.ID}, EstimatedDuration: 1}, "signalement_ids"},
		{"bad status", engine.MaintenanceCreateOptions{Title: "t", Status: "done", TeamID: "team-1", SignalementIDs: []string{s.ID}, EstimatedDuration: 1}, "status"},
		{"bad date", engine.MaintenanceCreateOptions{Title: "t", ScheduledDate: "tomorrow", TeamID: "team-1", SignalementIDs: []string{s.ID}, EstimatedDuration: 1}, "scheduled_date"},
	}
	for _, tc := range cases {
		_, err := env.Engine.CreateMaintenance(env.Ctx, tc.opts)
		var ve engine.ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("%s: expected validation error, got %v", tc.name, err)
		}
		if ve.Field != tc.field {
			t.Fatalf("%s: expected field %s, got %s", tc.name, tc.field, ve.Field)
		}
	}

	// nothing should have been linked by the failed attempts
	got, _ := env.Engine.GetSignalement(env.Ctx, s.ID)
	if got.MaintenanceID != nil {
		t.Fatalf("failed creation must not link signalements")
	}
	items, _ := env.Engine.ListMaintenances(env.Ctx, repo.MaintenanceFilters{})
	if len(items) != 0 {
		t.Fatalf("failed creation must not persist maintenances, got %d", len(items))
	}
}

func TestCreateMaintenanceRejectsAlreadyCovered(t *testing.T) {
	env := newTestEnv(t)
	s := createSignalement(t, env, "12 Rue Atlas", "high")
	if _, err := env.Engine.CreateMaintenance(env.Ctx, engine.MaintenanceCreateOptions{
		Title: "Première", TeamID: "team-1", SignalementIDs: []string{s.ID}, EstimatedDuration: 1, ActorID: "tester",
	}); err != nil {
		t.Fatalf("first maintenance: %v", err)
	}
	_, err := env.Engine.CreateMaintenance(env.Ctx, engine.MaintenanceCreateOptions{
		Title: "Seconde", TeamID: "team-1", SignalementIDs: []string{s.ID}, EstimatedDuration: 1, ActorID: "tester",
	})
	var ve engine.ValidationError
	if !errors.As(err, &ve) || ve.Field != "signalement_ids" {
		t.Fatalf("expected already-covered rejection, got %v", err)
	}
}

func TestCompletionPropagatesAndReverses(t *testing.T) {
	env := newTestEnv(t)
	s1 := createSignalement(t, env, "12 Rue Atlas", "high")
	s2 := createSignalement(t, env, "5 Avenue Hassan II", "medium")
	m, err := env.Engine.CreateMaintenance(env.Ctx, engine.MaintenanceCreateOptions{
		Title: "Campagne", TeamID: "team-1", SignalementIDs: []string{s1.ID, s2.ID}, EstimatedDuration: 4, ActorID: "tester",
	})
	if err != nil {
		t.Fatalf("create maintenance: %v", err)
	}

	m, err = env.Engine.SetMaintenanceStatus(env.Ctx, m.ID, "completed", "tester")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	want := "2024-06-01T12:00:00Z"
	if m.CompletionDate == nil || *m.CompletionDate != want {
		t.Fatalf("completion date = %v, want %s", m.CompletionDate, want)
	}
	for _, id := range []string{s1.ID, s2.ID} {
		s, _ := env.Engine.GetSignalement(env.Ctx, id)
		if s.Status != "repaired" {
			t.Fatalf("signalement %s = %s, want repaired", id, s.Status)
		}
	}

	// reopening puts the work and its signalements back in progress
	m, err = env.Engine.SetMaintenanceStatus(env.Ctx, m.ID, "inProgress", "tester")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if m.CompletionDate != nil {
		t.Fatalf("reopen must clear completion date")
	}
	stored, _ := env.Engine.GetMaintenance(env.Ctx, m.ID)
	if stored.CompletionDate != nil {
		t.Fatalf("stored completion date not cleared")
	}
	for _, id := range []string{s1.ID, s2.ID} {
		s, _ := env.Engine.GetSignalement(env.Ctx, id)
		if s.Status != "inProgress" {
			t.Fatalf("signalement %s = %s, want inProgress", id, s.Status)
		}
	}

	// back to scheduled clears the date but leaves signalements alone
	if _, err := env.Engine.SetMaintenanceStatus(env.Ctx, m.ID, "scheduled", "tester"); err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	for _, id := range []string{s1.ID, s2.ID} {
		s, _ := env.Engine.GetSignalement(env.Ctx, id)
		if s.Status != "inProgress" {
			t.Fatalf("reschedule must not touch signalement %s, got %s", id, s.Status)
		}
	}
}

func TestSignalementStatusDoesNotTouchMaintenance(t *testing.T) {
	env := newTestEnv(t)
	s := createSignalement(t, env, "12 Rue Atlas", "high")
	m, err := env.Engine.CreateMaintenance(env.Ctx, engine.MaintenanceCreateOptions{
		Title: "Campagne", TeamID: "team-1", SignalementIDs: []string{s.ID}, EstimatedDuration: 1, ActorID: "tester",
	})
	if err != nil {
		t.Fatalf("create maintenance: %v", err)
	}
	if _, err := env.Engine.SetSignalementStatus(env.Ctx, s.ID, "repaired", "tester"); err != nil {
		t.Fatalf("set status: %v", err)
	}
	got, _ := env.Engine.GetMaintenance(env.Ctx, m.ID)
	if got.Status != "scheduled" {
		t.Fatalf("signalement transition must not propagate upward, got %s", got.Status)
	}
}

func TestSetSignalementStatusUnknownID(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.SetSignalementStatus(env.Ctx, "sig-404", "repaired", "tester")
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestFilterSignalements(t *testing.T) {
	env := newTestEnv(t)
	insert := func(id, address, severity, reportDate string) domain.Signalement {
		s := domain.Signalement{
			ID:         id,
			Address:    address,
			ReportDate: reportDate,
			Severity:   severity,
			Status:     "new",
			DetectedBy: "human-report",
		}
		if err := env.Engine.Repo.InsertSignalement(env.Ctx, s); err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
		return s
	}
	insert("sig-old", "Ancienne adresse", "low", "2024-05-01T00:00:00Z")
	mid := insert("sig-mid", "12 Rue Atlas", "high", "2024-05-15T00:00:00Z")
	recent := insert("sig-recent", "5 Avenue Hassan II", "high", "2024-05-30T00:00:00Z")

	bySeverity, err := env.Engine.FilterSignalements(env.Ctx, repo.SignalementFilters{Severity: "high"})
	if err != nil {
		t.Fatalf("filter severity: %v", err)
	}
	if len(bySeverity) != 2 {
		t.Fatalf("expected 2 high, got %d", len(bySeverity))
	}

	ranged, err := env.Engine.FilterSignalements(env.Ctx, repo.SignalementFilters{
		DateFrom: "2024-05-15T00:00:00Z",
		DateTo:   "2024-05-30T00:00:00Z",
	})
	if err != nil {
		t.Fatalf("filter range: %v", err)
	}
	// bounds are inclusive
	if len(ranged) != 2 || ranged[0].ID != mid.ID || ranged[1].ID != recent.ID {
		t.Fatalf("range filter mismatch: %v", ranged)
	}

	combined, err := env.Engine.FilterSignalements(env.Ctx, repo.SignalementFilters{
		Severity: "high",
		Status:   "new",
		DateFrom: "2024-05-20T00:00:00Z",
	})
	if err != nil {
		t.Fatalf("filter combined: %v", err)
	}
	if len(combined) != 1 || combined[0].ID != recent.ID {
		t.Fatalf("combined filter mismatch: %v", combined)
	}

	if _, err := env.Engine.FilterSignalements(env.Ctx, repo.SignalementFilters{Status: "fixed"}); err == nil {
		t.Fatalf("expected rejection of unknown status")
	}
	if _, err := env.Engine.FilterSignalements(env.Ctx, repo.SignalementFilters{DateFrom: "last week"}); err == nil {
		t.Fatalf("expected rejection of malformed date")
	}
}

func TestListSignalementsInsertionOrder(t *testing.T) {
	env := newTestEnv(t)
	first := createSignalement(t, env, "Premier", "low")
	second := createSignalement(t, env, "Deuxième", "medium")
	third := createSignalement(t, env, "Troisième", "high")

	items, err := env.Engine.ListSignalements(env.Ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	ids := []string{first.ID, second.ID, third.ID}
	if len(items) != 3 {
		t.Fatalf("expected 3, got %d", len(items))
	}
	for i, s := range items {
		if s.ID != ids[i] {
			t.Fatalf("position %d: got %s, want %s", i, s.ID, ids[i])
		}
	}
}

func TestStatsConsistency(t *testing.T) {
	env := newTestEnv(t)
	s1 := createSignalement(t, env, "12 Rue Atlas", "high")
	s2 := createSignalement(t, env, "5 Avenue Hassan II", "medium")
	createSignalement(t, env, "Boulevard Zerktouni", "low")

	m, err := env.Engine.CreateMaintenance(env.Ctx, engine.MaintenanceCreateOptions{
		Title: "Campagne", TeamID: "team-1", SignalementIDs: []string{s1.ID, s2.ID}, EstimatedDuration: 2, ActorID: "tester",
	})
	if err != nil {
		t.Fatalf("create maintenance: %v", err)
	}
	if _, err := env.Engine.SetMaintenanceStatus(env.Ctx, m.ID, "completed", "tester"); err != nil {
		t.Fatalf("complete: %v", err)
	}

	st, err := env.Engine.Stats(env.Ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.TotalSignalements != 3 || st.TotalMaintenances != 1 {
		t.Fatalf("totals = %d/%d", st.TotalSignalements, st.TotalMaintenances)
	}
	sum := 0
	for _, v := range st.SignalementsByStatus {
		sum += v
	}
	if sum != st.TotalSignalements {
		t.Fatalf("status counts sum %d != total %d", sum, st.TotalSignalements)
	}
	if st.SignalementsByStatus["repaired"] != 2 || st.SignalementsByStatus["new"] != 1 {
		t.Fatalf("status breakdown mismatch: %v", st.SignalementsByStatus)
	}
	if st.SignalementsBySeverity["high"] != 1 || st.SignalementsBySeverity["medium"] != 1 || st.SignalementsBySeverity["low"] != 1 {
		t.Fatalf("severity breakdown mismatch: %v", st.SignalementsBySeverity)
	}
	if st.MaintenancesByStatus["completed"] != 1 {
		t.Fatalf("maintenance breakdown mismatch: %v", st.MaintenancesByStatus)
	}
	if st.SignalementsLast30Days != 3 {
		t.Fatalf("last 30 days = %d", st.SignalementsLast30Days)
	}
	if st.CompletedLast30Days != 1 {
		t.Fatalf("completed last 30 days = %d", st.CompletedLast30Days)
	}
	if len(st.RecentSignalements) != 3 {
		t.Fatalf("recent = %d", len(st.RecentSignalements))
	}
	// the completed task no longer counts as upcoming
	if len(st.UpcomingMaintenances) != 0 {
		t.Fatalf("upcoming = %d", len(st.UpcomingMaintenances))
	}
}

func TestStatsUpcomingOrder(t *testing.T) {
	env := newTestEnv(t)
	var ids []string
	for i := 0; i < 3; i++ {
		s := createSignalement(t, env, "Rue", "low")
		ids = append(ids, s.ID)
	}
	dates := []string{"2024-06-10T00:00:00Z", "2024-06-03T00:00:00Z", "2024-06-07T00:00:00Z"}
	for i, d := range dates {
		if _, err := env.Engine.CreateMaintenance(env.Ctx, engine.MaintenanceCreateOptions{
			Title: "Tâche", ScheduledDate: d, TeamID: "team-1", SignalementIDs: []string{ids[i]}, EstimatedDuration: 1, ActorID: "tester",
		}); err != nil {
			t.Fatalf("create maintenance: %v", err)
		}
	}
	st, err := env.Engine.Stats(env.Ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if len(st.UpcomingMaintenances) != 3 {
		t.Fatalf("upcoming = %d", len(st.UpcomingMaintenances))
	}
	prev := ""
	for _, m := range st.UpcomingMaintenances {
		if prev != "" && m.ScheduledDate < prev {
			t.Fatalf("upcoming not sorted by scheduled date: %s after %s", m.ScheduledDate, prev)
		}
		prev = m.ScheduledDate
	}
}

func TestExportSignalementsCSVQuoting(t *testing.T) {
	env := newTestEnv(t)
	s, err := env.Engine.CreateSignalement(env.Ctx, engine.SignalementCreateOptions{
		Lat:      33.5,
		Lng:      -7.25,
		Address:  `123 "Elm" St, Apt 5`,
		Severity: "medium",
		ActorID:  "tester",
	})
	if err != nil {
		t.Fatalf("create signalement: %v", err)
	}

	data, err := env.Engine.ExportSignalementsCSV(env.Ctx)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	records, err := csv.NewReader(strings.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected header + 1 row, got %d", len(records))
	}
	header := strings.Join(records[0], ",")
	if header != "ID,Address,Coordinates,Report Date,Severity,Status,MaintenanceID" {
		t.Fatalf("header mismatch: %s", header)
	}
	row := records[1]
	if row[0] != s.ID {
		t.Fatalf("id column = %s", row[0])
	}
	if row[1] != `123 "Elm" St, Apt 5` {
		t.Fatalf("address not round-tripped: %s", row[1])
	}
	if row[2] != "33.5,-7.25" {
		t.Fatalf("coordinates = %s", row[2])
	}
	if row[6] != "" {
		t.Fatalf("maintenance column should be empty, got %s", row[6])
	}
}

func TestExportMaintenancesCSV(t *testing.T) {
	env := newTestEnv(t)
	s1 := createSignalement(t, env, "12 Rue Atlas", "high")
	s2 := createSignalement(t, env, "5 Avenue Hassan II", "low")
	m, err := env.Engine.CreateMaintenance(env.Ctx, engine.MaintenanceCreateOptions{
		Title:             "Campagne, phase 1",
		TeamID:            "team-1",
		SignalementIDs:    []string{s1.ID, s2.ID},
		RepairType:        "Asphalte à froid",
		EstimatedDuration: 2.5,
		ActorID:           "tester",
	})
	if err != nil {
		t.Fatalf("create maintenance: %v", err)
	}

	data, err := env.Engine.ExportMaintenancesCSV(env.Ctx)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	records, err := csv.NewReader(strings.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected header + 1 row, got %d", len(records))
	}
	row := records[1]
	if row[0] != m.ID || row[1] != "Campagne, phase 1" {
		t.Fatalf("row mismatch: %v", row)
	}
	if row[8] != "2.5" {
		t.Fatalf("duration = %s", row[8])
	}
	if row[10] != s1.ID+";"+s2.ID {
		t.Fatalf("signalements column = %s", row[10])
	}
}

func TestCreateSignalementDefaults(t *testing.T) {
	env := newTestEnv(t)
	s := createSignalement(t, env, "12 Rue Atlas", "medium")
	if s.Status != "new" {
		t.Fatalf("status = %s", s.Status)
	}
	if s.DetectedBy != "human-report" {
		t.Fatalf("detected_by = %s", s.DetectedBy)
	}
	if s.ReportDate != "2024-06-01T12:00:00Z" {
		t.Fatalf("report date = %s", s.ReportDate)
	}
	if !strings.HasPrefix(s.ID, "sig-") {
		t.Fatalf("id = %s", s.ID)
	}

	_, err := env.Engine.CreateSignalement(env.Ctx, engine.SignalementCreateOptions{Severity: "medium"})
	var ve engine.ValidationError
	if !errors.As(err, &ve) || ve.Field != "address" {
		t.Fatalf("expected address validation, got %v", err)
	}
	_, err = env.Engine.CreateSignalement(env.Ctx, engine.SignalementCreateOptions{Address: "x", Severity: "urgent"})
	if !errors.As(err, &ve) || ve.Field != "severity" {
		t.Fatalf("expected severity validation, got %v", err)
	}
}

func TestEventLog(t *testing.T) {
	env := newTestEnv(t)
	s := createSignalement(t, env, "12 Rue Atlas", "high")
	m, err := env.Engine.CreateMaintenance(env.Ctx, engine.MaintenanceCreateOptions{
		Title: "Campagne", TeamID: "team-1", SignalementIDs: []string{s.ID}, EstimatedDuration: 1, ActorID: "tester",
	})
	if err != nil {
		t.Fatalf("create maintenance: %v", err)
	}
	if _, err := env.Engine.SetMaintenanceStatus(env.Ctx, m.ID, "completed", "tester"); err != nil {
		t.Fatalf("complete: %v", err)
	}

	events, err := env.Engine.Repo.LatestEvents(env.Ctx, 10, "", "", "")
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	// newest first
	if events[0].Type != "maintenance.status.changed" {
		t.Fatalf("latest event = %s", events[0].Type)
	}
	if events[2].Type != "signalement.created" {
		t.Fatalf("oldest event = %s", events[2].Type)
	}

	filtered, err := env.Engine.Repo.LatestEvents(env.Ctx, 10, "", "maintenance", m.ID)
	if err != nil {
		t.Fatalf("filtered events: %v", err)
	}
	if len(filtered) != 2 {
		t.Fatalf("expected 2 maintenance events, got %d", len(filtered))
	}
}
