package seed

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"time"

	"roadwise/internal/domain"
)

// Demo dataset generator. The dashboard ships with a mock fleet of pothole
// reports and repair tasks so every screen has data on first run.

var addresses = []string{
	"Avenue Mohammed V, Rabat",
	"Boulevard Hassan II, Casablanca",
	"Rue Ibn Battouta, Marrakech",
	"Boulevard Mohammed VI, Tanger",
	"Avenue des FAR, Fès",
	"Avenue Moulay Ismail, Meknès",
	"Boulevard Allal El Fassi, Agadir",
	"Avenue de la Liberté, Tétouan",
}

var repairTypes = []string{"Remplissage", "Resurfaçage", "Réparation complète"}

var teams = []domain.Team{
	{ID: "1", Name: "Équipe Alpha", Members: 5, Specialization: "Réparations majeures"},
	{ID: "2", Name: "Équipe Beta", Members: 3, Specialization: "Réparations rapides"},
	{ID: "3", Name: "Équipe Gamma", Members: 4, Specialization: "Resurfaçage"},
	{ID: "4", Name: "Équipe Delta", Members: 6, Specialization: "Maintenance préventive"},
}

type Options struct {
	Signalements int
	Maintenances int
	Rand         *rand.Rand
	Now          func() time.Time
}

// Apply wipes all collections and inserts a fresh demo dataset in one
// transaction. Cross-entity invariants hold on the generated data: covered
// signalements carry the task's back-reference, and their status reflects the
// task's status the same way a live transition would.
func Apply(ctx context.Context, db *sql.DB, opts Options) error {
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	rng := opts.Rand
	now := opts.Now().UTC()

	signalements := generateSignalements(rng, now, opts.Signalements)
	maintenances := generateMaintenances(rng, now, opts.Maintenances, signalements)

	// Reconcile back-references and statuses.
	byID := map[string]*domain.Signalement{}
	for i := range signalements {
		byID[signalements[i].ID] = &signalements[i]
	}
	for _, m := range maintenances {
		for _, sigID := range m.SignalementIDs {
			s := byID[sigID]
			id := m.ID
			s.MaintenanceID = &id
			switch m.Status {
			case domain.MaintenanceCompleted:
				s.Status = domain.SignalementRepaired
			case domain.MaintenanceInProgress:
				s.Status = domain.SignalementInProgress
			}
		}
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"maintenance_signalements", "signalements", "maintenances", "events", "teams"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("reset %s: %w", table, err)
		}
	}
	for _, t := range teams {
		if _, err := tx.ExecContext(ctx, `INSERT INTO teams(id,name,members,specialization) VALUES (?,?,?,?)`,
			t.ID, t.Name, t.Members, t.Specialization); err != nil {
			return fmt.Errorf("seed team %s: %w", t.ID, err)
		}
	}
	for _, m := range maintenances {
		var completion any
		if m.CompletionDate != nil {
			completion = *m.CompletionDate
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO maintenances(id,title,description,scheduled_date,completion_date,status,team_id,repair_type,estimated_duration,notes) VALUES (?,?,?,?,?,?,?,?,?,?)`,
			m.ID, m.Title, m.Description, m.ScheduledDate, completion, m.Status, m.TeamID, m.RepairType, m.EstimatedDuration, m.Notes); err != nil {
			return fmt.Errorf("seed maintenance %s: %w", m.ID, err)
		}
	}
	for _, s := range signalements {
		var maintenanceID any
		if s.MaintenanceID != nil {
			maintenanceID = *s.MaintenanceID
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO signalements(id,lat,lng,address,report_date,severity,status,description,detected_by,image_url,thumbnail_url,maintenance_id) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
			s.ID, s.Lat, s.Lng, s.Address, s.ReportDate, s.Severity, s.Status, s.Description, s.DetectedBy, s.ImageURL, s.ThumbnailURL, maintenanceID); err != nil {
			return fmt.Errorf("seed signalement %s: %w", s.ID, err)
		}
	}
	// Join rows last; they reference both sides.
	for _, m := range maintenances {
		for i, sigID := range m.SignalementIDs {
			if _, err := tx.ExecContext(ctx, `INSERT INTO maintenance_signalements(maintenance_id,signalement_id,position) VALUES (?,?,?)`,
				m.ID, sigID, i); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

func generateSignalements(rng *rand.Rand, now time.Time, count int) []domain.Signalement {
	res := make([]domain.Signalement, 0, count)
	for i := 0; i < count; i++ {
		severity := pick(rng, []string{domain.SeverityLow, domain.SeverityMedium, domain.SeverityHigh})
		status := pick(rng, []string{domain.SignalementNew, domain.SignalementInProgress, domain.SignalementRepaired})
		res = append(res, domain.Signalement{
			ID:          fmt.Sprintf("sig-%d", i+1),
			Lat:         31.5 + rng.Float64()*2,
			Lng:         -9.5 + rng.Float64()*3,
			Address:     pick(rng, addresses),
			ReportDate:  now.AddDate(0, 0, -rng.Intn(30)).Format(time.RFC3339),
			Severity:    severity,
			Status:      status,
			Description: "Nid-de-poule détecté par l'application mobile",
			DetectedBy:  pick(rng, []string{domain.DetectedAutomated, domain.DetectedHuman}),
		})
	}
	return res
}

func generateMaintenances(rng *rand.Rand, now time.Time, count int, signalements []domain.Signalement) []domain.Maintenance {
	res := make([]domain.Maintenance, 0, count)
	taken := map[string]bool{}
	for i := 0; i < count; i++ {
		status := pick(rng, []string{domain.MaintenanceScheduled, domain.MaintenanceInProgress, domain.MaintenanceCompleted})
		var covered []string
		want := rng.Intn(3) + 1
		for _, s := range signalements {
			if len(covered) == want {
				break
			}
			if !taken[s.ID] && rng.Float64() > 0.7 {
				covered = append(covered, s.ID)
				taken[s.ID] = true
			}
		}
		if len(covered) == 0 {
			continue
		}
		scheduled := now.AddDate(0, 0, rng.Intn(15))
		m := domain.Maintenance{
			ID:                fmt.Sprintf("mnt-%d", i+1),
			Title:             fmt.Sprintf("Maintenance %d", i+1),
			Description:       "Réparation de nids-de-poule signalés",
			ScheduledDate:     scheduled.Format(time.RFC3339),
			Status:            status,
			TeamID:            pick(rng, []string{"1", "2", "3", "4"}),
			SignalementIDs:    covered,
			RepairType:        pick(rng, repairTypes),
			EstimatedDuration: float64(rng.Intn(5) + 1),
			Notes:             "",
		}
		if status == domain.MaintenanceCompleted {
			completion := scheduled.Add(time.Duration(rng.Intn(72)) * time.Hour).Format(time.RFC3339)
			m.CompletionDate = &completion
			m.Notes = "Travail terminé à temps"
		}
		res = append(res, m)
	}
	return res
}

func pick[T any](rng *rand.Rand, items []T) T {
	return items[rng.Intn(len(items))]
}
