package server

import (
	"roadwise/internal/domain"
)

// Request payloads

type LoginRequest struct {
	Email    string `json:"email" format:"email"`
	Password string `json:"password"`
}

type CreateSignalementRequest struct {
	Lat          float64 `json:"lat" minimum:"-90" maximum:"90"`
	Lng          float64 `json:"lng" minimum:"-180" maximum:"180"`
	Address      string  `json:"address"`
	Severity     string  `json:"severity" enum:"low,medium,high"`
	Description  *string `json:"description,omitempty"`
	DetectedBy   *string `json:"detected_by,omitempty" enum:"automated-detection,human-report"`
	ImageURL     *string `json:"image_url,omitempty"`
	ThumbnailURL *string `json:"thumbnail_url,omitempty"`
}

type SetSignalementStatusRequest struct {
	Status string `json:"status" enum:"new,inProgress,repaired"`
}

type CreateMaintenanceRequest struct {
	Title             string   `json:"title"`
	Description       *string  `json:"description,omitempty"`
	ScheduledDate     string   `json:"scheduled_date,omitempty" format:"date-time"`
	Status            *string  `json:"status,omitempty" enum:"scheduled,inProgress,completed"`
	TeamID            string   `json:"team_id"`
	SignalementIDs    []string `json:"signalement_ids" minItems:"1"`
	RepairType        string   `json:"repair_type"`
	EstimatedDuration float64  `json:"estimated_duration"`
	Notes             *string  `json:"notes,omitempty"`
}

type SetMaintenanceStatusRequest struct {
	Status string `json:"status" enum:"scheduled,inProgress,completed"`
}

// Response payloads

type LoginResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

type UserResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role" enum:"admin,manager"`
}

type SignalementResponse struct {
	ID            string  `json:"id"`
	Lat           float64 `json:"lat"`
	Lng           float64 `json:"lng"`
	Address       string  `json:"address"`
	ReportDate    string  `json:"report_date" format:"date-time"`
	Severity      string  `json:"severity" enum:"low,medium,high"`
	Status        string  `json:"status" enum:"new,inProgress,repaired"`
	Description   string  `json:"description,omitempty"`
	DetectedBy    string  `json:"detected_by" enum:"automated-detection,human-report"`
	ImageURL      string  `json:"image_url,omitempty"`
	ThumbnailURL  string  `json:"thumbnail_url,omitempty"`
	MaintenanceID *string `json:"maintenance_id,omitempty"`
}

type MaintenanceResponse struct {
	ID                string   `json:"id"`
	Title             string   `json:"title"`
	Description       string   `json:"description,omitempty"`
	ScheduledDate     string   `json:"scheduled_date" format:"date-time"`
	CompletionDate    *string  `json:"completion_date,omitempty" format:"date-time"`
	Status            string   `json:"status" enum:"scheduled,inProgress,completed"`
	TeamID            string   `json:"team_id"`
	SignalementIDs    []string `json:"signalement_ids"`
	RepairType        string   `json:"repair_type"`
	EstimatedDuration float64  `json:"estimated_duration"`
	Notes             string   `json:"notes,omitempty"`
}

type TeamResponse struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Members        int    `json:"members"`
	Specialization string `json:"specialization,omitempty"`
}

type EventResponse struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type StatsResponse struct {
	SignalementsByStatus   map[string]int        `json:"signalements_by_status"`
	SignalementsBySeverity map[string]int        `json:"signalements_by_severity"`
	SignalementsLast30Days int                   `json:"signalements_last_30_days"`
	MaintenancesByStatus   map[string]int        `json:"maintenances_by_status"`
	CompletedLast30Days    int                   `json:"maintenances_completed_last_30_days"`
	TotalSignalements      int                   `json:"total_signalements"`
	TotalMaintenances      int                   `json:"total_maintenances"`
	RecentSignalements     []SignalementResponse `json:"recent_signalements"`
	UpcomingMaintenances   []MaintenanceResponse `json:"upcoming_maintenances"`
}

func signalementResponse(s domain.Signalement) SignalementResponse {
	return SignalementResponse{
		ID:            s.ID,
		Lat:           s.Lat,
		Lng:           s.Lng,
		Address:       s.Address,
		ReportDate:    s.ReportDate,
		Severity:      s.Severity,
		Status:        s.Status,
		Description:   s.Description,
		DetectedBy:    s.DetectedBy,
		ImageURL:      s.ImageURL,
		ThumbnailURL:  s.ThumbnailURL,
		MaintenanceID: s.MaintenanceID,
	}
}

func mapSignalements(items []domain.Signalement) []SignalementResponse {
	res := make([]SignalementResponse, 0, len(items))
	for _, s := range items {
		res = append(res, signalementResponse(s))
	}
	return res
}

func maintenanceResponse(m domain.Maintenance) MaintenanceResponse {
	return MaintenanceResponse{
		ID:                m.ID,
		Title:             m.Title,
		Description:       m.Description,
		ScheduledDate:     m.ScheduledDate,
		CompletionDate:    m.CompletionDate,
		Status:            m.Status,
		TeamID:            m.TeamID,
		SignalementIDs:    m.SignalementIDs,
		RepairType:        m.RepairType,
		EstimatedDuration: m.EstimatedDuration,
		Notes:             m.Notes,
	}
}

func mapMaintenances(items []domain.Maintenance) []MaintenanceResponse {
	res := make([]MaintenanceResponse, 0, len(items))
	for _, m := range items {
		res = append(res, maintenanceResponse(m))
	}
	return res
}

func teamResponse(t domain.Team) TeamResponse {
	return TeamResponse{ID: t.ID, Name: t.Name, Members: t.Members, Specialization: t.Specialization}
}

func mapTeams(items []domain.Team) []TeamResponse {
	res := make([]TeamResponse, 0, len(items))
	for _, t := range items {
		res = append(res, teamResponse(t))
	}
	return res
}

func mapEvents(items []domain.Event) []EventResponse {
	res := make([]EventResponse, 0, len(items))
	for _, e := range items {
		res = append(res, EventResponse{
			ID: e.ID, TS: e.TS, Type: e.Type, EntityKind: e.EntityKind,
			EntityID: e.EntityID, ActorID: e.ActorID, Payload: e.Payload,
		})
	}
	return res
}

func statsResponse(st domain.Stats) StatsResponse {
	return StatsResponse{
		SignalementsByStatus:   st.SignalementsByStatus,
		SignalementsBySeverity: st.SignalementsBySeverity,
		SignalementsLast30Days: st.SignalementsLast30Days,
		MaintenancesByStatus:   st.MaintenancesByStatus,
		CompletedLast30Days:    st.CompletedLast30Days,
		TotalSignalements:      st.TotalSignalements,
		TotalMaintenances:      st.TotalMaintenances,
		RecentSignalements:     mapSignalements(st.RecentSignalements),
		UpcomingMaintenances:   mapMaintenances(st.UpcomingMaintenances),
	}
}

func stringOrEmpty(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
