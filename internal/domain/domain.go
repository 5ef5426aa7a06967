package domain

// Severity tiers for reported potholes.
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// Signalement statuses.
const (
	SignalementNew        = "new"
	SignalementInProgress = "inProgress"
	SignalementRepaired   = "repaired"
)

// Maintenance statuses.
const (
	MaintenanceScheduled  = "scheduled"
	MaintenanceInProgress = "inProgress"
	MaintenanceCompleted  = "completed"
)

// Detection sources for a signalement.
const (
	DetectedAutomated = "automated-detection"
	DetectedHuman     = "human-report"
)

type Signalement struct {
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

type Maintenance struct {
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

type Team struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Members        int    `json:"members"`
	Specialization string `json:"specialization,omitempty"`
}

// APIKey authenticates automated clients, typically pothole detection systems
// posting signalements. Only the hash is stored.
type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"-"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

// Stats is the dashboard snapshot, computed fresh from current state.
type Stats struct {
	SignalementsByStatus   map[string]int `json:"signalements_by_status"`
	SignalementsBySeverity map[string]int `json:"signalements_by_severity"`
	SignalementsLast30Days int            `json:"signalements_last_30_days"`
	MaintenancesByStatus   map[string]int `json:"maintenances_by_status"`
	CompletedLast30Days    int            `json:"maintenances_completed_last_30_days"`
	TotalSignalements      int            `json:"total_signalements"`
	TotalMaintenances      int            `json:"total_maintenances"`
	RecentSignalements     []Signalement  `json:"recent_signalements"`
	UpcomingMaintenances   []Maintenance  `json:"upcoming_maintenances"`
}

// ValidSeverity reports whether s is one of the known severity tiers.
func ValidSeverity(s string) bool {
	return s == SeverityLow || s == SeverityMedium || s == SeverityHigh
}

// ValidSignalementStatus reports whether s is a known signalement status.
func ValidSignalementStatus(s string) bool {
	return s == SignalementNew || s == SignalementInProgress || s == SignalementRepaired
}

// ValidMaintenanceStatus reports whether s is a known maintenance status.
func ValidMaintenanceStatus(s string) bool {
	return s == MaintenanceScheduled || s == MaintenanceInProgress || s == MaintenanceCompleted
}
