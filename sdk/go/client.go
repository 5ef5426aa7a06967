package roadwisesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Roadwise HTTP API client.
type Client struct {
	BaseURL     string
	BearerToken string
	ActorID     string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Signalement represents a reported road defect.
type Signalement struct {
	ID            string  `json:"id"`
	Lat           float64 `json:"lat"`
	Lng           float64 `json:"lng"`
	Address       string  `json:"address"`
	ReportDate    string  `json:"report_date"`
	Severity      string  `json:"severity"`
	Status        string  `json:"status"`
	Description   string  `json:"description,omitempty"`
	DetectedBy    string  `json:"detected_by"`
	ImageURL      string  `json:"image_url,omitempty"`
	ThumbnailURL  string  `json:"thumbnail_url,omitempty"`
	MaintenanceID string  `json:"maintenance_id,omitempty"`
}

// Maintenance represents a scheduled repair task.
type Maintenance struct {
	ID                string   `json:"id"`
	Title             string   `json:"title"`
	Description       string   `json:"description,omitempty"`
	ScheduledDate     string   `json:"scheduled_date"`
	CompletionDate    string   `json:"completion_date,omitempty"`
	Status            string   `json:"status"`
	TeamID            string   `json:"team_id"`
	SignalementIDs    []string `json:"signalement_ids"`
	RepairType        string   `json:"repair_type"`
	EstimatedDuration float64  `json:"estimated_duration"`
	Notes             string   `json:"notes,omitempty"`
}

// Team represents a repair crew.
type Team struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Members        int    `json:"members"`
	Specialization string `json:"specialization"`
}

// Event represents an audit log entry.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

// Stats mirrors the dashboard statistics payload.
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

// User is the authenticated operator identity.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// SignalementFilters narrows signalement listings. Zero values are ignored.
type SignalementFilters struct {
	Status   string
	Severity string
	DateFrom string
	DateTo   string
}

// MaintenanceFilters narrows maintenance listings. Zero values are ignored.
type MaintenanceFilters struct {
	Status string
	TeamID string
}

// CreateSignalementParams describes a new report.
type CreateSignalementParams struct {
	Lat          float64 `json:"lat"`
	Lng          float64 `json:"lng"`
	Address      string  `json:"address"`
	Severity     string  `json:"severity"`
	Description  string  `json:"description,omitempty"`
	DetectedBy   string  `json:"detected_by,omitempty"`
	ImageURL     string  `json:"image_url,omitempty"`
	ThumbnailURL string  `json:"thumbnail_url,omitempty"`
}

// CreateMaintenanceParams describes a new repair task.
type CreateMaintenanceParams struct {
	Title             string   `json:"title"`
	Description       string   `json:"description,omitempty"`
	ScheduledDate     string   `json:"scheduled_date,omitempty"`
	Status            string   `json:"status,omitempty"`
	TeamID            string   `json:"team_id"`
	SignalementIDs    []string `json:"signalement_ids"`
	RepairType        string   `json:"repair_type"`
	EstimatedDuration float64  `json:"estimated_duration"`
	Notes             string   `json:"notes,omitempty"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Login authenticates an operator and stores the bearer token on the client.
func (c *Client) Login(ctx context.Context, email, password string) (User, error) {
	var resp struct {
		Token string `json:"token"`
		User  User   `json:"user"`
	}
	body := map[string]any{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "v0/auth/login", body, &resp); err != nil {
		return User{}, err
	}
	c.BearerToken = resp.Token
	return resp.User, nil
}

// Me returns the current principal.
func (c *Client) Me(ctx context.Context) (User, error) {
	var resp User
	err := c.do(ctx, http.MethodGet, "v0/me", nil, &resp)
	return resp, err
}

// Signalements lists signalements matching the filters, in insertion order.
func (c *Client) Signalements(ctx context.Context, f SignalementFilters) ([]Signalement, error) {
	q := url.Values{}
	if f.Status != "" {
		q.Set("status", f.Status)
	}
	if f.Severity != "" {
		q.Set("severity", f.Severity)
	}
	if f.DateFrom != "" {
		q.Set("date_from", f.DateFrom)
	}
	if f.DateTo != "" {
		q.Set("date_to", f.DateTo)
	}
	var resp []Signalement
	err := c.do(ctx, http.MethodGet, withQuery("v0/signalements", q), nil, &resp)
	return resp, err
}

// Signalement fetches one signalement by id.
func (c *Client) Signalement(ctx context.Context, id string) (Signalement, error) {
	var resp Signalement
	err := c.do(ctx, http.MethodGet, "v0/signalements/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// CreateSignalement reports a new road defect.
func (c *Client) CreateSignalement(ctx context.Context, params CreateSignalementParams) (Signalement, error) {
	var resp Signalement
	err := c.do(ctx, http.MethodPost, "v0/signalements", params, &resp)
	return resp, err
}

// SetSignalementStatus transitions a signalement.
func (c *Client) SetSignalementStatus(ctx context.Context, id, status string) (Signalement, error) {
	var resp Signalement
	endpoint := fmt.Sprintf("v0/signalements/%s/status", url.PathEscape(id))
	err := c.do(ctx, http.MethodPatch, endpoint, map[string]any{"status": status}, &resp)
	return resp, err
}

// Maintenances lists maintenance tasks matching the filters.
func (c *Client) Maintenances(ctx context.Context, f MaintenanceFilters) ([]Maintenance, error) {
	q := url.Values{}
	if f.Status != "" {
		q.Set("status", f.Status)
	}
	if f.TeamID != "" {
		q.Set("team_id", f.TeamID)
	}
	var resp []Maintenance
	err := c.do(ctx, http.MethodGet, withQuery("v0/maintenances", q), nil, &resp)
	return resp, err
}

// Maintenance fetches one maintenance task by id.
func (c *Client) Maintenance(ctx context.Context, id string) (Maintenance, error) {
	var resp Maintenance
	err := c.do(ctx, http.MethodGet, "v0/maintenances/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// CreateMaintenance schedules a repair covering existing signalements.
func (c *Client) CreateMaintenance(ctx context.Context, params CreateMaintenanceParams) (Maintenance, error) {
	var resp Maintenance
	err := c.do(ctx, http.MethodPost, "v0/maintenances", params, &resp)
	return resp, err
}

// SetMaintenanceStatus transitions a task; the server propagates the change
// to covered signalements.
func (c *Client) SetMaintenanceStatus(ctx context.Context, id, status string) (Maintenance, error) {
	var resp Maintenance
	endpoint := fmt.Sprintf("v0/maintenances/%s/status", url.PathEscape(id))
	err := c.do(ctx, http.MethodPatch, endpoint, map[string]any{"status": status}, &resp)
	return resp, err
}

// Teams lists the repair crews.
func (c *Client) Teams(ctx context.Context) ([]Team, error) {
	var resp []Team
	err := c.do(ctx, http.MethodGet, "v0/teams", nil, &resp)
	return resp, err
}

// Stats returns dashboard statistics.
func (c *Client) Stats(ctx context.Context) (Stats, error) {
	var resp Stats
	err := c.do(ctx, http.MethodGet, "v0/stats", nil, &resp)
	return resp, err
}

// Events returns recent audit log entries, newest first.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	endpoint := "v0/events"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var resp []Event
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// ExportSignalementsCSV downloads the signalement export.
func (c *Client) ExportSignalementsCSV(ctx context.Context) (string, error) {
	return c.raw(ctx, "v0/exports/signalements.csv")
}

// ExportMaintenancesCSV downloads the maintenance export.
func (c *Client) ExportMaintenancesCSV(ctx context.Context) (string, error) {
	return c.raw(ctx, "v0/exports/maintenances.csv")
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.setAuth(req)
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) raw(ctx context.Context, endpoint string) (string, error) {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base()+"/"+strings.TrimLeft(endpoint, "/"), nil)
	if err != nil {
		return "", err
	}
	c.setAuth(req)
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 300 {
		return "", &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	return string(b), nil
}

func (c *Client) setAuth(req *http.Request) {
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.ActorID != "":
		req.Header.Set("X-Actor-Id", c.ActorID)
	}
}

func withQuery(endpoint string, q url.Values) string {
	if len(q) == 0 {
		return endpoint
	}
	return endpoint + "?" + q.Encode()
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
