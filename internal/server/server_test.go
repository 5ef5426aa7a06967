package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"

	"roadwise/internal/config"
	"roadwise/internal/db"
	"roadwise/internal/domain"
	"roadwise/internal/engine"
	"roadwise/internal/migrate"
	"roadwise/internal/repo"
)

type testServer struct {
	URL    string
	Engine engine.Engine
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	cfg := config.Default()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, cfg)
	if err := e.Repo.InsertTeam(context.Background(), domain.Team{ID: "team-1", Name: "Équipe Alpha", Members: 5, Specialization: "Réparation asphalte"}); err != nil {
		t.Fatalf("insert team: %v", err)
	}
	handler, err := New(Config{
		Engine:   e,
		BasePath: "/v0",
		Auth: AuthConfig{
			JWTSecret:              "test-secret",
			AllowLegacyActorHeader: true,
		},
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Engine: e,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func login(t *testing.T, srv *testServer, email, password string) string {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/auth/login", map[string]any{
		"email":    email,
		"password": password,
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("login status %d: %s", res.StatusCode, string(data))
	}
	var parsed LoginResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("unmarshal login: %v", err)
	}
	if parsed.Token == "" {
		t.Fatalf("empty token")
	}
	return parsed.Token
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func TestLoginAndMe(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	token := login(t, srv, "admin@roadwise.com", "admin123")

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/me", nil, bearer(token))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("me status %d: %s", res.StatusCode, string(data))
	}
	var me UserResponse
	_ = json.Unmarshal(data, &me)
	if me.Email != "admin@roadwise.com" || me.Role != "admin" {
		t.Fatalf("unexpected principal: %+v", me)
	}

	badRes, _ := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/auth/login", map[string]any{
		"email":    "admin@roadwise.com",
		"password": "wrong",
	}, nil)
	if badRes.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad password, got %d", badRes.StatusCode)
	}
}

func TestUnauthenticatedRejected(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/signalements", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", res.StatusCode, string(data))
	}

	healthRes, _ := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/health", nil, nil)
	if healthRes.StatusCode != http.StatusOK {
		t.Fatalf("health must stay open, got %d", healthRes.StatusCode)
	}
}

func TestMaintenanceLifecycleOverAPI(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	token := login(t, srv, "manager@roadwise.com", "manager123")

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/signalements", map[string]any{
		"lat":      33.5731,
		"lng":      -7.5898,
		"address":  "12 Rue Atlas",
		"severity": "high",
	}, bearer(token))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create signalement status %d: %s", res.StatusCode, string(data))
	}
	var sig SignalementResponse
	_ = json.Unmarshal(data, &sig)
	if sig.Status != "new" {
		t.Fatalf("new signalement status %s", sig.Status)
	}

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/maintenances", map[string]any{
		"title":              "Réparation Rue Atlas",
		"team_id":            "team-1",
		"signalement_ids":    []string{sig.ID},
		"repair_type":        "Asphalte à chaud",
		"estimated_duration": 3,
	}, bearer(token))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create maintenance status %d: %s", res.StatusCode, string(data))
	}
	var mnt MaintenanceResponse
	_ = json.Unmarshal(data, &mnt)

	res, data = doJSON(t, srv.Client(), http.MethodPatch, srv.URL+"/v0/maintenances/"+mnt.ID+"/status", map[string]any{
		"status": "completed",
	}, bearer(token))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("complete status %d: %s", res.StatusCode, string(data))
	}
	var completed MaintenanceResponse
	_ = json.Unmarshal(data, &completed)
	if completed.Status != "completed" || completed.CompletionDate == nil {
		t.Fatalf("completion not recorded: %+v", completed)
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/signalements/"+sig.ID, nil, bearer(token))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get signalement status %d", res.StatusCode)
	}
	var after SignalementResponse
	_ = json.Unmarshal(data, &after)
	if after.Status != "repaired" {
		t.Fatalf("expected repaired, got %s", after.Status)
	}
	if after.MaintenanceID == nil || *after.MaintenanceID != mnt.ID {
		t.Fatalf("back-reference missing: %+v", after)
	}
}

func TestValidationErrorsOverAPI(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	token := login(t, srv, "admin@roadwise.com", "admin123")

	// domain validation: unknown signalement id
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/maintenances", map[string]any{
		"title":              "Orpheline",
		"team_id":            "team-1",
		"signalement_ids":    []string{"sig-404"},
		"estimated_duration": 1,
	}, bearer(token))
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal error envelope: %v", err)
	}
	if envelope.Error.Code != "validation_failed" {
		t.Fatalf("code = %s", envelope.Error.Code)
	}
	if envelope.Error.Details["field"] != "signalement_ids" {
		t.Fatalf("details = %v", envelope.Error.Details)
	}

	// unknown id is a 404
	res, _ = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/maintenances/mnt-404", nil, bearer(token))
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.StatusCode)
	}

	// unknown query token is rejected
	res, _ = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/signalements?severity=urgent", nil, bearer(token))
	if res.StatusCode == http.StatusOK {
		t.Fatalf("expected rejection of unknown severity")
	}
}

func TestLegacyActorHeader(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/signalements", map[string]any{
		"lat":      33.0,
		"lng":      -7.0,
		"address":  "5 Avenue Hassan II",
		"severity": "low",
	}, map[string]string{"X-Actor-Id": "dev-user"})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("legacy header create status %d: %s", res.StatusCode, string(data))
	}
}

func TestAPIKeyAuth(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	if err := srv.Engine.Repo.InsertAPIKey(context.Background(), domain.APIKey{
		ID:      "key-1",
		ActorID: "detector-7",
		Name:    "camion de détection",
		KeyHash: repo.HashAPIKey("rwk_secret"),
	}); err != nil {
		t.Fatalf("insert key: %v", err)
	}

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/signalements", map[string]any{
		"lat":         33.6,
		"lng":         -7.4,
		"address":     "Route de Rabat",
		"severity":    "medium",
		"detected_by": "automated-detection",
	}, map[string]string{"X-Api-Key": "rwk_secret"})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("api key create status %d: %s", res.StatusCode, string(data))
	}
	var sig SignalementResponse
	_ = json.Unmarshal(data, &sig)
	if sig.DetectedBy != "automated-detection" {
		t.Fatalf("detected_by = %s", sig.DetectedBy)
	}

	badRes, _ := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/signalements", nil, map[string]string{"X-Api-Key": "wrong"})
	if badRes.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown key, got %d", badRes.StatusCode)
	}

	// event should carry the key's actor
	events, err := srv.Engine.Repo.LatestEvents(context.Background(), 1, "", "", "")
	if err != nil || len(events) != 1 {
		t.Fatalf("events: %v (%d)", err, len(events))
	}
	if events[0].ActorID != "detector-7" {
		t.Fatalf("actor = %s", events[0].ActorID)
	}
}

func TestStatsAndTeamsOverAPI(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	token := login(t, srv, "admin@roadwise.com", "admin123")

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/teams", nil, bearer(token))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("teams status %d", res.StatusCode)
	}
	var teams []TeamResponse
	_ = json.Unmarshal(data, &teams)
	if len(teams) != 1 || teams[0].ID != "team-1" {
		t.Fatalf("teams mismatch: %v", teams)
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/stats", nil, bearer(token))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("stats status %d: %s", res.StatusCode, string(data))
	}
	var st StatsResponse
	if err := json.Unmarshal(data, &st); err != nil {
		t.Fatalf("unmarshal stats: %v", err)
	}
	if st.TotalSignalements != 0 || st.TotalMaintenances != 0 {
		t.Fatalf("expected empty store stats, got %+v", st)
	}
	if st.SignalementsByStatus["new"] != 0 {
		t.Fatalf("expected zero-filled status map, got %v", st.SignalementsByStatus)
	}
}

func TestCSVExportOverAPI(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	token := login(t, srv, "admin@roadwise.com", "admin123")

	if _, err := srv.Engine.CreateSignalement(context.Background(), engine.SignalementCreateOptions{
		Lat: 33.5, Lng: -7.5, Address: "12 Rue Atlas", Severity: "high", ActorID: "tester",
	}); err != nil {
		t.Fatalf("create signalement: %v", err)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/v0/exports/signalements.csv", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	res, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("export request: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("export status %d", res.StatusCode)
	}
	if ct := res.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("content type %s", ct)
	}
	if cd := res.Header.Get("Content-Disposition"); !strings.Contains(cd, "signalements.csv") {
		t.Fatalf("content disposition %s", cd)
	}
	body, _ := io.ReadAll(res.Body)
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header + 1 row, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "ID,Address,Coordinates") {
		t.Fatalf("header = %s", lines[0])
	}

	// exports still require auth
	anon, _ := http.NewRequest(http.MethodGet, srv.URL+"/v0/exports/signalements.csv", nil)
	anonRes, err := srv.Client().Do(anon)
	if err != nil {
		t.Fatalf("anon request: %v", err)
	}
	anonRes.Body.Close()
	if anonRes.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for anonymous export, got %d", anonRes.StatusCode)
	}
}
