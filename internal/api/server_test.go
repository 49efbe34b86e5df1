package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/nerrad567/fleetd/internal/audit"
	"github.com/nerrad567/fleetd/internal/auth"
	"github.com/nerrad567/fleetd/internal/device"
	"github.com/nerrad567/fleetd/internal/events"
	"github.com/nerrad567/fleetd/internal/infrastructure/config"
	"github.com/nerrad567/fleetd/internal/infrastructure/logging"
)

// setupTestDB creates an in-memory SQLite database with the full schema.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schema := `
		CREATE TABLE users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL UNIQUE,
			password TEXT NOT NULL,
			created_at TEXT NOT NULL
		) STRICT;

		CREATE TABLE sessions (
			id TEXT PRIMARY KEY,
			user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			token_hash TEXT NOT NULL UNIQUE,
			expires_at TEXT NOT NULL,
			created_at TEXT NOT NULL
		) STRICT;

		CREATE TABLE devices (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			device_type TEXT NOT NULL,
			device_id TEXT NOT NULL,
			current_ota TEXT NOT NULL,
			ip_address TEXT NOT NULL,
			ssh_user TEXT NOT NULL,
			password TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		) STRICT;

		CREATE TABLE audit_logs (
			id TEXT PRIMARY KEY,
			action TEXT NOT NULL,
			entity_type TEXT NOT NULL,
			entity_id TEXT,
			actor TEXT,
			source TEXT NOT NULL,
			details TEXT,
			created_at TEXT NOT NULL
		) STRICT;`

	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("creating test schema: %v", err)
	}

	return db
}

// testLogger returns a logger that discards all output.
func testLogger() *logging.Logger {
	return &logging.Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// newTestServer builds a server over an in-memory database, seeds one
// user (admin/secret), and returns the server with an httptest wrapper
// around its router.
func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()

	db := setupTestDB(t)

	users := auth.NewUserRepository(db)
	sessions := auth.NewSessionRepository(db)
	auditRepo := audit.NewSQLiteRepository(db)
	bus := events.NewBus()
	t.Cleanup(bus.Close)
	inventory := device.NewInventory(device.NewSQLiteRepository(db), bus)

	if err := users.Create(context.Background(), &auth.User{Username: "admin", Password: "secret"}); err != nil {
		t.Fatalf("seeding test user: %v", err)
	}

	srv, err := New(Deps{
		Config: config.APIConfig{
			Host: "127.0.0.1",
			Port: 0,
			CORS: config.CORSConfig{AllowedOrigins: []string{"*"}},
		},
		WS: config.WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Auth: config.AuthConfig{
			SessionTTL:   60,
			CookieName:   "fleetd_session",
			CookieSecure: false,
		},
		Logger:    testLogger(),
		Inventory: inventory,
		Users:     users,
		Sessions:  sessions,
		AuditRepo: auditRepo,
		Bus:       bus,
		DB:        db,
		Version:   "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	// Background loops normally started by Start(); the listener itself
	// is replaced by httptest.
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	srv.hub = NewHub(srv.wsCfg, srv.logger)
	go srv.hub.Run(ctx)
	go srv.drainAuditLog(ctx)
	go srv.bridgeEvents(ctx)
	srv.startTime = time.Now()

	ts := httptest.NewServer(srv.buildRouter())
	t.Cleanup(ts.Close)

	return srv, ts
}

// login authenticates as admin/secret and returns the session cookie.
func login(t *testing.T, ts *httptest.Server) *http.Cookie {
	t.Helper()

	resp := doJSON(t, ts, http.MethodPost, "/api/auth/login", nil,
		map[string]string{"username": "admin", "password": "secret"})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d, want 200", resp.StatusCode)
	}

	for _, c := range resp.Cookies() {
		if c.Name == "fleetd_session" {
			return c
		}
	}
	t.Fatal("login response has no session cookie")
	return nil
}

// doJSON issues a request with an optional JSON body and session cookie.
func doJSON(t *testing.T, ts *httptest.Server, method, path string, cookie *http.Cookie, body any) *http.Response {
	t.Helper()

	var buf io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshalling request body: %v", err)
		}
		buf = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, ts.URL+path, buf)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}

	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

// doRaw issues a request with a raw string body.
func doRaw(t *testing.T, ts *httptest.Server, method, path string, cookie *http.Cookie, body string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, ts.URL+path, bytes.NewReader([]byte(body)))
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}

	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

// decodeBody decodes a JSON response body into v.
func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decoding response body: %v", err)
	}
}

// checkError decodes a standardised error response and checks the code.
func checkError(t *testing.T, resp *http.Response, wantStatus int, wantCode string) {
	t.Helper()

	if resp.StatusCode != wantStatus {
		t.Errorf("status = %d, want %d", resp.StatusCode, wantStatus)
	}

	var apiErr Error
	decodeBody(t, resp, &apiErr)
	if apiErr.Code != wantCode {
		t.Errorf("error code = %q, want %q", apiErr.Code, wantCode)
	}
}

// validDeviceBody returns a device payload passing all validation rules.
func validDeviceBody() map[string]string {
	return map[string]string{
		"deviceType": "sensor",
		"deviceId":   "6603041292",
		"currentOTA": "1.2.0",
		"ipAddress":  "192.168.1.50",
		"sshUser":    "pi",
		"password":   "hunter2",
	}
}

func TestHealth_NoAuthRequired(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := ts.Client().Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET /api/health: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	var body map[string]string
	decodeBody(t, resp, &body)
	if body["status"] != "ok" {
		t.Errorf("status = %q, want ok", body["status"])
	}
	if body["version"] != "test" {
		t.Errorf("version = %q, want test", body["version"])
	}
}

func TestMetrics_NoAuthRequired(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := ts.Client().Get(ts.URL + "/api/metrics")
	if err != nil {
		t.Fatalf("GET /api/metrics: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	var metrics SystemMetrics
	decodeBody(t, resp, &metrics)
	if metrics.Version != "test" {
		t.Errorf("version = %q, want test", metrics.Version)
	}
	if metrics.Runtime.Goroutines == 0 {
		t.Error("goroutine count should be non-zero")
	}
}

func TestDevices_Unauthenticated(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := ts.Client().Get(ts.URL + "/api/devices")
	if err != nil {
		t.Fatalf("GET /api/devices: %v", err)
	}
	checkError(t, resp, http.StatusUnauthorized, ErrCodeUnauthorized)
}

func TestLogin_Success(t *testing.T) {
	_, ts := newTestServer(t)

	resp := doJSON(t, ts, http.MethodPost, "/api/auth/login", nil,
		map[string]string{"username": "admin", "password": "secret"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "fleetd_session" {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatal("no session cookie set")
	}
	if !cookie.HttpOnly {
		t.Error("session cookie should be HttpOnly")
	}
	if cookie.Path != "/" {
		t.Errorf("cookie path = %q, want /", cookie.Path)
	}

	var body struct {
		User userResponse `json:"user"`
	}
	decodeBody(t, resp, &body)
	if body.User.Username != "admin" {
		t.Errorf("username = %q, want admin", body.User.Username)
	}
	if body.User.ID != 1 {
		t.Errorf("user id = %d, want 1", body.User.ID)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	_, ts := newTestServer(t)

	resp := doJSON(t, ts, http.MethodPost, "/api/auth/login", nil,
		map[string]string{"username": "admin", "password": "wrong"})
	checkError(t, resp, http.StatusUnauthorized, ErrCodeUnauthorized)
}

func TestLogin_UnknownUser(t *testing.T) {
	_, ts := newTestServer(t)

	resp := doJSON(t, ts, http.MethodPost, "/api/auth/login", nil,
		map[string]string{"username": "nobody", "password": "secret"})
	checkError(t, resp, http.StatusUnauthorized, ErrCodeUnauthorized)
}

func TestLogin_MissingFields(t *testing.T) {
	_, ts := newTestServer(t)

	tests := []struct {
		name string
		body map[string]string
	}{
		{"missing password", map[string]string{"username": "admin"}},
		{"missing username", map[string]string{"password": "secret"}},
		{"empty body", map[string]string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doJSON(t, ts, http.MethodPost, "/api/auth/login", nil, tt.body)
			checkError(t, resp, http.StatusBadRequest, ErrCodeBadRequest)
		})
	}
}

func TestLogin_MalformedBody(t *testing.T) {
	_, ts := newTestServer(t)

	resp := doRaw(t, ts, http.MethodPost, "/api/auth/login", nil, "{not json")
	checkError(t, resp, http.StatusBadRequest, ErrCodeBadRequest)
}

func TestCurrentUser(t *testing.T) {
	_, ts := newTestServer(t)
	cookie := login(t, ts)

	resp := doJSON(t, ts, http.MethodGet, "/api/auth/user", cookie, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body struct {
		User userResponse `json:"user"`
	}
	decodeBody(t, resp, &body)
	if body.User.Username != "admin" {
		t.Errorf("username = %q, want admin", body.User.Username)
	}
}

func TestLogout_DestroysSession(t *testing.T) {
	_, ts := newTestServer(t)
	cookie := login(t, ts)

	resp := doJSON(t, ts, http.MethodPost, "/api/auth/logout", cookie, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout status = %d, want 200", resp.StatusCode)
	}

	var body map[string]string
	decodeBody(t, resp, &body)
	if body["status"] != "ok" {
		t.Errorf("status = %q, want ok", body["status"])
	}

	// The old cookie is no longer valid.
	resp2 := doJSON(t, ts, http.MethodGet, "/api/auth/user", cookie, nil)
	checkError(t, resp2, http.StatusUnauthorized, ErrCodeUnauthorized)
}

func TestLogout_WithoutCookie(t *testing.T) {
	_, ts := newTestServer(t)

	resp := doJSON(t, ts, http.MethodPost, "/api/auth/logout", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200 (logout is idempotent)", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestListDevices_EmptyInventory(t *testing.T) {
	_, ts := newTestServer(t)
	cookie := login(t, ts)

	resp := doJSON(t, ts, http.MethodGet, "/api/devices", cookie, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	// Bare array, never null.
	raw, _ := io.ReadAll(resp.Body)
	var devices []device.Device
	if err := json.Unmarshal(raw, &devices); err != nil {
		t.Fatalf("response is not an array: %v", err)
	}
	if string(bytes.TrimSpace(raw)) == "null" {
		t.Error("empty inventory should serialise as [], not null")
	}
	if len(devices) != 0 {
		t.Errorf("got %d devices, want 0", len(devices))
	}
}

func TestCreateDevice(t *testing.T) {
	_, ts := newTestServer(t)
	cookie := login(t, ts)

	resp := doJSON(t, ts, http.MethodPost, "/api/devices", cookie, validDeviceBody())
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}

	var created device.Device
	decodeBody(t, resp, &created)
	if created.ID != 1 {
		t.Errorf("assigned id = %d, want 1", created.ID)
	}
	if created.DeviceID != "6603041292" {
		t.Errorf("deviceId = %q, want 6603041292", created.DeviceID)
	}

	// Round trip: the list contains exactly what was created.
	listResp := doJSON(t, ts, http.MethodGet, "/api/devices", cookie, nil)
	var devices []device.Device
	decodeBody(t, listResp, &devices)
	if len(devices) != 1 {
		t.Fatalf("got %d devices, want 1", len(devices))
	}
	if devices[0] != created {
		t.Errorf("listed device = %+v, want %+v", devices[0], created)
	}
}

func TestCreateDevice_ValidationError(t *testing.T) {
	_, ts := newTestServer(t)
	cookie := login(t, ts)

	body := validDeviceBody()
	body["ipAddress"] = "abc"

	resp := doJSON(t, ts, http.MethodPost, "/api/devices", cookie, body)
	checkError(t, resp, http.StatusBadRequest, ErrCodeValidation)
}

func TestCreateDevice_CollectsAllViolations(t *testing.T) {
	_, ts := newTestServer(t)
	cookie := login(t, ts)

	resp := doJSON(t, ts, http.MethodPost, "/api/devices", cookie, map[string]string{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}

	var apiErr Error
	decodeBody(t, resp, &apiErr)
	if apiErr.Code != ErrCodeValidation {
		t.Errorf("error code = %q, want %q", apiErr.Code, ErrCodeValidation)
	}
	// All six required-field violations, joined.
	for _, want := range []string{"deviceType", "deviceId", "currentOTA", "ipAddress", "sshUser", "password"} {
		if !bytes.Contains([]byte(apiErr.Message), []byte(want)) {
			t.Errorf("error message %q missing violation for %s", apiErr.Message, want)
		}
	}
}

func TestCreateDevice_Duplicate(t *testing.T) {
	_, ts := newTestServer(t)
	cookie := login(t, ts)

	resp := doJSON(t, ts, http.MethodPost, "/api/devices", cookie, validDeviceBody())
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("first create status = %d, want 201", resp.StatusCode)
	}

	resp2 := doJSON(t, ts, http.MethodPost, "/api/devices", cookie, validDeviceBody())
	checkError(t, resp2, http.StatusConflict, ErrCodeConflict)

	// Inventory unchanged.
	listResp := doJSON(t, ts, http.MethodGet, "/api/devices", cookie, nil)
	var devices []device.Device
	decodeBody(t, listResp, &devices)
	if len(devices) != 1 {
		t.Errorf("got %d devices, want 1 after rejected duplicate", len(devices))
	}
}

func TestCreateDevice_MalformedBody(t *testing.T) {
	_, ts := newTestServer(t)
	cookie := login(t, ts)

	resp := doRaw(t, ts, http.MethodPost, "/api/devices", cookie, "{not json")
	checkError(t, resp, http.StatusBadRequest, ErrCodeBadRequest)
}

func TestSearchDevices(t *testing.T) {
	_, ts := newTestServer(t)
	cookie := login(t, ts)

	seeds := []map[string]string{
		{"deviceType": "sensor", "deviceId": "6603041292", "currentOTA": "1.0.0", "ipAddress": "10.0.0.1", "sshUser": "pi", "password": "x"},
		{"deviceType": "camera", "deviceId": "7701020304", "currentOTA": "1.0.0", "ipAddress": "10.0.0.2", "sshUser": "pi", "password": "x"},
		{"deviceType": "sensor", "deviceId": "8812345660", "currentOTA": "2.0.0", "ipAddress": "10.0.0.3", "sshUser": "pi", "password": "x"},
	}
	for _, seed := range seeds {
		resp := doJSON(t, ts, http.MethodPost, "/api/devices", cookie, seed)
		resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("seed create status = %d, want 201", resp.StatusCode)
		}
	}

	t.Run("deviceId substring", func(t *testing.T) {
		resp := doJSON(t, ts, http.MethodPost, "/api/devices/search", cookie,
			map[string]string{"deviceId": "660"})
		var hits []device.Device
		decodeBody(t, resp, &hits)
		// 6603041292 and 8812345660 both contain "660".
		if len(hits) != 2 {
			t.Fatalf("got %d hits, want 2", len(hits))
		}
	})

	t.Run("criteria are combined with AND", func(t *testing.T) {
		resp := doJSON(t, ts, http.MethodPost, "/api/devices/search", cookie,
			map[string]string{"deviceType": "sensor", "currentOTA": "2.0.0"})
		var hits []device.Device
		decodeBody(t, resp, &hits)
		if len(hits) != 1 || hits[0].DeviceID != "8812345660" {
			t.Fatalf("hits = %+v, want single 8812345660", hits)
		}
	})

	t.Run("no matches returns bare empty array", func(t *testing.T) {
		resp := doJSON(t, ts, http.MethodPost, "/api/devices/search", cookie,
			map[string]string{"deviceType": "toaster"})
		defer resp.Body.Close()
		raw, _ := io.ReadAll(resp.Body)
		if string(bytes.TrimSpace(raw)) != "[]" {
			t.Errorf("body = %q, want []", raw)
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		resp := doRaw(t, ts, http.MethodPost, "/api/devices/search", cookie, "nope")
		checkError(t, resp, http.StatusBadRequest, ErrCodeBadRequest)
	})
}

func TestUpdateDevice(t *testing.T) {
	_, ts := newTestServer(t)
	cookie := login(t, ts)

	resp := doJSON(t, ts, http.MethodPost, "/api/devices", cookie, validDeviceBody())
	var created device.Device
	decodeBody(t, resp, &created)

	updateResp := doJSON(t, ts, http.MethodPut, fmt.Sprintf("/api/devices/%d", created.ID), cookie,
		map[string]string{"currentOTA": "2.0.0", "ipAddress": "192.168.1.99"})
	if updateResp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", updateResp.StatusCode)
	}

	var updated device.Device
	decodeBody(t, updateResp, &updated)
	if updated.CurrentOTA != "2.0.0" {
		t.Errorf("currentOTA = %q, want 2.0.0", updated.CurrentOTA)
	}
	if updated.IPAddress != "192.168.1.99" {
		t.Errorf("ipAddress = %q, want 192.168.1.99", updated.IPAddress)
	}
	// Untouched fields survive.
	if updated.SSHUser != "pi" {
		t.Errorf("sshUser = %q, want pi", updated.SSHUser)
	}
}

func TestUpdateDevice_IdentityFieldsImmutable(t *testing.T) {
	_, ts := newTestServer(t)
	cookie := login(t, ts)

	resp := doJSON(t, ts, http.MethodPost, "/api/devices", cookie, validDeviceBody())
	var created device.Device
	decodeBody(t, resp, &created)

	updateResp := doJSON(t, ts, http.MethodPut, fmt.Sprintf("/api/devices/%d", created.ID), cookie,
		map[string]string{"deviceType": "camera", "deviceId": "9999999999"})
	if updateResp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", updateResp.StatusCode)
	}

	var updated device.Device
	decodeBody(t, updateResp, &updated)
	if updated.DeviceType != "sensor" {
		t.Errorf("deviceType = %q, want sensor (immutable)", updated.DeviceType)
	}
	if updated.DeviceID != "6603041292" {
		t.Errorf("deviceId = %q, want 6603041292 (immutable)", updated.DeviceID)
	}
}

func TestUpdateDevice_NonNumericID(t *testing.T) {
	_, ts := newTestServer(t)
	cookie := login(t, ts)

	resp := doJSON(t, ts, http.MethodPut, "/api/devices/abc", cookie,
		map[string]string{"currentOTA": "2.0.0"})
	checkError(t, resp, http.StatusBadRequest, ErrCodeBadRequest)
}

func TestUpdateDevice_UnknownID(t *testing.T) {
	_, ts := newTestServer(t)
	cookie := login(t, ts)

	resp := doJSON(t, ts, http.MethodPut, "/api/devices/999", cookie,
		map[string]string{"currentOTA": "2.0.0"})
	checkError(t, resp, http.StatusNotFound, ErrCodeNotFound)
}

func TestUpdateDevice_MalformedBodyBeforeLookup(t *testing.T) {
	_, ts := newTestServer(t)
	cookie := login(t, ts)

	// A bad body against an unknown id answers 400, not 404.
	resp := doRaw(t, ts, http.MethodPut, "/api/devices/999", cookie, "{not json")
	checkError(t, resp, http.StatusBadRequest, ErrCodeBadRequest)
}

func TestUpdateDevice_MergedValidation(t *testing.T) {
	_, ts := newTestServer(t)
	cookie := login(t, ts)

	resp := doJSON(t, ts, http.MethodPost, "/api/devices", cookie, validDeviceBody())
	var created device.Device
	decodeBody(t, resp, &created)

	updateResp := doJSON(t, ts, http.MethodPut, fmt.Sprintf("/api/devices/%d", created.ID), cookie,
		map[string]string{"ipAddress": "not-an-ip"})
	checkError(t, updateResp, http.StatusBadRequest, ErrCodeValidation)
}

func TestDeleteDevice(t *testing.T) {
	_, ts := newTestServer(t)
	cookie := login(t, ts)

	resp := doJSON(t, ts, http.MethodPost, "/api/devices", cookie, validDeviceBody())
	var created device.Device
	decodeBody(t, resp, &created)

	path := fmt.Sprintf("/api/devices/%d", created.ID)

	delResp := doJSON(t, ts, http.MethodDelete, path, cookie, nil)
	if delResp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", delResp.StatusCode)
	}
	var body map[string]string
	decodeBody(t, delResp, &body)
	if body["status"] != "ok" {
		t.Errorf("status = %q, want ok", body["status"])
	}

	// Second delete of the same id answers 404.
	delResp2 := doJSON(t, ts, http.MethodDelete, path, cookie, nil)
	checkError(t, delResp2, http.StatusNotFound, ErrCodeNotFound)
}

func TestDeleteDevice_NonNumericID(t *testing.T) {
	_, ts := newTestServer(t)
	cookie := login(t, ts)

	resp := doJSON(t, ts, http.MethodDelete, "/api/devices/abc", cookie, nil)
	checkError(t, resp, http.StatusBadRequest, ErrCodeBadRequest)
}

func TestDeviceIDsNeverReused(t *testing.T) {
	_, ts := newTestServer(t)
	cookie := login(t, ts)

	resp := doJSON(t, ts, http.MethodPost, "/api/devices", cookie, validDeviceBody())
	var first device.Device
	decodeBody(t, resp, &first)

	delResp := doJSON(t, ts, http.MethodDelete, fmt.Sprintf("/api/devices/%d", first.ID), cookie, nil)
	delResp.Body.Close()

	second := validDeviceBody()
	second["deviceId"] = "7700000000"
	resp2 := doJSON(t, ts, http.MethodPost, "/api/devices", cookie, second)
	var recreated device.Device
	decodeBody(t, resp2, &recreated)

	if recreated.ID <= first.ID {
		t.Errorf("recreated id = %d, want > %d (ids are never reused)", recreated.ID, first.ID)
	}
}

func TestAuditTrail(t *testing.T) {
	_, ts := newTestServer(t)
	cookie := login(t, ts)

	resp := doJSON(t, ts, http.MethodPost, "/api/devices", cookie, validDeviceBody())
	resp.Body.Close()

	// Audit writes are asynchronous; poll until they land.
	deadline := time.Now().Add(2 * time.Second)
	for {
		listResp := doJSON(t, ts, http.MethodGet, "/api/audit?action=device.create", cookie, nil)
		var result audit.ListResult
		decodeBody(t, listResp, &result)

		if result.Total >= 1 {
			if result.Logs[0].Actor != "admin" {
				t.Errorf("actor = %q, want admin", result.Logs[0].Actor)
			}
			if result.Logs[0].EntityType != "device" {
				t.Errorf("entity type = %q, want device", result.Logs[0].EntityType)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("device.create audit entry never persisted")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestExpiredSessionRejected(t *testing.T) {
	srv, ts := newTestServer(t)
	cookie := login(t, ts)

	// Force the session past its expiry.
	tokenHash := auth.HashToken(cookie.Value)
	session, err := srv.sessions.GetByTokenHash(context.Background(), tokenHash)
	if err != nil || session == nil {
		t.Fatalf("session lookup: %v, %v", session, err)
	}
	if _, err := srv.db.Exec(
		"UPDATE sessions SET expires_at = ? WHERE token_hash = ?",
		time.Now().UTC().Add(-time.Hour).Format(time.RFC3339), tokenHash,
	); err != nil {
		t.Fatalf("expiring session: %v", err)
	}

	resp := doJSON(t, ts, http.MethodGet, "/api/devices", cookie, nil)
	checkError(t, resp, http.StatusUnauthorized, ErrCodeUnauthorized)

	// The expired row was removed lazily.
	session, err = srv.sessions.GetByTokenHash(context.Background(), tokenHash)
	if err != nil {
		t.Fatalf("session lookup: %v", err)
	}
	if session != nil {
		t.Error("expired session should have been deleted on rejection")
	}
}
