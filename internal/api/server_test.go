package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"bledemo/internal/ble"
	"bledemo/internal/logging"
	"bledemo/internal/store"
)

var testNow = time.UnixMilli(1700000000000)

type testEnv struct {
	dir     string
	handler http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvIn(t, t.TempDir(), nil)
}

func newTestEnvIn(t *testing.T, dir string, tweak func(*Deps)) *testEnv {
	t.Helper()

	clock := func() time.Time { return testNow }
	deps := Deps{
		Logger: logging.Nop{},
		Devices: store.NewList("devices", filepath.Join(dir, "devices.json"),
			ble.DemoDevices, store.WithClock[ble.SavedDevice](clock)),
		Commands: store.NewList("commands", filepath.Join(dir, "commands.json"),
			ble.DemoCommands, store.WithClock[ble.SavedCommand](clock)),
		StaticDir: dir,
		WiFi:      ble.DemoWiFiStatus(),
		Now:       clock,
	}
	if tweak != nil {
		tweak(&deps)
	}

	s, err := New(deps)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	return &testEnv{dir: dir, handler: s.Handler()}
}

func (e *testEnv) do(t *testing.T, method, path, form string) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if form != "" {
		body = strings.NewReader(form)
	}
	req := httptest.NewRequest(method, path, body)
	if form != "" {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func assertJSON(t *testing.T, rr *httptest.ResponseRecorder, wantCode int) {
	t.Helper()
	if rr.Code != wantCode {
		t.Fatalf("status = %d, want %d (body %q)", rr.Code, wantCode, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}
	if got := rr.Header().Get("Access-Control-Allow-Methods"); got != "GET, POST, DELETE, OPTIONS" {
		t.Errorf("Access-Control-Allow-Methods = %q", got)
	}
	if got := rr.Header().Get("Access-Control-Allow-Headers"); got != "Content-Type" {
		t.Errorf("Access-Control-Allow-Headers = %q", got)
	}
}

func TestNew_RequiresDeps(t *testing.T) {
	if _, err := New(Deps{}); err == nil {
		t.Fatal("expected error without logger")
	}
	if _, err := New(Deps{Logger: logging.Nop{}}); err == nil {
		t.Fatal("expected error without stores")
	}
}

func TestStatusEndpoints(t *testing.T) {
	tests := []struct {
		method string
		path   string
		form   string
		want   string
	}{
		{http.MethodGet, "/api/scan", "", "scanning"},
		{http.MethodGet, "/api/stop-scan", "", "stopped"},
		{http.MethodGet, "/api/disconnect", "", "disconnected"},
		{http.MethodPost, "/api/connect", "address=AA:BB:CC:DD:EE:FF", "connecting"},
		{http.MethodPost, "/api/send-command", "serviceUUID=x&characteristicUUID=y&data=01", "command_sent"},
		{http.MethodPost, "/api/connect", "", "connecting"},
	}

	env := newTestEnv(t)
	for _, tt := range tests {
		t.Run(tt.method+tt.path, func(t *testing.T) {
			rr := env.do(t, tt.method, tt.path, tt.form)
			assertJSON(t, rr, http.StatusOK)

			got := decode[map[string]string](t, rr)
			if len(got) != 1 || got["status"] != tt.want {
				t.Errorf("body = %v, want {status:%q}", got, tt.want)
			}
		})
	}
}

func TestGetServices(t *testing.T) {
	rr := newTestEnv(t).do(t, http.MethodGet, "/api/get-services", "")
	assertJSON(t, rr, http.StatusOK)

	services := decode[[]ble.Service](t, rr)
	if len(services) != 2 {
		t.Fatalf("len(services) = %d, want 2", len(services))
	}
	if services[0].UUID != ble.DemoServiceUUID || len(services[0].Characteristics) != 2 {
		t.Errorf("services[0] = %+v", services[0])
	}
	if services[1].UUID != ble.DemoSensorServiceUUID || len(services[1].Characteristics) != 1 {
		t.Errorf("services[1] = %+v", services[1])
	}
	if services[0].Characteristics[0].Properties != 10 {
		t.Errorf("properties = %d, want 10", services[0].Characteristics[0].Properties)
	}
}

func TestWiFiStatus(t *testing.T) {
	rr := newTestEnv(t).do(t, http.MethodGet, "/api/wifi/status", "")
	assertJSON(t, rr, http.StatusOK)

	got := decode[map[string]any](t, rr)
	want := map[string]any{
		"isAPMode":      false,
		"wifiConnected": true,
		"currentSSID":   "Demo-Network",
		"ipAddress":     "127.0.0.1",
		"apIP":          "",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %v, want %v", k, got[k], v)
		}
	}
}

func TestListDevices_SeedWhenAbsent(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/api/devices", "")
	assertJSON(t, rr, http.StatusOK)

	devices := decode[[]ble.SavedDevice](t, rr)
	if len(devices) != 2 {
		t.Fatalf("len(devices) = %d, want 2", len(devices))
	}
	if devices[0].Name != "Demo Heart Rate Monitor" || devices[1].Name != "Demo Temperature Sensor" {
		t.Errorf("names = %q, %q", devices[0].Name, devices[1].Name)
	}
	for _, d := range devices {
		if d.SavedAt != testNow.UnixMilli() {
			t.Errorf("%s saved_at = %d, want %d", d.Name, d.SavedAt, testNow.UnixMilli())
		}
	}

	if _, err := os.Stat(filepath.Join(env.dir, "devices.json")); !os.IsNotExist(err) {
		t.Errorf("GET must not persist the seed, stat err = %v", err)
	}
}

func TestSaveDevice_RoundTripAcrossRestart(t *testing.T) {
	dir := t.TempDir()
	env := newTestEnvIn(t, dir, nil)

	rr := env.do(t, http.MethodPost, "/api/devices", "name=Foo&address=AA:AA:AA:AA:AA:AA")
	assertJSON(t, rr, http.StatusOK)
	if got := decode[map[string]string](t, rr); got["status"] != "device_saved" {
		t.Fatalf("body = %v", got)
	}

	restarted := newTestEnvIn(t, dir, nil)
	rr = restarted.do(t, http.MethodGet, "/api/devices", "")
	assertJSON(t, rr, http.StatusOK)

	devices := decode[[]map[string]any](t, rr)
	if len(devices) != 1 {
		t.Fatalf("len(devices) = %d, want 1 (seed is not persisted)", len(devices))
	}
	last := devices[len(devices)-1]
	if last["name"] != "Foo" || last["address"] != "AA:AA:AA:AA:AA:AA" {
		t.Errorf("last = %v", last)
	}
	if last["saved_at"] != float64(testNow.UnixMilli()) {
		t.Errorf("saved_at = %v, want %d", last["saved_at"], testNow.UnixMilli())
	}
	if len(last) != 3 {
		t.Errorf("unexpected fields in %v", last)
	}
}

func TestSaveDevice_MissingFieldsDefaultEmpty(t *testing.T) {
	env := newTestEnv(t)

	assertJSON(t, env.do(t, http.MethodPost, "/api/devices", "unrelated=1"), http.StatusOK)

	devices := decode[[]ble.SavedDevice](t, env.do(t, http.MethodGet, "/api/devices", ""))
	if len(devices) != 1 || devices[0].Name != "" || devices[0].Address != "" {
		t.Fatalf("devices = %+v", devices)
	}
}

func TestSaveCommand(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/api/commands",
		"name=Blink&serviceUUID=svc&characteristicUUID=chr&data=0A%20FF")
	assertJSON(t, rr, http.StatusOK)
	if got := decode[map[string]string](t, rr); got["status"] != "command_saved" {
		t.Fatalf("body = %v", got)
	}

	commands := decode[[]ble.SavedCommand](t, env.do(t, http.MethodGet, "/api/commands", ""))
	want := ble.SavedCommand{
		Name:               "Blink",
		ServiceUUID:        "svc",
		CharacteristicUUID: "chr",
		Data:               "0A FF",
		SavedAt:            testNow.UnixMilli(),
	}
	if len(commands) != 1 || commands[0] != want {
		t.Fatalf("commands = %+v, want [%+v]", commands, want)
	}
}

// seedCommandsFile writes the demo command list to disk, as a prior save would.
func seedCommandsFile(t *testing.T, dir string) []ble.SavedCommand {
	t.Helper()
	seed := ble.DemoCommands(testNow)
	data, err := json.Marshal(seed)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "commands.json"), data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return seed
}

func TestDeleteCommand_FirstElement(t *testing.T) {
	env := newTestEnv(t)
	seed := seedCommandsFile(t, env.dir)

	rr := env.do(t, http.MethodDelete, "/api/commands", "index=0")
	assertJSON(t, rr, http.StatusOK)
	if got := decode[map[string]string](t, rr); got["status"] != "command_deleted" {
		t.Fatalf("body = %v", got)
	}

	commands := decode[[]ble.SavedCommand](t, env.do(t, http.MethodGet, "/api/commands", ""))
	if len(commands) != 1 {
		t.Fatalf("len(commands) = %d, want 1", len(commands))
	}
	if commands[0] != seed[1] {
		t.Errorf("remaining = %+v, want %+v", commands[0], seed[1])
	}
}

func TestDeleteCommand_DefaultIndexIsZero(t *testing.T) {
	env := newTestEnv(t)
	seed := seedCommandsFile(t, env.dir)

	assertJSON(t, env.do(t, http.MethodDelete, "/api/commands", ""), http.StatusOK)

	commands := decode[[]ble.SavedCommand](t, env.do(t, http.MethodGet, "/api/commands", ""))
	if len(commands) != 1 || commands[0].Name != seed[1].Name {
		t.Fatalf("commands = %+v", commands)
	}
}

func TestDeleteCommand_InvalidIndex(t *testing.T) {
	for _, form := range []string{"index=99", "index=-1", "index=abc", "index=2"} {
		t.Run(form, func(t *testing.T) {
			env := newTestEnv(t)
			seedCommandsFile(t, env.dir)

			rr := env.do(t, http.MethodDelete, "/api/commands", form)
			assertJSON(t, rr, http.StatusBadRequest)
			if got := decode[map[string]string](t, rr); got["error"] != "Invalid index" {
				t.Errorf("body = %v", got)
			}

			commands := decode[[]ble.SavedCommand](t, env.do(t, http.MethodGet, "/api/commands", ""))
			if len(commands) != 2 {
				t.Errorf("list changed: %+v", commands)
			}
		})
	}
}

func TestDeleteCommand_FileAbsent(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodDelete, "/api/commands", "index=0")
	assertJSON(t, rr, http.StatusNotFound)
	if got := decode[map[string]string](t, rr); got["error"] != "Commands file not found" {
		t.Errorf("body = %v", got)
	}
}

func TestMalformedFileIs500(t *testing.T) {
	env := newTestEnv(t)
	if err := os.WriteFile(filepath.Join(env.dir, "devices.json"), []byte("[{"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	for _, tc := range []struct{ method, form string }{
		{http.MethodGet, ""},
		{http.MethodPost, "name=x"},
	} {
		rr := env.do(t, tc.method, "/api/devices", tc.form)
		assertJSON(t, rr, http.StatusInternalServerError)
		if got := decode[map[string]string](t, rr); got["error"] == "" {
			t.Errorf("%s: missing error message", tc.method)
		}
	}
}

func TestOptionsPreflight(t *testing.T) {
	env := newTestEnv(t)

	for _, p := range []string{"/api/scan", "/api/commands", "/anything/else"} {
		rr := env.do(t, http.MethodOptions, p, "")
		if rr.Code != http.StatusOK {
			t.Errorf("%s: status = %d, want 200", p, rr.Code)
		}
		if rr.Body.Len() != 0 {
			t.Errorf("%s: body = %q, want empty", p, rr.Body.String())
		}
		if rr.Header().Get("Access-Control-Allow-Origin") != "*" {
			t.Errorf("%s: missing CORS header", p)
		}
	}
}

func TestWebSocketNotSupported(t *testing.T) {
	env := newTestEnv(t)

	plain := env.do(t, http.MethodGet, "/ws", "")

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	upgrade := httptest.NewRecorder()
	env.handler.ServeHTTP(upgrade, req)

	for name, rr := range map[string]*httptest.ResponseRecorder{"plain": plain, "upgrade": upgrade} {
		if rr.Code != http.StatusNotFound {
			t.Errorf("%s: status = %d, want 404", name, rr.Code)
		}
		if rr.Body.String() != "WebSocket not supported in demo mode" {
			t.Errorf("%s: body = %q", name, rr.Body.String())
		}
		if ct := rr.Header().Get("Content-Type"); ct != "text/plain" {
			t.Errorf("%s: Content-Type = %q, want text/plain", name, ct)
		}
	}
}

func TestStaticFallthrough(t *testing.T) {
	env := newTestEnv(t)
	if err := os.WriteFile(filepath.Join(env.dir, "index.html"), []byte("<h1>demo</h1>"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(env.dir, "script.js"), []byte("let x;"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	tests := []struct {
		method   string
		path     string
		wantCode int
		wantBody string
	}{
		{http.MethodGet, "/", http.StatusOK, "<h1>demo</h1>"},
		{http.MethodGet, "/script.js", http.StatusOK, "let x;"},
		{http.MethodGet, "/missing.css", http.StatusNotFound, ""},
		{http.MethodGet, "/api/connect", http.StatusNotFound, ""},
		{http.MethodHead, "/script.js", http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.method+tt.path, func(t *testing.T) {
			rr := env.do(t, tt.method, tt.path, "")
			if rr.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantCode)
			}
			if tt.wantBody != "" && rr.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", rr.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestUnmatchedNonGetIs404JSON(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct{ method, path string }{
		{http.MethodPost, "/api/unknown"},
		{http.MethodDelete, "/api/devices"},
		{http.MethodPut, "/api/commands"},
		{http.MethodPost, "/api/scan"},
	}

	for _, tt := range tests {
		t.Run(tt.method+tt.path, func(t *testing.T) {
			rr := env.do(t, tt.method, tt.path, "x=1")
			assertJSON(t, rr, http.StatusNotFound)
			if got := decode[map[string]string](t, rr); got["error"] != "Not found" {
				t.Errorf("body = %v", got)
			}
		})
	}
}

func TestMetricsRoute(t *testing.T) {
	env := newTestEnvIn(t, t.TempDir(), func(d *Deps) {
		d.MetricsPath = "/metrics"
		d.MetricsHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, "bledemo_up 1")
		})
	})

	rr := env.do(t, http.MethodGet, "/metrics", "")
	if rr.Code != http.StatusOK || rr.Body.String() != "bledemo_up 1" {
		t.Fatalf("got %d %q", rr.Code, rr.Body.String())
	}
}

func TestBodyTooLarge(t *testing.T) {
	env := newTestEnvIn(t, t.TempDir(), func(d *Deps) {
		d.MaxBodyBytes = 8
	})

	rr := env.do(t, http.MethodPost, "/api/devices", "name=a-very-long-device-name")
	assertJSON(t, rr, http.StatusRequestEntityTooLarge)

	if _, err := os.Stat(filepath.Join(env.dir, "devices.json")); !os.IsNotExist(err) {
		t.Errorf("oversized request must not persist anything, stat err = %v", err)
	}
}

func TestRequestIDHeader(t *testing.T) {
	rr := newTestEnv(t).do(t, http.MethodGet, "/api/scan", "")
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID on response")
	}
}

func TestListsPassThroughUnknownFields(t *testing.T) {
	env := newTestEnv(t)
	devices := `[{"name":"x","address":"y","saved_at":1700000000000,"rssi":-40}]`
	commands := `[{"name":"a","saved_at":1700000000000.5},{"name":"b","saved_at":1}]`
	if err := os.WriteFile(filepath.Join(env.dir, "devices.json"), []byte(devices), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(env.dir, "commands.json"), []byte(commands), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	rr := env.do(t, http.MethodGet, "/api/devices", "")
	assertJSON(t, rr, http.StatusOK)
	if got := decode[[]map[string]any](t, rr); len(got) != 1 || got[0]["rssi"] != float64(-40) {
		t.Fatalf("devices = %v, want rssi kept", got)
	}

	assertJSON(t, env.do(t, http.MethodPost, "/api/devices", "name=Foo&address=AA"), http.StatusOK)
	data, err := os.ReadFile(filepath.Join(env.dir, "devices.json"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), `"rssi":-40`) {
		t.Errorf("save dropped unknown field: %s", data)
	}

	rr = env.do(t, http.MethodGet, "/api/commands", "")
	assertJSON(t, rr, http.StatusOK)
	if got := decode[[]map[string]any](t, rr); len(got) != 2 {
		t.Fatalf("commands = %v", got)
	}

	assertJSON(t, env.do(t, http.MethodDelete, "/api/commands", "index=1"), http.StatusOK)
	remaining := decode[[]map[string]any](t, env.do(t, http.MethodGet, "/api/commands", ""))
	if len(remaining) != 1 || remaining[0]["saved_at"] != 1700000000000.5 {
		t.Errorf("remaining = %v", remaining)
	}
}

func TestSaveLogsCarryListName(t *testing.T) {
	var buf bytes.Buffer
	env := newTestEnvIn(t, t.TempDir(), func(d *Deps) {
		d.Logger = logging.NewWithWriter(&buf, "info", "json")
	})

	assertJSON(t, env.do(t, http.MethodPost, "/api/devices", "name=Foo&address=AA"), http.StatusOK)

	found := false
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		var entry map[string]any
		if err := json.Unmarshal(line, &entry); err != nil {
			t.Fatalf("log line is not JSON: %q", line)
		}
		if entry["msg"] == "device saved" {
			found = true
			if entry["list"] != "devices" {
				t.Errorf("list = %v, want devices", entry["list"])
			}
		}
	}
	if !found {
		t.Fatalf("no device saved line in %q", buf.String())
	}
}
