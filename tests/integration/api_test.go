//go:build integration

// Integration tests for the bridge API.
//
// These tests require a running server pointed at the mock CLI:
//
//	go build -o bin/mockcli ./tests/mockcli
//	CLIBRIDGE_CLI__PATH=$PWD/bin/mockcli CLIBRIDGE_JOURNAL__PATH=":memory:" ./bin/clibridge
//	go test -tags integration ./tests/integration
package integration

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"testing"
)

const defaultBaseURL = "http://localhost:8573"

func baseURL() string {
	if v := os.Getenv("CLIBRIDGE_TEST_URL"); v != "" {
		return v
	}
	return defaultBaseURL
}

func authToken() string {
	return os.Getenv("CLIBRIDGE_TEST_TOKEN")
}

// apiRequest makes an HTTP request, adding auth when a token is configured.
func apiRequest(t *testing.T, method, path string, body interface{}) *http.Response {
	t.Helper()

	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, baseURL()+path, bodyReader)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if tok := authToken(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, dst interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestHealthEndpoint(t *testing.T) {
	resp, err := http.Get(baseURL() + "/health")
	if err != nil {
		t.Fatalf("health request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)

	if result["status"] != "ok" {
		t.Errorf("expected status ok, got %v", result["status"])
	}
	if _, ok := result["session"]; !ok {
		t.Error("expected session state in health response")
	}
}

func TestReadyEndpoint(t *testing.T) {
	resp, err := http.Get(baseURL() + "/ready")
	if err != nil {
		t.Fatalf("ready request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	resp, err := http.Get(baseURL() + "/metrics")
	if err != nil {
		t.Fatalf("metrics request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)

	// Only check gauges which are always present; counters like
	// sessions_total only appear after the first increment.
	expectedMetrics := []string{
		"clibridge_sessions_in_progress",
		"clibridge_http_requests_total",
	}
	for _, m := range expectedMetrics {
		if !bytes.Contains(body, []byte(m)) {
			t.Errorf("metrics response missing %s", m)
		}
	}
}

func TestAvailability(t *testing.T) {
	resp := apiRequest(t, "GET", "/api/v1/availability", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result map[string]bool
	decodeJSON(t, resp, &result)
	if !result["available"] {
		t.Error("mock CLI reported unavailable")
	}
}

func TestRunSession(t *testing.T) {
	resp := apiRequest(t, "POST", "/api/v1/sessions", map[string]interface{}{
		"message": "hello bridge",
	})
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}

	var result struct {
		Content  string `json:"content"`
		Messages int    `json:"messages"`
		Ended    bool   `json:"ended"`
	}
	decodeJSON(t, resp, &result)

	if result.Content != "Echo: hello bridge" {
		t.Errorf("content = %q", result.Content)
	}
	if !result.Ended {
		t.Error("session did not report an end event")
	}
	if result.Messages < 2 {
		t.Errorf("messages = %d, want at least content and end", result.Messages)
	}
}

func TestRunSession_Validation(t *testing.T) {
	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"missing message", map[string]interface{}{"session_id": "s"}},
		{"zero timeout", map[string]interface{}{"message": "hi", "timeout_ms": 0.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := apiRequest(t, "POST", "/api/v1/sessions", tt.body)
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				body, _ := io.ReadAll(resp.Body)
				t.Errorf("expected 400, got %d: %s", resp.StatusCode, body)
			}
		})
	}
}

func TestRunSession_NonZeroExit(t *testing.T) {
	// The mock CLI exits 3 on the FAIL trigger message.
	resp := apiRequest(t, "POST", "/api/v1/sessions", map[string]interface{}{
		"message": "FAIL",
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.StatusCode)
	}

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	if code, _ := result["exit_code"].(float64); int(code) != 3 {
		t.Errorf("exit_code = %v, want 3", result["exit_code"])
	}
}

func TestRunSession_MalformedLinesTolerated(t *testing.T) {
	// The mock CLI interleaves an invalid line on the MALFORMED trigger.
	resp := apiRequest(t, "POST", "/api/v1/sessions", map[string]interface{}{
		"message": "MALFORMED",
	})
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}

	var result struct {
		Content string `json:"content"`
	}
	decodeJSON(t, resp, &result)
	if result.Content != "beforeafter" {
		t.Errorf("content = %q, want valid lines around the bad one", result.Content)
	}
}

func TestCancelWhenIdle(t *testing.T) {
	resp := apiRequest(t, "POST", "/api/v1/sessions/cancel", nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("expected 202, got %d", resp.StatusCode)
	}
}

func TestSessionMetrics(t *testing.T) {
	resp := apiRequest(t, "GET", "/api/v1/metrics/sessions", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result map[string]interface{}
	decodeJSON(t, resp, &result)
	for _, key := range []string{"last_duration_ms", "average_duration_ms", "success_count", "error_count", "sample_count"} {
		if _, ok := result[key]; !ok {
			t.Errorf("metrics response missing %s", key)
		}
	}
}

func TestRecentSessions(t *testing.T) {
	resp := apiRequest(t, "GET", "/api/v1/sessions/recent?limit=5", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result map[string]interface{}
	decodeJSON(t, resp, &result)
	if _, ok := result["sessions"]; !ok {
		t.Error("expected sessions key in response")
	}
}
