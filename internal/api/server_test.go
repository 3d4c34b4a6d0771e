package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/thomasjamais/bitget-agent-sub001/internal/auth"
	"github.com/thomasjamais/bitget-agent-sub001/internal/bitget"
	"github.com/thomasjamais/bitget-agent-sub001/internal/events"
	"github.com/thomasjamais/bitget-agent-sub001/internal/opportunity"
	"github.com/thomasjamais/bitget-agent-sub001/internal/portfolio"
	"github.com/thomasjamais/bitget-agent-sub001/internal/risk"
	"github.com/thomasjamais/bitget-agent-sub001/internal/trading"
)

func newTestServer(t *testing.T, authDeps *AuthDeps) *Server {
	t.Helper()

	riskMgr := risk.NewManager(risk.DefaultLimits())
	evaluator := opportunity.NewEvaluator(opportunity.DefaultConfig())
	manager, err := trading.NewManager(trading.DefaultConfig(), trading.Deps{
		Client:    bitget.NewMockClient(),
		RiskMgr:   riskMgr,
		Evaluator: evaluator,
		Bus:       events.NewEventBus(),
	})
	if err != nil {
		t.Fatal(err)
	}

	return NewServer(ServerConfig{Port: 0, Host: "127.0.0.1", ProductionMode: true}, Deps{
		Manager:   manager,
		RiskMgr:   riskMgr,
		Evaluator: evaluator,
		Balancer:  portfolio.NewBalancer(portfolio.DefaultConfig()),
		EventBus:  events.NewEventBus(),
		Auth:      authDeps,
	})
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	s.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "healthy" {
		t.Errorf("status = %v, want healthy", body["status"])
	}
}

func TestEngineReportWithoutAuth(t *testing.T) {
	s := newTestServer(t, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/engine/report", nil)
	s.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body struct {
		Data map[string]interface{} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"engine", "risk", "portfolio"} {
		if _, ok := body.Data[key]; !ok {
			t.Errorf("report missing %q section", key)
		}
	}
}

func TestProtectedRouteRequiresToken(t *testing.T) {
	pw := auth.NewPasswordManager(4)
	hash, _ := pw.HashPassword("hunter2hunter2")
	authDeps := &AuthDeps{
		JWTManager:   auth.NewJWTManager("test-secret", time.Hour),
		Passwords:    pw,
		OperatorName: "ops",
		PasswordHash: hash,
	}
	s := newTestServer(t, authDeps)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/risk", nil)
	s.Router().ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}

	// Login then retry with the issued token
	loginBody, _ := json.Marshal(map[string]string{"operator": "ops", "password": "hunter2hunter2"})
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(loginBody))
	req.Header.Set("Content-Type", "application/json")
	s.Router().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d, want 200", w.Code)
	}

	var login struct {
		Data struct {
			AccessToken string `json:"access_token"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &login); err != nil {
		t.Fatal(err)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/risk", nil)
	req.Header.Set("Authorization", "Bearer "+login.Data.AccessToken)
	s.Router().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestBadLoginRejected(t *testing.T) {
	pw := auth.NewPasswordManager(4)
	hash, _ := pw.HashPassword("hunter2hunter2")
	s := newTestServer(t, &AuthDeps{
		JWTManager:   auth.NewJWTManager("test-secret", time.Hour),
		Passwords:    pw,
		OperatorName: "ops",
		PasswordHash: hash,
	})

	body, _ := json.Marshal(map[string]string{"operator": "ops", "password": "wrong-password"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	s.Router().ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestUpdateAllocationsValidation(t *testing.T) {
	s := newTestServer(t, nil)

	body, _ := json.Marshal(map[string]interface{}{
		"targets": map[string]float64{"BTCUSDT": 0.5, "ETHUSDT": 0.3},
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/api/portfolio/allocations", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	s.Router().ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for allocations summing to 0.8", w.Code)
	}
}
