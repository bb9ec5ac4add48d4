package restapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/JonMunkholm/collabimport/internal/core"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(srv.URL+"/api/v1/", WithToken("secret"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestNew_InvalidURL(t *testing.T) {
	for _, raw := range []string{"", "not a url", "/relative/path"} {
		if _, err := New(raw); err == nil {
			t.Errorf("New(%q) should fail", raw)
		}
	}
}

func TestClient_References(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q", got)
		}
		if r.Header.Get("X-Request-Id") == "" {
			t.Error("missing X-Request-Id")
		}
		switch r.URL.Path {
		case "/api/v1/companies":
			w.Write([]byte(`[{"id":1,"name":"Acme"},{"id":2,"name":"Globex"}]`))
		case "/api/v1/departments":
			w.Write([]byte(`{"data":[{"id":10,"name":"Engineering"}]}`))
		case "/api/v1/positions":
			w.Write([]byte(`[]`))
		default:
			http.NotFound(w, r)
		}
	})

	ctx := context.Background()

	companies, err := c.Companies(ctx)
	if err != nil {
		t.Fatalf("Companies() error = %v", err)
	}
	if len(companies) != 2 || companies[1].Name != "Globex" || companies[1].ID != 2 {
		t.Errorf("companies = %+v", companies)
	}

	departments, err := c.Departments(ctx)
	if err != nil {
		t.Fatalf("Departments() error = %v", err)
	}
	if len(departments) != 1 || departments[0].ID != 10 {
		t.Errorf("departments = %+v", departments)
	}

	positions, err := c.Positions(ctx)
	if err != nil {
		t.Fatalf("Positions() error = %v", err)
	}
	if positions == nil || len(positions) != 0 {
		t.Errorf("positions = %#v, want empty slice", positions)
	}
}

func TestClient_ReferenceError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := c.Companies(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "GET /companies") || !strings.Contains(err.Error(), "500") {
		t.Errorf("error = %v", err)
	}
}

func TestClient_SubmitBatch(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/collaborators/bulk" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}

		var req struct {
			Collaborators []map[string]any `json:"collaborators"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(req.Collaborators) != 2 {
			t.Errorf("got %d collaborators, want 2", len(req.Collaborators))
		}
		if req.Collaborators[0]["taxId"] != "12345678909" || req.Collaborators[0]["companyId"] != float64(1) {
			t.Errorf("payload = %v", req.Collaborators[0])
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results":[
			{"name":"Ana","status":"success","emailDeliveryStatus":"sent"},
			{"name":"Bruno","status":"error","error":"Email already registered"}
		]}`))
	})

	results, err := c.SubmitBatch(context.Background(), []core.ResolvedPayload{
		{Name: "Ana", Email: "ana@acme.com", TaxID: "12345678909", CompanyID: 1, DepartmentID: 10, PositionID: 100},
		{Name: "Bruno", Email: "bruno@acme.com", TaxID: "98765432100", CompanyID: 1, DepartmentID: 10, PositionID: 100},
	})
	if err != nil {
		t.Fatalf("SubmitBatch() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results", len(results))
	}
	if results[0].Status != core.ResultSuccess || results[0].EmailDeliveryStatus != "sent" {
		t.Errorf("results[0] = %+v", results[0])
	}
	if results[1].Status != core.ResultError || results[1].Error != "Email already registered" {
		t.Errorf("results[1] = %+v", results[1])
	}
}

func TestClient_SubmitBatchServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
	})

	_, err := c.SubmitBatch(context.Background(), []core.ResolvedPayload{{Name: "Ana"}})

	var subErr *core.SubmissionError
	if !errors.As(err, &subErr) {
		t.Fatalf("expected SubmissionError, got %v", err)
	}
	if subErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("StatusCode = %d, want 503", subErr.StatusCode)
	}
	if got := core.MapError(err).Code; got != "SUB001" {
		t.Errorf("MapError code = %q, want SUB001", got)
	}
}

func TestClient_SubmitBatchTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c, err := New(url)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = c.SubmitBatch(context.Background(), []core.ResolvedPayload{{Name: "Ana"}})
	var subErr *core.SubmissionError
	if !errors.As(err, &subErr) {
		t.Fatalf("expected SubmissionError, got %v", err)
	}
	if subErr.StatusCode != 0 {
		t.Errorf("StatusCode = %d, want 0 for transport errors", subErr.StatusCode)
	}
}

func TestClient_WorksWithPipeline(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/companies":
			w.Write([]byte(`[{"id":1,"name":"Acme"}]`))
		case "/api/v1/departments":
			w.Write([]byte(`[{"id":10,"name":"Engineering"}]`))
		case "/api/v1/positions":
			w.Write([]byte(`[{"id":100,"name":"Developer"}]`))
		case "/api/v1/collaborators/bulk":
			w.Write([]byte(`{"results":[{"name":"Ana","status":"success","emailDeliveryStatus":"queued"}]}`))
		}
	})

	p := core.NewPipeline(c, c)
	data := "Nome;Email;CPF;Empresa;Setor;Cargo\nAna;ana@acme.com;123;acme;engineering;developer\n"
	sess, err := p.Run(context.Background(), core.ImportRequest{SessionID: "s1", FileName: "x.csv", Data: []byte(data)}, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if sess.Counts().Succeeded != 1 {
		t.Errorf("Succeeded = %d, want 1", sess.Counts().Succeeded)
	}
}
