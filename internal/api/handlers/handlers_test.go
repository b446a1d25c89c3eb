package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/bankfeed-dev/bankfeed/internal/api/handlers"
	"github.com/bankfeed-dev/bankfeed/internal/domain"
	"github.com/bankfeed-dev/bankfeed/internal/progress"
)

// MockImportService implements handlers.ImportService.
type MockImportService struct {
	ProcessImportFunc func(ctx context.Context, txs []domain.ParsedTransaction, account string) (string, error)
	ExecuteImportFunc func(ctx context.Context, txs []domain.ConfirmedTransaction) (string, error)
	GetProgressFunc   func(sessionID string) *progress.Session
}

func (m *MockImportService) ProcessImport(ctx context.Context, txs []domain.ParsedTransaction, account string) (string, error) {
	return m.ProcessImportFunc(ctx, txs, account)
}

func (m *MockImportService) ExecuteImport(ctx context.Context, txs []domain.ConfirmedTransaction) (string, error) {
	return m.ExecuteImportFunc(ctx, txs)
}

func (m *MockImportService) GetProgress(sessionID string) *progress.Session {
	return m.GetProgressFunc(sessionID)
}

// MockEntityService implements handlers.EntityService.
type MockEntityService struct {
	CreateEntityFunc func(ctx context.Context, name string) (domain.EntityRef, error)
}

func (m *MockEntityService) CreateEntity(ctx context.Context, name string) (domain.EntityRef, error) {
	return m.CreateEntityFunc(ctx, name)
}

func TestProcessImportHandler(t *testing.T) {
	svc := &MockImportService{
		ProcessImportFunc: func(ctx context.Context, txs []domain.ParsedTransaction, account string) (string, error) {
			if account != "everyday" {
				t.Errorf("expected account everyday, got %q", account)
			}
			if len(txs) != 1 || txs[0].Description != "COLES 4821" {
				t.Errorf("unexpected transactions: %+v", txs)
			}
			return "session-123", nil
		},
	}
	h := handlers.NewImportHandler(svc, zerolog.Nop())

	body := `{"account":"everyday","transactions":[{"date":"2024-03-05","description":"COLES 4821","amount":"-23.50","account":"everyday","raw_row":"row-1"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/import/process", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.ProcessImport(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	if resp["session_id"] != "session-123" {
		t.Errorf("expected session-123, got %q", resp["session_id"])
	}
}

func TestProcessImportHandlerBadBody(t *testing.T) {
	h := handlers.NewImportHandler(&MockImportService{}, zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/api/import/process", strings.NewReader("{not json"))
	w := httptest.NewRecorder()

	h.ProcessImport(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestProcessImportHandlerValidationError(t *testing.T) {
	svc := &MockImportService{
		ProcessImportFunc: func(context.Context, []domain.ParsedTransaction, string) (string, error) {
			return "", errors.New("account is required")
		},
	}
	h := handlers.NewImportHandler(svc, zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/api/import/process", strings.NewReader(`{"transactions":[{"description":"X","raw_row":"r"}]}`))
	w := httptest.NewRecorder()

	h.ProcessImport(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "account is required") {
		t.Errorf("expected validation message in body, got %s", w.Body.String())
	}
}

func TestExecuteImportHandler(t *testing.T) {
	svc := &MockImportService{
		ExecuteImportFunc: func(ctx context.Context, txs []domain.ConfirmedTransaction) (string, error) {
			if len(txs) != 1 || txs[0].EntityID != "e1" {
				t.Errorf("unexpected transactions: %+v", txs)
			}
			return "session-456", nil
		},
	}
	h := handlers.NewImportHandler(svc, zerolog.Nop())

	body := `{"transactions":[{"description":"COLES 4821","account":"everyday","raw_row":"row-1","entity_id":"e1","transaction_type":"expense"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/import/execute", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.ExecuteImport(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}
}

func TestGetProgressHandler(t *testing.T) {
	svc := &MockImportService{
		GetProgressFunc: func(sessionID string) *progress.Session {
			if sessionID != "session-123" {
				return nil
			}
			return &progress.Session{
				SessionID:         "session-123",
				Status:            progress.StatusProcessing,
				CurrentStep:       progress.StepMatching,
				TotalTransactions: 10,
				ProcessedCount:    4,
			}
		},
	}
	h := handlers.NewImportHandler(svc, zerolog.Nop())

	t.Run("known session", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/import/progress/session-123", nil)
		w := httptest.NewRecorder()

		h.GetProgress(w, req, "session-123")

		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		var sess progress.Session
		if err := json.Unmarshal(w.Body.Bytes(), &sess); err != nil {
			t.Fatalf("invalid response JSON: %v", err)
		}
		if sess.ProcessedCount != 4 || sess.CurrentStep != progress.StepMatching {
			t.Errorf("unexpected session: %+v", sess)
		}
	})

	t.Run("unknown session", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/import/progress/nope", nil)
		w := httptest.NewRecorder()

		h.GetProgress(w, req, "nope")

		if w.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", w.Code)
		}
	})
}

func TestCreateEntityHandler(t *testing.T) {
	svc := &MockEntityService{
		CreateEntityFunc: func(ctx context.Context, name string) (domain.EntityRef, error) {
			return domain.EntityRef{ID: "e9", Name: name, URL: "https://notion.so/e9"}, nil
		},
	}
	h := handlers.NewEntitiesHandler(svc, zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/api/entities", strings.NewReader(`{"name":"Aldi"}`))
	w := httptest.NewRecorder()

	h.CreateEntity(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var ref domain.EntityRef
	if err := json.Unmarshal(w.Body.Bytes(), &ref); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	if ref.ID != "e9" || ref.Name != "Aldi" {
		t.Errorf("unexpected entity: %+v", ref)
	}
}

func TestCreateEntityHandlerMissingName(t *testing.T) {
	h := handlers.NewEntitiesHandler(&MockEntityService{}, zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/api/entities", strings.NewReader(`{}`))
	w := httptest.NewRecorder()

	h.CreateEntity(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}
