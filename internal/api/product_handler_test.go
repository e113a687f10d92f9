package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"go.uber.org/zap"

	"github.com/MorseWayne/retail_admin/internal/domain"
)

func setupImportRouter(importFunc func(ctx context.Context, c []domain.ProductCandidate, mode domain.ImportMode, prefix string) (*domain.BulkImportResult, error)) http.Handler {
	h := NewProductHandler(nil, &mockImportService{importFunc: importFunc}, zap.NewNop())
	r := setupTestRouter()
	r.POST("/products/bulk", h.BulkImport)
	return r
}

func TestProductHandler_BulkImport_StatusByOutcome(t *testing.T) {
	ok := domain.ImportItemResult{Index: 0, Success: true, Product: &domain.Product{SKU: "SKU-0001"}}
	missing := domain.ImportItemResult{Index: 1, Success: false, Error: "missing required fields", MissingFields: []string{"category"}}

	tests := []struct {
		name       string
		result     *domain.BulkImportResult
		wantStatus int
		wantOK     bool
	}{
		{"all succeeded", &domain.BulkImportResult{Total: 1, Succeeded: 1, Results: []domain.ImportItemResult{ok}}, http.StatusCreated, true},
		{"some succeeded", &domain.BulkImportResult{Total: 2, Succeeded: 1, Failed: 1, Results: []domain.ImportItemResult{ok, missing}}, http.StatusMultiStatus, true},
		{"none succeeded", &domain.BulkImportResult{Total: 1, Failed: 1, Results: []domain.ImportItemResult{missing}}, http.StatusBadRequest, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := setupImportRouter(func(context.Context, []domain.ProductCandidate, domain.ImportMode, string) (*domain.BulkImportResult, error) {
				return tt.result, nil
			})
			w, env := perform(t, r, http.MethodPost, "/products/bulk", map[string]any{"products": []map[string]any{{"title": "x"}}})

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if env.Success != tt.wantOK {
				t.Errorf("success = %v, want %v", env.Success, tt.wantOK)
			}

			payload := env.Data
			if !tt.wantOK {
				payload = env.Details
			}
			var res domain.BulkImportResult
			if err := json.Unmarshal(payload, &res); err != nil {
				t.Fatalf("invalid result payload: %v", err)
			}
			if len(res.Results) != len(tt.result.Results) {
				t.Errorf("results = %d, want %d", len(res.Results), len(tt.result.Results))
			}
		})
	}
}

func TestProductHandler_BulkImport_PassesModeAndPrefix(t *testing.T) {
	var gotMode domain.ImportMode
	var gotPrefix string
	var gotCount int
	r := setupImportRouter(func(_ context.Context, c []domain.ProductCandidate, mode domain.ImportMode, prefix string) (*domain.BulkImportResult, error) {
		gotMode, gotPrefix, gotCount = mode, prefix, len(c)
		return &domain.BulkImportResult{Mode: mode, Total: len(c), Succeeded: len(c)}, nil
	})

	body := map[string]any{"products": []map[string]any{{"title": "Feeding Bottle"}, {"title": "Sippy Cup"}}}
	w, _ := perform(t, r, http.MethodPost, "/products/bulk?mode=FailFast&skuPrefix=GB-", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d", w.Code)
	}
	if gotMode != domain.ImportFailFast || gotPrefix != "GB-" || gotCount != 2 {
		t.Errorf("mode=%q prefix=%q count=%d", gotMode, gotPrefix, gotCount)
	}

	w, _ = perform(t, r, http.MethodPost, "/products/bulk", body)
	if w.Code != http.StatusCreated || gotMode != domain.ImportPartial {
		t.Errorf("default mode = %q", gotMode)
	}
}

func TestProductHandler_BulkImport_InvalidMode(t *testing.T) {
	called := false
	r := setupImportRouter(func(context.Context, []domain.ProductCandidate, domain.ImportMode, string) (*domain.BulkImportResult, error) {
		called = true
		return nil, nil
	})

	w, _ := perform(t, r, http.MethodPost, "/products/bulk?mode=sometimes", map[string]any{"products": []any{}})
	if w.Code != http.StatusBadRequest || called {
		t.Errorf("status = %d, called = %v", w.Code, called)
	}
}

func TestProductHandler_BulkImport_EmptyBatch(t *testing.T) {
	r := setupImportRouter(func(_ context.Context, c []domain.ProductCandidate, _ domain.ImportMode, _ string) (*domain.BulkImportResult, error) {
		if len(c) == 0 {
			return nil, domain.NewValidationError("products must be a non-empty array")
		}
		return nil, nil
	})

	w, env := perform(t, r, http.MethodPost, "/products/bulk", map[string]any{})
	if w.Code != http.StatusBadRequest || env.Error == "" {
		t.Errorf("status = %d, error = %q", w.Code, env.Error)
	}
}
