package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/MorseWayne/retail_admin/internal/courier/pathao"
	"github.com/MorseWayne/retail_admin/internal/domain"
	"github.com/MorseWayne/retail_admin/internal/service"
)

func setupPathaoRouter(svc *mockCourierService) http.Handler {
	h := NewPathaoHandler(svc, zap.NewNop())
	r := setupTestRouter()
	r.POST("/pathao/send-order", h.SendOrder)
	r.POST("/pathao/send-orders", h.SendOrders)
	r.POST("/pathao/update-status", h.UpdateStatus)
	return r
}

func TestPathaoHandler_SendOrder(t *testing.T) {
	now := time.Now()
	r := setupPathaoRouter(&mockCourierService{
		sendFunc: func(_ context.Context, id string) (*domain.Order, error) {
			switch id {
			case testOrderID:
				return &domain.Order{
					ID:                  id,
					OrderNumber:         "ORD-0001",
					Status:              domain.OrderStatusProcessing,
					PathaoConsignmentID: "DL121224VS8TTJ",
					PathaoStatus:        "Pending",
					PathaoUpdatedAt:     &now,
				}, nil
			case "rejected":
				return nil, &pathao.UpstreamError{Method: http.MethodPost, Path: "/aladdin/api/v1/orders", Status: 422, Body: `{"message":"invalid"}`}
			case "bad-credentials":
				return nil, &pathao.AuthenticationError{Status: 401, Body: "unauthorized"}
			}
			return nil, &domain.NotFoundError{Resource: "order", ID: id}
		},
	})

	w, env := perform(t, r, http.MethodPost, "/pathao/send-order", map[string]string{"orderId": testOrderID})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var fields courierFields
	_ = json.Unmarshal(env.Data, &fields)
	if fields.ConsignmentID != "DL121224VS8TTJ" || fields.Status != "processing" {
		t.Errorf("unexpected data: %+v", fields)
	}

	tests := []struct {
		orderID    string
		wantStatus int
	}{
		{"rejected", http.StatusBadGateway},
		{"bad-credentials", http.StatusBadGateway},
		{"missing", http.StatusNotFound},
		{"", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.orderID, func(t *testing.T) {
			w, env := perform(t, r, http.MethodPost, "/pathao/send-order", map[string]string{"orderId": tt.orderID})
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusBadGateway {
				var d upstreamDetails
				if err := json.Unmarshal(env.Details, &d); err != nil || d.Status == 0 || d.Body == "" {
					t.Errorf("upstream details not surfaced: %s", env.Details)
				}
			}
		})
	}
}

func TestPathaoHandler_SendOrders(t *testing.T) {
	var got []string
	r := setupPathaoRouter(&mockCourierService{
		batchFunc: func(_ context.Context, ids []string) *service.BatchDispatchResult {
			got = ids
			return &service.BatchDispatchResult{
				Total: 2, Succeeded: 1, Failed: 1,
				Results: []service.DispatchOutcome{
					{OrderID: ids[0], Success: true, ConsignmentID: "CN-1"},
					{OrderID: ids[1], Success: false, Error: "upstream failed"},
				},
			}
		},
	})

	w, env := perform(t, r, http.MethodPost, "/pathao/send-orders", map[string]any{"orderIds": []string{"a", "b"}})
	if w.Code != http.StatusOK || len(got) != 2 {
		t.Fatalf("status = %d, ids = %v", w.Code, got)
	}
	var res service.BatchDispatchResult
	_ = json.Unmarshal(env.Data, &res)
	if res.Succeeded != 1 || res.Failed != 1 || !res.Results[0].Success || res.Results[1].Error == "" {
		t.Errorf("unexpected result: %+v", res)
	}

	w, _ = perform(t, r, http.MethodPost, "/pathao/send-orders", map[string]any{"orderIds": []string{}})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty batch: status = %d, want 400", w.Code)
	}
}

func TestPathaoHandler_UpdateStatus(t *testing.T) {
	r := setupPathaoRouter(&mockCourierService{
		refreshFunc: func(_ context.Context, id string) (*domain.Order, error) {
			if id != testOrderID {
				return nil, domain.NewValidationError("order has not been sent to pathao")
			}
			return &domain.Order{ID: id, PathaoConsignmentID: "CN-1", PathaoStatus: "Delivered", Status: domain.OrderStatusProcessing}, nil
		},
	})

	w, env := perform(t, r, http.MethodPost, "/pathao/update-status", map[string]string{"orderId": testOrderID})
	var fields courierFields
	_ = json.Unmarshal(env.Data, &fields)
	if w.Code != http.StatusOK || fields.PathaoStatus != "Delivered" {
		t.Errorf("status = %d, data = %+v", w.Code, fields)
	}

	w, _ = perform(t, r, http.MethodPost, "/pathao/update-status", map[string]string{"orderId": "other"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}
