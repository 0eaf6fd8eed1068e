package audit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-affiliate/internal/common"
)

func TestServiceRecord(t *testing.T) {
	store := &MemoryStore{}
	svc := Service{Store: store, Enabled: true, SamplingRate: 1}
	adminID := "admin-7"

	req := httptest.NewRequest(http.MethodGet, "https://api.test/api/v1/admin/earnings.csv?page=2", nil)
	req.Header.Set("User-Agent", "tester")
	req.Header.Set("X-Request-ID", "req-123")
	req.RemoteAddr = "10.0.0.2:54321"

	err := svc.Record(req.Context(), Actor{Kind: ActorKindAdmin, ID: &adminID}, "", "", "", req, http.StatusOK, nil)
	require.NoError(t, err)

	rows, total, err := store.List(context.Background(), 10, 0)
	require.NoError(t, err)
	require.Equal(t, 1, total)
	entry := rows[0]
	require.Equal(t, "admin", entry.ActorKind)
	require.Equal(t, "admin-7", *entry.ActorID)
	require.Equal(t, "GET /api/v1/admin/earnings.csv", entry.Action)
	require.Equal(t, "admin.earnings.csv", entry.ResourceType)
	require.Equal(t, "10.0.0.2", *entry.IP)
	require.Equal(t, "req-123", *entry.RequestID)
	require.Nil(t, entry.ResourceID)

	var meta map[string]string
	require.NoError(t, json.Unmarshal(entry.Metadata, &meta))
	require.Equal(t, "page=2", meta["query"])
}

func TestServiceRecordDisabled(t *testing.T) {
	store := &MemoryStore{}
	svc := Service{Store: store}
	req := httptest.NewRequest(http.MethodPut, "/x", nil)

	require.NoError(t, svc.Record(req.Context(), Actor{}, "", "", "", req, 0, nil))
	_, total, _ := store.List(context.Background(), 10, 0)
	require.Zero(t, total)
}

func TestServiceRecordRequiresRequest(t *testing.T) {
	svc := Service{Store: &MemoryStore{}, Enabled: true}
	require.Error(t, svc.Record(context.Background(), Actor{}, "", "", "", nil, 0, nil))
}

func TestActorFromPrincipal(t *testing.T) {
	ctx := common.WithPrincipal(context.Background(), common.Principal{ID: "r-1", Role: common.RoleReseller})
	actor := ActorFromPrincipal(ctx)
	require.Equal(t, ActorKindReseller, actor.Kind)
	require.Equal(t, "r-1", *actor.ID)

	require.Equal(t, ActorKindAnonymous, ActorFromPrincipal(context.Background()).Kind)
}

func TestMiddlewareRecordsRoutePattern(t *testing.T) {
	store := &MemoryStore{}
	rec := HTTPRecorder{Service: &Service{Store: store, Enabled: true}}

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := common.WithPrincipal(req.Context(), common.Principal{ID: "admin-1", Role: common.RoleAdmin})
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	r.With(rec.Middleware(HTTPConfig{
		Action:          "catalog.admin_discount.set",
		ResourceType:    "product",
		ResourceIDParam: "productId",
		MetadataFunc: func(_ *http.Request, status int) map[string]any {
			return map[string]any{"status": status}
		},
	})).Put("/api/v1/admin/products/{productId}/admin-discount", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPut, "/api/v1/admin/products/p-9/admin-discount", nil))
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rows, _, err := store.List(context.Background(), 10, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	entry := rows[0]
	require.Equal(t, "catalog.admin_discount.set", entry.Action)
	require.Equal(t, "product", entry.ResourceType)
	require.Equal(t, "p-9", *entry.ResourceID)
	require.Equal(t, http.StatusBadRequest, entry.Status)
	require.Equal(t, "/api/v1/admin/products/{productId}/admin-discount", *entry.Route)
	require.Equal(t, "admin", entry.ActorKind)
	require.JSONEq(t, `{"status":400}`, string(entry.Metadata))
}
