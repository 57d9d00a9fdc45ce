package offers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-commerce/backend/internal/models"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Hint    string          `json:"hint"`
}

func newRouter(t *testing.T) (*gin.Engine, *env) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	e := newEnv(t)
	h := NewHandler(e.svc, nil)
	r := gin.New()
	g := r.Group("/admin/offers")
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/:id", h.GetByID)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
	g.GET("/:id/jobs", h.Jobs)
	return r, e
}

func do(t *testing.T, r http.Handler, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func offerBody(start, end time.Time, products ...uuid.UUID) map[string]any {
	return map[string]any{
		"title":           "Flash Friday",
		"start_date_time": start.Format(time.RFC3339),
		"end_date_time":   end.Format(time.RFC3339),
		"product_ids":     products,
		"discount_type":   "percentage",
		"discount_amount": "12.5",
	}
}

func TestHandlerOfferLifecycle(t *testing.T) {
	r, e := newRouter(t)

	w, body := do(t, r, http.MethodPost, "/admin/offers", offerBody(t0.Add(time.Hour), t0.Add(2*time.Hour), e.p1))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.True(t, body.Success)
	var created models.Offer
	require.NoError(t, json.Unmarshal(body.Data, &created))
	assert.Equal(t, "flash-friday", created.Slug)
	assert.Equal(t, "12.5", created.DiscountAmount.String())

	w, body = do(t, r, http.MethodGet, "/admin/offers/"+created.ID.String()+"/jobs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var jobs []models.ScheduledJob
	require.NoError(t, json.Unmarshal(body.Data, &jobs))
	assert.Len(t, jobs, 2)

	w, _ = do(t, r, http.MethodPut, "/admin/offers/"+created.ID.String(), offerBody(t0.Add(2*time.Hour), t0.Add(3*time.Hour), e.p1, e.p2))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, body = do(t, r, http.MethodGet, "/admin/offers", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []models.Offer
	require.NoError(t, json.Unmarshal(body.Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, []uuid.UUID{e.p1, e.p2}, list[0].ProductIDs)

	w, _ = do(t, r, http.MethodDelete, "/admin/offers/"+created.ID.String()+"?reset_full_discount=true", nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w, _ = do(t, r, http.MethodGet, "/admin/offers/"+created.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandlerRejectsEndedOfferWithHint(t *testing.T) {
	r, e := newRouter(t)

	w, body := do(t, r, http.MethodPost, "/admin/offers", offerBody(t0.Add(-2*time.Hour), t0.Add(-time.Hour), e.p1))
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, body.Success)
	assert.Contains(t, body.Error, "offer has already ended")
	assert.Contains(t, body.Hint, "end_date_time must be after")
}

func TestHandlerBadRequests(t *testing.T) {
	r, e := newRouter(t)

	bad := offerBody(t0.Add(time.Hour), t0.Add(2*time.Hour), e.p1)
	bad["start_date_time"] = "tomorrow"
	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"missing fields", http.MethodPost, "/admin/offers", map[string]any{"title": "x"}, http.StatusBadRequest},
		{"bad time", http.MethodPost, "/admin/offers", bad, http.StatusBadRequest},
		{"bad id", http.MethodGet, "/admin/offers/not-a-uuid", nil, http.StatusBadRequest},
		{"bad reset flag", http.MethodDelete, "/admin/offers/" + uuid.NewString() + "?reset_full_discount=maybe", nil, http.StatusBadRequest},
		{"unknown offer", http.MethodDelete, "/admin/offers/" + uuid.NewString(), nil, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := do(t, r, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, w.Code)
			assert.False(t, body.Success)
		})
	}
}
