package notification

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHTTP_NotificationLifecycle(t *testing.T) {
	c := NewCenter(Config{}, zap.NewNop())
	defer c.Close()

	r := chi.NewRouter()
	RegisterRoutes(r, c, zap.NewNop())

	a := c.Push(Notification{Severity: SeverityError, Title: "a"})
	c.Push(Notification{Severity: SeverityWarning, Title: "b"})

	do := func(method, path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
		return rec
	}

	rec := do(http.MethodPost, "/notifications/"+a.ID+"/read")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp ListResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 1, resp.UnreadCount)
	assert.Len(t, resp.Notifications, 2)

	assert.Equal(t, http.StatusNotFound, do(http.MethodPost, "/notifications/nope/read").Code)

	rec = do(http.MethodPost, "/notifications/read-all")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 0, resp.UnreadCount)

	assert.Equal(t, http.StatusNoContent, do(http.MethodDelete, "/notifications/"+a.ID).Code)
	assert.Equal(t, http.StatusNotFound, do(http.MethodDelete, "/notifications/"+a.ID).Code)
	assert.Equal(t, http.StatusNoContent, do(http.MethodDelete, "/notifications").Code)

	rec = do(http.MethodGet, "/notifications")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Empty(t, resp.Notifications)
}
