package ledger

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRouter(l *Ledger, writeMiddlewares ...func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	RegisterRoutes(r, l, zap.NewNop(), writeMiddlewares...)
	return r
}

func denyAll(http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
}

func TestHTTP_ListTransactions(t *testing.T) {
	l := newTestLedger()
	require.NoError(t, l.Record(Transaction{Hash: "0x1", Kind: KindContribute}))
	require.NoError(t, l.Record(Transaction{Hash: "0x2", Kind: KindCreateCampaign}))
	require.NoError(t, l.Update("0x1", Patch{Status: StatusConfirmed}))

	router := newTestRouter(l)

	tests := []struct {
		name      string
		query     string
		wantCode  int
		wantCount int
	}{
		{"all", "", http.StatusOK, 2},
		{"pending", "?status=pending", http.StatusOK, 1},
		{"confirmed", "?status=confirmed", http.StatusOK, 1},
		{"failed", "?status=failed", http.StatusOK, 0},
		{"bad filter", "?status=bogus", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/transactions"+tt.query, nil))

			require.Equal(t, tt.wantCode, rec.Code)
			if tt.wantCode != http.StatusOK {
				return
			}

			var resp ListResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Len(t, resp.Transactions, tt.wantCount)
			assert.Equal(t, 1, resp.PendingCount)
		})
	}
}

func TestHTTP_GetTransaction(t *testing.T) {
	l := newTestLedger()
	require.NoError(t, l.Record(Transaction{Hash: "0xabc", Kind: KindRefund}))
	router := newTestRouter(l)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/transactions/0xabc", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var tx Transaction
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&tx))
	assert.Equal(t, KindRefund, tx.Kind)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/transactions/0xnope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHTTP_RemoveTransaction(t *testing.T) {
	l := newTestLedger()
	require.NoError(t, l.Record(Transaction{Hash: "0xabc", Kind: KindContribute}))
	router := newTestRouter(l)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/transactions/0xabc", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 0, l.PendingCount())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/transactions/0xabc", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHTTP_RemoveIsGuarded(t *testing.T) {
	l := newTestLedger()
	require.NoError(t, l.Record(Transaction{Hash: "0xabc", Kind: KindContribute}))
	router := newTestRouter(l, denyAll)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/transactions/0xabc", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	_, ok := l.Get("0xabc")
	assert.True(t, ok)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/transactions/0xabc", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHTTP_StreamTransactions(t *testing.T) {
	l := newTestLedger()
	srv := httptest.NewServer(newTestRouter(l))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/transactions/stream", nil)
	require.NoError(t, err)

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	// headers are flushed after the subscription exists
	require.NoError(t, l.Record(Transaction{Hash: "0x1", Kind: KindContribute}))
	require.NoError(t, l.Update("0x1", Patch{Status: StatusConfirmed}))

	scanner := bufio.NewScanner(resp.Body)
	var got []Event
	for len(got) < 2 && scanner.Scan() {
		data, ok := strings.CutPrefix(scanner.Text(), "data: ")
		if !ok {
			continue
		}
		var ev Event
		require.NoError(t, json.Unmarshal([]byte(data), &ev))
		got = append(got, ev)
	}
	require.Len(t, got, 2)
	assert.Equal(t, EventRecorded, got[0].Type)
	assert.Equal(t, EventUpdated, got[1].Type)
	assert.Equal(t, StatusConfirmed, got[1].Transaction.Status)
	assert.Equal(t, "0x1", got[1].Transaction.Hash)
}
