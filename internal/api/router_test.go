package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jannes-thesis/scaling-adapter/internal/pool"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestStatus_ReportsWorkerCount(t *testing.T) {
	p := pool.NewFixedPool(3, nil)
	defer p.Destroy()
	require.Eventually(t, func() bool { return p.Size() == 3 }, time.Second, 5*time.Millisecond)

	r := NewRouter("fixed", p, nil)
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var got StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "fixed", got.Variant)
	assert.Equal(t, 3, got.WorkerCount)
}

func TestHistory_EmptyWithoutController(t *testing.T) {
	p := pool.NewFixedPool(1, nil)
	defer p.Destroy()

	r := NewRouter("fixed", p, nil)
	req := httptest.NewRequest(http.MethodGet, "/history", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var got []HistoryEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Empty(t, got)
}
