package status

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/KevinKickass/ecconf/internal/config"
	"github.com/KevinKickass/ecconf/internal/interfaces"
	"github.com/KevinKickass/ecconf/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeLifecycle struct {
	counters *Counters
}

func (f *fakeLifecycle) GetCurrentStatus() interfaces.ConfStatus {
	return interfaces.ConfStatus{
		State:       "COMPILING",
		RunID:       "run-1",
		MasterCount: f.counters.Masters(),
		SlaveCount:  f.counters.Slaves(),
	}
}

func newTestServer(t *testing.T) (*Server, *Counters) {
	t.Helper()
	counters := &Counters{}
	srv := NewServer(&config.Config{}, &fakeLifecycle{counters: counters}, counters, nil, zaptest.NewLogger(t))
	return srv, counters
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	w := get(t, srv.Handler(), "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestConfStatusShowsProgress(t *testing.T) {
	srv, counters := newTestServer(t)

	counters.IncMaster()
	counters.IncSlave()
	counters.IncSlave()

	w := get(t, srv.Handler(), "/api/v1/conf/status")
	require.Equal(t, http.StatusOK, w.Code)

	var st interfaces.ConfStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.Equal(t, "COMPILING", st.State)
	assert.Equal(t, "run-1", st.RunID)
	assert.EqualValues(t, 1, st.MasterCount)
	assert.EqualValues(t, 2, st.SlaveCount)
}

func TestMetrics(t *testing.T) {
	srv, counters := newTestServer(t)
	for i := 0; i < 3; i++ {
		counters.IncSlave()
	}
	counters.IncMaster()

	w := get(t, srv.Handler(), "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ecconf_conf_master_count 1")
	assert.Contains(t, w.Body.String(), "ecconf_conf_slave_count 3")

	counters.Reset()
	w = get(t, srv.Handler(), "/metrics")
	assert.Contains(t, w.Body.String(), "ecconf_conf_slave_count 0")
}

func TestUnknownRoute(t *testing.T) {
	srv, _ := newTestServer(t)

	w := get(t, srv.Handler(), "/api/v1/devices")
	assert.Equal(t, http.StatusNotFound, w.Code)

	var body types.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, types.CodeNotFound, body.Error.Code)
	assert.Equal(t, "/api/v1/devices", body.Error.Details)
}

func TestWrongMethod(t *testing.T) {
	srv, _ := newTestServer(t)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/conf/status", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Contains(t, w.Body.String(), types.CodeMethodNotAllowed)
}
