package admin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/l1jgo/scenegraph/internal/persist"
	"github.com/stretchr/testify/require"
)

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(NewMux(func() Status {
		return Status{Scene: "harbour", Frame: 42, Objects: 3, Uptime: "1m0s"}
	}))
	defer srv.Close()

	res, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var got Status
	require.NoError(t, json.NewDecoder(res.Body).Decode(&got))
	require.Equal(t, Status{Scene: "harbour", Frame: 42, Objects: 3, Uptime: "1m0s"}, got)
}

func TestHealthIncludesPoolStats(t *testing.T) {
	srv := httptest.NewServer(NewMux(func() Status {
		return Status{Scene: "harbour", Database: &persist.PoolStats{Total: 4, Idle: 3, Acquired: 1}}
	}))
	defer srv.Close()

	res, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer res.Body.Close()

	var got map[string]any
	require.NoError(t, json.NewDecoder(res.Body).Decode(&got))
	require.Equal(t, map[string]any{"total": 4.0, "idle": 3.0, "acquired": 1.0}, got["database"])
}

func TestHealthOmitsDatabaseWhenDisabled(t *testing.T) {
	srv := httptest.NewServer(NewMux(func() Status { return Status{Scene: "harbour"} }))
	defer srv.Close()

	res, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer res.Body.Close()

	var got map[string]any
	require.NoError(t, json.NewDecoder(res.Body).Decode(&got))
	require.NotContains(t, got, "database")
}

func TestMetricsEndpoint(t *testing.T) {
	srv := httptest.NewServer(NewMux(func() Status { return Status{} }))
	defer srv.Close()

	res, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
}
