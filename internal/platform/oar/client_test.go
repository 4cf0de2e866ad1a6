package oar

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/reservoir/internal/util/retry"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL, WithToken("secret"), WithRetry(retry.WithMaxRetries(2), retry.WithInitialDelay(time.Millisecond)))
}

func jsonResponse(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestClient_SubmitJob(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/sites/rennes/jobs", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req JobRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "exp", req.Name)
		assert.Equal(t, int64(3600), req.Walltime)
		require.Len(t, req.Nodes, 1)
		assert.Equal(t, "paravance", req.Nodes[0].Cluster)

		jsonResponse(w, http.StatusCreated, Job{ID: 42, Name: req.Name, Site: "rennes", State: StateWaiting})
	})

	job, err := c.SubmitJob(context.Background(), "rennes", JobRequest{
		Name:     "exp",
		Walltime: 3600,
		Nodes:    []NodeRequest{{Cluster: "paravance", Count: 2}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), job.ID)
	assert.Equal(t, StateWaiting, job.State)
}

func TestClient_InvalidReservationTime(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusBadRequest, APIError{Code: CodeInvalidReservationTime, Message: "slot taken", Hint: 1700000000})
	})

	_, err := c.SubmitJob(context.Background(), "rennes", JobRequest{Name: "exp"})
	require.Error(t, err)

	hint, ok := IsInvalidReservationTime(err)
	assert.True(t, ok)
	assert.Equal(t, int64(1700000000), hint)
	assert.False(t, IsReservationTooOld(err))
}

func TestClient_ReservationTooOld(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusBadRequest, APIError{Code: CodeReservationTooOld})
	})

	_, err := c.SubmitJob(context.Background(), "rennes", JobRequest{Name: "exp"})
	assert.True(t, IsReservationTooOld(err))
}

func TestClient_RetriesServerErrors(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		jsonResponse(w, http.StatusOK, []string{"lyon", "rennes"})
	})

	sites, err := c.Sites(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"lyon", "rennes"}, sites)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "no such job", http.StatusNotFound)
	})

	_, err := c.Job(context.Background(), "rennes", 7)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, int32(1), calls.Load())
	assert.Contains(t, err.Error(), "no such job")
}

func TestClient_JobsFilters(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "exp", r.URL.Query().Get("name"))
		assert.Equal(t, "waiting,running", r.URL.Query().Get("state"))
		jsonResponse(w, http.StatusOK, []Job{{ID: 1, Name: "exp", State: StateRunning}})
	})

	jobs, err := c.Jobs(context.Background(), "rennes", "exp", StateWaiting, StateRunning)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
}

func TestClient_Availability(t *testing.T) {
	t.Parallel()
	start := time.Unix(1700000000, 0)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sites/rennes/status", r.URL.Path)
		assert.Equal(t, "1700000000", r.URL.Query().Get("start"))
		assert.Equal(t, "1700003600", r.URL.Query().Get("end"))
		jsonResponse(w, http.StatusOK, Availability{
			FreeNodes:    map[string][]string{"paravance": {"paravance-1.rennes.grid5000.fr"}},
			FreeNetworks: map[string]int{"vlan-local": 2},
		})
	})

	a, err := c.Availability(context.Background(), "rennes", start, start.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, a.FreeNodes["paravance"], 1)
	assert.Equal(t, 2, a.FreeNetworks["vlan-local"])
}

func TestClient_DeleteAndVLANMembers(t *testing.T) {
	t.Parallel()
	var paths []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, c.DeleteJob(context.Background(), "rennes", 5))
	require.NoError(t, c.SetVLANMembers(context.Background(), "rennes", "4", []VLANMember{{Node: "a-1", Interface: "eth1"}}))
	assert.Equal(t, []string{"DELETE /sites/rennes/jobs/5", "PUT /sites/rennes/vlans/4/nodes"}, paths)
}
