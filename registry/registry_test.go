package registry

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/lagren/uptimeguard/api"
	"github.com/lagren/uptimeguard/persistence"
	"github.com/lagren/uptimeguard/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeService simulates the monitoring service with an in-memory site
// collection. Gates let tests hold a request open to force interleavings.
type fakeService struct {
	mu     sync.Mutex
	sites  []api.Website
	nextID int
	plan   api.Subscription

	monitoringRequests int64
	listGate           chan struct{}
	checkGate          chan struct{}

	srv *httptest.Server
}

func newFakeService(t *testing.T, sub api.Subscription) *fakeService {
	t.Helper()

	f := &fakeService{nextID: 1, plan: sub}

	r := mux.NewRouter()
	r.HandleFunc("/auth/login", func(w http.ResponseWriter, req *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"api_key": "key-123"})
	})
	r.HandleFunc("/auth/profile", func(w http.ResponseWriter, req *http.Request) {
		json.NewEncoder(w).Encode(api.Profile{
			User:         api.User{ID: 1, Username: "alice"},
			Subscription: f.plan,
		})
	})
	r.HandleFunc("/monitoring/websites", func(w http.ResponseWriter, req *http.Request) {
		atomic.AddInt64(&f.monitoringRequests, 1)

		f.mu.Lock()
		gate := f.listGate
		f.mu.Unlock()
		if gate != nil {
			<-gate
		}

		f.mu.Lock()
		defer f.mu.Unlock()
		json.NewEncoder(w).Encode(f.sites)
	}).Methods(http.MethodGet)
	r.HandleFunc("/monitoring/websites", func(w http.ResponseWriter, req *http.Request) {
		atomic.AddInt64(&f.monitoringRequests, 1)

		var body struct {
			Name          string `json:"name"`
			URL           string `json:"url"`
			CheckInterval int    `json:"check_interval"`
		}
		json.NewDecoder(req.Body).Decode(&body)

		f.mu.Lock()
		defer f.mu.Unlock()

		site := api.Website{
			ID:            f.nextID,
			Name:          body.Name,
			URL:           body.URL,
			CheckInterval: body.CheckInterval,
			IsActive:      true,
			CurrentStatus: "unknown",
		}
		f.nextID++
		f.sites = append(f.sites, site)

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(site)
	}).Methods(http.MethodPost)
	r.HandleFunc("/monitoring/websites/{id}", func(w http.ResponseWriter, req *http.Request) {
		atomic.AddInt64(&f.monitoringRequests, 1)

		id, _ := strconv.Atoi(mux.Vars(req)["id"])

		f.mu.Lock()
		defer f.mu.Unlock()

		for i, site := range f.sites {
			if site.ID == id {
				f.sites = append(f.sites[:i], f.sites[i+1:]...)
				json.NewEncoder(w).Encode(map[string]string{"message": "Website deleted successfully"})
				return
			}
		}

		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "Website not found"})
	}).Methods(http.MethodDelete)
	r.HandleFunc("/monitoring/websites/{id}/check", func(w http.ResponseWriter, req *http.Request) {
		atomic.AddInt64(&f.monitoringRequests, 1)

		f.mu.Lock()
		gate := f.checkGate
		f.mu.Unlock()
		if gate != nil {
			<-gate
		}

		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodPost)

	f.srv = httptest.NewServer(r)
	t.Cleanup(f.srv.Close)

	return f
}

func (f *fakeService) monitoringRequestCount() int64 {
	return atomic.LoadInt64(&f.monitoringRequests)
}

func newTestRegistry(t *testing.T, f *fakeService) (*Registry, *session.Manager) {
	t.Helper()

	store, err := persistence.Open(filepath.Join(t.TempDir(), "credentials.db"))
	require.NoError(t, err)

	client := api.NewClient(f.srv.URL)
	sessions := session.NewManager(store, client)
	require.NoError(t, sessions.Login(context.Background(), "alice@example.com", "hunter22"))

	return New(client, sessions), sessions
}

func freeSubscription() api.Subscription {
	return api.Subscription{Plan: "free", MaxWebsites: 5, MinCheckInterval: 1800, HistoryDays: 7}
}

func TestAddRejectsUnavailableIntervalLocally(t *testing.T) {
	f := newFakeService(t, freeSubscription())
	reg, _ := newTestRegistry(t, f)

	_, err := reg.Add(context.Background(), "Site", "example.com", 60)
	require.Error(t, err)

	assert.ErrorIs(t, err, ErrPolicyViolation)
	assert.EqualValues(t, 0, f.monitoringRequestCount(), "rejected before any network call")
}

func TestAddRefreshesMirror(t *testing.T) {
	ctx := context.Background()
	f := newFakeService(t, freeSubscription())
	reg, _ := newTestRegistry(t, f)

	site, err := reg.Add(ctx, "Site", "example.com", 1800)
	require.NoError(t, err)
	assert.Equal(t, 1, site.ID)

	sites := reg.Sites()
	require.Len(t, sites, 1)
	assert.Equal(t, "Site", sites[0].Name)
}

func TestAddRequiresSession(t *testing.T) {
	f := newFakeService(t, freeSubscription())
	reg, sessions := newTestRegistry(t, f)

	sessions.Logout(context.Background())

	_, err := reg.Add(context.Background(), "Site", "example.com", 1800)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestAtCapacity(t *testing.T) {
	ctx := context.Background()
	sub := api.Subscription{Plan: "free", MaxWebsites: 1, MinCheckInterval: 1800, HistoryDays: 7}
	f := newFakeService(t, sub)
	reg, sessions := newTestRegistry(t, f)

	assert.False(t, reg.AtCapacity())

	_, err := reg.Add(ctx, "Site", "example.com", 1800)
	require.NoError(t, err)

	assert.True(t, reg.AtCapacity(), "one site fills a one-site plan")

	t.Run("still_only_annotates", func(t *testing.T) {
		// The service decides whether an over-limit add is accepted.
		_, err := reg.Add(ctx, "Second", "second.example.com", 1800)
		assert.NoError(t, err)
	})

	sessions.Logout(ctx)
	assert.False(t, reg.AtCapacity())
}

func TestDeleteProtocol(t *testing.T) {
	ctx := context.Background()
	f := newFakeService(t, freeSubscription())
	reg, _ := newTestRegistry(t, f)

	_, err := reg.Add(ctx, "Site", "example.com", 1800)
	require.NoError(t, err)

	t.Run("unknown_site_rejected", func(t *testing.T) {
		_, err := reg.RequestDelete(42)
		assert.Error(t, err)
	})

	t.Run("bogus_token_rejected", func(t *testing.T) {
		err := reg.ConfirmDelete(ctx, ConfirmationToken("made-up"))
		assert.Error(t, err)
		assert.Len(t, reg.Sites(), 1)
	})

	t.Run("cancel_invalidates_token", func(t *testing.T) {
		token, err := reg.RequestDelete(1)
		require.NoError(t, err)

		assert.True(t, reg.CancelDelete(token))
		assert.False(t, reg.CancelDelete(token))

		assert.Error(t, reg.ConfirmDelete(ctx, token))
		assert.Len(t, reg.Sites(), 1)
	})

	t.Run("confirmed_delete_goes_through", func(t *testing.T) {
		token, err := reg.RequestDelete(1)
		require.NoError(t, err)

		require.NoError(t, reg.ConfirmDelete(ctx, token))
		assert.Empty(t, reg.Sites())
	})
}

func TestCheckNowRefreshes(t *testing.T) {
	ctx := context.Background()
	f := newFakeService(t, freeSubscription())
	reg, _ := newTestRegistry(t, f)

	_, err := reg.Add(ctx, "Site", "example.com", 1800)
	require.NoError(t, err)

	// Simulate the service completing the requested check.
	f.mu.Lock()
	f.sites[0].CurrentStatus = "up"
	f.sites[0].LastChecked = time.Now().UTC().Format("2006-01-02T15:04:05")
	f.mu.Unlock()

	require.NoError(t, reg.CheckNow(ctx, 1))

	sites := reg.Sites()
	require.Len(t, sites, 1)
	assert.Equal(t, "up", sites[0].CurrentStatus)
}

func TestCheckNowDoesNotResurrectDeletedSite(t *testing.T) {
	ctx := context.Background()
	f := newFakeService(t, freeSubscription())
	reg, _ := newTestRegistry(t, f)

	_, err := reg.Add(ctx, "Site", "example.com", 1800)
	require.NoError(t, err)

	// Hold the on-demand check open while the site is deleted underneath it.
	gate := make(chan struct{})
	f.mu.Lock()
	f.checkGate = gate
	f.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		done <- reg.CheckNow(ctx, 1)
	}()

	// Give the check request time to reach the service before deleting.
	time.Sleep(50 * time.Millisecond)

	token, err := reg.RequestDelete(1)
	require.NoError(t, err)
	require.NoError(t, reg.ConfirmDelete(ctx, token))
	require.Empty(t, reg.Sites())

	close(gate)
	require.NoError(t, <-done)

	assert.Empty(t, reg.Sites(), "the check's refresh must not bring the deleted site back")
}

func TestRefreshDiscardedAcrossLogout(t *testing.T) {
	ctx := context.Background()
	f := newFakeService(t, freeSubscription())
	reg, sessions := newTestRegistry(t, f)

	_, err := reg.Add(ctx, "Site", "example.com", 1800)
	require.NoError(t, err)

	f.mu.Lock()
	f.listGate = make(chan struct{})
	gate := f.listGate
	f.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		done <- reg.Refresh(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	sessions.Logout(ctx)

	// Change the server-side collection while the response is held open, so
	// applying the stale response would be observable.
	f.mu.Lock()
	f.sites = append(f.sites, api.Website{ID: 99, Name: "Other", URL: "other.example.com"})
	f.mu.Unlock()

	close(gate)
	require.NoError(t, <-done)

	assert.Len(t, reg.Sites(), 1, "response straddling a logout must be discarded")
}
