package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/lagren/uptimeguard/api"
	"github.com/lagren/uptimeguard/plan"
	"github.com/lagren/uptimeguard/session"
	"github.com/sirupsen/logrus"
)

// ErrPolicyViolation marks a request rejected by a local entitlement
// pre-check, before any network call. The check is advisory; the service
// re-validates everything it accepts.
var ErrPolicyViolation = errors.New("not permitted by current plan")

// ErrNotAuthenticated marks an operation attempted without a session.
var ErrNotAuthenticated = errors.New("not logged in")

// ConfirmationToken is the opaque handle of a pending deletion. A site is
// only ever deleted by presenting its token back, so no deletion can happen
// without an affirmative confirmation step.
type ConfirmationToken string

// Registry mirrors the user's monitored sites. The mirror is never the
// source of truth: every mutation refetches the full collection and replaces
// local state atomically.
type Registry struct {
	client   *api.Client
	sessions *session.Manager

	mu      sync.Mutex
	sites   []api.Website
	pending map[ConfirmationToken]int // token -> site id
}

func New(client *api.Client, sessions *session.Manager) *Registry {
	return &Registry{
		client:   client,
		sessions: sessions,
		pending:  map[ConfirmationToken]int{},
	}
}

// Sites returns a copy of the mirror.
func (r *Registry) Sites() []api.Website {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]api.Website, len(r.sites))
	copy(out, r.sites)
	return out
}

// Refresh fetches the full collection and replaces the mirror. A response
// that straddled a session transition (e.g. a logout while the request was in
// flight) is discarded rather than applied to a stale session.
func (r *Registry) Refresh(ctx context.Context) error {
	epoch := r.sessions.Epoch()

	sites, err := r.client.Websites(ctx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sessions.Epoch() != epoch {
		logrus.Debug("Discarding website list fetched across a session transition")
		return nil
	}

	r.sites = sites
	return nil
}

// Add registers a site. The interval must be selectable under the current
// subscription; that check runs before any network call. Capacity is only
// annotated, the service decides whether the site fits the plan.
func (r *Registry) Add(ctx context.Context, name, url string, checkInterval int) (*api.Website, error) {
	sess, ok := r.sessions.Current()
	if !ok {
		return nil, ErrNotAuthenticated
	}

	if !plan.IntervalAvailable(sess.Subscription, checkInterval) {
		return nil, fmt.Errorf("%w: check interval %ds requires a higher plan", ErrPolicyViolation, checkInterval)
	}

	if r.AtCapacity() {
		logrus.Warnf("At the %s plan's website limit (%d), the service may reject this site",
			sess.Subscription.Plan, sess.Subscription.MaxWebsites)
	}

	site, err := r.client.AddWebsite(ctx, name, url, checkInterval)
	if err != nil {
		return nil, err
	}

	if err := r.Refresh(ctx); err != nil {
		logrus.Warnf("Could not refresh websites after add: %s", err)
	}

	return site, nil
}

// AtCapacity reports whether the mirror has reached the subscription's
// website limit, so callers can annotate the add flow. Advisory only: Add is
// never blocked by it and the service stays authoritative.
func (r *Registry) AtCapacity() bool {
	sess, ok := r.sessions.Current()
	if !ok {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sites) >= sess.Subscription.MaxWebsites
}

// RequestDelete starts the two-step deletion of a site and returns the token
// that ConfirmDelete must be given. The site must exist in the mirror.
func (r *Registry) RequestDelete(id int) (ConfirmationToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	found := false
	for _, site := range r.sites {
		if site.ID == id {
			found = true
			break
		}
	}
	if !found {
		return "", fmt.Errorf("unknown website id %d", id)
	}

	token := ConfirmationToken(uuid.NewString())
	r.pending[token] = id
	return token, nil
}

// ConfirmDelete completes a pending deletion. The token is consumed whether
// or not the remote call succeeds; a retry starts over at RequestDelete.
func (r *Registry) ConfirmDelete(ctx context.Context, token ConfirmationToken) error {
	r.mu.Lock()
	id, ok := r.pending[token]
	delete(r.pending, token)
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("no pending deletion for this token")
	}

	if err := r.client.DeleteWebsite(ctx, id); err != nil {
		return err
	}

	if err := r.Refresh(ctx); err != nil {
		logrus.Warnf("Could not refresh websites after delete: %s", err)
	}

	return nil
}

// CancelDelete abandons a pending deletion. Reports whether the token was
// pending.
func (r *Registry) CancelDelete(token ConfirmationToken) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.pending[token]
	delete(r.pending, token)
	return ok
}

// CheckNow requests an on-demand check and refreshes the mirror so status and
// last-checked reflect the service's latest state. The service's own
// background checks may race with this; whichever state the final fetch
// returns wins.
func (r *Registry) CheckNow(ctx context.Context, id int) error {
	if err := r.client.CheckWebsite(ctx, id); err != nil {
		return err
	}

	return r.Refresh(ctx)
}
