// Package session resolves the signed-in principal's role and gates access
// to role-restricted pages. It is a client-side convenience: every privileged
// operation is checked again by the server.
package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-portal/internal/models"
)

// DefaultGraceDelay is how long an unauthenticated session must persist
// before the resolver redirects.
const DefaultGraceDelay = 1000 * time.Millisecond

// RoleStore looks up the role document of a user. Any error is treated as
// an absent document.
type RoleStore interface {
	GetRole(ctx context.Context, uid string) (models.Role, error)
}

// SkipFlag suppresses the unauthenticated redirect while set.
type SkipFlag interface {
	IsSet() bool
}

// Navigator performs the redirect side effect.
type Navigator interface {
	Redirect(path string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(path string)

func (f NavigatorFunc) Redirect(path string) { f(path) }

// ReauthFlag marks an in-progress re-authentication, during which a
// transient sign-out must not redirect.
type ReauthFlag struct {
	set atomic.Bool
}

func (f *ReauthFlag) BeginReauth() { f.set.Store(true) }
func (f *ReauthFlag) EndReauth()   { f.set.Store(false) }
func (f *ReauthFlag) IsSet() bool  { return f != nil && f.set.Load() }

// State is what the resolver exposes to its consumer.
type State struct {
	User    *Session
	Role    models.Role
	Loading bool
}

// Options configures a Resolver.
type Options struct {
	Stream        Stream
	Cache         RoleCache
	Store         RoleStore
	SkipFlag      SkipFlag
	Navigator     Navigator
	FallbackPath  string
	RequiredRoles []models.Role
	GraceDelay    time.Duration
	Logger        log.FieldLogger
}

// Resolver turns session events into a State and redirects to the fallback
// path when the principal is missing or lacks a required role.
type Resolver struct {
	opts Options

	// navMu is held while the navigator runs so Stop can wait it out.
	navMu sync.Mutex

	mu        sync.Mutex
	ctx       context.Context
	state     State
	current   *Session
	gen       uint64
	sub       Subscription
	timer     *time.Timer
	stopped   bool
	listeners []func(State)
}

// NewResolver builds a resolver in its initial loading state.
func NewResolver(opts Options) *Resolver {
	if opts.Cache == nil {
		opts.Cache = NewMemoryCache(DefaultRoleTTL, nil)
	}
	if opts.GraceDelay <= 0 {
		opts.GraceDelay = DefaultGraceDelay
	}
	if opts.FallbackPath == "" {
		opts.FallbackPath = "/login"
	}
	if opts.Logger == nil {
		opts.Logger = log.StandardLogger()
	}
	if opts.Navigator == nil {
		opts.Navigator = NavigatorFunc(func(string) {})
	}
	return &Resolver{opts: opts, state: State{Loading: true}}
}

// OnChange registers fn to observe every state transition.
func (r *Resolver) OnChange(fn func(State)) {
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

// Start subscribes to the session stream. Store queries run under ctx.
func (r *Resolver) Start(ctx context.Context) {
	r.mu.Lock()
	if r.sub != nil || r.stopped {
		r.mu.Unlock()
		return
	}
	r.ctx = ctx
	r.mu.Unlock()

	sub := r.opts.Stream.Subscribe(r.handle)

	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		sub.Cancel()
		return
	}
	r.sub = sub
	r.mu.Unlock()
}

// Stop cancels the subscription and any pending redirect. No navigation is
// started once Stop has returned; a redirect already in progress on another
// goroutine completes first. The Navigator must not call Stop.
func (r *Resolver) Stop() {
	r.mu.Lock()
	r.stopped = true
	sub := r.sub
	r.sub = nil
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.mu.Unlock()

	if sub != nil {
		sub.Cancel()
	}
	r.navMu.Lock()
	r.navMu.Unlock()
}

// State returns a snapshot of the current state.
func (r *Resolver) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// RefreshProfile drops the cached role so the next event queries the store.
func (r *Resolver) RefreshProfile() {
	r.opts.Cache.Invalidate()
}

func (r *Resolver) handle(ev Event) {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.gen++
	gen := r.gen
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	ctx := r.ctx
	if ctx == nil {
		ctx = context.Background()
	}

	if !ev.Authenticated() {
		r.current = nil
		r.opts.Cache.Invalidate()
		r.state = State{Loading: false}
		if r.opts.SkipFlag != nil && r.opts.SkipFlag.IsSet() {
			r.opts.Logger.Debug("Signed out during re-authentication; redirect suppressed")
			r.unlockAndNotify()
			return
		}
		r.timer = time.AfterFunc(r.opts.GraceDelay, func() { r.graceExpired(gen) })
		r.unlockAndNotify()
		return
	}

	sess := *ev.Session
	r.current = &sess
	r.mu.Unlock()

	role, ok := r.opts.Cache.Get(sess.UID)
	if !ok {
		r.mu.Lock()
		if r.gen == gen && !r.state.Loading {
			r.state = State{Loading: true}
			r.unlockAndNotify()
		} else {
			r.mu.Unlock()
		}

		var err error
		role, err = r.opts.Store.GetRole(ctx, sess.UID)
		if err != nil || role == "" {
			r.opts.Logger.WithFields(log.Fields{"uid": sess.UID}).WithError(err).Info("Role document unavailable")
			r.deny(gen)
			return
		}
		r.opts.Cache.Put(sess.UID, role)
	}

	if !models.HasAnyRole(role, r.opts.RequiredRoles...) {
		r.opts.Logger.WithFields(log.Fields{
			"uid":      sess.UID,
			"role":     role,
			"required": r.opts.RequiredRoles,
		}).Info("Role not permitted")
		r.deny(gen)
		return
	}

	r.mu.Lock()
	if r.stopped || r.gen != gen {
		r.mu.Unlock()
		return
	}
	r.state = State{User: &sess, Role: role, Loading: false}
	r.unlockAndNotify()
}

// deny invalidates the cache and redirects, unless a newer event has
// superseded generation gen.
func (r *Resolver) deny(gen uint64) {
	r.mu.Lock()
	if r.stopped || r.gen != gen {
		r.mu.Unlock()
		return
	}
	r.opts.Cache.Invalidate()
	r.state = State{Loading: false}
	r.unlockAndNotify()
	r.redirect(gen, false)
}

func (r *Resolver) graceExpired(gen uint64) {
	r.mu.Lock()
	if r.gen == gen {
		r.timer = nil
	}
	r.mu.Unlock()
	r.redirect(gen, true)
}

// redirect navigates to the fallback path if the resolver is still running
// and generation gen is current. Listeners run before it and may have called
// Stop, so the check happens here under navMu.
func (r *Resolver) redirect(gen uint64, requireSignedOut bool) {
	r.navMu.Lock()
	defer r.navMu.Unlock()

	r.mu.Lock()
	ok := !r.stopped && r.gen == gen && (!requireSignedOut || r.current == nil)
	r.mu.Unlock()
	if !ok {
		return
	}
	r.opts.Logger.WithField("path", r.opts.FallbackPath).Debug("Redirecting")
	r.opts.Navigator.Redirect(r.opts.FallbackPath)
}

// unlockAndNotify releases r.mu and delivers the current state to listeners.
func (r *Resolver) unlockAndNotify() {
	s := r.state
	listeners := append([]func(State){}, r.listeners...)
	r.mu.Unlock()
	for _, fn := range listeners {
		fn(s)
	}
}
