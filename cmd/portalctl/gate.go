package main

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-portal/internal/models"
	"github.com/ukydev/fleet-portal/internal/session"
)

const loginPage = "login"

var (
	errRedirected = errors.New("not signed in or not permitted")
	errTimeout    = errors.New("timed out resolving session")
)

// gate runs the session resolver in front of a command.
type gate struct {
	stream  session.Stream
	cache   session.RoleCache
	store   session.RoleStore
	skip    session.SkipFlag
	grace   time.Duration
	timeout time.Duration
	logger  log.FieldLogger
}

// pass is an admitted session. The resolver keeps watching the stream until
// Close; Redirected reports whether it has since sent the user to login.
type pass struct {
	State      session.State
	resolver   *session.Resolver
	redirected chan struct{}
}

func (p *pass) Redirected() bool {
	select {
	case <-p.redirected:
		return true
	default:
		return false
	}
}

func (p *pass) Close() { p.resolver.Stop() }

// enter waits until the resolver admits a session holding one of roles, or
// redirects. An empty roles list admits any valid role.
func (g gate) enter(ctx context.Context, roles ...models.Role) (*pass, error) {
	ready := make(chan session.State, 1)
	redirected := make(chan struct{})
	var once sync.Once

	resolver := session.NewResolver(session.Options{
		Stream:        g.stream,
		Cache:         g.cache,
		Store:         g.store,
		SkipFlag:      g.skip,
		FallbackPath:  loginPage,
		RequiredRoles: roles,
		GraceDelay:    g.grace,
		Logger:        g.logger,
		Navigator: session.NavigatorFunc(func(string) {
			once.Do(func() { close(redirected) })
		}),
	})
	resolver.OnChange(func(s session.State) {
		if s.Loading || s.User == nil {
			return
		}
		select {
		case ready <- s:
		default:
		}
	})

	timeout := g.timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// The initial event is delivered during Start, which then blocks on the
	// role lookup.
	go resolver.Start(ctx)
	select {
	case s := <-ready:
		return &pass{State: s, resolver: resolver, redirected: redirected}, nil
	case <-redirected:
		resolver.Stop()
		return nil, errRedirected
	case <-waitCtx.Done():
		resolver.Stop()
		return nil, errTimeout
	}
}
