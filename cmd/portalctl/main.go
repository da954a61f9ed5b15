// Command portalctl is a terminal client for the fleet portal.
//
// Usage:
//
//	portalctl [-server URL] [-state DIR] <command> [flags]
//
// Commands: login, logout, passwd, whoami, todo, bookings, vehicles,
// create-user.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-portal/internal/client"
	"github.com/ukydev/fleet-portal/internal/session"
)

const usage = `usage: portalctl [-server URL] [-state DIR] [-v] <command> [flags]

commands:
  login        sign in
  logout       sign out and forget the stored session
  passwd       change your password
  whoami       show the signed-in account and role
  todo         list bookings with an inspection to submit (Staff)
  bookings     list bookings (Staff: your own; Receptionist/Admin: all)
  vehicles     list the vehicle roster
  create-user  create an account with a role (Admin)
`

func main() {
	server := flag.String("server", envOr("PORTAL_URL", "http://localhost:8080"), "portal API base URL")
	stateDir := flag.String("state", defaultStateDir(), "directory holding the session and role cache")
	verbose := flag.Bool("v", false, "verbose logging")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	log.SetOutput(os.Stderr)
	log.SetLevel(log.WarnLevel)
	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a := newApp(*server, *stateDir, os.Stdin, os.Stdout)
	err := a.run(ctx, flag.Arg(0), flag.Args()[1:])
	switch {
	case err == nil:
	case errors.Is(err, errRedirected):
		fmt.Fprintln(os.Stderr, "Not signed in or not permitted; run: portalctl login")
		os.Exit(1)
	case errors.Is(err, errUnknownCommand):
		fmt.Fprintln(os.Stderr, err)
		flag.Usage()
		os.Exit(2)
	default:
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// app holds the client-side session machinery shared by the commands.
type app struct {
	api    *client.Client
	tokens *client.TokenStore
	cache  *session.FileCache
	reauth *session.ReauthFlag
	gate   gate
	in     *bufio.Reader
	out    io.Writer
}

func newApp(server, stateDir string, in io.Reader, out io.Writer) *app {
	tokens := client.NewTokenStore(filepath.Join(stateDir, "session.json"))
	cache := session.NewFileCache(filepath.Join(stateDir, "role-cache.json"), session.DefaultRoleTTL, nil)
	api := client.New(server, tokens)
	reauth := &session.ReauthFlag{}
	return &app{
		api:    api,
		tokens: tokens,
		cache:  cache,
		reauth: reauth,
		gate: gate{
			stream: tokens,
			cache:  cache,
			store:  api,
			skip:   reauth,
			grace:  session.DefaultGraceDelay,
			logger: log.StandardLogger(),
		},
		in:  bufio.NewReader(in),
		out: out,
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func defaultStateDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "fleet-portal")
	}
	return ".fleet-portal"
}
