// Package control implements the control-service callbacks: the
// outbound side of the "act" message and lifecycle notifications
// (starting, stopped, reset, per-ugen action events), plus a small HTTP+WS
// surface that lets a control-thread peer subscribe to them and inspect
// the graph. Grounded on server/internal/ws/handler.go
// (echo + gorilla/websocket session loop, one goroutine draining a
// per-session send channel) and server/internal/httpapi/server.go (Echo
// app wiring, slog request logging, /health convention), generalized
// from "one shared room" to "broadcast to every subscribed control
// session" since Arco's control service has no per-user state, only
// events.
package control

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/rbdannenberg/arco-sub000/internal/notify"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	writeTimeout = 5 * time.Second
	sendBuffer   = 64
)

// Event is one outbound notification, the wire shape of notify.Action and
// the plain lifecycle events: "starting", "stopped",
// "reset", and per-ugen "act" events.
type Event struct {
	Addr string `json:"addr"`
	Args any    `json:"args,omitempty"`
}

// TreeProvider is implemented by the engine so the /prtree debug endpoint
// can render the ugen table without this package importing internal/graph
// and creating an import cycle back into the audio thread's packages.
type TreeProvider interface {
	PrintTree() []string
}

// Service is the audio engine's outbound control surface: it fans every
// Notify call out to all currently-connected control sessions and hosts
// the HTTP/WS routes a control client attaches to. It satisfies
// notify.Notifier.
type Service struct {
	echo *echo.Echo
	tree TreeProvider

	upgrader websocket.Upgrader

	register   chan chan Event
	unregister chan chan Event
	events     chan Event
}

var _ notify.Notifier = (*Service)(nil)

// New constructs a control Service. tree may be nil if no /prtree
// introspection is wired up yet (cmd/arcod always wires one).
func New(tree TreeProvider) *Service {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Service{
		echo: e,
		tree: tree,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
		register:   make(chan chan Event),
		unregister: make(chan chan Event),
		events:     make(chan Event, 256),
	}
	s.registerRoutes()
	return s
}

// Echo exposes the underlying Echo instance, for tests and for cmd/arcod
// to attach it to an http.Server.
func (s *Service) Echo() *echo.Echo {
	return s.echo
}

func (s *Service) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/arco/events", s.handleEvents)
	s.echo.GET("/arco/prtree", s.handlePrintTree)
}

func (s *Service) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Service) handlePrintTree(c echo.Context) error {
	if s.tree == nil {
		return c.JSON(http.StatusOK, []string{})
	}
	return c.JSON(http.StatusOK, s.tree.PrintTree())
}

// handleEvents upgrades to a websocket and streams every Event broadcast
// via Notify until the peer disconnects, mirroring serveConn's
// "goroutine drains a per-session send channel" shape in ws/handler.go.
func (s *Service) handleEvents(c echo.Context) error {
	remote := c.RealIP()
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error("control: ws upgrade failed", "remote", remote, "err", err)
		return err
	}
	defer conn.Close()

	ch := make(chan Event, sendBuffer)
	s.register <- ch
	defer func() { s.unregister <- ch }()

	slog.Info("control: session connected", "remote", remote)
	for ev := range ch {
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(ev); err != nil {
			slog.Debug("control: write error", "remote", remote, "err", err)
			return nil
		}
	}
	return nil
}

// Notify implements notify.Notifier: it queues ev for fan-out to every
// connected session. Never blocks the audio thread; a full queue drops
// the event and logs once, since nothing may unwind back through the
// audio callback.
func (s *Service) Notify(addr string, args any) {
	select {
	case s.events <- Event{Addr: addr, Args: args}:
	default:
		slog.Warn("control: event queue full, dropping", "addr", addr)
	}
}

// Run drives the fan-out hub: registering/unregistering sessions and
// broadcasting queued events to all of them. It must run in its own
// goroutine for the lifetime of the service (started by cmd/arcod).
func (s *Service) Run(ctx context.Context) {
	sessions := make(map[chan Event]struct{})
	for {
		select {
		case <-ctx.Done():
			for ch := range sessions {
				close(ch)
			}
			return
		case ch := <-s.register:
			sessions[ch] = struct{}{}
		case ch := <-s.unregister:
			if _, ok := sessions[ch]; ok {
				delete(sessions, ch)
				close(ch)
			}
		case ev := <-s.events:
			for ch := range sessions {
				select {
				case ch <- ev:
				default:
					slog.Debug("control: session backpressure, dropping event", "addr", ev.Addr)
				}
			}
		}
	}
}
