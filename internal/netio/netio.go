// Package netio is the audio process's receiving end of the control-
// message transport collaborator and the datagram path used by the
// netstream ugen. Grounded on server/client.go's session handling:
// webtransport-go sessions over quic-go, a control stream carrying
// newline-delimited JSON, and a datagram path for latency-sensitive
// payloads.
package netio

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/rbdannenberg/arco-sub000/internal/inbox"

	"github.com/google/uuid"
	"github.com/quic-go/webtransport-go"
)

// Server accepts WebTransport sessions from control-thread peers and
// feeds their control streams into a shared inbox, exactly the way
// server/client.go's handleClient loop reads ControlMsg lines -- except
// here every session's decoded inbox.Msg values land in the one audio-
// thread inbox, since Arco has a single shared graph rather than per-
// room state.
type Server struct {
	wt    webtransport.Server
	inbox *inbox.Inbox

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewServer constructs a netio Server bound to addr (e.g. ":4443"), using
// cert for TLS (WebTransport requires HTTP/3). Every accepted session's
// control stream is drained into ib.
func NewServer(addr string, cert tls.Certificate, ib *inbox.Inbox) *Server {
	mux := http.NewServeMux()
	s := &Server{
		inbox:    ib,
		sessions: make(map[string]*Session),
	}
	s.wt = webtransport.Server{
		H3: http3Server(addr, cert, mux),
	}
	mux.HandleFunc("/arco/control", s.handleSession)
	return s
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.wt.Upgrade(w, r)
	if err != nil {
		slog.Error("netio: upgrade failed", "remote", r.RemoteAddr, "err", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	id := uuid.NewString()
	slog.Info("netio: session accepted", "id", id, "remote", r.RemoteAddr)
	sn := newSession(id, sess, s.inbox)
	s.mu.Lock()
	s.sessions[id] = sn
	s.mu.Unlock()
	go func() {
		sn.serve(r.Context())
		s.mu.Lock()
		delete(s.sessions, id)
		s.mu.Unlock()
	}()
}

// Session returns the accepted session with the given ID, or nil if none
// is currently connected. Backs ugens.SessionLookup so netsend/netrecv
// message handlers can resolve a session by the string ID a control
// client already has from its own session handshake.
func (s *Server) Session(id string) *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[id]
}

// ListenAndServe runs the HTTP/3 listener until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.wt.ListenAndServe() }()
	select {
	case <-ctx.Done():
		_ = s.wt.Close()
		return nil
	case err := <-errCh:
		return err
	}
}

// Session is one accepted control-thread peer: a control stream (ordered
// JSON inbox.Msg lines) and, optionally, a datagram path used by the
// netstream ugen pair.
type Session struct {
	ID      string
	wt      *webtransport.Session
	inbox   *inbox.Inbox
	breaker sendHealth
	cache   dgramCache
}

func newSession(id string, wt *webtransport.Session, ib *inbox.Inbox) *Session {
	return &Session{ID: id, wt: wt, inbox: ib}
}

// serve reads the session's control stream until it closes or ctx ends,
// pushing each decoded line onto the shared inbox. This mirrors
// handleClient's control-stream read loop, minus the per-room broadcast
// logic that has no Arco analogue.
func (sn *Session) serve(ctx context.Context) {
	stream, err := sn.wt.AcceptStream(ctx)
	if err != nil {
		slog.Debug("netio: accept control stream failed", "id", sn.ID, "err", err)
		return
	}
	defer stream.Close()

	scanner := bufio.NewScanner(stream)
	scanner.Buffer(make([]byte, 4096), 1<<20)
	for scanner.Scan() {
		var m inbox.Msg
		if err := json.Unmarshal(scanner.Bytes(), &m); err != nil {
			slog.Warn("netio: malformed control message", "id", sn.ID, "err", err)
			continue
		}
		if !sn.inbox.Push(m) {
			slog.Warn("netio: inbox full, dropping message", "id", sn.ID, "addr", m.Addr)
		}
	}
	slog.Info("netio: session closed", "id", sn.ID)
}

// SendDatagram sends a raw datagram to this session, applying the
// circuit breaker so a stalled peer doesn't waste effort every block.
func (sn *Session) SendDatagram(data []byte) error {
	if sn.breaker.shouldSkip() {
		return fmt.Errorf("netio: session %s circuit open", sn.ID)
	}
	if err := sn.wt.SendDatagram(data); err != nil {
		sn.breaker.recordFailure()
		return err
	}
	sn.breaker.recordSuccess()
	sn.cache.store(data)
	return nil
}

// ReceiveDatagram blocks for the next datagram from this session.
func (sn *Session) ReceiveDatagram(ctx context.Context) ([]byte, error) {
	return sn.wt.ReceiveDatagram(ctx)
}

// Resend looks up a previously sent datagram by its 2-byte big-endian
// sequence number prefix, for NACK-based recovery.
func (sn *Session) Resend(seq uint16) []byte {
	return sn.cache.get(seq)
}
