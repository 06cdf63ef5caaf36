package portal

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/coder/websocket"

	"projectbank/cmd/internal/auth/backend"
	"projectbank/cmd/internal/authstate"
	authv1 "projectbank/shared/contracts/auth/v1"
)

const (
	statusSubprotocol = "projectbank.auth.v1"

	statusMaxPingFailures = 3
	statusCloseGrace      = time.Second
)

// handleStatusStream pushes the visitor's auth status over a websocket until
// the peer leaves. The loading placeholder uses it to reload once the
// session has settled.
func (s *Server) handleStatusStream(w http.ResponseWriter, r *http.Request) {
	v := s.readVisitor(w, r)

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{statusSubprotocol},
		OriginPatterns: deriveOriginPatterns(s.cfg.AllowedOrigins),
	})
	if err != nil {
		s.log.Info("portal.ws.accept.fail", "err", err, "origin", r.Header.Get("Origin"))
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") }()

	if sp := conn.Subprotocol(); sp != statusSubprotocol {
		s.log.Info("portal.ws.reject.subprotocol", "got", sp, "want", statusSubprotocol)
		_ = conn.Close(websocket.StatusProtocolError, "subprotocol required")
		return
	}

	if s.metrics != nil {
		s.metrics.StatusStreamsActive.Inc()
		defer s.metrics.StatusStreamsActive.Dec()
	}

	// The stream is server to client only; CloseRead handles control frames
	// and cancels ctx when the peer goes away.
	ctx := conn.CloseRead(r.Context())

	updates, cancel := v.Provider.Subscribe()
	defer cancel()

	if err := s.writeFrame(ctx, conn, statusFrame(v.Provider.Session(), time.Now().UTC())); err != nil {
		s.log.Info("portal.ws.write.fail", "visitor", v.ID, "err", err)
		return
	}

	heartbeat := time.NewTicker(s.cfg.WSHeartbeat)
	defer heartbeat.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case sess, ok := <-updates:
			if !ok {
				return
			}
			if err := s.writeFrame(ctx, conn, statusFrame(sess, time.Now().UTC())); err != nil {
				s.log.Info("portal.ws.write.fail", "visitor", v.ID, "close_status", websocket.CloseStatus(err), "err", err)
				return
			}
		case <-heartbeat.C:
			pingCtx, pingCancel := context.WithTimeout(ctx, s.cfg.WSWriteTimeout)
			err := conn.Ping(pingCtx)
			pingCancel()
			if err != nil {
				failures++
				s.log.Info("portal.ws.ping.fail", "visitor", v.ID, "failures", failures, "err", err)
				if failures >= statusMaxPingFailures {
					_ = conn.Close(websocket.StatusGoingAway, "heartbeat failed")
					return
				}
				continue
			}
			failures = 0
		}
	}
}

func statusFrame(sess authstate.Session, now time.Time) authv1.StatusFrame {
	f := authv1.StatusFrame{
		V:      authv1.Version,
		Type:   authv1.TypeStatus,
		TS:     now,
		Status: sess.Status().String(),
	}
	if id, ok := sess.Identity(); ok {
		u := backend.ToUser(id)
		f.User = &u
	}
	return f
}

func (s *Server) writeFrame(parent context.Context, conn *websocket.Conn, f authv1.StatusFrame) error {
	if err := f.Validate(); err != nil {
		return err
	}
	b, err := json.Marshal(f)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(parent, s.cfg.WSWriteTimeout)
	defer cancel()

	err = conn.Write(ctx, websocket.MessageText, b)
	if errors.Is(err, context.Canceled) && parent.Err() != nil {
		return parent.Err()
	}
	return err
}

// originHostOnly reduces an origin or host[:port] to its lower-cased host.
func originHostOnly(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil {
			return ""
		}
		h := strings.TrimSpace(u.Host)
		if h == "" {
			return ""
		}
		if host, _, err := net.SplitHostPort(h); err == nil {
			return strings.ToLower(host)
		}
		return strings.ToLower(h)
	}

	if host, _, err := net.SplitHostPort(s); err == nil {
		return strings.ToLower(host)
	}
	return strings.ToLower(s)
}

// deriveOriginPatterns turns allowed origins into websocket.Accept host
// patterns. Same-host requests are always accepted by Accept itself.
func deriveOriginPatterns(allowed []string) []string {
	seen := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		h := originHostOnly(a)
		if h == "" || h == "*" {
			continue
		}
		seen[h] = struct{}{}
	}

	out := make([]string, 0, len(seen))
	for h := range seen {
		out = append(out, h)
	}
	slices.Sort(out)
	return out
}
