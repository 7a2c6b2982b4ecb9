package http

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"mibarrio-backend/internal/logger"
	"mibarrio-backend/internal/session"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPingPeriod = 30 * time.Second
)

// checkOrigin admits browser connections from the configured CORS origins, or same-host
// connections when none are configured. Clients that send no Origin are not browsers.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if len(s.deps.CorsOrigins) == 0 {
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
	for _, allowed := range s.deps.CorsOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	logger.Warn("Websocket origin rejected", "origin", origin)
	return false
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r.Context())
	view, ok := s.deps.Sessions.Current(r.Context(), p.UID)
	if !ok {
		WriteError(w, http.StatusUnauthorized, "Debés iniciar sesión.")
		return
	}
	WriteJSON(w, http.StatusOK, view)
}

// signIn forces a fresh role resolution for the caller
func (s *Server) signIn(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r.Context())
	view, err := s.deps.Sessions.SignIn(r.Context(), p.UID, p.Email)
	if err != nil {
		logger.Error("Failed to sign in session", "uid", p.UID, "error", err)
		WriteError(w, http.StatusServiceUnavailable, "No se pudo iniciar la sesión.")
		return
	}
	WriteJSON(w, http.StatusOK, view)
}

func (s *Server) signOut(w http.ResponseWriter, r *http.Request) {
	s.deps.Sessions.SignedOut(principalFrom(r.Context()).UID)
	WriteOK(w, "Sesión cerrada.")
}

// sessionStream pushes every view of the caller's session over a websocket. Browsers cannot
// set headers on websocket requests, so the ID token travels as the "token" query parameter.
func (s *Server) sessionStream(w http.ResponseWriter, r *http.Request) {
	p, err := s.authenticate(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		WriteError(w, http.StatusUnauthorized, "Debés iniciar sesión.")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sub := s.deps.Sessions.Subscribe(p.UID)
	defer sub.Cancel()

	// the reader only exists to notice the client going away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if current, ok := s.deps.Sessions.Current(r.Context(), p.UID); ok {
		if err := writeView(conn, current); err != nil {
			return
		}
	}

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()
	for {
		select {
		case view, ok := <-sub.C:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(wsWriteWait))
				return
			}
			if err := writeView(conn, view); err != nil {
				return
			}
			if !view.SignedIn && !view.Loading {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}

func writeView(conn *websocket.Conn, view session.View) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(view)
}
