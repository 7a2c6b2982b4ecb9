package http

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"mibarrio-backend/internal/config"
	"mibarrio-backend/internal/domain"
	"mibarrio-backend/internal/identity"
	"mibarrio-backend/internal/logger"
)

type ctxKey string

const principalKey ctxKey = "principal"

// Principal is the signed-in caller of a request
type Principal struct {
	UID   string
	Email string
	Role  domain.Role
}

func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == domain.RoleAdmin
}

func principalFrom(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey).(*Principal)
	return p
}

// authorize enforces the endpoint security table. The role always comes from the session
// registry, never from the request.
func (s *Server) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		level := config.GetSecurityLevel(r.Method, route)
		if level == config.SecurityPublic {
			next.ServeHTTP(w, r)
			return
		}

		principal, err := s.authenticate(r.Context(), bearerToken(r))
		if err != nil {
			WriteError(w, http.StatusUnauthorized, "Debés iniciar sesión.")
			return
		}
		if level == config.SecurityAdmin && !principal.IsAdmin() {
			logger.Warn("Admin route refused", "uid", principal.UID, "route", route)
			WriteError(w, http.StatusForbidden, "Solo un administrador puede realizar esta acción.")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalKey, principal)))
	})
}

// authenticate verifies an ID token and resolves the account's role through the session registry
func (s *Server) authenticate(ctx context.Context, token string) (*Principal, error) {
	if token == "" {
		return nil, identity.ErrInvalidToken
	}
	verified, err := s.deps.Identity.VerifyIDToken(ctx, token)
	if err != nil {
		return nil, err
	}
	view, err := s.deps.Sessions.Resolve(ctx, verified.UID, verified.Email)
	if err != nil {
		logger.Error("Failed to resolve session", "uid", verified.UID, "error", err)
		return nil, err
	}
	email := view.Email
	if email == "" {
		email = verified.Email
	}
	return &Principal{UID: verified.UID, Email: email, Role: view.Role}, nil
}

func bearerToken(r *http.Request) string {
	token := r.Header.Get("Authorization")
	if len(token) > 7 && strings.ToUpper(token[0:7]) == "BEARER " {
		return strings.TrimSpace(token[7:])
	}
	return ""
}

// ipRateLimiter is a token bucket per client IP for the unauthenticated write routes
type ipRateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   rate.Limit
	burst   int
	ttl     time.Duration
	ticker  *time.Ticker
	quit    chan struct{}
	once    sync.Once
	trusted []*net.IPNet
}

type bucket struct {
	lim *rate.Limiter
	ts  time.Time
}

func newIPRateLimiter(perSecond, burst int, trusted []*net.IPNet) *ipRateLimiter {
	if perSecond <= 0 {
		perSecond = 1
	}
	if burst <= 0 {
		burst = 5
	}
	l := &ipRateLimiter{
		buckets: make(map[string]*bucket),
		limit:   rate.Limit(perSecond),
		burst:   burst,
		ttl:     5 * time.Minute,
		ticker:  time.NewTicker(time.Minute),
		quit:    make(chan struct{}),
		trusted: trusted,
	}
	go l.sweep()
	return l
}

func (l *ipRateLimiter) sweep() {
	for {
		select {
		case now := <-l.ticker.C:
			l.mu.Lock()
			for k, b := range l.buckets {
				if now.Sub(b.ts) > l.ttl {
					delete(l.buckets, k)
				}
			}
			l.mu.Unlock()
		case <-l.quit:
			return
		}
	}
}

func (l *ipRateLimiter) stop() {
	l.once.Do(func() {
		l.ticker.Stop()
		close(l.quit)
	})
}

func (l *ipRateLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[ip]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[ip] = b
	}
	b.ts = time.Now()
	return b.lim.Allow()
}

func (l *ipRateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r, l.trusted)
		if ip == "" {
			ip = "unknown"
		}
		if !l.allow(ip) {
			logger.Warn("Rate limit exceeded", "ip", ip, "path", r.URL.Path)
			WriteError(w, http.StatusTooManyRequests, "Demasiadas solicitudes. Probá de nuevo en unos minutos.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// parseTrustedProxies turns IPs and CIDRs into networks; invalid entries are skipped
func parseTrustedProxies(entries []string) []*net.IPNet {
	var nets []*net.IPNet
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if !strings.Contains(entry, "/") {
			ip := net.ParseIP(entry)
			if ip == nil {
				logger.Warn("Ignoring invalid trusted proxy", "proxy", entry)
				continue
			}
			bits := 128
			if ip.To4() != nil {
				ip, bits = ip.To4(), 32
			}
			nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, n, err := net.ParseCIDR(entry)
		if err != nil {
			logger.Warn("Ignoring invalid trusted proxy", "proxy", entry)
			continue
		}
		nets = append(nets, n)
	}
	return nets
}

func isTrusted(ip net.IP, trusted []*net.IPNet) bool {
	if ip == nil {
		return false
	}
	for _, n := range trusted {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// clientIP is the peer address, unless the peer is a trusted proxy. Then X-Forwarded-For is
// walked from the right and the first hop that is not a trusted proxy wins.
func clientIP(r *http.Request, trusted []*net.IPNet) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if !isTrusted(net.ParseIP(host), trusted) {
		return host
	}
	hops := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		if ip := net.ParseIP(hop); ip == nil || !isTrusted(ip, trusted) {
			return hop
		}
	}
	return host
}
