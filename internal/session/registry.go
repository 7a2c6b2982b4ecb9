// Package session tracks who is signed in and with which role.
//
// A Registry is fed session-change events. Each event publishes a loading view, resolves the
// account's role from its profile and publishes exactly one terminal view. Resolutions run
// concurrently and may finish out of order; a terminal view for a superseded event is flagged
// stale and never replaces the current view.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"mibarrio-backend/internal/domain"
	"mibarrio-backend/internal/logger"
	"mibarrio-backend/internal/metrics"
	"mibarrio-backend/internal/repository"
)

type Event string

const (
	EventSignedIn       Event = "signed-in"
	EventSignedOut      Event = "signed-out"
	EventTokenRefreshed Event = "token-refreshed"
)

// queued loading views beyond this many are coalesced; terminal views are always delivered
const subscriberBacklog = 16

var ErrStopped = errors.New("session registry stopped")

// View is the combined identity and role state published for one account
type View struct {
	UID      string      `json:"uid"`
	Email    string      `json:"email,omitempty"`
	Role     domain.Role `json:"role,omitempty"`
	SignedIn bool        `json:"signedIn"`
	Loading  bool        `json:"loading"`
	Stale    bool        `json:"stale,omitempty"`
	Event    Event       `json:"event"`
	Seq      uint64      `json:"seq"`
}

// ProfileReader is the part of the user repository the registry needs
type ProfileReader interface {
	GetByID(ctx context.Context, uid string) (*domain.User, error)
}

type change struct {
	uid   string
	email string
	event Event
}

type resolution struct {
	uid   string
	seq   uint64
	event Event
	role  domain.Role
}

type lookup struct {
	uid   string
	reply chan lookupResult
}

type lookupResult struct {
	view View
	ok   bool
}

type entry struct {
	view     View
	seq      uint64
	inflight int
}

// Subscription receives the views published for one uid until cancelled. Every terminal view
// is delivered in order; a slow reader may miss intermediate loading views.
type Subscription struct {
	C   <-chan View
	out chan View
	uid string
	reg *Registry

	mu       sync.Mutex
	queue    []View
	finished bool
	wake     chan struct{}
	quit     chan struct{}
}

func newSubscription(uid string, reg *Registry) *Subscription {
	out := make(chan View)
	return &Subscription{
		C:    out,
		out:  out,
		uid:  uid,
		reg:  reg,
		wake: make(chan struct{}, 1),
		quit: make(chan struct{}),
	}
}

func (s *Subscription) Cancel() {
	select {
	case s.reg.unsubscribe <- s:
	case <-s.reg.done:
	}
}

// push queues a view without blocking the Run goroutine
func (s *Subscription) push(v View) {
	s.mu.Lock()
	if len(s.queue) >= subscriberBacklog {
		for i, queued := range s.queue {
			if queued.Loading {
				s.queue = append(s.queue[:i], s.queue[i+1:]...)
				logger.Debug("Session subscriber is behind, loading view coalesced", "uid", s.uid, "seq", queued.Seq)
				break
			}
		}
	}
	s.queue = append(s.queue, v)
	s.mu.Unlock()
	s.signal()
}

// finish lets the queued views drain, then closes C
func (s *Subscription) finish() {
	s.mu.Lock()
	s.finished = true
	s.mu.Unlock()
	s.signal()
}

// abandon closes C without delivering what is still queued
func (s *Subscription) abandon() {
	close(s.quit)
}

func (s *Subscription) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Subscription) pop() (v View, ok, finished bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return View{}, false, s.finished
	}
	v = s.queue[0]
	s.queue = s.queue[1:]
	return v, true, false
}

func (s *Subscription) pump() {
	defer close(s.out)
	for {
		v, ok, finished := s.pop()
		if !ok {
			if finished {
				return
			}
			select {
			case <-s.wake:
				continue
			case <-s.quit:
				return
			}
		}
		select {
		case s.out <- v:
		case <-s.quit:
			return
		}
	}
}

type Registry struct {
	profiles ProfileReader
	timeout  time.Duration

	changes     chan change
	resolved    chan resolution
	lookups     chan lookup
	subscribe   chan *Subscription
	unsubscribe chan *Subscription
	done        chan struct{}

	// owned by the Run goroutine
	entries     map[string]*entry
	subscribers map[string]map[*Subscription]struct{}
	wg          sync.WaitGroup
}

// NewRegistry creates a registry; profile reads are bounded by timeout
func NewRegistry(profiles ProfileReader, timeout time.Duration) *Registry {
	return &Registry{
		profiles:    profiles,
		timeout:     timeout,
		changes:     make(chan change, 64),
		resolved:    make(chan resolution),
		lookups:     make(chan lookup),
		subscribe:   make(chan *Subscription),
		unsubscribe: make(chan *Subscription),
		done:        make(chan struct{}),
		entries:     make(map[string]*entry),
		subscribers: make(map[string]map[*Subscription]struct{}),
	}
}

// Run processes events until ctx is cancelled, then waits for pending resolutions and
// closes every subscription.
func (r *Registry) Run(ctx context.Context) {
	logger.Info("Session registry started")
	defer func() {
		close(r.done)
		r.wg.Wait()
		for _, subs := range r.subscribers {
			for sub := range subs {
				sub.finish()
			}
		}
		logger.Info("Session registry stopped")
	}()

	for {
		select {
		case c := <-r.changes:
			r.handleChange(ctx, c)
		case res := <-r.resolved:
			r.handleResolution(res)
		case l := <-r.lookups:
			e, ok := r.entries[l.uid]
			if ok {
				l.reply <- lookupResult{view: e.view, ok: true}
			} else {
				l.reply <- lookupResult{}
			}
		case sub := <-r.subscribe:
			subs, ok := r.subscribers[sub.uid]
			if !ok {
				subs = make(map[*Subscription]struct{})
				r.subscribers[sub.uid] = subs
			}
			subs[sub] = struct{}{}
		case sub := <-r.unsubscribe:
			if subs, ok := r.subscribers[sub.uid]; ok {
				if _, ok := subs[sub]; ok {
					delete(subs, sub)
					sub.abandon()
				}
				if len(subs) == 0 {
					delete(r.subscribers, sub.uid)
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

func (r *Registry) handleChange(ctx context.Context, c change) {
	e, ok := r.entries[c.uid]
	if c.event == EventTokenRefreshed && (!ok || !e.view.SignedIn) {
		// nobody is signed in as this account
		return
	}
	if !ok {
		e = &entry{}
		r.entries[c.uid] = e
	}
	e.seq++
	email := c.email
	if email == "" {
		email = e.view.Email
	}

	loading := View{
		UID:      c.uid,
		Email:    email,
		Role:     e.view.Role,
		SignedIn: c.event != EventSignedOut,
		Loading:  true,
		Event:    c.event,
		Seq:      e.seq,
	}
	e.view = loading
	r.publish(loading)
	metrics.SessionEvents.WithLabelValues(string(c.event)).Inc()

	if c.event == EventSignedOut {
		terminal := View{UID: c.uid, Event: c.event, Seq: e.seq}
		e.view = terminal
		r.publish(terminal)
		r.forget(c.uid, e)
		return
	}

	e.inflight++
	r.wg.Add(1)
	go r.resolve(ctx, c.uid, e.seq, c.event)
}

// resolve reads the profile off the Run goroutine and hands the role back to it
func (r *Registry) resolve(ctx context.Context, uid string, seq uint64, event Event) {
	defer r.wg.Done()
	role := r.readRole(ctx, uid)
	select {
	case r.resolved <- resolution{uid: uid, seq: seq, event: event, role: role}:
	case <-r.done:
	}
}

func (r *Registry) readRole(ctx context.Context, uid string) domain.Role {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	user, err := r.profiles.GetByID(ctx, uid)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			logger.Warn("Failed to read profile for session, defaulting role", "uid", uid, "error", err)
		}
		return domain.RoleResident
	}
	if !user.Role.Valid() {
		return domain.RoleResident
	}
	return user.Role
}

func (r *Registry) handleResolution(res resolution) {
	view := View{
		UID:      res.uid,
		Role:     res.role,
		SignedIn: true,
		Event:    res.event,
		Seq:      res.seq,
	}

	e, ok := r.entries[res.uid]
	if ok {
		e.inflight--
		view.Email = e.view.Email
	}
	if !ok || res.seq != e.seq {
		view.Stale = true
		metrics.SessionEvents.WithLabelValues("stale").Inc()
		r.publish(view)
		if ok {
			r.forget(res.uid, e)
		}
		return
	}

	e.view = view
	r.publish(view)
}

// forget drops a signed-out entry once no resolution is pending for it
func (r *Registry) forget(uid string, e *entry) {
	if !e.view.SignedIn && !e.view.Loading && e.inflight == 0 {
		delete(r.entries, uid)
	}
}

func (r *Registry) publish(view View) {
	for sub := range r.subscribers[view.UID] {
		sub.push(view)
	}
}

func (r *Registry) send(c change) {
	select {
	case r.changes <- c:
	case <-r.done:
	}
}

func (r *Registry) SignedIn(uid, email string) {
	r.send(change{uid: uid, email: email, event: EventSignedIn})
}

func (r *Registry) SignedOut(uid string) {
	r.send(change{uid: uid, event: EventSignedOut})
}

// TokenRefreshed re-resolves the role of a signed-in account. Unknown accounts are ignored.
func (r *Registry) TokenRefreshed(uid string) {
	r.send(change{uid: uid, event: EventTokenRefreshed})
}

// Current returns the latest non-stale view of uid
func (r *Registry) Current(ctx context.Context, uid string) (View, bool) {
	l := lookup{uid: uid, reply: make(chan lookupResult, 1)}
	select {
	case r.lookups <- l:
	case <-r.done:
		return View{}, false
	case <-ctx.Done():
		return View{}, false
	}
	res := <-l.reply
	return res.view, res.ok
}

// Subscribe streams the views published for uid. The channel closes on Cancel or shutdown;
// callers must Cancel once they stop reading.
func (r *Registry) Subscribe(uid string) *Subscription {
	sub := newSubscription(uid, r)
	go sub.pump()
	select {
	case r.subscribe <- sub:
	case <-r.done:
		sub.finish()
	}
	return sub
}

// Resolve returns the settled view of a verified account, signing it in when the registry has
// no settled view for it yet.
func (r *Registry) Resolve(ctx context.Context, uid, email string) (View, error) {
	if v, ok := r.Current(ctx, uid); ok && v.SignedIn && !v.Loading {
		return v, nil
	}
	return r.SignIn(ctx, uid, email)
}

// SignIn emits a signed-in event and waits for the first settled view that follows it
func (r *Registry) SignIn(ctx context.Context, uid, email string) (View, error) {
	sub := r.Subscribe(uid)
	defer sub.Cancel()
	r.SignedIn(uid, email)

	for {
		select {
		case v, ok := <-sub.C:
			if !ok {
				return View{}, ErrStopped
			}
			if !v.Loading && !v.Stale {
				return v, nil
			}
		case <-ctx.Done():
			return View{}, ctx.Err()
		}
	}
}
