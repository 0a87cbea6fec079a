// Package lifecycle implements the idle/pending/fulfilled/rejected state
// machine that drives every fetch, create, update and delete a screen issues.
package lifecycle

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// State of one logical operation.
type State int

const (
	Idle State = iota
	Pending
	Fulfilled
	Rejected
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Pending:
		return "pending"
	case Fulfilled:
		return "fulfilled"
	case Rejected:
		return "rejected"
	}
	return "unknown"
}

// Kind names the logical operation a Tracker governs.
type Kind string

const (
	FetchList Kind = "fetch-list"
	Create    Kind = "create"
	Update    Kind = "update"
	Delete    Kind = "delete"
)

// Mutating reports whether the operation writes and therefore needs a credential.
func (k Kind) Mutating() bool {
	return k == Create || k == Update || k == Delete
}

// Policy decides what happens when requests on the same operation overlap.
type Policy int

const (
	// Supersede hands out a ticket per request. Starting a request cancels the
	// context of any older one still in flight and discards its result.
	Supersede Policy = iota
	// LastSettledWins applies every result in settle order, so whichever
	// response arrives last determines the final state.
	LastSettledWins
)

var (
	// ErrTokenMissing rejects a mutating operation issued without a credential.
	ErrTokenMissing = errors.New("authentication token missing")
	// ErrSuperseded is returned to the caller of a request whose result was
	// discarded because a newer request on the same operation started.
	ErrSuperseded = errors.New("request superseded by a newer request")
)

// GenericMessage is shown when an error carries no message of its own.
const GenericMessage = "Something went wrong. Please try again."

// Recorder observes state transitions.
type Recorder interface {
	Observe(op Kind, subject string, state State, elapsed time.Duration)
}

// Ticket identifies one started request.
type Ticket struct {
	seq     uint64
	started time.Time
}

// Snapshot is a read-only view of a Tracker.
type Snapshot struct {
	State     State
	Err       error
	Message   string
	InFlight  int
	StartedAt time.Time
	SettledAt time.Time
}

// Tracker is the state machine for one (screen, entity type, operation) triple.
// It is safe for concurrent use.
type Tracker struct {
	kind     Kind
	subject  string
	policy   Policy
	logger   *zap.Logger
	recorder Recorder
	now      func() time.Time

	mu        sync.Mutex
	state     State
	err       error
	seq       uint64
	current   uint64
	cancels   map[uint64]context.CancelFunc
	startedAt time.Time
	settledAt time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithPolicy selects the overlap policy. The default is Supersede.
func WithPolicy(p Policy) Option {
	return func(t *Tracker) { t.policy = p }
}

// WithLogger sets the logger used for transition events.
func WithLogger(l *zap.Logger) Option {
	return func(t *Tracker) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithRecorder attaches a transition recorder.
func WithRecorder(r Recorder) Option {
	return func(t *Tracker) { t.recorder = r }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// New creates an idle tracker. subject names what is operated on (usually an
// entity collection) and only feeds logs and metrics.
func New(kind Kind, subject string, opts ...Option) *Tracker {
	t := &Tracker{
		kind:    kind,
		subject: subject,
		logger:  zap.NewNop(),
		now:     time.Now,
		cancels: make(map[uint64]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.With(zap.String("op", string(kind)), zap.String("subject", subject))
	return t
}

// Kind returns the governed operation.
func (t *Tracker) Kind() Kind { return t.kind }

// Start moves the tracker to Pending and returns the request's ticket together
// with a context that is cancelled when the request is superseded or aborted.
func (t *Tracker) Start(ctx context.Context) (Ticket, context.Context) {
	reqCtx, cancel := context.WithCancel(ctx)

	t.mu.Lock()
	defer t.mu.Unlock()

	t.seq++
	ticket := Ticket{seq: t.seq, started: t.now()}
	if t.policy == Supersede {
		for seq, c := range t.cancels {
			c()
			delete(t.cancels, seq)
			t.logger.Debug("request superseded", zap.Uint64("ticket", seq))
		}
	}
	t.cancels[ticket.seq] = cancel
	t.current = ticket.seq
	t.state = Pending
	t.startedAt = ticket.started

	t.logger.Debug("request started", zap.Uint64("ticket", ticket.seq))
	t.observe(Pending, 0)
	return ticket, reqCtx
}

// Resolve settles a request successfully. apply runs exactly once, under the
// tracker's lock, and only when the result is accepted. The return value
// reports whether it was accepted.
func (t *Tracker) Resolve(ticket Ticket, apply func()) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.settle(ticket) {
		return false
	}
	if apply != nil {
		apply()
	}
	t.state = Fulfilled
	t.err = nil
	t.settledAt = t.now()

	t.logger.Debug("request fulfilled", zap.Uint64("ticket", ticket.seq))
	t.observe(Fulfilled, t.settledAt.Sub(ticket.started))
	return true
}

// Reject settles a request with err. Nothing is retried.
func (t *Tracker) Reject(ticket Ticket, err error) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.settle(ticket) {
		return false
	}
	t.reject(err)
	t.logger.Warn("request rejected", zap.Uint64("ticket", ticket.seq), zap.Error(err))
	t.observe(Rejected, t.settledAt.Sub(ticket.started))
	return true
}

// Fail moves straight to Rejected without a pending phase. It is used for
// preconditions checked before any call is made. While other requests are in
// flight the state stays Pending; the refusal is only logged.
func (t *Tracker) Fail(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.cancels) > 0 {
		t.logger.Warn("request refused while others are pending", zap.Error(err), zap.Int("in_flight", len(t.cancels)))
		return
	}
	t.reject(err)
	t.logger.Warn("request refused", zap.Error(err))
	t.observe(Rejected, 0)
}

// Abort cancels every in-flight request and discards their results. The
// state is left as is.
func (t *Tracker) Abort() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for seq, c := range t.cancels {
		c()
		delete(t.cancels, seq)
	}
}

// Busy reports whether the triggering control should be disabled: any request
// is still in flight.
func (t *Tracker) Busy() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == Pending || len(t.cancels) > 0
}

// Snapshot returns the current state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot{
		State:     t.state,
		Err:       t.err,
		Message:   UserMessage(t.err),
		InFlight:  len(t.cancels),
		StartedAt: t.startedAt,
		SettledAt: t.settledAt,
	}
}

// settle releases the ticket's context and reports whether its result may be
// applied. A ticket is accepted at most once, and only while still registered:
// Start (under Supersede) and Abort unregister the tickets they cancel.
// Callers hold t.mu.
func (t *Tracker) settle(ticket Ticket) bool {
	cancel, inFlight := t.cancels[ticket.seq]
	if !inFlight {
		t.logger.Debug("discarding stale result", zap.Uint64("ticket", ticket.seq), zap.Uint64("current", t.current))
		return false
	}
	delete(t.cancels, ticket.seq)
	cancel()
	return true
}

func (t *Tracker) reject(err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	t.state = Rejected
	t.err = err
	t.settledAt = t.now()
}

func (t *Tracker) observe(s State, elapsed time.Duration) {
	if t.recorder != nil {
		t.recorder.Observe(t.kind, t.subject, s, elapsed)
	}
}

// UserMessage turns an error into the text shown to the user. Errors that
// carry their own message (transport, validation) surface it; the fixed
// lifecycle errors surface verbatim; everything else gets GenericMessage.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var um interface{ UserMessage() string }
	if errors.As(err, &um) {
		if msg := um.UserMessage(); msg != "" {
			return msg
		}
	}
	switch {
	case errors.Is(err, ErrTokenMissing):
		return ErrTokenMissing.Error()
	case errors.Is(err, ErrSuperseded):
		return ErrSuperseded.Error()
	}
	return GenericMessage
}
