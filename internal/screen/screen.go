// Package screen wires the cache, the relation resolver, the diff engine and
// the request lifecycle together for one "manage X" screen instance.
package screen

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"

	"campus-admin/internal/cache"
	"campus-admin/internal/credential"
	"campus-admin/internal/entity"
	"campus-admin/internal/lifecycle"
	"campus-admin/internal/relation"
	"campus-admin/internal/transport"
	"campus-admin/internal/validate"
)

var (
	// ErrNotConfirmed is returned by Delete when the user did not confirm.
	ErrNotConfirmed = errors.New("deletion not confirmed")
	// ErrMissingID is returned when an operation needs the entity's id.
	ErrMissingID = errors.New("entity has no id")
)

type trackerKey struct {
	t    entity.Type
	kind lifecycle.Kind
}

// Screen owns the state of one screen instance. Create one per mount and
// discard it after Unmount.
type Screen struct {
	name      string
	transport transport.Transport
	creds     credential.Source
	cache     *cache.Cache
	validator *validate.Validator

	logger     *zap.Logger
	recorder   lifecycle.Recorder
	policy     lifecycle.Policy
	college    string
	locale     language.Tag
	fetchLimit int
	now        func() time.Time

	mu       sync.Mutex
	trackers map[trackerKey]*lifecycle.Tracker
	scopes   map[entity.Type]transport.Scope
}

// Option configures a Screen.
type Option func(*Screen)

// WithLogger sets the logger; nil keeps the no-op default.
func WithLogger(l *zap.Logger) Option {
	return func(s *Screen) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRecorder observes every lifecycle transition of the screen.
func WithRecorder(r lifecycle.Recorder) Option {
	return func(s *Screen) { s.recorder = r }
}

// WithPolicy selects how overlapping list fetches of one type settle. Writes
// always settle every request.
func WithPolicy(p lifecycle.Policy) Option {
	return func(s *Screen) { s.policy = p }
}

// WithCollegeScope restricts the screen to one college: department lists are
// fetched for that college only and programs may only be added under its
// departments.
func WithCollegeScope(collegeID string) Option {
	return func(s *Screen) { s.college = collegeID }
}

// WithLocale sets the collation used when sorting rows by text.
func WithLocale(tag language.Tag) Option {
	return func(s *Screen) { s.locale = tag }
}

// WithClock replaces the clock stamped on lifecycle snapshots.
func WithClock(now func() time.Time) Option {
	return func(s *Screen) { s.now = now }
}

// WithFetchLimit bounds the number of concurrent fetches during Mount.
func WithFetchLimit(n int) Option {
	return func(s *Screen) {
		if n > 0 {
			s.fetchLimit = n
		}
	}
}

// New creates a screen. creds may be nil, in which case every mutation is
// refused with lifecycle.ErrTokenMissing.
func New(name string, tr transport.Transport, creds credential.Source, opts ...Option) *Screen {
	s := &Screen{
		name:       name,
		transport:  tr,
		creds:      creds,
		validator:  validate.New(),
		logger:     zap.NewNop(),
		locale:     language.English,
		fetchLimit: 4,
		trackers:   make(map[trackerKey]*lifecycle.Tracker),
		scopes:     make(map[entity.Type]transport.Scope),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("screen", name))
	s.cache = cache.New(s.logger)
	return s
}

// Name returns the screen's name.
func (s *Screen) Name() string { return s.name }

// CollegeScope returns the college the screen is restricted to, or "".
func (s *Screen) CollegeScope() string { return s.college }

func (s *Screen) tracker(t entity.Type, kind lifecycle.Kind) *lifecycle.Tracker {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := trackerKey{t: t, kind: kind}
	tr, ok := s.trackers[key]
	if !ok {
		policy := s.policy
		if kind.Mutating() {
			policy = lifecycle.LastSettledWins
		}
		opts := []lifecycle.Option{
			lifecycle.WithPolicy(policy),
			lifecycle.WithLogger(s.logger),
			lifecycle.WithRecorder(s.recorder),
		}
		if s.now != nil {
			opts = append(opts, lifecycle.WithClock(s.now))
		}
		tr = lifecycle.New(kind, string(t), opts...)
		s.trackers[key] = tr
	}
	return tr
}

func (s *Screen) tokenSource() lifecycle.TokenSource {
	if s.creds == nil {
		return nil
	}
	return s.creds
}

// Mount fetches every listed collection concurrently. A failed type leaves
// its collection empty while the others are still populated; the failures are
// returned joined.
func (s *Screen) Mount(ctx context.Context, types ...entity.Type) error {
	errs := make([]error, len(types))
	var g errgroup.Group
	g.SetLimit(s.fetchLimit)
	for i, t := range types {
		i, t := i, t
		g.Go(func() error {
			errs[i] = s.Load(ctx, t, nil)
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// Load fetches the collection for t and replaces the cached copy on success.
// A nil scope uses the screen's default scope for t.
func (s *Screen) Load(ctx context.Context, t entity.Type, scope transport.Scope) error {
	if scope == nil {
		scope = s.defaultScope(t)
	}
	s.mu.Lock()
	s.scopes[t] = scope
	s.mu.Unlock()

	_, err := lifecycle.Run(ctx, s.tracker(t, lifecycle.FetchList), s.tokenSource(),
		func(ctx context.Context) ([]entity.Doc, error) {
			return s.transport.FetchList(ctx, t, scope)
		},
		func(docs []entity.Doc) {
			s.cache.ReplaceAll(t, docs)
		},
	)
	if err != nil {
		return fmt.Errorf("load %s: %w", t, err)
	}
	return nil
}

// Reload repeats the last Load of t with the same scope.
func (s *Screen) Reload(ctx context.Context, t entity.Type) error {
	s.mu.Lock()
	scope := s.scopes[t]
	s.mu.Unlock()
	return s.Load(ctx, t, scope)
}

func (s *Screen) defaultScope(t entity.Type) transport.Scope {
	if s.college == "" {
		return nil
	}
	if link, ok := entity.LinkTo(t, entity.College); ok && t == entity.Department {
		return transport.Scope{link.Key: s.college}
	}
	return nil
}

// Collection returns the cached collection for t.
func (s *Screen) Collection(t entity.Type) []entity.Doc {
	return s.cache.Get(t)
}

// Loaded reports whether t has been fetched successfully at least once.
func (s *Screen) Loaded(t entity.Type) bool {
	return s.cache.Populated(t)
}

// Status returns the lifecycle snapshot of an operation on t.
func (s *Screen) Status(t entity.Type, kind lifecycle.Kind) lifecycle.Snapshot {
	return s.tracker(t, kind).Snapshot()
}

// Busy reports whether the control triggering kind on t should be disabled.
func (s *Screen) Busy(t entity.Type, kind lifecycle.Kind) bool {
	return s.tracker(t, kind).Busy()
}

// NameOf resolves a reference into collection t to a display name, or the
// sentinel for t when it misses.
func (s *Screen) NameOf(t entity.Type, ref any) string {
	return relation.ResolveName(s.cache.Get(t), ref, relation.Sentinel(t))
}

// Unmount cancels every in-flight request and drops the cached collections.
func (s *Screen) Unmount() {
	s.mu.Lock()
	trackers := make([]*lifecycle.Tracker, 0, len(s.trackers))
	for _, tr := range s.trackers {
		trackers = append(trackers, tr)
	}
	s.mu.Unlock()

	for _, tr := range trackers {
		tr.Abort()
	}
	s.cache.Clear()
	s.logger.Debug("screen unmounted")
}
