package dataloader

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dmitrymomot/raisekit/pkg/logger"
	"github.com/dmitrymomot/raisekit/pkg/metrics"
	"github.com/dmitrymomot/raisekit/svc/profile"
)

// State is the slice of tab state the loader reads and the one flag it
// writes.
type State interface {
	PrincipalID() string
	Authenticated() bool
	Loaded() bool
	// Epoch changes on every reset (sign-out, profile switch, reload).
	Epoch() uint64
	// MarkLoaded sets the loaded flag only if epoch is still current and the
	// session is authenticated. It reports whether the flag was set.
	MarkLoaded(epoch uint64) bool
}

// Dataset is the role-scoped data a tab needs before it leaves the loading
// screen.
type Dataset struct {
	Profile  profile.Profile   `json:"profile"`
	Profiles []profile.Profile `json:"profiles"`
	LoadedAt time.Time         `json:"loaded_at"`
}

// Fetcher retrieves the dataset for a principal.
type Fetcher interface {
	Fetch(ctx context.Context, principalID string) (Dataset, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, principalID string) (Dataset, error)

func (f FetcherFunc) Fetch(ctx context.Context, principalID string) (Dataset, error) {
	return f(ctx, principalID)
}

// StoreFetcher loads the active profile and the profile list from a
// profile.Store.
type StoreFetcher struct {
	Store profile.Store
	Now   func() time.Time
}

func (f StoreFetcher) Fetch(ctx context.Context, principalID string) (Dataset, error) {
	p, err := f.Store.GetProfileForPrincipal(ctx, principalID)
	if err != nil {
		return Dataset{}, err
	}
	list, err := f.Store.ListProfilesForPrincipal(ctx, principalID)
	if err != nil {
		return Dataset{}, err
	}
	now := time.Now
	if f.Now != nil {
		now = f.Now
	}
	return Dataset{Profile: p, Profiles: list, LoadedAt: now()}, nil
}

// Loader implements ensure-loaded for one tab. Non-forced calls while a load
// is outstanding, or after data is loaded, return immediately. Forced calls
// always start a fetch. A completion from an earlier epoch never sets the
// loaded flag.
type Loader struct {
	state    State
	fetcher  Fetcher
	log      *slog.Logger
	rec      metrics.Recorder
	onLoaded func(ctx context.Context, ds Dataset)

	mu       sync.Mutex
	inflight uint64
	seq      uint64
	gen      uint64
	data     Dataset
	hasData  bool
}

type Option func(*Loader)

func WithLogger(l *slog.Logger) Option {
	return func(ld *Loader) {
		if l != nil {
			ld.log = l
		}
	}
}

func WithRecorder(r metrics.Recorder) Option {
	return func(ld *Loader) {
		if r != nil {
			ld.rec = r
		}
	}
}

// WithOnLoaded runs fn after the loaded flag is set.
func WithOnLoaded(fn func(ctx context.Context, ds Dataset)) Option {
	return func(ld *Loader) { ld.onLoaded = fn }
}

func New(state State, fetcher Fetcher, opts ...Option) *Loader {
	ld := &Loader{
		state:   state,
		fetcher: fetcher,
		log:     logger.Discard(),
		rec:     metrics.Nop{},
	}
	for _, opt := range opts {
		opt(ld)
	}
	return ld
}

// EnsureLoaded fetches the dataset for the current principal. It returns the
// fetch error, or nil when the call was a no-op.
func (ld *Loader) EnsureLoaded(ctx context.Context, force bool) error {
	ld.mu.Lock()
	if !force && (ld.inflight != 0 || ld.state.Loaded()) {
		ld.mu.Unlock()
		return nil
	}
	ld.seq++
	token := ld.seq
	gen := ld.gen
	ld.inflight = token
	ld.mu.Unlock()

	defer func() {
		ld.mu.Lock()
		if ld.inflight == token {
			ld.inflight = 0
		}
		ld.mu.Unlock()
	}()

	epoch := ld.state.Epoch()
	principalID := ld.state.PrincipalID()
	if principalID == "" || !ld.state.Authenticated() {
		return ErrNotAuthenticated
	}

	start := time.Now()
	ds, err := ld.fetcher.Fetch(ctx, principalID)
	if err != nil {
		ld.rec.RecordLoad(false)
		ld.log.WarnContext(ctx, "data load failed",
			logger.PrincipalID(principalID), logger.Error(err), slog.Bool("forced", force))
		return err
	}

	if !ld.state.MarkLoaded(epoch) {
		ld.log.DebugContext(ctx, "stale data load discarded", logger.PrincipalID(principalID))
		return ErrStale
	}

	ld.mu.Lock()
	stale := ld.gen != gen
	if !stale {
		ld.data = ds
		ld.hasData = true
	}
	ld.mu.Unlock()
	if stale {
		ld.log.DebugContext(ctx, "stale data load discarded", logger.PrincipalID(principalID))
		return ErrStale
	}
	ld.rec.RecordLoad(true)
	ld.log.InfoContext(ctx, "data loaded",
		logger.PrincipalID(principalID), logger.ProfileID(ds.Profile.ID),
		logger.Duration(time.Since(start)))

	if ld.onLoaded != nil {
		ld.onLoaded(ctx, ds)
	}
	return nil
}

// Loading reports whether a fetch is outstanding.
func (ld *Loader) Loading() bool {
	ld.mu.Lock()
	defer ld.mu.Unlock()
	return ld.inflight != 0
}

// Data returns the last fetched dataset.
func (ld *Loader) Data() (Dataset, bool) {
	ld.mu.Lock()
	defer ld.mu.Unlock()
	return ld.data, ld.hasData
}

// Reset drops cached data and forgets any outstanding fetch, so the next
// non-forced call starts a new one. Fetches started before Reset never
// publish their dataset. The tab calls it on sign-out and profile switch.
func (ld *Loader) Reset() {
	ld.mu.Lock()
	ld.gen++
	ld.inflight = 0
	ld.data = Dataset{}
	ld.hasData = false
	ld.mu.Unlock()
}
