package download

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/downpour-dl/downpour/internal/port"
	"github.com/downpour-dl/downpour/internal/util/ratelimiter"
)

// Config controls registry and transfer behavior.
type Config struct {
	// Dir is the destination directory for file paths derived from URLs.
	Dir string
	// UserAgent is sent with probe and transfer requests.
	UserAgent string
	// RequestTimeout bounds the initial probe request. It does not
	// apply to transfers, which are bounded only by pause/cancel.
	RequestTimeout time.Duration
	// ProgressInterval throttles Running state publications.
	ProgressInterval time.Duration
	// RateWindow is the rolling window of the rate estimate.
	RateWindow time.Duration
	// BufferSize is the chunk buffer for transfer reads.
	BufferSize int
	// MaxBytesPerSecond caps the aggregate transfer rate across all
	// downloads. Zero means unlimited.
	MaxBytesPerSecond int64
	// Space, when non-nil, gates new downloads on free disk space.
	Space port.SpaceChecker
}

const (
	defaultUserAgent        = "downpour"
	defaultRequestTimeout   = 30 * time.Second
	defaultProgressInterval = 500 * time.Millisecond
	defaultBufferSize       = 64 * 1024
)

func (c Config) withDefaults() Config {
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
	if c.ProgressInterval <= 0 {
		c.ProgressInterval = defaultProgressInterval
	}
	if c.RateWindow <= 0 {
		c.RateWindow = DefaultRateWindow
	}
	if c.BufferSize <= 0 {
		c.BufferSize = defaultBufferSize
	}
	return c
}

// entry pairs one download's metadata with its current state snapshot
// and, while running, the active session handle. Each entry has its own
// mutex so operations on different downloads never contend.
type entry struct {
	mu             sync.Mutex
	meta           Metadata
	state          State
	supportsRanges bool
	session        *TransferSession // non-nil only while Running
}

// Registry owns the set of known downloads, assigns identities and
// serializes command dispatch per download. The entry map is guarded by
// its own RWMutex and is only written on create and restore; sessions
// for distinct downloads make independent progress.
type Registry struct {
	cfg     Config
	client  *http.Client
	repo    port.DownloadRepository // may be nil: in-memory only
	limiter *ratelimiter.Limiter    // shared across sessions
	logger  *zap.Logger

	mu      sync.RWMutex
	entries map[uuid.UUID]*entry
	order   []uuid.UUID

	wg sync.WaitGroup
}

// NewRegistry creates a registry. repo may be nil to disable
// persistence.
func NewRegistry(cfg Config, repo port.DownloadRepository, logger *zap.Logger) *Registry {
	cfg = cfg.withDefaults()
	return &Registry{
		cfg:     cfg,
		client:  &http.Client{},
		repo:    repo,
		limiter: ratelimiter.New(cfg.MaxBytesPerSecond),
		logger:  logger,
		entries: make(map[uuid.UUID]*entry),
	}
}

// Create registers a new download and immediately starts its transfer.
// filePath may be empty, in which case it is derived from the URL
// inside the configured directory. Returns ErrInvalidURL before any
// I/O for unparsable input and ErrNetwork when the initial probe fails;
// neither leaves a registry entry behind.
func (r *Registry) Create(ctx context.Context, rawURL, filePath string) (Data, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Data{}, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}

	probe, err := r.probe(ctx, u.String())
	if err != nil {
		return Data{}, err
	}

	if err := r.checkSpace(probe.contentLength); err != nil {
		return Data{}, err
	}

	id := uuid.New()
	if filePath == "" {
		filePath = r.defaultFilePath(u, id)
	}

	e := &entry{
		meta: Metadata{
			ID:            id,
			URL:           u.String(),
			FilePath:      filePath,
			ContentLength: probe.contentLength,
		},
		state:          Created(),
		supportsRanges: probe.supportsRanges,
	}

	r.mu.Lock()
	r.entries[id] = e
	r.order = append(r.order, id)
	r.mu.Unlock()

	r.logger.Info("download created",
		zap.String("id", id.String()),
		zap.String("url", e.meta.URL),
		zap.String("file_path", filePath),
		zap.Int64("content_length", e.meta.ContentLength),
		zap.Bool("supports_ranges", probe.supportsRanges))

	if r.repo != nil {
		if err := r.repo.Save(recordOf(e.meta, e.state, e.supportsRanges)); err != nil {
			r.logger.Warn("failed to persist download", zap.String("id", id.String()), zap.Error(err))
		}
	}

	e.mu.Lock()
	r.startSession(e)
	data := Data{Metadata: e.meta, State: e.state}
	e.mu.Unlock()
	return data, nil
}

// Get returns a consistent point-in-time snapshot of one download.
func (r *Registry) Get(id uuid.UUID) (Data, error) {
	e, err := r.lookup(id)
	if err != nil {
		return Data{}, err
	}
	e.mu.Lock()
	data := Data{Metadata: e.meta, State: e.state}
	e.mu.Unlock()
	return data, nil
}

// List returns snapshots of all known downloads in creation order.
func (r *Registry) List() []Data {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.order))
	for _, id := range r.order {
		entries = append(entries, r.entries[id])
	}
	r.mu.RUnlock()

	out := make([]Data, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, Data{Metadata: e.meta, State: e.state})
		e.mu.Unlock()
	}
	return out
}

// Pause signals a running download to stop after the current chunk and
// waits until the session acknowledges. Idempotent when the download is
// already paused; ErrInvalidTransition otherwise.
func (r *Registry) Pause(ctx context.Context, id uuid.UUID) (Data, error) {
	e, err := r.lookup(id)
	if err != nil {
		return Data{}, err
	}

	e.mu.Lock()
	switch e.state.Kind {
	case KindPaused:
		data := Data{Metadata: e.meta, State: e.state}
		e.mu.Unlock()
		return data, nil
	case KindRunning:
		sess := e.session
		e.mu.Unlock()
		sess.Stop()
		select {
		case <-sess.Done():
		case <-ctx.Done():
			return Data{}, ctx.Err()
		}
		return r.Get(id)
	default:
		kind := e.state.Kind
		e.mu.Unlock()
		return Data{}, fmt.Errorf("%w: cannot pause a download in state %s", ErrInvalidTransition, kind)
	}
}

// Resume starts the transfer of a created, paused or errored download.
// Resuming from Error is the explicit retry path; no retries ever
// happen inside the engine.
func (r *Registry) Resume(id uuid.UUID) (Data, error) {
	e, err := r.lookup(id)
	if err != nil {
		return Data{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.state.Kind {
	case KindCreated, KindPaused, KindError:
		r.startSession(e)
		return Data{Metadata: e.meta, State: e.state}, nil
	default:
		return Data{}, fmt.Errorf("%w: cannot resume a download in state %s", ErrInvalidTransition, e.state.Kind)
	}
}

// PauseAll cooperatively pauses every running download, concurrently.
// Downloads in other states are left untouched.
func (r *Registry) PauseAll(ctx context.Context) error {
	r.mu.RLock()
	ids := make([]uuid.UUID, len(r.order))
	copy(ids, r.order)
	r.mu.RUnlock()

	g, ctx := errgroup.WithContext(ctx)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			_, err := r.Pause(ctx, id)
			if errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrNotFound) {
				return nil
			}
			return err
		})
	}
	return g.Wait()
}

// Shutdown pauses all running downloads and waits for their sessions
// to finish.
func (r *Registry) Shutdown(ctx context.Context) error {
	err := r.PauseAll(ctx)
	r.wg.Wait()
	return err
}

// Restore loads persisted downloads into the registry. Entries that
// were running or created when the process stopped surface as Paused at
// their recorded offset; resuming them is an explicit caller decision.
func (r *Registry) Restore() error {
	if r.repo == nil {
		return nil
	}
	recs, err := r.repo.List()
	if err != nil {
		return fmt.Errorf("failed to load persisted downloads: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range recs {
		id, err := uuid.Parse(rec.ID)
		if err != nil {
			r.logger.Warn("skipping persisted download with bad id", zap.String("id", rec.ID))
			continue
		}
		if _, ok := r.entries[id]; ok {
			continue
		}

		var st State
		switch StateKind(rec.State) {
		case KindComplete:
			st = Complete()
		case KindError:
			st = State{Kind: KindError, BytesDownloaded: rec.BytesDownloaded, Err: rec.LastError}
		default:
			st = Paused(rec.BytesDownloaded)
		}

		r.entries[id] = &entry{
			meta: Metadata{
				ID:            id,
				URL:           rec.URL,
				FilePath:      rec.FilePath,
				ContentLength: rec.ContentLength,
			},
			state:          st,
			supportsRanges: rec.SupportsRanges,
		}
		r.order = append(r.order, id)
	}

	r.logger.Info("restored persisted downloads", zap.Int("count", len(recs)))
	return nil
}

func (r *Registry) lookup(id uuid.UUID) (*entry, error) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e, nil
}

// startSession launches a transfer for the entry. Caller holds e.mu.
// The entry is published as Running immediately; the session goroutine
// republishes progress and eventually a non-Running state, at which
// point the handle is dropped.
func (r *Registry) startSession(e *entry) {
	offset := e.state.BytesDownloaded
	if !e.supportsRanges {
		// No byte-range support upstream: restart from scratch.
		offset = 0
	}

	sess := &TransferSession{
		meta:         e.meta,
		offset:       offset,
		client:       r.client,
		userAgent:    r.cfg.UserAgent,
		bufSize:      r.cfg.BufferSize,
		limiter:      r.limiter,
		publishEvery: r.cfg.ProgressInterval,
		rate:         NewRateTracker(r.cfg.RateWindow),
		logger:       r.logger,
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
	sess.publish = func(st State) { r.publishUpdate(e, sess, st) }

	e.session = sess
	e.state = Running(offset, 0)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		sess.run()
	}()
}

// publishUpdate applies a session-reported state to the entry and
// checkpoints it. Only the publishing session may move the entry out of
// Running; a stale session that lost its handle cannot clobber state.
func (r *Registry) publishUpdate(e *entry, sess *TransferSession, st State) {
	e.mu.Lock()
	if e.session != sess {
		e.mu.Unlock()
		return
	}
	e.state = st
	if st.Kind != KindRunning {
		e.session = nil
	}
	meta := e.meta
	e.mu.Unlock()

	if r.repo != nil {
		if err := r.repo.UpdateProgress(meta.ID.String(), string(st.Kind), st.BytesDownloaded, st.Err); err != nil {
			r.logger.Warn("failed to checkpoint download progress",
				zap.String("id", meta.ID.String()), zap.Error(err))
		}
	}
}

// checkSpace rejects a download whose known size exceeds the free
// space of the destination volume. Unknown sizes pass.
func (r *Registry) checkSpace(contentLength int64) error {
	if r.cfg.Space == nil || contentLength <= 0 {
		return nil
	}
	usage, err := r.cfg.Space.GetDiskUsage()
	if err != nil {
		r.logger.Warn("disk usage check failed", zap.Error(err))
		return nil
	}
	if uint64(contentLength) > usage.Free {
		return fmt.Errorf("%w: need %d bytes, %d free", ErrInsufficientSpace, contentLength, usage.Free)
	}
	return nil
}

type probeResult struct {
	contentLength  int64
	supportsRanges bool
}

// probe resolves content length and byte-range support with a HEAD
// request, falling back to the headers of a GET when the server
// rejects HEAD.
func (r *Registry) probe(ctx context.Context, rawURL string) (probeResult, error) {
	res, headErr := r.probeMethod(ctx, http.MethodHead, rawURL)
	if headErr == nil {
		return res, nil
	}
	res, getErr := r.probeMethod(ctx, http.MethodGet, rawURL)
	if getErr != nil {
		return probeResult{}, fmt.Errorf("%w: %v", ErrNetwork, getErr)
	}
	return res, nil
}

func (r *Registry) probeMethod(ctx context.Context, method, rawURL string) (probeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return probeResult{}, err
	}
	req.Header.Set("User-Agent", r.cfg.UserAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return probeResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return probeResult{}, fmt.Errorf("server answered %d to %s probe", resp.StatusCode, method)
	}

	length := resp.ContentLength
	if length < 0 {
		length = 0 // unknown, e.g. chunked transfer
	}
	return probeResult{
		contentLength:  length,
		supportsRanges: SupportsByteRanges(resp.Header),
	}, nil
}

// defaultFilePath derives a destination inside the configured directory
// from the URL's filename, prefixing it with the download id when the
// name is empty or already taken.
func (r *Registry) defaultFilePath(u *url.URL, id uuid.UUID) string {
	name := ParseFilename(u)
	if name == "" {
		name = id.String()
	} else if _, err := os.Stat(filepath.Join(r.cfg.Dir, name)); err == nil {
		name = fmt.Sprintf("%s-%s", id, name)
	}
	return filepath.Join(r.cfg.Dir, name)
}

func recordOf(meta Metadata, st State, supportsRanges bool) *port.DownloadRecord {
	now := time.Now()
	return &port.DownloadRecord{
		ID:              meta.ID.String(),
		URL:             meta.URL,
		FilePath:        meta.FilePath,
		ContentLength:   meta.ContentLength,
		SupportsRanges:  supportsRanges,
		State:           string(st.Kind),
		BytesDownloaded: st.BytesDownloaded,
		LastError:       st.Err,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}
