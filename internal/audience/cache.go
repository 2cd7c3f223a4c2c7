package audience

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kursadbilgin/newsletter-dispatch/internal/domain"
	"go.uber.org/zap"
)

const DefaultTTL = 300 * time.Second

// Kind tags a cache key so audience and segment key spaces never overlap.
type Kind string

const (
	KindAudience Kind = "audience"
	KindSegment  Kind = "segment"
	// KindSegments holds the full segment list of one audience.
	KindSegments Kind = "segments"
)

// Key is a typed cache key rendered as "{kind}-{pk}".
type Key struct {
	Kind Kind
	PK   string
}

func (k Key) String() string {
	return fmt.Sprintf("%s-%s", k.Kind, k.PK)
}

// Store is the TTL key/value store backing the cache. Entries expire
// passively; there is no sweep.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}

// Source is the subset of a campaign backend the cache reads from.
type Source interface {
	GetAudiences(ctx context.Context) ([]domain.Audience, error)
	GetAudience(ctx context.Context, audienceID string) (*domain.Audience, error)
	GetAudienceSegments(ctx context.Context, audienceID string) ([]domain.AudienceSegment, error)
}

// SourceFunc resolves the current backend. It is called once per query so
// configuration changes apply without restarting.
type SourceFunc func() (Source, error)

// Recorder observes cache hits and misses.
type Recorder interface {
	ObserveCacheLookup(kind string, hit bool)
}

type Cache struct {
	store    Store
	source   SourceFunc
	ttl      time.Duration
	logger   *zap.Logger
	recorder Recorder
}

type Option func(*Cache)

func WithLogger(logger *zap.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithRecorder(recorder Recorder) Option {
	return func(c *Cache) { c.recorder = recorder }
}

func NewCache(store Store, source SourceFunc, ttl time.Duration, opts ...Option) (*Cache, error) {
	if store == nil {
		return nil, fmt.Errorf("cache store is required")
	}
	if source == nil {
		return nil, fmt.Errorf("audience source is required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	c := &Cache{
		store:  store,
		source: source,
		ttl:    ttl,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Audiences starts a query over the backend's audiences.
func (c *Cache) Audiences() Query[domain.Audience] {
	return Query[domain.Audience]{cache: c, coll: audienceCollection{}}
}

// Segments starts a query over audience segments. Filter on "audience" to
// choose which audience's segments are listed.
func (c *Cache) Segments() Query[domain.AudienceSegment] {
	return Query[domain.AudienceSegment]{cache: c, coll: segmentCollection{}}
}

// AudienceSegments returns the segments of one audience, reusing the list
// fetched within the TTL window. A missing audience yields no segments.
func (c *Cache) AudienceSegments(ctx context.Context, audienceID string) ([]domain.AudienceSegment, error) {
	src, err := c.source()
	if err != nil {
		return nil, err
	}
	return c.audienceSegments(ctx, src, audienceID)
}

func (c *Cache) audienceSegments(ctx context.Context, src Source, audienceID string) ([]domain.AudienceSegment, error) {
	key := Key{Kind: KindSegments, PK: audienceID}

	var cached []domain.AudienceSegment
	if c.load(ctx, key, &cached) {
		return cached, nil
	}

	return c.refreshSegments(ctx, src, audienceID)
}

func (c *Cache) refreshSegments(ctx context.Context, src Source, audienceID string) ([]domain.AudienceSegment, error) {
	segments, err := src.GetAudienceSegments(ctx, audienceID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		segments = []domain.AudienceSegment{}
	}

	c.save(ctx, Key{Kind: KindSegments, PK: audienceID}, segments)
	return segments, nil
}

// ParentAudience resolves the audience a segment belongs to.
func (c *Cache) ParentAudience(ctx context.Context, segment domain.AudienceSegment) (domain.Audience, error) {
	return c.Audiences().Get(ctx, segment.AudienceID())
}

// MemberCount is the size of a recipients selection: the segment's count
// when a segment is chosen, otherwise the audience's. It is nil when the
// audience or segment no longer exists.
func (c *Cache) MemberCount(ctx context.Context, recipients *domain.Recipients) (*int, error) {
	if recipients == nil {
		return nil, nil
	}

	var (
		count int
		err   error
	)
	if recipients.HasSegment() {
		var segment domain.AudienceSegment
		segment, err = c.Segments().Get(ctx, *recipients.SegmentID)
		count = segment.MemberCount
	} else {
		var audience domain.Audience
		audience, err = c.Audiences().Get(ctx, recipients.AudienceID)
		count = audience.MemberCount
	}

	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &count, nil
}

// Clear drops every cached audience and segment entry.
func (c *Cache) Clear(ctx context.Context) (int, error) {
	n, err := c.store.DeletePrefix(ctx, "")
	if err != nil {
		return n, fmt.Errorf("failed to clear audience cache: %w", err)
	}
	c.logger.Info("audience cache cleared", zap.Int("entries", n))
	return n, nil
}

// load reads key into out. Store failures and undecodable entries count
// as misses.
func (c *Cache) load(ctx context.Context, key Key, out any) bool {
	raw, ok, err := c.store.Get(ctx, key.String())
	if err != nil {
		c.logger.Warn("audience cache read failed", zap.String("key", key.String()), zap.Error(err))
		ok = false
	}
	if ok {
		if err := json.Unmarshal(raw, out); err != nil {
			c.logger.Warn("discarding undecodable cache entry", zap.String("key", key.String()), zap.Error(err))
			ok = false
		}
	}

	if c.recorder != nil {
		c.recorder.ObserveCacheLookup(string(key.Kind), ok)
	}
	return ok
}

func (c *Cache) save(ctx context.Context, key Key, value any) {
	raw, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("audience cache encode failed", zap.String("key", key.String()), zap.Error(err))
		return
	}
	if err := c.store.Set(ctx, key.String(), raw, c.ttl); err != nil {
		c.logger.Warn("audience cache write failed", zap.String("key", key.String()), zap.Error(err))
	}
}
