package audience

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"maps"
	"slices"
	"strings"

	"github.com/kursadbilgin/newsletter-dispatch/internal/domain"
)

const (
	FilterPK       = "pk"
	FilterAudience = "audience"

	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Item is a cacheable provider record.
type Item interface {
	Key() string
}

// collection adapts one record type to the query machinery.
type collection[T Item] interface {
	kind() Kind
	// scope consumes filters that select which list to fetch rather than
	// narrowing it.
	scope(filters map[string]string) (scope string, rest map[string]string)
	list(ctx context.Context, c *Cache, src Source, scope string) ([]T, error)
	detail(ctx context.Context, c *Cache, src Source, scope string, pk string) (T, error)
}

// Query is an immutable, lazily evaluated lookup over cached provider
// records. Each evaluation re-runs it from scratch.
type Query[T Item] struct {
	cache   *Cache
	coll    collection[T]
	filters map[string]string
}

// Filter returns a copy of q narrowed by field=value.
func (q Query[T]) Filter(field, value string) Query[T] {
	filters := maps.Clone(q.filters)
	if filters == nil {
		filters = make(map[string]string, 1)
	}
	filters[field] = value
	q.filters = filters
	return q
}

// All yields matching records. A primary-key lookup is served from the
// cache when possible; an unfiltered listing always re-fetches and writes
// every record through to the cache.
func (q Query[T]) All(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T

		src, err := q.cache.source()
		if err != nil {
			yield(zero, err)
			return
		}

		scope, filters := q.coll.scope(maps.Clone(q.filters))

		if pk, ok := filters[FilterPK]; ok && len(filters) == 1 {
			item, err := q.lookup(ctx, src, scope, pk)
			yield(item, err)
			return
		}
		if len(filters) > 0 {
			yield(zero, fmt.Errorf("%w: %s", ErrFiltersNotSupported, strings.Join(slices.Sorted(maps.Keys(filters)), ", ")))
			return
		}

		items, err := q.coll.list(ctx, q.cache, src, scope)
		if err != nil {
			yield(zero, err)
			return
		}
		for _, item := range items {
			q.cache.save(ctx, Key{Kind: q.coll.kind(), PK: item.Key()}, item)
		}
		for _, item := range items {
			if !yield(item, nil) {
				return
			}
		}
	}
}

func (q Query[T]) lookup(ctx context.Context, src Source, scope string, pk string) (T, error) {
	key := Key{Kind: q.coll.kind(), PK: pk}

	var cached T
	if q.cache.load(ctx, key, &cached) {
		return cached, nil
	}

	item, err := q.coll.detail(ctx, q.cache, src, scope, pk)
	if err != nil {
		var zero T
		if errors.Is(err, domain.ErrNotFound) {
			return zero, &DoesNotExistError{Kind: q.coll.kind(), PK: pk}
		}
		return zero, err
	}

	q.cache.save(ctx, key, item)
	return item, nil
}

// Collect evaluates the query into a slice.
func (q Query[T]) Collect(ctx context.Context) ([]T, error) {
	items := make([]T, 0)
	for item, err := range q.All(ctx) {
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// Get returns the record with primary key pk or a DoesNotExistError.
func (q Query[T]) Get(ctx context.Context, pk string) (T, error) {
	for item, err := range q.Filter(FilterPK, pk).All(ctx) {
		return item, err
	}

	var zero T
	return zero, &DoesNotExistError{Kind: q.coll.kind(), PK: pk}
}

// Page is one page of a listing.
type Page[T any] struct {
	Items    []T  `json:"items"`
	Page     int  `json:"page"`
	PageSize int  `json:"pageSize"`
	Total    int  `json:"total"`
	HasNext  bool `json:"hasNext"`
}

// Page evaluates the query and returns the 1-based page. Out of range
// pages are empty.
func (q Query[T]) Page(ctx context.Context, page, pageSize int) (Page[T], error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	pageSize = min(pageSize, MaxPageSize)

	items, err := q.Collect(ctx)
	if err != nil {
		return Page[T]{}, err
	}

	start := min((page-1)*pageSize, len(items))
	end := min(start+pageSize, len(items))

	return Page[T]{
		Items:    items[start:end],
		Page:     page,
		PageSize: pageSize,
		Total:    len(items),
		HasNext:  end < len(items),
	}, nil
}

type audienceCollection struct{}

func (audienceCollection) kind() Kind { return KindAudience }

func (audienceCollection) scope(filters map[string]string) (string, map[string]string) {
	return "", filters
}

func (audienceCollection) list(ctx context.Context, _ *Cache, src Source, _ string) ([]domain.Audience, error) {
	return src.GetAudiences(ctx)
}

func (audienceCollection) detail(ctx context.Context, _ *Cache, src Source, _ string, pk string) (domain.Audience, error) {
	audience, err := src.GetAudience(ctx, pk)
	if err != nil {
		return domain.Audience{}, err
	}
	if audience == nil {
		return domain.Audience{}, domain.ErrNotFound
	}
	return *audience, nil
}

type segmentCollection struct{}

func (segmentCollection) kind() Kind { return KindSegment }

// scope takes the audience from the "audience" filter, or from the
// composite primary key when only that is given.
func (segmentCollection) scope(filters map[string]string) (string, map[string]string) {
	if audienceID, ok := filters[FilterAudience]; ok {
		delete(filters, FilterAudience)
		return audienceID, filters
	}
	if pk, ok := filters[FilterPK]; ok {
		audienceID, _, _ := domain.SplitSegmentID(pk)
		return audienceID, filters
	}
	return "", filters
}

// list is empty when no audience is selected yet.
func (segmentCollection) list(ctx context.Context, c *Cache, src Source, audienceID string) ([]domain.AudienceSegment, error) {
	if audienceID == "" {
		return []domain.AudienceSegment{}, nil
	}
	return c.refreshSegments(ctx, src, audienceID)
}

func (segmentCollection) detail(ctx context.Context, c *Cache, src Source, audienceID string, pk string) (domain.AudienceSegment, error) {
	if audienceID == "" {
		return domain.AudienceSegment{}, domain.ErrNotFound
	}

	segments, err := c.audienceSegments(ctx, src, audienceID)
	if err != nil {
		return domain.AudienceSegment{}, err
	}
	for _, segment := range segments {
		if segment.ID == pk {
			return segment, nil
		}
	}
	return domain.AudienceSegment{}, domain.ErrNotFound
}
