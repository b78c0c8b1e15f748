package catalog

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/airtable-api/internal/cache"
	"github.com/sells-group/airtable-api/internal/geoarea"
)

// Default cache bounds.
const (
	DefaultListEntries   = 32
	DefaultRecordEntries = 1024
	DefaultTTL           = 10 * time.Minute
)

const templateListKey = "templates"

// CacheOptions bounds the caches of a CachedSource. Zero values use the
// defaults.
type CacheOptions struct {
	ListEntries   int
	ListTTL       time.Duration
	RecordEntries int
	RecordTTL     time.Duration
}

func (o CacheOptions) withDefaults() CacheOptions {
	if o.ListEntries <= 0 {
		o.ListEntries = DefaultListEntries
	}
	if o.ListTTL <= 0 {
		o.ListTTL = DefaultTTL
	}
	if o.RecordEntries <= 0 {
		o.RecordEntries = DefaultRecordEntries
	}
	if o.RecordTTL <= 0 {
		o.RecordTTL = DefaultTTL
	}
	return o
}

// CachedSource wraps a Source with size and TTL bounded caches. Errors are
// never cached.
type CachedSource struct {
	next Source

	areaLists     *cache.LRU[[]geoarea.Area]
	templateLists *cache.LRU[[]geoarea.Template]
	areas         *cache.LRU[*geoarea.Area]
	templates     *cache.LRU[*geoarea.Template]
	partners      *cache.LRU[*Partner]
}

// NewCachedSource creates a caching decorator for next.
func NewCachedSource(next Source, opts CacheOptions) *CachedSource {
	opts = opts.withDefaults()
	return &CachedSource{
		next:          next,
		areaLists:     cache.NewLRU[[]geoarea.Area](opts.ListEntries, opts.ListTTL),
		templateLists: cache.NewLRU[[]geoarea.Template](opts.ListEntries, opts.ListTTL),
		areas:         cache.NewLRU[*geoarea.Area](opts.RecordEntries, opts.RecordTTL),
		templates:     cache.NewLRU[*geoarea.Template](opts.RecordEntries, opts.RecordTTL),
		partners:      cache.NewLRU[*Partner](opts.RecordEntries, opts.RecordTTL),
	}
}

// ListAreas implements Source.
func (c *CachedSource) ListAreas(ctx context.Context, kind geoarea.Kind) ([]geoarea.Area, error) {
	return c.areaLists.GetOrLoad(string(kind), func() ([]geoarea.Area, error) {
		return c.next.ListAreas(ctx, kind)
	})
}

// GetArea implements Source.
func (c *CachedSource) GetArea(ctx context.Context, kind geoarea.Kind, id string) (*geoarea.Area, error) {
	a, err := c.areas.GetOrLoad(string(kind)+"/"+id, func() (*geoarea.Area, error) {
		return c.next.GetArea(ctx, kind, id)
	})
	if err != nil {
		return nil, err
	}
	cp := *a
	return &cp, nil
}

// ListTemplates implements Source.
func (c *CachedSource) ListTemplates(ctx context.Context) ([]geoarea.Template, error) {
	return c.templateLists.GetOrLoad(templateListKey, func() ([]geoarea.Template, error) {
		return c.next.ListTemplates(ctx)
	})
}

// GetTemplate implements Source.
func (c *CachedSource) GetTemplate(ctx context.Context, id string) (*geoarea.Template, error) {
	t, err := c.templates.GetOrLoad(id, func() (*geoarea.Template, error) {
		return c.next.GetTemplate(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	cp := *t
	return &cp, nil
}

// FindPartnerBySyncedRecordID implements Source.
func (c *CachedSource) FindPartnerBySyncedRecordID(ctx context.Context, syncedID string) (*Partner, error) {
	p, err := c.partners.GetOrLoad(syncedID, func() (*Partner, error) {
		return c.next.FindPartnerBySyncedRecordID(ctx, syncedID)
	})
	if err != nil {
		return nil, err
	}
	cp := *p
	return &cp, nil
}

// Reload fetches every area list and the template list from the wrapped
// source and swaps them in. Cached records are dropped only after all lists
// load; on error the cache is left as it was.
func (c *CachedSource) Reload(ctx context.Context, limit int) error {
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}

	lists := make([][]geoarea.Area, len(geoarea.Kinds))
	for i, kind := range geoarea.Kinds {
		g.Go(func() error {
			areas, err := c.next.ListAreas(gctx, kind)
			if err != nil {
				return err
			}
			lists[i] = areas
			return nil
		})
	}
	var templates []geoarea.Template
	g.Go(func() error {
		var err error
		templates, err = c.next.ListTemplates(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return eris.Wrap(err, "catalog: reload")
	}

	c.areas.Invalidate("")
	c.templates.Invalidate("")
	c.partners.Invalidate("")
	for i, kind := range geoarea.Kinds {
		c.areaLists.Set(string(kind), lists[i])
	}
	c.templateLists.Set(templateListKey, templates)
	return nil
}

// Invalidate drops every cached list and record.
func (c *CachedSource) Invalidate() {
	c.areaLists.Invalidate("")
	c.templateLists.Invalidate("")
	c.areas.Invalidate("")
	c.templates.Invalidate("")
	c.partners.Invalidate("")
}

// Stats reports per-cache statistics keyed by cache name.
func (c *CachedSource) Stats() map[string]cache.Stats {
	return map[string]cache.Stats{
		"area_lists":     c.areaLists.Stats(),
		"template_lists": c.templateLists.Stats(),
		"areas":          c.areas.Stats(),
		"templates":      c.templates.Stats(),
		"partners":       c.partners.Stats(),
	}
}
