// Package catalog loads geographic areas, auto-response templates and
// partners from Airtable or a local YAML file.
package catalog

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/airtable-api/internal/geoarea"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = eris.New("catalog: not found")

// ErrUnknownKind is returned for an area kind the source has no table for.
var ErrUnknownKind = eris.New("catalog: unknown area kind")

// Partner is a person record from the schools base.
type Partner struct {
	ID     string   `json:"id" yaml:"id"`
	Name   string   `json:"name,omitempty" yaml:"name,omitempty"`
	Email  string   `json:"email,omitempty" yaml:"email,omitempty"`
	Active string   `json:"active,omitempty" yaml:"active,omitempty"`
	Roles  []string `json:"roles,omitempty" yaml:"roles,omitempty"`
	Hubs   []string `json:"hubs,omitempty" yaml:"hubs,omitempty"`

	// SyncedRecordID is the ID other bases use to reference this partner.
	SyncedRecordID string `json:"-" yaml:"synced_record_id,omitempty"`
}

// Source provides catalog records. Returned slices are shared and must not
// be modified.
type Source interface {
	ListAreas(ctx context.Context, kind geoarea.Kind) ([]geoarea.Area, error)
	GetArea(ctx context.Context, kind geoarea.Kind, id string) (*geoarea.Area, error)
	ListTemplates(ctx context.Context) ([]geoarea.Template, error)
	GetTemplate(ctx context.Context, id string) (*geoarea.Template, error)
	// FindPartnerBySyncedRecordID translates a partner reference from the
	// geo mapping base into the schools base record.
	FindPartnerBySyncedRecordID(ctx context.Context, syncedID string) (*Partner, error)
}

// IsNotFound reports whether err is a catalog not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// TemplateCatalog is everything template selection runs over.
type TemplateCatalog struct {
	Templates []geoarea.Template
	Areas     []geoarea.Area
}

// LoadTemplateCatalog fetches templates and geographic areas concurrently.
func LoadTemplateCatalog(ctx context.Context, src Source) (*TemplateCatalog, error) {
	var tc TemplateCatalog
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		templates, err := src.ListTemplates(gctx)
		if err != nil {
			return err
		}
		tc.Templates = templates
		return nil
	})
	g.Go(func() error {
		areas, err := src.ListAreas(gctx, geoarea.KindGeographicAreas)
		if err != nil {
			return err
		}
		tc.Areas = areas
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "catalog: load template catalog")
	}
	return &tc, nil
}

// Preload lists every area kind and the templates with at most limit
// requests in flight. It is used to fill a CachedSource before serving.
func Preload(ctx context.Context, src Source, limit int) error {
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for _, kind := range geoarea.Kinds {
		g.Go(func() error {
			_, err := src.ListAreas(gctx, kind)
			return err
		})
	}
	g.Go(func() error {
		_, err := src.ListTemplates(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return eris.Wrap(err, "catalog: preload")
	}
	return nil
}
