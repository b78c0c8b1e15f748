package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/airtable-api/internal/catalog"
	"github.com/sells-group/airtable-api/internal/geoarea"
	"github.com/sells-group/airtable-api/pkg/geocode"
)

const (
	helloMessage     = "¡Hola, mundo!"
	templateResource = "Auto-Response Email Template"

	// partnerLookups bounds concurrent partner lookups while rendering a list.
	partnerLookups = 8
)

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"message": helloMessage})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	checks := make(map[string]string, len(s.health))
	for name, check := range s.health {
		if err := check(r); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}
	body := map[string]any{"status": "ok", "checks": checks}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	writeJSONStatus(w, status, body)
}

func (s *Server) handleListAreas(route areaRoute) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		areas, err := s.catalog.ListAreas(r.Context(), route.kind)
		if err != nil {
			fail(w, r, err, route.resource)
			return
		}
		writeJSON(w, Document{
			Data:  s.areaRecords(r.Context(), route, areas),
			Links: self(route.path),
		})
	}
}

// areaRecords renders areas in order, resolving partner relationships
// concurrently.
func (s *Server) areaRecords(ctx context.Context, route areaRoute, areas []geoarea.Area) []Record {
	records := make([]Record, len(areas))
	var g errgroup.Group
	g.SetLimit(partnerLookups)
	for i := range areas {
		g.Go(func() error {
			records[i] = s.areaRecord(ctx, route, &areas[i])
			return nil
		})
	}
	_ = g.Wait()
	return records
}

func (s *Server) handleGetArea(route areaRoute) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		area, err := s.catalog.GetArea(r.Context(), route.kind, id)
		if err != nil {
			fail(w, r, err, route.resource)
			return
		}
		writeJSON(w, Document{
			Data:  s.areaRecord(r.Context(), route, area),
			Links: self(route.path + "/" + id),
		})
	}
}

func (s *Server) handleAreaForAddress(route areaRoute) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		address := addressParam(r)
		if address == "" {
			writeError(w, http.StatusBadRequest, msgAddressRequired)
			return
		}

		ctx := r.Context()
		areas, err := s.catalog.ListAreas(ctx, route.kind)
		if err != nil {
			fail(w, r, err, route.resource)
			return
		}

		area, place, match, err := s.resolvers[route.kind].ResolveAddress(ctx, address, areas)
		if err != nil {
			fail(w, r, err, route.resource)
			return
		}

		writeJSON(w, Document{
			Data:  s.areaRecord(ctx, route, area),
			Links: self(r.URL.RequestURI()),
			Meta: map[string]any{
				"match":             match,
				"formatted_address": place.FormattedAddress,
			},
		})
	}
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := s.catalog.ListTemplates(r.Context())
	if err != nil {
		fail(w, r, err, templateResource)
		return
	}
	records := make([]Record, 0, len(templates))
	for i := range templates {
		records = append(records, templateRecord(&templates[i]))
	}
	writeJSON(w, Document{Data: records, Links: self("/auto_response_email_templates")})
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	t, err := s.catalog.GetTemplate(r.Context(), id)
	if err != nil {
		fail(w, r, err, templateResource)
		return
	}
	writeJSON(w, Document{
		Data:  templateRecord(t),
		Links: self("/auto_response_email_templates/" + id),
	})
}

func (s *Server) handleTemplateForAddress(w http.ResponseWriter, r *http.Request) {
	address := addressParam(r)
	if address == "" {
		writeError(w, http.StatusBadRequest, msgAddressRequired)
		return
	}
	q := r.URL.Query()
	query := geoarea.TemplateQuery{
		ContactType:     q.Get("contact_type"),
		Language:        q.Get("language"),
		MarketingSource: q.Get("marketing_source"),
	}

	ctx := r.Context()
	t, area, place, err := s.selectTemplate(ctx, address, query)
	if err != nil {
		fail(w, r, err, templateResource)
		return
	}

	writeJSON(w, Document{
		Data:  templateRecord(t),
		Links: self(r.URL.RequestURI()),
		Meta: map[string]any{
			"geographic_area":   area.ID,
			"formatted_address": place.FormattedAddress,
		},
	})
}

// selectTemplate geocodes address and picks its auto-response template.
func (s *Server) selectTemplate(ctx context.Context, address string, q geoarea.TemplateQuery) (*geoarea.Template, *geoarea.Area, *geocode.Place, error) {
	if s.geocoder == nil {
		return nil, nil, nil, eris.New("api: no geocoder configured")
	}
	point, err := geocode.Require(ctx, s.geocoder, address)
	if err != nil {
		return nil, nil, nil, err
	}

	tc, err := catalog.LoadTemplateCatalog(ctx, s.catalog)
	if err != nil {
		return nil, nil, nil, err
	}

	t, area, err := s.resolvers[templatesKind].SelectTemplate(ctx, point, q, tc.Templates, tc.Areas)
	if err != nil {
		return nil, nil, nil, err
	}
	if t == nil {
		return nil, nil, point, eris.Wrapf(catalog.ErrNotFound, "no template for address %q", address)
	}
	return t, area, point, nil
}

func addressParam(r *http.Request) string {
	return strings.TrimSpace(r.URL.Query().Get("address"))
}
