package geoarea

import (
	"context"
	"slices"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/cases"

	"github.com/sells-group/airtable-api/pkg/geocode"
)

// DefaultLanguage is assumed when a query or template has no language.
const DefaultLanguage = "English"

const wildcard = "any"

// Template is an auto-response e-mail template scoped to a set of
// geographic areas.
type Template struct {
	ID                 string   `json:"id" yaml:"id"`
	GeographicAreaIDs  []string `json:"geographic_areas,omitempty" yaml:"geographic_areas,omitempty"`
	SendgridTemplateID string   `json:"sendgrid_template_id,omitempty" yaml:"sendgrid_template_id,omitempty"`
	ContactType        string   `json:"contact_type,omitempty" yaml:"contact_type,omitempty"`
	Language           string   `json:"language,omitempty" yaml:"language,omitempty"`
	MarketingSource    string   `json:"marketing_source,omitempty" yaml:"marketing_source,omitempty"`
	FirstContactEmail  string   `json:"first_contact_email,omitempty" yaml:"first_contact_email,omitempty"`
}

// TemplateQuery describes the contact an auto-response is being chosen for.
type TemplateQuery struct {
	ContactType     string
	Language        string
	MarketingSource string
}

// templatePass selects which query dimensions must match.
type templatePass struct {
	contactType     bool
	language        bool
	marketingSource bool
}

// Passes run strictest first: drop marketing source, then language, then
// contact type.
var templatePasses = []templatePass{
	{contactType: true, language: true, marketingSource: true},
	{contactType: true, language: true},
	{contactType: true},
	{},
}

// SelectTemplate picks the template for a contact at point. Each pass filters
// templates by the query, resolves point over the areas those templates
// reference, and returns the most specific template attached to the matched
// area. The returned area is the one that matched. A nil template means no
// pass matched.
func (r *Resolver) SelectTemplate(ctx context.Context, point *geocode.Place, q TemplateQuery, templates []Template, areas []Area) (*Template, *Area, error) {
	for i, pass := range templatePasses {
		candidates := filterTemplates(templates, q, pass)
		if len(candidates) == 0 {
			continue
		}

		sub := referencedAreas(candidates, areas)
		if len(sub) == 0 {
			continue
		}

		area, match, err := r.Resolve(ctx, point, sub)
		if err != nil {
			return nil, nil, err
		}
		if area == nil {
			continue
		}

		for _, t := range candidates {
			if slices.Contains(t.GeographicAreaIDs, area.ID) {
				zap.L().Debug("selected auto-response template",
					zap.String("template_id", t.ID),
					zap.String("area_id", area.ID),
					zap.String("match", string(match)),
					zap.Int("pass", i+1),
				)
				tmpl := *t
				return &tmpl, area, nil
			}
		}
	}
	return nil, nil, nil
}

// filterTemplates returns the templates matching q on the dimensions pass
// requires, most specific first. Ties keep catalog order.
func filterTemplates(templates []Template, q TemplateQuery, pass templatePass) []*Template {
	var out []*Template
	for i := range templates {
		t := &templates[i]
		if pass.contactType && !matchesWildcard(t.ContactType, q.ContactType) {
			continue
		}
		if pass.language && !matchesLanguage(t.Language, q.Language) {
			continue
		}
		if pass.marketingSource && !matchesWildcard(t.MarketingSource, q.MarketingSource) {
			continue
		}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return specificity(out[i]) > specificity(out[j])
	})
	return out
}

// referencedAreas returns copies of the areas any candidate references, in
// catalog order.
func referencedAreas(candidates []*Template, areas []Area) []Area {
	ids := make(map[string]struct{})
	for _, t := range candidates {
		for _, id := range t.GeographicAreaIDs {
			ids[id] = struct{}{}
		}
	}
	var sub []Area
	for _, a := range areas {
		if _, ok := ids[a.ID]; ok {
			sub = append(sub, a)
		}
	}
	return sub
}

func specificity(t *Template) int {
	n := 0
	for _, v := range []string{t.ContactType, t.Language, t.MarketingSource} {
		if !isWildcard(v) {
			n++
		}
	}
	return n
}

func isWildcard(v string) bool {
	f := fold(v)
	return f == "" || f == wildcard
}

// matchesWildcard compares a template value to a query value. Wildcard
// template values match anything; a wildcard query only matches wildcard
// templates.
func matchesWildcard(templateValue, queryValue string) bool {
	if isWildcard(templateValue) {
		return true
	}
	return fold(templateValue) == fold(queryValue)
}

func matchesLanguage(templateValue, queryValue string) bool {
	if fold(templateValue) == wildcard {
		return true
	}
	return fold(orDefault(templateValue, DefaultLanguage)) == fold(orDefault(queryValue, DefaultLanguage))
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func fold(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}
