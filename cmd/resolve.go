package main

import (
	"context"
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/airtable-api/internal/catalog"
	"github.com/sells-group/airtable-api/internal/geoarea"
	"github.com/sells-group/airtable-api/pkg/geocode"
)

// kindTemplates selects auto-response template resolution in --kind.
const kindTemplates = "templates"

var resolveFlags struct {
	address         string
	kind            string
	contactType     string
	language        string
	marketingSource string
}

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve an address to its geographic area or auto-response template",
	Long: "Geocodes --address and prints the matching record as JSON. --kind is one of " +
		"geo_area_contacts, geo_area_target_communities, geographic_areas or templates.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, cfg, "resolve")
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := resolveAddress(ctx, env.Catalog, env.geocoder(), resolveOptions{
			Address: resolveFlags.address,
			Kind:    resolveFlags.kind,
			Query: geoarea.TemplateQuery{
				ContactType:     resolveFlags.contactType,
				Language:        resolveFlags.language,
				MarketingSource: resolveFlags.marketingSource,
			},
			Strict: cfg.Resolver.StrictPolygons,
		})
		if err != nil {
			return err
		}
		return writeResult(cmd.OutOrStdout(), res)
	},
}

type resolveOptions struct {
	Address string
	Kind    string
	Query   geoarea.TemplateQuery
	Strict  bool
}

type resolveResult struct {
	Address          string            `json:"address"`
	FormattedAddress string            `json:"formatted_address"`
	Kind             string            `json:"kind"`
	Match            geoarea.Match     `json:"match,omitempty"`
	Area             *geoarea.Area     `json:"area,omitempty"`
	Template         *geoarea.Template `json:"template,omitempty"`
}

// resolveAddress resolves opts.Address against the areas of opts.Kind, or
// selects its auto-response template when the kind is "templates".
func resolveAddress(ctx context.Context, src catalog.Source, g geoarea.Geocoder, opts resolveOptions) (*resolveResult, error) {
	if opts.Address == "" {
		return nil, eris.New("resolve: --address is required")
	}
	if g == nil {
		return nil, eris.New("resolve: geocoding is not configured")
	}
	resolver := geoarea.NewResolver(g, geoarea.WithStrictPolygons(opts.Strict))
	res := &resolveResult{Address: opts.Address, Kind: opts.Kind}

	if opts.Kind == kindTemplates {
		point, err := geocode.Require(ctx, g, opts.Address)
		if err != nil {
			return nil, err
		}
		res.FormattedAddress = point.FormattedAddress

		tc, err := catalog.LoadTemplateCatalog(ctx, src)
		if err != nil {
			return nil, err
		}
		t, area, err := resolver.SelectTemplate(ctx, point, opts.Query, tc.Templates, tc.Areas)
		if err != nil {
			return nil, eris.Wrap(err, "resolve: select template")
		}
		if t == nil {
			return nil, eris.Wrapf(catalog.ErrNotFound, "resolve: no auto-response template for %q", opts.Address)
		}
		res.Template, res.Area = t, area
		return res, nil
	}

	kind := geoarea.Kind(opts.Kind)
	if !kind.Valid() {
		return nil, eris.Wrapf(catalog.ErrUnknownKind, "resolve: kind %q", opts.Kind)
	}
	areas, err := src.ListAreas(ctx, kind)
	if err != nil {
		return nil, err
	}
	area, point, match, err := resolver.ResolveAddress(ctx, opts.Address, areas)
	if err != nil {
		return nil, err
	}
	res.FormattedAddress = point.FormattedAddress
	res.Match = match
	res.Area = area
	return res, nil
}

func writeResult(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	f := resolveCmd.Flags()
	f.StringVar(&resolveFlags.address, "address", "", "street address to resolve (required)")
	f.StringVar(&resolveFlags.kind, "kind", string(geoarea.KindGeographicAreas), "area kind, or templates")
	f.StringVar(&resolveFlags.contactType, "contact-type", "", "contact type for template selection")
	f.StringVar(&resolveFlags.language, "language", "", "language for template selection (default English)")
	f.StringVar(&resolveFlags.marketingSource, "marketing-source", "", "marketing source for template selection")
	_ = resolveCmd.MarkFlagRequired("address")
	rootCmd.AddCommand(resolveCmd)
}
