package main

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/airtable-api/internal/catalog"
	"github.com/sells-group/airtable-api/internal/geo"
	"github.com/sells-group/airtable-api/internal/geoarea"
)

var (
	areasKind        string
	areasConcurrency int
)

var areasCmd = &cobra.Command{
	Use:   "areas",
	Short: "Inspect and maintain the geographic area catalog",
}

var areasListCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalog areas",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, cfg, "catalog")
		if err != nil {
			return err
		}
		defer env.Close()

		areas, err := loadAreas(ctx, env.Catalog, areasKind)
		if err != nil {
			return err
		}
		formatAreas(cmd.OutOrStdout(), areas)
		return nil
	},
}

var areasValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check polygon coordinates and print them as normalized WKT",
	Long:  "Parses the polygon of every Polygon area. Exits non-zero when any polygon is malformed.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, cfg, "catalog")
		if err != nil {
			return err
		}
		defer env.Close()

		areas, err := loadAreas(ctx, env.Catalog, areasKind)
		if err != nil {
			return err
		}
		if n := validateAreas(cmd.OutOrStdout(), areas); n > 0 {
			return eris.Errorf("areas validate: %d area(s) failed", n)
		}
		return nil
	},
}

var areasWarmCmd = &cobra.Command{
	Use:   "warm",
	Short: "Geocode areas that have no stored geocode",
	Long:  "Fills the geocode cache for every City, Region, State and Country area whose record carries no geocode payload.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, cfg, "resolve")
		if err != nil {
			return err
		}
		defer env.Close()

		areas, err := loadAreas(ctx, env.Catalog, areasKind)
		if err != nil {
			return err
		}

		concurrency := areasConcurrency
		if concurrency <= 0 {
			concurrency = cfg.Catalog.WarmConcurrency
		}
		report := warmAreas(ctx, env.geocoder(), areas, concurrency)
		zap.L().Info("areas warm complete",
			zap.Int("geocoded", report.Geocoded),
			zap.Int("unresolved", report.Unresolved),
			zap.Int("failed", report.Failed),
			zap.Int("skipped", report.Skipped),
		)
		if report.Failed > 0 {
			return eris.Errorf("areas warm: %d area(s) failed to geocode", report.Failed)
		}
		return nil
	},
}

// loadAreas returns the areas of kind, or of every kind when kind is empty.
func loadAreas(ctx context.Context, src catalog.Source, kind string) ([]geoarea.Area, error) {
	kinds := geoarea.Kinds
	if kind != "" {
		k := geoarea.Kind(kind)
		if !k.Valid() {
			return nil, eris.Wrapf(catalog.ErrUnknownKind, "kind %q", kind)
		}
		kinds = []geoarea.Kind{k}
	}

	var all []geoarea.Area
	for _, k := range kinds {
		areas, err := src.ListAreas(ctx, k)
		if err != nil {
			return nil, eris.Wrapf(err, "list %s", k)
		}
		all = append(all, areas...)
	}
	return all, nil
}

// formatAreas writes a tabular listing of areas to out.
func formatAreas(out io.Writer, areas []geoarea.Area) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tKIND\tTYPE\tNAME\tRADIUS\tGEOCODED")
	_, _ = fmt.Fprintln(w, "--\t----\t----\t----\t------\t--------")
	for i := range areas {
		a := &areas[i]
		radius := "-"
		if a.Type == geoarea.TypeCity {
			radius = fmt.Sprintf("%.0f", a.Radius())
		}
		geocoded := "no"
		if a.Geocode != nil {
			geocoded = "yes"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", a.ID, a.Kind, a.Type, a.Name, radius, geocoded)
	}
	_ = w.Flush()
}

// validateAreas reports every Polygon area and returns how many are
// malformed.
func validateAreas(out io.Writer, areas []geoarea.Area) int {
	failed := 0
	for i := range areas {
		a := &areas[i]
		if a.Type != geoarea.TypePolygon {
			continue
		}
		ring, err := geo.ParsePolygon(a.PolygonCoordinates)
		if err == nil {
			var wkt string
			wkt, err = geo.FormatPolygon(ring)
			if err == nil {
				c := geo.Centroid(ring)
				_, _ = fmt.Fprintf(out, "ok\t%s\t%s\t%d points\tcentroid %.5f,%.5f\t%s\n",
					a.ID, a.Name, len(ring), c.Lat, c.Lng, wkt)
				continue
			}
		}
		failed++
		_, _ = fmt.Fprintf(out, "FAIL\t%s\t%s\t%v\n", a.ID, a.Name, err)
	}
	return failed
}

// warmReport counts the outcomes of warmAreas.
type warmReport struct {
	Geocoded   int
	Unresolved int
	Failed     int
	Skipped    int
}

// warmAreas geocodes, through g, the name of every area that needs a place
// and has no stored geocode. At most concurrency lookups run at once.
func warmAreas(ctx context.Context, g geoarea.Geocoder, areas []geoarea.Area, concurrency int) warmReport {
	var geocoded, unresolved, failed, skipped atomic.Int64

	eg, gctx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		eg.SetLimit(concurrency)
	}
	for i := range areas {
		a := &areas[i]
		if !needsPlace(a) || g == nil {
			skipped.Add(1)
			continue
		}
		eg.Go(func() error {
			p, err := a.Place(gctx, g)
			switch {
			case err != nil:
				failed.Add(1)
				zap.L().Warn("areas warm: geocode failed",
					zap.String("area_id", a.ID),
					zap.String("area_name", a.Name),
					zap.Error(err),
				)
			case p == nil:
				unresolved.Add(1)
				zap.L().Warn("areas warm: area name has no geocode result",
					zap.String("area_id", a.ID),
					zap.String("area_name", a.Name),
				)
			default:
				geocoded.Add(1)
			}
			return nil
		})
	}
	_ = eg.Wait()

	return warmReport{
		Geocoded:   int(geocoded.Load()),
		Unresolved: int(unresolved.Load()),
		Failed:     int(failed.Load()),
		Skipped:    int(skipped.Load()),
	}
}

// needsPlace reports whether resolution geocodes a's name.
func needsPlace(a *geoarea.Area) bool {
	if a.Geocode != nil || a.Name == "" {
		return false
	}
	switch a.Type {
	case geoarea.TypeCity, geoarea.TypeRegion, geoarea.TypeState, geoarea.TypeCountry:
		return true
	}
	return false
}

func init() {
	areasCmd.PersistentFlags().StringVar(&areasKind, "kind", "", "area kind (default all kinds)")
	areasWarmCmd.Flags().IntVar(&areasConcurrency, "concurrency", 0, "concurrent geocode lookups (default from config)")
	areasCmd.AddCommand(areasListCmd, areasValidateCmd, areasWarmCmd)
	rootCmd.AddCommand(areasCmd)
}
