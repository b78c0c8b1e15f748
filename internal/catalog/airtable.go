package catalog

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/airtable-api/internal/geoarea"
	"github.com/sells-group/airtable-api/pkg/airtable"
)

// Tables names the Airtable bases and tables the catalog reads.
type Tables struct {
	GeoBaseID         string
	SchoolsBaseID     string
	Contacts          string
	TargetCommunities string
	GeographicAreas   string
	Templates         string
	Partners          string
}

// Column names shared by every area table.
const (
	colAreaType           = "Area Type"
	colCityRadius         = "City Radius"
	colPolygonCoordinates = "Polygon Coordinates"
	colLatitude           = "Latitude"
	colLongitude          = "Longitude"
	colGeocode            = "Geocode"
	colFirstContactEmail  = "First Contact Email"
	colSendgridTemplateID = "Sendgrid Template ID"
	colPartnerRecordID    = "Record ID"
)

type relationColumns struct {
	id       string
	syncedID string
	name     string
}

// areaSchema lists the columns that differ between area tables.
type areaSchema struct {
	name            string
	assignedRSE     *relationColumns
	hub             *relationColumns
	targetCommunity *relationColumns
	templates       string
}

var rseColumns = &relationColumns{
	id:       "Assigned RSE",
	syncedID: "Assigned RSE Synced Record ID",
	name:     "Assigned RSE Name",
}

var schemas = map[geoarea.Kind]areaSchema{
	geoarea.KindContacts: {
		name:        "Area Name",
		assignedRSE: rseColumns,
		hub:         &relationColumns{id: "Hub", syncedID: "Hub Synced Record ID", name: "Hub Name"},
	},
	geoarea.KindTargetCommunities: {
		name: "Area Name",
		hub:  &relationColumns{syncedID: "Associated Hub Synced Record ID", name: "Associated Hub"},
		targetCommunity: &relationColumns{
			id:       "Target Community",
			syncedID: "Target Community Synced Record ID",
			name:     "Target Community Name",
		},
	},
	geoarea.KindGeographicAreas: {
		name:        "Geographic Area",
		assignedRSE: rseColumns,
		hub:         &relationColumns{syncedID: "Hub Synced Record ID", name: "Associated Hub Name"},
		templates:   "Auto-Response Email Templates",
	},
}

// AirtableSource reads the catalog from the geo mapping and schools bases.
type AirtableSource struct {
	client airtable.Client
	tables Tables
}

// NewAirtableSource creates a Source backed by client.
func NewAirtableSource(client airtable.Client, tables Tables) *AirtableSource {
	return &AirtableSource{client: client, tables: tables}
}

func (s *AirtableSource) areaTable(kind geoarea.Kind) (string, error) {
	switch kind {
	case geoarea.KindContacts:
		return s.tables.Contacts, nil
	case geoarea.KindTargetCommunities:
		return s.tables.TargetCommunities, nil
	case geoarea.KindGeographicAreas:
		return s.tables.GeographicAreas, nil
	default:
		return "", eris.Wrapf(ErrUnknownKind, "catalog: kind %q", kind)
	}
}

// ListAreas returns every record of kind in table order.
func (s *AirtableSource) ListAreas(ctx context.Context, kind geoarea.Kind) ([]geoarea.Area, error) {
	table, err := s.areaTable(kind)
	if err != nil {
		return nil, err
	}
	records, err := s.client.All(ctx, s.tables.GeoBaseID, table, airtable.ListOptions{})
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: list %s", kind)
	}
	areas := make([]geoarea.Area, len(records))
	for i := range records {
		areas[i] = areaFromRecord(kind, &records[i])
	}
	return areas, nil
}

// GetArea returns one record of kind.
func (s *AirtableSource) GetArea(ctx context.Context, kind geoarea.Kind, id string) (*geoarea.Area, error) {
	table, err := s.areaTable(kind)
	if err != nil {
		return nil, err
	}
	rec, err := s.client.Get(ctx, s.tables.GeoBaseID, table, id)
	if err != nil {
		return nil, translate(err, "catalog: get %s %s", kind, id)
	}
	area := areaFromRecord(kind, rec)
	return &area, nil
}

// ListTemplates returns every auto-response e-mail template.
func (s *AirtableSource) ListTemplates(ctx context.Context) ([]geoarea.Template, error) {
	records, err := s.client.All(ctx, s.tables.GeoBaseID, s.tables.Templates, airtable.ListOptions{})
	if err != nil {
		return nil, eris.Wrap(err, "catalog: list templates")
	}
	templates := make([]geoarea.Template, len(records))
	for i := range records {
		templates[i] = templateFromRecord(&records[i])
	}
	return templates, nil
}

// GetTemplate returns one auto-response e-mail template.
func (s *AirtableSource) GetTemplate(ctx context.Context, id string) (*geoarea.Template, error) {
	rec, err := s.client.Get(ctx, s.tables.GeoBaseID, s.tables.Templates, id)
	if err != nil {
		return nil, translate(err, "catalog: get template %s", id)
	}
	t := templateFromRecord(rec)
	return &t, nil
}

// FindPartnerBySyncedRecordID looks up the schools base partner whose
// "Record ID" column equals syncedID.
func (s *AirtableSource) FindPartnerBySyncedRecordID(ctx context.Context, syncedID string) (*Partner, error) {
	if s.tables.SchoolsBaseID == "" {
		return nil, eris.Wrap(ErrNotFound, "catalog: schools base not configured")
	}
	rec, err := s.client.First(ctx, s.tables.SchoolsBaseID, s.tables.Partners, airtable.Equal(colPartnerRecordID, syncedID))
	if err != nil {
		return nil, translate(err, "catalog: partner with synced id %s", syncedID)
	}
	return &Partner{
		ID:             rec.ID,
		Name:           firstString(rec.Fields["Name"]),
		Email:          firstString(rec.Fields["Email"]),
		Active:         firstString(rec.Fields["Currently active"]),
		Roles:          stringList(rec.Fields["Roles"]),
		Hubs:           stringList(rec.Fields["Hubs"]),
		SyncedRecordID: syncedID,
	}, nil
}

func translate(err error, format string, args ...any) error {
	if airtable.IsNotFound(err) {
		return eris.Wrapf(ErrNotFound, format, args...)
	}
	return eris.Wrapf(err, format, args...)
}

func areaFromRecord(kind geoarea.Kind, rec *airtable.Record) geoarea.Area {
	schema := schemas[kind]
	f := rec.Fields
	area := geoarea.Area{
		ID:                 rec.ID,
		Kind:               kind,
		Name:               firstString(f[schema.name]),
		Type:               geoarea.AreaType(firstString(f[colAreaType])),
		CityRadius:         firstInt(f[colCityRadius], geoarea.DefaultCityRadius),
		PolygonCoordinates: firstString(f[colPolygonCoordinates]),
		Geocode:            parseGeocode(rec.ID, f[colGeocode]),
		Latitude:           firstFloatPtr(f[colLatitude]),
		Longitude:          firstFloatPtr(f[colLongitude]),
		FirstContactEmail:  firstString(f[colFirstContactEmail]),
		SendgridTemplateID: firstString(f[colSendgridTemplateID]),
	}
	area.AssignedRSE = relationFromFields(f, schema.assignedRSE)
	area.Hub = relationFromFields(f, schema.hub)
	area.TargetCommunity = relationFromFields(f, schema.targetCommunity)
	if schema.templates != "" {
		area.AutoResponseEmailTemplateIDs = stringList(f[schema.templates])
	}
	return area
}

func relationFromFields(f map[string]any, cols *relationColumns) *geoarea.Relation {
	if cols == nil {
		return nil
	}
	rel := geoarea.Relation{
		SyncedRecordID: firstString(f[cols.syncedID]),
		Name:           firstString(f[cols.name]),
	}
	if cols.id != "" {
		rel.ID = firstString(f[cols.id])
	}
	if rel == (geoarea.Relation{}) {
		return nil
	}
	return &rel
}

func templateFromRecord(rec *airtable.Record) geoarea.Template {
	f := rec.Fields
	return geoarea.Template{
		ID:                 rec.ID,
		GeographicAreaIDs:  stringList(f["Geographic Areas"]),
		SendgridTemplateID: firstString(f[colSendgridTemplateID]),
		ContactType:        firstString(f["Contact Type"]),
		Language:           firstString(f["Language"]),
		MarketingSource:    firstString(f["Marketing Source"]),
		FirstContactEmail:  firstString(f[colFirstContactEmail]),
	}
}
