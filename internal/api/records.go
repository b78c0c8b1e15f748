package api

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/airtable-api/internal/catalog"
	"github.com/sells-group/airtable-api/internal/geoarea"
	"github.com/sells-group/airtable-api/pkg/geocode"
)

// Resource types of related records.
const (
	typeHubs              = "hubs"
	typePartners          = "partners"
	typeTargetCommunities = "target_communities"
	typeTemplates         = "auto_response_email_templates"
)

// Document is the top-level response envelope.
type Document struct {
	Data  any               `json:"data"`
	Links map[string]string `json:"links"`
	Meta  map[string]any    `json:"meta,omitempty"`
}

// Record is one resource in a Document.
type Record struct {
	ID            string                  `json:"id"`
	Type          string                  `json:"type"`
	Fields        any                     `json:"fields"`
	Relationships map[string]Relationship `json:"relationships"`
	Links         map[string]string       `json:"links"`
}

// ResourceID identifies a related resource.
type ResourceID struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// Relationship links a Record to another resource.
type Relationship struct {
	Links map[string]string `json:"links,omitempty"`
	Data  *ResourceID       `json:"data"`
}

// AreaFields are the attributes of an area record.
type AreaFields struct {
	AreaName                   string         `json:"area_name"`
	AreaType                   string         `json:"area_type"`
	CityRadius                 int            `json:"city_radius"`
	PolygonCoordinates         string         `json:"polygon_coordinates,omitempty"`
	FirstContactEmail          string         `json:"first_contact_email,omitempty"`
	SendgridTemplateID         string         `json:"sendgrid_template_id,omitempty"`
	AssignedRSEName            string         `json:"assigned_rse_name,omitempty"`
	HubName                    string         `json:"hub_name,omitempty"`
	TargetCommunityName        string         `json:"target_community_name,omitempty"`
	AutoResponseEmailTemplates []string       `json:"auto_response_email_templates,omitempty"`
	Latitude                   *float64       `json:"latitude"`
	Longitude                  *float64       `json:"longitude"`
	Geocode                    *geocode.Place `json:"geocode"`
}

// TemplateFields are the attributes of an auto-response template record.
type TemplateFields struct {
	GeographicAreas    []string `json:"geographic_areas"`
	SendgridTemplateID string   `json:"sendgrid_template_id,omitempty"`
	ContactType        string   `json:"contact_type,omitempty"`
	Language           string   `json:"language,omitempty"`
	MarketingSource    string   `json:"marketing_source,omitempty"`
	FirstContactEmail  string   `json:"first_contact_email,omitempty"`
}

func self(path string) map[string]string {
	return map[string]string{"self": path}
}

func (s *Server) areaRecord(ctx context.Context, route areaRoute, a *geoarea.Area) Record {
	f := AreaFields{
		AreaName:                   a.Name,
		AreaType:                   string(a.Type),
		CityRadius:                 int(a.Radius()),
		PolygonCoordinates:         a.PolygonCoordinates,
		FirstContactEmail:          a.FirstContactEmail,
		SendgridTemplateID:         a.SendgridTemplateID,
		AutoResponseEmailTemplates: a.AutoResponseEmailTemplateIDs,
		Latitude:                   a.Latitude,
		Longitude:                  a.Longitude,
		Geocode:                    a.Geocode,
	}
	rels := map[string]Relationship{}

	if a.Hub != nil {
		f.HubName = a.Hub.Name
		if a.Hub.SyncedRecordID != "" {
			rels["hub"] = Relationship{
				Links: self("/hubs/" + a.Hub.SyncedRecordID),
				Data:  &ResourceID{ID: a.Hub.SyncedRecordID, Type: typeHubs},
			}
		}
	}
	if a.AssignedRSE != nil {
		f.AssignedRSEName = a.AssignedRSE.Name
		rels["assigned_rse"] = s.partnerRelationship(ctx, a.AssignedRSE.SyncedRecordID)
	}
	if a.TargetCommunity != nil {
		f.TargetCommunityName = a.TargetCommunity.Name
		rel := Relationship{}
		if a.TargetCommunity.SyncedRecordID != "" {
			rel.Data = &ResourceID{ID: a.TargetCommunity.SyncedRecordID, Type: typeTargetCommunities}
		}
		rels["target_community"] = rel
	}
	if len(a.AutoResponseEmailTemplateIDs) > 0 {
		rels["auto_response_email_templates"] = Relationship{
			Links: self("/auto_response_email_templates"),
		}
	}

	return Record{
		ID:            a.ID,
		Type:          string(a.Kind),
		Fields:        f,
		Relationships: rels,
		Links:         self(route.path + "/" + a.ID),
	}
}

// partnerRelationship translates a synced partner ID into the schools base
// record. A failed lookup yields a relationship with no data.
func (s *Server) partnerRelationship(ctx context.Context, syncedID string) Relationship {
	if syncedID == "" {
		return Relationship{}
	}
	p, err := s.catalog.FindPartnerBySyncedRecordID(ctx, syncedID)
	if err != nil {
		level := zap.L().Warn
		if catalog.IsNotFound(err) {
			level = zap.L().Debug
		}
		level("api: partner lookup failed",
			zap.String("synced_record_id", syncedID),
			zap.Error(err),
		)
		return Relationship{}
	}
	return Relationship{
		Links: self("/partners/" + p.ID),
		Data:  &ResourceID{ID: p.ID, Type: typePartners},
	}
}

func templateRecord(t *geoarea.Template) Record {
	areas := t.GeographicAreaIDs
	if areas == nil {
		areas = []string{}
	}
	return Record{
		ID:   t.ID,
		Type: typeTemplates,
		Fields: TemplateFields{
			GeographicAreas:    areas,
			SendgridTemplateID: t.SendgridTemplateID,
			ContactType:        t.ContactType,
			Language:           t.Language,
			MarketingSource:    t.MarketingSource,
			FirstContactEmail:  t.FirstContactEmail,
		},
		Relationships: map[string]Relationship{},
		Links:         self("/auto_response_email_templates/" + t.ID),
	}
}
