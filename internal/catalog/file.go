package catalog

import (
	"context"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/airtable-api/internal/geoarea"
)

// fileCatalog is the on-disk YAML layout.
type fileCatalog struct {
	Contacts          []fileArea         `yaml:"geo_area_contacts"`
	TargetCommunities []fileArea         `yaml:"geo_area_target_communities"`
	GeographicAreas   []fileArea         `yaml:"geographic_areas"`
	Templates         []geoarea.Template `yaml:"auto_response_email_templates"`
	Partners          []Partner          `yaml:"partners"`
}

// fileArea is an area entry; city_radius defaults only when the key is absent.
type fileArea geoarea.Area

func (a *fileArea) UnmarshalYAML(value *yaml.Node) error {
	area := geoarea.Area{CityRadius: geoarea.DefaultCityRadius}
	if err := value.Decode(&area); err != nil {
		return err
	}
	*a = fileArea(area)
	return nil
}

func toAreas(in []fileArea) []geoarea.Area {
	out := make([]geoarea.Area, len(in))
	for i := range in {
		out[i] = geoarea.Area(in[i])
	}
	return out
}

// FileSource serves a catalog loaded from a YAML file.
type FileSource struct {
	areas     map[geoarea.Kind][]geoarea.Area
	templates []geoarea.Template
	partners  []Partner
}

// NewFileSource reads the catalog at path.
func NewFileSource(path string) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: open %s", path)
	}
	defer f.Close() //nolint:errcheck
	return ParseFile(f)
}

// ParseFile decodes a YAML catalog.
func ParseFile(r io.Reader) (*FileSource, error) {
	var fc fileCatalog
	if err := yaml.NewDecoder(r).Decode(&fc); err != nil && err != io.EOF {
		return nil, eris.Wrap(err, "catalog: decode yaml")
	}

	s := &FileSource{
		areas: map[geoarea.Kind][]geoarea.Area{
			geoarea.KindContacts:          toAreas(fc.Contacts),
			geoarea.KindTargetCommunities: toAreas(fc.TargetCommunities),
			geoarea.KindGeographicAreas:   toAreas(fc.GeographicAreas),
		},
		templates: fc.Templates,
		partners:  fc.Partners,
	}
	for kind, areas := range s.areas {
		for i := range areas {
			areas[i].Kind = kind
			if areas[i].ID == "" {
				return nil, eris.Errorf("catalog: %s entry %d has no id", kind, i)
			}
		}
	}
	for i, t := range s.templates {
		if t.ID == "" {
			return nil, eris.Errorf("catalog: template entry %d has no id", i)
		}
	}
	return s, nil
}

// ListAreas returns the areas of kind in file order.
func (s *FileSource) ListAreas(_ context.Context, kind geoarea.Kind) ([]geoarea.Area, error) {
	if !kind.Valid() {
		return nil, eris.Wrapf(ErrUnknownKind, "catalog: kind %q", kind)
	}
	return s.areas[kind], nil
}

// GetArea returns the area of kind with id.
func (s *FileSource) GetArea(ctx context.Context, kind geoarea.Kind, id string) (*geoarea.Area, error) {
	areas, err := s.ListAreas(ctx, kind)
	if err != nil {
		return nil, err
	}
	for i := range areas {
		if areas[i].ID == id {
			a := areas[i]
			return &a, nil
		}
	}
	return nil, eris.Wrapf(ErrNotFound, "catalog: get %s %s", kind, id)
}

// ListTemplates returns the templates in file order.
func (s *FileSource) ListTemplates(context.Context) ([]geoarea.Template, error) {
	return s.templates, nil
}

// GetTemplate returns the template with id.
func (s *FileSource) GetTemplate(_ context.Context, id string) (*geoarea.Template, error) {
	for i := range s.templates {
		if s.templates[i].ID == id {
			t := s.templates[i]
			return &t, nil
		}
	}
	return nil, eris.Wrapf(ErrNotFound, "catalog: get template %s", id)
}

// FindPartnerBySyncedRecordID returns the partner whose synced_record_id,
// or id when unset, equals syncedID.
func (s *FileSource) FindPartnerBySyncedRecordID(_ context.Context, syncedID string) (*Partner, error) {
	for i := range s.partners {
		p := s.partners[i]
		key := p.SyncedRecordID
		if key == "" {
			key = p.ID
		}
		if key == syncedID {
			return &p, nil
		}
	}
	return nil, eris.Wrapf(ErrNotFound, "catalog: partner with synced id %s", syncedID)
}
