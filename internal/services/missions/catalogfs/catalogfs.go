// Package catalogfs loads mission catalogs from YAML documents.
//
// Documents are validated structurally against an embedded JSON schema before
// they are decoded into catalog templates, so authoring mistakes are reported
// with the offending path rather than as a zero value at runtime.
package catalogfs

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	apperrors "github.com/project-89/89-sub004/internal/platform/errors"
	"github.com/project-89/89-sub004/internal/services/missions/domain/catalog"
)

const schemaURL = "mission-catalog.schema.json"

//go:embed schema.json
var schemaSource string

//go:embed missions.yaml
var defaultCatalog []byte

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

type document struct {
	Version      int                   `yaml:"version"`
	Coordinators []coordinatorDocument `yaml:"coordinators"`
	Missions     []missionDocument     `yaml:"missions"`
}

type coordinatorDocument struct {
	ID           string           `yaml:"id"`
	Name         string           `yaml:"name"`
	Specialty    string           `yaml:"specialty"`
	EraModifiers []eraModDocument `yaml:"era_modifiers"`
}

type eraModDocument struct {
	FromYear   int     `yaml:"from_year"`
	ToYear     int     `yaml:"to_year"`
	Adjustment float64 `yaml:"adjustment"`
}

type missionDocument struct {
	ID            string             `yaml:"id"`
	Version       int                `yaml:"version"`
	Sequence      int                `yaml:"sequence"`
	Title         string             `yaml:"title"`
	Location      string             `yaml:"location"`
	Date          string             `yaml:"date"`
	Era           int                `yaml:"era"`
	Duration      string             `yaml:"duration"`
	Briefing      string             `yaml:"briefing"`
	ThreatLevel   string             `yaml:"threat_level"`
	Difficulty    string             `yaml:"difficulty"`
	Tags          []string           `yaml:"tags"`
	Prerequisites []string           `yaml:"prerequisites"`
	LoreFragments []string           `yaml:"lore_fragments"`
	Compatibility compatDocument     `yaml:"compatibility"`
	Approaches    []approachDocument `yaml:"approaches"`
	Phases        []phaseDocument    `yaml:"phases"`
}

type compatDocument struct {
	PreferredTypes []string `yaml:"preferred_types"`
	Bonus          float64  `yaml:"bonus"`
	Penalty        float64  `yaml:"penalty"`
}

type approachDocument struct {
	Risk          string `yaml:"risk"`
	Name          string `yaml:"name"`
	Description   string `yaml:"description"`
	SuccessRate   struct {
		Min float64 `yaml:"min"`
		Max float64 `yaml:"max"`
	} `yaml:"success_rate"`
	TimelineShift struct {
		Min int64 `yaml:"min"`
		Max int64 `yaml:"max"`
	} `yaml:"timeline_shift"`
	Rewards struct {
		TimelinePoints      int64   `yaml:"timeline_points"`
		Experience          int64   `yaml:"experience"`
		InfluenceMultiplier float64 `yaml:"influence_multiplier"`
	} `yaml:"rewards"`
}

type phaseDocument struct {
	ID              int    `yaml:"id"`
	Name            string `yaml:"name"`
	DurationPercent int    `yaml:"duration_percent"`
	Narrative       struct {
		Success string `yaml:"success"`
		Failure string `yaml:"failure"`
	} `yaml:"narrative"`
}

// LoadDefault returns the catalog embedded in the binary.
func LoadDefault() (*catalog.Catalog, error) {
	return Parse(defaultCatalog, "embedded missions.yaml")
}

// DefaultDocument returns a copy of the embedded catalog document.
func DefaultDocument() []byte {
	return bytes.Clone(defaultCatalog)
}

// LoadFile loads a catalog from a path on disk. An empty path selects the
// embedded default.
func LoadFile(path string) (*catalog.Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return LoadDefault()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return Parse(raw, path)
}

// Load loads a catalog from fsys.
func Load(fsys fs.FS, path string) (*catalog.Catalog, error) {
	raw, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return Parse(raw, path)
}

// Validate checks a catalog document without keeping the result.
func Validate(raw []byte) error {
	_, err := Parse(raw, "document")
	return err
}

// Parse validates raw against the catalog schema and builds the catalog.
func Parse(raw []byte, source string) (*catalog.Catalog, error) {
	if err := validateSchema(raw); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeCatalogInvalid, fmt.Sprintf("%s: schema validation failed", source), err)
	}
	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeCatalogInvalid, fmt.Sprintf("%s: decode", source), err)
	}

	missions := make([]catalog.MissionTemplate, 0, len(doc.Missions))
	for _, mission := range doc.Missions {
		template, err := mission.template()
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeCatalogInvalid, fmt.Sprintf("%s: mission %s", source, mission.ID), err)
		}
		missions = append(missions, template)
	}
	coordinators := make([]catalog.Coordinator, 0, len(doc.Coordinators))
	for _, coordinator := range doc.Coordinators {
		coordinators = append(coordinators, coordinator.coordinator())
	}

	cat, err := catalog.New(missions, coordinators)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	return cat, nil
}

func validateSchema(raw []byte) error {
	compiled, err := compiledSchema()
	if err != nil {
		return err
	}
	var generic any
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	// Round trip through JSON so the validator sees JSON-native types.
	encoded, err := json.Marshal(generic)
	if err != nil {
		return fmt.Errorf("convert yaml: %w", err)
	}
	decoder := json.NewDecoder(bytes.NewReader(encoded))
	decoder.UseNumber()
	var value any
	if err := decoder.Decode(&value); err != nil {
		return fmt.Errorf("convert yaml: %w", err)
	}
	return compiled.Validate(value)
}

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = jsonschema.CompileString(schemaURL, schemaSource)
	})
	return schema, schemaErr
}

func (m missionDocument) template() (catalog.MissionTemplate, error) {
	duration, err := time.ParseDuration(m.Duration)
	if err != nil {
		return catalog.MissionTemplate{}, fmt.Errorf("parse duration: %w", err)
	}
	version := m.Version
	if version == 0 {
		version = 1
	}
	template := catalog.MissionTemplate{
		ID:            m.ID,
		Version:       version,
		Sequence:      m.Sequence,
		Title:         m.Title,
		Location:      m.Location,
		Date:          m.Date,
		Era:           m.Era,
		Duration:      duration,
		Briefing:      m.Briefing,
		ThreatLevel:   m.ThreatLevel,
		Difficulty:    m.Difficulty,
		Tags:          m.Tags,
		Prerequisites: m.Prerequisites,
		LoreFragments: m.LoreFragments,
		Compatibility: catalog.Compatibility{
			PreferredTypes: m.Compatibility.PreferredTypes,
			Bonus:          m.Compatibility.Bonus,
			Penalty:        m.Compatibility.Penalty,
		},
	}
	for _, approach := range m.Approaches {
		template.Approaches = append(template.Approaches, catalog.Approach{
			Risk:          catalog.Risk(approach.Risk),
			Name:          approach.Name,
			Description:   approach.Description,
			SuccessRate:   catalog.RateRange{Min: approach.SuccessRate.Min, Max: approach.SuccessRate.Max},
			TimelineShift: catalog.ShiftRange{Min: approach.TimelineShift.Min, Max: approach.TimelineShift.Max},
			Rewards: catalog.Rewards{
				TimelinePoints:      approach.Rewards.TimelinePoints,
				Experience:          approach.Rewards.Experience,
				InfluenceMultiplier: approach.Rewards.InfluenceMultiplier,
			},
		})
	}
	for _, phase := range m.Phases {
		template.Phases = append(template.Phases, catalog.Phase{
			ID:              phase.ID,
			Name:            phase.Name,
			DurationPercent: phase.DurationPercent,
			Narrative:       catalog.NarrativeTemplates{Success: phase.Narrative.Success, Failure: phase.Narrative.Failure},
		})
	}
	return template, nil
}

func (c coordinatorDocument) coordinator() catalog.Coordinator {
	coordinator := catalog.Coordinator{ID: c.ID, Name: c.Name, Specialty: c.Specialty}
	for _, modifier := range c.EraModifiers {
		coordinator.EraModifiers = append(coordinator.EraModifiers, catalog.EraModifier{
			FromYear:   modifier.FromYear,
			ToYear:     modifier.ToYear,
			Adjustment: modifier.Adjustment,
		})
	}
	return coordinator
}
