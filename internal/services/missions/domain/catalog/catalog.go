package catalog

import (
	"fmt"
	"sort"

	apperrors "github.com/project-89/89-sub004/internal/platform/errors"
)

// Catalog is an immutable index of mission templates and coordinators.
type Catalog struct {
	missions     map[string]MissionTemplate
	ordered      []string
	coordinators map[string]Coordinator
	coordOrder   []string
}

// New validates the templates and coordinators and builds a Catalog.
// Prerequisites must reference missions present in the same catalog.
func New(missions []MissionTemplate, coordinators []Coordinator) (*Catalog, error) {
	c := &Catalog{
		missions:     make(map[string]MissionTemplate, len(missions)),
		coordinators: make(map[string]Coordinator, len(coordinators)),
	}
	for _, mission := range missions {
		if err := mission.Validate(); err != nil {
			return nil, err
		}
		if _, exists := c.missions[mission.ID]; exists {
			return nil, invalid("duplicate mission id %s", mission.ID)
		}
		c.missions[mission.ID] = mission.clone()
		c.ordered = append(c.ordered, mission.ID)
	}
	for _, mission := range c.missions {
		for _, prerequisite := range mission.Prerequisites {
			if _, ok := c.missions[prerequisite]; !ok {
				return nil, invalid("mission %s: unknown prerequisite %s", mission.ID, prerequisite)
			}
		}
	}
	sort.SliceStable(c.ordered, func(i, j int) bool {
		left, right := c.missions[c.ordered[i]], c.missions[c.ordered[j]]
		if left.Sequence != right.Sequence {
			return left.Sequence < right.Sequence
		}
		return left.ID < right.ID
	})

	for _, coordinator := range coordinators {
		if err := coordinator.Validate(); err != nil {
			return nil, err
		}
		if _, exists := c.coordinators[coordinator.ID]; exists {
			return nil, invalid("duplicate coordinator id %s", coordinator.ID)
		}
		c.coordinators[coordinator.ID] = coordinator.clone()
		c.coordOrder = append(c.coordOrder, coordinator.ID)
	}
	sort.Strings(c.coordOrder)
	return c, nil
}

// Mission returns the template for id.
func (c *Catalog) Mission(id string) (MissionTemplate, error) {
	mission, ok := c.missions[id]
	if !ok {
		return MissionTemplate{}, notFound("mission", id)
	}
	return mission.clone(), nil
}

// Missions returns every template ordered by sequence.
func (c *Catalog) Missions() []MissionTemplate {
	out := make([]MissionTemplate, 0, len(c.ordered))
	for _, id := range c.ordered {
		out = append(out, c.missions[id].clone())
	}
	return out
}

// Coordinator returns the coordinator for id.
func (c *Catalog) Coordinator(id string) (Coordinator, error) {
	coordinator, ok := c.coordinators[id]
	if !ok {
		return Coordinator{}, notFound("coordinator", id)
	}
	return coordinator.clone(), nil
}

// Coordinators returns every coordinator ordered by id.
func (c *Catalog) Coordinators() []Coordinator {
	out := make([]Coordinator, 0, len(c.coordOrder))
	for _, id := range c.coordOrder {
		out = append(out, c.coordinators[id].clone())
	}
	return out
}

// Len returns the number of missions.
func (c *Catalog) Len() int {
	return len(c.ordered)
}

func notFound(resource, id string) error {
	return apperrors.WithMetadata(
		apperrors.CodeNotFound,
		fmt.Sprintf("%s %q not found", resource, id),
		map[string]string{"resource": resource, "id": id},
	)
}
