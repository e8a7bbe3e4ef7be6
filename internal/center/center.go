// Package center models the business locations ("centers") whose CRM
// pipeline and ad account are tracked independently.
package center

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Center is one tracked business location. Loaded once from configuration
// and read-only afterwards.
type Center struct {
	Name         string `yaml:"name" json:"name"`
	City         string `yaml:"city" json:"city"`
	APIKey       string `yaml:"api_key" json:"-"`
	LocationID   string `yaml:"location_id" json:"location_id"`
	PipelineName string `yaml:"pipeline_name" json:"pipeline_name"`
	CalendarID   string `yaml:"calendar_id" json:"calendar_id"`
	CalendarID2  string `yaml:"calendar_id2,omitempty" json:"calendar_id2,omitempty"`
	AdAccountID  string `yaml:"ad_account_id,omitempty" json:"ad_account_id,omitempty"`

	// LeadActionType names the ad-platform action counted as a lead for
	// this center. The platform has no universal lead-action convention,
	// so it is per-center configuration, empty meaning none.
	LeadActionType string `yaml:"lead_action_type,omitempty" json:"lead_action_type,omitempty"`
}

// Key returns the case-insensitive, whitespace-trimmed name key used to
// join this center's records across data sources.
func (c Center) Key() string {
	return strings.ToLower(strings.TrimSpace(c.Name))
}

// HasAdAccount reports whether an ad account is configured. The literal
// string "none" is treated as unset to tolerate hand-edited config files.
func (c Center) HasAdAccount() bool {
	id := strings.TrimSpace(c.AdAccountID)
	return id != "" && !strings.EqualFold(id, "none")
}

// Load reads the centers list from a YAML file.
func Load(path string) ([]Center, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "center: read %s", path)
	}

	var doc struct {
		Centers []Center `yaml:"centers"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrapf(err, "center: parse %s", path)
	}
	if len(doc.Centers) == 0 {
		return nil, eris.Errorf("center: no centers defined in %s", path)
	}

	for i, c := range doc.Centers {
		if strings.TrimSpace(c.Name) == "" {
			return nil, eris.Errorf("center: entry %d has no name", i)
		}
		if c.APIKey == "" || c.LocationID == "" {
			return nil, eris.Errorf("center: %s missing CRM credentials", c.Name)
		}
	}

	return doc.Centers, nil
}

// Select filters centers by name (case-insensitive, trimmed). An empty names
// slice selects every center. Unknown names are an input error so a typo
// does not silently shrink a report.
func Select(centers []Center, names []string) ([]Center, error) {
	if len(names) == 0 {
		return centers, nil
	}

	byKey := make(map[string]Center, len(centers))
	for _, c := range centers {
		byKey[c.Key()] = c
	}

	out := make([]Center, 0, len(names))
	for _, name := range names {
		key := strings.ToLower(strings.TrimSpace(name))
		c, ok := byKey[key]
		if !ok {
			return nil, eris.Errorf("center: unknown center %q", name)
		}
		out = append(out, c)
	}
	return out, nil
}
