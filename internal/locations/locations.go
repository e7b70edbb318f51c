// Package locations serves the static country / city / district tree the
// profile form offers.
package locations

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed locations.yaml
var defaultYAML []byte

type city struct {
	Name      string   `yaml:"name"`
	Districts []string `yaml:"districts"`
}

type country struct {
	Name   string `yaml:"name"`
	Cities []city `yaml:"cities"`
}

// Tree is a parsed location file. Lookups ignore case; results keep file order.
type Tree struct {
	countries []country
}

// Parse reads a location file.
func Parse(raw []byte) (*Tree, error) {
	var doc struct {
		Countries []country `yaml:"countries"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse locations: %w", err)
	}
	seen := make(map[string]bool, len(doc.Countries))
	for _, c := range doc.Countries {
		key := strings.ToLower(c.Name)
		if c.Name == "" || seen[key] {
			return nil, fmt.Errorf("parse locations: empty or duplicate country %q", c.Name)
		}
		seen[key] = true
	}
	return &Tree{countries: doc.Countries}, nil
}

// Default is the embedded tree.
func Default() *Tree {
	t, err := Parse(defaultYAML)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Tree) country(name string) *country {
	for i := range t.countries {
		if strings.EqualFold(t.countries[i].Name, strings.TrimSpace(name)) {
			return &t.countries[i]
		}
	}
	return nil
}

func (t *Tree) Countries() []string {
	out := make([]string, 0, len(t.countries))
	for _, c := range t.countries {
		out = append(out, c.Name)
	}
	return out
}

// Cities returns the cities of country; ok is false for an unknown country.
func (t *Tree) Cities(countryName string) (cities []string, ok bool) {
	c := t.country(countryName)
	if c == nil {
		return nil, false
	}
	out := make([]string, 0, len(c.Cities))
	for _, ci := range c.Cities {
		out = append(out, ci.Name)
	}
	return out, true
}

// Districts returns the districts of a city; ok is false when either
// the country or the city is unknown.
func (t *Tree) Districts(countryName, cityName string) (districts []string, ok bool) {
	c := t.country(countryName)
	if c == nil {
		return nil, false
	}
	for _, ci := range c.Cities {
		if strings.EqualFold(ci.Name, strings.TrimSpace(cityName)) {
			return append([]string{}, ci.Districts...), true
		}
	}
	return nil, false
}

// Map returns the whole tree as country -> city -> districts.
func (t *Tree) Map() map[string]map[string][]string {
	out := make(map[string]map[string][]string, len(t.countries))
	for _, c := range t.countries {
		cities := make(map[string][]string, len(c.Cities))
		for _, ci := range c.Cities {
			cities[ci.Name] = append([]string{}, ci.Districts...)
		}
		out[c.Name] = cities
	}
	return out
}
