// Package subteam is the static registry of the team's organizational units.
package subteam

import (
	"fmt"

	"github.com/ninersracing/kbwiki/internal/apperr"
)

// General is the sub-team assigned to members without an explicit affiliation.
const General = "general"

// Subteam describes one organizational unit. Prefix is the single digit used in
// document serial numbers.
type Subteam struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Prefix string `json:"prefix"`
	Color  string `json:"color"`
}

var registry = []Subteam{
	{ID: "driver-controls", Name: "Driver Controls", Prefix: "4", Color: "bg-blue-500"},
	{ID: "chassis", Name: "Chassis", Prefix: "3", Color: "bg-red-400"},
	{ID: "electronics", Name: "Electronics", Prefix: "5", Color: "bg-amber-700"},
	{ID: "vehicle-dynamics", Name: "Vehicle Dynamics", Prefix: "7", Color: "bg-green-500"},
	{ID: "aerodynamics", Name: "Aerodynamics", Prefix: "2", Color: "bg-sky-400"},
	{ID: "business", Name: "Business", Prefix: "8", Color: "bg-green-700"},
	{ID: "powertrain", Name: "Powertrain", Prefix: "6", Color: "bg-red-800"},
	{ID: General, Name: "General", Prefix: "0", Color: "bg-gray-400"},
}

var byID = func() map[string]Subteam {
	m := make(map[string]Subteam, len(registry))
	for _, s := range registry {
		m[s.ID] = s
	}
	return m
}()

// Get returns the sub-team with the given id.
func Get(id string) (Subteam, bool) {
	s, ok := byID[id]
	return s, ok
}

// Lookup is Get with an ErrInvalidSubteam error for unknown ids.
func Lookup(id string) (Subteam, error) {
	s, ok := byID[id]
	if !ok {
		return Subteam{}, fmt.Errorf("%w: %q", apperr.ErrInvalidSubteam, id)
	}
	return s, nil
}

// Valid reports whether id names a registered sub-team.
func Valid(id string) bool {
	_, ok := byID[id]
	return ok
}

// All returns every sub-team in display order.
func All() []Subteam {
	out := make([]Subteam, len(registry))
	copy(out, registry)
	return out
}

// SerialPrefix is the "KB<prefix>" head shared by every serial of the sub-team.
func (s Subteam) SerialPrefix() string {
	return "KB" + s.Prefix
}
