// Package roster loads the store roster: which storefronts take part
// in a run, in which order, under which business entity.
package roster

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sellhub-kr/listing-cli/internal/model"
)

// Sheet groups the slots of one run target.
type Sheet struct {
	Name           string            `yaml:"name"`
	BusinessNumber string            `yaml:"business_number"`
	Stores         []model.StoreSlot `yaml:"stores"`
}

// Roster is the top-level roster file.
type Roster struct {
	Sheets []Sheet `yaml:"sheets"`
}

// Load reads a roster from a YAML file.
func Load(path string) (*Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "roster: read %s", path)
	}

	var r Roster
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, eris.Wrapf(err, "roster: parse %s", path)
	}

	if err := r.validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

func (r *Roster) validate() error {
	if len(r.Sheets) == 0 {
		return eris.New("roster: no sheets defined")
	}
	seen := make(map[string]struct{}, len(r.Sheets))
	for _, s := range r.Sheets {
		if s.Name == "" {
			return eris.New("roster: sheet without name")
		}
		if _, dup := seen[s.Name]; dup {
			return eris.Errorf("roster: sheet %q defined twice", s.Name)
		}
		seen[s.Name] = struct{}{}
		if len(s.Stores) == 0 {
			return eris.Errorf("roster: sheet %q has no stores", s.Name)
		}
		for i, slot := range s.Stores {
			if slot.Name == "" {
				return eris.Errorf("roster: sheet %q store %d without name", s.Name, i)
			}
			// Slots inherit the sheet's business entity unless they
			// carry their own.
			if slot.BusinessNumber == "" {
				s.Stores[i].BusinessNumber = s.BusinessNumber
			}
		}
	}
	return nil
}

// Sheet returns the named sheet, if present.
func (r *Roster) Sheet(name string) (Sheet, bool) {
	for _, s := range r.Sheets {
		if s.Name == name {
			return s, true
		}
	}
	return Sheet{}, false
}
