package datagen

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed roles.yaml
var rolesFS embed.FS

const NeutralTemperature = 0.7

// NeutralRole is shared by every agent when diversity is off.
var NeutralRole = Role{
	Name:        "neutral",
	Prompt:      "You are a careful assistant that writes high-quality training data.",
	Temperature: NeutralTemperature,
}

type rolesFile struct {
	Roles []Role `yaml:"roles"`
}

// LoadRoles reads the persona list from path, or the embedded default when
// path is empty.
func LoadRoles(path string) ([]Role, error) {
	var raw []byte
	var err error
	if path = strings.TrimSpace(path); path != "" {
		raw, err = os.ReadFile(path)
	} else {
		raw, err = rolesFS.ReadFile("roles.yaml")
	}
	if err != nil {
		return nil, fmt.Errorf("read roles: %w", err)
	}
	var f rolesFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse roles: %w", err)
	}
	if len(f.Roles) == 0 {
		return nil, errors.New("no roles defined")
	}
	seen := map[string]bool{}
	for i, r := range f.Roles {
		name := strings.TrimSpace(r.Name)
		if name == "" || strings.TrimSpace(r.Prompt) == "" {
			return nil, fmt.Errorf("role %d: name and prompt are required", i)
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate role name: %s", name)
		}
		if r.Temperature < 0 || r.Temperature > 2 {
			return nil, fmt.Errorf("role %s: temperature out of range", name)
		}
		seen[name] = true
		f.Roles[i].Name = name
		f.Roles[i].Prompt = strings.TrimSpace(r.Prompt)
	}
	return f.Roles, nil
}

// AssignRoles returns one role per agent, cycling the persona list.
func AssignRoles(personas []Role, numAgents int, diverse bool) []Role {
	out := make([]Role, numAgents)
	for i := range out {
		if diverse && len(personas) > 0 {
			out[i] = personas[i%len(personas)]
		} else {
			out[i] = NeutralRole
		}
	}
	return out
}
