// Package stage loads the ordered interview stage definitions.
package stage

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Config describes one interview stage.
type Config struct {
	// ID is the stage's position in the pipeline, starting at 1.
	ID int `yaml:"id"`

	// Type is the stage type key: hr, technical, behavioral, or practice.
	Type string `yaml:"type"`

	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	// PersonaID names the persona conducting this stage.
	PersonaID string `yaml:"persona_id"`

	DurationMinutes int `yaml:"duration_minutes"`
}

// Manager resolves stages by pipeline number or type.
//
// Manager is read-only after construction and safe for concurrent use.
type Manager struct {
	byID   map[int]Config
	byType map[string]Config
}

// defaultStages backs a missing stages file.
var defaultStages = []Config{
	{ID: 1, Type: "hr", Name: "HR Screening", Description: "Culture fit", PersonaID: "hr_recruiter", DurationMinutes: 15},
	{ID: 2, Type: "technical", Name: "Technical Round", Description: "Hard skills", PersonaID: "tech_lead", DurationMinutes: 30},
	{ID: 3, Type: "behavioral", Name: "Manager Round", Description: "Leadership", PersonaID: "behavioral_manager", DurationMinutes: 20},
}

// NewManager loads stage definitions from a YAML file. A missing file falls
// back to the built-in defaults; a malformed file is an error.
func NewManager(path string) (*Manager, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Warn("stage config missing, using defaults", "path", path)
		return newManager(defaultStages), nil
	}
	if err != nil {
		return nil, fmt.Errorf("stage: open config: %w", err)
	}
	defer f.Close()

	var data struct {
		Stages []Config `yaml:"stages"`
	}
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("stage: parse config %s: %w", path, err)
	}

	for i := range data.Stages {
		if data.Stages[i].DurationMinutes == 0 {
			data.Stages[i].DurationMinutes = 20
		}
	}
	slog.Info("loaded stage definitions", "count", len(data.Stages))
	return newManager(data.Stages), nil
}

func newManager(stages []Config) *Manager {
	m := &Manager{
		byID:   make(map[int]Config, len(stages)),
		byType: make(map[string]Config, len(stages)),
	}
	for _, s := range stages {
		m.byID[s.ID] = s
		m.byType[s.Type] = s
	}
	return m
}

// ByNumber returns the stage with the given pipeline number.
func (m *Manager) ByNumber(n int) (Config, bool) {
	s, ok := m.byID[n]
	return s, ok
}

// ByType returns the stage with the given type key.
func (m *Manager) ByType(stageType string) (Config, bool) {
	s, ok := m.byType[stageType]
	return s, ok
}

// TypeOf returns the stage type for a pipeline number, or "unknown".
func (m *Manager) TypeOf(n int) string {
	if s, ok := m.byID[n]; ok {
		return s.Type
	}
	return "unknown"
}
