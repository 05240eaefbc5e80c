package persona

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// FallbackKey is the persona used when a stage-specific persona file is
// missing.
const FallbackKey = "practice_interviewer"

// stagePersonas maps stage types to persona file keys.
var stagePersonas = map[string]string{
	"hr":         "hr_recruiter",
	"technical":  "tech_lead",
	"behavioral": "behavioral_manager",
	"practice":   "practice_interviewer",
}

// KeyForStage returns the persona key for a stage type. Unknown stages map to
// the practice persona.
func KeyForStage(stageType string) string {
	if key, ok := stagePersonas[stageType]; ok {
		return key
	}
	return FallbackKey
}

// Store loads personas from a directory of YAML files, one file per persona
// key. Loaded personas are cached for the life of the store.
//
// Store is safe for concurrent use.
type Store struct {
	dir string

	mu    sync.Mutex
	cache map[string]*Persona
}

// NewStore creates a Store reading from dir.
func NewStore(dir string) *Store {
	return &Store{
		dir:   dir,
		cache: make(map[string]*Persona),
	}
}

// Load returns the persona for key, reading and validating its YAML file on
// first use. A missing file falls back to the practice persona; only a
// missing or invalid practice persona is a hard error.
func (s *Store) Load(key string) (*Persona, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(key)
}

func (s *Store) loadLocked(key string) (*Persona, error) {
	if p, ok := s.cache[key]; ok {
		return p, nil
	}

	path := filepath.Join(s.dir, key+".yaml")
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) && key != FallbackKey {
			slog.Warn("persona file missing, falling back to practice persona",
				"persona", key, "path", path)
			return s.loadLocked(FallbackKey)
		}
		return nil, fmt.Errorf("persona: open %s: %w", path, err)
	}
	defer f.Close()

	var p Persona
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("persona: parse %s: %w", path, err)
	}
	p.Key = key

	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("persona: validate %s: %w", path, err)
	}

	s.cache[key] = &p
	return &p, nil
}

// LoadForStage returns the persona mapped to the given stage type.
func (s *Store) LoadForStage(stageType string) (*Persona, error) {
	return s.Load(KeyForStage(stageType))
}
