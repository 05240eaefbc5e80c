// Package persona loads interviewer persona definitions from declarative
// YAML files. A [Persona] describes who the interviewer is for one stage of
// the pipeline: the pool of identities it can present as (localized names and
// per-language voice IDs), its directives and sample questions, trigger-based
// scenarios, and the prompt skills it wants applied.
//
// The [Store] caches personas by key and falls back to the practice persona
// when a stage-specific file is missing, so a broken deployment degrades to a
// generic interviewer instead of a dead session.
package persona

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Localized is a per-language string. YAML may supply either a plain scalar
// (treated as English) or a language→text mapping.
type Localized map[string]string

// UnmarshalYAML accepts both the scalar and the mapping form.
func (l *Localized) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		var s string
		if err := value.Decode(&s); err != nil {
			return err
		}
		*l = Localized{"en": s}
		return nil
	}
	var m map[string]string
	if err := value.Decode(&m); err != nil {
		return err
	}
	*l = m
	return nil
}

// Resolve returns the text for lang, falling back to English.
func (l Localized) Resolve(lang string) string {
	if v, ok := l[lang]; ok {
		return v
	}
	return l["en"]
}

// LocalizedList is a per-language list of strings, with the same scalar
// shorthand as [Localized]: a plain YAML sequence is treated as English.
type LocalizedList map[string][]string

// UnmarshalYAML accepts both the sequence and the mapping form.
func (l *LocalizedList) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.SequenceNode {
		var items []string
		if err := value.Decode(&items); err != nil {
			return err
		}
		*l = LocalizedList{"en": items}
		return nil
	}
	var m map[string][]string
	if err := value.Decode(&m); err != nil {
		return err
	}
	*l = m
	return nil
}

// Resolve returns the list for lang, falling back to English.
func (l LocalizedList) Resolve(lang string) []string {
	if v, ok := l[lang]; ok {
		return v
	}
	return l["en"]
}

// Identity is one persona the interviewer can present as. Sessions map to a
// stable identity so the candidate talks to the same "person" for the whole
// interview.
type Identity struct {
	// Name is the localized display name.
	Name Localized `yaml:"name"`

	// Voice maps language codes to provider voice IDs.
	Voice map[string]string `yaml:"voice"`
}

// Scenario is a trigger→response behavior rule.
type Scenario struct {
	// Trigger describes the candidate behavior that activates the scenario.
	Trigger string `yaml:"trigger"`

	// ResponsePattern is the localized way the interviewer should react.
	ResponsePattern Localized `yaml:"response_pattern"`
}

// SkillRef declares a prompt skill the persona wants applied.
type SkillRef struct {
	// ID is the skill's registry key.
	ID string `yaml:"id"`

	// Mode is an optional skill-specific tuning hint.
	Mode string `yaml:"mode"`
}

// Persona is the full declarative configuration for one interviewer persona.
type Persona struct {
	// Key is the persona's file key (e.g. "tech_lead"). Set by the loader.
	Key string `yaml:"-"`

	// Role is the interviewer's job title shown to the candidate.
	Role string `yaml:"role"`

	// Style is a free-text description of tone and manner.
	Style string `yaml:"style"`

	// Identities is the pool of concrete identities for this persona.
	Identities []Identity `yaml:"identities"`

	// Name and Voice are the legacy single-identity fields, used when
	// Identities is empty.
	Name  Localized         `yaml:"name"`
	Voice map[string]string `yaml:"voice"`

	// Directives are hard instructions for the system prompt.
	Directives LocalizedList `yaml:"directives"`

	// SampleQuestions seed the interviewer's question style.
	SampleQuestions LocalizedList `yaml:"sample_questions"`

	// Scenarios are trigger-based behavior rules.
	Scenarios []Scenario `yaml:"scenarios"`

	// Skills lists the prompt skills to apply, in order.
	Skills []SkillRef `yaml:"skills"`

	// Greeting is the localized opening line template text.
	Greeting Localized `yaml:"greeting"`
}

// SkillIDs returns the declared skill IDs in order.
func (p *Persona) SkillIDs() []string {
	ids := make([]string, 0, len(p.Skills))
	for _, s := range p.Skills {
		ids = append(ids, s.ID)
	}
	return ids
}

// Validate checks the persona for logical consistency. It returns a joined
// error describing every violation found, or nil if the persona is valid.
func (p *Persona) Validate() error {
	var errs []error

	if len(p.Identities) == 0 && len(p.Name) == 0 {
		errs = append(errs, fmt.Errorf("persona %q: needs identities or a legacy name", p.Key))
	}
	for i, id := range p.Identities {
		if len(id.Name) == 0 {
			errs = append(errs, fmt.Errorf("persona %q: identity %d has no name", p.Key, i))
		}
	}
	for i, sc := range p.Scenarios {
		if sc.Trigger == "" {
			errs = append(errs, fmt.Errorf("persona %q: scenario %d has no trigger", p.Key, i))
		}
	}
	for i, s := range p.Skills {
		if s.ID == "" {
			errs = append(errs, fmt.Errorf("persona %q: skill %d has no id", p.Key, i))
		}
	}

	return errors.Join(errs...)
}
