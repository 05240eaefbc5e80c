package prompt

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// TechStacks maps tech keys (e.g. "golang", "react") to the lowercase
// keyword patterns that signal them in free text.
type TechStacks map[string][]string

// intelligenceFile is the on-disk shape of the intelligence config.
type intelligenceFile struct {
	TechStacks TechStacks `yaml:"tech_stacks"`
}

// LoadTechStacks reads the tech-stack keyword patterns from the intelligence
// config file.
func LoadTechStacks(path string) (TechStacks, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("prompt: open intelligence config: %w", err)
	}
	defer f.Close()

	var file intelligenceFile
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("prompt: parse intelligence config %s: %w", path, err)
	}
	return file.TechStacks, nil
}

// Detect scans text for configured keyword patterns and returns the matched
// tech keys, deduplicated and sorted for stable output. Matching is
// case-insensitive substring search; the first matching pattern claims the
// key.
func (t TechStacks) Detect(text string) []string {
	if text == "" || len(t) == 0 {
		return nil
	}
	lower := strings.ToLower(text)

	var detected []string
	for tech, patterns := range t {
		for _, pattern := range patterns {
			if strings.Contains(lower, pattern) {
				detected = append(detected, tech)
				break
			}
		}
	}
	slices.Sort(detected)
	return detected
}

// Vocabulary returns every tech key and keyword pattern as a deduplicated,
// sorted term list. The transcript corrector uses it to recognise technical
// terms the STT layer tends to mishear.
func (t TechStacks) Vocabulary() []string {
	seen := make(map[string]struct{}, len(t)*4)
	for tech, patterns := range t {
		seen[tech] = struct{}{}
		for _, pattern := range patterns {
			seen[pattern] = struct{}{}
		}
	}
	vocab := make([]string, 0, len(seen))
	for term := range seen {
		vocab = append(vocab, term)
	}
	slices.Sort(vocab)
	return vocab
}
