// Package competency maps per-turn scoring dimensions onto a competency
// framework and computes role-weighted final assessments.
//
// The framework is declarative YAML: competency definitions with rubric
// bands, a dimension→competency map, per-role weight tables, and per-stage
// focus lists. Scores flow in as turn records at session end and come out as
// rubric-levelled competency scores plus a single role-fit percentage.
package competency

import (
	"fmt"
	"maps"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Definition describes one competency in the framework.
type Definition struct {
	// Name is the human-readable competency name.
	Name string `yaml:"name"`

	Description string `yaml:"description"`

	// Dimensions lists the scoring dimensions that roll up into this
	// competency.
	Dimensions []string `yaml:"dimensions"`

	// Rubric maps inclusive score ranges ("85-100") to level descriptions.
	Rubric map[string]string `yaml:"rubric"`
}

// Framework is the full declarative competency configuration.
type Framework struct {
	Competencies map[string]Definition `yaml:"competencies"`

	// DimensionCompetencyMap maps scoring dimensions to competency keys.
	DimensionCompetencyMap map[string]string `yaml:"dimension_competency_map"`

	// RoleCompetencyWeights maps job roles to competency weight tables.
	// The "default" entry backs roles with no match.
	RoleCompetencyWeights map[string]map[string]float64 `yaml:"role_competency_weights"`

	// StageCompetencyFocus lists the competencies each stage prioritizes.
	StageCompetencyFocus map[string][]string `yaml:"stage_competency_focus"`
}

// LoadFramework reads and strictly decodes a framework YAML file.
func LoadFramework(path string) (*Framework, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("competency: open framework: %w", err)
	}
	defer f.Close()

	var fw Framework
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&fw); err != nil {
		return nil, fmt.Errorf("competency: parse framework %s: %w", path, err)
	}
	return &fw, nil
}

// defaultRoleWeights backs roles with no configured weight table.
var defaultRoleWeights = map[string]float64{
	"technical_depth": 0.35,
	"communication":   0.20,
	"problem_solving": 0.30,
	"leadership":      0.15,
}

// defaultStageFocus backs stages with no configured focus list.
var defaultStageFocus = []string{"technical_depth", "communication"}

// TurnScore is one turn's contribution to the evaluation.
type TurnScore struct {
	Turn      int     `json:"turn"`
	Score     float64 `json:"score"`
	Dimension string  `json:"dimension"`
}

// Score is the final result for one competency.
type Score struct {
	Score       float64  `json:"score"`
	RubricLevel string   `json:"rubric_level"`
	SampleSize  int      `json:"sample_size"`
	Evidence    []string `json:"evidence"`
}

// Evaluation is the complete end-of-session competency assessment.
type Evaluation struct {
	CompetencyScores map[string]Score   `json:"competency_scores"`
	RoleFitScore     float64            `json:"role_fit_score"`
	RoleWeightsUsed  map[string]float64 `json:"role_weights_used"`
	Summary          string             `json:"summary"`
}

// Evaluator applies a framework to turn scores.
//
// Evaluator is safe for concurrent use; the framework is read-only after
// construction.
type Evaluator struct {
	fw *Framework
}

// NewEvaluator creates an Evaluator. A nil framework behaves as an empty one
// and falls back to the built-in defaults everywhere.
func NewEvaluator(fw *Framework) *Evaluator {
	if fw == nil {
		fw = &Framework{}
	}
	return &Evaluator{fw: fw}
}

// MapDimension returns the competency a scoring dimension belongs to, or
// "general" for unmapped dimensions.
func (e *Evaluator) MapDimension(dimension string) string {
	if comp, ok := e.fw.DimensionCompetencyMap[dimension]; ok {
		return comp
	}
	return "general"
}

// RoleWeights returns the competency weight table for a job role. Lookup is
// exact match first, then a case-insensitive substring match in either
// direction, then the configured "default" table, then the built-in default.
func (e *Evaluator) RoleWeights(jobRole string) map[string]float64 {
	if w, ok := e.fw.RoleCompetencyWeights[jobRole]; ok {
		return w
	}

	jobLower := strings.ToLower(jobRole)
	for _, role := range slices.Sorted(maps.Keys(e.fw.RoleCompetencyWeights)) {
		if role == "default" {
			continue
		}
		roleLower := strings.ToLower(role)
		if strings.Contains(jobLower, roleLower) || strings.Contains(roleLower, jobLower) {
			return e.fw.RoleCompetencyWeights[role]
		}
	}

	if w, ok := e.fw.RoleCompetencyWeights["default"]; ok {
		return w
	}
	return defaultRoleWeights
}

// StageFocus returns the competencies a stage prioritizes.
func (e *Evaluator) StageFocus(stageType string) []string {
	if focus, ok := e.fw.StageCompetencyFocus[stageType]; ok {
		return focus
	}
	return defaultStageFocus
}

// RubricLevel returns the human-readable level for a score, using the
// competency's configured rubric bands and falling back to generic ones.
func (e *Evaluator) RubricLevel(competency string, score float64) string {
	for rangeStr, level := range e.fw.Competencies[competency].Rubric {
		low, high, ok := parseRange(rangeStr)
		if ok && score >= low && score <= high {
			return level
		}
	}

	switch {
	case score >= 85:
		return "Exceptional - Top performer"
	case score >= 70:
		return "Strong - Above expectations"
	case score >= 50:
		return "Adequate - Meets expectations"
	default:
		return "Needs Development - Below expectations"
	}
}

// Compute rolls turn scores up into competency scores and a role-fit
// percentage. Competencies a role weights but the session never measured
// contribute a neutral 50.
func (e *Evaluator) Compute(turnScores []TurnScore, jobRole string) Evaluation {
	if len(turnScores) == 0 {
		return Evaluation{
			CompetencyScores: map[string]Score{},
			RoleWeightsUsed:  map[string]float64{},
			Summary:          "No scoring data available",
		}
	}

	grouped := make(map[string][]float64)
	evidence := make(map[string][]string)
	for _, ts := range turnScores {
		comp := e.MapDimension(ts.Dimension)
		grouped[comp] = append(grouped[comp], ts.Score)
		evidence[comp] = append(evidence[comp], fmt.Sprintf("Turn %d", ts.Turn))
	}

	results := make(map[string]Score, len(grouped))
	for comp, scores := range grouped {
		avg := mean(scores)
		ev := evidence[comp]
		if len(ev) > 5 {
			ev = ev[:5]
		}
		results[comp] = Score{
			Score:       round1(avg),
			RubricLevel: e.RubricLevel(comp, avg),
			SampleSize:  len(scores),
			Evidence:    ev,
		}
	}

	weights := e.RoleWeights(jobRole)
	var fit, weightSum float64
	for comp, weight := range weights {
		if r, ok := results[comp]; ok {
			fit += r.Score * weight
		} else {
			fit += 50 * weight
		}
		weightSum += weight
	}
	roleFit := 50.0
	if weightSum > 0 {
		roleFit = fit / weightSum
	}

	return Evaluation{
		CompetencyScores: results,
		RoleFitScore:     round1(roleFit),
		RoleWeightsUsed:  weights,
		Summary:          e.summary(results, roleFit, jobRole),
	}
}

func (e *Evaluator) summary(results map[string]Score, roleFit float64, jobRole string) string {
	if len(results) == 0 {
		return "Insufficient data for evaluation"
	}

	var strengths, development []string
	for _, comp := range slices.Sorted(maps.Keys(results)) {
		switch s := results[comp].Score; {
		case s >= 70:
			strengths = append(strengths, comp)
		case s < 50:
			development = append(development, comp)
		}
	}

	var parts []string
	switch {
	case roleFit >= 75:
		parts = append(parts, fmt.Sprintf("Strong fit for %s role (%.0f%%)", jobRole, roleFit))
	case roleFit >= 60:
		parts = append(parts, fmt.Sprintf("Moderate fit for %s role (%.0f%%)", jobRole, roleFit))
	default:
		parts = append(parts, fmt.Sprintf("Below target for %s role (%.0f%%)", jobRole, roleFit))
	}
	if len(strengths) > 0 {
		parts = append(parts, "Strengths: "+strings.Join(strengths, ", "))
	}
	if len(development) > 0 {
		parts = append(parts, "Development areas: "+strings.Join(development, ", "))
	}
	return strings.Join(parts, ". ") + "."
}

// InterviewGuidance renders the competency-focus block for the system
// prompt. When current scores are supplied, weak focus competencies get an
// explicit probe-deeper priority line.
func (e *Evaluator) InterviewGuidance(stageType, jobRole string, currentScores map[string]float64) string {
	focus := e.StageFocus(stageType)
	weights := e.RoleWeights(jobRole)

	lines := []string{fmt.Sprintf("COMPETENCY FOCUS for %s stage:", strings.ToUpper(stageType))}
	for _, comp := range focus {
		def := e.fw.Competencies[comp]
		name := def.Name
		if name == "" {
			name = comp
		}
		lines = append(lines, fmt.Sprintf("- %s (weight: %.0f%%): %s", name, weights[comp]*100, def.Description))
	}

	var weak []string
	for _, comp := range focus {
		if score, ok := currentScores[comp]; ok && score < 50 {
			weak = append(weak, comp)
		}
	}
	if len(weak) > 0 {
		lines = append(lines, "", "PRIORITY: Probe deeper on "+strings.Join(weak, ", ")+" (currently weak)")
	}

	return strings.Join(lines, "\n")
}

func parseRange(s string) (low, high float64, ok bool) {
	lowStr, highStr, found := strings.Cut(s, "-")
	if !found {
		return 0, 0, false
	}
	l, err1 := strconv.Atoi(strings.TrimSpace(lowStr))
	h, err2 := strconv.Atoi(strings.TrimSpace(highStr))
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return float64(l), float64(h), true
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
