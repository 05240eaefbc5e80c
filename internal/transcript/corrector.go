package transcript

import (
	"context"
	"strings"

	"github.com/voxhire/voxhire/internal/transcript/llmcorrect"
	"github.com/voxhire/voxhire/pkg/provider/stt"
)

// defaultLLMConfidenceThreshold is the overall STT confidence below which a
// final transcript is escalated to the LLM correction stage.
const defaultLLMConfidenceThreshold = 0.8

// PipelineOption is a functional option for configuring a [CorrectionPipeline].
type PipelineOption func(*CorrectionPipeline)

// WithPhoneticMatcher attaches a [PhoneticMatcher] as the first correction
// stage. When nil (the default), the phonetic stage is skipped entirely.
func WithPhoneticMatcher(m PhoneticMatcher) PipelineOption {
	return func(p *CorrectionPipeline) {
		p.phonetic = m
	}
}

// WithLLMCorrector attaches an [llmcorrect.Corrector] as the second correction
// stage. When nil (the default), the LLM stage is skipped entirely.
func WithLLMCorrector(c *llmcorrect.Corrector) PipelineOption {
	return func(p *CorrectionPipeline) {
		p.llmCorrector = c
	}
}

// WithLLMOnLowConfidence sets the overall STT confidence threshold below
// which a transcript is passed to the LLM corrector (when one is configured).
// Default: 0.8.
//
// Transcripts without any confidence data (Confidence == 0) are always
// submitted when the LLM corrector is configured.
func WithLLMOnLowConfidence(threshold float64) PipelineOption {
	return func(p *CorrectionPipeline) {
		p.llmThreshold = threshold
	}
}

// CorrectionPipeline is the two-stage transcript correction implementation of
// [Pipeline]. Stages are optional and are applied in order:
//
//  1. [PhoneticMatcher] — fast, in-process phonetic vocabulary alignment.
//  2. [llmcorrect.Corrector] — LLM-assisted correction for low-confidence
//     transcripts.
//
// CorrectionPipeline is safe for concurrent use.
type CorrectionPipeline struct {
	phonetic     PhoneticMatcher
	llmCorrector *llmcorrect.Corrector
	llmThreshold float64
}

// Ensure CorrectionPipeline satisfies the Pipeline interface at compile time.
var _ Pipeline = (*CorrectionPipeline)(nil)

// NewPipeline constructs a [CorrectionPipeline] with the supplied options.
// By default both stages are disabled (nil); use [WithPhoneticMatcher] and
// [WithLLMCorrector] to activate them.
func NewPipeline(opts ...PipelineOption) *CorrectionPipeline {
	p := &CorrectionPipeline{
		llmThreshold: defaultLLMConfidenceThreshold,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Correct applies the configured correction stages to t and returns a
// [CorrectedTranscript].
//
// Pipeline flow:
//  1. The transcript text is tokenised into whitespace-separated word tokens.
//  2. When a [PhoneticMatcher] is configured, every token is tested against
//     the vocabulary. N-gram windows (up to the maximum term word count) are
//     also tested so that multi-word terms like "spring boot" match.
//  3. When an [llmcorrect.Corrector] is configured and the transcript's
//     overall STT confidence is below the threshold (or absent), the LLM
//     corrector is invoked on the phonetic-corrected text.
//  4. Phonetic and LLM corrections are merged into the final
//     [CorrectedTranscript].
//
// Context cancellation is respected: if ctx is Done before the LLM stage
// completes, an error is returned.
func (p *CorrectionPipeline) Correct(
	ctx context.Context,
	t stt.Transcript,
	vocabulary []string,
) (*CorrectedTranscript, error) {
	result := &CorrectedTranscript{
		Original:    t,
		Corrections: []Correction{},
	}

	// --- Stage 1: phonetic matching ---
	workingText := t.Text
	var phoneticCorrections []Correction

	if p.phonetic != nil && len(vocabulary) > 0 {
		workingText, phoneticCorrections = p.applyPhonetic(t.Text, vocabulary)
	}

	// --- Stage 2: LLM correction ---
	var llmCorrections []Correction

	if p.llmCorrector != nil && len(vocabulary) > 0 && p.needsLLMPass(t) {
		correctedText, rawCorrections, err := p.llmCorrector.Correct(ctx, workingText, vocabulary)
		if err != nil {
			return nil, err
		}
		workingText = correctedText
		for _, rc := range rawCorrections {
			llmCorrections = append(llmCorrections, Correction{
				Original:   rc.Original,
				Corrected:  rc.Corrected,
				Confidence: rc.Confidence,
				Method:     "llm",
			})
		}
	}

	// --- Merge results ---
	result.Corrected = workingText
	result.Corrections = append(result.Corrections, phoneticCorrections...)
	result.Corrections = append(result.Corrections, llmCorrections...)

	return result, nil
}

// needsLLMPass reports whether the transcript's overall STT confidence is low
// enough to justify an LLM round-trip. Transcripts without confidence data
// are always escalated.
func (p *CorrectionPipeline) needsLLMPass(t stt.Transcript) bool {
	return t.Confidence == 0 || t.Confidence < p.llmThreshold
}

// applyPhonetic runs the phonetic matching stage over the transcript text.
// It returns the corrected text and the list of corrections applied.
//
// The algorithm:
//  1. Tokenise the text into words.
//  2. Determine the maximum number of words in any vocabulary term.
//  3. At each token position, try n-gram windows from maxTermWords down to 1.
//     Accept the longest n-gram match so that multi-word terms take
//     precedence over partial single-word matches.
//  4. Append matched (or unmatched) tokens to the output and advance the
//     cursor by the number of tokens consumed.
func (p *CorrectionPipeline) applyPhonetic(text string, vocabulary []string) (string, []Correction) {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return text, nil
	}

	maxTermWords := maxWordCount(vocabulary)

	var output []string
	var corrections []Correction

	i := 0
	for i < len(tokens) {
		// Clamp window size to remaining tokens.
		maxN := maxTermWords
		if i+maxN > len(tokens) {
			maxN = len(tokens) - i
		}

		matched := false
		for n := maxN; n >= 1; n-- {
			window := strings.Join(tokens[i:i+n], " ")
			term, conf, ok := p.phonetic.Match(window, vocabulary)
			if !ok {
				continue
			}

			// Emit the canonical term tokens. An exact (case-insensitive)
			// match needs no correction record.
			termTokens := strings.Fields(term)
			output = append(output, termTokens...)
			if !strings.EqualFold(window, term) {
				corrections = append(corrections, Correction{
					Original:   window,
					Corrected:  term,
					Confidence: conf,
					Method:     "phonetic",
				})
			}
			i += n
			matched = true
			break
		}

		if !matched {
			output = append(output, tokens[i])
			i++
		}
	}

	return strings.Join(output, " "), corrections
}

// maxWordCount returns the maximum number of whitespace-separated words in
// any vocabulary term. Returns 1 when vocabulary is empty.
func maxWordCount(vocabulary []string) int {
	max := 1
	for _, v := range vocabulary {
		n := len(strings.Fields(v))
		if n > max {
			max = n
		}
	}
	return max
}
