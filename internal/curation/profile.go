package curation

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/mohammad-safakhou/personafeed/internal/llm"
	"github.com/mohammad-safakhou/personafeed/internal/telemetry"
)

// Synthesizer condenses harvested evidence into a ProfileCard. Synthesis
// falls back from the model to word frequency, and a separate augmentation
// step then weights the keywords no matter which path produced them: the
// model reweights when available, otherwise each keyword is weighted by how
// often it appears in the evidence. Keyword caps and weight normalization
// apply to both paths.
type Synthesizer struct {
	logger  *log.Logger
	llm     llm.Provider
	model   string
	timeout time.Duration
}

func NewSynthesizer(logger *log.Logger, provider llm.Provider, model string, timeout time.Duration) *Synthesizer {
	return &Synthesizer{logger: logger, llm: provider, model: model, timeout: timeout}
}

func (s *Synthesizer) Synthesize(ctx context.Context, name string, identity CandidateIdentity, evidence []EvidenceSnippet) (ProfileCard, error) {
	if err := ctx.Err(); err != nil {
		return ProfileCard{}, err
	}

	var card ProfileCard
	if s.llm == nil {
		s.logger.Printf("llm not configured, building frequency-based profile")
		card = heuristicProfile(name, identity, evidence)
	} else {
		card, _ = attempt(s.logger, "llm-synthesis", func() (ProfileCard, error) {
			return s.synthesizeWithLLM(ctx, name, identity, evidence)
		}, func() ProfileCard {
			return heuristicProfile(name, identity, evidence)
		})
	}

	s.augment(ctx, name, &card, evidence)
	card.SourceFocus = sourceFocus(evidence)
	finalizeCard(&card)
	return card, nil
}

type synthesisPayload struct {
	Headline    string             `json:"headline"`
	Summary     string             `json:"summary"`
	Keywords    []string           `json:"keywords"`
	Queries     []string           `json:"queries"`
	Preferences map[string]float64 `json:"preferences"`
	Evidence    []struct {
		Claim      string `json:"claim"`
		SupportURL string `json:"supportUrl"`
	} `json:"evidence"`
}

func (p *synthesisPayload) Validate() error {
	if strings.TrimSpace(p.Summary) == "" {
		return fmt.Errorf("missing summary")
	}
	if len(p.Keywords) == 0 {
		return fmt.Errorf("no keywords")
	}
	return nil
}

type augmentPayload struct {
	KeywordWeights  []KeywordWeight `json:"keywordWeights"`
	Queries         []string        `json:"queries"`
	PreferenceNotes []string        `json:"preferenceNotes"`
}

func (p *augmentPayload) Validate() error {
	if len(p.KeywordWeights) == 0 {
		return fmt.Errorf("no keyword weights")
	}
	for i, kw := range p.KeywordWeights {
		if strings.TrimSpace(kw.Keyword) == "" {
			return fmt.Errorf("keyword %d is empty", i)
		}
		if kw.Weight < 0 {
			return fmt.Errorf("keyword %q has negative weight", kw.Keyword)
		}
	}
	return nil
}

func (s *Synthesizer) synthesizeWithLLM(ctx context.Context, name string, identity CandidateIdentity, evidence []EvidenceSnippet) (ProfileCard, error) {
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	raw, err := s.llm.Generate(cctx, synthesisPrompt(name, identity, evidence), s.model, nil)
	if err != nil {
		return ProfileCard{}, err
	}
	var syn synthesisPayload
	if err := decodeStrict(raw, &syn); err != nil {
		return ProfileCard{}, err
	}

	card := ProfileCard{
		Name:        name,
		Headline:    strings.TrimSpace(syn.Headline),
		Summary:     strings.TrimSpace(syn.Summary),
		Queries:     dedupeStrings(syn.Queries),
		Preferences: defaultPreferences(syn.Preferences),
	}
	for _, k := range syn.Keywords {
		if k = strings.TrimSpace(k); k != "" {
			card.KeywordWeights = append(card.KeywordWeights, KeywordWeight{Keyword: k, Weight: 1})
		}
	}
	for _, e := range syn.Evidence {
		if e.Claim == "" || e.SupportURL == "" {
			continue
		}
		card.Evidence = append(card.Evidence, EvidenceRef{Claim: e.Claim, SupportURL: e.SupportURL})
		if len(card.Evidence) >= maxEvidenceRefs {
			break
		}
	}
	return card, nil
}

// augment weights the card's keywords. The model reweights and extends them
// when available; on failure or without a model, each keyword's weight
// becomes its occurrence count across the evidence text.
func (s *Synthesizer) augment(ctx context.Context, name string, card *ProfileCard, evidence []EvidenceSnippet) {
	if s.llm != nil {
		aug, err := s.augmentWithLLM(ctx, name, *card)
		if err == nil {
			*card = mergeAugment(*card, aug)
			return
		}
		s.logger.Printf("WARN: llm-augment failed, weighting keywords by hit count: %v", err)
		telemetry.RecordCollaboratorFailure("llm-augment")
	}
	keywordHitWeights(card.KeywordWeights, evidence)
}

func (s *Synthesizer) augmentWithLLM(ctx context.Context, name string, card ProfileCard) (augmentPayload, error) {
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	raw, err := s.llm.Generate(cctx, augmentPrompt(name, card), s.model, nil)
	if err != nil {
		return augmentPayload{}, err
	}
	var aug augmentPayload
	if err := decodeStrict(raw, &aug); err != nil {
		return augmentPayload{}, err
	}
	return aug, nil
}

// mergeAugment overlays augmented weights onto the card, matching keywords
// case-insensitively, and appends any new queries.
func mergeAugment(card ProfileCard, aug augmentPayload) ProfileCard {
	index := make(map[string]int, len(card.KeywordWeights))
	for i, kw := range card.KeywordWeights {
		index[strings.ToLower(kw.Keyword)] = i
	}
	for _, kw := range aug.KeywordWeights {
		k := strings.TrimSpace(kw.Keyword)
		if k == "" {
			continue
		}
		if i, ok := index[strings.ToLower(k)]; ok {
			card.KeywordWeights[i].Weight = kw.Weight
			if kw.Rationale != "" {
				card.KeywordWeights[i].Rationale = kw.Rationale
			}
			continue
		}
		index[strings.ToLower(k)] = len(card.KeywordWeights)
		card.KeywordWeights = append(card.KeywordWeights, KeywordWeight{Keyword: k, Weight: kw.Weight, Rationale: kw.Rationale})
	}
	card.Queries = dedupeStrings(append(card.Queries, aug.Queries...))
	if len(aug.PreferenceNotes) > 0 {
		card.PreferenceNotes = aug.PreferenceNotes
	}
	return card
}

// keywordHitWeights sets each keyword's weight to its case-insensitive
// occurrence count across the evidence text. Keywords that never appear end
// up at zero; if none appear, normalization later falls back to uniform
// shares.
func keywordHitWeights(weights []KeywordWeight, evidence []EvidenceSnippet) {
	var b strings.Builder
	for _, s := range evidence {
		b.WriteString(strings.ToLower(s.Text))
		b.WriteByte('\n')
	}
	text := b.String()
	for i := range weights {
		weights[i].Weight = float64(strings.Count(text, strings.ToLower(weights[i].Keyword)))
	}
}

// heuristicProfile builds a card without any model: the most frequent
// meaningful words across the evidence become keywords, and the first
// snippets double as evidence refs.
func heuristicProfile(name string, identity CandidateIdentity, evidence []EvidenceSnippet) ProfileCard {
	keywords := frequentWords(evidence, fallbackKeywords)
	summary := fmt.Sprintf("Interest profile for %s derived from %d public evidence snippets.", name, len(evidence))
	if sources := distinctSources(evidence); len(sources) > 0 {
		summary = fmt.Sprintf("Interest profile for %s derived from %d public evidence snippets across %s.", name, len(evidence), strings.Join(sources, ", "))
	}
	card := ProfileCard{
		Name:        name,
		Headline:    trimSnippet(identity.Summary, 140),
		Summary:     summary,
		Preferences: defaultPreferences(nil),
		Queries:     append([]string{name}, keywords[:min(3, len(keywords))]...),
	}
	for _, k := range keywords {
		card.KeywordWeights = append(card.KeywordWeights, KeywordWeight{Keyword: k, Weight: 1})
	}
	for i, snip := range evidence {
		if i >= maxEvidenceRefs {
			break
		}
		card.Evidence = append(card.Evidence, EvidenceRef{Claim: trimSnippet(snip.Text, 160), SupportURL: snip.URL})
	}
	return card
}

func distinctSources(evidence []EvidenceSnippet) []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range evidence {
		if !seen[s.Source] {
			seen[s.Source] = true
			out = append(out, s.Source)
		}
	}
	return out
}

var profileStopWords = map[string]bool{
	"about": true, "after": true, "their": true, "there": true, "these": true,
	"those": true, "which": true, "while": true, "where": true, "would": true,
	"could": true, "should": true, "being": true, "other": true, "https": true,
}

// frequentWords returns the n most frequent words longer than four runes
// across the evidence text, lowercased, ties broken alphabetically so the
// result is deterministic.
func frequentWords(evidence []EvidenceSnippet, n int) []string {
	counts := make(map[string]int)
	for _, s := range evidence {
		words := strings.FieldsFunc(strings.ToLower(s.Text), func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		for _, w := range words {
			if len([]rune(w)) <= 4 || profileStopWords[w] {
				continue
			}
			counts[w]++
		}
	}
	words := make([]string, 0, len(counts))
	for w := range counts {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return words[i] < words[j]
	})
	if len(words) > n {
		words = words[:n]
	}
	return words
}

// sourceFocus maps each evidence source to the fraction of snippets it
// contributed; the fractions sum to 1.0. Empty evidence yields nil.
func sourceFocus(evidence []EvidenceSnippet) map[string]float64 {
	if len(evidence) == 0 {
		return nil
	}
	counts := make(map[string]int, 4)
	for _, s := range evidence {
		counts[s.Source]++
	}
	total := float64(len(evidence))
	out := make(map[string]float64, len(counts))
	for src, n := range counts {
		out[src] = float64(n) / total
	}
	return out
}

// defaultPreferences fills the three tuning axes, defaulting each to a
// neutral 0.5 and clamping model output into [0, 1]. Unknown axes are
// dropped.
func defaultPreferences(in map[string]float64) map[string]float64 {
	out := map[string]float64{"depth": 0.5, "format": 0.5, "novelty": 0.5}
	for k, v := range in {
		if _, ok := out[k]; !ok {
			continue
		}
		out[k] = clamp01(v)
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// finalizeCard enforces the card invariants on both paths: at most
// maxKeywords keywords whose weights sum to 1.0, and a complete preferences
// map.
func finalizeCard(card *ProfileCard) {
	if len(card.KeywordWeights) > maxKeywords {
		card.KeywordWeights = card.KeywordWeights[:maxKeywords]
	}
	normalizeWeights(card.KeywordWeights)
	if card.Preferences == nil {
		card.Preferences = defaultPreferences(nil)
	}
	card.Queries = dedupeStrings(card.Queries)
}

// normalizeWeights rescales weights to sum to 1.0. A non-positive total
// means nothing to scale by, so every keyword gets a uniform share.
func normalizeWeights(weights []KeywordWeight) {
	if len(weights) == 0 {
		return
	}
	var total float64
	for _, w := range weights {
		if w.Weight > 0 {
			total += w.Weight
		}
	}
	if total <= 0 {
		uniform := 1.0 / float64(len(weights))
		for i := range weights {
			weights[i].Weight = uniform
		}
		return
	}
	for i := range weights {
		if weights[i].Weight < 0 {
			weights[i].Weight = 0
			continue
		}
		weights[i].Weight /= total
	}
}
