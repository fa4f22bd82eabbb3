package voice

import (
	"log/slog"
	"strings"
	"unicode"

	"github.com/rendis/ivrflow/pkg/schema"
)

// MatchThreshold is the minimum token-overlap ratio a candidate must exceed
// before the resolver will return it instead of the placeholder.
const MatchThreshold = 0.4

// Resolver answers transcript-fragment lookups against an immutable record
// set. The token index is built once at construction; after that the
// resolver is read-only and safe to share across parallel compilations.
type Resolver struct {
	records   []indexedRecord
	index     map[string][]int // normalized token -> record positions
	threshold float64
	logger    *slog.Logger
}

type indexedRecord struct {
	schema.VoiceRecord
	tokens     map[string]struct{}
	normalized string
}

// NewResolver indexes the record set. Records with an empty transcript are
// unreachable by lookup and are skipped.
func NewResolver(records []schema.VoiceRecord, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Resolver{
		index:     make(map[string][]int),
		threshold: MatchThreshold,
		logger:    logger,
	}

	for _, rec := range records {
		tokens := Tokenize(rec.Transcript)
		if len(tokens) == 0 {
			continue
		}
		set := make(map[string]struct{}, len(tokens))
		for _, tok := range tokens {
			set[tok] = struct{}{}
		}
		pos := len(r.records)
		r.records = append(r.records, indexedRecord{
			VoiceRecord: rec,
			tokens:      set,
			normalized:  strings.Join(tokens, " "),
		})
		for tok := range set {
			r.index[tok] = append(r.index[tok], pos)
		}
	}

	logger.Debug("voice index built",
		slog.Int("records", len(r.records)),
		slog.Int("tokens", len(r.index)))
	return r
}

// Count returns the number of indexed records.
func (r *Resolver) Count() int { return len(r.records) }

// Records returns a copy of the indexed record set.
func (r *Resolver) Records() []schema.VoiceRecord {
	out := make([]schema.VoiceRecord, len(r.records))
	for i, rec := range r.records {
		out[i] = rec.VoiceRecord
	}
	return out
}

// Resolve returns the prompt identifier best matching the fragment within
// the given organization scope, with a confidence in [0,1]. A miss returns
// the placeholder with zero confidence, never an error.
//
// Candidates are scored by token-overlap ratio with a tier bonus so that
// organization overrides beat foundation records sharing the same overlap;
// a shorter transcript wins remaining ties, preferring precise recordings
// over long ones that happen to share words.
func (r *Resolver) Resolve(fragment, organization string) (string, float64) {
	queryTokens := Tokenize(fragment)
	if len(queryTokens) == 0 {
		return schema.PromptPlaceholder, 0
	}

	if id, ok := r.exactMatch(strings.Join(queryTokens, " "), organization); ok {
		return id, 1
	}

	querySet := make(map[string]struct{}, len(queryTokens))
	for _, tok := range queryTokens {
		querySet[tok] = struct{}{}
	}

	seen := make(map[int]struct{})
	var best *indexedRecord
	bestScore, bestOverlap := 0.0, 0.0

	for tok := range querySet {
		for _, pos := range r.index[tok] {
			if _, done := seen[pos]; done {
				continue
			}
			seen[pos] = struct{}{}

			rec := &r.records[pos]
			if !rec.appliesTo(organization) {
				continue
			}

			common := 0
			for t := range querySet {
				if _, ok := rec.tokens[t]; ok {
					common++
				}
			}
			overlap := float64(common) / float64(max(len(querySet), len(rec.tokens)))
			if overlap <= r.threshold {
				continue
			}

			score := overlap + float64(rec.Tier)/1000
			if best == nil || score > bestScore ||
				(score == bestScore && len(rec.Transcript) < len(best.Transcript)) {
				best = rec
				bestScore = score
				bestOverlap = overlap
			}
		}
	}

	if best == nil {
		return schema.PromptPlaceholder, 0
	}
	return best.PromptID, bestOverlap
}

// exactMatch finds a record whose normalized transcript equals the query,
// preferring the highest tier when several match.
func (r *Resolver) exactMatch(normalized, organization string) (string, bool) {
	var best *indexedRecord
	for i := range r.records {
		rec := &r.records[i]
		if rec.normalized != normalized || !rec.appliesTo(organization) {
			continue
		}
		if best == nil || rec.Tier > best.Tier {
			best = rec
		}
	}
	if best == nil {
		return "", false
	}
	return best.PromptID, true
}

func (rec *indexedRecord) appliesTo(organization string) bool {
	return rec.Organization == schema.FoundationScope ||
		strings.EqualFold(rec.Organization, organization)
}

// Tokenize lowercases the text, replaces punctuation with spaces, and splits
// on whitespace. Stored transcripts and query fragments go through the same
// normalization so tokens compare exactly.
func Tokenize(text string) []string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Fields(b.String())
}
