package resolve

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/robostats/statproxy/internal/domain"
)

// Package-level validator instance for configuration validation.
var validate = validator.New()

// Weights holds the scoring constants. The values are empirically chosen;
// they are kept configurable rather than derived, and the defaults preserve
// the long-standing 200/25/40/3 balance in which region hints can never
// outweigh phrase or token matches.
type Weights struct {
	// Phrase is awarded when a candidate's normalized name contains a query
	// variant as a contiguous substring.
	Phrase int `koanf:"phrase" yaml:"phrase" validate:"min=0"`

	// Token is awarded per variant token found as a substring of the
	// candidate name.
	Token int `koanf:"token" yaml:"token" validate:"min=0"`

	// Abbreviation is awarded when a short variant appears in the candidate
	// name or key.
	Abbreviation int `koanf:"abbreviation" yaml:"abbreviation" validate:"min=0"`

	// Region is awarded per region hint (district, state) found in the
	// candidate name. Deliberately weak.
	Region int `koanf:"region" yaml:"region" validate:"min=0"`

	// ShortTokenMax is the length at or below which variant tokens are
	// ignored during token scoring.
	ShortTokenMax int `koanf:"short_token_max" yaml:"short_token_max" validate:"min=0"`

	// AbbrevMaxLen is the maximum variant length for the abbreviation
	// bonus.
	AbbrevMaxLen int `koanf:"abbrev_max_len" yaml:"abbrev_max_len" validate:"min=1"`

	// TopK is how many ranked candidates are returned for caller-side
	// disambiguation, regardless of match success.
	TopK int `koanf:"top_k" yaml:"top_k" validate:"min=1"`
}

// DefaultWeights returns the standard scoring constants.
func DefaultWeights() Weights {
	return Weights{
		Phrase:        200,
		Token:         25,
		Abbreviation:  40,
		Region:        3,
		ShortTokenMax: 2,
		AbbrevMaxLen:  5,
		TopK:          5,
	}
}

// Candidate is an event-like record scored against the query.
type Candidate struct {
	// Key is the event's short key, e.g. "2024wasno".
	Key string `json:"key"`

	// Name is the event's descriptive name.
	Name string `json:"name"`

	// District is the event's district abbreviation, when any.
	District string `json:"district,omitempty"`

	// State is the event's state or province, when any.
	State string `json:"state,omitempty"`
}

// Hints carries optional caller-supplied region context. Hints contribute a
// weak score bonus and never decide a match on their own.
type Hints struct {
	District string
	State    string
}

// ScoredCandidate pairs a candidate with its computed score.
type ScoredCandidate struct {
	Candidate Candidate `json:"candidate"`

	// Score is the summed non-negative score across all query variants.
	Score int `json:"score"`

	// TokenHits counts distinct token matches; it is folded into the score
	// as a tie-breaker among otherwise-equal candidates.
	TokenHits int `json:"token_hits"`
}

// Match is the outcome of a resolution: the best candidate plus a short
// ranked list for caller-side disambiguation.
type Match struct {
	// Query is the normalized query the candidates were scored against.
	Query string `json:"query"`

	// Best is the top-ranked candidate. Only meaningful when Resolve
	// returned no error.
	Best ScoredCandidate `json:"best"`

	// Candidates are the top-ranked entries, at most TopK. Populated even
	// when resolution fails, so callers can always show alternates.
	Candidates []ScoredCandidate `json:"candidates"`
}

// Resolver scores candidate lists against free-text queries. It holds only
// immutable state and is safe for concurrent use.
//
// Determinism: identical query, candidate list, alias table, and weights
// always produce identical scores and ordering. Ties keep input order
// (stable sort), and nothing in the scoring path depends on locale or
// randomness.
type Resolver struct {
	aliases *AliasTable
	weights Weights
	logger  *zap.Logger
	tracer  trace.Tracer
}

// ResolverOption customizes resolver construction.
type ResolverOption func(*Resolver)

// WithResolverLogger attaches a structured logger.
func WithResolverLogger(logger *zap.Logger) ResolverOption {
	return func(r *Resolver) { r.logger = logger }
}

// NewResolver creates a Resolver with the given alias table and weights.
// A nil alias table disables expansion but is otherwise valid.
func NewResolver(aliases *AliasTable, weights Weights, opts ...ResolverOption) (*Resolver, error) {
	if err := validate.Struct(weights); err != nil {
		return nil, fmt.Errorf("weights validation failed: %w", err)
	}

	r := &Resolver{
		aliases: aliases,
		weights: weights,
		logger:  zap.NewNop(),
		tracer:  otel.Tracer("event-resolver"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Resolve scores every candidate against the query's variant set and
// returns the best match plus the top-K ranked list.
//
// When the top score is exactly zero the resolution fails with a
// domain.NoMatchError carrying the normalized query and the nearest
// candidate name by edit distance; the ranked list is still returned so
// callers can present alternates.
func (r *Resolver) Resolve(ctx context.Context, query string, candidates []Candidate, hints Hints) (Match, error) {
	_, span := r.tracer.Start(ctx, "Resolver.Resolve",
		trace.WithAttributes(
			attribute.Int("resolve.candidates", len(candidates)),
		),
	)
	defer span.End()

	normalized := Normalize(query)
	variants := r.aliases.Expand(normalized)
	span.SetAttributes(
		attribute.String("resolve.query", normalized),
		attribute.Int("resolve.variants", len(variants)),
	)

	scored := make([]ScoredCandidate, len(candidates))
	for i, candidate := range candidates {
		scored[i] = r.score(candidate, variants, hints)
	}

	// Stable sort keeps input order among equal scores, which is the only
	// tie order defined beyond the token-hit tally already folded in.
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	top := scored
	if len(top) > r.weights.TopK {
		top = top[:r.weights.TopK]
	}

	match := Match{Query: normalized, Candidates: top}
	if len(scored) == 0 || scored[0].Score == 0 {
		err := &domain.NoMatchError{
			Query:      normalized,
			Suggestion: nearestName(normalized, candidates),
		}
		span.RecordError(err)
		return match, err
	}

	match.Best = scored[0]
	span.SetAttributes(
		attribute.String("resolve.best", match.Best.Candidate.Key),
		attribute.Int("resolve.best_score", match.Best.Score),
	)

	r.logger.Debug("resolved event query",
		zap.String("query", normalized),
		zap.String("best", match.Best.Candidate.Key),
		zap.Int("score", match.Best.Score),
	)
	return match, nil
}

// score computes one candidate's score, summed across all query variants,
// plus the region bonus and the token-hit tie-breaker.
func (r *Resolver) score(candidate Candidate, variants []string, hints Hints) ScoredCandidate {
	name := Normalize(candidate.Name)
	key := Normalize(candidate.Key)

	score := 0
	tokenHits := 0

	for _, variant := range variants {
		if variant == "" {
			continue
		}

		if strings.Contains(name, variant) {
			score += r.weights.Phrase
		}

		for _, token := range strings.Fields(variant) {
			if len(token) <= r.weights.ShortTokenMax {
				continue
			}
			if strings.Contains(name, token) {
				score += r.weights.Token
				tokenHits++
			}
		}

		if len(variant) <= r.weights.AbbrevMaxLen &&
			(strings.Contains(name, variant) || strings.Contains(key, variant)) {
			score += r.weights.Abbreviation
		}
	}

	// Region hints apply once per candidate: they describe the candidate,
	// not a query variant.
	if hint := Normalize(hints.District); hint != "" && strings.Contains(name, hint) {
		score += r.weights.Region
	}
	if hint := Normalize(hints.State); hint != "" && strings.Contains(name, hint) {
		score += r.weights.Region
	}

	// The tally ranks candidates with more distinct token hits above
	// otherwise-equal ones.
	score += tokenHits

	return ScoredCandidate{Candidate: candidate, Score: score, TokenHits: tokenHits}
}

// nearestName picks the candidate name closest to the query by edit
// distance, for NoMatch diagnostics.
func nearestName(query string, candidates []Candidate) string {
	if query == "" {
		return ""
	}
	best := ""
	bestDistance := -1
	for _, candidate := range candidates {
		d := levenshtein.ComputeDistance(query, Normalize(candidate.Name))
		if bestDistance < 0 || d < bestDistance {
			bestDistance = d
			best = candidate.Name
		}
	}
	return best
}
