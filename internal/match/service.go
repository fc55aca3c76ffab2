package match

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/your-org/reunite/internal/models"
	"github.com/your-org/reunite/internal/observability"
)

// Kind selects which population a record belongs to.
type Kind string

const (
	KindCase     Kind = "case"
	KindSighting Kind = "sighting"
)

// Store is the persistence surface the matchers need. Implementations must
// drop zero-placeholder embeddings before returning candidates and return
// nil (not an error) when a record does not exist.
type Store interface {
	CaseCandidates(ctx context.Context, status models.CaseStatus) ([]Candidate, error)
	SightingCandidates(ctx context.Context, status models.SightingStatus) ([]Candidate, error)
	CaseCandidate(ctx context.Context, id uuid.UUID) (*Candidate, error)
	SightingCandidate(ctx context.Context, id uuid.UUID) (*Candidate, error)
	// LinkMatch records the case→sighting link. It does not flip either
	// status; confirmation is a separate, explicit step.
	LinkMatch(ctx context.Context, caseID, sightingID uuid.UUID) error
}

// Capability reports whether the face engine behind the stored embeddings is
// loaded. It is obtained once at process start and injected here, so
// unavailability is a constructor-time fact rather than hidden global state.
type Capability interface {
	Available() bool
}

// SightingMatch is one accepted sighting for a case in a batch report.
type SightingMatch struct {
	SightingID uuid.UUID `json:"sighting_id"`
	Distance   float64   `json:"distance"`
	Confidence float64   `json:"confidence"`
}

// BatchReport is the outcome of a full re-matching run. Status is false for
// reported, non-fatal conditions (empty populations, engine unavailable).
type BatchReport struct {
	Status  bool                          `json:"status"`
	Message string                        `json:"message,omitempty"`
	Matches map[uuid.UUID][]SightingMatch `json:"result,omitempty"`
}

// OneReport is the outcome of matching a single new record.
type OneReport struct {
	Status     bool      `json:"status"`
	Message    string    `json:"message,omitempty"`
	MatchFound bool      `json:"match_found"`
	CaseID     uuid.UUID `json:"case_id,omitempty"`
	SightingID uuid.UUID `json:"sighting_id,omitempty"`
	Distance   float64   `json:"distance,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`
}

// Service runs batch and incremental matching over the embedding store.
type Service struct {
	store    Store
	engine   Capability
	resolver Resolver

	// OnMatch, when set, is called after a match link is persisted.
	// Set after construction, like an optional event sink.
	OnMatch func(ctx context.Context, caseID, sightingID uuid.UUID, distance float64)
}

func NewService(store Store, engine Capability, resolver Resolver) *Service {
	if resolver == nil {
		resolver = LinearResolver{}
	}
	return &Service{store: store, engine: engine, resolver: resolver}
}

func (s *Service) engineReady() bool {
	return s.engine != nil && s.engine.Available()
}

// MatchAll resolves every under-review sighting against every open case.
// Accepted matches are linked and reported per case; it never mutates
// embeddings and never flips statuses.
func (s *Service) MatchAll(ctx context.Context, threshold float64) BatchReport {
	observability.MatchRuns.WithLabelValues("batch").Inc()

	if !s.engineReady() {
		return BatchReport{Message: "face engine not available"}
	}

	sightings, err := s.store.SightingCandidates(ctx, models.SightingStatusUnderReview)
	if err != nil {
		return BatchReport{Message: fmt.Sprintf("load sightings: %v", err)}
	}
	cases, err := s.store.CaseCandidates(ctx, models.CaseStatusNotFound)
	if err != nil {
		return BatchReport{Message: fmt.Sprintf("load cases: %v", err)}
	}

	if len(sightings) == 0 {
		return BatchReport{Message: "no sightings to match"}
	}
	if len(cases) == 0 {
		return BatchReport{Message: "no open cases to match against"}
	}

	matches := make(map[uuid.UUID][]SightingMatch)
	for _, sighting := range sightings {
		res := s.resolver.Resolve(sighting, cases, threshold)
		if !res.Accepted {
			continue
		}

		slog.Info("match accepted",
			"sighting_id", res.QueryID,
			"case_id", res.BestID,
			"distance", res.Distance,
		)

		if err := s.store.LinkMatch(ctx, res.BestID, res.QueryID); err != nil {
			slog.Error("persist match link", "case_id", res.BestID, "sighting_id", res.QueryID, "error", err)
			continue
		}
		observability.MatchesAccepted.WithLabelValues("batch").Inc()
		s.notify(ctx, res.BestID, res.QueryID, res.Distance)

		matches[res.BestID] = append(matches[res.BestID], SightingMatch{
			SightingID: res.QueryID,
			Distance:   res.Distance,
			Confidence: Confidence(res.Distance),
		})
	}

	return BatchReport{Status: true, Matches: matches}
}

// MatchOne resolves exactly one newly created record against the entire
// opposite population. Designed to run as a detached background task right
// after submission; it must never surface a failure to the caller's path.
func (s *Service) MatchOne(ctx context.Context, id uuid.UUID, kind Kind, threshold float64) OneReport {
	observability.MatchRuns.WithLabelValues("incremental").Inc()

	if !s.engineReady() {
		return OneReport{Message: "face engine not available"}
	}

	var (
		target     *Candidate
		candidates []Candidate
		err        error
	)

	switch kind {
	case KindSighting:
		target, err = s.store.SightingCandidate(ctx, id)
		if err == nil && target != nil {
			candidates, err = s.store.CaseCandidates(ctx, models.CaseStatusNotFound)
		}
	case KindCase:
		target, err = s.store.CaseCandidate(ctx, id)
		if err == nil && target != nil {
			candidates, err = s.store.SightingCandidates(ctx, models.SightingStatusUnderReview)
		}
	default:
		return OneReport{Message: fmt.Sprintf("unknown record kind %q", kind)}
	}

	if err != nil {
		return OneReport{Message: fmt.Sprintf("load records: %v", err)}
	}
	if target == nil {
		return OneReport{Message: "record not found"}
	}
	// Distinguish a placeholder encoding from a genuine no-match so operators
	// can tell a data problem from a true negative.
	if IsZero(target.Embedding) {
		return OneReport{Message: "invalid encoding"}
	}
	if len(candidates) == 0 {
		return OneReport{Status: true}
	}

	res := s.resolver.Resolve(*target, candidates, threshold)
	if !res.Accepted {
		if res.BestID != uuid.Nil {
			slog.Info("no match", "id", id, "kind", kind, "best_distance", res.Distance)
		}
		return OneReport{Status: true}
	}

	caseID, sightingID := res.BestID, res.QueryID
	if kind == KindCase {
		caseID, sightingID = res.QueryID, res.BestID
	}

	slog.Info("incremental match accepted",
		"case_id", caseID,
		"sighting_id", sightingID,
		"distance", res.Distance,
	)

	if err := s.store.LinkMatch(ctx, caseID, sightingID); err != nil {
		return OneReport{Message: fmt.Sprintf("persist match link: %v", err)}
	}
	observability.MatchesAccepted.WithLabelValues("incremental").Inc()
	s.notify(ctx, caseID, sightingID, res.Distance)

	return OneReport{
		Status:     true,
		MatchFound: true,
		CaseID:     caseID,
		SightingID: sightingID,
		Distance:   res.Distance,
		Confidence: Confidence(res.Distance),
	}
}

func (s *Service) notify(ctx context.Context, caseID, sightingID uuid.UUID, distance float64) {
	if s.OnMatch != nil {
		s.OnMatch(ctx, caseID, sightingID, distance)
	}
}
