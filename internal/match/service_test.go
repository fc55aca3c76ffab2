package match

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/reunite/internal/models"
)

type fakeStore struct {
	cases     []Candidate
	sightings []Candidate
	loadErr   error

	links [][2]uuid.UUID // case, sighting
}

func (f *fakeStore) CaseCandidates(ctx context.Context, status models.CaseStatus) ([]Candidate, error) {
	return f.cases, f.loadErr
}

func (f *fakeStore) SightingCandidates(ctx context.Context, status models.SightingStatus) ([]Candidate, error) {
	return f.sightings, f.loadErr
}

func (f *fakeStore) CaseCandidate(ctx context.Context, id uuid.UUID) (*Candidate, error) {
	for i := range f.cases {
		if f.cases[i].ID == id {
			return &f.cases[i], nil
		}
	}
	return nil, nil
}

func (f *fakeStore) SightingCandidate(ctx context.Context, id uuid.UUID) (*Candidate, error) {
	for i := range f.sightings {
		if f.sightings[i].ID == id {
			return &f.sightings[i], nil
		}
	}
	return nil, nil
}

func (f *fakeStore) LinkMatch(ctx context.Context, caseID, sightingID uuid.UUID) error {
	f.links = append(f.links, [2]uuid.UUID{caseID, sightingID})
	return nil
}

type fakeEngine struct{ available bool }

func (f fakeEngine) Available() bool { return f.available }

func vecCandidate(emb ...float32) Candidate {
	return Candidate{ID: uuid.New(), Embedding: emb}
}

func TestMatchAll_EngineUnavailable(t *testing.T) {
	svc := NewService(&fakeStore{}, fakeEngine{available: false}, nil)

	report := svc.MatchAll(context.Background(), 0.6)

	assert.False(t, report.Status)
	assert.Equal(t, "face engine not available", report.Message)
}

func TestMatchAll_NilEngine(t *testing.T) {
	svc := NewService(&fakeStore{}, nil, nil)

	report := svc.MatchAll(context.Background(), 0.6)

	assert.False(t, report.Status)
	assert.Equal(t, "face engine not available", report.Message)
}

func TestMatchAll_EmptyPopulations(t *testing.T) {
	store := &fakeStore{
		cases: []Candidate{vecCandidate(1, 0, 0)},
	}
	svc := NewService(store, fakeEngine{available: true}, nil)

	report := svc.MatchAll(context.Background(), 0.6)
	assert.False(t, report.Status)
	assert.Equal(t, "no sightings to match", report.Message)

	store.cases = nil
	store.sightings = []Candidate{vecCandidate(1, 0, 0)}
	report = svc.MatchAll(context.Background(), 0.6)
	assert.False(t, report.Status)
	assert.Equal(t, "no open cases to match against", report.Message)
}

func TestMatchAll_LinksAcceptedMatches(t *testing.T) {
	matchingCase := vecCandidate(1, 0, 0)
	otherCase := vecCandidate(0, 0, 1)
	nearSighting := vecCandidate(0.99, 0.1, 0)
	farSighting := vecCandidate(0, 1, 0) // orthogonal to both cases

	store := &fakeStore{
		cases:     []Candidate{matchingCase, otherCase},
		sightings: []Candidate{nearSighting, farSighting},
	}
	svc := NewService(store, fakeEngine{available: true}, nil)

	report := svc.MatchAll(context.Background(), 0.6)

	require.True(t, report.Status)
	require.Len(t, report.Matches, 1)
	got := report.Matches[matchingCase.ID]
	require.Len(t, got, 1)
	assert.Equal(t, nearSighting.ID, got[0].SightingID)
	assert.Greater(t, got[0].Confidence, 99.0)

	// Only the accepted pair was linked.
	require.Len(t, store.links, 1)
	assert.Equal(t, [2]uuid.UUID{matchingCase.ID, nearSighting.ID}, store.links[0])
}

func TestMatchAll_LoadError(t *testing.T) {
	store := &fakeStore{loadErr: errors.New("db down")}
	svc := NewService(store, fakeEngine{available: true}, nil)

	report := svc.MatchAll(context.Background(), 0.6)

	assert.False(t, report.Status)
	assert.Contains(t, report.Message, "db down")
}

func TestMatchOne_RecordNotFound(t *testing.T) {
	svc := NewService(&fakeStore{}, fakeEngine{available: true}, nil)

	report := svc.MatchOne(context.Background(), uuid.New(), KindSighting, 0.6)

	assert.False(t, report.Status)
	assert.Equal(t, "record not found", report.Message)
}

func TestMatchOne_InvalidEncoding(t *testing.T) {
	placeholder := vecCandidate(0, 0, 0)
	store := &fakeStore{sightings: []Candidate{placeholder}}
	svc := NewService(store, fakeEngine{available: true}, nil)

	report := svc.MatchOne(context.Background(), placeholder.ID, KindSighting, 0.6)

	assert.False(t, report.Status)
	assert.Equal(t, "invalid encoding", report.Message)
	assert.False(t, report.MatchFound)
}

func TestMatchOne_NoCandidatesIsSuccess(t *testing.T) {
	sighting := vecCandidate(1, 0, 0)
	store := &fakeStore{sightings: []Candidate{sighting}}
	svc := NewService(store, fakeEngine{available: true}, nil)

	report := svc.MatchOne(context.Background(), sighting.ID, KindSighting, 0.6)

	assert.True(t, report.Status)
	assert.False(t, report.MatchFound)
	assert.Empty(t, store.links)
}

func TestMatchOne_SightingAgainstCases(t *testing.T) {
	cs := vecCandidate(1, 0, 0)
	sighting := vecCandidate(0.99, 0.1, 0)
	store := &fakeStore{
		cases:     []Candidate{cs},
		sightings: []Candidate{sighting},
	}
	svc := NewService(store, fakeEngine{available: true}, nil)

	var notified [2]uuid.UUID
	svc.OnMatch = func(ctx context.Context, caseID, sightingID uuid.UUID, distance float64) {
		notified = [2]uuid.UUID{caseID, sightingID}
	}

	report := svc.MatchOne(context.Background(), sighting.ID, KindSighting, 0.6)

	require.True(t, report.Status)
	require.True(t, report.MatchFound)
	assert.Equal(t, cs.ID, report.CaseID)
	assert.Equal(t, sighting.ID, report.SightingID)
	assert.Equal(t, Confidence(report.Distance), report.Confidence)

	require.Len(t, store.links, 1)
	assert.Equal(t, [2]uuid.UUID{cs.ID, sighting.ID}, store.links[0])
	assert.Equal(t, [2]uuid.UUID{cs.ID, sighting.ID}, notified)
}

func TestMatchOne_CaseAgainstSightings_SwapsIDs(t *testing.T) {
	cs := vecCandidate(1, 0, 0)
	sighting := vecCandidate(0.99, 0.1, 0)
	store := &fakeStore{
		cases:     []Candidate{cs},
		sightings: []Candidate{sighting},
	}
	svc := NewService(store, fakeEngine{available: true}, nil)

	report := svc.MatchOne(context.Background(), cs.ID, KindCase, 0.6)

	require.True(t, report.MatchFound)
	// Reported pair is always (case, sighting) regardless of query kind.
	assert.Equal(t, cs.ID, report.CaseID)
	assert.Equal(t, sighting.ID, report.SightingID)
	require.Len(t, store.links, 1)
	assert.Equal(t, [2]uuid.UUID{cs.ID, sighting.ID}, store.links[0])
}

func TestMatchOne_RejectedAboveThreshold(t *testing.T) {
	cs := vecCandidate(0, 1, 0)
	sighting := vecCandidate(1, 0, 0)
	store := &fakeStore{
		cases:     []Candidate{cs},
		sightings: []Candidate{sighting},
	}
	svc := NewService(store, fakeEngine{available: true}, nil)

	report := svc.MatchOne(context.Background(), sighting.ID, KindSighting, 0.6)

	assert.True(t, report.Status)
	assert.False(t, report.MatchFound)
	assert.Empty(t, store.links)
}

func TestMatchOne_UnknownKind(t *testing.T) {
	svc := NewService(&fakeStore{}, fakeEngine{available: true}, nil)

	report := svc.MatchOne(context.Background(), uuid.New(), Kind("bogus"), 0.6)

	assert.False(t, report.Status)
	assert.Contains(t, report.Message, "unknown record kind")
}
