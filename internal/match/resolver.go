package match

import "github.com/google/uuid"

// Candidate is one stored embedding to search against.
type Candidate struct {
	ID        uuid.UUID
	Embedding []float32
}

// Result is the outcome of resolving one query against a candidate set.
// BestID is uuid.Nil when no comparable candidate existed; Distance is only
// meaningful when BestID is set. Accepted is true iff a best candidate was
// found within the threshold.
type Result struct {
	QueryID  uuid.UUID
	BestID   uuid.UUID
	Distance float64
	Accepted bool
}

// Resolver finds the nearest candidate to a query embedding. The linear
// implementation below is sufficient at current scale; an indexed
// nearest-neighbour structure can be substituted without changing callers.
type Resolver interface {
	Resolve(query Candidate, candidates []Candidate, threshold float64) Result
}

// LinearResolver scans candidates in the order given. Candidates whose
// embedding dimension differs from the query, or whose embedding is the zero
// placeholder, are skipped without counting as a comparison. Ties keep the
// first-seen minimum, so tie outcomes depend on storage iteration order;
// this matches the stored-data semantics and is deliberately not "fixed".
type LinearResolver struct{}

func (LinearResolver) Resolve(query Candidate, candidates []Candidate, threshold float64) Result {
	res := Result{QueryID: query.ID}
	if IsZero(query.Embedding) {
		return res
	}

	best := -1.0
	for _, c := range candidates {
		if len(c.Embedding) != len(query.Embedding) || IsZero(c.Embedding) {
			continue
		}
		d := Cosine(query.Embedding, c.Embedding)
		if best < 0 || d < best {
			best = d
			res.BestID = c.ID
		}
	}

	if res.BestID == uuid.Nil {
		return res
	}

	res.Distance = best
	res.Accepted = best <= threshold
	return res
}
