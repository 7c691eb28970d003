// Package matcher resolves a query encoding to the closest gallery identity.
//
// Matching is two explicit steps: Nearest picks the gallery index with the
// smallest distance (lowest index on ties), then the Accepts policy decides
// whether that nearest entry is close enough to count as the same person.
package matcher

import (
	"encoding/json"
	"math"

	"github.com/NIHAL-N-M/CrimeApp2/pkg/gallery"
	"github.com/NIHAL-N-M/CrimeApp2/pkg/recognition"
	"github.com/NIHAL-N-M/CrimeApp2/pkg/storage"
)

// DistanceFunc measures how far apart two encodings are.
type DistanceFunc func(a, b recognition.Descriptor) float64

// AcceptFunc decides whether two encodings belong to the same person.
type AcceptFunc func(a, b recognition.Descriptor) bool

// Result is the outcome of matching one query.
type Result struct {
	Known    bool             `json:"known"`
	Index    int              `json:"index"`
	Identity storage.Identity `json:"identity"`
	Distance float64          `json:"distance"`
}

// MarshalJSON omits a non-finite distance, which JSON cannot represent.
func (r Result) MarshalJSON() ([]byte, error) {
	type plain Result
	out := struct {
		plain
		Distance *float64 `json:"distance,omitempty"`
	}{plain: plain(r)}
	if !math.IsInf(r.Distance, 0) && !math.IsNaN(r.Distance) {
		out.Distance = &r.Distance
	}
	return json.Marshal(out)
}

// Unknown is the result for a query that matched nobody.
func Unknown() Result {
	return Result{Index: -1, Distance: math.Inf(1)}
}

// Nearest returns the index and distance of the descriptor closest to
// query. Ties go to the lowest index. Empty input yields (-1, +Inf).
func Nearest(query recognition.Descriptor, descriptors []recognition.Descriptor, dist DistanceFunc) (int, float64) {
	best, bestDist := -1, math.Inf(1)
	for i, d := range descriptors {
		if v := dist(query, d); v < bestDist {
			best, bestDist = i, v
		}
	}
	return best, bestDist
}

// Matcher composes Nearest with an acceptance policy.
type Matcher struct {
	distance DistanceFunc
	accepts  AcceptFunc
}

// New creates a Matcher.
func New(distance DistanceFunc, accepts AcceptFunc) *Matcher {
	return &Matcher{distance: distance, accepts: accepts}
}

// Match resolves query against g. An empty gallery is Unknown without a
// single distance computation.
func (m *Matcher) Match(query recognition.Descriptor, g *gallery.Gallery) Result {
	if g.Len() == 0 {
		return Unknown()
	}

	idx, dist := Nearest(query, g.Descriptors(), m.distance)
	if idx < 0 {
		return Unknown()
	}

	entry := g.At(idx)
	if !m.accepts(query, entry.Descriptor) {
		return Unknown()
	}
	return Result{Known: true, Index: idx, Identity: entry.Identity, Distance: dist}
}
