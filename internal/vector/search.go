package vector

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// DefaultK is the number of neighbours returned when k is not positive.
const DefaultK = 5

var (
	// ErrEmptyCorpus is returned when searching an empty corpus.
	ErrEmptyCorpus = errors.New("vector: empty corpus")
	// ErrEmptyQuery is returned for a zero-length query vector.
	ErrEmptyQuery = errors.New("vector: empty query")
	// ErrDimensionMismatch is returned when a corpus vector's length differs from the query's.
	ErrDimensionMismatch = errors.New("vector: dimension mismatch")
)

// Neighbor is a corpus position and its distance from the query.
type Neighbor struct {
	Index    int     `json:"index"`
	Distance float64 `json:"distance"`
}

// SearchNeighbors ranks every corpus vector by L2 distance to query and returns the closest
// min(k, len(corpus)). Equal distances keep corpus order, so results are deterministic.
func SearchNeighbors(query []float32, corpus [][]float32, k int) ([]Neighbor, error) {
	if len(corpus) == 0 {
		return nil, ErrEmptyCorpus
	}
	if len(query) == 0 {
		return nil, ErrEmptyQuery
	}
	if k <= 0 {
		k = DefaultK
	}

	neighbors := make([]Neighbor, len(corpus))
	for i, vec := range corpus {
		if len(vec) != len(query) {
			return nil, fmt.Errorf("%w: corpus vector %d has %d dimensions, query has %d",
				ErrDimensionMismatch, i, len(vec), len(query))
		}
		neighbors[i] = Neighbor{Index: i, Distance: SquaredL2Distance(query, vec)}
	}
	sort.SliceStable(neighbors, func(i, j int) bool {
		return neighbors[i].Distance < neighbors[j].Distance
	})

	if k > len(neighbors) {
		k = len(neighbors)
	}
	neighbors = neighbors[:k]
	for i := range neighbors {
		neighbors[i].Distance = math.Sqrt(neighbors[i].Distance)
	}
	return neighbors, nil
}

// Search returns the corpus indices of the k nearest vectors to query, closest first.
func Search(query []float32, corpus [][]float32, k int) ([]int, error) {
	neighbors, err := SearchNeighbors(query, corpus, k)
	if err != nil {
		return nil, err
	}
	indices := make([]int, len(neighbors))
	for i, n := range neighbors {
		indices[i] = n.Index
	}
	return indices, nil
}
