package recommend

import (
	"context"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"
)

const (
	// minCommonActions is the minimum overlap between two preference
	// vectors before their similarity carries any statistical weight.
	minCommonActions = 3
	// minPreferencesForSimilarity is the cold-start guard: users below it
	// get no neighbors at all.
	minPreferencesForSimilarity = 5

	defaultTopN          = 20
	defaultMinSimilarity = 0.3

	// similarityConcurrency bounds the pairwise fan-out so one request
	// cannot monopolize the store.
	similarityConcurrency = 8
)

// SimilarUser is one neighbor in similarity space.
type SimilarUser struct {
	UserID     int32
	Similarity float64
}

// CosineSimilarity computes cosine similarity between two sparse
// preference vectors, restricted to the ids present in both. The norms
// are taken over the intersection only, so the result measures agreement
// on shared choices rather than overall activity volume. Fewer than
// minCommonActions shared ids yields 0. The result lives in [-1, 1] and
// negative values are preserved.
func CosineSimilarity(a, b map[int32]float64) float64 {
	if len(a) > len(b) {
		a, b = b, a
	}

	var dot, normA, normB float64
	common := 0
	for id, scoreA := range a {
		scoreB, ok := b[id]
		if !ok {
			continue
		}
		common++
		dot += scoreA * scoreB
		normA += scoreA * scoreA
		normB += scoreB * scoreB
	}

	if common < minCommonActions {
		return 0.0
	}
	if normA == 0 || normB == 0 {
		return 0.0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// FindSimilarUsers returns up to topN active users whose similarity with
// the given user strictly exceeds minSimilarity, most similar first. A
// user with fewer than minPreferencesForSimilarity recorded preferences
// gets an empty list.
func (e *Engine) FindSimilarUsers(ctx context.Context, userID int32, topN int, minSimilarity float64) ([]SimilarUser, error) {
	preferences, err := e.store.GetUserPreferences(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(preferences) < minPreferencesForSimilarity {
		return []SimilarUser{}, nil
	}

	activeUserIDs, err := e.store.ListActiveUserIDs(ctx, minPreferencesForSimilarity)
	if err != nil {
		return nil, err
	}
	return e.rankSimilarUsers(ctx, userID, preferences, activeUserIDs, topN, minSimilarity)
}

// rankSimilarUsers does the pairwise work for an already-loaded
// preference vector.
func (e *Engine) rankSimilarUsers(ctx context.Context, userID int32, preferences map[int32]float64, activeUserIDs []int32, topN int, minSimilarity float64) ([]SimilarUser, error) {
	candidates := make([]int32, 0, len(activeUserIDs))
	for _, activeID := range activeUserIDs {
		if activeID != userID {
			candidates = append(candidates, activeID)
		}
	}

	similarities := make([]float64, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(similarityConcurrency)
	for i, otherID := range candidates {
		g.Go(func() error {
			if similarity, ok := e.store.GetUserSimilarity(gctx, userID, otherID); ok {
				similarities[i] = similarity
				return nil
			}
			otherPreferences, err := e.store.GetUserPreferences(gctx, otherID)
			if err != nil {
				return err
			}
			similarity := CosineSimilarity(preferences, otherPreferences)
			e.store.SetUserSimilarity(gctx, userID, otherID, similarity)
			similarities[i] = similarity
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	neighbors := []SimilarUser{}
	for i, similarity := range similarities {
		if similarity > minSimilarity {
			neighbors = append(neighbors, SimilarUser{UserID: candidates[i], Similarity: similarity})
		}
	}
	sort.Slice(neighbors, func(i, j int) bool {
		if neighbors[i].Similarity != neighbors[j].Similarity {
			return neighbors[i].Similarity > neighbors[j].Similarity
		}
		return neighbors[i].UserID < neighbors[j].UserID
	})
	if topN > 0 && len(neighbors) > topN {
		neighbors = neighbors[:topN]
	}
	return neighbors, nil
}
