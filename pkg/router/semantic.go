package router

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog/log"
)

// WarmEmbeddings generates (or loads from cache) the example embeddings
// for every profile. Safe to call again to refresh after the cache TTL
// lapses; the semantic tier simply scores nothing until it has run.
func (r *Router) WarmEmbeddings(ctx context.Context) error {
	if r.embedder == nil {
		return fmt.Errorf("no embedder configured")
	}

	warmed := make(map[string][][]float32, len(r.profiles))

	for _, profile := range r.profiles {
		embeddings := make([][]float32, 0, len(profile.Examples))
		var missing []string
		var missingIdx []int

		for i, example := range profile.Examples {
			embeddings = append(embeddings, nil)
			if r.cache != nil {
				cached, err := r.cache.Get(example)
				if err != nil {
					log.Warn().Err(err).Str("agent", profile.Key).Msg("Embedding cache read failed")
				}
				if cached != nil {
					embeddings[i] = cached
					continue
				}
			}
			missing = append(missing, example)
			missingIdx = append(missingIdx, i)
		}

		if len(missing) > 0 {
			generated, err := r.embedder.Embed(ctx, missing)
			if err != nil {
				return fmt.Errorf("failed to embed examples for %s: %w", profile.Key, err)
			}
			for j, idx := range missingIdx {
				embeddings[idx] = generated[j]
				if r.cache != nil {
					if err := r.cache.Put(missing[j], generated[j]); err != nil {
						log.Warn().Err(err).Str("agent", profile.Key).Msg("Embedding cache write failed")
					}
				}
			}
		}

		warmed[profile.Key] = embeddings
		log.Info().
			Str("agent", profile.Key).
			Int("examples", len(embeddings)).
			Int("generated", len(missing)).
			Msg("Example embeddings warmed")
	}

	r.mu.Lock()
	r.exampleEmbeddings = warmed
	r.mu.Unlock()

	if r.cache != nil {
		if err := r.cache.IndexExamples(warmed); err != nil {
			log.Warn().Err(err).Msg("Example vector index rebuild failed, scoring in memory")
		}
	}

	return nil
}

// semanticRoute embeds the query and compares it against each profile's
// example embeddings by cosine similarity, taking the per-profile
// maximum. Returns "" unless the best similarity clears the threshold.
func (r *Router) semanticRoute(ctx context.Context, query string) (string, float64, error) {
	r.mu.RLock()
	examples := r.exampleEmbeddings
	r.mu.RUnlock()

	if r.embedder == nil || len(examples) == 0 {
		return "", 0.0, nil
	}

	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return "", 0.0, fmt.Errorf("failed to embed query: %w", err)
	}
	queryVec := vectors[0]

	bestKey, bestSim := r.nearestExample(queryVec, examples)

	if bestKey == "" || bestSim < r.semanticThreshold {
		return "", 0.0, nil
	}

	log.Debug().
		Str("agent", bestKey).
		Float64("similarity", bestSim).
		Msg("Semantic routing matched")

	return bestKey, bestSim, nil
}

// nearestExample finds the profile whose closest example embedding best
// matches queryVec. When a cache is wired the lookup runs through its
// vec0 index; on index failure or an empty index it degrades to an
// in-memory scan over the warmed embeddings.
func (r *Router) nearestExample(queryVec []float32, examples map[string][][]float32) (string, float64) {
	if r.cache != nil {
		key, sim, err := r.cache.NearestExample(queryVec)
		if err != nil {
			log.Warn().Err(err).Msg("Example vector index lookup failed, scoring in memory")
		} else if key != "" {
			return key, sim
		}
	}

	bestKey := ""
	bestSim := 0.0

	for _, profile := range r.profiles {
		maxSim := 0.0
		for _, example := range examples[profile.Key] {
			if sim := cosineSimilarity(queryVec, example); sim > maxSim {
				maxSim = sim
			}
		}
		if maxSim > bestSim {
			bestKey = profile.Key
			bestSim = maxSim
		}
	}

	return bestKey, bestSim
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0.0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}

	// Rounding can push the ratio marginally past 1; keep it in bounds
	// since callers report it as a confidence.
	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if sim > 1.0 {
		sim = 1.0
	}
	return sim
}
