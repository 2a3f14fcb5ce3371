package router

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	// Auto-register sqlite-vec extension
	sqlite_vec.Auto()
}

// cacheTTL bounds how long a cached example embedding stays valid
const cacheTTL = 24 * time.Hour

// EmbeddingCache persists example-utterance embeddings in sqlite so the
// semantic tier does not re-embed the static example set on every
// process start. Warmed examples are also indexed in a vec0 virtual
// table so the nearest-example lookup runs inside sqlite.
type EmbeddingCache struct {
	db *sql.DB
}

// OpenCache opens (or creates) the embedding cache at path
func OpenCache(path string) (*EmbeddingCache, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedding cache: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS embedding_cache (
			content_hash TEXT PRIMARY KEY,
			embedding BLOB NOT NULL,
			dimension INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_cache_created ON embedding_cache(created_at);

		CREATE TABLE IF NOT EXISTS example_profiles (
			example_id TEXT PRIMARY KEY,
			agent_key TEXT NOT NULL
		);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache schema: %w", err)
	}

	return &EmbeddingCache{db: db}, nil
}

// Get returns the cached embedding for content, or nil on miss or when
// the entry is older than the TTL.
func (c *EmbeddingCache) Get(content string) ([]float32, error) {
	var blob []byte
	var createdAt int64

	err := c.db.QueryRow(
		"SELECT embedding, created_at FROM embedding_cache WHERE content_hash = ?",
		hashContent(content),
	).Scan(&blob, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if time.Since(time.Unix(createdAt, 0)) > cacheTTL {
		return nil, nil
	}

	var embedding []float32
	if err := json.Unmarshal(blob, &embedding); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached embedding: %w", err)
	}
	return embedding, nil
}

// Put stores an embedding for content
func (c *EmbeddingCache) Put(content string, embedding []float32) error {
	blob, err := json.Marshal(embedding)
	if err != nil {
		return fmt.Errorf("failed to marshal embedding: %w", err)
	}

	_, err = c.db.Exec(
		"INSERT OR REPLACE INTO embedding_cache (content_hash, embedding, dimension, created_at) VALUES (?, ?, ?, ?)",
		hashContent(content), blob, len(embedding), time.Now().Unix(),
	)
	return err
}

// Prune removes entries older than the TTL and returns how many were
// deleted.
func (c *EmbeddingCache) Prune() (int64, error) {
	cutoff := time.Now().Add(-cacheTTL).Unix()
	result, err := c.db.Exec("DELETE FROM embedding_cache WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// IndexExamples rebuilds the vec0 index from the warmed example
// embeddings. The virtual table is recreated on every call since the
// example set (and its dimension) may change between warms.
func (c *EmbeddingCache) IndexExamples(examples map[string][][]float32) error {
	dimension := 0
	for _, vectors := range examples {
		for _, vec := range vectors {
			if len(vec) > 0 {
				dimension = len(vec)
				break
			}
		}
		if dimension > 0 {
			break
		}
	}
	if dimension == 0 {
		return fmt.Errorf("no example embeddings to index")
	}

	if _, err := c.db.Exec("DROP TABLE IF EXISTS example_index"); err != nil {
		return fmt.Errorf("failed to reset example index: %w", err)
	}

	vectorSchema := fmt.Sprintf(`
		CREATE VIRTUAL TABLE example_index USING vec0(
			example_id TEXT PRIMARY KEY,
			embedding float[%d] distance_metric=cosine
		);
	`, dimension)
	if _, err := c.db.Exec(vectorSchema); err != nil {
		return fmt.Errorf("failed to create example index: %w", err)
	}

	tx, err := c.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM example_profiles"); err != nil {
		return err
	}

	for agentKey, vectors := range examples {
		for i, vec := range vectors {
			if len(vec) != dimension {
				continue
			}

			vecJSON, err := json.Marshal(vec)
			if err != nil {
				return fmt.Errorf("failed to marshal example embedding: %w", err)
			}

			exampleID := fmt.Sprintf("%s_%d", agentKey, i)
			if _, err := tx.Exec(
				"INSERT INTO example_index (example_id, embedding) VALUES (?, ?)",
				exampleID, string(vecJSON),
			); err != nil {
				return fmt.Errorf("failed to index example: %w", err)
			}
			if _, err := tx.Exec(
				"INSERT INTO example_profiles (example_id, agent_key) VALUES (?, ?)",
				exampleID, agentKey,
			); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// NearestExample returns the agent key of the indexed example closest to
// queryVec by cosine distance, with its similarity in [0,1]. Returns ""
// when the index is empty or has not been built.
func (c *EmbeddingCache) NearestExample(queryVec []float32) (string, float64, error) {
	var exists int
	err := c.db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'example_index'",
	).Scan(&exists)
	if err != nil || exists == 0 {
		return "", 0.0, err
	}

	vecJSON, err := json.Marshal(queryVec)
	if err != nil {
		return "", 0.0, fmt.Errorf("failed to marshal query embedding: %w", err)
	}

	var agentKey string
	var distance float64
	err = c.db.QueryRow(`
		SELECT p.agent_key, vec_distance_cosine(i.embedding, ?) AS distance
		FROM example_index i
		JOIN example_profiles p ON p.example_id = i.example_id
		ORDER BY distance ASC
		LIMIT 1
	`, string(vecJSON)).Scan(&agentKey, &distance)
	if err == sql.ErrNoRows {
		return "", 0.0, nil
	}
	if err != nil {
		return "", 0.0, err
	}

	// Cosine distance lies in [0,2]; clamp so similarity stays in [0,1]
	similarity := 1.0 - distance
	if similarity > 1.0 {
		similarity = 1.0
	}
	if similarity < 0.0 {
		similarity = 0.0
	}

	return agentKey, similarity, nil
}

// Close closes the underlying database
func (c *EmbeddingCache) Close() error {
	return c.db.Close()
}

func hashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
