package store

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// VectorStore provides persistent chunk storage and similarity search over
// a named collection.
type VectorStore struct {
	db *DB
}

// NewVectorStore creates a new vector store
func NewVectorStore(db *DB) *VectorStore {
	return &VectorStore{db: db}
}

// CollectionMeta records which embedding configuration produced a collection.
type CollectionMeta struct {
	Provider  string
	Model     string
	Dimension int
}

// StoredChunk is a chunk row as persisted in a collection.
type StoredChunk struct {
	DocumentID string
	Seq        int
	Text       string
	HeaderPath []string
}

// ScoredChunk is a search hit with its cosine similarity score.
type ScoredChunk struct {
	Chunk StoredChunk
	Score float32
}

// Meta returns the collection metadata, or nil when the collection does not exist.
func (v *VectorStore) Meta(collection string) (*CollectionMeta, error) {
	var meta CollectionMeta
	err := v.db.sqlDB.QueryRow(
		"SELECT provider, model, dimension FROM collections WHERE name = ?", collection,
	).Scan(&meta.Provider, &meta.Model, &meta.Dimension)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read collection meta: %v", ErrIndexUnavailable, err)
	}
	return &meta, nil
}

// ReplaceDocument atomically replaces all chunks of a document in the
// collection. Re-ingesting the same document id is idempotent, never additive.
// The collection row is created on first write.
func (v *VectorStore) ReplaceDocument(collection, documentID string, chunks []StoredChunk, vectors [][]float32, meta CollectionMeta) (int, error) {
	if len(chunks) != len(vectors) {
		return 0, fmt.Errorf("chunks and vectors length mismatch: %d vs %d", len(chunks), len(vectors))
	}
	if len(chunks) == 0 {
		return 0, fmt.Errorf("no chunks to store")
	}

	existing, err := v.Meta(collection)
	if err != nil {
		return 0, err
	}
	if existing != nil && (existing.Provider != meta.Provider || existing.Model != meta.Model) {
		return 0, fmt.Errorf("collection %q was ingested with %s/%s but is configured for %s/%s; "+
			"recreate the collection or restore the original embedding configuration",
			collection, existing.Provider, existing.Model, meta.Provider, meta.Model)
	}

	tx, err := v.db.sqlDB.Begin()
	if err != nil {
		return 0, fmt.Errorf("%w: failed to begin transaction: %v", ErrIndexUnavailable, err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)

	if existing == nil {
		if _, err := tx.Exec(
			"INSERT INTO collections (name, provider, model, dimension, created_at) VALUES (?, ?, ?, ?, ?)",
			collection, meta.Provider, meta.Model, meta.Dimension, now,
		); err != nil {
			return 0, fmt.Errorf("%w: failed to create collection: %v", ErrIndexUnavailable, err)
		}
	}

	if _, err := tx.Exec(
		"DELETE FROM chunks WHERE collection = ? AND document_id = ?", collection, documentID,
	); err != nil {
		return 0, fmt.Errorf("%w: failed to clear document chunks: %v", ErrIndexUnavailable, err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO chunks (collection, document_id, seq, text, header_path, vector, dimension, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to prepare statement: %v", ErrIndexUnavailable, err)
	}
	defer stmt.Close()

	for i, chunk := range chunks {
		if len(vectors[i]) == 0 {
			return 0, fmt.Errorf("empty vector for chunk %d", i)
		}
		blob := vectorToBlob(vectors[i])
		headerPath, err := json.Marshal(chunk.HeaderPath)
		if err != nil {
			return 0, fmt.Errorf("failed to encode header path for chunk %d: %w", i, err)
		}
		if _, err := stmt.Exec(
			collection, documentID, chunk.Seq, chunk.Text, string(headerPath),
			blob, len(vectors[i]), now,
		); err != nil {
			return 0, fmt.Errorf("%w: failed to insert chunk %d: %v", ErrIndexUnavailable, i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: failed to commit: %v", ErrIndexUnavailable, err)
	}

	return len(chunks), nil
}

// Count returns the number of chunks stored in the collection.
func (v *VectorStore) Count(collection string) (int, error) {
	var count int
	err := v.db.sqlDB.QueryRow(
		"SELECT COUNT(*) FROM chunks WHERE collection = ?", collection,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to count chunks: %v", ErrIndexUnavailable, err)
	}
	return count, nil
}

// CountDocument returns the number of chunks stored for one document.
func (v *VectorStore) CountDocument(collection, documentID string) (int, error) {
	var count int
	err := v.db.sqlDB.QueryRow(
		"SELECT COUNT(*) FROM chunks WHERE collection = ? AND document_id = ?", collection, documentID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to count document chunks: %v", ErrIndexUnavailable, err)
	}
	return count, nil
}

// Search returns the topK nearest chunks by cosine similarity, best first.
// Equal scores keep insertion order. Searching before any ingestion returns
// ErrEmptyIndex.
func (v *VectorStore) Search(collection string, queryVector []float32, topK int) ([]ScoredChunk, error) {
	if len(queryVector) == 0 {
		return nil, fmt.Errorf("query vector is empty")
	}
	if topK <= 0 {
		return nil, nil
	}

	count, err := v.Count(collection)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, fmt.Errorf("%w: collection %q has no chunks", ErrEmptyIndex, collection)
	}

	// Full scan in insertion order; fine for a single document's worth of
	// chunks. Score ties keep their scan position via the stable sort below.
	rows, err := v.db.sqlDB.Query(
		"SELECT document_id, seq, text, header_path, vector FROM chunks WHERE collection = ? ORDER BY rowid",
		collection,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query chunks: %v", ErrIndexUnavailable, err)
	}
	defer rows.Close()

	var results []ScoredChunk
	for rows.Next() {
		var chunk StoredChunk
		var headerPath string
		var blob []byte

		if err := rows.Scan(&chunk.DocumentID, &chunk.Seq, &chunk.Text, &headerPath, &blob); err != nil {
			return nil, fmt.Errorf("%w: failed to scan row: %v", ErrIndexUnavailable, err)
		}
		if err := json.Unmarshal([]byte(headerPath), &chunk.HeaderPath); err != nil {
			continue // Skip malformed header metadata
		}

		vector, err := blobToVector(blob)
		if err != nil {
			continue // Skip malformed vectors
		}
		if len(vector) != len(queryVector) {
			continue
		}

		results = append(results, ScoredChunk{
			Chunk: chunk,
			Score: cosine(queryVector, vector),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating rows: %v", ErrIndexUnavailable, err)
	}

	sortResults(results)

	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// cosine computes cosine similarity between two equal-length vectors.
func cosine(a, b []float32) float32 {
	var dot, normA, normB float32
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (float32(math.Sqrt(float64(normA))) * float32(math.Sqrt(float64(normB))))
}

// vectorToBlob converts a float32 slice to a little-endian binary blob
func vectorToBlob(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		bits := math.Float32bits(v)
		binary.LittleEndian.PutUint32(blob[i*4:i*4+4], bits)
	}
	return blob
}

// blobToVector converts a binary blob back to a float32 slice
func blobToVector(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("blob size %d is not a multiple of 4", len(blob))
	}

	vector := make([]float32, len(blob)/4)
	for i := 0; i < len(vector); i++ {
		bits := binary.LittleEndian.Uint32(blob[i*4 : i*4+4])
		vector[i] = math.Float32frombits(bits)
	}

	return vector, nil
}

// sortResults sorts results by score (descending) using insertion sort,
// which is stable so equal scores keep insertion order.
func sortResults(results []ScoredChunk) {
	for i := 1; i < len(results); i++ {
		key := results[i]
		j := i - 1
		for j >= 0 && results[j].Score < key.Score {
			results[j+1] = results[j]
			j--
		}
		results[j+1] = key
	}
}
