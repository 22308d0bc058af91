package store

import (
	"bufio"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"

	"github.com/codescope/codescope/internal/embed"
	"github.com/codescope/codescope/internal/errors"
)

// VectorIndex is the approximate-nearest-neighbor layer over chunk
// embeddings. Vectors of the wrong dimension are rejected outright.
// Deletion is lazy: the graph node is orphaned and filtered at query
// time, which sidesteps graph-repair on node removal.
type VectorIndex struct {
	mu         sync.RWMutex
	graph      *hnsw.Graph[uint64]
	dimensions int

	idToKey map[string]uint64
	keyToID map[uint64]string
	nextKey uint64
}

// vectorMeta is the gob-persisted sidecar for ID mappings.
type vectorMeta struct {
	IDToKey    map[string]uint64
	NextKey    uint64
	Dimensions int
}

// NewVectorIndex creates a vector index with a fixed dimension.
func NewVectorIndex(dimensions int) *VectorIndex {
	g := hnsw.NewGraph[uint64]()
	g.Distance = hnsw.CosineDistance
	g.M = 16
	g.EfSearch = 20
	g.Ml = 0.25

	return &VectorIndex{
		graph:      g,
		dimensions: dimensions,
		idToKey:    make(map[string]uint64),
		keyToID:    make(map[uint64]string),
	}
}

// Dimensions returns the enforced vector dimension.
func (v *VectorIndex) Dimensions() int { return v.dimensions }

// Add inserts vectors by chunk ID. Existing IDs are superseded via lazy
// deletion of the old node.
func (v *VectorIndex) Add(ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return errors.New(errors.ErrCodeInternal,
			fmt.Sprintf("ids/vectors length mismatch: %d vs %d", len(ids), len(vectors)), nil)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	for _, vec := range vectors {
		if len(vec) != v.dimensions {
			return errors.New(errors.ErrCodeDimensionMismatch,
				fmt.Sprintf("vector has %d dimensions, index requires %d", len(vec), v.dimensions), nil)
		}
	}

	for i, id := range ids {
		if oldKey, ok := v.idToKey[id]; ok {
			delete(v.keyToID, oldKey)
			delete(v.idToKey, id)
		}

		key := v.nextKey
		v.nextKey++

		vec := embed.Normalize(vectors[i])
		v.graph.Add(hnsw.MakeNode(key, vec))
		v.idToKey[id] = key
		v.keyToID[key] = id
	}
	return nil
}

// Search returns the k nearest chunks to the query vector.
func (v *VectorIndex) Search(query []float32, k int) ([]VectorResult, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if len(query) != v.dimensions {
		return nil, errors.New(errors.ErrCodeDimensionMismatch,
			fmt.Sprintf("query has %d dimensions, index requires %d", len(query), v.dimensions), nil)
	}
	if v.graph.Len() == 0 {
		return nil, nil
	}

	q := embed.Normalize(query)
	// Overfetch to compensate for lazily deleted orphans.
	nodes := v.graph.Search(q, k+len(v.keyToID)/4+1)

	out := make([]VectorResult, 0, k)
	for _, node := range nodes {
		id, live := v.keyToID[node.Key]
		if !live {
			continue
		}
		dist := v.graph.Distance(q, node.Value)
		out = append(out, VectorResult{
			ChunkID:  id,
			Distance: dist,
			// Cosine distance spans 0..2; fold to a 0..1 similarity.
			Score: 1 - float64(dist)/2,
		})
		if len(out) >= k {
			break
		}
	}
	return out, nil
}

// Delete lazily removes vectors by chunk ID.
func (v *VectorIndex) Delete(ids []string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	for _, id := range ids {
		if key, ok := v.idToKey[id]; ok {
			delete(v.keyToID, key)
			delete(v.idToKey, id)
		}
	}
}

// Count returns the number of live vectors.
func (v *VectorIndex) Count() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.idToKey)
}

// Orphans reports lazily deleted nodes still held by the graph.
func (v *VectorIndex) Orphans() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.graph.Len() - len(v.idToKey)
}

// Save writes the graph and ID mappings, temp-file-then-rename.
func (v *VectorIndex) Save(path string) error {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.StorageError("create vector index directory", err)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return errors.StorageError("create vector index file", err)
	}
	if err := v.graph.Export(f); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return errors.StorageError("export vector graph", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return errors.StorageError("close vector index file", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return errors.StorageError("rename vector index file", err)
	}

	return v.saveMeta(path + ".meta")
}

func (v *VectorIndex) saveMeta(path string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return errors.StorageError("create vector metadata file", err)
	}
	meta := vectorMeta{IDToKey: v.idToKey, NextKey: v.nextKey, Dimensions: v.dimensions}
	if err := gob.NewEncoder(f).Encode(meta); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return errors.StorageError("encode vector metadata", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return errors.StorageError("close vector metadata file", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return errors.StorageError("rename vector metadata file", err)
	}
	return nil
}

// Load restores the graph and mappings. A decode failure is reported as
// corruption so the caller can rebuild from source.
func (v *VectorIndex) Load(path string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	mf, err := os.Open(path + ".meta")
	if err != nil {
		if os.IsNotExist(err) {
			return nil // fresh index
		}
		return errors.StorageError("open vector metadata", err)
	}
	var meta vectorMeta
	decodeErr := gob.NewDecoder(mf).Decode(&meta)
	_ = mf.Close()
	if decodeErr != nil {
		return errors.CorruptionError("vector metadata unreadable", decodeErr)
	}
	if meta.Dimensions != v.dimensions {
		return errors.New(errors.ErrCodeDimensionMismatch,
			fmt.Sprintf("persisted index has %d dimensions, configured %d", meta.Dimensions, v.dimensions), nil)
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.CorruptionError("vector metadata present but graph missing", err)
		}
		return errors.StorageError("open vector index", err)
	}
	defer func() { _ = f.Close() }()

	if err := v.graph.Import(bufio.NewReader(f)); err != nil {
		return errors.CorruptionError("vector graph unreadable", err)
	}

	v.idToKey = meta.IDToKey
	v.nextKey = meta.NextKey
	v.keyToID = make(map[uint64]string, len(meta.IDToKey))
	for id, key := range meta.IDToKey {
		v.keyToID[key] = id
	}
	return nil
}
