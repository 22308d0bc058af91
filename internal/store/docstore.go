package store

import (
	"hash/fnv"
	"sync"
)

const docShards = 16

// DocStore holds indexed documents in memory, sharded by path hash so
// concurrent file updates rarely contend. All documents for one path
// are replaced or removed as a unit.
type DocStore struct {
	shards [docShards]docShard
}

type docShard struct {
	mu     sync.RWMutex
	byID   map[string]*IndexedDocument
	byPath map[string][]string
}

// NewDocStore creates an empty document store.
func NewDocStore() *DocStore {
	d := &DocStore{}
	for i := range d.shards {
		d.shards[i].byID = make(map[string]*IndexedDocument)
		d.shards[i].byPath = make(map[string][]string)
	}
	return d
}

func (d *DocStore) shardFor(path string) *docShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(path))
	return &d.shards[h.Sum32()%docShards]
}

// ReplacePath atomically swaps all documents for a path and returns the
// chunk IDs that were displaced.
func (d *DocStore) ReplacePath(path string, docs []*IndexedDocument) (removed []string) {
	s := d.shardFor(path)
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.byPath[path]
	for _, id := range old {
		delete(s.byID, id)
	}

	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		s.byID[doc.Chunk.ID] = doc
		ids = append(ids, doc.Chunk.ID)
	}
	if len(ids) > 0 {
		s.byPath[path] = ids
	} else {
		delete(s.byPath, path)
	}
	return old
}

// RemovePath drops all documents for a path and returns their IDs.
func (d *DocStore) RemovePath(path string) (removed []string) {
	s := d.shardFor(path)
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.byPath[path]
	for _, id := range old {
		delete(s.byID, id)
	}
	delete(s.byPath, path)
	return old
}

// Get returns a document by chunk ID.
func (d *DocStore) Get(id string) (*IndexedDocument, bool) {
	for i := range d.shards {
		s := &d.shards[i]
		s.mu.RLock()
		doc, ok := s.byID[id]
		s.mu.RUnlock()
		if ok {
			return doc, true
		}
	}
	return nil, false
}

// GetByPath returns the documents for a path in insertion order.
func (d *DocStore) GetByPath(path string) []*IndexedDocument {
	s := d.shardFor(path)
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byPath[path]
	out := make([]*IndexedDocument, 0, len(ids))
	for _, id := range ids {
		if doc, ok := s.byID[id]; ok {
			out = append(out, doc)
		}
	}
	return out
}

// Count returns the total number of documents.
func (d *DocStore) Count() int {
	n := 0
	for i := range d.shards {
		s := &d.shards[i]
		s.mu.RLock()
		n += len(s.byID)
		s.mu.RUnlock()
	}
	return n
}

// Paths returns every indexed path.
func (d *DocStore) Paths() []string {
	var out []string
	for i := range d.shards {
		s := &d.shards[i]
		s.mu.RLock()
		for p := range s.byPath {
			out = append(out, p)
		}
		s.mu.RUnlock()
	}
	return out
}
