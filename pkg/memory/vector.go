package memory

import (
	"encoding/binary"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/attache/attache/pkg/fault"
)

// VectorIndex is a brute-force cosine index over one collection's vectors.
// Collections stay small enough (personal-assistant scale) that a linear
// scan beats the bookkeeping of an ANN structure.
type VectorIndex struct {
	mu        sync.RWMutex
	dimension int
	vectors   map[string][]float32
}

// NewVectorIndex creates an empty index for vectors of the given width.
func NewVectorIndex(dimension int) *VectorIndex {
	return &VectorIndex{
		dimension: dimension,
		vectors:   make(map[string][]float32),
	}
}

// Add inserts or replaces the vector for id.
func (v *VectorIndex) Add(id string, vector []float32) error {
	if len(vector) != v.dimension {
		return fault.BadInput("vector dimension mismatch: expected %d, got %d",
			v.dimension, len(vector))
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.vectors[id] = vector
	return nil
}

// Delete removes id from the index.
func (v *VectorIndex) Delete(id string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.vectors, id)
}

// Has reports whether id is indexed.
func (v *VectorIndex) Has(id string) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	_, ok := v.vectors[id]
	return ok
}

// Len returns the number of indexed vectors.
func (v *VectorIndex) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.vectors)
}

// Search returns the ids of the topK nearest vectors with their cosine
// distances (1 - similarity), nondecreasing. topK is clamped to the index
// size.
func (v *VectorIndex) Search(query []float32, topK int) ([]string, []float64, error) {
	if len(query) != v.dimension {
		return nil, nil, fault.BadInput("query dimension mismatch: expected %d, got %d",
			v.dimension, len(query))
	}

	v.mu.RLock()
	defer v.mu.RUnlock()

	type scored struct {
		id       string
		distance float64
	}
	results := make([]scored, 0, len(v.vectors))
	for id, vec := range v.vectors {
		results = append(results, scored{id: id, distance: 1 - cosineSimilarity(query, vec)})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].distance == results[j].distance {
			return results[i].id < results[j].id
		}
		return results[i].distance < results[j].distance
	})

	if topK > len(results) {
		topK = len(results)
	}
	if topK < 0 {
		topK = 0
	}
	results = results[:topK]

	ids := make([]string, len(results))
	distances := make([]float64, len(results))
	for i, r := range results {
		ids[i] = r.id
		distances[i] = r.distance
	}
	return ids, distances, nil
}

// Save persists the index to path atomically (temp file + rename).
// Format: [dimension:uint32][count:uint32] then per entry
// [idLen:uint16][id][vector:float32*dim], little-endian.
func (v *VectorIndex) Save(path string) error {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fault.Fatal("create vector directory: %v", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".index-*.bin")
	if err != nil {
		return fault.Fatal("create vector temp file: %v", err)
	}
	defer os.Remove(tmp.Name())

	if err := binary.Write(tmp, binary.LittleEndian, uint32(v.dimension)); err != nil {
		tmp.Close()
		return fault.Fatal("write vector header: %v", err)
	}
	if err := binary.Write(tmp, binary.LittleEndian, uint32(len(v.vectors))); err != nil {
		tmp.Close()
		return fault.Fatal("write vector header: %v", err)
	}

	for id, vec := range v.vectors {
		if err := binary.Write(tmp, binary.LittleEndian, uint16(len(id))); err != nil {
			tmp.Close()
			return fault.Fatal("write vector entry: %v", err)
		}
		if _, err := tmp.Write([]byte(id)); err != nil {
			tmp.Close()
			return fault.Fatal("write vector entry: %v", err)
		}
		if err := binary.Write(tmp, binary.LittleEndian, vec); err != nil {
			tmp.Close()
			return fault.Fatal("write vector entry: %v", err)
		}
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fault.Fatal("sync vector file: %v", err)
	}
	if err := tmp.Close(); err != nil {
		return fault.Fatal("close vector file: %v", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fault.Fatal("swap vector file: %v", err)
	}
	return nil
}

// Load replaces the index contents from path. A missing file leaves the
// index empty.
func (v *VectorIndex) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fault.Fatal("open vector file: %v", err)
	}
	defer f.Close()

	var dim, count uint32
	if err := binary.Read(f, binary.LittleEndian, &dim); err != nil {
		return fault.Fatal("read vector header: %v", err)
	}
	if err := binary.Read(f, binary.LittleEndian, &count); err != nil {
		return fault.Fatal("read vector header: %v", err)
	}
	if int(dim) != v.dimension {
		return fault.Fatal("vector file dimension %d does not match index dimension %d",
			dim, v.dimension)
	}

	vectors := make(map[string][]float32, count)
	for i := uint32(0); i < count; i++ {
		var idLen uint16
		if err := binary.Read(f, binary.LittleEndian, &idLen); err != nil {
			return fault.Fatal("read vector entry: %v", err)
		}
		idBuf := make([]byte, idLen)
		if _, err := io.ReadFull(f, idBuf); err != nil {
			return fault.Fatal("read vector entry: %v", err)
		}
		vec := make([]float32, dim)
		if err := binary.Read(f, binary.LittleEndian, vec); err != nil {
			return fault.Fatal("read vector entry: %v", err)
		}
		vectors[string(idBuf)] = vec
	}

	v.mu.Lock()
	v.vectors = vectors
	v.mu.Unlock()
	return nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return dot / denom
}
