package models

import "fmt"

// Chunk is a bounded slice of one source page.
type Chunk struct {
	Source     string `json:"source"`
	ChunkID    int    `json:"chunk_id"`
	Text       string `json:"text"`
	PageNumber int    `json:"page_number"`
}

// Key identifies a chunk across the whole corpus. ChunkID alone is only
// unique within its source file.
func (c Chunk) Key() string {
	return fmt.Sprintf("%s#%d", c.Source, c.ChunkID)
}

// Hit is a retrieved chunk with its Euclidean distance to the query vector.
type Hit struct {
	Chunk    Chunk   `json:"chunk"`
	Distance float64 `json:"distance"`
}

// Chunks strips distances from a result set, keeping order.
func Chunks(hits []Hit) []Chunk {
	out := make([]Chunk, len(hits))
	for i, h := range hits {
		out[i] = h.Chunk
	}
	return out
}
