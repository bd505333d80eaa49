package index

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"claim-rag/internal/models"
)

// Manifest describes how an index was built. Query vectors must come from the
// same backend and model and have the same dimension.
type Manifest struct {
	Backend    string    `yaml:"backend" json:"backend"`
	Model      string    `yaml:"model" json:"model"`
	Dimension  int       `yaml:"dimension" json:"dimension"`
	ChunkCount int       `yaml:"chunk_count" json:"chunk_count"`
	Store      string    `yaml:"store" json:"store"`
	BuiltAt    time.Time `yaml:"built_at" json:"built_at"`
}

// Identity returns "backend:model", matching embedding.Backend.Identity.
func (m *Manifest) Identity() string {
	return m.Backend + ":" + m.Model
}

// CheckBackend rejects queries embedded by a different backend or model.
func (m *Manifest) CheckBackend(backend, model string) error {
	if m.Backend != backend || m.Model != model {
		return fmt.Errorf("%w: index built with %s, querying with %s:%s", models.ErrBackendMismatch, m.Identity(), backend, model)
	}
	return nil
}

// CheckDimension rejects a query vector of the wrong length. An empty index
// has no dimension and accepts anything.
func (m *Manifest) CheckDimension(dim int) error {
	if m.Dimension != 0 && dim != m.Dimension {
		return fmt.Errorf("%w: index dimension %d, query dimension %d", models.ErrBackendMismatch, m.Dimension, dim)
	}
	return nil
}

func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, models.ErrIndexNotFound
		}
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	return &m, nil
}

func WriteManifest(path string, m *Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	return writeFileAtomic(path, data)
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
