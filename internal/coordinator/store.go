package coordinator

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Store persists the download registry as a JSON array. Writes from
// concurrent pipelines are serialized by one lock; each write replaces the
// full snapshot, so last-writer-wins.
type Store struct {
	path string
	mu   sync.Mutex
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the registry at startup. A missing file is an empty registry,
// not an error.
func (s *Store) Load() ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading download registry: %v", err)
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("error parsing download registry: %v", err)
	}
	return records, nil
}

func (s *Store) Save(records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if records == nil {
		records = []Record{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("error encoding download registry: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("error creating registry directory: %v", err)
	}
	tempPath := s.path + ".part"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("error writing download registry: %v", err)
	}
	if err := os.Rename(tempPath, s.path); err != nil {
		return fmt.Errorf("error finalizing download registry: %v", err)
	}
	return nil
}
