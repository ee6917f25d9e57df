package store

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/raphaelgruber/seedforge/internal/models"
)

// LoadSeeds reads the whole seed file into memory. The file must hold a JSON array
// of objects with instruction, input and output keys; missing keys load as empty text.
func LoadSeeds(path string) ([]models.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSeedLoad, err)
	}

	var seeds []models.Record
	if err := json.Unmarshal(data, &seeds); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", ErrSeedLoad, path, err)
	}
	if seeds == nil {
		seeds = []models.Record{}
	}
	return seeds, nil
}
