package export

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/veerylabs/rangemap/internal/bins"
)

// binsDoc is the on-disk shape of the shared bin breakpoints.
type binsDoc struct {
	Species string    `json:"species"`
	Power   float64   `json:"power"`
	Breaks  []float64 `json:"breaks"`
}

// WriteBins writes the species-wide color bin breakpoints to path.
func WriteBins(path, species string, spec bins.Spec) error {
	data, err := json.MarshalIndent(binsDoc{
		Species: species,
		Power:   spec.Power,
		Breaks:  spec.Breaks,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("export: marshaling bins: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("export: writing %s: %w", path, err)
	}
	return nil
}
