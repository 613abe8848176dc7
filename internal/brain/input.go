package brain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/wonny/aegis-regime/internal/contracts"
)

// DecodeInput decodes a JSON cycle input, rejecting unknown fields
func DecodeInput(r io.Reader) (contracts.CycleInput, error) {
	var in contracts.CycleInput

	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		return contracts.CycleInput{}, &contracts.InvalidInputError{Field: "cycle_input", Message: err.Error()}
	}
	if in.Snapshot.Timestamp.IsZero() {
		return contracts.CycleInput{}, &contracts.InvalidInputError{Field: "snapshot.timestamp", Message: "required"}
	}
	if err := in.DimensionScores.Validate(); err != nil {
		return contracts.CycleInput{}, err
	}
	return in, nil
}

// LoadInput reads a cycle input JSON file written by the indicator collector
func LoadInput(path string) (contracts.CycleInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return contracts.CycleInput{}, fmt.Errorf("failed to read cycle input: %w", err)
	}
	return DecodeInput(bytes.NewReader(data))
}
