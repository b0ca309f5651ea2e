package entities

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Status is the two-state lifecycle shared by devices, fermentations and
// turns. Older device firmware and clients send 1/0 or booleans; all of them
// decode into the same canonical value.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// DefaultStatus is applied whenever a caller omits a status.
const DefaultStatus = StatusActive

func (s Status) IsActive() bool { return s == StatusActive }

// IsTerminal reports whether entering s closes the record (sets its end time).
func (s Status) IsTerminal() bool { return s == StatusInactive }

func (s Status) Valid() bool { return s == StatusActive || s == StatusInactive }

// OrDefault returns s, or DefaultStatus when s is empty.
func (s Status) OrDefault() Status {
	if s == "" {
		return DefaultStatus
	}
	return s
}

// ParseStatus accepts the canonical names plus the legacy 1/0 encodings.
func ParseStatus(v string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "active", "1", "true":
		return StatusActive, nil
	case "inactive", "0", "false":
		return StatusInactive, nil
	}
	return "", fmt.Errorf("invalid status %q: must be active or inactive", v)
}

func (s *Status) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	var raw string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	} else {
		raw = string(data)
	}
	parsed, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// FermentationType is the closed set of batch kinds.
type FermentationType string

const (
	FermentationSpecial FermentationType = "Special"
	FermentationPremium FermentationType = "Premium"
)

func ParseFermentationType(v string) (FermentationType, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "special", "especial":
		return FermentationSpecial, nil
	case "premium":
		return FermentationPremium, nil
	}
	return "", fmt.Errorf("invalid fermentation type %q: must be Special or Premium", v)
}

func (t FermentationType) Valid() bool {
	return t == FermentationSpecial || t == FermentationPremium
}

func (t FermentationType) AllowsMultipleGenotypes() bool { return t == FermentationSpecial }

// GenotypeCountValid checks the composition rule: Premium batches carry
// exactly one genotype, Special batches at least one.
func (t FermentationType) GenotypeCountValid(n int) bool {
	switch t {
	case FermentationPremium:
		return n == 1
	case FermentationSpecial:
		return n >= 1
	}
	return false
}

// CompositionRule describes GenotypeCountValid in words, for error messages.
func (t FermentationType) CompositionRule() string {
	if t == FermentationPremium {
		return "Premium fermentations must have exactly one genotype"
	}
	return "Special fermentations must have at least one genotype"
}

func (t *FermentationType) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*t = ""
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("fermentation type must be a string")
	}
	parsed, err := ParseFermentationType(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
