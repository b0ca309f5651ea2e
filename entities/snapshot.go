package entities

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Snapshot pivots all readings of a device that share one exact timestamp
// into a single record: one value per measurement type. Types without a
// reading at that instant are simply absent.
type Snapshot struct {
	Date   time.Time
	Values map[string]float64
}

// Types returns the measurement types present in the snapshot, sorted.
func (s Snapshot) Types() []string {
	types := make([]string, 0, len(s.Values))
	for t := range s.Values {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// MarshalJSON flattens the snapshot to {"date": ..., "<type>": value, ...}.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(s.Values)+1)
	for t, v := range s.Values {
		out[t] = v
	}
	out["date"] = s.Date.UTC().Format(time.RFC3339)
	return json.Marshal(out)
}

func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	dateRaw, ok := raw["date"]
	if !ok {
		return fmt.Errorf("snapshot without date")
	}
	var date string
	if err := json.Unmarshal(dateRaw, &date); err != nil {
		return err
	}
	parsed, err := time.Parse(time.RFC3339, date)
	if err != nil {
		return err
	}
	values := make(map[string]float64, len(raw)-1)
	for k, v := range raw {
		if k == "date" {
			continue
		}
		var f float64
		if err := json.Unmarshal(v, &f); err != nil {
			return fmt.Errorf("snapshot field %s: %w", k, err)
		}
		values[k] = f
	}
	s.Date = parsed.UTC()
	s.Values = values
	return nil
}
