package persistence

import (
	"encoding/json"
	"fmt"
)

// MarshalSigningRecord serializes a SigningRecord to JSON bytes.
func MarshalSigningRecord(record *SigningRecord) ([]byte, error) {
	if record == nil {
		return nil, fmt.Errorf("cannot marshal nil SigningRecord")
	}

	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal SigningRecord to JSON: %w", err)
	}

	return data, nil
}

// UnmarshalSigningRecord deserializes a SigningRecord from JSON bytes.
func UnmarshalSigningRecord(data []byte) (*SigningRecord, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty data")
	}

	var record SigningRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON to SigningRecord: %w", err)
	}

	return &record, nil
}
