package repository

import (
	"encoding/json"
	"fmt"
)

// Table names and key fields in the record store
const (
	BlockTable   = "blocks"
	ArchiveTable = "archives"

	blockKeyField   = "cid"
	archiveKeyField = "archive_id"
)

// encodeRecord flattens a tagged struct into the field map the store
// expects, going through JSON so field names match the persisted shape.
func encodeRecord(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return fields, nil
}

func decodeRecord(fields map[string]any, v any) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("decode record: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode record: %w", err)
	}
	return nil
}
