package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ChangeRecord is one field-level change from an already-computed task
// diff. Old and New hold the decoded JSON values as supplied.
type ChangeRecord struct {
	Field string      `json:"field"`
	Old   interface{} `json:"old"`
	New   interface{} `json:"new"`
}

// TaskUpdate is the task-update fan-out payload: the task ID plus the
// field diff, with the fields kept in the order they were supplied.
type TaskUpdate struct {
	TaskID  string
	Changes []ChangeRecord
}

// UnmarshalJSON decodes the legacy update payload, an object of the form
//
//	{"id": "...", "title": {"old": "A", "new": "B"}, ...}
//
// A plain map would lose the field order, so the object is walked with a
// token decoder. Keys whose value is not an {old, new} pair (such as
// "id") are not diff entries.
func (u *TaskUpdate) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("invalid update payload: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("update payload must be a JSON object")
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("invalid update payload: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("update payload has a non-string key")
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("invalid value for field %q: %w", key, err)
		}

		if key == "id" {
			if err := json.Unmarshal(raw, &u.TaskID); err != nil {
				return fmt.Errorf("invalid task id: %w", err)
			}
			continue
		}

		change, ok := decodeChange(key, raw)
		if !ok {
			continue
		}
		u.Changes = append(u.Changes, change)
	}

	return nil
}

func decodeChange(field string, raw json.RawMessage) (ChangeRecord, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return ChangeRecord{}, false
	}

	var entry map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entry); err != nil {
		return ChangeRecord{}, false
	}
	oldRaw, hasOld := entry["old"]
	newRaw, hasNew := entry["new"]
	if !hasOld || !hasNew {
		return ChangeRecord{}, false
	}

	change := ChangeRecord{Field: field}
	if err := json.Unmarshal(oldRaw, &change.Old); err != nil {
		return ChangeRecord{}, false
	}
	if err := json.Unmarshal(newRaw, &change.New); err != nil {
		return ChangeRecord{}, false
	}
	return change, true
}
