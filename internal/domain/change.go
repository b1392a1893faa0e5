package domain

import "encoding/json"

type ChangeOp string

const (
	OpInsert ChangeOp = "INSERT"
	OpUpdate ChangeOp = "UPDATE"
	OpDelete ChangeOp = "DELETE"
)

// Change is one row change delivered to realtime subscribers.
type Change struct {
	Table  string          `json:"table"`
	Op     ChangeOp        `json:"op"`
	UserID string          `json:"user_id"`
	Row    json.RawMessage `json:"row"`
}

// Field returns the string form of a top-level column of the changed row.
func (c Change) Field(name string) (string, bool) {
	var row map[string]any
	if err := json.Unmarshal(c.Row, &row); err != nil {
		return "", false
	}
	v, ok := row[name]
	if !ok || v == nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case bool:
		if t {
			return "true", true
		}
		return "false", true
	default:
		raw, err := json.Marshal(t)
		if err != nil {
			return "", false
		}
		return string(raw), true
	}
}
