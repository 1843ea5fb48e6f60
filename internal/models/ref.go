package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// EntityRef points at a referenced entity (user, classroom) that the server
// may deliver either populated, as {id, name}, or as a bare id string
// depending on query population. Comparisons must always go through ID.
type EntityRef struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// SameAs reports whether the reference resolves to the given id.
func (r EntityRef) SameAs(id string) bool {
	return r.ID != "" && r.ID == id
}

// UnmarshalJSON accepts both representations the API uses for references.
func (r *EntityRef) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*r = EntityRef{}
		return nil
	}

	if trimmed[0] == '"' {
		var id string
		if err := json.Unmarshal(trimmed, &id); err != nil {
			return fmt.Errorf("invalid entity reference: %w", err)
		}
		*r = EntityRef{ID: id}
		return nil
	}

	var populated struct {
		ID      string `json:"id"`
		MongoID string `json:"_id"`
		Name    string `json:"name"`
	}
	if err := json.Unmarshal(trimmed, &populated); err != nil {
		return fmt.Errorf("invalid entity reference: %w", err)
	}

	id := populated.ID
	if id == "" {
		id = populated.MongoID
	}

	*r = EntityRef{ID: id, Name: populated.Name}
	return nil
}
