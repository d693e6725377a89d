package jira

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// SprintRef identifies a sprint an issue belongs (or belonged) to.
type SprintRef struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	State string `json:"state,omitempty"`
}

type sprintShape int

const (
	sprintNone sprintShape = iota
	sprintSingle
	sprintMany
)

// SprintField is the sprint custom field exactly as the API shaped it: absent/null,
// a single object, or an array. Jira Server may also encode each sprint as a
// "com.atlassian.greenhopper.service.sprint.Sprint@…[id=…,name=…]" string.
type SprintField struct {
	shape sprintShape
	refs  []SprintRef
}

// UnmarshalJSON accepts null, an object, a string, or an array of objects/strings.
func (f *SprintField) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*f = SprintField{shape: sprintNone}
		return nil
	case b[0] == '[':
		var raw []json.RawMessage
		if err := json.Unmarshal(b, &raw); err != nil {
			return fmt.Errorf("sprint field array: %w", err)
		}
		refs := make([]SprintRef, 0, len(raw))
		for _, r := range raw {
			ref, ok, err := decodeSprintRef(r)
			if err != nil {
				return err
			}
			if ok {
				refs = append(refs, ref)
			}
		}
		*f = SprintField{shape: sprintMany, refs: refs}
		return nil
	default:
		ref, ok, err := decodeSprintRef(b)
		if err != nil {
			return err
		}
		if !ok {
			*f = SprintField{shape: sprintNone}
			return nil
		}
		*f = SprintField{shape: sprintSingle, refs: []SprintRef{ref}}
		return nil
	}
}

// Refs normalises the field to a list. It never returns nil for a present field.
func (f SprintField) Refs() []SprintRef {
	switch f.shape {
	case sprintSingle, sprintMany:
		out := make([]SprintRef, len(f.refs))
		copy(out, f.refs)
		return out
	default:
		return nil
	}
}

func decodeSprintRef(b json.RawMessage) (SprintRef, bool, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return SprintRef{}, false, nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return SprintRef{}, false, fmt.Errorf("sprint field string: %w", err)
		}
		ref, ok := parseLegacySprint(s)
		return ref, ok, nil
	}
	var obj struct {
		ID    int    `json:"id"`
		Name  string `json:"name"`
		State string `json:"state"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return SprintRef{}, false, fmt.Errorf("sprint field object: %w", err)
	}
	return SprintRef{ID: obj.ID, Name: obj.Name, State: strings.ToLower(obj.State)}, true, nil
}

var legacyAttr = regexp.MustCompile(`(?:\[|,)(id|name|state)=([^,\]]*)`)

func parseLegacySprint(s string) (SprintRef, bool) {
	var ref SprintRef
	found := false
	for _, m := range legacyAttr.FindAllStringSubmatch(s, -1) {
		switch m[1] {
		case "id":
			if id, err := strconv.Atoi(m[2]); err == nil {
				ref.ID = id
				found = true
			}
		case "name":
			ref.Name = m[2]
			found = true
		case "state":
			ref.State = strings.ToLower(m[2])
		}
	}
	return ref, found
}
