package cqrs

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

// ErrEmptyTag is returned when an explicit tag list carries a blank entry.
var ErrEmptyTag = errors.New("tag cannot be empty")

// TagInput is the tags field of an expense payload. Clients send either a list
// of names or one comma-delimited string; both resolve to the same canonical
// set through Names.
type TagInput struct {
	list      []string
	delimited string
	isList    bool
}

// TagList builds a TagInput from an explicit list of names.
func TagList(names ...string) TagInput {
	return TagInput{list: names, isList: true}
}

// DelimitedTags builds a TagInput from a comma-separated string.
func DelimitedTags(s string) TagInput {
	return TagInput{delimited: s}
}

// FormTags follows form semantics: a single submitted value is treated as a
// delimited string, repeated values as a list.
func FormTags(values []string) TagInput {
	if len(values) == 1 {
		return DelimitedTags(values[0])
	}
	return TagList(values...)
}

func (t *TagInput) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*t = TagInput{}
		return nil
	case len(data) > 0 && data[0] == '[':
		var names []string
		if err := json.Unmarshal(data, &names); err != nil {
			return err
		}
		*t = TagList(names...)
		return nil
	default:
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return errors.New("tags must be a list of names or a comma-separated string")
		}
		*t = DelimitedTags(s)
		return nil
	}
}

// Names returns trimmed, non-empty, de-duplicated tag names in submission order.
func (t TagInput) Names() ([]string, error) {
	var raw []string
	if t.isList {
		for _, name := range t.list {
			name = strings.TrimSpace(name)
			if name == "" {
				return nil, ErrEmptyTag
			}
			raw = append(raw, name)
		}
	} else {
		for _, name := range strings.Split(t.delimited, ",") {
			if name = strings.TrimSpace(name); name != "" {
				raw = append(raw, name)
			}
		}
	}

	seen := make(map[string]struct{}, len(raw))
	names := make([]string, 0, len(raw))
	for _, name := range raw {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names, nil
}
