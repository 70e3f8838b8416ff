package retry

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/riverpatch/uistream/internal/domain/model"
)

// wireRecord is the generator's newline-delimited JSON response schema.
type wireRecord struct {
	Type    string      `json:"type"`
	Patches []wirePatch `json:"patches"`
	HTML    string      `json:"html"`
}

type wirePatch struct {
	Selector string             `json:"selector"`
	Text     *string            `json:"text,omitempty"`
	Attr     map[string]*string `json:"attr,omitempty"`
	Append   *string            `json:"append,omitempty"`
	Prepend  *string            `json:"prepend,omitempty"`
	HTML     *string            `json:"html,omitempty"`
	Remove   *bool              `json:"remove,omitempty"`
}

// ParseLine parses one newline-delimited generator record into a
// StreamEvent. A record that is malformed JSON, or matches no known shape,
// is reported as a *model.ParseError.
func ParseLine(line string) (model.StreamEvent, error) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return model.StreamEvent{}, &model.ParseError{RawLine: line, Message: "empty record"}
	}

	var wr wireRecord
	if err := json.Unmarshal([]byte(trimmed), &wr); err != nil {
		return model.StreamEvent{}, &model.ParseError{RawLine: line, Message: err.Error()}
	}

	switch wr.Type {
	case "patches":
		patches := make([]model.Patch, 0, len(wr.Patches))
		for _, wp := range wr.Patches {
			p, err := parseWirePatch(wp)
			if err != nil {
				return model.StreamEvent{}, &model.ParseError{RawLine: line, Message: err.Error()}
			}
			patches = append(patches, p)
		}
		return model.NewPatchesEvent(patches), nil

	case "full":
		return model.NewFullEvent(wr.HTML), nil

	default:
		return model.StreamEvent{}, &model.ParseError{RawLine: line, Message: "unrecognized record type: " + wr.Type}
	}
}

func parseWirePatch(wp wirePatch) (model.Patch, error) {
	p := model.Patch{Selector: wp.Selector}

	switch {
	case wp.Text != nil:
		p.Op, p.Text = model.OpSetText, *wp.Text
	case wp.Attr != nil:
		p.Op, p.Attrs = model.OpSetAttributes, wp.Attr
	case wp.Append != nil:
		p.Op, p.HTML = model.OpAppendHTML, *wp.Append
	case wp.Prepend != nil:
		p.Op, p.HTML = model.OpPrependHTML, *wp.Prepend
	case wp.HTML != nil:
		p.Op, p.HTML = model.OpSetInnerHTML, *wp.HTML
	case wp.Remove != nil && *wp.Remove:
		p.Op = model.OpRemove
	default:
		return p, fmt.Errorf("patch for selector %q has no recognized operation field", wp.Selector)
	}

	return p, nil
}
