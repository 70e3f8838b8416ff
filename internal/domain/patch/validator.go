package patch

import (
	"strings"

	"github.com/riverpatch/uistream/internal/domain/model"
)

// Validator applies generator-emitted patches to a Document, reporting
// structured failure instead of panicking or silently dropping bad input.
type Validator struct{}

func NewValidator() *Validator { return &Validator{} }

// Apply validates a single patch against doc and, on success, mutates doc in
// place so subsequent patches in the same stream see the effect of this one.
// On failure it returns a *model.PatchValidationError and leaves doc
// untouched.
func (v *Validator) Apply(doc *Document, p model.Patch) error {
	selector := strings.TrimSpace(p.Selector)
	if selector == "" {
		return &model.PatchValidationError{Patch: p, Reason: model.ReasonEmptySelector, Message: "selector is empty"}
	}

	id := strings.TrimPrefix(selector, "#")
	if id == selector {
		// Not an id-based fragment; policy allows rejecting these outright.
		return &model.PatchValidationError{Patch: p, Reason: model.ReasonEmptySelector, Message: "selector is not an id-based CSS fragment"}
	}

	switch p.Op {
	case model.OpRemove:
		if !doc.HasID(id) {
			return &model.PatchValidationError{Patch: p, Reason: model.ReasonSelectorNotFound, Message: "selector not found: " + selector}
		}
		doc.RemoveID(id)
		return nil

	case model.OpSetText, model.OpSetAttributes:
		if !doc.HasID(id) {
			return &model.PatchValidationError{Patch: p, Reason: model.ReasonSelectorNotFound, Message: "selector not found: " + selector}
		}
		return nil

	case model.OpSetInnerHTML, model.OpAppendHTML, model.OpPrependHTML:
		if !doc.HasID(id) {
			return &model.PatchValidationError{Patch: p, Reason: model.ReasonSelectorNotFound, Message: "selector not found: " + selector}
		}
		doc.AddFragment(p.HTML)
		return nil

	default:
		return &model.PatchValidationError{Patch: p, Reason: model.ReasonApplyFailure, Message: "unknown operation: " + string(p.Op)}
	}
}

// ApplyAll validates and applies every patch in order, stopping at the
// first failure (the Retry Stream's §4.5 step 3: "if all validate, emit the
// event"). On any failure, doc is left exactly as it was before this call.
func (v *Validator) ApplyAll(doc *Document, patches []model.Patch) error {
	saved := make(map[string]struct{}, len(doc.ids))
	for id := range doc.ids {
		saved[id] = struct{}{}
	}
	for _, p := range patches {
		if err := v.Apply(doc, p); err != nil {
			// Patches 0..N-1 may have added or removed ids; restore the
			// id set so the rejected record leaves no trace.
			doc.ids = saved
			return err
		}
	}
	return nil
}
