package model

// PatchOp is the operation carried by a Patch.
type PatchOp string

const (
	OpSetText       PatchOp = "set-text"
	OpSetAttributes PatchOp = "set-attributes"
	OpSetInnerHTML  PatchOp = "set-inner-html"
	OpAppendHTML    PatchOp = "append-html"
	OpPrependHTML   PatchOp = "prepend-html"
	OpRemove        PatchOp = "remove"
)

// Patch is a selector-targeted mutation instruction against a scratch
// document. Selectors are id-based CSS fragments (e.g. "#root").
//
// Attrs carries set-attributes operations; a nil value for a key means the
// attribute should be removed, mirroring the generator's JSON wire format
// where `"attr": {"k": null}` requests removal.
type Patch struct {
	Selector string
	Op       PatchOp
	Text     string
	Attrs    map[string]*string
	HTML     string
}
