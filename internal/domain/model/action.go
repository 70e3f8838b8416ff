package model

// ActionKind discriminates the variants of Action.
type ActionKind string

const (
	ActionPrompt   ActionKind = "prompt"
	ActionUiAction ActionKind = "ui_action"
)

// Action is a single user intention submitted to a session. It is immutable
// once constructed by the ingress adapter (the HTTP handler, the WebSocket
// pump, or the AMQP action-ingress handler) and consumed by exactly one
// Processor invocation.
type Action struct {
	Kind ActionKind

	// Prompt fields.
	Text    string
	Context []string

	// UiAction fields.
	Name string
	Data map[string]any

	// Model is optional on either variant; the Processor derives the
	// effective model id from the most recent action in a batch that sets
	// one.
	Model string
}

// NewPrompt builds a Prompt-variant Action.
func NewPrompt(text string, model string, context []string) Action {
	return Action{Kind: ActionPrompt, Text: text, Model: model, Context: context}
}

// NewUiAction builds a UiAction-variant Action.
func NewUiAction(name string, data map[string]any, model string) Action {
	return Action{Kind: ActionUiAction, Name: name, Data: data, Model: model}
}

// HasModel reports whether this action pins a generator model.
func (a Action) HasModel() bool { return a.Model != "" }
