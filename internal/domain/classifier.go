package domain

import "context"

// ActionSpec describes one action the classifier may select.
type ActionSpec struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON Schema object
}

// ClassifyRequest carries the prompt context and the fixed catalog for one decision.
type ClassifyRequest struct {
	System  string
	User    string
	Catalog []ActionSpec
}

// Selection is the classifier's decision. FunctionCall is false when the
// model did not return exactly one recognizable action; Name and Args are
// then meaningless and Raw holds whatever came back.
type Selection struct {
	FunctionCall bool
	Name         string
	Args         map[string]any
	Raw          string
}

// Classifier picks exactly one named action for a message.
type Classifier interface {
	Classify(ctx context.Context, req ClassifyRequest) (Selection, error)
}
