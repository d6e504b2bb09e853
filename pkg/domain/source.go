package domain

// StatementKind is the classification tag of a single source line.
type StatementKind string

const (
	KindSkip          StatementKind = "skip"
	KindFunctionDef   StatementKind = "function"
	KindReturn        StatementKind = "return"
	KindDeclaration   StatementKind = "declaration"
	KindAssignment    StatementKind = "assignment"
	KindArrayMutation StatementKind = "array_mutation"
	KindArrayInit     StatementKind = "array_init"
	KindPlain         StatementKind = "plain"
)

// Classification is the result of classifying one line.
// Name is set for FunctionDef, Declaration, Assignment and ArrayInit.
type Classification struct {
	Kind StatementKind `json:"kind"`
	Name string        `json:"name,omitempty"`
}

// SourceLine is one line of the submitted program. Immutable once classified.
type SourceLine struct {
	Number  int            `json:"number"`
	Raw     string         `json:"raw"`
	Trimmed string         `json:"trimmed"`
	Class   Classification `json:"class"`
}
