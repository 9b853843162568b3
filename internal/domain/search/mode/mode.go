package mode

// Mode selects how query text reaches the engine.
type Mode string

// Query modes.
const (
	// Match escapes the text and matches all of its terms.
	Match Mode = "match"
	// Syntax passes the text through as engine query syntax.
	Syntax Mode = "syntax"
	// All ignores the text and matches every document.
	All Mode = "all"
)

// IsValid checks if the mode is one of the supported values.
func (m Mode) IsValid() bool {
	return m == Match || m == Syntax || m == All
}
