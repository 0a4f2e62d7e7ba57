// Package graph compiles a dsl.Fragment tree into an adjacency-based DAG:
// fully-qualified node names, successor/predecessor sets, and a single head
// and tail (synthetic when the tree has more than one source or sink).
package graph

import (
	"fmt"
	"strings"
)

// separator delimits the fields of a fully-qualified name: "$$", not a
// single "$", with a required trailing empty field.
const separator = "$$"

// FQN is a graph or node's fully-qualified name: "<graph>$$<variant>$$<short>$$".
// It is the stable key used throughout compilation, execution, and result
// delivery.
type FQN struct {
	Graph   string
	Variant string
	Short   string
}

// Format renders f as its canonical string form.
func (f FQN) Format() string {
	return f.Graph + separator + f.Variant + separator + f.Short + separator
}

func (f FQN) String() string { return f.Format() }

// ParseError reports a malformed FQN string.
type ParseError struct {
	Input string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("graph: malformed fqn %q", e.Input)
}

// ParseFQN splits s on the "$$" separator. A well-formed FQN yields exactly
// four fields (graph, variant, short, and a trailing empty field); any other
// shape is a *ParseError, never a best-effort guess.
func ParseFQN(s string) (FQN, error) {
	parts := strings.Split(s, separator)
	if len(parts) != 4 || parts[3] != "" {
		return FQN{}, &ParseError{Input: s}
	}
	return FQN{Graph: parts[0], Variant: parts[1], Short: parts[2]}, nil
}
