// Package scheduling resolves free-text references to practitioners and
// slots and books appointments against a directory.Store.
package scheduling

import "github.com/RobinCoderZhao/mcp-apps/internal/directory"

// Resolution is the outcome of ResolvePractitioner. It is one of NotFound,
// Unique or Ambiguous.
type Resolution interface {
	resolution()
}

// NotFound means no practitioner matched the reference.
type NotFound struct{}

// Unique carries the single matching practitioner.
type Unique struct {
	Practitioner directory.Practitioner
}

// Ambiguous carries every match, in store order. It always holds at least
// two candidates.
type Ambiguous struct {
	Candidates []directory.Practitioner
}

func (NotFound) resolution()  {}
func (Unique) resolution()    {}
func (Ambiguous) resolution() {}
