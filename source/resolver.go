package source

import (
	"fmt"
	"os"
	"path/filepath"
)

// Resolver turns a logical include path written in source text into bytes
// plus a canonical id stable enough to detect an include cycle, mirroring
// the external include_resolver collaborator: the Store and the parser
// never touch a filesystem directly, only this narrow interface.
type Resolver interface {
	Resolve(logicalPath string) (data []byte, canonicalID string, err error)
}

// FileResolver is the host-filesystem Resolver: it searches Roots in order
// for logicalPath, first as given, then relative to each root, and uses the
// resulting absolute path as the canonical id.
type FileResolver struct {
	Roots []string
}

// NewFileResolver builds a FileResolver searching roots in the given order.
// An empty roots list still resolves paths relative to the current
// directory, since filepath.Abs("") is never taken here.
func NewFileResolver(roots ...string) *FileResolver {
	return &FileResolver{Roots: roots}
}

func (r *FileResolver) Resolve(logicalPath string) ([]byte, string, error) {
	candidates := []string{logicalPath}
	for _, root := range r.Roots {
		candidates = append(candidates, filepath.Join(root, logicalPath))
	}
	var firstErr error
	for _, cand := range candidates {
		data, err := os.ReadFile(cand)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		abs, err := filepath.Abs(cand)
		if err != nil {
			abs = cand
		}
		return data, abs, nil
	}
	return nil, "", fmt.Errorf("include %q: not found (searched %d root(s)): %w", logicalPath, len(r.Roots), firstErr)
}

// IncludeCycleError reports a logical path already on the active include
// stack, naming the chain so the diagnostic shows how the cycle was reached.
type IncludeCycleError struct {
	Path  string
	Stack []string
}

func (e *IncludeCycleError) Error() string {
	msg := fmt.Sprintf("include cycle: %q is already being included", e.Path)
	for _, s := range e.Stack {
		msg += fmt.Sprintf("\n  included from %s", s)
	}
	return msg
}
