package search

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/turtacn/metabo-search/internal/domain/compound"
)

// validityMemo remembers the structure engine's verdict on patterns it has
// already parsed.  Errors are never remembered.
type validityMemo struct {
	structures compound.StructureIndex
	verdicts   *lru.Cache[string, bool]
}

// newValidityMemo returns a memo holding up to size verdicts.  size <= 0
// disables memoization.
func newValidityMemo(structures compound.StructureIndex, size int) (*validityMemo, error) {
	m := &validityMemo{structures: structures}
	if size > 0 {
		c, err := lru.New[string, bool](size)
		if err != nil {
			return nil, err
		}
		m.verdicts = c
	}
	return m, nil
}

func (m *validityMemo) IsValid(ctx context.Context, pattern string) (bool, error) {
	if m.verdicts != nil {
		if v, ok := m.verdicts.Get(pattern); ok {
			return v, nil
		}
	}
	valid, err := m.structures.IsValid(ctx, pattern)
	if err != nil {
		return false, err
	}
	if m.verdicts != nil {
		m.verdicts.Add(pattern, valid)
	}
	return valid, nil
}

func (m *validityMemo) Len() int {
	if m.verdicts == nil {
		return 0
	}
	return m.verdicts.Len()
}
