package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"asset-lookup-bot/internal/lookup/query"
)

func TestStore_GetDefaultsToInitial(t *testing.T) {
	s := NewStore()
	st := s.Get(42)
	assert.Equal(t, StepInitial, st.Step)
	assert.False(t, s.Exists(42))
	assert.Equal(t, 0, s.Len())
}

func TestStore_PutGetDelete(t *testing.T) {
	s := NewStore()

	pending := &Ambiguity{Query: "AB1", Candidates: []query.Group{{Key: "AB1"}, {Key: "AB10"}}}
	s.Put(42, AmbiguousSelection("BranchX", pending))

	st := s.Get(42)
	assert.Equal(t, StepAmbiguousSelection, st.Step)
	assert.Equal(t, "BranchX", st.SelectedBranch)
	require.NotNil(t, st.PendingAmbiguity)
	assert.Len(t, st.PendingAmbiguity.Candidates, 2)
	assert.False(t, st.UpdatedAt.IsZero())

	s.Put(42, AwaitingQuery("BranchX"))
	assert.Nil(t, s.Get(42).PendingAmbiguity)

	s.Delete(42)
	assert.False(t, s.Exists(42))
}

func TestStore_OperatorsIsolated(t *testing.T) {
	s := NewStore()
	s.Put(1, AwaitingBranch())
	s.Put(2, AwaitingQuery("BranchY"))

	assert.Equal(t, StepAwaitingBranch, s.Get(1).Step)
	assert.Equal(t, "BranchY", s.Get(2).SelectedBranch)
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.Put(id, AwaitingQuery("B"))
				_ = s.Get(id)
			}
		}(int64(i))
	}
	wg.Wait()
	assert.Equal(t, 50, s.Len())
}

func TestStep_String(t *testing.T) {
	assert.Equal(t, "INITIAL", StepInitial.String())
	assert.Equal(t, "AWAITING_BRANCH", StepAwaitingBranch.String())
	assert.Equal(t, "AWAITING_QUERY", StepAwaitingQuery.String())
	assert.Equal(t, "AMBIGUOUS_SELECTION", StepAmbiguousSelection.String())
	assert.Equal(t, "UNKNOWN", Step(99).String())
}
