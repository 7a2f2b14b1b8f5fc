package urlkeep_test

import (
	"testing"

	"github.com/fwojciec/urlkeep"
	"github.com/stretchr/testify/assert"
)

func TestImportState_CanTransition(t *testing.T) {
	t.Parallel()

	t.Run("moves forward through the pipeline", func(t *testing.T) {
		t.Parallel()

		assert.True(t, urlkeep.StateQueued.CanTransition(urlkeep.StateFetching))
		assert.True(t, urlkeep.StateFetching.CanTransition(urlkeep.StateExtracting))
		assert.True(t, urlkeep.StateExtracting.CanTransition(urlkeep.StateMerging))
		assert.True(t, urlkeep.StateMerging.CanTransition(urlkeep.StateCommitted))
	})

	t.Run("any in-progress state can fail or turn out duplicate", func(t *testing.T) {
		t.Parallel()

		for _, s := range []urlkeep.ImportState{urlkeep.StateQueued, urlkeep.StateFetching, urlkeep.StateExtracting, urlkeep.StateMerging} {
			assert.True(t, s.CanTransition(urlkeep.StateFailed), string(s))
			assert.True(t, s.CanTransition(urlkeep.StateDuplicate), string(s))
		}
	})

	t.Run("never moves backwards or out of a terminal state", func(t *testing.T) {
		t.Parallel()

		assert.False(t, urlkeep.StateMerging.CanTransition(urlkeep.StateFetching))
		assert.False(t, urlkeep.StateFetching.CanTransition(urlkeep.StateFetching))
		assert.False(t, urlkeep.StateFailed.CanTransition(urlkeep.StateQueued))
		assert.False(t, urlkeep.StateCommitted.CanTransition(urlkeep.StateFailed))
		assert.False(t, urlkeep.StateQueued.CanTransition("bogus"))
	})
}

func TestImportState_Classification(t *testing.T) {
	t.Parallel()

	assert.True(t, urlkeep.StateFetching.InFlight())
	assert.False(t, urlkeep.StateQueued.InFlight())
	assert.True(t, urlkeep.StateDuplicate.Terminal())
	assert.False(t, urlkeep.StateMerging.Terminal())
}
