package brackets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateRoundRobinAllPairsOnce(t *testing.T) {
	pairings, err := GenerateRoundRobin([]int{10, 20, 30, 40})
	require.NoError(t, err)
	require.Len(t, pairings, 6)

	seen := map[[2]int]bool{}
	for i, pairing := range pairings {
		assert.Equal(t, i+1, pairing.Seq)
		key := [2]int{pairing.Competitor1ID, pairing.Competitor2ID}
		assert.False(t, seen[key], "pair %v repeated", key)
		seen[key] = true
		assert.NotEqual(t, pairing.Competitor1ID, pairing.Competitor2ID)
	}
}

func TestGenerateRoundRobinRejectsBadInput(t *testing.T) {
	_, err := GenerateRoundRobin([]int{1})
	assert.Error(t, err)

	_, err = GenerateRoundRobin([]int{1, 2, 1})
	assert.Error(t, err)
}
