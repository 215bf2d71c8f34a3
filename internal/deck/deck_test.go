package deck

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDeckHas52UniqueCards(t *testing.T) {
	d := NewDeck(rand.New(rand.NewSource(1)))
	require.Equal(t, 52, d.Remaining())

	seen := make(map[Card]bool)
	for {
		c, ok := d.Deal()
		if !ok {
			break
		}
		assert.False(t, seen[c], "duplicate card dealt: %s", c)
		seen[c] = true
	}
	assert.Len(t, seen, 52)
}

func TestShuffleIsDeterministicForAFixedSeed(t *testing.T) {
	d1 := NewDeck(rand.New(rand.NewSource(42)))
	d1.Shuffle()
	d2 := NewDeck(rand.New(rand.NewSource(42)))
	d2.Shuffle()

	assert.Equal(t, d1.DealN(52), d2.DealN(52))
}

func TestDealNNeverExceedsRemaining(t *testing.T) {
	d := NewDeck(rand.New(rand.NewSource(7)))
	d.DealN(48)
	require.Equal(t, 4, d.Remaining())

	cards := d.DealN(10)
	assert.Len(t, cards, 4)
	assert.Equal(t, 0, d.Remaining())
}

func TestCardString(t *testing.T) {
	c := NewCard(Hearts, Ace)
	assert.Equal(t, "Ah", c.String())
}
