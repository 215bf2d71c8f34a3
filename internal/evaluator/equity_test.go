package evaluator

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sumEquities(m map[string]float64) float64 {
	total := 0.0
	for _, v := range m {
		total += v
	}
	return total
}

func TestCalculateEquitiesCompleteBoardSumsToOne(t *testing.T) {
	players := []Player{
		{ID: "a", Hole: hole4("As", "Ks", "2c", "3d")},
		{ID: "b", Hole: hole4("Qh", "Jh", "9c", "8d")},
		{ID: "c", Hole: hole4("7s", "7d", "4c", "4h")},
	}
	board := board5("2h", "9s", "Jd", "7c", "5h")

	equities := CalculateEquities(board, players, nil)
	assert.InDelta(t, 1.0, sumEquities(equities), 1e-9)
}

func TestCalculateEquitiesCompleteBoardTieSplitsEvenly(t *testing.T) {
	players := []Player{
		{ID: "a", Hole: hole4("As", "Ks", "2c", "3d")},
		{ID: "b", Hole: hole4("Ad", "Kd", "2s", "3c")},
	}
	board := board5("4h", "9s", "Jd", "7c", "5h")

	equities := CalculateEquities(board, players, nil)
	assert.InDelta(t, 0.5, equities["a"], 1e-9)
	assert.InDelta(t, 0.5, equities["b"], 1e-9)
}

func TestCalculateEquitiesExactRiverSumsToOne(t *testing.T) {
	players := []Player{
		{ID: "a", Hole: hole4("As", "Ks", "2c", "3d")},
		{ID: "b", Hole: hole4("Qh", "Jh", "9c", "8d")},
	}
	fourBoard := cards("2h", "9s", "Jd", "7c")

	equities := CalculateEquities(fourBoard, players, nil)
	assert.InDelta(t, 1.0, sumEquities(equities), 1e-9)
}

func TestCalculateEquitiesMonteCarloApproximatesSumToOne(t *testing.T) {
	players := []Player{
		{ID: "a", Hole: hole4("As", "Ks", "Qs", "Js")},
		{ID: "b", Hole: hole4("2c", "7d", "9h", "4s")},
	}
	rng := rand.New(rand.NewSource(1))

	equities := CalculateEquities(nil, players, rng)
	require.Len(t, equities, 2)
	assert.True(t, math.Abs(1.0-sumEquities(equities)) < 1e-9)
	assert.Greater(t, equities["a"], equities["b"], "premium suited hand should beat a weak offsuit hand on average")
}

func TestCalculateAllInEVProfitsZeroSumAcrossSidePots(t *testing.T) {
	players := []Player{
		{ID: "a", Hole: hole4("As", "Ks", "2c", "3d")},
		{ID: "b", Hole: hole4("Qh", "Jh", "9c", "8d")},
	}
	board := board5("2h", "9s", "Jd", "7c", "5h")
	pots := []SidePot{{Amount: 200, Eligible: []string{"a", "b"}}}
	totalBets := map[string]int{"a": 100, "b": 100}

	profits := CalculateAllInEVProfits(board, players, pots, totalBets, nil)

	sum := 0
	for _, v := range profits {
		sum += v
	}
	assert.Equal(t, 0, sum)
}

func TestCalculateAllInEVProfitsUncontestedPotSkipsEquity(t *testing.T) {
	players := []Player{
		{ID: "a", Hole: hole4("As", "Ks", "2c", "3d")},
	}
	board := board5("2h", "9s", "Jd", "7c", "5h")
	pots := []SidePot{{Amount: 150, Eligible: []string{"a"}}}
	totalBets := map[string]int{"a": 75}

	profits := CalculateAllInEVProfits(board, players, pots, totalBets, nil)
	assert.Equal(t, 75, profits["a"])
}
