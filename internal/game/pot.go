package game

import "sort"

// CalculateSidePots partitions the total of TotalBetThisRound across
// non-folded players into tiers, each eligible only to the players who
// matched that tier's level. Folded players' chips still flow into the
// pots (they contributed the chips) but never appear in Eligible.
func CalculateSidePots(players []Player) []SidePot {
	levels := make(map[int]bool)
	for _, p := range players {
		if !p.Folded && p.TotalBetThisRound > 0 {
			levels[p.TotalBetThisRound] = true
		}
	}
	if len(levels) == 0 {
		return nil
	}

	sorted := make([]int, 0, len(levels))
	for lvl := range levels {
		sorted = append(sorted, lvl)
	}
	sort.Ints(sorted)

	var pots []SidePot
	prevLevel := 0
	for _, level := range sorted {
		pot := SidePot{}
		for _, p := range players {
			contribution := clampContribution(p.TotalBetThisRound, prevLevel, level)
			if contribution > 0 {
				pot.Amount += contribution
			}
			if !p.Folded && p.TotalBetThisRound >= level {
				pot.Eligible = append(pot.Eligible, p.SeatIndex)
			}
		}
		if pot.Amount > 0 && len(pot.Eligible) > 0 {
			pots = append(pots, pot)
		}
		prevLevel = level
	}

	return pots
}

func clampContribution(totalBet, prevLevel, level int) int {
	c := totalBet - prevLevel
	if c > level-prevLevel {
		c = level - prevLevel
	}
	if c < 0 {
		c = 0
	}
	return c
}

// TotalPotAmount sums all side-pot tiers (equivalently, the sum of every
// player's TotalBetThisRound).
func TotalPotAmount(pots []SidePot) int {
	total := 0
	for _, p := range pots {
		total += p.Amount
	}
	return total
}
