package evaluator

import (
	"context"
	"math/rand"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/lox/plo-core/internal/deck"
)

// DefaultMonteCarloIterations matches the preflop default the spec calls
// out explicitly; flop Monte Carlo (when the exact turn+river enumeration
// would be too costly) uses the same default unless the caller overrides
// it.
const DefaultMonteCarloIterations = 500

// Random is the PRNG surface the equity calculator needs — satisfied by
// *math/rand.Rand, same injected-source contract as deck.Random.
type Random interface {
	Intn(n int) int
}

// Player is a single showdown-eligible hand to compute equity for.
type Player struct {
	ID   string
	Hole [4]deck.Card
}

// CalculateEquities returns each player's win probability (ties split
// evenly) such that the values sum to 1.0. The strategy depends on how
// many board cards are already known:
//   - 5 cards: deterministic compareHands, ties split evenly.
//   - 4 cards: exact enumeration over the 44 remaining river cards.
//   - 3 cards: exact enumeration over remaining turn+river pairs, falling
//     back to Monte Carlo when the opponent count makes that too costly.
//   - 0 cards: Monte Carlo over full run-outs, seeded from rng.
func CalculateEquities(board []deck.Card, players []Player, rng Random) map[string]float64 {
	switch len(board) {
	case 5:
		return equitiesFromCompleteBoard(board, players)
	case 4:
		return equitiesExactRiver(board, players)
	case 3:
		if len(players) <= 4 {
			return equitiesExactTurnRiver(board, players)
		}
		return equitiesMonteCarlo(board, players, rng, DefaultMonteCarloIterations)
	case 0:
		return equitiesMonteCarlo(board, players, rng, DefaultMonteCarloIterations)
	default:
		panic("CalculateEquities: board must have 0, 3, 4, or 5 cards")
	}
}

func remainingDeck(board []deck.Card, players []Player) []deck.Card {
	used := make(map[deck.Card]bool)
	for _, c := range board {
		used[c] = true
	}
	for _, p := range players {
		for _, c := range p.Hole {
			used[c] = true
		}
	}

	var remaining []deck.Card
	for suit := deck.Spades; suit <= deck.Clubs; suit++ {
		for rank := deck.Two; rank <= deck.Ace; rank++ {
			c := deck.NewCard(suit, rank)
			if !used[c] {
				remaining = append(remaining, c)
			}
		}
	}
	return remaining
}

func equitiesFromCompleteBoard(board []deck.Card, players []Player) map[string]float64 {
	var full [5]deck.Card
	copy(full[:], board)

	ranks := make([]HandRank, len(players))
	for i, p := range players {
		ranks[i] = EvaluatePLO(p.Hole, full)
	}
	return splitPotByRank(players, ranks)
}

// splitPotByRank groups players by best rank and distributes equity 1.0
// evenly across the top-ranked group, 0 to everyone else.
func splitPotByRank(players []Player, ranks []HandRank) map[string]float64 {
	best := ranks[0]
	for _, r := range ranks[1:] {
		if Compare(r, best) > 0 {
			best = r
		}
	}

	var winners []int
	for i, r := range ranks {
		if Compare(r, best) == 0 {
			winners = append(winners, i)
		}
	}

	equities := make(map[string]float64, len(players))
	share := 1.0 / float64(len(winners))
	for i := range players {
		equities[players[i].ID] = 0
	}
	for _, i := range winners {
		equities[players[i].ID] = share
	}
	return equities
}

func equitiesExactRiver(board []deck.Card, players []Player) map[string]float64 {
	remaining := remainingDeck(board, players)
	totals := make(map[string]float64, len(players))
	for _, p := range players {
		totals[p.ID] = 0
	}

	var full [5]deck.Card
	copy(full[:4], board)

	for _, river := range remaining {
		full[4] = river
		ranks := make([]HandRank, len(players))
		for i, p := range players {
			ranks[i] = EvaluatePLO(p.Hole, full)
		}
		for id, share := range splitPotByRank(players, ranks) {
			totals[id] += share
		}
	}

	n := float64(len(remaining))
	for id := range totals {
		totals[id] /= n
	}
	return totals
}

func equitiesExactTurnRiver(board []deck.Card, players []Player) map[string]float64 {
	remaining := remainingDeck(board, players)
	totals := make(map[string]float64, len(players))
	for _, p := range players {
		totals[p.ID] = 0
	}

	var full [5]deck.Card
	copy(full[:3], board)

	count := 0
	for i, turn := range remaining {
		full[3] = turn
		for j, river := range remaining {
			if i == j {
				continue
			}
			full[4] = river
			ranks := make([]HandRank, len(players))
			for k, p := range players {
				ranks[k] = EvaluatePLO(p.Hole, full)
			}
			for id, share := range splitPotByRank(players, ranks) {
				totals[id] += share
			}
			count++
		}
	}

	n := float64(count)
	for id := range totals {
		totals[id] /= n
	}
	return totals
}

// equitiesMonteCarlo runs iterations of complete, non-colliding run-outs in
// parallel via errgroup, mirroring the teacher's parallel Monte Carlo
// worker split.
func equitiesMonteCarlo(board []deck.Card, players []Player, rng Random, iterations int) map[string]float64 {
	remaining := remainingDeck(board, players)
	need := 5 - len(board)

	workers := 4
	if iterations < workers {
		workers = 1
	}
	perWorker := iterations / workers
	remainder := iterations - perWorker*workers

	type partial struct {
		wins map[string]float64
	}
	results := make([]partial, workers)

	// Each worker gets its own PRNG, seeded from rng before any worker
	// starts, so rng is never used from two goroutines at once.
	seeds := make([]int64, workers)
	for w := range seeds {
		seeds[w] = int64(rng.Intn(1<<31 - 1))
	}

	g, _ := errgroup.WithContext(context.Background())
	for w := 0; w < workers; w++ {
		w := w
		n := perWorker
		if w == workers-1 {
			n += remainder
		}
		g.Go(func() error {
			workerRng := rand.New(rand.NewSource(seeds[w]))
			wins := make(map[string]float64, len(players))
			for _, p := range players {
				wins[p.ID] = 0
			}
			pool := make([]deck.Card, len(remaining))
			for iter := 0; iter < n; iter++ {
				copy(pool, remaining)
				shuffleN(pool, need, workerRng)

				var full [5]deck.Card
				copy(full[:len(board)], board)
				copy(full[len(board):], pool[:need])

				ranks := make([]HandRank, len(players))
				for k, p := range players {
					ranks[k] = EvaluatePLO(p.Hole, full)
				}
				for id, share := range splitPotByRank(players, ranks) {
					wins[id] += share
				}
			}
			results[w] = partial{wins: wins}
			return nil
		})
	}
	_ = g.Wait()

	totals := make(map[string]float64, len(players))
	for _, p := range players {
		totals[p.ID] = 0
	}
	for _, r := range results {
		for id, v := range r.wins {
			totals[id] += v
		}
	}
	for id := range totals {
		totals[id] /= float64(iterations)
	}
	return totals
}

// shuffleN performs a partial Fisher-Yates sufficient to randomize only
// the first n positions of pool.
func shuffleN(pool []deck.Card, n int, rng Random) {
	for i := 0; i < n; i++ {
		j := i + rng.Intn(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
}

// SidePot is the minimal shape CalculateAllInEVProfits needs from a side
// pot: its amount and the seat IDs still eligible to win it.
type SidePot struct {
	Amount   int
	Eligible []string
}

// CalculateAllInEVProfits returns each eligible player's expected profit
// (their equity share of every side pot they're live for, minus their
// total contribution) — zero-sum across the table once folded players'
// dead contributions are accounted for by the caller via totalBets.
//
// Uncontested side pots (a single eligible player) are awarded wholly to
// that player without an equity calculation, per the spec.
func CalculateAllInEVProfits(board []deck.Card, allPlayers []Player, sidePots []SidePot, totalBets map[string]int, rng Random) map[string]int {
	byID := make(map[string]Player, len(allPlayers))
	for _, p := range allPlayers {
		byID[p.ID] = p
	}

	expected := make(map[string]float64, len(allPlayers))

	for _, pot := range sidePots {
		if len(pot.Eligible) == 1 {
			expected[pot.Eligible[0]] += float64(pot.Amount)
			continue
		}

		eligible := make([]Player, 0, len(pot.Eligible))
		for _, id := range pot.Eligible {
			eligible = append(eligible, byID[id])
		}

		equities := CalculateEquities(board, eligible, rng)
		for id, eq := range equities {
			expected[id] += eq * float64(pot.Amount)
		}
	}

	profits := make(map[string]int, len(expected))
	ids := make([]string, 0, len(expected))
	for id := range expected {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		profits[id] = int(expected[id]+0.5) - totalBets[id]
	}
	return profits
}
