package brackets

import "errors"

// BracketSide identifies the sub-graph a match belongs to.
type BracketSide string

const (
	SideWinners    BracketSide = "winners"
	SideLosers     BracketSide = "losers"
	SideGrandFinal BracketSide = "grand_final"
)

// Round labels, in sequence order.
const (
	RoundWinnersQuarterfinal = "winners_quarterfinal"
	RoundWinnersSemifinal    = "winners_semifinal"
	RoundWinnersFinal        = "winners_final"
	RoundLosersRound1        = "losers_round_1"
	RoundLosersRound2        = "losers_round_2"
	RoundLosersRound3        = "losers_round_3"
	RoundLosersSemifinal     = "losers_semifinal"
	RoundLosersFinal         = "losers_final"
	RoundGrandFinal          = "grand_final"
	RoundGrandFinalReset     = "grand_final_reset"
)

const (
	// DoubleEliminationSize is the only supported bracket size. This is a
	// deliberate scope constraint: the SMK graph below is fixed for 8
	// qualified competitors.
	DoubleEliminationSize = 8

	GrandFinalSeq      = 16
	GrandFinalResetSeq = 17
)

var ErrUnsupportedBracketSize = errors.New("unsupported bracket size: only 8 competitors are supported")

// SlotRef addresses one competitor slot of a downstream match.
type SlotRef struct {
	Seq  int `json:"seq"`
	Slot int `json:"slot"`
}

// TopologyEntry describes one match of the bracket graph: its round, its
// first-round seed pairing (zero beyond round one) and where its winner and
// loser advance. A nil LoserGoesTo eliminates the loser.
type TopologyEntry struct {
	Seq          int         `json:"seq"`
	Round        string      `json:"round"`
	Side         BracketSide `json:"side"`
	Seed1        int         `json:"seed1,omitempty"`
	Seed2        int         `json:"seed2,omitempty"`
	WinnerGoesTo *SlotRef    `json:"winner_goes_to,omitempty"`
	LoserGoesTo  *SlotRef    `json:"loser_goes_to,omitempty"`
}

func ref(seq, slot int) *SlotRef { return &SlotRef{Seq: seq, Slot: slot} }

// doubleElimination8 is the fixed SMK double-elimination graph, kept as a
// declarative table rather than computed branching so it can be read (and
// tested) match by match.
//
// Quarterfinal losers drop to losers round 1 at position ((seq-1) mod 2)+1.
// Losers round 1 winners cross over (seq 8 feeds seq 11, seq 9 feeds seq 10)
// so a quarterfinal loser cannot immediately rematch the semifinal loser
// from their own half. Losers round 3 (seq 12-13) has a single inbound edge
// per match; those matches resolve as walkovers.
var doubleElimination8 = []TopologyEntry{
	// Winners quarterfinals, seeded by seed-sum pairing.
	{Seq: 1, Round: RoundWinnersQuarterfinal, Side: SideWinners, Seed1: 1, Seed2: 8, WinnerGoesTo: ref(5, 1), LoserGoesTo: ref(8, 1)},
	{Seq: 2, Round: RoundWinnersQuarterfinal, Side: SideWinners, Seed1: 4, Seed2: 5, WinnerGoesTo: ref(5, 2), LoserGoesTo: ref(8, 2)},
	{Seq: 3, Round: RoundWinnersQuarterfinal, Side: SideWinners, Seed1: 2, Seed2: 7, WinnerGoesTo: ref(6, 1), LoserGoesTo: ref(9, 1)},
	{Seq: 4, Round: RoundWinnersQuarterfinal, Side: SideWinners, Seed1: 3, Seed2: 6, WinnerGoesTo: ref(6, 2), LoserGoesTo: ref(9, 2)},

	// Winners semifinals and final.
	{Seq: 5, Round: RoundWinnersSemifinal, Side: SideWinners, WinnerGoesTo: ref(7, 1), LoserGoesTo: ref(10, 1)},
	{Seq: 6, Round: RoundWinnersSemifinal, Side: SideWinners, WinnerGoesTo: ref(7, 2), LoserGoesTo: ref(11, 1)},
	{Seq: 7, Round: RoundWinnersFinal, Side: SideWinners, WinnerGoesTo: ref(GrandFinalSeq, 1), LoserGoesTo: ref(15, 2)},

	// Losers bracket: single elimination from here on.
	{Seq: 8, Round: RoundLosersRound1, Side: SideLosers, WinnerGoesTo: ref(11, 2)},
	{Seq: 9, Round: RoundLosersRound1, Side: SideLosers, WinnerGoesTo: ref(10, 2)},
	{Seq: 10, Round: RoundLosersRound2, Side: SideLosers, WinnerGoesTo: ref(12, 1)},
	{Seq: 11, Round: RoundLosersRound2, Side: SideLosers, WinnerGoesTo: ref(13, 1)},
	{Seq: 12, Round: RoundLosersRound3, Side: SideLosers, WinnerGoesTo: ref(14, 1)},
	{Seq: 13, Round: RoundLosersRound3, Side: SideLosers, WinnerGoesTo: ref(14, 2)},
	{Seq: 14, Round: RoundLosersSemifinal, Side: SideLosers, WinnerGoesTo: ref(15, 1)},
	{Seq: 15, Round: RoundLosersFinal, Side: SideLosers, WinnerGoesTo: ref(GrandFinalSeq, 2)},

	// Grand final and its conditional reset. Advancement out of these two
	// is resolved by ResolveAdvancement, not by table edges: a losers-side
	// win of the grand final populates the reset instead of ending the
	// tournament.
	{Seq: GrandFinalSeq, Round: RoundGrandFinal, Side: SideGrandFinal},
	{Seq: GrandFinalResetSeq, Round: RoundGrandFinalReset, Side: SideGrandFinal},
}

// GenerateDoubleElimination returns the fixed match graph for the given
// number of seeded competitors. Only size 8 is supported.
func GenerateDoubleElimination(size int) ([]TopologyEntry, error) {
	if size != DoubleEliminationSize {
		return nil, ErrUnsupportedBracketSize
	}
	out := make([]TopologyEntry, len(doubleElimination8))
	copy(out, doubleElimination8)
	return out, nil
}

// EntryBySeq looks up the topology entry with the given sequence number.
func EntryBySeq(topology []TopologyEntry, seq int) (*TopologyEntry, bool) {
	for i := range topology {
		if topology[i].Seq == seq {
			return &topology[i], true
		}
	}
	return nil, false
}

// IsWalkover reports whether the match with the given sequence number can
// only ever receive a single competitor from the graph. Such a match
// completes the moment its lone competitor arrives. The grand final reset is
// populated by the resolver, not by table edges, and is never a walkover.
func IsWalkover(topology []TopologyEntry, seq int) bool {
	entry, ok := EntryBySeq(topology, seq)
	if !ok {
		return false
	}
	if entry.Round == RoundGrandFinalReset {
		return false
	}
	inbound := 0
	if entry.Seed1 != 0 {
		inbound++
	}
	if entry.Seed2 != 0 {
		inbound++
	}
	for _, e := range topology {
		if e.WinnerGoesTo != nil && e.WinnerGoesTo.Seq == seq {
			inbound++
		}
		if e.LoserGoesTo != nil && e.LoserGoesTo.Seq == seq {
			inbound++
		}
	}
	return inbound < 2
}
