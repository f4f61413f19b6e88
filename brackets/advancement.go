package brackets

import "fmt"

// SlotAssignment is one slot-fill operation emitted by the resolver.
type SlotAssignment struct {
	TargetSeq    int
	Slot         int
	CompetitorID int
}

// Advancement is the outcome of completing one match: zero, one or two slot
// fills, plus the terminal signals. ChampionID is non-zero once the
// tournament is decided.
type Advancement struct {
	Assignments   []SlotAssignment
	ResetRequired bool
	ChampionID    int
}

// ResolveAdvancement computes where the winner and loser of a completed
// match go next. winnerSlot is the slot (1 or 2) the winner occupied in the
// completed match; it decides the grand-final special case, because slot 1
// of the grand final is always the winners-side competitor. A loserID of 0
// means the match produced no loser; elimination matches must produce a
// winner, which is a precondition, not handled here.
func ResolveAdvancement(topology []TopologyEntry, completedSeq, winnerID, loserID, winnerSlot int) (*Advancement, error) {
	entry, ok := EntryBySeq(topology, completedSeq)
	if !ok {
		return nil, fmt.Errorf("no topology entry for sequence %d", completedSeq)
	}
	if winnerID == 0 {
		return nil, fmt.Errorf("sequence %d resolved without a winner", completedSeq)
	}

	adv := &Advancement{}

	switch entry.Round {
	case RoundGrandFinal:
		if winnerSlot == 1 {
			// The winners-side competitor won outright: tournament over.
			adv.ChampionID = winnerID
			return adv, nil
		}
		// The losers-side competitor won. The winners-side competitor has
		// only lost once overall and is entitled to a rematch, so the reset
		// becomes the decider. Side-to-slot mapping is preserved.
		adv.ResetRequired = true
		adv.Assignments = append(adv.Assignments,
			SlotAssignment{TargetSeq: GrandFinalResetSeq, Slot: 1, CompetitorID: loserID},
			SlotAssignment{TargetSeq: GrandFinalResetSeq, Slot: 2, CompetitorID: winnerID},
		)
		return adv, nil
	case RoundGrandFinalReset:
		adv.ChampionID = winnerID
		return adv, nil
	}

	if entry.WinnerGoesTo != nil {
		adv.Assignments = append(adv.Assignments, SlotAssignment{
			TargetSeq:    entry.WinnerGoesTo.Seq,
			Slot:         entry.WinnerGoesTo.Slot,
			CompetitorID: winnerID,
		})
	}
	if entry.LoserGoesTo != nil && loserID != 0 {
		adv.Assignments = append(adv.Assignments, SlotAssignment{
			TargetSeq:    entry.LoserGoesTo.Seq,
			Slot:         entry.LoserGoesTo.Slot,
			CompetitorID: loserID,
		})
	}
	return adv, nil
}
