package brackets

import "fmt"

// QualificationPairing is one all-pairs qualification match, numbered in
// pairing order starting at 1.
type QualificationPairing struct {
	Seq           int
	Competitor1ID int
	Competitor2ID int
}

// GenerateRoundRobin produces the qualification schedule: every competitor
// meets every other competitor exactly once.
func GenerateRoundRobin(competitorIDs []int) ([]QualificationPairing, error) {
	if len(competitorIDs) < 2 {
		return nil, fmt.Errorf("round robin requires at least 2 competitors, got %d", len(competitorIDs))
	}
	seen := make(map[int]struct{}, len(competitorIDs))
	for _, id := range competitorIDs {
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("duplicate competitor id %d in round robin", id)
		}
		seen[id] = struct{}{}
	}

	pairings := make([]QualificationPairing, 0, len(competitorIDs)*(len(competitorIDs)-1)/2)
	seq := 0
	for i := 0; i < len(competitorIDs); i++ {
		for j := i + 1; j < len(competitorIDs); j++ {
			seq++
			pairings = append(pairings, QualificationPairing{
				Seq:           seq,
				Competitor1ID: competitorIDs[i],
				Competitor2ID: competitorIDs[j],
			})
		}
	}
	return pairings, nil
}
