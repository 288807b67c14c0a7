package vote

// Resolve applies the strict-majority rule to a tally built from votes.
// The denominator is len(votes): unparseable responses never count.
// The winning decision carries the rationale of the first vote for the
// winning label.
func Resolve(t Tally, votes []Vote) Decision {
	if len(votes) == 0 {
		return Decision{Classification: NoConsensus, Rationale: MsgNoValidLabels}
	}

	winner, count, ok := t.Leader()
	if !ok || 2*count <= len(votes) {
		return Decision{Classification: NoConsensus, Rationale: MsgNoMajority}
	}

	for _, v := range votes {
		if v.Classification == winner {
			return Decision{Classification: winner, Rationale: v.Rationale}
		}
	}
	// Tally and votes disagree; treat as no majority rather than invent a rationale.
	return Decision{Classification: NoConsensus, Rationale: MsgNoMajority}
}
