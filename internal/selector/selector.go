package selector

import (
	"sort"

	"vwap-trading-bot/internal/scoring"
)

// Quotas describe how a selection of n slots is split across risk classes.
// The default 8-slot split is 2 conservative, 4 medium, 2 aggressive.
type Quotas struct {
	Conservative int
	Medium       int
	Aggressive   int
}

func (q Quotas) total() int {
	return q.Conservative + q.Medium + q.Aggressive
}

// DefaultQuotas returns the standard risk split for n slots, scaling the
// 2/4/2 shape and giving any remainder to the medium bucket.
func DefaultQuotas(n int) Quotas {
	q := Quotas{
		Conservative: n / 4,
		Aggressive:   n / 4,
	}
	q.Medium = n - q.Conservative - q.Aggressive
	return q
}

// Selection is the outcome of one session's stock picking
type Selection struct {
	Primary []scoring.ScoreCard
	Backups []scoring.ScoreCard
}

// Rank orders cards by composite score descending. Ties break on the
// dedicated tiebreak category, then on symbol so the order is total.
func Rank(cards []scoring.ScoreCard) []scoring.ScoreCard {
	ranked := make([]scoring.ScoreCard, len(cards))
	copy(ranked, cards)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Composite != ranked[j].Composite {
			return ranked[i].Composite > ranked[j].Composite
		}
		if ranked[i].Tiebreak() != ranked[j].Tiebreak() {
			return ranked[i].Tiebreak() > ranked[j].Tiebreak()
		}
		return ranked[i].Symbol < ranked[j].Symbol
	})
	return ranked
}

// Select picks n primary symbols plus n+4 ranked backups from the candidate
// cards. Both tiers fill risk-class quotas greedily in rank order; when a
// class runs out of candidates its remaining slots go to the best unpicked
// symbols regardless of class, so a lopsided universe never leaves slots
// empty. Backups share no symbol with the primaries and follow the same
// balance policy scaled to their own size.
func Select(cards []scoring.ScoreCard, n int) Selection {
	return SelectWithQuotas(cards, n, DefaultQuotas(n))
}

func SelectWithQuotas(cards []scoring.ScoreCard, n int, quotas Quotas) Selection {
	if n <= 0 || len(cards) == 0 {
		return Selection{}
	}
	if quotas.total() != n {
		quotas = DefaultQuotas(n)
	}

	ranked := Rank(cards)
	picked := make(map[string]bool, n)

	primary := pickBalanced(ranked, picked, n, quotas)
	backups := pickBalanced(ranked, picked, n+4, DefaultQuotas(n+4))

	return Selection{Primary: primary, Backups: backups}
}

// pickBalanced fills n slots from the ranked pool in two passes: quota slots
// first in rank order, then best-available for whatever the universe could
// not supply. Picked symbols are recorded so later tiers stay disjoint; the
// result keeps rank order regardless of which pass admitted a card.
func pickBalanced(ranked []scoring.ScoreCard, picked map[string]bool, n int, quotas Quotas) []scoring.ScoreCard {
	out := make([]scoring.ScoreCard, 0, n)
	remaining := map[scoring.RiskClass]int{
		scoring.RiskConservative: quotas.Conservative,
		scoring.RiskMedium:       quotas.Medium,
		scoring.RiskAggressive:   quotas.Aggressive,
	}

	for _, card := range ranked {
		if len(out) == n {
			break
		}
		if remaining[card.RiskClass] > 0 && !picked[card.Symbol] {
			remaining[card.RiskClass]--
			picked[card.Symbol] = true
			out = append(out, card)
		}
	}

	for _, card := range ranked {
		if len(out) == n {
			break
		}
		if !picked[card.Symbol] {
			picked[card.Symbol] = true
			out = append(out, card)
		}
	}

	return Rank(out)
}
