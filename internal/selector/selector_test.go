package selector

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vwap-trading-bot/internal/scoring"
)

func card(symbol string, composite, tiebreak float64, class scoring.RiskClass) scoring.ScoreCard {
	return scoring.ScoreCard{
		Symbol:    symbol,
		Composite: composite,
		RiskClass: class,
		Categories: map[scoring.Category]float64{
			scoring.CatRankTiebreak: tiebreak,
		},
	}
}

// universe builds count cards per risk class with descending composites
func universe(perClass int) []scoring.ScoreCard {
	var cards []scoring.ScoreCard
	classes := []scoring.RiskClass{scoring.RiskConservative, scoring.RiskMedium, scoring.RiskAggressive}
	for ci, class := range classes {
		for i := 0; i < perClass; i++ {
			sym := fmt.Sprintf("%s%d", string(class[0]), i)
			cards = append(cards, card(sym, 90-float64(ci*perClass+i), 50, class))
		}
	}
	return cards
}

func TestRankDescendingWithTiebreak(t *testing.T) {
	cards := []scoring.ScoreCard{
		card("BBB", 80, 60, scoring.RiskMedium),
		card("AAA", 80, 70, scoring.RiskMedium),
		card("CCC", 95, 10, scoring.RiskMedium),
		card("DDD", 80, 60, scoring.RiskMedium),
	}

	ranked := Rank(cards)

	require.Len(t, ranked, 4)
	assert.Equal(t, "CCC", ranked[0].Symbol, "highest composite ranks first")
	assert.Equal(t, "AAA", ranked[1].Symbol, "tiebreak category decides equal composites")
	assert.Equal(t, "BBB", ranked[2].Symbol, "symbol breaks full ties")
	assert.Equal(t, "DDD", ranked[3].Symbol)
}

func TestDefaultQuotas(t *testing.T) {
	q := DefaultQuotas(8)
	assert.Equal(t, 2, q.Conservative)
	assert.Equal(t, 4, q.Medium)
	assert.Equal(t, 2, q.Aggressive)

	q = DefaultQuotas(5)
	assert.Equal(t, 5, q.total())
}

func TestSelectHonorsRiskQuotas(t *testing.T) {
	sel := Select(universe(10), 8)

	require.Len(t, sel.Primary, 8)
	counts := map[scoring.RiskClass]int{}
	for _, c := range sel.Primary {
		counts[c.RiskClass]++
	}
	assert.Equal(t, 2, counts[scoring.RiskConservative])
	assert.Equal(t, 4, counts[scoring.RiskMedium])
	assert.Equal(t, 2, counts[scoring.RiskAggressive])
}

func TestSelectFallsBackWhenClassRunsShort(t *testing.T) {
	// Only one aggressive candidate exists for two aggressive slots.
	cards := []scoring.ScoreCard{
		card("A0", 90, 50, scoring.RiskAggressive),
		card("C0", 88, 50, scoring.RiskConservative),
		card("C1", 86, 50, scoring.RiskConservative),
		card("M0", 84, 50, scoring.RiskMedium),
		card("M1", 82, 50, scoring.RiskMedium),
		card("M2", 80, 50, scoring.RiskMedium),
		card("M3", 78, 50, scoring.RiskMedium),
		card("M4", 76, 50, scoring.RiskMedium),
	}

	sel := Select(cards, 8)

	require.Len(t, sel.Primary, 8, "missing class candidates must not leave slots empty")
	symbols := map[string]bool{}
	for _, c := range sel.Primary {
		symbols[c.Symbol] = true
	}
	assert.True(t, symbols["M4"], "best remaining candidate fills the open slot")
}

func TestSelectPrimariesStayRankOrdered(t *testing.T) {
	sel := Select(universe(10), 8)

	for i := 1; i < len(sel.Primary); i++ {
		assert.GreaterOrEqual(t, sel.Primary[i-1].Composite, sel.Primary[i].Composite,
			"primary list must descend by composite")
	}
}

func TestBackupsDisjointAndSized(t *testing.T) {
	sel := Select(universe(10), 8)

	require.Len(t, sel.Backups, 12, "backups are n+4")
	primary := map[string]bool{}
	for _, c := range sel.Primary {
		primary[c.Symbol] = true
	}
	for _, c := range sel.Backups {
		assert.False(t, primary[c.Symbol], "backup %s duplicates a primary", c.Symbol)
	}
}

func TestBackupsPreserveRiskBalance(t *testing.T) {
	// Conservative names dominate the residual ranking here; a rank-only
	// backup pick would carry no aggressive cover at all.
	sel := Select(universe(10), 8)

	require.Len(t, sel.Backups, 12)
	counts := map[scoring.RiskClass]int{}
	for _, c := range sel.Backups {
		counts[c.RiskClass]++
	}
	assert.Equal(t, 3, counts[scoring.RiskConservative])
	assert.Equal(t, 6, counts[scoring.RiskMedium])
	assert.Equal(t, 3, counts[scoring.RiskAggressive])
}

func TestBackupsTruncateOnSmallUniverse(t *testing.T) {
	sel := Select(universe(3), 8) // 9 candidates total

	require.Len(t, sel.Primary, 8)
	assert.Len(t, sel.Backups, 1)
}

func TestSelectEmptyUniverse(t *testing.T) {
	sel := Select(nil, 8)
	assert.Empty(t, sel.Primary)
	assert.Empty(t, sel.Backups)
}
