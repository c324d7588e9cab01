package query

import (
	"sort"

	"github.com/luma-launcher/luma/pkg/extension"
)

// mergeRanked concatenates per-handler contributions in handler registration
// order and sorts by score, best first. The sort is stable, so items with
// equal scores keep registration order first and handler-emission order
// second. Two runs over the same snapshot produce identical rankings.
func mergeRanked(contributions [][]extension.RankItem) []extension.RankItem {
	total := 0
	for _, contribution := range contributions {
		total += len(contribution)
	}

	merged := make([]extension.RankItem, 0, total)
	for _, contribution := range contributions {
		merged = append(merged, contribution...)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})

	return merged
}
