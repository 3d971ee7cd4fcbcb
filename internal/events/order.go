package events

import (
	"sort"

	"github.com/atmx/paper-engine/internal/model"
)

// Map iteration order is random; sorting keeps seeded runs replayable.
func sortedSectors(market *model.MarketState) []string {
	out := market.Sectors()
	sort.Strings(out)
	return out
}
