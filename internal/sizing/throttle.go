package sizing

import "github.com/thomasjamais/bitget-agent-sub001/internal/orders"

// ThrottleByOpenPositions filters intentions so that at most maxPerSymbol
// survive per symbol. Earlier intentions win and input order is preserved.
func ThrottleByOpenPositions(intents []orders.OrderIntention, maxPerSymbol int) []orders.OrderIntention {
	if maxPerSymbol <= 0 {
		return nil
	}

	counts := make(map[string]int, len(intents))
	kept := make([]orders.OrderIntention, 0, len(intents))
	for _, intent := range intents {
		if counts[intent.Symbol] >= maxPerSymbol {
			continue
		}
		counts[intent.Symbol]++
		kept = append(kept, intent)
	}
	return kept
}
