// Pool production: society stores regrow each sim-hour so the economy keeps
// a provider of last resort.
package engine

import (
	"log/slog"
)

// ProduceHourly regrows every society pool by its regen rate, up to its cap.
func (s *Simulation) ProduceHourly(tick uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, soc := range s.Societies {
		for res, rate := range soc.PoolRegen {
			if rate <= 0 {
				continue
			}
			have := soc.Pool.Amount(res)
			ceiling, capped := soc.PoolCap[res]
			if capped && have >= ceiling {
				continue
			}
			grow := rate
			if capped {
				grow = min(rate, ceiling-have)
			}
			soc.Pool.Add(res, grow)
			slog.Debug("pool regrown", "tick", tick, "society", soc.Name, "resource", res, "amount", grow)
		}
	}
}
