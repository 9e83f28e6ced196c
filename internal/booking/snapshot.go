package booking

import (
	"context"
	"fmt"
)

// loadSnapshot rebuilds in-memory seat occupancy from the durable store.
// Every ACTIVE ticket is resolved against the catalog and its seat marked
// occupied; a row whose train or seat no longer resolves is logged and
// skipped. It stays in durable history but is invisible to the in-memory
// view, which is a tolerated inconsistency, not a fatal one.
func (e *Engine) loadSnapshot(ctx context.Context) error {
	tickets, err := e.DB.ActiveTickets(ctx)
	if err != nil {
		return err
	}

	loaded, skipped := 0, 0
	e.mu.Lock()
	for _, t := range tickets {
		train, ok := e.Catalog.GetTrain(t.TrainNumber)
		if !ok {
			e.logWarn("SNAPSHOT", fmt.Sprintf("ticket %s references unknown train %s, skipping", t.PNR, t.TrainNumber))
			skipped++
			continue
		}
		seat := train.Seat(t.SeatNumber)
		if seat == nil {
			e.logWarn("SNAPSHOT", fmt.Sprintf("ticket %s references unknown seat %s on train %s, skipping", t.PNR, t.SeatNumber, t.TrainNumber))
			skipped++
			continue
		}
		seat.Occupy()
		e.active[t.PNR] = t
		loaded++
	}
	e.mu.Unlock()

	if e.Logger != nil {
		e.Logger.LogSnapshot(fmt.Sprintf("restored %d active ticket(s), skipped %d", loaded, skipped))
	}
	return nil
}
