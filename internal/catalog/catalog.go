package catalog

import (
	"fmt"
	"strings"

	"ms-railbooking/internal/models"
)

// Catalog is the registry of trains the booking engine reads from. It is
// built once at startup from durable train rows and not mutated afterwards;
// only seat occupancy flags change, and only via the booking engine.
type Catalog struct {
	trains   []*Train
	byNumber map[string]*Train
}

// New builds a catalog from durable train records.
func New(records []models.TrainRecord) (*Catalog, error) {
	c := &Catalog{byNumber: make(map[string]*Train, len(records))}
	for _, rec := range records {
		t, err := NewTrain(rec.TrainNumber, rec.Name, rec.RouteStops(), rec.TotalSeats)
		if err != nil {
			return nil, fmt.Errorf("train %s: %w", rec.TrainNumber, err)
		}
		c.trains = append(c.trains, t)
		c.byNumber[strings.ToUpper(rec.TrainNumber)] = t
	}
	return c, nil
}

// SearchTrains returns all trains serving start before end.
func (c *Catalog) SearchTrains(start, end string) []*Train {
	matches := make([]*Train, 0)
	for _, t := range c.trains {
		if t.ServesRoute(start, end) {
			matches = append(matches, t)
		}
	}
	return matches
}

// GetAllTrains returns every train in registration order.
func (c *Catalog) GetAllTrains() []*Train {
	return c.trains
}

// GetTrain looks a train up by number, case-insensitively.
func (c *Catalog) GetTrain(trainNumber string) (*Train, bool) {
	t, ok := c.byNumber[strings.ToUpper(strings.TrimSpace(trainNumber))]
	return t, ok
}
