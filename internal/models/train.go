package models

import (
	"strings"

	"github.com/uptrace/bun"
)

// TrainRecord is the durable row backing a catalog train. The route is
// stored as a comma-separated list of stop names in travel order.
type TrainRecord struct {
	bun.BaseModel `bun:"table:trains"`

	TrainNumber string `bun:"train_number,pk" json:"train_number"`
	Name        string `bun:"train_name,notnull" json:"name"`
	Route       string `bun:"route,notnull" json:"route"`
	TotalSeats  int    `bun:"total_seats,notnull" json:"total_seats"`
}

// RouteStops splits the stored route into its ordered stop names.
func (t *TrainRecord) RouteStops() []string {
	parts := strings.Split(t.Route, ",")
	stops := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			stops = append(stops, s)
		}
	}
	return stops
}
