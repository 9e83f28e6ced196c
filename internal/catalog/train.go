package catalog

import (
	"errors"
	"fmt"
	"strings"
)

// Seat is the smallest schedulable unit. It belongs to exactly one Train
// and carries only an occupied flag. The flag is advisory: availability
// decisions are always made against the durable store, and only the
// booking engine may flip it (after a successful commit).
type Seat struct {
	TrainNumber string
	SeatNumber  string
	occupied    bool
}

func (s *Seat) Occupied() bool { return s.occupied }

func (s *Seat) Occupy() { s.occupied = true }

func (s *Seat) Release() { s.occupied = false }

// Train owns an ordered route and its seats. Seats are created with the
// train as S1..SN and live as long as the train does.
type Train struct {
	Number string
	Name   string
	Route  []string
	Seats  []*Seat
}

var ErrRouteTooShort = errors.New("train route needs at least two stops")

// NewTrain builds a train with totalSeats seats numbered S1..SN.
func NewTrain(number, name string, route []string, totalSeats int) (*Train, error) {
	if len(route) < 2 {
		return nil, ErrRouteTooShort
	}
	t := &Train{Number: number, Name: name, Route: route}
	t.Seats = make([]*Seat, 0, totalSeats)
	for i := 1; i <= totalSeats; i++ {
		t.Seats = append(t.Seats, &Seat{TrainNumber: number, SeatNumber: fmt.Sprintf("S%d", i)})
	}
	return t, nil
}

// ServesRoute reports whether this train stops at start before end.
// Comparison is case-insensitive and whitespace-trimmed, and direction
// matters: the start stop must appear strictly before the end stop.
func (t *Train) ServesRoute(start, end string) bool {
	if start == "" || end == "" {
		return false
	}
	from := strings.ToLower(strings.TrimSpace(start))
	to := strings.ToLower(strings.TrimSpace(end))

	fromIdx, toIdx := -1, -1
	for i, stop := range t.Route {
		norm := strings.ToLower(strings.TrimSpace(stop))
		if norm == from && fromIdx == -1 {
			fromIdx = i
		}
		if norm == to && toIdx == -1 {
			toIdx = i
		}
	}
	return fromIdx != -1 && toIdx != -1 && fromIdx < toIdx
}

// Seat returns the seat with the given number, or nil. Seat numbers are
// matched case-insensitively so durable rows written as "s3" still resolve.
func (t *Train) Seat(seatNumber string) *Seat {
	for _, s := range t.Seats {
		if strings.EqualFold(s.SeatNumber, seatNumber) {
			return s
		}
	}
	return nil
}

// SeatNumbers returns all seat numbers in ascending ordinal order. This
// ordering is what makes seat selection deterministic.
func (t *Train) SeatNumbers() []string {
	nums := make([]string, len(t.Seats))
	for i, s := range t.Seats {
		nums[i] = s.SeatNumber
	}
	return nums
}

func (t *Train) BookedSeatCount() int {
	count := 0
	for _, s := range t.Seats {
		if s.Occupied() {
			count++
		}
	}
	return count
}

func (t *Train) AvailableSeatCount() int {
	return len(t.Seats) - t.BookedSeatCount()
}
