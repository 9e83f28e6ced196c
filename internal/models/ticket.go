package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Ticket statuses. A ticket is created ACTIVE and transitions to
// CANCELLED exactly once; rows are never deleted.
const (
	StatusActive    = "ACTIVE"
	StatusCancelled = "CANCELLED"
)

type Ticket struct {
	bun.BaseModel `bun:"table:tickets"`

	PNR               string    `bun:"pnr,pk" json:"pnr"`
	PassengerUsername string    `bun:"passenger_username,notnull" json:"passenger_username"`
	BookedBy          string    `bun:"booked_by,notnull" json:"booked_by"`
	TrainNumber       string    `bun:"train_number,notnull" json:"train_number"`
	SeatNumber        string    `bun:"seat_number,notnull" json:"seat_number"`
	TravelDate        string    `bun:"travel_date,notnull" json:"travel_date"`
	Status            string    `bun:"status,notnull" json:"status"`
	CreatedAt         time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

type BookingRequest struct {
	TrainNumber        string   `json:"train_number"`
	TravelDate         string   `json:"travel_date"`
	SeatCount          int      `json:"seat_count"`
	PassengerUsernames []string `json:"passenger_usernames,omitempty"`
}

type BookingResponse struct {
	TrainNumber string   `json:"train_number"`
	TravelDate  string   `json:"travel_date"`
	Tickets     []Ticket `json:"tickets"`
}
