package db_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"ms-railbooking/internal/booking"
	"ms-railbooking/internal/booking/db"
	"ms-railbooking/internal/models"
)

// openTestDB gives each test its own in-memory database. The name keeps
// parallel tests from sharing one shared-cache store.
func openTestDB(t *testing.T, name string) *db.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { bunDB.Close() })
	require.NoError(t, db.Migrate(context.Background(), bunDB))
	return &db.DB{Bun: bunDB}
}

func seatNumbers(n int) []string {
	seats := make([]string, n)
	for i := range seats {
		seats[i] = fmt.Sprintf("S%d", i+1)
	}
	return seats
}

func reserveParams(passengers ...string) booking.ReserveParams {
	return booking.ReserveParams{
		TrainNumber: "T123",
		SeatNumbers: seatNumbers(10),
		TravelDate:  "2030-05-01",
		BookedBy:    "alice",
		Passengers:  passengers,
	}
}

func TestReserveSeatsCreatesActiveRows(t *testing.T) {
	store := openTestDB(t, "reserve_creates")
	ctx := context.Background()

	tickets, err := store.ReserveSeats(ctx, reserveParams("alice", "bob", "carol"))
	require.NoError(t, err)
	require.Len(t, tickets, 3)

	assert.Equal(t, "S1", tickets[0].SeatNumber)
	assert.Equal(t, "S2", tickets[1].SeatNumber)
	assert.Equal(t, "S3", tickets[2].SeatNumber)
	assert.Equal(t, "alice", tickets[0].PassengerUsername)
	assert.Equal(t, "bob", tickets[1].PassengerUsername)

	seen := make(map[string]struct{})
	for _, ticket := range tickets {
		assert.Equal(t, models.StatusActive, ticket.Status)
		assert.Equal(t, "alice", ticket.BookedBy)
		assert.Equal(t, "2030-05-01", ticket.TravelDate)
		assert.NotEmpty(t, ticket.PNR)
		_, dup := seen[ticket.PNR]
		assert.False(t, dup, "pnr %s issued twice", ticket.PNR)
		seen[ticket.PNR] = struct{}{}
	}

	active, err := store.ActiveTickets(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 3)
}

func TestReserveSeatsSkipsOccupiedSeats(t *testing.T) {
	store := openTestDB(t, "reserve_skips")
	ctx := context.Background()

	_, err := store.ReserveSeats(ctx, booking.ReserveParams{
		TrainNumber: "T123",
		SeatNumbers: []string{"S3", "S7"},
		TravelDate:  "2030-05-01",
		BookedBy:    "bob",
		Passengers:  []string{"bob", "bob"},
	})
	require.NoError(t, err)

	tickets, err := store.ReserveSeats(ctx, reserveParams("alice", "alice", "alice"))
	require.NoError(t, err)
	require.Len(t, tickets, 3)
	assert.Equal(t, "S1", tickets[0].SeatNumber)
	assert.Equal(t, "S2", tickets[1].SeatNumber)
	assert.Equal(t, "S4", tickets[2].SeatNumber)
}

func TestReserveSeatsInsufficient(t *testing.T) {
	store := openTestDB(t, "reserve_insufficient")
	ctx := context.Background()

	params := booking.ReserveParams{
		TrainNumber: "T123",
		SeatNumbers: seatNumbers(2),
		TravelDate:  "2030-05-01",
		BookedBy:    "alice",
		Passengers:  []string{"alice", "bob", "carol"},
	}
	_, err := store.ReserveSeats(ctx, params)

	var insufficient *booking.InsufficientSeatsError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, "T123", insufficient.TrainNumber)
	assert.Equal(t, 3, insufficient.Requested)
	assert.Equal(t, 2, insufficient.Available)
}

func TestReserveSeatsAllOrNothing(t *testing.T) {
	store := openTestDB(t, "reserve_atomic")
	ctx := context.Background()

	_, err := store.ReserveSeats(ctx, booking.ReserveParams{
		TrainNumber: "T123",
		SeatNumbers: seatNumbers(3),
		TravelDate:  "2030-05-01",
		BookedBy:    "bob",
		Passengers:  []string{"bob", "bob"},
	})
	require.NoError(t, err)

	// Only one seat is left but two are requested: nothing may commit.
	_, err = store.ReserveSeats(ctx, booking.ReserveParams{
		TrainNumber: "T123",
		SeatNumbers: seatNumbers(3),
		TravelDate:  "2030-05-01",
		BookedBy:    "alice",
		Passengers:  []string{"alice", "carol"},
	})
	var insufficient *booking.InsufficientSeatsError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 1, insufficient.Available)

	active, err := store.ActiveTickets(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 2)
}

func TestReserveSeatsIndependentTrains(t *testing.T) {
	store := openTestDB(t, "reserve_trains")
	ctx := context.Background()

	first, err := store.ReserveSeats(ctx, booking.ReserveParams{
		TrainNumber: "T123",
		SeatNumbers: seatNumbers(2),
		TravelDate:  "2030-05-01",
		BookedBy:    "alice",
		Passengers:  []string{"alice", "alice"},
	})
	require.NoError(t, err)
	require.Len(t, first, 2)

	// T123 is full, but T456 still hands out its own S1.
	second, err := store.ReserveSeats(ctx, booking.ReserveParams{
		TrainNumber: "T456",
		SeatNumbers: seatNumbers(2),
		TravelDate:  "2030-05-01",
		BookedBy:    "bob",
		Passengers:  []string{"bob"},
	})
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, "S1", second[0].SeatNumber)
}

func TestCancelTicketIsIdempotent(t *testing.T) {
	store := openTestDB(t, "cancel_idempotent")
	ctx := context.Background()

	tickets, err := store.ReserveSeats(ctx, reserveParams("alice"))
	require.NoError(t, err)
	pnr := tickets[0].PNR

	ok, err := store.CancelTicket(ctx, pnr)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.CancelTicket(ctx, pnr)
	require.NoError(t, err)
	assert.False(t, ok, "second cancel must report nothing to do")

	ticket, err := store.TicketByPNR(ctx, pnr)
	require.NoError(t, err)
	require.NotNil(t, ticket)
	assert.Equal(t, models.StatusCancelled, ticket.Status)
}

func TestCancelUnknownPNR(t *testing.T) {
	store := openTestDB(t, "cancel_unknown")

	ok, err := store.CancelTicket(context.Background(), "TKT-none")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCancelledSeatBecomesBookableAgain(t *testing.T) {
	store := openTestDB(t, "cancel_rebook")
	ctx := context.Background()

	tickets, err := store.ReserveSeats(ctx, reserveParams("alice"))
	require.NoError(t, err)
	assert.Equal(t, "S1", tickets[0].SeatNumber)

	ok, err := store.CancelTicket(ctx, tickets[0].PNR)
	require.NoError(t, err)
	require.True(t, ok)

	rebooked, err := store.ReserveSeats(ctx, reserveParams("bob"))
	require.NoError(t, err)
	require.Len(t, rebooked, 1)
	assert.Equal(t, "S1", rebooked[0].SeatNumber)
	assert.NotEqual(t, tickets[0].PNR, rebooked[0].PNR)
}

func TestTicketByPNRUnknownIsNil(t *testing.T) {
	store := openTestDB(t, "ticket_by_pnr")

	ticket, err := store.TicketByPNR(context.Background(), "TKT-missing")
	require.NoError(t, err)
	assert.Nil(t, ticket)
}

func TestTicketsByBooker(t *testing.T) {
	store := openTestDB(t, "tickets_by_booker")
	ctx := context.Background()

	tickets, err := store.ReserveSeats(ctx, reserveParams("alice", "bob"))
	require.NoError(t, err)

	_, err = store.ReserveSeats(ctx, booking.ReserveParams{
		TrainNumber: "T456",
		SeatNumbers: seatNumbers(5),
		TravelDate:  "2030-05-01",
		BookedBy:    "carol",
		Passengers:  []string{"carol"},
	})
	require.NoError(t, err)

	mine, err := store.ActiveTicketsByBooker(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, mine, 2)
	for _, ticket := range mine {
		assert.Equal(t, "alice", ticket.BookedBy)
	}

	// Cancel one of alice's tickets; it moves to the past/cancelled view.
	ok, err := store.CancelTicket(ctx, tickets[0].PNR)
	require.NoError(t, err)
	require.True(t, ok)

	mine, err = store.ActiveTicketsByBooker(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	past, err := store.PastOrCancelledByBooker(ctx, "alice", "2026-01-01")
	require.NoError(t, err)
	require.Len(t, past, 1)
	assert.Equal(t, tickets[0].PNR, past[0].PNR)
}

func TestPastTicketsByTravelDate(t *testing.T) {
	store := openTestDB(t, "past_by_date")
	ctx := context.Background()

	_, err := store.ReserveSeats(ctx, booking.ReserveParams{
		TrainNumber: "T123",
		SeatNumbers: seatNumbers(5),
		TravelDate:  "2026-01-10",
		BookedBy:    "alice",
		Passengers:  []string{"alice"},
	})
	require.NoError(t, err)

	past, err := store.PastOrCancelledByBooker(ctx, "alice", "2026-01-11")
	require.NoError(t, err)
	assert.Len(t, past, 1)

	past, err = store.PastOrCancelledByBooker(ctx, "alice", "2026-01-10")
	require.NoError(t, err)
	assert.Empty(t, past, "same-day travel is not in the past")
}

func TestRecordHistoryAndFindUserID(t *testing.T) {
	store := openTestDB(t, "history_users")
	ctx := context.Background()

	id, err := store.FindUserID(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, id, "unknown user resolves to nil, not an error")

	_, err = store.Bun.NewInsert().
		Model(&models.User{Username: "alice", Role: models.RolePassenger}).
		Exec(ctx)
	require.NoError(t, err)

	id, err = store.FindUserID(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, id)

	err = store.RecordHistory(ctx, models.HistoryEntry{
		UserID:  id,
		PNR:     "TKT-test",
		Action:  models.ActionBook,
		Details: "Booked seat S1 on train T123",
	})
	require.NoError(t, err)

	count, err := store.Bun.NewSelect().Model((*models.HistoryEntry)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMigrateSeedsTrainsOnce(t *testing.T) {
	store := openTestDB(t, "seed_trains")
	ctx := context.Background()

	records, err := store.TrainRecords(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "T123", records[0].TrainNumber)
	assert.Equal(t, 50, records[0].TotalSeats)

	// Running migrations again must not duplicate the seed rows.
	require.NoError(t, db.Migrate(ctx, store.Bun))
	records, err = store.TrainRecords(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestActiveSeatIndexBlocksDoubleBooking(t *testing.T) {
	store := openTestDB(t, "unique_index")
	ctx := context.Background()

	// Bypass ReserveSeats to hit the schema-level invariant directly.
	first := models.Ticket{
		PNR: "TKT-idx-1", PassengerUsername: "alice", BookedBy: "alice",
		TrainNumber: "T123", SeatNumber: "S1", TravelDate: "2030-05-01",
		Status: models.StatusActive,
	}
	_, err := store.Bun.NewInsert().Model(&first).Exec(ctx)
	require.NoError(t, err)

	dup := models.Ticket{
		PNR: "TKT-idx-2", PassengerUsername: "bob", BookedBy: "bob",
		TrainNumber: "T123", SeatNumber: "S1", TravelDate: "2030-05-01",
		Status: models.StatusActive,
	}
	_, err = store.Bun.NewInsert().Model(&dup).Exec(ctx)
	assert.Error(t, err, "second ACTIVE row for the same seat must be rejected")

	// A CANCELLED row for that seat is fine.
	cancelled := models.Ticket{
		PNR: "TKT-idx-3", PassengerUsername: "carol", BookedBy: "carol",
		TrainNumber: "T123", SeatNumber: "S1", TravelDate: "2030-05-01",
		Status: models.StatusCancelled,
	}
	_, err = store.Bun.NewInsert().Model(&cancelled).Exec(ctx)
	assert.NoError(t, err)
}
