package db

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"ms-railbooking/internal/booking"
	"ms-railbooking/internal/models"
	"ms-railbooking/internal/utils"
)

// DB is the durable ticket store over bun. The transaction opened by
// ReserveSeats is the only serialization point in the system: the locked
// read of a train's ACTIVE rows is the authoritative availability
// snapshot, and nothing in memory is ever trusted over it.
type DB struct {
	Bun *bun.DB
}

// ---------------- RESERVE ----------------

// ReserveSeats books len(params.Passengers) seats in one transaction.
// It returns the created tickets in seat-selection order, an
// InsufficientSeatsError when the train is too full, or a StoreError.
// A PNR collision aborts the transaction and the whole reservation is
// retried once with fresh PNRs before the error surfaces.
func (d *DB) ReserveSeats(ctx context.Context, params booking.ReserveParams) ([]models.Ticket, error) {
	tickets, err := d.reserveSeatsTx(ctx, params)
	if err != nil && isUniqueViolation(err) {
		tickets, err = d.reserveSeatsTx(ctx, params)
	}
	if err != nil {
		var insufficient *booking.InsufficientSeatsError
		if errors.As(err, &insufficient) {
			return nil, err
		}
		return nil, &booking.StoreError{Op: "reserve seats", Err: err}
	}
	return tickets, nil
}

func (d *DB) reserveSeatsTx(ctx context.Context, params booking.ReserveParams) ([]models.Ticket, error) {
	var created []models.Ticket
	err := d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		// Lock the train's ACTIVE rows. Rows of other trains stay
		// unlocked, so bookings on different trains never block each
		// other.
		var activeSeats []string
		q := tx.NewSelect().
			Column("seat_number").
			Table("tickets").
			Where("train_number = ?", params.TrainNumber).
			Where("status = ?", models.StatusActive)
		// SQLite rejects FOR UPDATE; its single writer lock already
		// serializes the transaction.
		if d.Bun.Dialect().Name() != dialect.SQLite {
			q = q.For("UPDATE")
		}
		if err := q.Scan(ctx, &activeSeats); err != nil {
			return err
		}

		taken := make(map[string]struct{}, len(activeSeats))
		for _, s := range activeSeats {
			taken[strings.ToUpper(s)] = struct{}{}
		}

		// Free seats in the caller-supplied (ascending) order; the
		// first requested seats win, which keeps selection stable.
		free := make([]string, 0, len(params.SeatNumbers))
		for _, s := range params.SeatNumbers {
			if _, ok := taken[strings.ToUpper(s)]; !ok {
				free = append(free, s)
			}
		}

		if len(free) < len(params.Passengers) {
			return &booking.InsufficientSeatsError{
				TrainNumber: params.TrainNumber,
				Requested:   len(params.Passengers),
				Available:   len(free),
			}
		}

		now := time.Now().UTC()
		tickets := make([]models.Ticket, 0, len(params.Passengers))
		for i, passenger := range params.Passengers {
			pnr, err := freshPNR(ctx, tx)
			if err != nil {
				return err
			}
			tickets = append(tickets, models.Ticket{
				PNR:               pnr,
				PassengerUsername: passenger,
				BookedBy:          params.BookedBy,
				TrainNumber:       params.TrainNumber,
				SeatNumber:        free[i],
				TravelDate:        params.TravelDate,
				Status:            models.StatusActive,
				CreatedAt:         now,
			})
		}

		if _, err := tx.NewInsert().Model(&tickets).Exec(ctx); err != nil {
			return err
		}
		created = tickets
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// freshPNR generates a PNR that does not collide with an existing row.
// The check runs under the transaction; the unique key on pnr catches
// anything that slips through.
func freshPNR(ctx context.Context, tx bun.Tx) (string, error) {
	for attempt := 0; attempt < 3; attempt++ {
		pnr := utils.GeneratePNR()
		exists, err := tx.NewSelect().
			Model((*models.Ticket)(nil)).
			Where("pnr = ?", pnr).
			Exists(ctx)
		if err != nil {
			return "", err
		}
		if !exists {
			return pnr, nil
		}
	}
	return "", errors.New("could not generate a collision-free pnr")
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate entry")
}

// ---------------- CANCEL ----------------

// CancelTicket flips an ACTIVE row to CANCELLED. The conditional update
// makes cancellation idempotent: a missing or already-cancelled PNR
// affects zero rows and reports false without an error.
func (d *DB) CancelTicket(ctx context.Context, pnr string) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("status = ?", models.StatusCancelled).
		Where("pnr = ?", pnr).
		Where("status = ?", models.StatusActive).
		Exec(ctx)
	if err != nil {
		return false, &booking.StoreError{Op: "cancel ticket", Err: err}
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, &booking.StoreError{Op: "cancel ticket", Err: err}
	}
	return affected > 0, nil
}

// ---------------- QUERIES ----------------

// ActiveTickets returns every ACTIVE row; the snapshot loader uses it to
// rebuild seat occupancy at startup.
func (d *DB) ActiveTickets(ctx context.Context) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := d.Bun.NewSelect().
		Model(&tickets).
		Where("status = ?", models.StatusActive).
		Order("train_number", "seat_number").
		Scan(ctx)
	if err != nil {
		return nil, &booking.StoreError{Op: "load active tickets", Err: err}
	}
	return tickets, nil
}

// ActiveTicketsByBooker returns the ACTIVE tickets booked by a user.
func (d *DB) ActiveTicketsByBooker(ctx context.Context, username string) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := d.Bun.NewSelect().
		Model(&tickets).
		Where("booked_by = ?", username).
		Where("status = ?", models.StatusActive).
		Order("created_at DESC", "pnr").
		Scan(ctx)
	if err != nil {
		return nil, &booking.StoreError{Op: "active tickets by booker", Err: err}
	}
	return tickets, nil
}

// PastOrCancelledByBooker returns tickets whose travel date is before
// today or whose status is no longer ACTIVE. ISO dates compare lexically,
// so plain string comparison is correct here.
func (d *DB) PastOrCancelledByBooker(ctx context.Context, username, today string) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := d.Bun.NewSelect().
		Model(&tickets).
		Where("booked_by = ?", username).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("travel_date < ?", today).
				WhereOr("status <> ?", models.StatusActive)
		}).
		Order("created_at DESC", "pnr").
		Scan(ctx)
	if err != nil {
		return nil, &booking.StoreError{Op: "past tickets by booker", Err: err}
	}
	return tickets, nil
}

// TicketByPNR fetches one row; (nil, nil) when the PNR is unknown.
func (d *DB) TicketByPNR(ctx context.Context, pnr string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := d.Bun.NewSelect().
		Model(&ticket).
		Where("pnr = ?", pnr).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &booking.StoreError{Op: "ticket by pnr", Err: err}
	}
	return &ticket, nil
}

// ---------------- HISTORY / USERS / TRAINS ----------------

// RecordHistory appends an audit row. Callers treat failures as
// non-fatal; the booking or cancellation has already committed.
func (d *DB) RecordHistory(ctx context.Context, entry models.HistoryEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := d.Bun.NewInsert().Model(&entry).Exec(ctx)
	return err
}

// FindUserID resolves a username to its users.id, (nil, nil) if absent.
func (d *DB) FindUserID(ctx context.Context, username string) (*int64, error) {
	var user models.User
	err := d.Bun.NewSelect().
		Model(&user).
		Where("username = ?", username).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user.ID, nil
}

// TrainRecords returns all durable train rows for catalog construction.
func (d *DB) TrainRecords(ctx context.Context) ([]models.TrainRecord, error) {
	var records []models.TrainRecord
	err := d.Bun.NewSelect().
		Model(&records).
		Order("train_number").
		Scan(ctx)
	if err != nil {
		return nil, &booking.StoreError{Op: "load trains", Err: err}
	}
	return records, nil
}
