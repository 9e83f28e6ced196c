package db

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"ms-railbooking/internal/models"
)

// Migrate creates the schema with bun DDL and seeds the train catalog.
// The Postgres deployment can run versioned SQL migrations instead (see
// internal/database/migrations); tests and local setups use this path.
func Migrate(ctx context.Context, db *bun.DB) error {
	tables := []interface{}{
		(*models.User)(nil),
		(*models.TrainRecord)(nil),
		(*models.Ticket)(nil),
		(*models.HistoryEntry)(nil),
	}
	for _, model := range tables {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}

	// Partial unique index backing the central invariant: at most one
	// ACTIVE ticket per (train, seat). Works on Postgres and SQLite.
	if _, err := db.ExecContext(ctx,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_tickets_active_seat
		 ON tickets (train_number, seat_number) WHERE status = 'ACTIVE'`); err != nil {
		return fmt.Errorf("create active-seat index: %w", err)
	}

	return seedTrains(ctx, db)
}

func seedTrains(ctx context.Context, db *bun.DB) error {
	count, err := db.NewSelect().Model((*models.TrainRecord)(nil)).Count(ctx)
	if err != nil {
		return fmt.Errorf("count trains: %w", err)
	}
	if count > 0 {
		return nil
	}

	trains := []models.TrainRecord{
		{TrainNumber: "T123", Name: "City Express", Route: "Mumbai,Pune,Delhi", TotalSeats: 50},
		{TrainNumber: "T456", Name: "Deccan Queen", Route: "Mumbai,Thane,Pune", TotalSeats: 80},
		{TrainNumber: "T789", Name: "Capital Mail", Route: "Delhi,Jaipur,Ahmedabad", TotalSeats: 60},
	}
	if _, err := db.NewInsert().Model(&trains).Exec(ctx); err != nil {
		return fmt.Errorf("seed trains: %w", err)
	}
	return nil
}
