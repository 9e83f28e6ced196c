package booking

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ms-railbooking/internal/catalog"
	"ms-railbooking/internal/logger"
	"ms-railbooking/internal/models"
)

const dateLayout = "2006-01-02"

// DBLayer is the durable store the engine books against. Reservation
// atomicity and the per-train locking live behind ReserveSeats; the
// engine never reasons about transactions itself.
type DBLayer interface {
	ReserveSeats(ctx context.Context, params ReserveParams) ([]models.Ticket, error)
	CancelTicket(ctx context.Context, pnr string) (bool, error)
	ActiveTickets(ctx context.Context) ([]models.Ticket, error)
	ActiveTicketsByBooker(ctx context.Context, username string) ([]models.Ticket, error)
	PastOrCancelledByBooker(ctx context.Context, username, today string) ([]models.Ticket, error)
	TicketByPNR(ctx context.Context, pnr string) (*models.Ticket, error)
	RecordHistory(ctx context.Context, entry models.HistoryEntry) error
	FindUserID(ctx context.Context, username string) (*int64, error)
}

// AvailabilityCache is an advisory per-train seat counter. It is never
// consulted for booking decisions; the engine only invalidates it after
// a commit changes availability.
type AvailabilityCache interface {
	GetAvailability(ctx context.Context, trainNumber string) (int, bool, error)
	SetAvailability(ctx context.Context, trainNumber string, available int) error
	Invalidate(ctx context.Context, trainNumber string) error
}

// EventPublisher streams booking events. Publishing is best-effort and
// never fails an operation.
type EventPublisher interface {
	PublishTicketBooked(ticket models.Ticket) error
	PublishTicketCancelled(ticket models.Ticket) error
}

// ReserveParams is what the store needs to allocate seats: the full seat
// list of the train in ascending order and one passenger per seat.
type ReserveParams struct {
	TrainNumber string
	SeatNumbers []string
	TravelDate  string
	BookedBy    string
	Passengers  []string
}

// ReserveRequest is a caller's reservation. PassengerUsernames is
// optional; when present its length must equal SeatCount, and blank
// entries fall back to the booking user.
type ReserveRequest struct {
	BookedBy           string
	TrainNumber        string
	TravelDate         string
	SeatCount          int
	PassengerUsernames []string
}

// Engine is the seat-inventory consistency core. All seat-state writes
// flow through it: the store commits first, and only then are the
// in-memory seat flags and the active-ticket cache touched, so a failed
// operation can never leave memory ahead of the durable record.
type Engine struct {
	DB      DBLayer
	Cache   AvailabilityCache
	Events  EventPublisher
	Catalog *catalog.Catalog
	Logger  *logger.Logger

	mu     sync.RWMutex
	active map[string]models.Ticket

	now func() time.Time
}

// NewEngine wires the engine and rebuilds in-memory occupancy from the
// durable store (see snapshot.go). Cache, Events and Logger may be nil.
func NewEngine(ctx context.Context, db DBLayer, cat *catalog.Catalog, cache AvailabilityCache, events EventPublisher, log *logger.Logger) (*Engine, error) {
	e := &Engine{
		DB:      db,
		Cache:   cache,
		Events:  events,
		Catalog: cat,
		Logger:  log,
		active:  make(map[string]models.Ticket),
		now:     time.Now,
	}
	if err := e.loadSnapshot(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

// Reserve books seatCount seats on a train for a travel date. The store
// decides availability under its lock; on success the engine marks the
// seats occupied in memory and returns the tickets in selection order.
func (e *Engine) Reserve(ctx context.Context, req ReserveRequest) ([]models.Ticket, error) {
	if req.SeatCount < 1 {
		return nil, &ValidationError{Reason: "seat count must be at least 1"}
	}
	travelDate, err := time.Parse(dateLayout, req.TravelDate)
	if err != nil {
		return nil, &ValidationError{Reason: "invalid travel date, expected YYYY-MM-DD"}
	}
	today := e.today()
	if travelDate.Before(today) {
		return nil, &ValidationError{Reason: "travel date cannot be before today"}
	}
	if len(req.PassengerUsernames) > 0 && len(req.PassengerUsernames) != req.SeatCount {
		return nil, &ValidationError{
			Reason: fmt.Sprintf("expected %d passenger usernames, got %d", req.SeatCount, len(req.PassengerUsernames)),
		}
	}

	train, ok := e.Catalog.GetTrain(req.TrainNumber)
	if !ok {
		return nil, &ValidationError{Reason: "unknown train " + req.TrainNumber}
	}

	passengers := make([]string, req.SeatCount)
	for i := range passengers {
		passengers[i] = req.BookedBy
		if i < len(req.PassengerUsernames) && req.PassengerUsernames[i] != "" {
			passengers[i] = req.PassengerUsernames[i]
		}
	}

	tickets, err := e.DB.ReserveSeats(ctx, ReserveParams{
		TrainNumber: train.Number,
		SeatNumbers: train.SeatNumbers(),
		TravelDate:  travelDate.Format(dateLayout),
		BookedBy:    req.BookedBy,
		Passengers:  passengers,
	})
	if err != nil {
		return nil, err
	}

	// The transaction has committed; now, and only now, mirror the
	// durable state into memory.
	e.mu.Lock()
	for _, t := range tickets {
		if seat := train.Seat(t.SeatNumber); seat != nil {
			seat.Occupy()
		}
		e.active[t.PNR] = t
	}
	e.mu.Unlock()

	for _, t := range tickets {
		e.recordHistory(ctx, t.PassengerUsername, t.PNR, models.ActionBook,
			fmt.Sprintf("Booked seat %s on train %s for %s", t.SeatNumber, t.TrainNumber, t.TravelDate))
		e.publishBooked(t)
	}
	e.invalidateAvailability(ctx, train.Number)
	e.logBooking("RESERVE", tickets[0].PNR,
		fmt.Sprintf("%d seat(s) on train %s for %s", len(tickets), train.Number, req.TravelDate))

	return tickets, nil
}

// Cancel flips a ticket to CANCELLED. It reports false for unknown or
// already-cancelled PNRs; only store failures produce an error.
func (e *Engine) Cancel(ctx context.Context, pnr string) (bool, error) {
	ticket, err := e.lookupTicket(ctx, pnr)
	if err != nil {
		return false, err
	}
	if ticket == nil {
		return false, nil
	}

	ok, err := e.DB.CancelTicket(ctx, pnr)
	if err != nil {
		return false, err
	}
	if !ok {
		// The durable store wins: drop the stale cache entry.
		e.mu.Lock()
		delete(e.active, pnr)
		e.mu.Unlock()
		return false, nil
	}

	e.mu.Lock()
	if train, found := e.Catalog.GetTrain(ticket.TrainNumber); found {
		if seat := train.Seat(ticket.SeatNumber); seat != nil {
			seat.Release()
		}
	}
	delete(e.active, pnr)
	e.mu.Unlock()

	e.recordHistory(ctx, ticket.PassengerUsername, pnr, models.ActionCancel,
		fmt.Sprintf("Cancelled ticket %s (seat %s on train %s)", pnr, ticket.SeatNumber, ticket.TrainNumber))
	e.publishCancelled(*ticket)
	e.invalidateAvailability(ctx, ticket.TrainNumber)
	e.logBooking("CANCEL", pnr, "ticket cancelled")

	return true, nil
}

// FindByPNR serves reads from the in-memory active cache.
func (e *Engine) FindByPNR(pnr string) (*models.Ticket, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	t, ok := e.active[pnr]
	if !ok {
		return nil, false
	}
	copied := t
	return &copied, true
}

// ActiveByPassenger lists a user's ACTIVE tickets from the store.
func (e *Engine) ActiveByPassenger(ctx context.Context, username string) ([]models.Ticket, error) {
	return e.DB.ActiveTicketsByBooker(ctx, username)
}

// PastOrCancelled lists tickets that are behind us: travelled dates in
// the past or a status other than ACTIVE.
func (e *Engine) PastOrCancelled(ctx context.Context, username string) ([]models.Ticket, error) {
	return e.DB.PastOrCancelledByBooker(ctx, username, e.today().Format(dateLayout))
}

// Availability reports booked/available counts from the in-memory model.
// Advisory only; the locked snapshot in the store stays authoritative.
func (e *Engine) Availability(trainNumber string) (booked, available int, err error) {
	train, ok := e.Catalog.GetTrain(trainNumber)
	if !ok {
		return 0, 0, &ValidationError{Reason: "unknown train " + trainNumber}
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return train.BookedSeatCount(), train.AvailableSeatCount(), nil
}

func (e *Engine) lookupTicket(ctx context.Context, pnr string) (*models.Ticket, error) {
	if t, ok := e.FindByPNR(pnr); ok {
		return t, nil
	}
	return e.DB.TicketByPNR(ctx, pnr)
}

func (e *Engine) today() time.Time {
	now := e.now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// recordHistory is best-effort: a failed user lookup or insert is logged
// and swallowed, never rolled into the booking result.
func (e *Engine) recordHistory(ctx context.Context, username, pnr, action, details string) {
	userID, err := e.DB.FindUserID(ctx, username)
	if err != nil {
		userID = nil
	}
	entry := models.HistoryEntry{
		UserID:    userID,
		PNR:       pnr,
		Action:    action,
		Details:   details,
		CreatedAt: e.now().UTC(),
	}
	if err := e.DB.RecordHistory(ctx, entry); err != nil {
		e.logWarn("HISTORY", fmt.Sprintf("could not record %s for %s: %v", action, pnr, err))
	}
}

func (e *Engine) publishBooked(t models.Ticket) {
	if e.Events == nil {
		return
	}
	if err := e.Events.PublishTicketBooked(t); err != nil {
		e.logWarn("KAFKA", fmt.Sprintf("publish booked %s: %v", t.PNR, err))
	}
}

func (e *Engine) publishCancelled(t models.Ticket) {
	if e.Events == nil {
		return
	}
	if err := e.Events.PublishTicketCancelled(t); err != nil {
		e.logWarn("KAFKA", fmt.Sprintf("publish cancelled %s: %v", t.PNR, err))
	}
}

func (e *Engine) invalidateAvailability(ctx context.Context, trainNumber string) {
	if e.Cache == nil {
		return
	}
	if err := e.Cache.Invalidate(ctx, trainNumber); err != nil {
		e.logWarn("CACHE", fmt.Sprintf("invalidate availability for %s: %v", trainNumber, err))
	}
}

func (e *Engine) logBooking(action, pnr, message string) {
	if e.Logger != nil {
		e.Logger.LogBooking(action, pnr, message)
	}
}

func (e *Engine) logWarn(category, message string) {
	if e.Logger != nil {
		e.Logger.Warn(category, message)
	}
}
