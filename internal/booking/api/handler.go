package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-railbooking/internal/auth"
	"ms-railbooking/internal/booking"
	"ms-railbooking/internal/catalog"
	"ms-railbooking/internal/logger"
	"ms-railbooking/internal/models"
	"ms-railbooking/internal/tickets/qr"
	"ms-railbooking/internal/utils"
)

// Handler exposes the booking engine over HTTP. Handlers stay thin: all
// seat-inventory decisions happen inside the engine.
type Handler struct {
	Engine *booking.Engine
	Cache  booking.AvailabilityCache
	QR     *qr.Generator
	Logger *logger.Logger
}

type trainView struct {
	TrainNumber string   `json:"train_number"`
	Name        string   `json:"name"`
	Route       []string `json:"route"`
	TotalSeats  int      `json:"total_seats"`
}

func toTrainView(t *catalog.Train) trainView {
	return trainView{
		TrainNumber: t.Number,
		Name:        t.Name,
		Route:       t.Route,
		TotalSeats:  len(t.Seats),
	}
}

// CreateBooking handles POST /api/v1/bookings.
func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	username := auth.Username(r.Context())

	var req models.BookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateBooking: bad request body: %v", err))
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}

	tickets, err := h.Engine.Reserve(r.Context(), booking.ReserveRequest{
		BookedBy:           username,
		TrainNumber:        req.TrainNumber,
		TravelDate:         req.TravelDate,
		SeatCount:          req.SeatCount,
		PassengerUsernames: req.PassengerUsernames,
	})
	if err != nil {
		h.writeEngineError(w, "CreateBooking", err)
		return
	}

	writeJSON(w, http.StatusCreated, utils.SuccessResponse("booking created", models.BookingResponse{
		TrainNumber: req.TrainNumber,
		TravelDate:  tickets[0].TravelDate,
		Tickets:     tickets,
	}))
}

// CancelBooking handles DELETE /api/v1/bookings/{pnr}.
func (h *Handler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	pnr := chi.URLParam(r, "pnr")

	ok, err := h.Engine.Cancel(r.Context(), pnr)
	if err != nil {
		h.writeEngineError(w, "CancelBooking", err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, utils.ErrorResponse("nothing to cancel", "pnr not found or already cancelled"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetBooking handles GET /api/v1/bookings/{pnr} from the active cache.
func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	pnr := chi.URLParam(r, "pnr")

	ticket, ok := h.Engine.FindByPNR(pnr)
	if !ok {
		writeJSON(w, http.StatusNotFound, utils.ErrorResponse("ticket not found", "no active ticket with this pnr"))
		return
	}
	writeJSON(w, http.StatusOK, utils.SuccessResponse("ticket found", ticket))
}

// ListBookings handles GET /api/v1/bookings for the calling user.
func (h *Handler) ListBookings(w http.ResponseWriter, r *http.Request) {
	username := auth.Username(r.Context())

	tickets, err := h.Engine.ActiveByPassenger(r.Context(), username)
	if err != nil {
		h.writeEngineError(w, "ListBookings", err)
		return
	}
	writeJSON(w, http.StatusOK, utils.SuccessResponse("active tickets", tickets))
}

// ListHistory handles GET /api/v1/bookings/history for the calling user.
func (h *Handler) ListHistory(w http.ResponseWriter, r *http.Request) {
	username := auth.Username(r.Context())

	tickets, err := h.Engine.PastOrCancelled(r.Context(), username)
	if err != nil {
		h.writeEngineError(w, "ListHistory", err)
		return
	}
	writeJSON(w, http.StatusOK, utils.SuccessResponse("past or cancelled tickets", tickets))
}

// SearchTrains handles GET /api/v1/trains?from=&to= and GET /api/v1/trains.
func (h *Handler) SearchTrains(w http.ResponseWriter, r *http.Request) {
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")

	var trains []*catalog.Train
	if from == "" && to == "" {
		trains = h.Engine.Catalog.GetAllTrains()
	} else {
		trains = h.Engine.Catalog.SearchTrains(from, to)
	}

	views := make([]trainView, 0, len(trains))
	for _, t := range trains {
		views = append(views, toTrainView(t))
	}
	writeJSON(w, http.StatusOK, utils.SuccessResponse("trains", views))
}

// GetAvailability handles GET /api/v1/trains/{trainNumber}/availability.
// The redis counter is consulted first; on a miss the engine's in-memory
// count is cached for the next caller.
func (h *Handler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	trainNumber := chi.URLParam(r, "trainNumber")

	if h.Cache != nil {
		if available, hit, err := h.Cache.GetAvailability(r.Context(), trainNumber); err == nil && hit {
			writeJSON(w, http.StatusOK, utils.SuccessResponse("availability (cached)", map[string]int{
				"available": available,
			}))
			return
		}
	}

	booked, available, err := h.Engine.Availability(trainNumber)
	if err != nil {
		h.writeEngineError(w, "GetAvailability", err)
		return
	}
	if h.Cache != nil {
		if err := h.Cache.SetAvailability(r.Context(), trainNumber, available); err != nil {
			h.Logger.Warn("CACHE", fmt.Sprintf("set availability for %s: %v", trainNumber, err))
		}
	}
	writeJSON(w, http.StatusOK, utils.SuccessResponse("availability", map[string]int{
		"booked":    booked,
		"available": available,
	}))
}

// TicketQR handles GET /api/v1/tickets/{pnr}/qr and returns a PNG.
func (h *Handler) TicketQR(w http.ResponseWriter, r *http.Request) {
	pnr := chi.URLParam(r, "pnr")

	ticket, ok := h.Engine.FindByPNR(pnr)
	if !ok {
		writeJSON(w, http.StatusNotFound, utils.ErrorResponse("ticket not found", "no active ticket with this pnr"))
		return
	}

	png, err := h.QR.TicketPNG(*ticket)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("TicketQR: %v", err))
		writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("could not render qr", err.Error()))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

func (h *Handler) writeEngineError(w http.ResponseWriter, op string, err error) {
	var validation *booking.ValidationError
	var insufficient *booking.InsufficientSeatsError
	var store *booking.StoreError

	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("validation failed", validation.Reason))
	case errors.As(err, &insufficient):
		writeJSON(w, http.StatusConflict, utils.ErrorResponse("not enough seats", insufficient.Error()))
	case errors.As(err, &store):
		h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
		writeJSON(w, http.StatusBadGateway, utils.ErrorResponse("store unavailable", "the booking store rejected the operation, retry later"))
	default:
		h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
		writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("internal error", err.Error()))
	}
}

func writeJSON(w http.ResponseWriter, status int, body utils.APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
