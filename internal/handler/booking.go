package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/rental-booking/internal/middleware"
	"github.com/iliyamo/rental-booking/internal/model"
	"github.com/iliyamo/rental-booking/internal/service"
)

// DefaultPageSize is used when a list request omits ?size.
const DefaultPageSize = 10

// BookingAPI is the booking service as seen by HTTP handlers.
type BookingAPI interface {
	CreateBooking(ctx context.Context, req service.CreateRequest) (model.BookingView, error)
	ConfirmBooking(ctx context.Context, bookingID uint64, username string) (model.BookingView, error)
	DeclineBooking(ctx context.Context, bookingID uint64, username string) (model.BookingView, error)
	CancelBooking(ctx context.Context, bookingID uint64, username string) (model.BookingView, error)
	GetBooking(ctx context.Context, bookingID uint64, username string) (model.BookingView, error)
	ListBookingsForTenant(ctx context.Context, username string, page, size int) (model.Page[model.BookingView], error)
	ListBookingsForLandlord(ctx context.Context, username string, page, size int) (model.Page[model.BookingView], error)
	GetAvailability(ctx context.Context, listingID uint64) (model.Availability, error)
}

// BookingHandler exposes the booking lifecycle over HTTP.  All routes except
// availability expect JWTAuth to have run.
type BookingHandler struct {
	svc BookingAPI
}

// NewBookingHandler returns a handler backed by svc.
func NewBookingHandler(svc BookingAPI) *BookingHandler {
	if svc == nil {
		panic("nil booking service passed to NewBookingHandler")
	}
	return &BookingHandler{svc: svc}
}

type createBookingRequest struct {
	ListingID uint64 `json:"listingId"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

// Create handles POST /v1/bookings.  Dates are YYYY-MM-DD (midnight UTC) or
// RFC3339.
func (h *BookingHandler) Create(c echo.Context) error {
	var body createBookingRequest
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if body.ListingID == 0 {
		return badRequest(c, "listingId is required")
	}
	start, err := parseDate(body.StartDate)
	if err != nil {
		return badRequest(c, "invalid startDate")
	}
	end, err := parseDate(body.EndDate)
	if err != nil {
		return badRequest(c, "invalid endDate")
	}

	view, err := h.svc.CreateBooking(c.Request().Context(), service.CreateRequest{
		ListingID: body.ListingID,
		Username:  middleware.Username(c),
		StartDate: start,
		EndDate:   end,
	})
	if err != nil {
		return renderError(c, err)
	}
	return c.JSON(http.StatusCreated, view)
}

// Get handles GET /v1/bookings/:id.
func (h *BookingHandler) Get(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return badRequest(c, "invalid booking id")
	}
	view, err := h.svc.GetBooking(c.Request().Context(), id, middleware.Username(c))
	if err != nil {
		return renderError(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

// Confirm handles POST /v1/bookings/:id/confirm.
func (h *BookingHandler) Confirm(c echo.Context) error {
	return h.transition(c, h.svc.ConfirmBooking)
}

// Decline handles PATCH /v1/bookings/:id/decline.
func (h *BookingHandler) Decline(c echo.Context) error {
	return h.transition(c, h.svc.DeclineBooking)
}

// Cancel handles PATCH /v1/bookings/:id/cancel.
func (h *BookingHandler) Cancel(c echo.Context) error {
	return h.transition(c, h.svc.CancelBooking)
}

type transitionFunc func(ctx context.Context, bookingID uint64, username string) (model.BookingView, error)

func (h *BookingHandler) transition(c echo.Context, fn transitionFunc) error {
	id, err := pathID(c)
	if err != nil {
		return badRequest(c, "invalid booking id")
	}
	view, err := fn(c.Request().Context(), id, middleware.Username(c))
	if err != nil {
		return renderError(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

// ListMine handles GET /v1/bookings/my?page=&size=.
func (h *BookingHandler) ListMine(c echo.Context) error {
	return h.list(c, h.svc.ListBookingsForTenant)
}

// ListOwned handles GET /v1/bookings/owner?page=&size=.
func (h *BookingHandler) ListOwned(c echo.Context) error {
	return h.list(c, h.svc.ListBookingsForLandlord)
}

type listFunc func(ctx context.Context, username string, page, size int) (model.Page[model.BookingView], error)

func (h *BookingHandler) list(c echo.Context, fn listFunc) error {
	page, err := intQuery(c, "page", 0)
	if err != nil {
		return badRequest(c, "invalid page")
	}
	size, err := intQuery(c, "size", DefaultPageSize)
	if err != nil {
		return badRequest(c, "invalid size")
	}
	p, err := fn(c.Request().Context(), middleware.Username(c), page, size)
	if err != nil {
		return renderError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

// Availability handles GET /v1/listings/:id/availability.
func (h *BookingHandler) Availability(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return badRequest(c, "invalid listing id")
	}
	a, err := h.svc.GetAvailability(c.Request().Context(), id)
	if err != nil {
		return renderError(c, err)
	}
	return c.JSON(http.StatusOK, a)
}

func pathID(c echo.Context) (uint64, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err == nil && id == 0 {
		err = errors.New("zero id")
	}
	return id, err
}

func intQuery(c echo.Context, name string, def int) (int, error) {
	v := strings.TrimSpace(c.QueryParam(name))
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": string(service.KindInvalidRequest), "message": msg})
}

// renderError writes a domain rejection with its mapped status.  Anything
// else is an internal error and its text is not exposed.
func renderError(c echo.Context, err error) error {
	var de *service.Error
	if !errors.As(err, &de) {
		c.Logger().Errorf("booking request failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal", "message": "internal server error"})
	}
	body := echo.Map{"error": string(de.Kind), "message": de.Message}
	if de.ConflictDate != nil {
		body["conflictDate"] = de.ConflictDate.UTC().Format(time.RFC3339)
	}
	return c.JSON(statusOf(de.Kind), body)
}

func statusOf(k service.Kind) int {
	switch k {
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindUnauthorized:
		return http.StatusForbidden
	case service.KindInvalidTransition, service.KindConflict:
		return http.StatusConflict
	case service.KindInvalidRequest:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
