package confirm

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ValhallaWebApp/rebis-tattoo-sub001/api"
	"github.com/ValhallaWebApp/rebis-tattoo-sub001/pkg/response"
	"github.com/ValhallaWebApp/rebis-tattoo-sub001/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type HoldConfirmer interface {
	ConfirmHold(ctx context.Context, req *api.ConfirmRequest) (*api.ConfirmResponse, error)
}

type Request struct {
	api.ConfirmRequest
}

type Response struct {
	response.Response
	Booking *api.ConfirmResponse `json:"booking,omitempty"`
}

func New(log *slog.Logger, confirmer HoldConfirmer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.bookings.confirm.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("Failed to decode request body", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "failed to decode request"))
			return
		}

		if err := validator.New().Struct(req.ConfirmRequest); err != nil {
			var validateErr validator.ValidationErrors
			if errors.As(err, &validateErr) {
				log.Error("Invalid request", sl.Err(err))
				w.WriteHeader(http.StatusBadRequest)
				render.JSON(w, r, response.ValidationError(validateErr))
				return
			}

			log.Error("Failed to validate request", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "invalid request"))
			return
		}

		booking, err := confirmer.ConfirmHold(r.Context(), &req.ConfirmRequest)

		if errors.Is(err, response.ErrHoldNotFound) {
			log.Error("hold not found")
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(string(response.HOLD_NOT_FOUND), "hold not found"))
			return
		}

		if errors.Is(err, response.ErrLocked) {
			log.Error("resource is locked")
			w.WriteHeader(http.StatusLocked)
			render.JSON(w, r, response.Error(string(response.LOCKED), "resource is locked"))
			return
		}

		if errors.Is(err, response.ErrHoldExpired) {
			log.Error("hold has expired")
			w.WriteHeader(http.StatusGone)
			render.JSON(w, r, response.Error(string(response.HOLD_EXPIRED), "hold has expired"))
			return
		}

		if errors.Is(err, response.ErrHoldMissingClient) {
			log.Error("hold has no client")
			w.WriteHeader(http.StatusUnprocessableEntity)
			render.JSON(w, r, response.Error(string(response.HOLD_NO_CLIENT), "hold has no client"))
			return
		}

		if errors.Is(err, response.ErrSlotNotAvailable) {
			log.Error("slot is not available")
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error(string(response.SLOT_NOT_AVAILABLE), "slot is not available"))
			return
		}

		if err != nil {
			log.Error("Failed to confirm hold", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to confirm hold"))
			return
		}

		log.Info("Booking confirmed", slog.String("booking_id", booking.BookingID))

		w.WriteHeader(http.StatusCreated)
		render.JSON(w, r, Response{
			Booking: booking,
		})
	}
}
