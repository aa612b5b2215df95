package create

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

type HoldCreator interface {
	CreateHold(ctx context.Context, req *api.HoldRequest) (*api.HoldResponse, error)
}

type Request struct {
	api.HoldRequest
}

type Response struct {
	response.Response
	Hold *api.HoldResponse `json:"hold,omitempty"`
}

func New(log *slog.Logger, creator HoldCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.holds.create.New"

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

		log.Info("Request body decoded", slog.String("staff_id", req.StaffID))

		if err := validator.New().Struct(req.HoldRequest); err != nil {
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

		hold, err := creator.CreateHold(r.Context(), &req.HoldRequest)

		if errors.Is(err, response.ErrBadRequest) {
			log.Error("bad hold request", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "invalid hold request"))
			return
		}

		if errors.Is(err, response.ErrLocked) {
			log.Error("resource is locked")
			w.WriteHeader(http.StatusLocked)
			render.JSON(w, r, response.Error(string(response.LOCKED), "resource is locked"))
			return
		}

		if errors.Is(err, response.ErrSlotNotAvailable) {
			log.Error("slot is not available")
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error(string(response.SLOT_NOT_AVAILABLE), "slot is not available"))
			return
		}

		if err != nil {
			log.Error("Failed to create hold", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to create hold"))
			return
		}

		log.Info("Hold created", slog.String("expires_at", hold.ExpiresAt))

		w.WriteHeader(http.StatusCreated)
		render.JSON(w, r, Response{
			Hold: hold,
		})
	}
}
