package get

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ValhallaWebApp/rebis-tattoo-sub001/api"
	"github.com/ValhallaWebApp/rebis-tattoo-sub001/pkg/response"
	"github.com/ValhallaWebApp/rebis-tattoo-sub001/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type AvailabilityGetter interface {
	GetAvailability(ctx context.Context, staffID, fromDate, toDate string, durationMin, stepMin, bufferMin int) (*api.AvailabilityResponse, error)
}

type Response struct {
	response.Response
	Availability *api.AvailabilityResponse `json:"availability,omitempty"`
}

func New(log *slog.Logger, getter AvailabilityGetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.availability.get.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		staffID := r.URL.Query().Get("staff_id")
		if staffID == "" {
			log.Error("staff_id is empty")
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "staff_id is required"))
			return
		}

		from := r.URL.Query().Get("from")
		to := r.URL.Query().Get("to")

		duration, err := strconv.Atoi(r.URL.Query().Get("duration"))
		if err != nil {
			log.Error("invalid duration")
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "duration must be an integer"))
			return
		}

		step, err := strconv.Atoi(r.URL.Query().Get("step"))
		if err != nil {
			log.Error("invalid step")
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "step must be an integer"))
			return
		}

		buffer := 0
		if bufferStr := r.URL.Query().Get("buffer"); bufferStr != "" {
			buffer, err = strconv.Atoi(bufferStr)
			if err != nil {
				log.Error("invalid buffer")
				w.WriteHeader(http.StatusBadRequest)
				render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "buffer must be an integer"))
				return
			}
		}

		availability, err := getter.GetAvailability(r.Context(), staffID, from, to, duration, step, buffer)

		if errors.Is(err, response.ErrBadRequest) {
			log.Error("bad availability query", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "invalid availability query"))
			return
		}

		if err != nil {
			log.Error("Failed to get availability", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to get availability"))
			return
		}

		log.Info("Availability computed", slog.Int("days", len(availability.Days)))

		render.JSON(w, r, Response{
			Availability: availability,
		})
	}
}
