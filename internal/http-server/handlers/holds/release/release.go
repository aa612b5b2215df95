package release

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ValhallaWebApp/rebis-tattoo-sub001/pkg/response"
	"github.com/ValhallaWebApp/rebis-tattoo-sub001/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

type HoldReleaser interface {
	ReleaseHold(ctx context.Context, holdToken string) error
}

type Response struct {
	response.Response
	Released bool `json:"released"`
}

func New(log *slog.Logger, releaser HoldReleaser) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.holds.release.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		token := chi.URLParam(r, "token")
		if token == "" {
			log.Error("token is empty")
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "token is required"))
			return
		}

		err := releaser.ReleaseHold(r.Context(), token)

		if errors.Is(err, response.ErrBadRequest) {
			log.Error("bad release request", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "invalid release request"))
			return
		}

		if err != nil {
			log.Error("Failed to release hold", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to release hold"))
			return
		}

		log.Info("Hold released")

		render.JSON(w, r, Response{
			Released: true,
		})
	}
}
