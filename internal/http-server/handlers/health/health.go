package health

import (
	"log/slog"
	"net/http"

	"giftbot/internal/listener"
	"giftbot/lib/api/response"

	"github.com/go-chi/render"
)

type Core interface {
	ListenerStatuses() []listener.Status
	ListenersHealthy() bool
}

func Health(_ *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, response.Ok(nil))
	}
}

// Listeners reports per-channel listener state; 503 when any listener is down.
func Listeners(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if handler == nil {
			render.Status(r, http.StatusServiceUnavailable)
			render.JSON(w, r, response.Error("Listeners not available"))
			return
		}
		statuses := handler.ListenerStatuses()
		if !handler.ListenersHealthy() {
			log.Debug("listeners unhealthy")
			render.Status(r, http.StatusServiceUnavailable)
			render.JSON(w, r, response.ErrorWithData("Listener reconnecting", statuses))
			return
		}
		render.JSON(w, r, response.Ok(statuses))
	}
}
