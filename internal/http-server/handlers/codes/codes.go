package codes

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"giftbot/entity"
	"giftbot/internal/admin"
	"giftbot/lib/api/cont"
	"giftbot/lib/api/response"
	"giftbot/lib/sl"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

type Core interface {
	ListCodes(ctx context.Context) ([]admin.CodeSummary, error)
	CreateCode(ctx context.Context, draft *entity.GiftCodeDraft) (*entity.GiftCode, error)
	RemoveCode(ctx context.Context, key string) error
	PurgeCodes(ctx context.Context) ([]string, error)
	AuditCode(ctx context.Context, key string) (*admin.AuditReport, error)
	ReloadCodes(ctx context.Context) (int, error)
}

// created is the API view of a new code; the key is returned only here.
type created struct {
	Key string `json:"key"`
	*entity.GiftCode
}

func requestLog(logger *slog.Logger, r *http.Request) *slog.Logger {
	return logger.With(
		sl.Module("http.handlers.codes"),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("operator", cont.GetOperator(r.Context()).Name),
	)
}

func unavailable(log *slog.Logger, w http.ResponseWriter, r *http.Request) {
	log.Error("gift code service not available")
	render.Status(r, http.StatusServiceUnavailable)
	render.JSON(w, r, response.Error("Gift code service not available"))
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, entity.ErrInvalidCodeKey), errors.Is(err, entity.ErrInvalidGiftCode):
		return http.StatusBadRequest
	case errors.Is(err, entity.ErrCodeNotFound):
		return http.StatusNotFound
	case errors.Is(err, entity.ErrCodeLimit):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func failed(log *slog.Logger, w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error("request failed", sl.Err(err))
	} else {
		log.Debug("request rejected", sl.Err(err))
	}
	render.Status(r, status)
	render.JSON(w, r, response.Error(err.Error()))
}

func List(logger *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := requestLog(logger, r)
		if handler == nil {
			unavailable(log, w, r)
			return
		}
		list, err := handler.ListCodes(r.Context())
		if err != nil {
			failed(log, w, r, err)
			return
		}
		render.JSON(w, r, response.Ok(list))
	}
}

func Create(logger *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := requestLog(logger, r)
		if handler == nil {
			unavailable(log, w, r)
			return
		}

		var draft entity.GiftCodeDraft
		if err := render.Bind(r, &draft); err != nil {
			log.Debug("invalid draft", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error(err.Error()))
			return
		}

		code, err := handler.CreateCode(r.Context(), &draft)
		if err != nil {
			failed(log, w, r, err)
			return
		}
		log.Info("gift code created", sl.Secret("code", code.Key))
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, response.Ok(created{Key: code.Key, GiftCode: code}))
	}
}

func Remove(logger *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := requestLog(logger, r)
		if handler == nil {
			unavailable(log, w, r)
			return
		}
		key := chi.URLParam(r, "key")
		if err := handler.RemoveCode(r.Context(), key); err != nil {
			failed(log, w, r, err)
			return
		}
		render.JSON(w, r, response.Ok(nil))
	}
}

func Purge(logger *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := requestLog(logger, r)
		if handler == nil {
			unavailable(log, w, r)
			return
		}
		removed, err := handler.PurgeCodes(r.Context())
		if err != nil {
			failed(log, w, r, err)
			return
		}
		if removed == nil {
			removed = []string{}
		}
		render.JSON(w, r, response.Ok(removed))
	}
}

func Audit(logger *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := requestLog(logger, r)
		if handler == nil {
			unavailable(log, w, r)
			return
		}
		report, err := handler.AuditCode(r.Context(), chi.URLParam(r, "key"))
		if err != nil {
			failed(log, w, r, err)
			return
		}
		render.JSON(w, r, response.Ok(report))
	}
}

func Reload(logger *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := requestLog(logger, r)
		if handler == nil {
			unavailable(log, w, r)
			return
		}
		n, err := handler.ReloadCodes(r.Context())
		if err != nil {
			failed(log, w, r, err)
			return
		}
		render.JSON(w, r, response.Ok(map[string]int{"count": n}))
	}
}
