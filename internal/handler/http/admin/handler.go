package admin

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"orderhub/internal/repository/deadletter_repo"
)

type deadLetterView struct {
	EventID       string    `json:"event_id"`
	ConsumerGroup string    `json:"consumer_group"`
	LastError     string    `json:"last_error"`
	Attempts      int       `json:"attempts"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewRouter builds the consumer admin surface: health, metrics, and the
// dead-letter sink for operator inspection. Callers can mount further
// operator routes on the returned mux.
func NewRouter(group string, deadLetters deadletter_repo.DeadLetterRepository, logger *zap.Logger) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Get("/deadletters", func(w http.ResponseWriter, req *http.Request) {
		limit := 100
		if raw := req.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 {
				http.Error(w, "Invalid limit", http.StatusBadRequest)
				return
			}
			limit = parsed
		}

		letters, err := deadLetters.List(req.Context(), group, limit)
		if err != nil {
			logger.Error("Failed to list dead letters", zap.Error(err))
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		views := make([]deadLetterView, len(letters))
		for i, letter := range letters {
			views[i] = deadLetterView{
				EventID:       letter.EventID,
				ConsumerGroup: letter.ConsumerGroup,
				LastError:     letter.LastError,
				Attempts:      letter.Attempts,
				CreatedAt:     letter.CreatedAt,
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(views)
	})

	return r
}
