package handlers

import (
	"fmt"
	"log"
	"net/http"

	"github.com/senyabanana/tender-orchestrator/internal/dispatch"
	"github.com/senyabanana/tender-orchestrator/internal/utils"
)

// PingHandler обрабатывает GET запрос к /api/ping
func PingHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	if _, err := fmt.Fprint(w, "ok"); err != nil {
		log.Println(err)
	}
}

// StatsSource отдает счетчики очереди доставки.
type StatsSource interface {
	Stats() dispatch.Stats
}

// PresenceCounter отдает число поставщиков онлайн.
type PresenceCounter interface {
	Online() int
}

// StatsHandler возвращает состояние фоновой доставки уведомлений.
func StatsHandler(queue StatsSource, presence PresenceCounter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		utils.SendJSON(w, http.StatusOK, map[string]any{
			"dispatch": queue.Stats(),
			"online":   presence.Online(),
		})
	}
}
