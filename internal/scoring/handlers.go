package scoring

import (
	"net/http"

	"github.com/riddle015/riverhacks/internal/respond"
)

type Handler struct {
	scorer *Scorer
}

func NewHandler(s *Scorer) *Handler {
	return &Handler{scorer: s}
}

// ListAlerts returns current community alerts. Adapter outages yield an
// empty list.
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, map[string]interface{}{
		"alerts": h.scorer.Alerts(r.Context()),
	})
}
