package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/dkrasnow/quizwire/internal/session"
)

// State serves a one-shot view of the public projection, handy for
// monitoring and for display clients that poll before upgrading.
func State(coord *session.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reply := make(chan session.View, 1)
		coord.Inbox() <- session.GetView{Reply: reply}

		select {
		case view := <-reply:
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(view)
		case <-r.Context().Done():
			http.Error(w, "request cancelled", http.StatusRequestTimeout)
		}
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
