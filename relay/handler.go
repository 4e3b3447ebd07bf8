package relay

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type healthController struct{}

func (c healthController) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintf(w, "Healthy\n")
}

// NewRouter builds the relay's HTTP surface.
func NewRouter(m *Manager, origin string, log *zap.SugaredLogger) http.Handler {
	router := mux.NewRouter()

	router.Handle("/health", healthController{})
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	router.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("room")
		if name == "" {
			name = "office"
		}
		room, ok := m.Room(name)
		if !ok {
			http.Error(w, "no such room", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"room":    name,
			"players": room.PlayerCount(),
			"metrics": room.Metrics().Snapshot(),
		})
	})

	router.HandleFunc("/rooms/{room:[\\w-]+}/ws", func(w http.ResponseWriter, r *http.Request) {
		name := mux.Vars(r)["room"]

		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warnw("upgrade failed", "room", name, "err", err)
			return
		}

		room := m.GetOrCreateRoom(name)
		c := newConn(ws)
		go c.writePump()
		c.readPump(room, r.URL.Query().Get("resume"))
	})

	return setCors(router, origin)
}

func setCors(h http.Handler, origin string) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		h.ServeHTTP(w, r)
	}

	return http.HandlerFunc(fn)
}
