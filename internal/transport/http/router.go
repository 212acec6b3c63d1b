package http

import (
	"net/http"
	"time"

	httpmw "github.com/stackshub/relay-service/internal/transport/http/middleware"
	"github.com/stackshub/relay-service/internal/transport/ws"

	"github.com/go-chi/chi/v5"
	middlewareChi "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func NewRouter(h *Handler, wsServer *ws.Server, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middlewareChi.RequestID)
	r.Use(middlewareChi.RealIP)
	r.Use(middlewareChi.Recoverer)

	if len(allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   allowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-Wallet-Address"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	// WS endpoint
	r.Get("/ws", wsServer.HandleWS)

	// REST требует access_token и адрес кошелька
	r.Group(func(pr chi.Router) {
		pr.Use(httpmw.AuthMiddleware)
		pr.Use(middlewareChi.Timeout(30 * time.Second))

		pr.Route("/conversations/{id}", func(cr chi.Router) {
			cr.Get("/messages", h.GetMessages)
			cr.Get("/details", h.GetDetails)
			cr.Post("/accept", h.AcceptConversation)
		})
	})

	// health
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return r
}
