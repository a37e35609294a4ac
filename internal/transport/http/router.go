package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	middlewareChi "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	httpmw "github.com/cwrk-planet/watch-party/internal/transport/http/middleware"
)

type RouterOptions struct {
	CORSOrigins []string
	Verifier    httpmw.TokenVerifier // nil: trust X-User-ID
}

func NewRouter(h *Handler, wsHandler http.Handler, opts RouterOptions) http.Handler {
	r := chi.NewRouter()
	r.Use(middlewareChi.RequestID)
	r.Use(middlewareChi.RealIP)
	r.Use(httpmw.Tracing)
	r.Use(httpmw.Logging)
	r.Use(middlewareChi.Recoverer)

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-User-ID", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// WS endpoint; membership comes from the join_room frame
	r.Get("/ws", wsHandler.ServeHTTP)

	r.Get("/healthz", h.Health)

	r.Route("/api", func(api chi.Router) {
		api.Use(middlewareChi.Timeout(30 * time.Second))

		api.Get("/rooms", h.ListRooms)
		api.Get("/rooms/{id}", h.GetRoom)
		api.Get("/rooms/{id}/messages", h.ListMessages)
		api.Get("/sources/classify", h.ClassifySource)
		api.Get("/stats", h.Stats)

		api.Group(func(pr chi.Router) {
			pr.Use(httpmw.Auth(opts.Verifier))

			pr.Post("/rooms", h.CreateRoom)
			pr.Delete("/rooms/{id}", h.DeleteRoom)
			pr.Put("/users/me", h.UpsertProfile)
		})
	})

	return r
}
