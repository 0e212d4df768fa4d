package web

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"facerank/internal/back"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const idempotencyKeyTTL = 10 * time.Minute

func (s *Server) setupRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)

	r.Get("/health", s.health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/photos", s.createPhoto)
		r.Get("/photos/{id}", s.getPhoto)
		r.Delete("/photos/{id}", s.deletePhoto)

		r.Get("/pair", s.getPair)

		r.Post("/votes", s.castVote)
		r.Get("/votes", s.getVotes)

		r.Get("/leaderboard", s.getLeaderboard)
		r.Get("/stats", s.getStats)

		r.Get("/owners/{id}/photos", s.getOwnerPhotos)
		r.Post("/owners/{id}/ban", s.banOwner)
		r.Post("/owners/{id}/unban", s.unbanOwner)
	})

	return r
}

type Server struct {
	http *http.Server
	back *back.Back

	limiters    *voterLimiters
	idempotency *idempotencyCache
}

func NewServer(back *back.Back) *Server {
	cfg := back.Config()
	s := &Server{
		back:        back,
		limiters:    newVoterLimiters(cfg.VoteRatePerMinute),
		idempotency: newIdempotencyCache(idempotencyKeyTTL),
	}

	s.http = &http.Server{
		Addr:         cfg.HTTPAddr,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
		Handler:      s.setupRouter(),
	}

	return s
}

// Handler returns the root handler of the API.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Serve listens for requests until done is closed, then shuts the server down
// gracefully before returning.
func (s *Server) Serve(done <-chan struct{}) {
	log.Printf("info: starting HTTP server on %s", s.http.Addr)

	go func() {
		err := s.http.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			log.Println("info: HTTP server closed")
			return
		}

		log.Fatalf("webserver crashed: %s", err)
	}()

	<-done
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.http.Shutdown(ctx); err != nil {
		log.Printf("warning: unable to shutdown webserver: %s", err)
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.back.Ping(ctx); err != nil {
		log.Printf("error: health check: %s", err)
		s.response(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}

	s.response(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) response(w http.ResponseWriter, code int, data interface{}) {
	response, err := json.Marshal(data)
	if err != nil {
		log.Printf("error: unable to marshal response: %s", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	s.write(w, code, response)
}

func (s *Server) write(w http.ResponseWriter, code int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if _, err := w.Write(body); err != nil {
		log.Printf("error: unable to send response: %s", err)
	}
}

func (s *Server) error(w http.ResponseWriter, err error) {
	code, body := errorResponseOf(err)
	s.response(w, code, body)
}

// noStore keeps clients and proxies from caching a response that must
// reflect the latest votes.
func noStore(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
}
