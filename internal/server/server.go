package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	chilogger "github.com/chi-middleware/logrus-logger"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"messagely/internal/common"
	"messagely/internal/handlers"
	"messagely/internal/handlers/auth"
	"messagely/internal/handlers/message"
	"messagely/internal/handlers/user"
	"messagely/internal/middleware"
	"messagely/internal/services"
	"messagely/internal/utils"
)

type Options struct {
	JWTSecret   []byte
	JWTTTL      time.Duration
	CORSOrigins []string
}

type Server struct {
	Addr     string
	DB       handlers.Pinger
	Users    *services.UserService
	Messages *services.MessageService
	Opts     Options
	Log      *logrus.Logger
}

func NewServer(addr string, db handlers.Pinger, users *services.UserService, messages *services.MessageService, opts Options, log *logrus.Logger) *Server {
	return &Server{
		Addr:     addr,
		DB:       db,
		Users:    users,
		Messages: messages,
		Opts:     opts,
		Log:      log,
	}
}

func HandlerFunc(h http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.ServeHTTP(w, r)
	}
}

// Router builds the HTTP routing tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	// middlewares
	r.Use(middleware.RequestID(s.Log))
	r.Use(chilogger.Logger("router", s.Log))
	r.Use(middleware.Recover)
	r.Use(chimw.StripSlashes)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.Opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		utils.Error(w, r, common.NotFoundError("Not Found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		utils.JSON(w, http.StatusMethodNotAllowed, utils.ErrorResponse{
			Error: utils.ErrorBody{Message: "Method Not Allowed", Status: http.StatusMethodNotAllowed},
		})
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprintln(w, "Welcome to messagely API! Server is running....")
	})
	r.Get("/health", HandlerFunc(&handlers.HealthHandler{DB: s.DB}))

	// auth routes (public)
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", HandlerFunc(&auth.RegisterHandler{
			Users:     s.Users,
			JWTSecret: s.Opts.JWTSecret,
			JWTTTL:    s.Opts.JWTTTL,
		}))
		r.Post("/login", HandlerFunc(&auth.LoginHandler{
			Users:     s.Users,
			JWTSecret: s.Opts.JWTSecret,
			JWTTTL:    s.Opts.JWTTTL,
		}))
	})

	r.Route("/users", func(r chi.Router) {
		r.Use(middleware.EnsureLoggedIn(s.Opts.JWTSecret))
		r.Get("/", HandlerFunc(&user.ListHandler{Users: s.Users}))

		r.Route("/{username}", func(r chi.Router) {
			r.Use(middleware.EnsureCorrectUser)
			r.Get("/", HandlerFunc(&user.DetailHandler{Users: s.Users}))
			r.Get("/to", HandlerFunc(&user.MessagesToHandler{Users: s.Users}))
			r.Get("/from", HandlerFunc(&user.MessagesFromHandler{Users: s.Users}))
		})
	})

	r.Route("/messages", func(r chi.Router) {
		r.Use(middleware.EnsureLoggedIn(s.Opts.JWTSecret))
		r.Post("/", HandlerFunc(&message.CreateHandler{Messages: s.Messages}))
		r.Get("/{id}", HandlerFunc(&message.GetHandler{Messages: s.Messages}))
		r.Post("/{id}/read", HandlerFunc(&message.MarkReadHandler{Messages: s.Messages}))
	})

	return r
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.Addr,
		Handler:      s.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.Log.WithField("addr", s.Addr).Info("server running")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.Log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
