// Package stubserver is a local stand-in for the rulebook backend. It serves
// the same four endpoints with the same error bodies so the client can be
// developed and tested without the Python service or a model provider.
package stubserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	defaultTokenTTL = 30 * time.Minute
	maxBodyBytes    = 32 << 20
)

// Config describes one stub instance.
type Config struct {
	// Users maps usernames to plain-text passwords. They are hashed at
	// construction and the plain values are not retained.
	Users     map[string]string
	JWTSecret string
	TokenTTL  time.Duration
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
	Logger     *zap.Logger
	Now        func() time.Time
}

// Server is the stub backend.
type Server struct {
	app      *fiber.App
	users    map[string][]byte
	secret   []byte
	ttl      time.Duration
	log      *zap.Logger
	now      func() time.Time
	validate *validator.Validate

	mu      sync.Mutex
	session *ragSession
}

// New hashes the configured users and registers the routes.
func New(cfg Config) (*Server, error) {
	if len(cfg.Users) == 0 {
		return nil, errors.New("stubserver: at least one user is required")
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return nil, errors.New("stubserver: jwt secret is required")
	}
	cost := cfg.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	users := make(map[string][]byte, len(cfg.Users))
	for name, password := range cfg.Users {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
		if err != nil {
			return nil, fmt.Errorf("hash password for %s: %w", name, err)
		}
		users[name] = hash
	}

	s := &Server{
		users:    users,
		secret:   []byte(cfg.JWTSecret),
		ttl:      cfg.TokenTTL,
		log:      cfg.Logger,
		now:      cfg.Now,
		validate: newValidator(),
	}
	if s.ttl <= 0 {
		s.ttl = defaultTokenTTL
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	s.log = s.log.Named("stub")
	if s.now == nil {
		s.now = time.Now
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "rulebook-stub",
		BodyLimit:             maxBodyBytes,
		DisableStartupMessage: true,
		ErrorHandler:          detailErrorHandler,
	})
	s.app.Use(s.requestLogger)
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.app.Post("/token", s.handleToken)
	s.app.Get("/users/me", s.requireBearer, s.handleMe)
	s.app.Post("/load_data", s.requireBearer, s.handleLoadData)
	s.app.Post("/query_ai", s.requireBearer, s.handleQuery)
	s.app.Get("/session_state", s.requireBearer, s.handleSessionState)
}

// App exposes the underlying fiber application.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on addr until Shutdown is called.
func (s *Server) Listen(addr string) error {
	s.log.Info("listening", zap.String("addr", addr))
	return s.app.Listen(addr)
}

// Shutdown stops the listener, waiting for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// Transport returns an http.RoundTripper that serves requests in-process
// without opening a socket.
func (s *Server) Transport() http.RoundTripper {
	return appTransport{app: s.app}
}

type appTransport struct {
	app *fiber.App
}

func (t appTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// app.Test adds headers; keep the caller's request untouched.
	resp, err := t.app.Test(req.Clone(req.Context()), -1)
	if err != nil {
		return nil, err
	}
	resp.Request = req
	return resp, nil
}

// detailErrorHandler renders every error as a FastAPI-style {"detail": ...}
// body.
func detailErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := err.Error()
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		message = fe.Message
	}
	return c.Status(code).JSON(fiber.Map{"detail": message})
}

func (s *Server) requestLogger(c *fiber.Ctx) error {
	started := s.now()
	id := c.Get(fiber.HeaderXRequestID)
	if id == "" {
		id = uuid.NewString()
	}
	c.Set(fiber.HeaderXRequestID, id)

	if err := c.Next(); err != nil {
		if herr := c.App().Config().ErrorHandler(c, err); herr != nil {
			return herr
		}
	}
	status := c.Response().StatusCode()
	fields := []zap.Field{
		zap.String("request_id", id),
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Int("status", status),
		zap.Duration("duration", s.now().Sub(started)),
	}
	if status >= fiber.StatusBadRequest {
		s.log.Warn("request failed", fields...)
	} else {
		s.log.Info("request served", fields...)
	}
	return nil
}

// fieldError is one entry of a FastAPI validation detail list.
type fieldError struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

func validationFailed(c *fiber.Ctx, errs []fieldError) error {
	return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"detail": errs})
}

func missingField(field string) fieldError {
	return fieldError{Loc: []string{"body", field}, Msg: "Field required", Type: "missing"}
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"form", "json"} {
			if name, _, _ := strings.Cut(f.Tag.Get(tag), ","); name != "" && name != "-" {
				return name
			}
		}
		return f.Name
	})
	return v
}

// checkStruct validates req and converts failures into detail entries.
func (s *Server) checkStruct(req any) []fieldError {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []fieldError{{Loc: []string{"body"}, Msg: err.Error(), Type: "value_error"}}
	}
	out := make([]fieldError, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			out = append(out, missingField(fe.Field()))
			continue
		}
		out = append(out, fieldError{Loc: []string{"body", fe.Field()}, Msg: fe.Error(), Type: fe.Tag()})
	}
	return out
}
