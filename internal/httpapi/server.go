// Package httpapi serves the tutor over HTTP: chat, whiteboard analysis,
// student registration, conversation history and the MCP endpoint.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	tutor "github.com/ArianneAlonso/tutor-math-mcp"
	"github.com/ArianneAlonso/tutor-math-mcp/chat"
	"github.com/ArianneAlonso/tutor-math-mcp/internal/logging"
	"github.com/ArianneAlonso/tutor-math-mcp/mcp"
	"github.com/ArianneAlonso/tutor-math-mcp/persistence"
)

// MaxBodyBytes bounds request bodies. Whiteboard images arrive inline as
// base64.
const MaxBodyBytes = 20 << 20

// Server routes HTTP requests to the tutor, the store and the MCP server.
type Server struct {
	tutor    *tutor.Tutor
	store    persistence.Store
	mcp      *mcp.Server
	validate *validator.Validate
	logger   *slog.Logger

	corsOrigins []string
	timeout     time.Duration
	bcryptCost  int
}

type Option func(*Server)

// WithCORSOrigins sets the allowed origins. "*" allows any origin and is
// the default.
func WithCORSOrigins(origins ...string) Option {
	return func(s *Server) {
		s.corsOrigins = origins
	}
}

// WithRequestTimeout bounds each request. Zero disables the bound.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.timeout = d
	}
}

// WithLogger replaces the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithBcryptCost sets the password hashing cost.
func WithBcryptCost(cost int) Option {
	return func(s *Server) {
		s.bcryptCost = cost
	}
}

// New returns a server. mcpServer may be nil, in which case /mcp is not
// routed.
func New(t *tutor.Tutor, store persistence.Store, mcpServer *mcp.Server, opts ...Option) *Server {
	s := &Server{
		tutor:       t,
		store:       store,
		mcp:         mcpServer,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		logger:      logging.Logger().With("component", "http"),
		corsOrigins: []string{"*"},
		bcryptCost:  bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed handler with CORS, timeout, logging and panic
// recovery applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /calculate", s.handleCalculate)
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("POST /register", s.handleRegister)
	mux.HandleFunc("GET /users/{id}", s.handleGetUser)
	mux.HandleFunc("GET /users/{id}/conversations", s.handleListConversations)
	mux.HandleFunc("GET /conversations/{id}", s.handleGetConversation)
	mux.HandleFunc("DELETE /conversations/{id}", s.handleDeleteConversation)
	if s.mcp != nil {
		mux.HandleFunc("POST /mcp", s.handleMCP)
	}

	var h http.Handler = mux
	h = withTimeout(h, s.timeout)
	h = withRecover(h, s.logger)
	h = withCORS(h, s.corsOrigins)
	h = withLogging(h, s.logger)
	return h
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Servidor activo - Math Draw AI"})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

type calculateRequest struct {
	Image          string         `json:"image" validate:"required"`
	DictOfVars     map[string]any `json:"dict_of_vars"`
	ConversationID string         `json:"conversation_id"`
}

type calculateResponse struct {
	Status string             `json:"status"`
	Data   []tutor.Expression `json:"data"`
}

func (s *Server) handleCalculate(w http.ResponseWriter, r *http.Request) {
	var req calculateRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	data, err := s.tutor.Calculate(r.Context(), tutor.CalculateRequest{
		ImageBase64:    req.Image,
		Vars:           req.DictOfVars,
		ConversationID: req.ConversationID,
	})
	if err != nil {
		s.writeError(w, r, errors.Wrap(err, "Error procesando la imagen"))
		return
	}
	if data == nil {
		data = []tutor.Expression{}
	}
	writeJSON(w, http.StatusOK, calculateResponse{Status: "success", Data: data})
}

type chatRequest struct {
	Message        string `json:"message" validate:"max=10000"`
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	ImageBase64    string `json:"image_base64"`
}

type chatResponse struct {
	Status         string `json:"status"`
	Response       string `json:"response"`
	ConversationID string `json:"conversation_id"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	resp, err := s.tutor.Chat(r.Context(), tutor.ChatRequest{
		Message:        req.Message,
		ConversationID: req.ConversationID,
		UserID:         req.UserID,
		ImageBase64:    req.ImageBase64,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{
		Status:         "success",
		Response:       resp.Response,
		ConversationID: resp.ConversationID,
	})
}

type registerRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// UserRead is the public view of a user.
type UserRead struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func userRead(u persistence.User) UserRead {
	return UserRead{ID: u.ID, Name: u.Name, Email: u.Email}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		s.writeError(w, r, errors.Wrap(err, "hash password"))
		return
	}
	user, err := s.store.CreateUser(r.Context(), persistence.User{
		Name:           req.Name,
		Email:          req.Email,
		HashedPassword: string(hashed),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("user registered", "user_id", user.ID)
	writeJSON(w, http.StatusCreated, userRead(user))
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.store.GetUser(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userRead(user))
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.store.GetUser(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	convs, err := s.store.ListConversations(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if convs == nil {
		convs = []persistence.Conversation{}
	}
	writeJSON(w, http.StatusOK, convs)
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := s.store.GetConversation(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteConversation(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleMCP answers one JSON-RPC message. Notifications get 202 and no body.
func (s *Server) handleMCP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		s.writeError(w, r, errors.Mark(errors.Wrap(err, "read body"), chat.ErrInvalidInput))
		return
	}
	resp := s.mcp.Handle(r.Context(), bytes.TrimSpace(body))
	if resp == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// decode reads a JSON body into v and validates it. Failures are marked
// chat.ErrInvalidInput.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return errors.Mark(errors.Wrap(err, "invalid JSON body"), chat.ErrInvalidInput)
	}
	if dec.More() {
		return errors.Mark(errors.New("invalid JSON body: trailing data"), chat.ErrInvalidInput)
	}
	if err := s.validate.Struct(v); err != nil {
		return errors.Mark(errors.Wrap(err, "invalid request"), chat.ErrInvalidInput)
	}
	return nil
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// StatusOf maps an error to its HTTP status.
func StatusOf(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, persistence.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, persistence.ErrDuplicateEmail):
		return http.StatusConflict
	case errors.Is(err, chat.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusOf(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	} else {
		s.logger.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, errorResponse{Detail: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
