package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"lifequest/internal/auth"
	"lifequest/internal/cloudsave"
	"lifequest/internal/game"
	"lifequest/internal/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

const maxSaveBytes = 1 << 20

type contextKey string

const userContextKey contextKey = "user"

type UserContext struct {
	UserID string
	Email  string
	Token  string
}

// Authenticator is the subset of GoTrue the API fronts.
type Authenticator interface {
	auth.Verifier
	SignUp(ctx context.Context, email, password string) (auth.Session, error)
	Login(ctx context.Context, email, password string) (auth.Session, error)
	Refresh(ctx context.Context, refreshToken string) (auth.Session, error)
}

// SaveSlots stores exported ledgers off-box. It is optional.
type SaveSlots interface {
	Put(userID, slot string, document []byte) (cloudsave.Save, error)
	Get(userID, slot string) (cloudsave.Save, error)
	List(userID string) ([]cloudsave.Save, error)
	Delete(userID, slot string) error
}

type Server struct {
	log      *slog.Logger
	auth     Authenticator
	verifier auth.Verifier
	game     *game.Service
	saves    SaveSlots
	mux      *chi.Mux
}

type Options struct {
	// Verifier checks bearer tokens; defaults to the Authenticator.
	Verifier auth.Verifier
	Saves    SaveSlots
}

func New(logger *slog.Logger, authClient Authenticator, gameSvc *game.Service, opts Options) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		log:      logger,
		auth:     authClient,
		verifier: opts.Verifier,
		game:     gameSvc,
		saves:    opts.Saves,
		mux:      chi.NewRouter(),
	}
	if s.verifier == nil {
		s.verifier = authClient
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/auth/signup", s.handleSignup)
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/refresh", s.handleRefresh)

		r.Get("/crises", s.handleCrises)
		r.Get("/tax/items", s.handleTaxItems)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Get("/games", s.handleListGames)
			r.Post("/games", s.handleCreateGame)
			r.Post("/games/import", s.handleImport)
			r.Get("/games/{id}", s.handleGame)
			r.Post("/games/{id}/commands", s.handleCommand)
			r.Post("/games/{id}/events/next", s.handleNextEvent)
			r.Post("/games/{id}/taxes", s.handleTaxes)
			r.Get("/games/{id}/insurance", s.handleInsuranceQuotes)
			r.Get("/games/{id}/log", s.handleEventLog)
			r.Get("/games/{id}/export", s.handleExport)
			r.Post("/games/{id}/import", s.handleImport)

			r.Get("/saves", s.handleListSaves)
			r.Put("/saves/{slot}", s.handlePutSave)
			r.Post("/saves/{slot}/restore", s.handleRestoreSave)
			r.Delete("/saves/{slot}", s.handleDeleteSave)

			r.Post("/sync/replay", s.handleSyncReplay)
		})
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		user, err := s.verifier.VerifyAccessToken(r.Context(), token)
		if err != nil {
			if !errors.Is(err, auth.ErrInvalidToken) {
				s.log.Warn("token verification failed", "err", err)
			}
			writeError(w, http.StatusUnauthorized, fmt.Sprintf("invalid token: %v", err))
			return
		}
		ctx := context.WithValue(r.Context(), userContextKey, UserContext{
			UserID: user.ID,
			Email:  user.Email,
			Token:  token,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userFromContext(ctx context.Context) (UserContext, error) {
	v := ctx.Value(userContextKey)
	user, ok := v.(UserContext)
	if !ok || user.UserID == "" {
		return UserContext{}, errors.New("missing auth context")
	}
	return user, nil
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	session, err := s.auth.SignUp(r.Context(), strings.TrimSpace(in.Email), strings.TrimSpace(in.Password))
	if err != nil {
		writeAuthError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	session, err := s.auth.Login(r.Context(), strings.TrimSpace(in.Email), strings.TrimSpace(in.Password))
	if err != nil {
		writeAuthError(w, http.StatusUnauthorized, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var in struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(in.RefreshToken) == "" {
		writeError(w, http.StatusBadRequest, "refresh_token is required")
		return
	}
	session, err := s.auth.Refresh(r.Context(), strings.TrimSpace(in.RefreshToken))
	if err != nil {
		writeAuthError(w, http.StatusUnauthorized, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleCrises(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"crises": s.game.Crises()})
}

func (s *Server) handleTaxItems(w http.ResponseWriter, _ *http.Request) {
	type item struct {
		Name   string  `json:"name"`
		Amount float64 `json:"amount"`
	}
	items := game.DeductibleItems()
	out := make([]item, len(items))
	for i, it := range items {
		out[i] = item{Name: it.Name, Amount: it.Amount}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out, "rate": game.TaxRate})
}

func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	user, ok := s.user(w, r)
	if !ok {
		return
	}
	games, err := s.game.ListGames(r.Context(), user.UserID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"games": games})
}

func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	user, ok := s.user(w, r)
	if !ok {
		return
	}
	var in game.Profile
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	view, err := s.game.CreateGame(r.Context(), game.CreateGameInput{
		UserID:         user.UserID,
		Profile:        in,
		IdempotencyKey: idempotencyKey(r),
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (s *Server) handleGame(w http.ResponseWriter, r *http.Request) {
	user, ok := s.user(w, r)
	if !ok {
		return
	}
	view, err := s.game.Game(r.Context(), user.UserID, chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	user, ok := s.user(w, r)
	if !ok {
		return
	}
	var in game.Intent
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(in.IdempotencyKey) == "" {
		in.IdempotencyKey = idempotencyKey(r)
	}
	view, err := s.game.Dispatch(r.Context(), game.DispatchInput{
		UserID: user.UserID,
		GameID: chi.URLParam(r, "id"),
		Intent: in,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleNextEvent(w http.ResponseWriter, r *http.Request) {
	user, ok := s.user(w, r)
	if !ok {
		return
	}
	view, err := s.game.NextEvent(r.Context(), user.UserID, chi.URLParam(r, "id"), idempotencyKey(r))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleTaxes(w http.ResponseWriter, r *http.Request) {
	user, ok := s.user(w, r)
	if !ok {
		return
	}
	var in struct {
		Deductions []string `json:"deductions"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.game.FileTaxes(r.Context(), user.UserID, chi.URLParam(r, "id"), in.Deductions, idempotencyKey(r))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleInsuranceQuotes(w http.ResponseWriter, r *http.Request) {
	user, ok := s.user(w, r)
	if !ok {
		return
	}
	quotes, err := s.game.InsuranceQuotes(r.Context(), user.UserID, chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"quotes": quotes})
}

func (s *Server) handleEventLog(w http.ResponseWriter, r *http.Request) {
	user, ok := s.user(w, r)
	if !ok {
		return
	}
	entries, err := s.game.EventLog(r.Context(), user.UserID, chi.URLParam(r, "id"), r.URL.Query().Get("tag"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	user, ok := s.user(w, r)
	if !ok {
		return
	}
	gameID := chi.URLParam(r, "id")
	doc, err := s.game.Export(r.Context(), user.UserID, gameID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="lifequest-%s.json"`, gameID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

// handleImport accepts a raw save document. Posted to a game it replaces
// that game's ledger; posted to /games/import it creates a new game.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	user, ok := s.user(w, r)
	if !ok {
		return
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, maxSaveBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(data) > maxSaveBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "save document too large")
		return
	}
	gameID := chi.URLParam(r, "id")
	view, err := s.game.Import(r.Context(), game.ImportInput{
		UserID:         user.UserID,
		GameID:         gameID,
		Data:           data,
		IdempotencyKey: idempotencyKey(r),
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	status := http.StatusOK
	if gameID == "" {
		status = http.StatusCreated
	}
	writeJSON(w, status, view)
}

func (s *Server) handleListSaves(w http.ResponseWriter, r *http.Request) {
	user, ok := s.user(w, r)
	if !ok || !s.savesEnabled(w) {
		return
	}
	saves, err := s.saves.List(user.UserID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"saves": saves})
}

func (s *Server) handlePutSave(w http.ResponseWriter, r *http.Request) {
	user, ok := s.user(w, r)
	if !ok || !s.savesEnabled(w) {
		return
	}
	var in struct {
		GameID string `json:"game_id"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	doc, err := s.game.Export(r.Context(), user.UserID, in.GameID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	save, err := s.saves.Put(user.UserID, chi.URLParam(r, "slot"), doc)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	save.Document = nil
	writeJSON(w, http.StatusOK, save)
}

func (s *Server) handleRestoreSave(w http.ResponseWriter, r *http.Request) {
	user, ok := s.user(w, r)
	if !ok || !s.savesEnabled(w) {
		return
	}
	var in struct {
		GameID string `json:"game_id"`
	}
	if err := decodeJSON(r, &in); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	save, err := s.saves.Get(user.UserID, chi.URLParam(r, "slot"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	view, err := s.game.Import(r.Context(), game.ImportInput{
		UserID:         user.UserID,
		GameID:         in.GameID,
		Data:           save.Document,
		IdempotencyKey: idempotencyKey(r),
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleDeleteSave(w http.ResponseWriter, r *http.Request) {
	user, ok := s.user(w, r)
	if !ok || !s.savesEnabled(w) {
		return
	}
	if err := s.saves.Delete(user.UserID, chi.URLParam(r, "slot")); err != nil {
		s.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSyncReplay(w http.ResponseWriter, r *http.Request) {
	user, ok := s.user(w, r)
	if !ok {
		return
	}
	var in struct {
		Commands []game.SyncCommand `json:"commands"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	results := s.game.ReplaySync(r.Context(), user.UserID, in.Commands)
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) user(w http.ResponseWriter, r *http.Request) (UserContext, bool) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return UserContext{}, false
	}
	return user, true
}

func (s *Server) savesEnabled(w http.ResponseWriter) bool {
	if s.saves == nil {
		writeError(w, http.StatusServiceUnavailable, "cloud saves are not configured")
		return false
	}
	return true
}

func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, game.ErrDuplicateIdempotency), errors.Is(err, game.ErrTxConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, game.ErrGameNotFound), errors.Is(err, cloudsave.ErrSlotNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, game.ErrUnauthorized):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, game.ErrNoGame), errors.Is(err, game.ErrInvalidPhase),
		errors.Is(err, game.ErrCrisisActive), errors.Is(err, game.ErrNoActiveCrisis),
		errors.Is(err, game.ErrNoEvent), errors.Is(err, game.ErrPolicyActive),
		errors.Is(err, game.ErrSkillAlreadyUnlocked):
		writeError(w, http.StatusConflict, err.Error())
	case game.IsDomainError(err):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.log.Error("request failed", "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeAuthError(w http.ResponseWriter, fallback int, err error) {
	var se *auth.StatusError
	if errors.As(err, &se) && se.Code >= 400 && se.Code < 500 {
		writeError(w, se.Code, se.Body)
		return
	}
	writeError(w, fallback, err.Error())
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": strings.TrimSpace(message)})
}

func idempotencyKey(r *http.Request) string {
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if key != "" {
		return key
	}
	return uuid.NewString()
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
