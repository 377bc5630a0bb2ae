package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/syncd-app/syncd-api/internal/authz"
	"github.com/syncd-app/syncd-api/internal/repository"
	"github.com/syncd-app/syncd-api/internal/scheduler"
)

type AuthHandler struct {
	users     repository.UserRepository
	jwtSecret string
	logger    zerolog.Logger
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type profileUpdateRequest struct {
	Theme              *string `json:"theme"`
	EmailNotifications *bool   `json:"email_notifications"`
	EventReminders     *bool   `json:"event_reminders"`
	ReminderHours      *int    `json:"reminder_hours"`
	DailyAgendaTime    *string `json:"daily_agenda_time"`
}

func NewAuthHandler(users repository.UserRepository, jwtSecret string, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		users:     users,
		jwtSecret: jwtSecret,
		logger:    logger.With().Str("handler", "auth").Logger(),
	}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if req.Name == "" || req.Email == "" || req.Password == "" {
		http.Error(w, "Name, email and password are required", http.StatusBadRequest)
		return
	}

	user, err := h.users.Create(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			http.Error(w, "Email already registered", http.StatusBadRequest)
			return
		}
		h.logger.Error().Err(err).Msg("failed to create user")
		http.Error(w, "Failed to create user", http.StatusInternalServerError)
		return
	}

	token, err := h.signToken(user.ID)
	if err != nil {
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"user":  user,
		"token": token,
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	user, err := h.users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidCredentials) {
			http.Error(w, "Invalid credentials", http.StatusUnauthorized)
			return
		}
		h.logger.Error().Err(err).Msg("login failed")
		http.Error(w, "Error logging in", http.StatusInternalServerError)
		return
	}

	token, err := h.signToken(user.ID)
	if err != nil {
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user":  user,
		"token": token,
	})
}

func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}

	prefs, err := h.users.GetPreferences(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to load preferences")
		http.Error(w, "Error fetching profile", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user":        user,
		"preferences": prefs,
	})
}

// UpdateProfile merges the supplied fields onto the user's stored
// preferences; omitted fields keep their current values.
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	var req profileUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.ReminderHours != nil && *req.ReminderHours < 1 {
		http.Error(w, "Reminder hours must be a positive number", http.StatusBadRequest)
		return
	}
	if req.DailyAgendaTime != nil {
		if _, err := scheduler.NextDigestTime(time.Now(), *req.DailyAgendaTime); err != nil {
			http.Error(w, "Invalid daily agenda time", http.StatusBadRequest)
			return
		}
	}

	prefs, err := h.users.GetPreferences(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to load preferences")
		http.Error(w, "Error updating profile", http.StatusInternalServerError)
		return
	}

	if req.Theme != nil {
		prefs.Theme = *req.Theme
	}
	if req.EmailNotifications != nil {
		prefs.EmailNotifications = *req.EmailNotifications
	}
	if req.EventReminders != nil {
		prefs.EventReminders = *req.EventReminders
	}
	if req.ReminderHours != nil {
		prefs.ReminderHours = *req.ReminderHours
	}
	if req.DailyAgendaTime != nil {
		prefs.DailyAgendaTime = *req.DailyAgendaTime
	}

	updated, err := h.users.UpdatePreferences(r.Context(), userID, prefs)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to update preferences")
		http.Error(w, "Error updating profile", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"preferences": updated,
	})
}

func (h *AuthHandler) signToken(userID int64) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(24 * time.Hour).Unix(),
	})
	return token.SignedString([]byte(h.jwtSecret))
}

// userIDFromHeader validates a "Bearer <token>" Authorization header and
// returns the subject user ID.
func (h *AuthHandler) userIDFromHeader(header string) (int64, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return 0, false
	}

	token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(h.jwtSecret), nil
	})
	if err != nil || !token.Valid {
		return 0, false
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !claims.VerifyExpiresAt(time.Now().Unix(), true) {
		return 0, false
	}

	sub, ok := claims["sub"].(float64)
	if !ok || sub <= 0 {
		return 0, false
	}
	return int64(sub), true
}

// JWTMiddleware authenticates requests with a Bearer token and stores the
// user's identity on the request context.
func (h *AuthHandler) JWTMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			http.Error(w, "Authorization header required", http.StatusUnauthorized)
			return
		}

		userID, ok := h.userIDFromHeader(header)
		if !ok {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		ctx := authz.WithUser(r.Context(), userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OptionalJWTMiddleware attaches the user's identity when a valid Bearer
// token is supplied, but never rejects the request. Used on public routes
// that personalize their response for logged-in users.
func (h *AuthHandler) OptionalJWTMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if userID, ok := h.userIDFromHeader(r.Header.Get("Authorization")); ok {
			r = r.WithContext(authz.WithUser(r.Context(), userID))
		}
		next.ServeHTTP(w, r)
	})
}
