package routes

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/syncd-app/syncd-api/internal/handlers"
)

// NewRouter sets up the API routes
func NewRouter(
	auth *handlers.AuthHandler,
	tasks *handlers.TaskHandler,
	events *handlers.EventHandler,
	notifications *handlers.NotificationHandler,
) *mux.Router {
	router := mux.NewRouter()

	// Health check route
	router.HandleFunc("/health", handlers.HealthCheck).Methods(http.MethodGet)

	// Public auth endpoints
	router.HandleFunc("/api/auth/register", auth.Register).Methods(http.MethodPost)
	router.HandleFunc("/api/auth/login", auth.Login).Methods(http.MethodPost)

	// Public event listing and manual scrape trigger. The listing accepts
	// an optional token so logged-in users get their subscription flags.
	router.Handle("/api/events", auth.OptionalJWTMiddleware(http.HandlerFunc(events.List))).Methods(http.MethodGet)
	router.HandleFunc("/api/events/scrape", events.TriggerScrape).Methods(http.MethodPost)

	// Everything else requires a valid token
	protected := router.PathPrefix("/api").Subrouter()
	protected.Use(auth.JWTMiddleware)

	protected.HandleFunc("/auth/profile", auth.Profile).Methods(http.MethodGet)
	protected.HandleFunc("/auth/profile", auth.UpdateProfile).Methods(http.MethodPut)

	protected.HandleFunc("/tasks", tasks.List).Methods(http.MethodGet)
	protected.HandleFunc("/tasks", tasks.Create).Methods(http.MethodPost)
	protected.HandleFunc("/tasks/{taskID}", tasks.Update).Methods(http.MethodPut)
	protected.HandleFunc("/tasks/{taskID}", tasks.Delete).Methods(http.MethodDelete)

	protected.HandleFunc("/events/subscribed", events.Subscribed).Methods(http.MethodGet)
	protected.HandleFunc("/events/{eventID}/subscribe", events.Subscribe).Methods(http.MethodPost)
	protected.HandleFunc("/events/{eventID}/unsubscribe", events.Unsubscribe).Methods(http.MethodDelete)

	protected.HandleFunc("/notifications", notifications.List).Methods(http.MethodGet)

	return router
}
