package router

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/miniplanner/backend/api/handler"
)

type Handlers struct {
	Auth      *apiHandler.AuthHandler
	Profile   *apiHandler.ProfileHandler
	Task      *apiHandler.TaskHandler
	Dashboard *apiHandler.DashboardHandler
	Calendar  *apiHandler.CalendarHandler
	Settings  *apiHandler.SettingsHandler
	Health    *apiHandler.HealthHandler
}

func New(handlers Handlers, authMiddleware func(fasthttp.RequestHandler) fasthttp.RequestHandler) *router.Router {
	r := router.New()

	r.GET("/health", handlers.Health.Check)

	// Auth routes
	r.POST("/api/v1/auth/signup", handlers.Auth.SignUp)
	r.POST("/api/v1/auth/signin", handlers.Auth.SignIn)
	r.POST("/api/v1/auth/provider", handlers.Auth.SignInWithProvider)
	r.POST("/api/v1/auth/signout", authMiddleware(handlers.Auth.SignOut))

	// Protected routes
	r.GET("/api/v1/profile", authMiddleware(handlers.Profile.GetProfile))

	r.GET("/api/v1/tasks", authMiddleware(handlers.Task.GetTasks))
	r.POST("/api/v1/tasks", authMiddleware(handlers.Task.CreateTask))
	r.PATCH("/api/v1/tasks/{id}/toggle", authMiddleware(handlers.Task.ToggleTask))
	r.DELETE("/api/v1/tasks/{id}", authMiddleware(handlers.Task.DeleteTask))

	r.GET("/api/v1/dashboard", authMiddleware(handlers.Dashboard.Get))
	r.GET("/api/v1/calendar", authMiddleware(handlers.Calendar.Get))

	r.GET("/api/v1/settings", authMiddleware(handlers.Settings.Get))
	r.PUT("/api/v1/settings", authMiddleware(handlers.Settings.Update))

	return r
}
