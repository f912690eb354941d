package router

import (
	"github.com/bravo68web/qadeck/internal/transport/http/handler"
)

func (r *Router) basecampRouter() {
	v1 := r.server.Group("/api/v1")
	requireAuth := r.Deps.Auth.RequireAuth()

	// Initialize handlers
	authHandler := handler.NewBasecampAuthHandler(r.Deps.BasecampAuthService, r.server.Config.Basecamp)
	cardHandler := handler.NewCardHandler(r.Deps.CardService)

	basecamp := v1.Group("/basecamp")
	{
		auth := basecamp.Group("/auth")
		{
			// Launchpad redirects the browser here; the state identifies the user
			auth.GET("/callback", authHandler.Callback)

			auth.GET("/login", requireAuth, authHandler.Login)
			auth.GET("/status", requireAuth, authHandler.Status)
			auth.POST("/logout", requireAuth, authHandler.Logout)
		}

		cards := basecamp.Group("/cards", requireAuth)
		{
			cards.POST("", cardHandler.CreateCard)
			cards.GET("/:id", cardHandler.GetCard)
			cards.DELETE("/:id", cardHandler.DeleteCard)
			cards.POST("/:id/accept", cardHandler.AcceptCard)
			cards.POST("/:id/reject", cardHandler.RejectCard)
		}

		basecamp.GET("/columns/:id/cards", requireAuth, cardHandler.ListColumnCards)
	}
}
