package router

import (
	"github.com/bravo68web/qadeck/internal/transport/http/handler"
)

func (r *Router) noteRouter() {
	h := handler.NewNoteHandler(r.Deps.NoteService)

	notes := r.server.Group("/api/v1/notes", r.Deps.Auth.RequireAuth())
	{
		notes.POST("", h.SaveNote)
		notes.GET("", h.ListNotes)
		notes.GET("/:id/cards", h.ListNoteCards)
		notes.DELETE("/:id/cards/:cardId", h.RemoveCard)
	}
}
