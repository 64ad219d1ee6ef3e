package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/username/portafolio/backend/src/utils"
)

// NewRouter mounts the portfolio API behind the given middlewares, outermost first.
func NewRouter(upload *UploadHandler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middlewares...)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		utils.SendJSON(w, map[string]string{"message": "Portafolio backend is running"}, http.StatusOK)
	})

	r.Route("/api/portfolio", func(r chi.Router) {
		r.Post("/process-file", upload.HandleProcessFile)
		r.Get("/data-points/{id}", upload.HandleGetDataPoint)
		r.Get("/brokers", upload.HandleGetBrokers)
	})
	return r
}
