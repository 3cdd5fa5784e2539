package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type RouterConfig struct {
	Meetings   *MeetingHandler
	Documents  *DocumentHandler
	Attendees  *AttendeeHandler
	Users      *UserHandler
	Locations  *LocationHandler
	Logger     *zap.Logger
	Middleware []func(http.Handler) http.Handler
}

// NewRouter mounts every configured handler under /api. Handlers left nil
// are not routed.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	for _, mw := range cfg.Middleware {
		if mw != nil {
			r.Use(mw)
		}
	}

	responder := newResponder(cfg.Logger)
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		responder.writeError(req.Context(), w, http.StatusNotFound, codeNotFound, nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		responder.writeError(req.Context(), w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
	})

	r.Route("/api", func(api chi.Router) {
		api.Route("/meetings", func(mr chi.Router) {
			if m := cfg.Meetings; m != nil {
				mr.Get("/", m.List)
				mr.Post("/", m.Create)
				mr.Get("/{id}", m.Get)
				mr.Put("/{id}", m.Update)
				mr.Delete("/{id}", m.Delete)
			}
			if d := cfg.Documents; d != nil {
				mr.Get("/{id}/documents", d.List)
				mr.Post("/{id}/documents", d.Upload)
				mr.Get("/{id}/documents/bundle", d.Bundle)
			}
			if a := cfg.Attendees; a != nil {
				mr.Get("/{id}/attendees", a.OfMeeting)
				mr.Get("/{id}/attendees/count", a.CountForMeeting)
			}
		})

		if d := cfg.Documents; d != nil {
			api.Get("/documents/{id}/download", d.Download)
			api.Delete("/documents/{id}", d.Delete)
		}

		if a := cfg.Attendees; a != nil {
			api.Route("/attendees", func(ar chi.Router) {
				ar.Get("/", a.List)
				ar.Post("/", a.Register)
				ar.Delete("/", a.RemoveByPair)
				ar.Get("/exists", a.Exists)
				ar.Get("/{id}", a.Get)
				ar.Put("/{id}", a.Update)
				ar.Delete("/{id}", a.Remove)
			})
		}

		api.Route("/users", func(ur chi.Router) {
			if u := cfg.Users; u != nil {
				ur.Get("/", u.List)
				ur.Post("/", u.Create)
				ur.Get("/{id}", u.Get)
				ur.Put("/{id}", u.Update)
				ur.Delete("/{id}", u.Delete)
			}
			if a := cfg.Attendees; a != nil {
				ur.Get("/{id}/meetings", a.MeetingsOfUser)
			}
		})

		if l := cfg.Locations; l != nil {
			api.Route("/locations", func(lr chi.Router) {
				lr.Get("/", l.List)
				lr.Post("/", l.Create)
				lr.Get("/{id}", l.Get)
				lr.Put("/{id}", l.Update)
				lr.Delete("/{id}", l.Delete)
			})
		}
	})

	return r
}
