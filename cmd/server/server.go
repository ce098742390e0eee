package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/Simplici0/watchdesk/internal/service"
)

type server struct {
	auth     *authService
	taxonomy *service.TaxonomyService
	catalog  *service.CatalogService
	rules    *service.PricingRuleService
	cost     *service.CostService
	jobs     *service.JobService
	logger   *zap.Logger
}

func (s *server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(s.logger))
	r.Use(recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Post("/login", s.handleLogin)
	r.Post("/logout", s.handleLogout)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.auth.requireSession)

		r.Get("/trees/{kind}", s.handleFetchTree)
		r.Post("/trees/{kind}/nodes", s.handleCreateNode)
		r.Patch("/trees/{kind}/nodes/{id}", s.handleUpdateNode)
		r.Delete("/trees/{kind}/nodes/{id}", s.handleDeleteNode)
		r.Get("/trees/{kind}/nodes/{id}/parents", s.handlePotentialParents)

		r.Get("/spare-parts", s.handleListParts)
		r.Post("/spare-parts", s.handleCreatePart)
		r.Get("/spare-parts/{id}", s.handleGetPart)
		r.Put("/spare-parts/{id}", s.handleUpdatePart)
		r.Delete("/spare-parts/{id}", s.handleDeletePart)

		r.Get("/pricing-rules", s.handleListRules)
		r.Post("/pricing-rules", s.handleCreateRule)
		r.Put("/pricing-rules/{id}", s.handleUpdateRule)
		r.Delete("/pricing-rules/{id}", s.handleDeleteRule)

		r.Get("/rate-card", s.handleGetRateCard)
		r.Put("/rate-card", s.handlePutRateCard)
		r.Post("/estimates", s.handleCalculateEstimate)

		r.Get("/jobs", s.handleListJobs)
		r.Post("/jobs", s.handleCreateJob)
		r.Get("/jobs/{id}", s.handleGetJob)
		r.Put("/jobs/{id}", s.handleUpdateJob)
		r.Delete("/jobs/{id}", s.handleDeleteJob)
		r.Post("/jobs/{id}/accept", s.handleAcceptJob)
		r.Get("/jobs/{id}/text", s.handleJobText)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, errRouteNotFound)
	})
	return r
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	valid, err := s.auth.validateCredentials(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !valid {
		writeError(w, r, errBadCredentials)
		return
	}
	s.auth.setSessionCookie(w, req.Email)
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleLogout(w http.ResponseWriter, _ *http.Request) {
	s.auth.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}
