package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Simplici0/watchdesk/internal/catalog"
	"github.com/Simplici0/watchdesk/internal/pricing"
	"github.com/Simplici0/watchdesk/internal/selection"
	"github.com/Simplici0/watchdesk/internal/service"
)

func (s *server) handleListParts(w http.ResponseWriter, r *http.Request) {
	parts, err := s.catalog.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if parts == nil {
		parts = []catalog.SparePart{}
	}
	writeJSON(w, http.StatusOK, parts)
}

func (s *server) handleGetPart(w http.ResponseWriter, r *http.Request) {
	p, err := s.catalog.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *server) handleCreatePart(w http.ResponseWriter, r *http.Request) {
	var in catalog.SparePart
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := s.catalog.Create(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *server) handleUpdatePart(w http.ResponseWriter, r *http.Request) {
	var in catalog.SparePart
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := s.catalog.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *server) handleDeletePart(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := s.rules.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rules == nil {
		rules = []pricing.Rule{}
	}
	writeJSON(w, http.StatusOK, rules)
}

func (s *server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var in service.RuleInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	rule, err := s.rules.Create(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rule)
}

func (s *server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	var in service.RuleInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	rule, err := s.rules.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

func (s *server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	if err := s.rules.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleGetRateCard(w http.ResponseWriter, r *http.Request) {
	card, err := s.cost.RateCard(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

func (s *server) handlePutRateCard(w http.ResponseWriter, r *http.Request) {
	var in pricing.RateCard
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	card, err := s.cost.UpdateRateCard(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

func (s *server) handleCalculateEstimate(w http.ResponseWriter, r *http.Request) {
	var sel selection.JobIssueSelection
	if err := decodeJSON(w, r, &sel); err != nil {
		writeError(w, r, err)
		return
	}
	b, err := s.cost.CalculateCost(r.Context(), sel)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}
