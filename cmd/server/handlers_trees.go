package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Simplici0/watchdesk/internal/taxonomy"
)

func (s *server) handleFetchTree(w http.ResponseWriter, r *http.Request) {
	kind, err := taxonomy.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	nodes, err := s.taxonomy.FetchTree(r.Context(), kind)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if nodes == nil {
		nodes = []taxonomy.NestedNode{}
	}
	writeJSON(w, http.StatusOK, nodes)
}

func (s *server) handleCreateNode(w http.ResponseWriter, r *http.Request) {
	kind, err := taxonomy.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in taxonomy.NodeInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	n, err := s.taxonomy.CreateNode(r.Context(), kind, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

func (s *server) handleUpdateNode(w http.ResponseWriter, r *http.Request) {
	kind, err := taxonomy.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	var patch taxonomy.NodePatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, r, err)
		return
	}
	n, err := s.taxonomy.UpdateNode(r.Context(), kind, chi.URLParam(r, "id"), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (s *server) handleDeleteNode(w http.ResponseWriter, r *http.Request) {
	kind, err := taxonomy.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	removed, err := s.taxonomy.DeleteNode(r.Context(), kind, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"removed": removed})
}

func (s *server) handlePotentialParents(w http.ResponseWriter, r *http.Request) {
	kind, err := taxonomy.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	nodes, err := s.taxonomy.PotentialParents(r.Context(), kind, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if nodes == nil {
		nodes = []taxonomy.Node{}
	}
	writeJSON(w, http.StatusOK, nodes)
}
