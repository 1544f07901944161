package server

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"essay_reader/auth"
	"essay_reader/essay"
	"essay_reader/persistence"
	"essay_reader/render"
)

const maxEssayBody = 1 << 20

// essayBody is the payload of save and match requests.
type essayBody struct {
	Subject      string             `json:"subject"`
	ReadingLevel essay.ReadingLevel `json:"reading_level"`
	Content      string             `json:"content"`
}

func (b essayBody) key() essay.Key {
	return essay.Key{Subject: b.Subject, ReadingLevel: b.ReadingLevel, Content: b.Content}
}

type listResp struct {
	Essays []persistence.SavedEssayRecord `json:"essays"`
}

type idResp struct {
	ID string `json:"id"`
}

func (s *Server) handleListSaved(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserFromContext(r.Context())
	records, err := s.store.ListSaved(r.Context(), userID)
	s.metrics.ObserveStore("list", err)
	if err != nil {
		s.respondStoreError(w, "list", err)
		return
	}
	respondJSON(w, http.StatusOK, listResp{Essays: records})
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeEssay(w, r)
	if !ok {
		return
	}
	userID, _ := auth.UserFromContext(r.Context())
	id, err := s.store.Save(r.Context(), userID, body.key())
	s.metrics.ObserveStore("save", err)
	if err != nil {
		s.respondStoreError(w, "save", err)
		return
	}
	respondJSON(w, http.StatusCreated, idResp{ID: id})
}

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeEssay(w, r)
	if !ok {
		return
	}
	userID, _ := auth.UserFromContext(r.Context())
	id, err := s.store.FindDuplicate(r.Context(), userID, body.key())
	s.metrics.ObserveStore("match", err)
	if err != nil {
		s.respondStoreError(w, "match", err)
		return
	}
	respondJSON(w, http.StatusOK, idResp{ID: id})
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserFromContext(r.Context())
	err := s.store.Remove(r.Context(), mux.Vars(r)["id"], userID)
	s.metrics.ObserveStore("remove", err)
	if err != nil {
		s.respondStoreError(w, "remove", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRenderSaved renders one of the caller's saved essays as HTML.
// ?inline=1 selects the flattened variant for hosts without list/heading styles.
func (s *Server) handleRenderSaved(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserFromContext(r.Context())
	id := mux.Vars(r)["id"]
	records, err := s.store.ListSaved(r.Context(), userID)
	s.metrics.ObserveStore("list", err)
	if err != nil {
		s.respondStoreError(w, "render", err)
		return
	}
	var content string
	found := false
	for _, rec := range records {
		if rec.ID == id {
			content, found = rec.Content, true
			break
		}
	}
	if !found {
		respondError(w, http.StatusNotFound, "Saved essay not found", "")
		return
	}

	renderFn := render.HTML
	if r.URL.Query().Get("inline") == "1" {
		renderFn = render.Inline
	}
	html, err := renderFn(content)
	if err != nil {
		s.logger.Error().Err(err).Str("id", id).Msg("render saved essay")
		respondError(w, http.StatusInternalServerError, "Could not render the essay", "")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(html))
}

func decodeEssay(w http.ResponseWriter, r *http.Request) (essayBody, bool) {
	var body essayBody
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEssayBody)).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", codeInvalidRequest)
		return essayBody{}, false
	}
	return body, true
}

// respondStoreError maps persistence kinds to statuses the remote gateway maps back.
func (s *Server) respondStoreError(w http.ResponseWriter, op string, err error) {
	status := http.StatusUnprocessableEntity
	switch {
	case persistence.IsKind(err, persistence.Unauthenticated):
		status = http.StatusUnauthorized
	case persistence.IsKind(err, persistence.Transport):
		status = http.StatusServiceUnavailable
	}
	s.logger.Warn().Err(err).Str("op", op).Int("status", status).Msg("saved essay operation failed")
	respondError(w, status, err.Error(), "")
}
