package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/Aman-CERP/docqa/internal/auth"
	docerrors "github.com/Aman-CERP/docqa/internal/errors"
	"github.com/Aman-CERP/docqa/internal/scanner"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

type askRequest struct {
	Query string `json:"query"`
}

type askResponse struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
}

type indexResponse struct {
	Status       string   `json:"status"`
	IndexedFiles []string `json:"indexed_files"`
}

type healthResponse struct {
	Status     string `json:"status"`
	Generation string `json:"generation"`
	Chunks     int    `json:"chunks"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, r, docerrors.ValidationError("request body must be {\"query\": string}", err))
		return
	}

	ans, err := s.svc.Answer(r.Context(), auth.FromContext(r.Context()), req.Query)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sources := ans.Sources
	if sources == nil {
		sources = []string{}
	}
	writeJSON(w, http.StatusOK, askResponse{Answer: ans.Answer, Sources: sources})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.Rebuild(r.Context(), auth.FromContext(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	files := res.IndexedFiles
	if files == nil {
		files = []string{}
	}
	writeJSON(w, http.StatusOK, indexResponse{Status: "success", IndexedFiles: files})
}

func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	files := s.svc.Sources(r.Context(), auth.FromContext(r.Context()))
	if files == nil {
		files = []scanner.FileRecord{}
	}
	writeJSON(w, http.StatusOK, files)
}

func (s *Server) handleAuth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, auth.Identity{User: auth.MockUser})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	st := s.svc.Status()
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Generation: st.Generation, Chunks: st.Chunks})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
