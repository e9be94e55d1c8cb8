package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/p-n-ai/pai-learn/internal/catalog"
	"github.com/p-n-ai/pai-learn/internal/collab"
	"github.com/p-n-ai/pai-learn/internal/learner"
	"github.com/p-n-ai/pai-learn/internal/progress"
)

type completeRequest struct {
	MaterialID string `json:"materialID"`
}

type completeResponse struct {
	Rule    string            `json:"rule"`
	Changed bool              `json:"changed"`
	View    learner.ViewState `json:"view"`
}

type takeCourseRequest struct {
	Course string `json:"course"`
	Topic  string `json:"topic"`
}

type selectRequest struct {
	Course   string `json:"course"`
	Topic    string `json:"topic"`
	SubTopic string `json:"subTopic"`
	Index    int    `json:"index"`
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*learner.Session, bool) {
	sess, err := s.learners.Session(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return sess, true
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.View())
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	var req completeRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	tr, err := sess.Complete(r.Context(), req.MaterialID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, completeResponse{
		Rule:    tr.Rule.String(),
		Changed: tr.Changed,
		View:    sess.View(),
	})
}

func (s *Server) handleTakeCourse(w http.ResponseWriter, r *http.Request) {
	var req takeCourseRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Course == "" || req.Topic == "" {
		writeError(w, http.StatusBadRequest, "course and topic are required")
		return
	}

	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	v, err := sess.TakeCourse(req.Course, req.Topic)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if !decodeBody(w, r, &req) {
		return
	}

	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	v, err := sess.Select(req.Course, req.Topic, req.SubTopic, req.Index)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	v, err := sess.Refresh(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleInternCourses(w http.ResponseWriter, r *http.Request) {
	entries, err := s.catalog.FetchCatalog(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// handleCourseWorkbook exports the learner's catalog as an XLSX workbook that
// a file catalog directory can load back.
func (s *Server) handleCourseWorkbook(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	entries, err := s.catalog.FetchCatalog(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := catalog.WriteWorkbook(&buf, catalog.Normalize(entries)); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", id+"-catalog.xlsx"))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func (s *Server) handleInternProgress(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.FetchProgress(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if rec == nil {
		rec = progress.Record{}
	}
	writeJSON(w, http.StatusOK, collab.ProgressResponse{CourseStatus: rec})
}

func (s *Server) handleUpdateProgress(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	}

	result, err := s.updateSchema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		writeError(w, http.StatusBadRequest, strings.Join(msgs, "; "))
		return
	}

	var req collab.ProgressUpdate
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if err := s.store.SaveProgress(r.Context(), req.InternID, req.Progress); err != nil {
		writeDomainError(w, r, err)
		return
	}
	// A live session keeps its unsaved progress and gains the new flags.
	s.learners.Absorb(req.InternID, req.Progress)

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
