package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sudharshanj25/bugtracker/internal/export"
	"github.com/Sudharshanj25/bugtracker/internal/models"
	"github.com/Sudharshanj25/bugtracker/internal/service"
	"github.com/Sudharshanj25/bugtracker/internal/store"
	"github.com/Sudharshanj25/bugtracker/internal/ui"
	"github.com/Sudharshanj25/bugtracker/internal/uploads"
)

// multipartMemory is how much of a parsed form is held in memory
// before spilling to temp files.
const multipartMemory = 10 << 20

// Server provides the REST API handlers.
type Server struct {
	issues  *service.Issues
	files   *uploads.Store
	maxBody int64
}

// NewServer creates a new API server. maxBody caps request bodies in bytes.
func NewServer(issues *service.Issues, files *uploads.Store, maxBody int64) *Server {
	return &Server{
		issues:  issues,
		files:   files,
		maxBody: maxBody,
	}
}

// Router returns an http.Handler for all routes.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /{$}", ui.Handler())

	mux.HandleFunc("GET /issues", s.listIssues)
	mux.HandleFunc("POST /issues", s.createIssue)
	mux.HandleFunc("GET /issues/download", s.downloadIssues)
	mux.HandleFunc("PATCH /issues/{id}", s.updateIssue)
	mux.HandleFunc("DELETE /issues/{id}", s.deleteIssue)
	mux.HandleFunc("DELETE /issues/{id}/attachments/{filename}", s.deleteAttachment)

	mux.HandleFunc("GET /uploads/{filename}", s.serveUpload)

	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps domain errors to status codes. The API layer
// does no interpretation beyond this mapping.
func writeServiceError(w http.ResponseWriter, err error) {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Message)
	case errors.Is(err, store.ErrNotFound), errors.Is(err, uploads.ErrNotFound):
		writeError(w, http.StatusNotFound, "Issue not found")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

// openFiles converts multipart file headers into upload candidates.
// The returned closer releases the opened parts.
func openFiles(headers []*multipart.FileHeader) ([]uploads.File, func(), error) {
	var files []uploads.File
	var opened []multipart.File
	closeAll := func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}
	for _, fh := range headers {
		if fh.Filename == "" {
			continue
		}
		f, err := fh.Open()
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("open upload %s: %w", fh.Filename, err)
		}
		opened = append(opened, f)
		files = append(files, uploads.File{Name: fh.Filename, Content: f})
	}
	return files, closeAll, nil
}

func (s *Server) listIssues(w http.ResponseWriter, r *http.Request) {
	issues, err := s.issues.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if issues == nil {
		issues = []*models.Issue{}
	}
	writeJSON(w, http.StatusOK, issues)
}

func (s *Server) createIssue(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	in := service.CreateInput{
		Track:       r.FormValue("track"),
		Summary:     r.FormValue("summary"),
		Description: r.FormValue("description"),
		RaisedBy:    r.FormValue("raised_by"),
		Assignee:    r.FormValue("assignee"),
		Status:      r.FormValue("status"),
		ScenarioID:  r.FormValue("scenario_id"),
		StepNo:      r.FormValue("step_no"),
	}

	var headers []*multipart.FileHeader
	if r.MultipartForm != nil {
		headers = r.MultipartForm.File["attachments"]
	}
	files, closeFiles, err := openFiles(headers)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer closeFiles()

	issue, err := s.issues.Create(r.Context(), in, files)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, issue)
}

// patchFromForm builds a partial update from form values, treating a
// present key as a set field.
func patchFromForm(values url.Values) models.IssuePatch {
	var patch models.IssuePatch
	set := func(key string, dst **string) {
		if values.Has(key) {
			v := values.Get(key)
			*dst = &v
		}
	}
	set("track", &patch.Track)
	set("summary", &patch.Summary)
	set("description", &patch.Description)
	set("raised_by", &patch.RaisedBy)
	set("assignee", &patch.Assignee)
	set("status", &patch.Status)
	set("scenario_id", &patch.ScenarioID)
	set("step_no", &patch.StepNo)
	return patch
}

func (s *Server) updateIssue(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusNotFound, "Issue not found")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)

	var patch models.IssuePatch
	var files []uploads.File

	contentType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch {
	case contentType == "application/json":
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
	case strings.HasPrefix(contentType, "multipart/"):
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			writeError(w, http.StatusBadRequest, "invalid multipart form")
			return
		}
		patch = patchFromForm(r.MultipartForm.Value)
		var closeFiles func()
		files, closeFiles, err = openFiles(r.MultipartForm.File["attachments"])
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		defer closeFiles()
	default:
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, "invalid form")
			return
		}
		patch = patchFromForm(r.PostForm)
	}

	issue, err := s.issues.Update(r.Context(), id, patch, files)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, issue)
}

func (s *Server) deleteIssue(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusNotFound, "Issue not found")
		return
	}
	if err := s.issues.Delete(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Issue deleted"})
}

func (s *Server) deleteAttachment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusNotFound, "Issue not found")
		return
	}
	issue, err := s.issues.RemoveAttachment(r.Context(), id, r.PathValue("filename"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, issue)
}

func (s *Server) serveUpload(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("filename")
	f, err := s.files.Open(name)
	if err != nil {
		if errors.Is(err, uploads.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer func() { _ = f.Close() }()
	http.ServeContent(w, r, name, time.Time{}, f)
}

func (s *Server) downloadIssues(w http.ResponseWriter, r *http.Request) {
	issues, err := s.issues.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	data, err := export.Workbook(issues)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="issues.xlsx"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}
