// internal/adapters/http_server/handlers.go
package httpserver

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"review_action/internal/adapters/csvio"
	"review_action/internal/app"
	"review_action/internal/domain"
)

// maxUploadBytes bounds CSV uploads and pasted text.
const maxUploadBytes = 10 << 20

type Handlers struct {
	Ingest   *app.IngestionService
	Analysis *app.AnalysisService
	Auth     *app.AuthService
	Logins   *ClientLimiter
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.With(RateLimit(h.Logins)).Post("/v1/sessions", h.login)

	s.mux.Group(func(r chi.Router) {
		r.Use(RequireTenant(h.Auth))
		r.Delete("/v1/sessions", h.logout)
		r.Post("/v1/reviews", h.uploadCSV)
		r.Post("/v1/reviews/text", h.pasteText)
		r.Get("/v1/reviews", h.listReviews)
		r.Delete("/v1/reviews", h.deleteReviews)
		r.Get("/v1/issues", h.issues)
		r.Get("/v1/issues/export.csv", h.exportIssues)
	})
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeError maps service errors onto problem responses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		writeProblem(w, http.StatusRequestEntityTooLarge, "Payload Too Large", err.Error())
	case errors.Is(err, domain.ErrMalformedUpload):
		writeProblem(w, http.StatusBadRequest, "Malformed Upload", err.Error())
	case errors.Is(err, domain.ErrInvalidInput):
		writeProblem(w, http.StatusBadRequest, "Invalid Input", err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", "")
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", "")
	case errors.Is(err, domain.ErrTenantExists):
		writeProblem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Str("tenant", TenantFrom(r.Context())).Msg("request failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

type loginRequest struct {
	BusinessID string `json:"business_id"`
	Password   string `json:"password"`
}

func (h *Handlers) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Input", "body must be {\"business_id\",\"password\"}")
		return
	}
	sess, err := h.Auth.Login(r.Context(), req.BusinessID, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, sess)
}

func (h *Handlers) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.Auth.Logout(r.Context(), sessionToken(r)); err != nil {
		writeError(w, r, err)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", Expires: time.Unix(0, 0), MaxAge: -1})
	w.WriteHeader(http.StatusNoContent)
}

// uploadCSV accepts a multipart form with a "file" field or a raw CSV body.
func (h *Handlers) uploadCSV(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	var src io.Reader = r.Body
	if mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mt == "multipart/form-data" {
		f, _, err := r.FormFile("file")
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, r, err)
				return
			}
			writeProblem(w, http.StatusBadRequest, "Malformed Upload", "multipart field 'file' is required")
			return
		}
		defer f.Close()
		src = f
	}

	rep, err := h.Ingest.IngestCSV(r.Context(), TenantFrom(r.Context()), src)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rep)
}

type pasteRequest struct {
	Text string `json:"text"`
}

// pasteText takes {"text": "..."} or a text/plain body, one review per line.
func (h *Handlers) pasteText(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err != nil {
		writeError(w, r, err)
		return
	}
	text := string(body)
	if mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mt != "text/plain" {
		var req pasteRequest
		if err := json.Unmarshal(body, &req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid Input", "body must be {\"text\": \"...\"} or text/plain")
			return
		}
		text = req.Text
	}
	rep, err := h.Ingest.IngestText(r.Context(), TenantFrom(r.Context()), text)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rep)
}

func (h *Handlers) listReviews(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if ls := r.URL.Query().Get("limit"); ls != "" {
		l, err := strconv.Atoi(ls)
		if err != nil || l < 1 || l > app.MaxListLimit {
			writeProblem(w, http.StatusBadRequest, "Invalid limit", "limit must be an integer between 1 and 500")
			return
		}
		limit = l
	}
	out, err := h.Ingest.ListReviews(r.Context(), TenantFrom(r.Context()), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if out.Items == nil {
		out.Items = []domain.Review{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) deleteReviews(w http.ResponseWriter, r *http.Request) {
	n, err := h.Ingest.DeleteAll(r.Context(), TenantFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

func parseK(r *http.Request) (int, bool) {
	ks := r.URL.Query().Get("k")
	if ks == "" {
		return 0, true
	}
	k, err := strconv.Atoi(ks)
	if err != nil || k < 1 || k > app.MaxClusters {
		return 0, false
	}
	return k, true
}

func (h *Handlers) issues(w http.ResponseWriter, r *http.Request) {
	k, ok := parseK(r)
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid k", "k must be an integer between 1 and 12")
		return
	}
	a, err := h.Analysis.Analyze(r.Context(), TenantFrom(r.Context()), k)
	if err != nil {
		writeError(w, r, err)
		return
	}

	etag, body := calcETagAndBody(a)
	// If client already has this version, short-circuit.
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write issues body")
	}
}

func (h *Handlers) exportIssues(w http.ResponseWriter, r *http.Request) {
	k, ok := parseK(r)
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid k", "k must be an integer between 1 and 12")
		return
	}
	a, err := h.Analysis.Analyze(r.Context(), TenantFrom(r.Context()), k)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := csvio.WriteIssues(&buf, a.Clusters); err != nil {
		writeError(w, r, err)
		return
	}
	name := strings.ReplaceAll(a.TenantID, `"`, "") + "_issues.csv"
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		log.Error().Err(err).Msg("failed to write export body")
	}
}
