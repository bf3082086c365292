package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"coachcatalog/api/internal/catalog"
	"coachcatalog/api/internal/export"
	"coachcatalog/api/internal/media"
	"coachcatalog/api/internal/rbac"
	"coachcatalog/api/internal/util"
)

// maxUploadBody bounds a catalog upload request, multipart overhead included.
const maxUploadBody = 12 << 20

type HTTPServer struct {
	service    *Service
	corsOrigin string
	logger     *slog.Logger
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin, logger: service.logger}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

// forbid writes a 403 Forbidden response and logs the denial
func (s *HTTPServer) forbid(w http.ResponseWriter, r *http.Request, session Session, action rbac.Action) {
	s.logger.Info("forbidden", "coach_id", session.CoachID, "role", string(session.Role),
		"action", string(action), "path", r.URL.Path)
	writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
}

func (s *HTTPServer) allow(w http.ResponseWriter, r *http.Request, session Session, action rbac.Action) bool {
	if rbac.Can(session.Role, action) {
		return true
	}
	s.forbid(w, r, session, action)
	return false
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		ready, checks := s.service.Ready(ctx)
		status, statusCode := "ready", http.StatusOK
		if !ready {
			status, statusCode = "not_ready", http.StatusServiceUnavailable
		}
		writeJSON(w, statusCode, map[string]any{
			"ok":     ready,
			"status": status,
			"checks": checks,
		})
		return
	}

	session, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/session" {
		writeJSON(w, http.StatusOK, map[string]any{
			"authenticated": true,
			"coachId":       session.CoachID,
			"name":          session.Name,
			"role":          session.Role,
			"plan":          session.Plan,
			"limit":         session.Limit,
		})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/catalog/template" {
		s.handleTemplate(w, r)
		return
	}

	if r.URL.Path == "/api/videos" && r.Method == http.MethodPost {
		if !s.allow(w, r, session, rbac.ActionEdit) {
			return
		}
		s.handleVideoUpload(w, r, session)
		return
	}

	if r.URL.Path == "/api/videos/resolve" && r.Method == http.MethodGet {
		sel, err := media.Resolve(r.URL.Query().Get("url"))
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sel)
		return
	}

	parts := splitPath(r.URL.Path)
	// api/programs/{programID}/catalog/{category}/...
	if len(parts) >= 5 && parts[0] == "api" && parts[1] == "programs" && parts[3] == "catalog" {
		category, err := catalog.ParseCategory(parts[4])
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_CATEGORY", "Categoría desconocida.", nil)
			return
		}
		s.handleCatalog(w, r, session, parts[2], category, parts[5:])
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleCatalog(w http.ResponseWriter, r *http.Request, session Session, programID string, category catalog.Category, rest []string) {
	if !s.allow(w, r, session, rbac.ActionRead) {
		return
	}
	ws, err := s.service.Workspace(r.Context(), session, programID, category)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	ctx := r.Context()

	switch {
	case len(rest) == 0 && r.Method == http.MethodGet:
		items := ws.Snapshot()
		window := catalog.Paginate(items, queryInt(r, "page", 1), queryInt(r, "pageSize", catalog.DefaultPageSize))
		writeJSON(w, http.StatusOK, map[string]any{
			"window":     window,
			"intent":     ws.Intent().String(),
			"limit":      ws.Limit(),
			"batches":    ws.Batches(),
			"duplicates": catalog.FindDuplicates(items),
		})

	case len(rest) == 1 && rest[0] == "items" && r.Method == http.MethodGet:
		q := r.URL.Query()
		if text := strings.TrimSpace(q.Get("q")); text != "" {
			writeJSON(w, http.StatusOK, s.service.Search(ws, text, q.Get("active") == "true",
				queryInt(r, "limit", 20), queryInt(r, "offset", 0)))
			return
		}
		writeJSON(w, http.StatusOK, catalog.Paginate(ws.Snapshot(), queryInt(r, "page", 1), queryInt(r, "pageSize", catalog.DefaultPageSize)))

	case len(rest) == 1 && rest[0] == "items" && r.Method == http.MethodPost:
		if !s.allow(w, r, session, rbac.ActionEdit) {
			return
		}
		var form catalog.Form
		if err := decodeBody(r, &form); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		item, err := ws.Create(ctx, form)
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, item)

	case len(rest) == 2 && rest[0] == "items" && r.Method == http.MethodGet:
		item, ok := findItem(ws.Snapshot(), rest[1])
		if !ok {
			s.writeMappedError(w, catalog.ErrNotFound)
			return
		}
		writeJSON(w, http.StatusOK, item)

	case len(rest) == 2 && rest[0] == "items" && r.Method == http.MethodPut:
		if !s.allow(w, r, session, rbac.ActionEdit) {
			return
		}
		var form catalog.Form
		if err := decodeBody(r, &form); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		item, err := ws.Edit(ctx, rest[1], form)
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, item)

	case len(rest) == 3 && rest[0] == "items" && rest[2] == "form" && r.Method == http.MethodGet:
		form, err := ws.Form(rest[1])
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, form)

	case len(rest) == 3 && rest[0] == "items" && rest[2] == "video" && r.Method == http.MethodPut:
		if !s.allow(w, r, session, rbac.ActionEdit) {
			return
		}
		var sel catalog.MediaSelection
		if err := decodeBody(r, &sel); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if sel.Provider == "" && sel.ProviderID == "" {
			resolved, err := media.Resolve(sel.URL)
			if err != nil {
				s.writeMappedError(w, err)
				return
			}
			resolved.FileName = firstNonEmpty(sel.FileName, resolved.FileName)
			sel = resolved
		}
		item, err := ws.AttachVideo(ctx, rest[1], sel)
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, item)

	case len(rest) == 3 && rest[0] == "items" && rest[2] == "video" && r.Method == http.MethodDelete:
		if !s.allow(w, r, session, rbac.ActionEdit) {
			return
		}
		item, err := ws.DetachVideo(ctx, rest[1])
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, item)

	case len(rest) == 3 && rest[0] == "items" && rest[2] == "usage" && r.Method == http.MethodGet:
		item, ok := findItem(ws.Snapshot(), rest[1])
		if !ok {
			s.writeMappedError(w, catalog.ErrNotFound)
			return
		}
		programs, fetched := ws.Usage(item.PersistedID)
		if programs == nil {
			programs = []string{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"identity": item.Identity, "fetched": fetched, "programs": programs})

	case len(rest) == 1 && rest[0] == "activation" && r.Method == http.MethodPost:
		if !s.allow(w, r, session, rbac.ActionPublish) {
			return
		}
		var body struct {
			Selector
			Active bool `json:"active"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		report, err := ws.SetActive(ctx, body.Selector.Resolve(ws.Snapshot()), body.Active)
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, report)

	case len(rest) == 1 && rest[0] == "delete" && r.Method == http.MethodPost:
		if !s.allow(w, r, session, rbac.ActionDelete) {
			return
		}
		var sel Selector
		if err := decodeBody(r, &sel); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		deleted, err := s.service.Delete(ctx, ws, sel.Resolve(ws.Snapshot()))
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"deleted": deleted})

	case len(rest) == 1 && rest[0] == "uploads" && r.Method == http.MethodPost:
		if !s.allow(w, r, session, rbac.ActionEdit) {
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)
		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_UPLOAD", "Adjunta un archivo en el campo \"file\".", nil)
			return
		}
		defer file.Close()
		outcome, err := ws.Upload(ctx, header.Filename, file)
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, outcome)

	case len(rest) == 1 && rest[0] == "batches" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"batches": ws.Batches()})

	case len(rest) == 2 && rest[0] == "batches" && r.Method == http.MethodDelete:
		if !s.allow(w, r, session, rbac.ActionDelete) {
			return
		}
		removed, err := s.service.RemoveBatch(ctx, ws, rest[1])
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"removed": removed})

	case len(rest) == 1 && rest[0] == "submit" && r.Method == http.MethodPost:
		if !s.allow(w, r, session, rbac.ActionPublish) {
			return
		}
		report, err := s.service.Submit(ctx, ws)
		if err != nil {
			status, code, message, _ := mapError(err)
			writeError(w, status, code, message, report)
			return
		}
		writeJSON(w, http.StatusOK, report)

	case len(rest) == 1 && rest[0] == "reload" && r.Method == http.MethodPost:
		outcome, items, err := ws.Reload(ctx)
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"outcome": outcome, "items": items})

	case len(rest) == 1 && rest[0] == "usage" && r.Method == http.MethodPost:
		writeJSON(w, http.StatusOK, ws.RefreshUsage(ctx, s.service.cfg.UsageChunkSize))

	case len(rest) == 1 && rest[0] == "draft" && r.Method == http.MethodDelete:
		if !s.allow(w, r, session, rbac.ActionEdit) {
			return
		}
		if err := s.service.ResetDraft(ctx, ws); err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleTemplate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	category, err := catalog.ParseCategory(q.Get("category"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_CATEGORY", "Categoría desconocida.", nil)
		return
	}
	format, err := export.ParseFormat(q.Get("format"))
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	res, err := s.service.Template(category, format)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	w.Header().Set("Content-Type", res.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Data)
}

func (s *HTTPServer) handleVideoUpload(w http.ResponseWriter, r *http.Request, session Session) {
	r.Body = http.MaxBytesReader(w, r.Body, media.MaxUploadBytes+(1<<20))
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_UPLOAD", "Adjunta un video en el campo \"file\".", nil)
		return
	}
	defer file.Close()
	sel, err := s.service.UploadVideo(r.Context(), session, header.Filename, file, header.Size, header.Header.Get("Content-Type"))
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sel)
}

func (s *HTTPServer) writeMappedError(w http.ResponseWriter, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "code", code, "error", err)
	}
	writeError(w, status, code, message, details)
}

func (s *HTTPServer) requireSession(w http.ResponseWriter, r *http.Request) (Session, bool) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return Session{}, false
	}
	session, err := s.service.SessionFromToken(token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return Session{}, false
	}
	return session, true
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = util.NewID("req")
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		s.logger.Info("request",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", writer.status,
			"duration_ms", time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func findItem(items []catalog.Item, identity string) (catalog.Item, bool) {
	for _, it := range items {
		if catalog.HasIdentity(it, identity) {
			return it, true
		}
	}
	return catalog.Item{}, false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
