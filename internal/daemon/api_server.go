package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"ingestor/internal/api"
	"ingestor/internal/config"
	"ingestor/internal/jobs"
	"ingestor/internal/logging"
	"ingestor/internal/services"
)

const (
	maxJSONBody     = 1 << 20
	multipartMemory = 32 << 20
	maxEventWait    = 25 * time.Second
	defaultEventMax = 200
)

type apiServer struct {
	bind   string
	token  string
	logger *slog.Logger
	daemon *Daemon
	limit  int64

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, errors.New("api server requires config and daemon")
	}
	srv := &apiServer{
		bind:   strings.TrimSpace(cfg.Paths.APIBind),
		token:  cfg.Paths.APIToken,
		logger: logger,
		daemon: d,
		limit:  max(cfg.Limits.MaxDocumentBytes, cfg.Limits.MaxFolderBytes) + multipartMemory,
	}
	srv.server = &http.Server{
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      maxEventWait + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) routes() http.Handler {
	mux := http.NewServeMux()
	handle := func(pattern string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, authMiddleware(s.token, h))
	}
	mux.HandleFunc("GET /api/health", s.handleHealth)
	handle("GET /api/status", s.handleStatus)
	handle("POST /api/jobs/crawl", s.handleCrawl)
	handle("POST /api/jobs/document", s.handleDocument)
	handle("POST /api/jobs/folder", s.handleFolder)
	handle("GET /api/jobs", s.handleJobs)
	handle("GET /api/jobs/{id}", s.handleJob)
	handle("POST /api/jobs/{id}/cancel", s.handleCancel)
	handle("GET /api/jobs/{id}/events", s.handleEvents)
	handle("GET /api/events", s.handleEvents)
	handle("GET /api/sources", s.handleSources)
	handle("DELETE /api/sources/{id}", s.handleDeleteSource)
	handle("POST /api/sources/{id}/refresh", s.handleRefreshSource)
	handle("GET /api/sources/{id}/code-examples", s.handleCodeExamples)
	handle("GET /api/search", s.handleSearch)
	handle("POST /api/notifications/test", s.handleTestNotification)
	return mux
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening",
		logging.String("address", listener.Addr().String()),
		logging.Bool("auth", s.token != ""),
	)
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
}

func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.daemon.store.Ping(r.Context()); err != nil {
		s.writeError(w, services.Wrap(services.ErrStorage, "api", "health", "knowledge store unavailable", err))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status(r.Context())
	payload := api.Status{
		PID:          status.PID,
		DatabasePath: status.DatabasePath,
		LockFilePath: status.LockFilePath,
		InboxDir:     status.InboxDir,
		NATS:         status.NATS,
		Engine:       api.FromSummary(status.Workflow),
		Checks:       api.FromChecks(status.Checks),
		Dependencies: api.FromDependencies(status.Dependencies),
	}
	if status.Knowledge != nil {
		payload.Knowledge = api.FromTotals(*status.Knowledge)
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *apiServer) handleCrawl(w http.ResponseWriter, r *http.Request) {
	var req api.CrawlRequest
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	if err := decoder.Decode(&req); err != nil {
		s.writeError(w, services.Wrap(services.ErrValidation, "api", "decode crawl", "request body must be JSON", err))
		return
	}
	s.submit(w, r, jobs.Spec{
		Kind:                jobs.KindCrawl,
		URL:                 req.URL,
		MaxDepth:            req.MaxDepth,
		ExtractCodeExamples: req.ExtractCodeExamples,
		KnowledgeType:       req.KnowledgeType,
		Tags:                req.Tags,
	}, "Crawling started")
}

func (s *apiServer) handleDocument(w http.ResponseWriter, r *http.Request) {
	form, err := s.parseMultipart(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	headers := form.File["file"]
	if len(headers) == 0 {
		s.writeError(w, services.Wrap(services.ErrValidation, "api", "upload document", "file is required", nil))
		return
	}
	file, err := readUpload(headers[0])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.submit(w, r, jobs.Spec{
		Kind:          jobs.KindDocument,
		KnowledgeType: formValue(form, "knowledge_type"),
		Tags:          parseTags(formValue(form, "tags")),
		Document:      file,
	}, "Document upload started")
}

func (s *apiServer) handleFolder(w http.ResponseWriter, r *http.Request) {
	form, err := s.parseMultipart(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	files := make([]jobs.File, 0, len(form.File["files"]))
	for _, header := range form.File["files"] {
		file, err := readUpload(header)
		if err != nil {
			s.writeError(w, err)
			return
		}
		files = append(files, file)
	}
	s.submit(w, r, jobs.Spec{
		Kind:          jobs.KindFolder,
		FolderName:    formValue(form, "folder_name"),
		KnowledgeType: formValue(form, "knowledge_type"),
		Tags:          parseTags(formValue(form, "tags")),
		Files:         files,
	}, "Folder upload started")
}

func (s *apiServer) submit(w http.ResponseWriter, r *http.Request, spec jobs.Spec, message string) {
	requestID := strings.TrimSpace(r.Header.Get("X-Request-ID"))
	if requestID == "" {
		requestID = uuid.NewString()
	}
	ctx := services.WithRequestID(r.Context(), requestID)
	accepted, err := s.daemon.workflow.Submit(ctx, spec)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, api.AcceptedResponse{
		Success:   true,
		JobID:     accepted.JobID,
		SourceID:  accepted.SourceID,
		FileCount: accepted.FileCount,
		Filtered:  accepted.Filtered,
		Message:   message,
	})
}

func (s *apiServer) handleJobs(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, api.JobListResponse{Jobs: api.FromJobs(s.daemon.workflow.List())})
}

func (s *apiServer) handleJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.daemon.workflow.Status(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.JobResponse{Job: api.FromJob(job)})
}

func (s *apiServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	_ = s.daemon.workflow.Cancel(r.Context(), id)
	s.writeJSON(w, http.StatusOK, api.CancelResponse{
		Success: true,
		JobID:   id,
		Message: "Job stopped",
	})
}

func (s *apiServer) handleTestNotification(w http.ResponseWriter, r *http.Request) {
	sent, message, err := s.daemon.TestNotification(r.Context())
	if err != nil {
		s.log().Warn("test notification failed", logging.Error(err))
		s.writeJSON(w, http.StatusBadGateway, api.ErrorResponse{Error: message + ": " + err.Error(), Kind: "notification"})
		return
	}
	s.writeJSON(w, http.StatusOK, api.NotificationResponse{Sent: sent, Message: message})
}

func (s *apiServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	since, _ := strconv.ParseUint(query.Get("since"), 10, 64)
	limit, _ := strconv.Atoi(query.Get("limit"))
	if limit <= 0 {
		limit = defaultEventMax
	}
	wait, _ := time.ParseDuration(query.Get("wait"))
	wait = min(wait, maxEventWait)

	ctx := r.Context()
	if wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, wait)
		defer cancel()
	}
	evts, next, err := s.daemon.hub.Fetch(ctx, r.PathValue("id"), since, limit, wait > 0)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		if errors.Is(err, context.Canceled) {
			return
		}
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.EventsResponse{Events: api.FromEvents(evts), Next: max(next, since)})
}

func (s *apiServer) handleSources(w http.ResponseWriter, r *http.Request) {
	sources, err := s.daemon.store.ListSources(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.SourceListResponse{Sources: api.FromSources(sources)})
}

func (s *apiServer) handleDeleteSource(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	deleted, err := s.daemon.store.DeleteSource(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !deleted {
		s.writeError(w, services.Wrap(services.ErrNotFound, "api", "delete source", "source "+id+" not found", nil))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true, "source_id": id})
}

func (s *apiServer) handleRefreshSource(w http.ResponseWriter, r *http.Request) {
	src, err := s.daemon.store.GetSource(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	spec, err := src.CrawlSpec()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.submit(w, r, spec, "Refresh started for "+spec.URL)
}

func (s *apiServer) handleCodeExamples(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	examples, err := s.daemon.store.ListCodeExamples(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.CodeExampleListResponse{
		SourceID:     id,
		CodeExamples: api.FromCodeExamples(examples),
		Count:        len(examples),
	})
}

func (s *apiServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	hits, err := s.daemon.store.Search(r.Context(), query, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.SearchResponse{Query: query, Hits: api.FromHits(hits)})
}

func (s *apiServer) parseMultipart(w http.ResponseWriter, r *http.Request) (*multipart.Form, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.limit)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, services.Wrap(services.ErrValidation, "api", "parse upload", fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit), nil)
		}
		return nil, services.Wrap(services.ErrValidation, "api", "parse upload", "request must be multipart/form-data", err)
	}
	return r.MultipartForm, nil
}

func readUpload(header *multipart.FileHeader) (jobs.File, error) {
	f, err := header.Open()
	if err != nil {
		return jobs.File{}, services.Wrap(services.ErrValidation, "api", "read upload", "cannot read "+header.Filename, err)
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return jobs.File{}, services.Wrap(services.ErrValidation, "api", "read upload", "cannot read "+header.Filename, err)
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = mime.TypeByExtension(filepath.Ext(header.Filename))
	}
	return jobs.File{Name: header.Filename, ContentType: contentType, Content: content}, nil
}

func formValue(form *multipart.Form, key string) string {
	if values := form.Value[key]; len(values) > 0 {
		return strings.TrimSpace(values[0])
	}
	return ""
}

// parseTags accepts a JSON array or a comma-separated list.
func parseTags(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if strings.HasPrefix(raw, "[") {
		var tags []string
		if err := json.Unmarshal([]byte(raw), &tags); err == nil {
			return tags
		}
	}
	return strings.Split(raw, ",")
}

func statusForError(err error) int {
	switch services.KindOf(err) {
	case services.KindValidation:
		return http.StatusBadRequest
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindDuplicate:
		return http.StatusConflict
	case services.KindShuttingDown:
		return http.StatusServiceUnavailable
	case services.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, err error) {
	status := statusForError(err)
	details := services.Details(err)
	if status >= http.StatusInternalServerError {
		s.log().Warn("api request failed",
			logging.String(logging.FieldEventType, "api_request_failed"),
			logging.Error(err),
		)
	}
	s.writeJSON(w, status, api.ErrorResponse{
		Error: services.DisplayMessage(err),
		Kind:  string(details.Kind),
		Hint:  details.Hint,
	})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String(logging.FieldComponent, "api-server"))
	}
	return logging.NewNop()
}
