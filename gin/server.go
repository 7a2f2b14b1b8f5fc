// Package gin exposes urlkeep over HTTP using the gin router.
package gin

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/fwojciec/urlkeep"
	"github.com/fwojciec/urlkeep/reconcile"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ShutdownTimeout is how long Serve waits for in-flight requests.
const ShutdownTimeout = 5 * time.Second

// Server is the HTTP import surface.
type Server struct {
	Importer urlkeep.Importer
	Records  urlkeep.RecordService
	Batches  urlkeep.BatchService
	Logger   *slog.Logger

	router *gin.Engine
}

// NewServer creates a new Server with all routes registered.
func NewServer(importer urlkeep.Importer, records urlkeep.RecordService, batches urlkeep.BatchService, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		Importer: importer,
		Records:  records,
		Batches:  batches,
		Logger:   logger,
		router:   gin.New(),
	}
	s.router.Use(gin.Recovery(), s.logRequests)

	s.router.PUT("/import", s.handleImport)
	s.router.GET("/records", s.handleRecords)
	s.router.GET("/records/:title", s.handleRecord)
	s.router.DELETE("/records/:title", s.handleDeleteRecord)
	s.router.GET("/pending", s.handlePending)
	s.router.POST("/pending", s.handleSubmit)
	s.router.PUT("/pending", s.handleWritePending)
	s.router.DELETE("/pending/failed", s.handleClear(urlkeep.StateFailed))
	s.router.DELETE("/pending/duplicates", s.handleClear(urlkeep.StateDuplicate))
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Serve listens on addr until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() {
		s.Logger.Info("listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) logRequests(c *gin.Context) {
	begin := time.Now()
	c.Next()
	s.Logger.Debug("http request",
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"status", c.Writer.Status(),
		"duration", time.Since(begin),
	)
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`

	// Existing names the record a duplicate URL was imported as.
	Existing string `json:"existing,omitempty"`
}

// errorStatus maps application error codes to HTTP status codes.
var errorStatus = map[string]int{
	urlkeep.ECONFLICT:    http.StatusConflict,
	urlkeep.EINVALID:     http.StatusBadRequest,
	urlkeep.EUNSUPPORTED: http.StatusBadRequest,
	urlkeep.EFETCH:       http.StatusBadRequest,
	urlkeep.EEXTRACT:     http.StatusBadRequest,
	urlkeep.ENOTFOUND:    http.StatusNotFound,
}

// respondError writes err with the status matching its code. Internal
// errors are logged and reported generically.
func (s *Server) respondError(c *gin.Context, err error) {
	code := urlkeep.ErrorCode(err)
	status, ok := errorStatus[code]
	if !ok {
		status = http.StatusInternalServerError
		s.Logger.Error("http error",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"err", err,
		)
	}

	resp := ErrorResponse{Error: urlkeep.ErrorMessage(err), Code: code}
	var dup *urlkeep.DuplicateURLError
	if errors.As(err, &dup) && dup.Existing != nil {
		resp.Existing = dup.Existing.Title
	}
	c.AbortWithStatusJSON(status, resp)
}

// handleImport imports ?url=, optionally selecting the extractor by ?_url=.
// The optional JSON object body holds override fields.
func (s *Server) handleImport(c *gin.Context) {
	req := urlkeep.ImportRequest{
		URL:      c.Query("url"),
		MatchURL: c.Query("_url"),
	}
	if req.URL == "" {
		s.respondError(c, urlkeep.Errorf(urlkeep.EINVALID, "url query parameter required"))
		return
	}
	if err := c.ShouldBindJSON(&req.Fields); err != nil && !errors.Is(err, io.EOF) {
		s.respondError(c, urlkeep.WrapError(urlkeep.EINVALID, err, "body must be a JSON object of string fields"))
		return
	}

	rec, err := s.Importer.Import(c.Request.Context(), req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rec.FieldMap())
}

func (s *Server) handleRecords(c *gin.Context) {
	var filter urlkeep.RecordFilter
	if v, ok := c.GetQuery("extractor"); ok {
		filter.Extractor = &v
	}
	var err error
	if filter.Offset, err = intQuery(c, "offset"); err != nil {
		s.respondError(c, err)
		return
	}
	if filter.Limit, err = intQuery(c, "limit"); err != nil {
		s.respondError(c, err)
		return
	}

	recs, err := s.Records.FindRecords(c.Request.Context(), filter)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if recs == nil {
		recs = []*urlkeep.Record{}
	}
	c.JSON(http.StatusOK, recs)
}

func intQuery(c *gin.Context, name string) (int, error) {
	v := c.Query(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, urlkeep.Errorf(urlkeep.EINVALID, "invalid %s %q", name, v)
	}
	return n, nil
}

func (s *Server) handleRecord(c *gin.Context) {
	rec, err := s.Records.FindRecordByTitle(c.Request.Context(), c.Param("title"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec.FieldMap())
}

func (s *Server) handleDeleteRecord(c *gin.Context) {
	rec, err := s.Records.FindRecordByTitle(c.Request.Context(), c.Param("title"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	if err := s.Records.DeleteRecord(c.Request.Context(), rec.ID); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handlePending(c *gin.Context) {
	b, err := s.Batches.FindBatch(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// SubmitRequest adds entries to the pending batch.
type SubmitRequest struct {
	Entries []SubmitEntry `json:"entries"`
}

// SubmitEntry is one entry to queue.
type SubmitEntry struct {
	Text   string            `json:"text"`
	Fields map[string]string `json:"fields,omitempty"`
}

// SubmitResponse reports the slots assigned to submitted entries, in
// request order.
type SubmitResponse struct {
	Version int64    `json:"version"`
	Slots   []string `json:"slots"`
}

func (s *Server) handleSubmit(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, urlkeep.WrapError(urlkeep.EINVALID, err, "invalid submit body"))
		return
	}
	if len(req.Entries) == 0 {
		s.respondError(c, urlkeep.Errorf(urlkeep.EINVALID, "at least one entry required"))
		return
	}

	entries := make(map[string]*urlkeep.PendingEntry, len(req.Entries))
	slots := make([]string, 0, len(req.Entries))
	for _, e := range req.Entries {
		slot := uuid.NewString()
		entries[slot] = &urlkeep.PendingEntry{
			SourceText: e.Text,
			Fields:     e.Fields,
			State:      urlkeep.StateQueued,
		}
		slots = append(slots, slot)
	}

	b, err := s.Batches.AddEntries(c.Request.Context(), entries)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, SubmitResponse{Version: b.Version, Slots: slots})
}

// handleWritePending replaces the batch if the body's version is current.
func (s *Server) handleWritePending(c *gin.Context) {
	var b urlkeep.Batch
	if err := c.ShouldBindJSON(&b); err != nil {
		s.respondError(c, urlkeep.WrapError(urlkeep.EINVALID, err, "invalid batch body"))
		return
	}

	written, err := s.Batches.WriteBatch(c.Request.Context(), &b)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, written)
}

// handleClear removes the entries settled in state.
func (s *Server) handleClear(state urlkeep.ImportState) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := reconcile.Clear(c.Request.Context(), s.Batches, state)
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"removed": n})
	}
}
