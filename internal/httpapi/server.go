// Package httpapi exposes the ingest/query pipeline over HTTP.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"paperpal/internal/domain"
	"paperpal/internal/service"
)

// Pipeline is the subset of the controller the HTTP surface needs.
type Pipeline interface {
	Ingest(ctx context.Context, srcs []domain.Source) service.Outcome
	Query(ctx context.Context, question string) service.Outcome
	Status() service.Status
}

type Config struct {
	CORSOrigins []string
	MaxUploadMB int
}

type Server struct {
	pipeline  Pipeline
	log       *slog.Logger
	maxUpload int64
	engine    *gin.Engine
}

func New(p Pipeline, cfg Config, log *slog.Logger) *Server {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = 32
	}
	s := &Server{pipeline: p, log: log, maxUpload: int64(cfg.MaxUploadMB) << 20}

	router := gin.New()
	router.Use(gin.Recovery(), s.requestLog())

	corsConfig := cors.DefaultConfig()
	if len(cfg.CORSOrigins) == 0 || (len(cfg.CORSOrigins) == 1 && cfg.CORSOrigins[0] == "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.CORSOrigins
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
	})
	api := router.Group("/api")
	api.GET("/status", s.status)
	api.POST("/ingest", s.ingest)
	api.POST("/query", s.query)

	s.engine = router
	return s
}

func (s *Server) Handler() http.Handler { return s.engine }

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.engine, ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() {
		s.log.Info("http server starting", "addr", addr)
		errc <- srv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	s.log.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"elapsed", time.Since(start),
		)
	}
}

func (s *Server) status(c *gin.Context) {
	c.JSON(http.StatusOK, s.pipeline.Status())
}

type ingestResponse struct {
	Level     string `json:"level"`
	Message   string `json:"message"`
	Documents int    `json:"documents"`
	Chunks    int    `json:"chunks"`
	ElapsedMS int64  `json:"elapsed_ms"`
}

func (s *Server) ingest(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUpload)
	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			abort(c, http.StatusRequestEntityTooLarge, "file_too_large", "Upload exceeds maximum size", err)
			return
		}
		abort(c, http.StatusBadRequest, "invalid_form", "Expected multipart form with files", err)
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		abort(c, http.StatusBadRequest, "no_file", service.MsgNoSources, nil)
		return
	}
	srcs := make([]domain.Source, 0, len(headers))
	for _, h := range headers {
		f, err := h.Open()
		if err != nil {
			abort(c, http.StatusBadRequest, "file_read_error", "Failed to read file", err)
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			abort(c, http.StatusBadRequest, "file_read_error", "Failed to read file", err)
			return
		}
		srcs = append(srcs, domain.Source{Name: h.Filename, Data: data})
	}

	out := s.pipeline.Ingest(c.Request.Context(), srcs)
	if out.Level == service.Error {
		outcomeError(c, out)
		return
	}
	c.JSON(http.StatusOK, ingestResponse{
		Level:     out.Level.String(),
		Message:   out.Message,
		Documents: out.Documents,
		Chunks:    out.Chunks,
		ElapsedMS: out.Elapsed.Milliseconds(),
	})
}

type queryRequest struct {
	Question string `json:"question"`
}

type passage struct {
	ID         string  `json:"id"`
	DocumentID string  `json:"document_id"`
	Position   int     `json:"position"`
	Score      float64 `json:"score"`
	Text       string  `json:"text"`
}

type queryResponse struct {
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Answer    string    `json:"answer,omitempty"`
	NotFound  bool      `json:"not_found"`
	Passages  []passage `json:"passages"`
	ElapsedMS int64     `json:"elapsed_ms"`
}

func (s *Server) query(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "invalid_request", "Expected JSON body with a question", err)
		return
	}
	out := s.pipeline.Query(c.Request.Context(), req.Question)
	if out.Level == service.Error {
		outcomeError(c, out)
		return
	}
	resp := queryResponse{
		Level:     out.Level.String(),
		Message:   out.Message,
		Answer:    out.Answer,
		NotFound:  out.NotFound,
		Passages:  make([]passage, 0, len(out.Passages)),
		ElapsedMS: out.Elapsed.Milliseconds(),
	}
	for _, r := range out.Passages {
		resp.Passages = append(resp.Passages, passage{
			ID:         r.Record.ID,
			DocumentID: r.Record.DocumentID,
			Position:   r.Record.Position,
			Score:      r.Score,
			Text:       r.Record.Text,
		})
	}
	c.JSON(http.StatusOK, resp)
}

// outcomeError maps collaborator failures to 502 and anything else to 500.
func outcomeError(c *gin.Context, out service.Outcome) {
	var ce *domain.CollaboratorError
	if errors.As(out.Err, &ce) {
		abort(c, http.StatusBadGateway, ce.Collaborator+"_unavailable", out.Message, out.Err)
		return
	}
	abort(c, http.StatusInternalServerError, "internal_error", out.Message, out.Err)
}

func abort(c *gin.Context, status int, code, msg string, err error) {
	body := gin.H{"error_code": code, "message": msg}
	if err != nil {
		body["details"] = fmt.Sprint(err)
	}
	c.AbortWithStatusJSON(status, body)
}
