// Package server is the thin HTTP shell over the scanner, differ and
// applier.
package server

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"strconv"

	"restruct/internal/apperr"
	"restruct/internal/applier"
	"restruct/internal/differ"
	"restruct/internal/logger"
	"restruct/internal/model"
	"restruct/internal/repository"
	"restruct/internal/scanner"
	"restruct/internal/watch"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

type Server struct {
	echo     *echo.Echo
	scanner  *scanner.Scanner
	applier  *applier.Applier
	tracker  *watch.Tracker
	histRepo *repository.HistoryRepository
	port     int
}

// New wires the HTTP layer. tracker and histRepo may be nil when root
// watching or persistence is disabled.
func New(sc *scanner.Scanner, ap *applier.Applier, tracker *watch.Tracker, histRepo *repository.HistoryRepository, bodyLimit string, port int) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	if bodyLimit != "" {
		e.Use(middleware.BodyLimit(bodyLimit))
	}

	s := &Server{
		echo:     e,
		scanner:  sc,
		applier:  ap,
		tracker:  tracker,
		histRepo: histRepo,
		port:     port,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.echo.GET("/tree", s.handleTree)
	s.echo.POST("/validate", s.handleValidate)
	s.echo.POST("/apply", s.handleApply)
	s.echo.DELETE("/backup", s.handleRemoveBackup)
	s.echo.GET("/history", s.handleHistory)
	s.echo.GET("/status", s.handleStatus)
}

func (s *Server) Start() {
	go func() {
		addr := ":" + strconv.Itoa(s.port)
		logger.Log.Info("server started",
			zap.String("addr", addr))

		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Error("server error", zap.Error(err))
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) handleTree(c echo.Context) error {
	root := c.QueryParam("path")
	if err := checkRoot(root); err != nil {
		return writeErr(c, err)
	}

	tree, err := s.scanner.Scan(c.Request().Context(), root)
	if err != nil {
		return writeErr(c, err)
	}

	if tree == nil {
		tree = []*model.TreeNode{}
	}
	return c.JSON(http.StatusOK, tree)
}

type validateRequest struct {
	Path       string            `json:"path"`
	ClientTree []*model.TreeNode `json:"clientTree"`
}

func (s *Server) handleValidate(c echo.Context) error {
	var req validateRequest
	if err := c.Bind(&req); err != nil {
		return writeErr(c, apperr.New(apperr.CodeInvalidInput, "malformed request body"))
	}
	if err := checkRoot(req.Path); err != nil {
		return writeErr(c, err)
	}
	if req.ClientTree == nil {
		return writeErr(c, apperr.New(apperr.CodeInvalidInput, "clientTree is required"))
	}

	serverTree, err := s.scanner.Scan(c.Request().Context(), req.Path)
	if err != nil {
		return writeErr(c, err)
	}

	result := differ.Compare(req.ClientTree, serverTree)
	if result.Differences == nil {
		result.Differences = []model.Discrepancy{}
	}

	if s.tracker != nil {
		if err := s.tracker.Track(req.Path); err != nil {
			logger.Log.Warn("failed to track root",
				zap.String("root", req.Path),
				zap.Error(err))
		}
	}

	logger.Log.Info("validated",
		zap.String("root", req.Path),
		zap.Bool("match", result.IsMatch),
		zap.Int("differences", len(result.Differences)))

	return c.JSON(http.StatusOK, result)
}

type applyRequest struct {
	Path       string              `json:"path"`
	Changes    []model.ChangeEntry `json:"changes"`
	MakeBackup bool                `json:"makeBackup"`
}

type applyResponse struct {
	Applied    int      `json:"applied"`
	BackupPath string   `json:"backupPath,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
}

func (s *Server) handleApply(c echo.Context) error {
	var req applyRequest
	if err := c.Bind(&req); err != nil {
		return writeErr(c, apperr.New(apperr.CodeInvalidInput, "malformed request body"))
	}
	if err := checkRoot(req.Path); err != nil {
		return writeErr(c, err)
	}

	var warnings []string
	if s.tracker != nil && s.tracker.Stale(req.Path) {
		warnings = append(warnings, "root changed on disk since validation; the applied changes were staged against an older snapshot")
		logger.Log.Warn("applying against stale validation",
			zap.String("root", req.Path))
	}

	result, err := s.applier.Apply(req.Path, req.Changes, req.MakeBackup)
	s.recordApply(req, result, err)
	if err != nil {
		return writeErr(c, err)
	}

	if s.tracker != nil {
		s.tracker.Forget(req.Path)
	}

	return c.JSON(http.StatusOK, applyResponse{
		Applied:    result.Applied,
		BackupPath: result.BackupPath,
		Warnings:   warnings,
	})
}

func (s *Server) handleRemoveBackup(c echo.Context) error {
	root := c.QueryParam("path")
	if err := checkRoot(root); err != nil {
		return writeErr(c, err)
	}

	result, err := s.applier.RemoveBackup(root)
	if err != nil {
		return writeErr(c, err)
	}

	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleHistory(c echo.Context) error {
	if s.histRepo == nil {
		return c.JSON(http.StatusOK, []model.ApplyRecord{})
	}

	limit := 20
	if n := c.QueryParam("n"); n != "" {
		if parsed, err := strconv.Atoi(n); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	records, err := s.histRepo.GetRecent(limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, records)
}

func (s *Server) handleStatus(c echo.Context) error {
	roots := map[string]bool{}
	if s.tracker != nil {
		roots = s.tracker.Roots()
	}

	return c.JSON(http.StatusOK, map[string]any{
		"roots":   roots,
		"backups": s.applier.Backups().Snapshot(),
	})
}

func (s *Server) recordApply(req applyRequest, result *applier.ApplyResult, applyErr error) {
	if s.histRepo == nil {
		return
	}

	outcome := model.OutcomeFor(applyErr, req.MakeBackup)
	backupPath := ""
	errMsg := ""

	if applyErr != nil {
		errMsg = applyErr.Error()
	} else {
		backupPath = result.BackupPath
	}

	if err := s.histRepo.Record(req.Path, len(req.Changes), outcome, backupPath, errMsg); err != nil {
		logger.Log.Error("failed to record history", zap.Error(err))
	}
}

func checkRoot(root string) error {
	if root == "" {
		return apperr.New(apperr.CodeInvalidInput, "path is required")
	}
	if !filepath.IsAbs(root) {
		return apperr.New(apperr.CodeInvalidInput, "path must be absolute").WithPath(root)
	}
	return nil
}

func writeErr(c echo.Context, err error) error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return c.JSON(apperr.HTTPStatus(err), appErr)
	}
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
}
