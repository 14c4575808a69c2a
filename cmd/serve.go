package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/brandlens/scan-cli/internal/export"
	"github.com/brandlens/scan-cli/internal/model"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the scan API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initScanEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(env),
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			_ = srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

func newRouter(env *scanEnv) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/scans", handleCreateScan(env))
		r.Get("/scans/{scanID}", handleGetScan(env))
		r.Get("/scans/{scanID}/report", handleGetReport(env))
		r.Get("/scans/{scanID}/export", handleExport(env))
		r.Get("/reports/shared/{token}", handleSharedReport(env))
	})

	return r
}

func handleCreateScan(env *scanEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			OrgID    string `json:"org_id"`
			EntityID string `json:"entity_id"`
			Name     string `json:"name"`
			Domain   string `json:"domain"`
			Location string `json:"location"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Domain == "" && req.Name == "" {
			writeError(w, http.StatusBadRequest, "domain or name is required")
			return
		}

		entity := model.Entity{
			OrgID:    req.OrgID,
			EntityID: req.EntityID,
			Name:     req.Name,
			Domain:   req.Domain,
			Location: req.Location,
		}
		if entity.OrgID == "" {
			entity.OrgID = "default"
		}
		if entity.EntityID == "" {
			entity.EntityID = req.Domain
		}
		if entity.Name == "" {
			entity.Name = entityNameFromDomain(req.Domain)
		}

		run, err := env.Orchestrator.Launch(r.Context(), entity)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "could not start scan")
			return
		}
		writeJSON(w, http.StatusAccepted, run)
	}
}

func handleGetScan(env *scanEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run, err := env.Store.GetScan(r.Context(), chi.URLParam(r, "scanID"))
		if err != nil {
			writeError(w, http.StatusNotFound, "scan not found")
			return
		}
		writeJSON(w, http.StatusOK, run)
	}
}

func handleGetReport(env *scanEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := env.Store.GetReport(r.Context(), chi.URLParam(r, "scanID"))
		if err != nil {
			writeError(w, http.StatusNotFound, "report not found")
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

func handleSharedReport(env *scanEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := env.Store.GetReportByShareToken(r.Context(), chi.URLParam(r, "token"))
		if err != nil {
			writeError(w, http.StatusNotFound, "report not found or link expired")
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

func handleExport(env *scanEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		scanID := chi.URLParam(r, "scanID")

		data, err := loadExportData(ctx, env, scanID)
		if err != nil {
			writeError(w, http.StatusNotFound, "scan not found or not complete")
			return
		}

		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", scanID+".xlsx"))
		if err := export.Write(w, data); err != nil {
			zap.L().Error("export stream failed", zap.String("scan_id", scanID), zap.Error(err))
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
