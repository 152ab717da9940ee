package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stormsignal/strike-alert/internal/model"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
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

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// newRouter builds the API routes over the wired components.
func newRouter(env *appEnv) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/strikes", handleCreateStrike(env))
	r.Post("/delivery/run", handleDeliveryRun(env))

	r.Route("/users/{userID}", func(r chi.Router) {
		r.Get("/location", handleGetLocation(env))
		r.Put("/location", handleSetLocation(env))
		r.Get("/notifications", handleListNotifications(env))
		r.Get("/strikes/nearby", handleNearbyStrikes(env))
	})

	r.Patch("/locations/{locationID}", handleUpdateLocation(env))
	r.Get("/zipcodes/{zip}", handleZipLookup(env))

	return r
}

func handleCreateStrike(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Latitude  float64    `json:"latitude"`
			Longitude float64    `json:"longitude"`
			Timestamp *time.Time `json:"timestamp"`
			Intensity float64    `json:"intensity"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, eris.Wrap(model.ErrValidation, "invalid request body"))
			return
		}

		ts := time.Now().UTC()
		if req.Timestamp != nil {
			ts = req.Timestamp.UTC()
		}

		strike, err := env.Store.CreateStrike(r.Context(), model.Strike{
			Latitude:  req.Latitude,
			Longitude: req.Longitude,
			Timestamp: ts,
			Intensity: req.Intensity,
		})
		if err != nil {
			writeError(w, err)
			return
		}

		notifs, err := env.Ledger.RecordMatches(r.Context(), *strike, cfg.Alert.RadiusMiles)
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, map[string]any{
			"strike":   strike,
			"notified": len(notifs),
		})
	}
}

func handleDeliveryRun(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := env.Worker.RunPass(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func handleGetLocation(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")
		loc, err := env.Store.GetActiveLocation(r.Context(), userID)
		if err != nil {
			writeError(w, err)
			return
		}
		if loc == nil {
			writeError(w, eris.Wrapf(model.ErrNotFound, "no active location for user %s", userID))
			return
		}
		writeJSON(w, http.StatusOK, loc)
	}
}

func handleSetLocation(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")

		var req struct {
			ZipCode string `json:"zip_code"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, eris.Wrap(model.ErrValidation, "invalid request body"))
			return
		}

		res, err := env.Zip.Lookup(r.Context(), req.ZipCode)
		if err != nil {
			writeError(w, err)
			return
		}

		loc, err := env.Store.SetActiveLocation(r.Context(), model.Location{
			UserID:    userID,
			ZipCode:   res.ZipCode,
			Latitude:  res.Latitude,
			Longitude: res.Longitude,
			City:      res.City,
			State:     res.State,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, loc)
	}
}

func handleUpdateLocation(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		locationID := chi.URLParam(r, "locationID")

		var patch model.LocationPatch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			writeError(w, eris.Wrap(model.ErrValidation, "invalid request body"))
			return
		}
		if patch.Empty() {
			writeError(w, eris.Wrap(model.ErrValidation, "no fields to update"))
			return
		}

		loc, err := env.Store.UpdateLocation(r.Context(), locationID, patch)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, loc)
	}
}

func handleListNotifications(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		notifs, err := env.Ledger.ListForUser(r.Context(), chi.URLParam(r, "userID"))
		if err != nil {
			writeError(w, err)
			return
		}
		if notifs == nil {
			notifs = []model.Notification{}
		}
		writeJSON(w, http.StatusOK, notifs)
	}
}

func handleNearbyStrikes(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")

		radius := cfg.Alert.RadiusMiles
		if v := r.URL.Query().Get("radius"); v != "" {
			parsed, err := strconv.ParseFloat(v, 64)
			if err != nil || parsed <= 0 {
				writeError(w, eris.Wrap(model.ErrValidation, "radius must be a positive number"))
				return
			}
			radius = parsed
		}

		lookback := lookbackDuration()
		if v := r.URL.Query().Get("lookback_hours"); v != "" {
			hours, err := strconv.Atoi(v)
			if err != nil || hours <= 0 {
				writeError(w, eris.Wrap(model.ErrValidation, "lookback_hours must be a positive integer"))
				return
			}
			lookback = time.Duration(hours) * time.Hour
		}

		strikes, err := env.Matcher.NearbyStrikes(r.Context(), userID, radius, lookback)
		if err != nil {
			writeError(w, err)
			return
		}
		if strikes == nil {
			strikes = []model.StrikeWithDistance{}
		}
		writeJSON(w, http.StatusOK, strikes)
	}
}

func handleZipLookup(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := env.Zip.Lookup(r.Context(), chi.URLParam(r, "zip"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, model.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, model.ErrNotFound):
		status = http.StatusNotFound
	}

	if status == http.StatusInternalServerError {
		zap.L().Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
