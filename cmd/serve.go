package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/nameplate-cli/internal/decoder"
	"github.com/sells-group/nameplate-cli/internal/normalize"
)

var (
	servePort    int
	serveRuleset string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the nameplate lookup HTTP service",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}
		env, err := loadDecodeEnv(serveRuleset)
		if err != nil {
			return err
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newServeMux(env, cfg.Server.RateLimitRPS),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server",
			zap.Int("port", port),
			zap.String("ruleset", env.Dir),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().StringVar(&serveRuleset, "ruleset", "", "ruleset directory (default CURRENT)")
	rootCmd.AddCommand(serveCmd)
}

// rateLimitMiddleware applies a global token bucket. Decode lookups are
// cheap; the limit exists to keep a misbehaving integration from starving
// everyone else.
func rateLimitMiddleware(rps float64) func(http.Handler) http.Handler {
	limiter := rate.NewLimiter(rate.Limit(rps), int(rps)+1)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func newServeMux(env *decodeEnv, rps float64) http.Handler {
	mux := chi.NewRouter()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.Recoverer)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))
	mux.Use(rateLimitMiddleware(rps))

	mux.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.Get("/ruleset/current", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"ruleset_dir":    env.Dir,
			"rejected_rules": len(env.Issues),
		})
	})

	mux.Post("/decode/serial", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Make   string `json:"make"`
			Serial string `json:"serial"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if req.Serial == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "serial is required"})
			return
		}

		brand := normalize.Brand(req.Make, env.Set.Aliases)
		result := env.Serial.Decode(brand, req.Serial, env.bounds())
		writeJSON(w, http.StatusOK, map[string]any{
			"brand":  brand,
			"serial": result,
		})
	})

	mux.Post("/decode/attributes", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Make          string `json:"make"`
			Model         string `json:"model"`
			EquipmentType string `json:"equipment_type"`
			Audit         bool   `json:"audit"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if req.Model == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "model is required"})
			return
		}

		brand := normalize.Brand(req.Make, env.Set.Aliases)
		equipType := decoder.CanonicalEquipmentType(req.EquipmentType, env.Vocab)
		if req.Audit {
			writeJSON(w, http.StatusOK, map[string]any{
				"brand": brand,
				"audit": env.Attrs.DecodeAudit(brand, req.Model, equipType),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"brand":      brand,
			"attributes": env.Attrs.Decode(brand, req.Model, equipType),
		})
	})

	return mux
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}
