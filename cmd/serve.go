package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sellhub-kr/listing-cli/internal/export"
	"github.com/sellhub-kr/listing-cli/internal/model"
	"github.com/sellhub-kr/listing-cli/internal/roster"
	"github.com/sellhub-kr/listing-cli/pkg/market"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start webhook server for allocation requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return eris.Wrap(err, "open store")
		}
		defer st.Close()

		uploader := market.NewDryRun(market.WithRateLimit(cfg.Market.RatePerSecond))
		runner := export.NewRunner(st, uploader)

		// One writer per sheet at a time.
		var inFlight sync.Map

		// Set up routes
		mux := http.NewServeMux()

		mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
		})

		mux.HandleFunc("POST /webhook/allocate", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Sheet    string `json:"sheet"`
				Category string `json:"category"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
				return
			}
			if req.Sheet == "" {
				http.Error(w, `{"error":"sheet is required"}`, http.StatusBadRequest)
				return
			}

			ro, err := roster.Load(cfg.Export.RosterPath)
			if err != nil {
				http.Error(w, `{"error":"roster unavailable"}`, http.StatusInternalServerError)
				return
			}
			sheet, ok := ro.Sheet(req.Sheet)
			if !ok {
				http.Error(w, `{"error":"sheet not in roster"}`, http.StatusNotFound)
				return
			}

			if _, busy := inFlight.LoadOrStore(sheet.Name, struct{}{}); busy {
				http.Error(w, `{"error":"sheet run already in progress"}`, http.StatusConflict)
				return
			}

			// Run allocation asynchronously
			go func() {
				defer inFlight.Delete(sheet.Name)
				products, err := st.ListProducts(ctx, model.ProductFilter{
					Category: req.Category,
					Status:   model.ProductStatusActive,
				})
				if err != nil {
					zap.L().Error("webhook allocation failed",
						zap.String("sheet", sheet.Name),
						zap.Error(err),
					)
					return
				}

				report, err := runner.Run(ctx, export.Request{
					SheetName:      sheet.Name,
					BusinessNumber: sheet.BusinessNumber,
					Slots:          sheet.Stores,
					Products:       products,
					FlushRetries:   cfg.Export.FlushRetries,
					FlushBackoff:   time.Duration(cfg.Export.FlushBackoffMillis) * time.Millisecond,
				})
				if err != nil {
					zap.L().Error("webhook allocation failed",
						zap.String("sheet", sheet.Name),
						zap.Error(err),
					)
					return
				}
				zap.L().Info("webhook allocation complete",
					zap.String("sheet", sheet.Name),
					zap.Int("assigned", report.Assigned),
					zap.Int("persisted", report.Persisted),
				)
			}()

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusAccepted)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "accepted",
				"sheet":  req.Sheet,
			})
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
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
