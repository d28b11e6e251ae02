package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/arbor-sh/arbor"
	httpAdapter "github.com/arbor-sh/arbor/pkg/adapters/http"
	redisAdapter "github.com/arbor-sh/arbor/pkg/adapters/redis"
	"github.com/arbor-sh/arbor/pkg/domain"
	"github.com/arbor-sh/arbor/pkg/observability"
	"github.com/arbor-sh/arbor/pkg/ports"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the JSON HTTP server",
	Long:  `Starts the agent in server mode, exposing turn submission and session management over HTTP, with Prometheus metrics on /metrics.`,
	Run: func(cmd *cobra.Command, args []string) {
		logger := newLogger(cmd)
		configPath, _ := cmd.Flags().GetString("config")
		catalogPath, _ := cmd.Flags().GetString("catalog")
		port, _ := cmd.Flags().GetString("port")
		redisAddr, _ := cmd.Flags().GetString("redis")

		catalog, err := loadCatalog(catalogPath)
		if err != nil {
			fmt.Printf("Error loading catalog: %v\n", err)
			os.Exit(1)
		}

		registry := prometheus.NewRegistry()
		sink := observability.NewAsyncSink(observability.NewPromSink(registry), 1024)
		defer sink.Close()

		opts := []arbor.Option{
			arbor.WithConfigFile(configPath),
			arbor.WithLogger(logger),
			arbor.WithMetrics(sink),
			arbor.WithCatalog(catalog),
		}
		if redisAddr != "" {
			store := redisAdapter.New(redisAddr, "", 0)
			if err := seedStore(store, catalog); err != nil {
				fmt.Printf("Error seeding redis: %v\n", err)
				os.Exit(1)
			}
			opts = append(opts, arbor.WithStore(store))
		}

		agent, err := arbor.New(opts...)
		if err != nil {
			fmt.Printf("Error initializing agent: %v\n", err)
			os.Exit(1)
		}
		defer agent.Close()

		handler := httpAdapter.NewHandler(agent, logger,
			promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

		srv := &http.Server{
			Addr:    ":" + port,
			Handler: handler,
		}

		serverErrors := make(chan error, 1)
		go func() {
			fmt.Printf("Starting Arbor Server on %s\n", srv.Addr)
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			fmt.Printf("Server error: %v\n", err)
			os.Exit(1)

		case sig := <-shutdown:
			fmt.Printf("\nStart shutdown... Signal: %v\n", sig)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				fmt.Printf("Graceful shutdown did not complete in %v: %v\n", 5*time.Second, err)
				if err := srv.Close(); err != nil {
					fmt.Printf("Error killing server: %v\n", err)
				}
			}
			fmt.Println("Arbor Server stopped gracefully")
		}
	},
}

func seedStore(store ports.DataStore, catalog []domain.Record) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, rec := range catalog {
		if err := store.Put(ctx, rec.ID, rec); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	serveCmd.Flags().String("catalog", "", "Path to a JSON catalog file (built-in demo catalog when empty)")
	serveCmd.Flags().String("redis", "", "Redis address for the catalog store (in-memory when empty)")
}
