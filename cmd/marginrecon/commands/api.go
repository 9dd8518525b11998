package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/marginrecon/internal/api"
	"github.com/wonny/marginrecon/internal/api/handlers"
	"github.com/wonny/marginrecon/pkg/redis"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `REST API 서버를 시작합니다.

이 명령어는:
- HTTP API 서버 시작
- 대사 실행 트리거 및 결과 조회 엔드포인트 제공
- 불일치 내역 WebSocket 피드 제공
- --with-scheduler 지정 시 스케줄러 동시 실행

Endpoints:
  GET  /health                  - Health check
  GET  /api/runs/latest         - 최근 실행 결과
  GET  /api/runs/{id}           - 실행 결과 조회
  POST /api/runs                - 대사 실행 트리거
  GET  /api/jobs                - 스케줄러 작업 통계 (--with-scheduler)
  GET  /api/ws/discrepancies    - 불일치 WebSocket 피드

Example:
  go run ./cmd/marginrecon api
  go run ./cmd/marginrecon api --port 8080 --with-scheduler`,
	RunE: runAPIServer,
}

var (
	apiPort          string
	apiWithScheduler bool
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (기본: PORT)")
	apiCmd.Flags().BoolVar(&apiWithScheduler, "with-scheduler", false, "스케줄러 동시 실행")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== marginrecon API Server ===")

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if apiPort != "" {
		a.cfg.Port = apiPort
	}

	a.log.WithFields(map[string]interface{}{
		"port": a.cfg.Port,
		"env":  a.cfg.Env,
	}).Info("Initializing API server")

	hub := api.NewHub(a.log)
	defer hub.Close()

	runner, err := a.runner(hub)
	if err != nil {
		return err
	}

	runs := handlers.NewRunHandler(runner, a.cache(), redis.NewRateLimiter(a.rdb, keyPrefix), a.log).
		WithLocation(a.cfg.Recon.Location())

	routes := api.Routes{
		Health: handlers.NewHealthHandler(a.db),
		Runs:   runs,
		Hub:    hub,
	}

	if apiWithScheduler {
		sched, err := newScheduler(runner, a.cfg, a.log)
		if err != nil {
			return fmt.Errorf("init scheduler: %w", err)
		}
		sched.Start()
		defer sched.Stop()
		routes.Jobs = handlers.NewJobHandler(sched)
	}

	server := api.New(a.cfg, a.log, api.NewRouter(routes, a.log))

	// Start server with graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	log := a.log
	log.Info("API server started successfully")
	fmt.Printf("\n✅ Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal or a failed listener
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
