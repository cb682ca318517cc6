package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/daybook/internal/calendar"
	"github.com/zhouzirui/daybook/internal/config"
	"github.com/zhouzirui/daybook/internal/handler"
	"github.com/zhouzirui/daybook/internal/model/journal"
	"github.com/zhouzirui/daybook/internal/service/prompt"
	"github.com/zhouzirui/daybook/internal/service/session"
	"github.com/zhouzirui/daybook/internal/store/sqlite"
	"github.com/zhouzirui/daybook/internal/transport/sshd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// Open the journal store, degrading to in-memory storage when the
	// database cannot be opened.
	var store journal.Store
	sqliteStore, err := sqlite.Open(cfg.Store.Path)
	if err != nil {
		log.Printf("warning: failed to open database at %s: %v", cfg.Store.Path, err)
		log.Println("continuing with in-memory storage - entries will not survive a restart")
		store = journal.NewMemoryStore()
	} else {
		defer sqliteStore.Close()
		store = sqliteStore
		log.Printf("journal store ready at %s", cfg.Store.Path)
	}

	// Initialize the question generator
	promptSvc, err := prompt.NewService(ctx, cfg.AI)
	if err != nil {
		log.Printf("warning: failed to initialize question generator: %v", err)
		log.Println("continuing with static questions only - 请检查 Ark 模型相关环境变量")
		promptSvc, _ = prompt.NewService(ctx, config.AIConfig{TimeoutSeconds: cfg.AI.TimeoutSeconds})
	} else if promptSvc.Enabled() {
		log.Println("question generator initialized successfully")
	} else {
		log.Println("Ark 凭证未配置，将仅使用静态问题")
	}

	resolver := calendar.NewResolver(cfg.Journal.Timezone)
	sessions := session.NewService(store, promptSvc, resolver, cfg.Journal.HistoryLimit, cfg.Journal.PreviewWidth)

	server, err := sshd.New(cfg.Server, sessions)
	if err != nil {
		log.Fatalf("failed to configure SSH server: %v", err)
	}

	if cfg.Server.AdminAddr != "" {
		go startAdmin(cfg.Server.AdminAddr, handler.NewAdminRouter(store))
	}

	log.Printf("Daybook listening on %s", cfg.Server.Addr)
	if err := runServer(ctx, server); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func startAdmin(addr string, router http.Handler) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	log.Printf("admin endpoint listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("warning: admin endpoint stopped: %v", err)
	}
}

func runServer(ctx context.Context, srv *sshd.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		<-errCh
		return nil
	case err := <-errCh:
		return err
	}
}
