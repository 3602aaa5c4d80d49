package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"prodmanager/internal/config"
	"prodmanager/internal/manager"
	"prodmanager/internal/model"
	"prodmanager/internal/observability"
	"prodmanager/internal/preview"
	"prodmanager/internal/web"
)

func main() {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Erro ao carregar configuração: %v", err)
	}
	log.SetLevel(cfg.Level())
	if cfg.Level() != logrus.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	observability.Start(cfg.MetricsPort, log)

	previews := preview.NewMemoryStore()
	previews.OnChange = func(n int) { observability.ActivePreviews.Set(float64(n)) }

	sessions := web.NewSessionStore(cfg.SessionTTL, func(id string) *manager.Manager {
		var seed []model.Product
		if cfg.SeedCatalog {
			seed = model.Seed()
		}
		return manager.New(manager.Options{
			Seed:            seed,
			Previews:        previews,
			NotificationTTL: cfg.NotificationTTL,
			Observer:        observability.Recorder{},
			Logger:          log.WithField("session", id),
		})
	})
	sessions.OnChange = func(n int) { observability.ActiveSessions.Set(float64(n)) }

	router, err := web.NewRouter(web.NewHandler(sessions, previews, cfg.NotificationTTL, log), cfg.MaxMultipartMemory)
	if err != nil {
		log.Fatalf("Erro ao montar rotas: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go sessions.Run(ctx, time.Minute)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Infof("Gerenciador de produtos rodando %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Erro no servidor HTTP: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("Encerrando...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Falha ao encerrar o servidor")
	}
	sessions.Close()
}
