package main

import (
	"context"
	"flag"
	"log"
	"net/http"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"gouauth/internal/auth"
	"gouauth/internal/config"
	"gouauth/internal/httpserver"
	"gouauth/internal/logger"
	"gouauth/internal/metrics"
	"gouauth/internal/service"
	"gouauth/internal/store/gormstore"
)

func main() {
	bootstrap := flag.Bool("bootstrap", false, "provision the admin account from ADMIN_USERNAME/ADMIN_PASSWORD and exit")
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	lg := logger.New(cfg.LogLevel)
	defer lg.Sync()

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		lg.Fatalw("db connect failed", "error", err)
	}
	if err := gormstore.AutoMigrate(db); err != nil {
		lg.Fatalw("automigrate failed", "error", err)
	}
	st := gormstore.New(db)

	tokens := auth.NewManager(cfg.JWTSecret, cfg.SessionTTL, cfg.RefreshTTL, cfg.AdminTTL)
	m := metrics.New(prometheus.DefaultRegisterer)

	hwid := service.NewHwidBinder(st)
	sessions := service.NewSessions(st, tokens, cfg.SessionTTL, m)
	keys := service.NewKeys(st, hwid, m, lg)
	admins := service.NewAdmins(st, tokens, lg)

	if *bootstrap {
		if err := admins.Bootstrap(context.Background(), cfg.AdminUsername, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			lg.Fatalw("bootstrap failed", "error", err)
		}
		return
	}

	router := httpserver.NewRouter(httpserver.Services{
		Auth:   service.NewAuth(st, keys, sessions, hwid, auth.VerifyPassword, m, lg),
		Admins: admins,
		Apps:   service.NewApps(st),
		Keys:   keys,
		Users:  service.NewUsers(st, hwid),
		Logs:   service.NewLogs(st),
		Tokens: tokens,
		Store:  st,
	}, lg)

	lg.Infow("listening", "port", cfg.HTTPPort)
	if err := http.ListenAndServe(":"+cfg.HTTPPort, router); err != nil {
		lg.Fatalw("server stopped", "error", err)
	}
}
