package main

import (
	"context"
	stdlog "log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"

	"github.com/jwkoh/maeul-market/internal/auth"
	chathandler "github.com/jwkoh/maeul-market/internal/chat/handler"
	chatrepo "github.com/jwkoh/maeul-market/internal/chat/repo"
	chatservice "github.com/jwkoh/maeul-market/internal/chat/service"
	appconfig "github.com/jwkoh/maeul-market/internal/config"
	"github.com/jwkoh/maeul-market/internal/lib/logger/handlers/slogpretty"
	"github.com/jwkoh/maeul-market/internal/lib/logger/sl"
	"github.com/jwkoh/maeul-market/internal/notifications"
	"github.com/jwkoh/maeul-market/internal/posts"
	"github.com/jwkoh/maeul-market/internal/storage/postgres"
	"github.com/jwkoh/maeul-market/internal/storage/sqlite"
	"github.com/jwkoh/maeul-market/internal/uploads"
	"github.com/jwkoh/maeul-market/internal/users"
	"github.com/jwkoh/maeul-market/internal/ws"
	wshandler "github.com/jwkoh/maeul-market/internal/ws/handler"
	"github.com/jwkoh/maeul-market/internal/ws/hub"
)

const (
	envLocal = "local"
	envDev   = "dev"
)

const (
	viewWindow     = 30 * time.Minute
	viewCacheLimit = 10000
)

func main() {
	if err := godotenv.Load("infra/.env"); err != nil {
		stdlog.Println("No .env file found, skipping...")
	}

	cfg := appconfig.MustLoad()

	log := setupLogger(cfg.Env)
	log.Info("starting maeul-market", slog.String("env", cfg.Env))

	ctx := context.Background()

	db, err := openStorage(ctx, cfg)
	if err != nil {
		log.Error("failed to init storage", sl.Err(err))
		os.Exit(1)
	}

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	h := hub.NewHub()
	go h.Run()

	chatRepo := chatrepo.New(ctx, db)
	postsRepo := posts.NewRepo(db)
	usersRepo := users.NewRepo(db)

	chatService := chatservice.New(chatRepo, postsRepo, ws.NewBroadcaster(h))

	ch := chathandler.New(chatService, log)
	nh := notifications.NewHandler(chatService, log)
	ph := posts.NewHandler(postsRepo, usersRepo, posts.NewViewCache(viewWindow, viewCacheLimit), log)

	uh, err := uploadsHandler(ctx, cfg, log)
	if err != nil {
		log.Error("failed to init uploads", sl.Err(err))
		os.Exit(1)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.URLFormat)

	router.Group(func(r chi.Router) {
		r.Use(auth.Middleware(tokens))

		r.Get("/ws", wshandler.WSHandler(h, chatService, log))

		r.Route("/api", func(r chi.Router) {
			r.Route("/chat", func(r chi.Router) {
				r.Post("/rooms", ch.CreateRoom())
				r.Get("/rooms", ch.GetRooms())
				r.Get("/posts/{postId}/rooms", ch.GetPostRooms())

				r.Route("/rooms/{roomId}", func(r chi.Router) {
					r.Get("/", ch.GetRoom())
					r.Get("/messages", ch.GetMessages())
					r.Post("/messages", ch.SendMessage())
					r.Post("/appointments", ch.CreateAppointment())
					r.Post("/read", ch.MarkRead())
					r.Post("/leave", ch.LeaveRoom())
				})
			})

			r.Get("/posts/{postId}", ph.GetPost())
			r.Get("/notifications/counts", nh.GetCounts())

			r.Post("/uploads/presign-upload", uh.PresignUpload())
			r.Post("/uploads/presign-download", uh.PresignDownload())
		})
	})

	log.Info("starting server", slog.String("address", cfg.HTTPServer.Address))

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	if err := srv.ListenAndServe(); err != nil {
		log.Error("failed to start server", sl.Err(err))
	}

	log.Error("server stopped")
}

func openStorage(ctx context.Context, cfg *appconfig.Config) (*sqlx.DB, error) {
	if cfg.Storage.Driver == "sqlite3" {
		return sqlite.New(cfg.Storage.SQLitePath)
	}
	return postgres.New(ctx, cfg.Storage.DatabaseDSN)
}

func uploadsHandler(ctx context.Context, cfg *appconfig.Config, log *slog.Logger) (*uploads.Handler, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Uploads.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.Uploads.AccessKey, cfg.Uploads.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, err
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Uploads.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Uploads.Endpoint)
			o.UsePathStyle = true
		}
	})

	service := uploads.NewService(cfg.Uploads.Bucket, s3.NewPresignClient(s3Client), cfg.Uploads.PresignTTL)

	return uploads.NewHandler(service, log), nil
}

func setupPrettySlog() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(os.Stdout)

	return slog.New(handler)
}

func setupLogger(env string) *slog.Logger {
	switch env {
	case envLocal:
		return setupPrettySlog()
	case envDev:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	default:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
}
