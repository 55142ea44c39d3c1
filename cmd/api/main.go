package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"

	"github.com/ovaphlow/pitchfork/service-notes-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-notes-go/internal/mail"
	"github.com/ovaphlow/pitchfork/service-notes-go/internal/note"
	noterepo "github.com/ovaphlow/pitchfork/service-notes-go/internal/note/repo"
	"github.com/ovaphlow/pitchfork/service-notes-go/internal/revocation"
	"github.com/ovaphlow/pitchfork/service-notes-go/internal/router"
	"github.com/ovaphlow/pitchfork/service-notes-go/internal/user"
	userrepo "github.com/ovaphlow/pitchfork/service-notes-go/internal/user/repo"
	"github.com/ovaphlow/pitchfork/service-notes-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-notes-go/pkg/utilities"
)

func main() {
	// load .env file if present so os.Getenv picks values from it
	_ = godotenv.Load()

	lg, err := utilities.Init(utilities.ConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()
	sugar := lg.Sugar()

	authCfg := auth.ConfigFromEnv()
	if err := authCfg.Validate(); err != nil {
		sugar.Fatalf("auth config: %v", err)
	}
	httpCfg := router.ConfigFromEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sugar.Info("starting service-notes-go")

	sqlDB, err := database.ConnectWithRetry(ctx, database.ConfigFromEnv(), sugar)
	if err != nil {
		sugar.Fatalf("db connect: %v", err)
	}
	db := sqlx.NewDb(sqlDB, "postgres")
	defer db.Close()

	users := userrepo.NewUserRepo(db)
	notes := noterepo.NewNoteRepo(db)
	if err := users.EnsureTable(ctx); err != nil {
		sugar.Fatalf("ensure users table: %v", err)
	}
	if err := notes.EnsureTable(ctx); err != nil {
		sugar.Fatalf("ensure notes table: %v", err)
	}

	var mailer auth.Mailer = mail.Disabled{}
	if mailCfg := mail.ConfigFromEnv(); mailCfg.Enabled() {
		mailer = mail.NewSMTPMailer(mailCfg)
	} else {
		sugar.Warn("SMTP_SERVER not set; verification emails will not be delivered")
	}

	var revocations auth.RevocationStore
	revCfg := revocation.ConfigFromEnv(authCfg.SessionTTL)
	if revCfg.URL != "" {
		rs, err := revocation.NewRedisStore(ctx, revCfg)
		if err != nil {
			sugar.Fatalf("revocation store: %v", err)
		}
		defer rs.Close()
		revocations = rs
	} else {
		sugar.Info("REDIS_URL not set; session revocation is local to this process")
		revocations = revocation.NewMemoryStore()
	}

	hasher := auth.NewBcryptHasher(authCfg.BcryptCost)
	tokens := auth.NewTokenService(authCfg.Secret,
		auth.WithIDGenerator(utilities.NewIDGenerator(utilities.NodeIDFromEnv())))
	authSvc := auth.NewService(authCfg, users, hasher, tokens, mailer, sugar, auth.WithRevocations(revocations))
	resolver := auth.NewResolver(tokens, users, revocations)

	handler := router.RegisterRoutes(router.Deps{
		Config:     httpCfg,
		Logger:     sugar,
		DB:         db,
		Resolver:   resolver,
		CookieName: authCfg.CookieName,
		Auth:       auth.NewHandler(authSvc, authCfg, sugar),
		Users:      user.NewHandler(user.NewUserService(users, hasher, authSvc, sugar), sugar),
		Notes:      note.NewHandler(note.NewService(notes, sugar), authCfg.ConcealForbidden, sugar),
	})
	srv := &http.Server{
		Addr:              httpCfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		sugar.Infow("http server listening", "addr", httpCfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugar.Fatalf("http server failed: %v", err)
		}
	}()

	<-ctx.Done()
	sugar.Info("shutting down")

	doneCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}
	sugar.Info("goodbye")
}
