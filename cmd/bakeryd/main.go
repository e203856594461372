// Command bakeryd serves the bakery marketplace auth API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/MrEthical07/bakeryauth"
	"github.com/MrEthical07/bakeryauth/account"
	"github.com/MrEthical07/bakeryauth/config"
	"github.com/MrEthical07/bakeryauth/httpapi"
	"github.com/MrEthical07/bakeryauth/internal/stores"
	"github.com/MrEthical07/bakeryauth/mail"
	"github.com/MrEthical07/bakeryauth/metrics/export/prometheus"
	"github.com/MrEthical07/bakeryauth/oauth"
	"github.com/MrEthical07/bakeryauth/password"
	"github.com/MrEthical07/bakeryauth/store/mongostore"
	"github.com/MrEthical07/bakeryauth/upload"
)

const connectTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "path to the YAML settings file")
	printConfig := flag.Bool("print-config", false, "print the effective settings with secrets redacted and exit")
	flag.Parse()

	settings, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bakeryd: %v\n", err)
		os.Exit(1)
	}
	if *printConfig {
		out, err := config.Dump(*settings)
		if err != nil {
			fmt.Fprintf(os.Stderr, "bakeryd: %v\n", err)
			os.Exit(1)
		}
		_, _ = os.Stdout.Write(out)
		return
	}

	log, err := newLogger(settings.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bakeryd: logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(settings, log); err != nil {
		log.Fatal("bakeryd stopped", zap.Error(err))
	}
}

func newLogger(s config.LogSettings) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if s.Development {
		cfg = zap.NewDevelopmentConfig()
	}
	level, err := zap.ParseAtomicLevel(s.Level)
	if err != nil {
		return nil, err
	}
	cfg.Level = level
	return cfg.Build()
}

func run(s *config.Settings, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	mc, err := mongo.Connect(connectCtx, options.Client().ApplyURI(s.Mongo.URI))
	if err != nil {
		return fmt.Errorf("mongo connect: %w", err)
	}
	defer func() {
		dctx, dcancel := context.WithTimeout(context.Background(), connectTimeout)
		defer dcancel()
		_ = mc.Disconnect(dctx)
	}()
	db := mc.Database(s.Mongo.Database)
	if err := mongostore.EnsureIndexes(connectCtx, db); err != nil {
		return err
	}

	var rdb redis.UniversalClient
	if s.Redis.Addr != "" {
		rdb = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{s.Redis.Addr},
			Password: s.Redis.Password,
			DB:       s.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(connectCtx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
	} else {
		log.Warn("redis disabled: rate limiting and google sign-in are off")
	}

	engineCfg := s.EngineConfig()
	hasher, err := password.NewArgon2(password.Config{
		Memory:      engineCfg.Password.Memory,
		Time:        engineCfg.Password.Time,
		Parallelism: engineCfg.Password.Parallelism,
		SaltLength:  engineCfg.Password.SaltLength,
		KeyLength:   engineCfg.Password.KeyLength,
	})
	if err != nil {
		return err
	}

	mailer, err := newMailer(s.Mail, log)
	if err != nil {
		return err
	}

	sinks := bakeryauth.MultiSink{bakeryauth.NewZapSink(log.Named("audit"))}
	var kafkaSink *bakeryauth.KafkaSink
	if len(s.Kafka.Brokers) > 0 {
		kafkaSink = bakeryauth.NewKafkaSink(s.Kafka.Brokers, s.Kafka.Topic, log)
		sinks = append(sinks, kafkaSink)
	}

	builder := bakeryauth.New().
		WithConfig(engineCfg).
		WithUserStore(mongostore.NewUsers(db, hasher)).
		WithOTPStore(mongostore.NewOTPs(db, mailer)).
		WithPasswordHasher(hasher).
		WithLogger(log).
		WithAuditSink(sinks)
	if rdb != nil {
		builder = builder.WithRedis(rdb)
	}
	engine, err := builder.Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}

	storage, assetsDir, err := newStorage(ctx, s.Upload)
	if err != nil {
		return err
	}

	opts := httpapi.Options{
		Engine:            engine,
		Logger:            log,
		Avatars:           upload.NewAvatar(storage),
		AssetsDir:         assetsDir,
		Metrics:           prometheus.NewPrometheusExporter(engine).Handler(),
		RequestsPerMinute: s.Server.RequestsPerMinute,
		CORSOrigins:       s.Server.CORSOrigins,
		BodyLimit:         s.Server.BodyLimitMB << 20,
	}
	if s.Google.ClientID != "" {
		google, err := oauth.NewGoogle(ctx, oauth.GoogleConfig{
			ClientID:     s.Google.ClientID,
			ClientSecret: s.Google.ClientSecret,
			RedirectURL:  s.Google.CallbackURL,
		})
		if err != nil {
			return err
		}
		opts.Google = google
		opts.States = stores.NewOAuthStateStore(rdb, "", stores.DefaultOAuthStateTTL)
		opts.GoogleSuccessRedirect = s.Google.SuccessRedirect
	}

	srv, err := httpapi.New(opts)
	if err != nil {
		return err
	}

	listenErr := make(chan error, 1)
	go func() {
		log.Info("bakeryd listening", zap.String("addr", s.Server.Addr))
		listenErr <- srv.Listen(s.Server.Addr)
	}()

	select {
	case err := <-listenErr:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
		log.Info("shutdown requested")
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), s.Server.ShutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		log.Warn("http shutdown", zap.Error(err))
	}

	engine.Close()
	if kafkaSink != nil {
		if err := kafkaSink.Close(); err != nil {
			log.Warn("kafka close", zap.Error(err))
		}
	}
	log.Info("shutdown completed")
	return nil
}

func newMailer(s config.MailSettings, log *zap.Logger) (account.Mailer, error) {
	if s.Provider == "brevo" {
		return mail.NewBrevo(mail.BrevoConfig{
			APIKey:      s.BrevoAPIKey,
			SenderEmail: s.SenderEmail,
			SenderName:  s.SenderName,
			Timeout:     s.Timeout,
		}, log.Named("mail"))
	}
	log.Warn("mail provider is log: OTP codes are written to the log")
	return mail.NewLogMailer(log.Named("mail")), nil
}

func newStorage(ctx context.Context, s config.UploadSettings) (upload.Storage, string, error) {
	if s.Backend == "s3" {
		st, err := upload.NewS3Storage(ctx, upload.S3Config{
			Region:        s.S3.Region,
			Bucket:        s.S3.Bucket,
			Endpoint:      s.S3.Endpoint,
			PublicBaseURL: s.S3.PublicBaseURL,
		})
		return st, "", err
	}
	st, err := upload.NewDiskStorage(s.Dir, s.PublicPrefix)
	if err != nil {
		return nil, "", err
	}
	return st, st.Root(), nil
}
