package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/MrEthical07/bakeryauth"
	"github.com/MrEthical07/bakeryauth/middleware"
	"github.com/MrEthical07/bakeryauth/oauth"
)

const defaultBodyLimit = 4 << 20

// GoogleProvider runs the Google authorization-code flow.
type GoogleProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (oauth.Profile, error)
}

// StateStore keeps single-use OAuth state values.
type StateStore interface {
	Save(ctx context.Context, state string) error
	Consume(ctx context.Context, state string) error
}

// AvatarProcessor validates and stores a profile picture and returns its URL.
type AvatarProcessor interface {
	Process(ctx context.Context, contentType string, data []byte) (string, error)
}

// Options wires the server. Engine is required.
type Options struct {
	Engine *bakeryauth.Engine
	Logger *zap.Logger

	Google GoogleProvider
	States StateStore
	// GoogleSuccessRedirect receives the browser after a Google login. The
	// access token is passed in the URL fragment. Empty means answer JSON.
	GoogleSuccessRedirect string

	Avatars AvatarProcessor
	// AssetsDir is served under /api/assets when avatars are kept on disk.
	AssetsDir string

	Metrics http.Handler

	RequestsPerMinute int
	CORSOrigins       string
	BodyLimit         int
}

type Server struct {
	app     *fiber.App
	engine  *bakeryauth.Engine
	log     *zap.Logger
	limiter *middleware.IPRateLimiter

	google          GoogleProvider
	states          StateStore
	successRedirect string
	avatars         AvatarProcessor
}

func New(opts Options) (*Server, error) {
	if opts.Engine == nil {
		return nil, errors.New("httpapi: engine is required")
	}
	if opts.Google != nil && opts.States == nil {
		return nil, errors.New("httpapi: google sign-in requires a state store")
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	bodyLimit := opts.BodyLimit
	if bodyLimit <= 0 {
		bodyLimit = defaultBodyLimit
	}

	s := &Server{
		engine:          opts.Engine,
		log:             log,
		limiter:         middleware.NewIPRateLimiter(opts.RequestsPerMinute, log),
		google:          opts.Google,
		states:          opts.States,
		successRedirect: opts.GoogleSuccessRedirect,
		avatars:         opts.Avatars,
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "bakeryauth",
		BodyLimit:             bodyLimit,
		DisableStartupMessage: true,
		ErrorHandler:          s.errorHandler,
	})

	corsCfg := cors.Config{AllowOrigins: "*"}
	if opts.CORSOrigins != "" {
		corsCfg = cors.Config{AllowOrigins: opts.CORSOrigins, AllowCredentials: true}
	}
	s.app.Use(recover.New())
	s.app.Use(cors.New(corsCfg))
	s.app.Use(middleware.RequestLogger(log))
	s.app.Use(middleware.RequestContext())

	if opts.Metrics != nil {
		s.app.Get("/metrics", adaptor.HTTPHandler(opts.Metrics))
	}

	api := s.app.Group("/api", s.limiter.Handler())
	api.Get("/ping", s.ping)
	if opts.AssetsDir != "" {
		api.Static("/assets", opts.AssetsDir)
	}
	s.routes(api.Group("/auth"))

	api.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(middleware.Envelope{Success: false, Message: "Requested resource not found"})
	})

	return s, nil
}

func (s *Server) routes(r fiber.Router) {
	auth := middleware.RequireAuth(s.engine)

	r.Post("/register", s.register)
	r.Post("/login", s.login)
	r.Get("/google", s.googleRedirect)
	r.Get("/google/callback", s.googleCallback)
	r.Post("/verify-otp", s.verifyOTP)
	r.Post("/resend-otp", s.resendOTP)
	r.Post("/forgot-password", s.forgotPassword)
	r.Post("/reset-password", s.resetPassword)
	r.Get("/me", auth, s.me)
	r.Put("/me/avatar", auth, s.updateAvatar)
	r.Post("/refresh", s.refresh)
	r.Post("/logout", auth, s.logout)
}

// App exposes the fiber app, mainly for app.Test.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown drains in-flight requests and stops the rate limiter sweeper.
func (s *Server) Shutdown(ctx context.Context) error {
	defer s.limiter.Close()
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) ping(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(middleware.Envelope{Success: true, Message: "Server is running"})
}

// fail logs internal failures and renders err.
func (s *Server) fail(c *fiber.Ctx, err error) error {
	if bakeryauth.KindOf(err) == bakeryauth.KindInternal {
		s.log.Error("request failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
	}
	return middleware.WriteError(c, err)
}

func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(middleware.Envelope{Success: false, Error: fe.Message})
	}
	return s.fail(c, err)
}
