// Package kitamanager is a web admin for Zola blogs built on the kita theme
// and hosted in GitHub repositories. A user signs in with a personal access
// token, picks or provisions a blog repository, and edits its config.toml
// and posts; every change is a commit made through the GitHub REST API.
//
// The server keeps no storage of its own. The token and the selected
// repository live in an encrypted session cookie.
package kitamanager

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/osvaldomontes/kitamanager/repo"
)

// RepoClient is the set of GitHub operations the handlers need. *repo.Client
// implements it.
type RepoClient interface {
	Authenticate(ctx context.Context) (repo.User, error)
	ListRepositories(ctx context.Context) ([]repo.Repository, error)
	ReadFile(ctx context.Context, path string) (string, error)
	WriteFile(ctx context.Context, path, content, message string) error
	DeleteFile(ctx context.Context, path, message string) error
	ListContentFiles(ctx context.Context) ([]repo.ContentEntry, error)
	CreateRepositoryFromTemplate(ctx context.Context, name, description, templateOwner, templateRepo string) (repo.Repository, error)
	WaitForRepository(ctx context.Context, name, readyPath string, policy repo.PollPolicy) error
	GrantActionSecret(ctx context.Context) error
	DeleteRepository(ctx context.Context, name string) error
}

// ClientFactory builds a client bound to one set of credentials. A new client
// is built per request from the session.
type ClientFactory func(repo.Credentials) RepoClient

// App is the central kitamanager application. It wires together the
// session, the GitHub client, middleware and handlers.
type App struct {
	Config SiteConfig
	Echo   *echo.Echo

	logger      *zap.Logger
	newClient   ClientFactory
	now         func() time.Time
	authLimiter *AuthLimiter
	ready       bool
}

// New creates a new App with the given configuration.
func New(cfg SiteConfig, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config: cfg,
		Echo:   echo.New(),
		logger: zap.NewNop(),
		now:    time.Now,
	}
	a.Echo.HideBanner = true
	a.Echo.HidePort = true

	for _, opt := range opts {
		opt(a)
	}
	if a.newClient == nil {
		a.newClient = a.githubClient
	}
	return a
}

func (a *App) githubClient(creds repo.Credentials) RepoClient {
	return repo.New(creds,
		repo.WithBaseURL(a.Config.APIBaseURL),
		repo.WithHTTPClient(&http.Client{Timeout: a.Config.APITimeout}),
		repo.WithLogger(a.logger.Named("repo")),
	)
}

// Setup validates the configuration and installs middleware and routes. It
// is called by Start and may be called directly to serve a.Echo from a test
// server. Calling it twice is a no-op.
func (a *App) Setup() error {
	if a.ready {
		return nil
	}
	if a.Config.SessionSecret == "" {
		return fmt.Errorf("kitamanager: SessionSecret is required")
	}
	a.authLimiter = NewAuthLimiter(a.Config.AuthRate, a.Config.AuthBurst)

	a.setupMiddleware()
	a.setupRoutes()
	a.ready = true
	return nil
}

// Start sets the app up and serves until the server is shut down.
func (a *App) Start() error {
	if err := a.Setup(); err != nil {
		return err
	}
	a.logger.Info("listening", zap.String("addr", a.Config.Addr))
	if err := a.Echo.Start(a.Config.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server, waiting for in-flight requests until ctx ends.
func (a *App) Shutdown(ctx context.Context) error {
	return a.Echo.Shutdown(ctx)
}

func (a *App) setupRoutes() {
	e := a.Echo

	embeddedFS, _ := fs.Sub(EmbeddedAssets, "embedded")
	e.GET("/assets/*", echo.WrapHandler(http.StripPrefix("/assets/", http.FileServer(http.FS(embeddedFS)))))

	e.GET("/", a.handleIndex)
	e.POST("/auth/", a.handleAuth)
	e.POST("/logout/", a.handleLogout)

	signedIn := []echo.MiddlewareFunc{a.requireToken}
	e.GET("/dashboard/", a.handleDashboard, signedIn...)
	e.POST("/select/", a.handleSelect, signedIn...)
	e.GET("/repos/new/", a.handleCreateRepoForm, signedIn...)
	e.POST("/repos/new/", a.handleCreateRepo, signedIn...)
	e.POST("/preview/", a.handlePreview, signedIn...)

	managing := []echo.MiddlewareFunc{a.requireToken, a.requireRepo}
	e.GET("/manage/", a.handleManage, managing...)
	e.GET("/config/", a.handleConfigForm, managing...)
	e.POST("/config/", a.handleConfigSave, managing...)
	e.GET("/posts/new/", a.handleNewPostForm, managing...)
	e.POST("/posts/new/", a.handleNewPost, managing...)
	e.GET("/posts/:filename/", a.handleEditPostForm, managing...)
	e.POST("/posts/:filename/", a.handleUpdatePost, managing...)
	e.POST("/posts/:filename/delete/", a.handleDeletePost, managing...)
	e.POST("/avatar/", a.handleAvatar, managing...)
	e.POST("/repos/delete/", a.handleDeleteRepo, managing...)
}
