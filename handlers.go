package kitamanager

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/osvaldomontes/kitamanager/repo"
	"github.com/osvaldomontes/kitamanager/views"
)

func (a *App) handleIndex(c echo.Context) error {
	if CurrentSession(c).Token != "" {
		return c.Redirect(http.StatusSeeOther, "/dashboard/")
	}
	return Render(c, views.Login(a.page(c, "Sign in")))
}

func (a *App) handleAuth(c echo.Context) error {
	if !a.authLimiter.Allow(c.RealIP()) {
		p := a.page(c, "Sign in")
		p.Flashes = append(p.Flashes, views.Flash{Kind: flashError, Message: "Too many attempts. Try again later."})
		return RenderStatus(c, http.StatusTooManyRequests, views.Login(p))
	}

	token := strings.TrimSpace(c.FormValue("token"))
	if token == "" {
		return a.redirectWithFlash(c, "/", flashError, "Please enter your GitHub token")
	}
	user, err := a.newClient(repo.Credentials{Token: token}).Authenticate(c.Request().Context())
	if err != nil {
		a.logFailure(c, "authenticate", err)
		msg := "Invalid token"
		if repo.KindOf(err) == repo.KindRemoteUnavailable {
			msg = describe(err, "Unable to verify token")
		}
		return a.redirectWithFlash(c, "/", flashError, msg)
	}

	if err := saveSession(c, Session{Token: token, Login: user.Login}); err != nil {
		return err
	}
	a.logger.Info("signed in", zap.String("login", user.Login))
	return c.Redirect(http.StatusSeeOther, "/dashboard/")
}

func (a *App) handleLogout(c echo.Context) error {
	if err := saveSession(c, Session{}); err != nil {
		return err
	}
	return a.redirectWithFlash(c, "/", flashSuccess, "Logged out successfully")
}

func (a *App) handleDashboard(c echo.Context) error {
	p := a.page(c, "Repositories")
	repos, err := a.newClient(CurrentSession(c).Credentials()).ListRepositories(c.Request().Context())
	if err != nil {
		a.logFailure(c, "list repositories", err)
		p.Flashes = append(p.Flashes, views.Flash{Kind: flashError, Message: describe(err, "Unable to list repositories")})
		repos = []repo.Repository{}
	}
	return Render(c, views.Dashboard(views.DashboardData{Page: p, Repos: repos}))
}

func (a *App) handleSelect(c echo.Context) error {
	owner, name, ok := splitFullName(c.FormValue("repo"))
	if !ok {
		return a.redirectWithFlash(c, "/dashboard/", flashError, "Please select a repository")
	}
	s := CurrentSession(c)
	s.RepoOwner, s.RepoName = owner, name
	if err := saveSession(c, s); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/manage/")
}
