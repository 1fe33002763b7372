package kitamanager

import (
	"errors"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/osvaldomontes/kitamanager/blog"
	"github.com/osvaldomontes/kitamanager/repo"
	"github.com/osvaldomontes/kitamanager/views"
)

func (a *App) handleCreateRepoForm(c echo.Context) error {
	return Render(c, views.CreateRepo(views.CreateRepoData{
		Page:          a.page(c, "New blog"),
		TemplateOwner: a.Config.TemplateOwner,
		TemplateRepo:  a.Config.TemplateRepo,
	}))
}

// handleCreateRepo provisions a blog: it generates a repository from the
// template, waits until config.toml is readable, stores the token as the
// deploy secret and points base_url at GitHub Pages. Failures after the
// repository exists are reported but do not undo it.
func (a *App) handleCreateRepo(c echo.Context) error {
	ctx := c.Request().Context()
	s := CurrentSession(c)

	name := strings.TrimSpace(c.FormValue("name"))
	description := strings.TrimSpace(c.FormValue("description"))
	if name == "" {
		return a.redirectWithFlash(c, "/repos/new/", flashError, "Repository name is required")
	}

	login := s.Login
	if login == "" {
		user, err := a.newClient(repo.Credentials{Token: s.Token}).Authenticate(ctx)
		if err != nil {
			a.logFailure(c, "authenticate", err)
			return a.redirectWithFlash(c, "/repos/new/", flashError, "Unable to get user information")
		}
		login = user.Login
	}

	created, err := a.newClient(repo.Credentials{Token: s.Token, Owner: login}).
		CreateRepositoryFromTemplate(ctx, name, description, a.Config.TemplateOwner, a.Config.TemplateRepo)
	if err != nil {
		a.logFailure(c, "create repository", err)
		return a.redirectWithFlash(c, "/repos/new/", flashError, describe(err, "Error creating repository"))
	}
	owner := login
	if created.Owner != "" {
		owner = created.Owner
	}
	if created.Name != "" {
		name = created.Name
	}
	a.logger.Info("repository created", zap.String("owner", owner), zap.String("repo", name))

	client := a.newClient(repo.Credentials{Token: s.Token, Owner: owner, Repo: name})
	if err := client.WaitForRepository(ctx, name, blog.ConfigPath, a.Config.pollPolicy()); err != nil {
		a.logFailure(c, "wait for repository", err)
		msg := describe(err, "Repository created but not ready yet")
		if errors.Is(err, repo.ErrNotFound) {
			msg = "Repository created but config.toml not found"
		}
		return a.redirectWithFlash(c, "/dashboard/", flashError, msg)
	}

	if err := client.GrantActionSecret(ctx); err != nil {
		a.logFailure(c, "grant action secret", err)
		if err := addFlash(c, flashError, describe(err, "Unable to store the deploy secret")); err != nil {
			return err
		}
	}

	if err := a.setBaseURL(c, client, BlogURL(owner, name)); err != nil {
		a.logFailure(c, "set base_url", err)
		if err := addFlash(c, flashError, describe(err, "Unable to update base_url")); err != nil {
			return err
		}
	}

	s.RepoOwner, s.RepoName, s.Login = owner, name, login
	if err := saveSession(c, s); err != nil {
		return err
	}
	return a.redirectWithFlash(c, "/manage/", flashSuccess, "Repository created successfully")
}

func (a *App) setBaseURL(c echo.Context, client RepoClient, url string) error {
	ctx := c.Request().Context()
	text, err := client.ReadFile(ctx, blog.ConfigPath)
	if err != nil {
		return err
	}
	patched, err := blog.SetBaseURL(text, url)
	if err != nil {
		return err
	}
	return client.WriteFile(ctx, blog.ConfigPath, patched, "Set base_url to "+url)
}

func (a *App) handleDeleteRepo(c echo.Context) error {
	s := CurrentSession(c)
	if err := a.client(c).DeleteRepository(c.Request().Context(), s.RepoName); err != nil {
		a.logFailure(c, "delete repository", err)
		return a.redirectWithFlash(c, "/manage/", flashError, describe(err, "Error deleting repository"))
	}
	a.logger.Info("repository deleted", zap.String("owner", s.RepoOwner), zap.String("repo", s.RepoName))

	s.RepoOwner, s.RepoName = "", ""
	if err := saveSession(c, s); err != nil {
		return err
	}
	return a.redirectWithFlash(c, "/dashboard/", flashSuccess, "Repository deleted successfully")
}
