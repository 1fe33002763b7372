package kitamanager

import (
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"

	"github.com/osvaldomontes/kitamanager/repo"
	"github.com/osvaldomontes/kitamanager/views"
)

const sessionName = "kitamanager_session"

const (
	keyToken     = "token"
	keyLogin     = "login"
	keyRepoOwner = "repo_owner"
	keyRepoName  = "repo_name"
)

const (
	flashSuccess = "success"
	flashError   = "error"
)

// getSession returns the request's session. A cookie that no longer decodes,
// for example after the secret changed, yields a fresh session.
func getSession(c echo.Context) (*sessions.Session, error) {
	sess, err := session.Get(sessionName, c)
	if sess != nil {
		return sess, nil
	}
	return nil, err
}

// Session is what the server remembers about a signed-in user between
// requests.
type Session struct {
	Token     string
	Login     string
	RepoOwner string
	RepoName  string
}

// HasRepo reports whether a repository has been selected.
func (s Session) HasRepo() bool {
	return s.Token != "" && s.RepoOwner != "" && s.RepoName != ""
}

// Credentials binds the session to a client.
func (s Session) Credentials() repo.Credentials {
	return repo.Credentials{Token: s.Token, Owner: s.RepoOwner, Repo: s.RepoName}
}

// CurrentSession reads the session of the request. A missing or unreadable
// cookie yields the zero Session.
func CurrentSession(c echo.Context) Session {
	sess, err := getSession(c)
	if err != nil {
		return Session{}
	}
	str := func(key string) string {
		v, _ := sess.Values[key].(string)
		return v
	}
	return Session{
		Token:     str(keyToken),
		Login:     str(keyLogin),
		RepoOwner: str(keyRepoOwner),
		RepoName:  str(keyRepoName),
	}
}

// saveSession replaces the stored session values with s, keeping pending
// flashes.
func saveSession(c echo.Context, s Session) error {
	sess, err := getSession(c)
	if err != nil {
		return err
	}
	for key, val := range map[string]string{
		keyToken:     s.Token,
		keyLogin:     s.Login,
		keyRepoOwner: s.RepoOwner,
		keyRepoName:  s.RepoName,
	} {
		if val == "" {
			delete(sess.Values, key)
		} else {
			sess.Values[key] = val
		}
	}
	return sess.Save(c.Request(), c.Response())
}

func addFlash(c echo.Context, kind, message string) error {
	sess, err := getSession(c)
	if err != nil {
		return err
	}
	sess.AddFlash(message, kind)
	return sess.Save(c.Request(), c.Response())
}

// popFlashes returns and clears the pending flashes, errors first.
func popFlashes(c echo.Context) []views.Flash {
	sess, err := getSession(c)
	if err != nil {
		return nil
	}
	var out []views.Flash
	for _, kind := range []string{flashError, flashSuccess} {
		for _, f := range sess.Flashes(kind) {
			if msg, ok := f.(string); ok {
				out = append(out, views.Flash{Kind: kind, Message: msg})
			}
		}
	}
	if len(out) > 0 {
		_ = sess.Save(c.Request(), c.Response())
	}
	return out
}

func (a *App) redirectWithFlash(c echo.Context, to, kind, message string) error {
	if err := addFlash(c, kind, message); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, to)
}

// page builds the common view data for the current request.
func (a *App) page(c echo.Context, title string) views.Page {
	return views.Page{
		Title:   title,
		CSRF:    CsrfToken(c),
		Flashes: popFlashes(c),
		Login:   CurrentSession(c).Login,
	}
}
