package kitamanager

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/osvaldomontes/kitamanager/repo"
	"github.com/osvaldomontes/kitamanager/views"
)

// Render writes a templ component as an HTTP 200 HTML response.
func Render(c echo.Context, cmp templ.Component) error {
	return RenderStatus(c, http.StatusOK, cmp)
}

// RenderStatus writes a templ component with a specific HTTP status code.
func RenderStatus(c echo.Context, code int, cmp templ.Component) error {
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(code)
	return cmp.Render(c.Request().Context(), c.Response().Writer)
}

// BlogURL is where GitHub Pages publishes a repository.
func BlogURL(owner, name string) string {
	return fmt.Sprintf("https://%s.github.io/%s", owner, name)
}

// splitFullName splits "owner/name".
func splitFullName(full string) (owner, name string, ok bool) {
	owner, name, ok = strings.Cut(strings.TrimSpace(full), "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", false
	}
	return owner, name, true
}

// describe turns a failed remote operation into the notice shown to the user.
// fallback is used for failures without a more specific explanation.
func describe(err error, fallback string) string {
	switch repo.KindOf(err) {
	case repo.KindUnauthenticated:
		return "GitHub rejected the token. Sign in again."
	case repo.KindConflict:
		return "The file changed on GitHub, reload and try again"
	case repo.KindRemoteUnavailable:
		return fallback + ": GitHub is unavailable, try again later"
	case repo.KindEncryptionUnavailable:
		return fallback + ": the token could not be stored as a secret"
	default:
		return fallback
	}
}

// logFailure records a failed operation with its classification.
func (a *App) logFailure(c echo.Context, msg string, err error) {
	a.logger.Warn(msg,
		zap.String("uri", c.Request().RequestURI),
		zap.String("kind", repo.KindOf(err).String()),
		zap.Error(err),
	)
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	he, ok := err.(*echo.HTTPError)
	if ok && he.Code == http.StatusNotFound {
		_ = RenderStatus(c, http.StatusNotFound, views.NotFound())
		return
	}
	code := http.StatusInternalServerError
	if ok {
		code = he.Code
	}
	if code >= 500 {
		a.logger.Error("server error", zap.String("uri", c.Request().RequestURI), zap.Error(err))
		_ = RenderStatus(c, code, views.ServerError())
		return
	}
	a.Echo.DefaultHTTPErrorHandler(err, c)
}
