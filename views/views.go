// Package views holds the admin screens. Pages are html/template files
// embedded in the binary and exposed as templ components so handlers render
// them the same way as any other component.
package views

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"
	"net/url"

	"github.com/a-h/templ"

	"github.com/osvaldomontes/kitamanager/preview"
)

//go:embed templates/*.html
var templateFS embed.FS

var funcs = template.FuncMap{
	"pathEscape": url.PathEscape,
	"kb": func(n int) string {
		return fmt.Sprintf("%.1f KB", float64(n)/1024)
	},
}

var pages = map[string]*template.Template{}

func init() {
	for _, name := range []string{
		"login.html", "dashboard.html", "manage.html", "config.html",
		"post.html", "create_repo.html", "not_found.html", "server_error.html",
	} {
		pages[name] = template.Must(template.New("layout.html").Funcs(funcs).
			ParseFS(templateFS, "templates/layout.html", "templates/"+name))
	}
}

func page(name string, data any) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return pages[name].ExecuteTemplate(w, "layout.html", data)
	})
}

func Login(p Page) templ.Component { return page("login.html", p) }

func Dashboard(d DashboardData) templ.Component { return page("dashboard.html", d) }

func Manage(d ManageData) templ.Component { return page("manage.html", d) }

func EditConfig(d ConfigData) templ.Component { return page("config.html", d) }

// PostForm renders the editor for a new or existing post.
func PostForm(d PostData) templ.Component { return page("post.html", d) }

func CreateRepo(d CreateRepoData) templ.Component { return page("create_repo.html", d) }

func NotFound() templ.Component { return page("not_found.html", Page{Title: "Not found"}) }

func ServerError() templ.Component { return page("server_error.html", Page{Title: "Error"}) }

// Preview is the fragment the editor swaps into its preview pane.
func Preview(md string) templ.Component { return preview.Component(md) }
