package views

import (
	"html/template"

	"github.com/osvaldomontes/kitamanager/blog"
	"github.com/osvaldomontes/kitamanager/repo"
)

// Flash is a one-shot notice carried across a redirect. Kind is "success"
// or "error".
type Flash struct {
	Kind    string
	Message string
}

// Page carries what every screen needs: the title, the CSRF token for its
// forms, pending flashes and the signed-in login (empty when signed out).
type Page struct {
	Title   string
	CSRF    string
	Flashes []Flash
	Login   string
}

type DashboardData struct {
	Page
	Repos []repo.Repository
}

type ManageData struct {
	Page
	Owner   string
	Repo    string
	BlogURL string
	Config  blog.Config
	Posts   []repo.ContentEntry
	// ConfigErr is set when config.toml could not be read or parsed.
	ConfigErr string
}

type ConfigData struct {
	Page
	Config    blog.Config
	GitHub    string
	Website   string
	Languages []string
}

type PostData struct {
	Page
	Post      blog.Post
	Filename  string
	IsNew     bool
	SyntaxCSS template.CSS
}

type CreateRepoData struct {
	Page
	Name          string
	Description   string
	TemplateOwner string
	TemplateRepo  string
}
