package kitamanager

import (
	"errors"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/osvaldomontes/kitamanager/blog"
	"github.com/osvaldomontes/kitamanager/preview"
	"github.com/osvaldomontes/kitamanager/repo"
	"github.com/osvaldomontes/kitamanager/views"
)

var languages = []string{"en", "fa", "ar", "he", "ur", "de", "es", "fr"}

func (a *App) client(c echo.Context) RepoClient {
	return a.newClient(CurrentSession(c).Credentials())
}

func (a *App) handleManage(c echo.Context) error {
	s := CurrentSession(c)
	ctx := c.Request().Context()
	client := a.client(c)

	data := views.ManageData{
		Page:    a.page(c, s.RepoOwner+"/"+s.RepoName),
		Owner:   s.RepoOwner,
		Repo:    s.RepoName,
		BlogURL: BlogURL(s.RepoOwner, s.RepoName),
	}

	text, err := client.ReadFile(ctx, blog.ConfigPath)
	if err != nil {
		a.logFailure(c, "read config", err)
		data.ConfigErr = describe(err, "Unable to read config.toml")
	} else if data.Config, err = blog.ParseConfig(text); err != nil {
		data.ConfigErr = "Error parsing config.toml"
	}

	posts, err := client.ListContentFiles(ctx)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		posts = []repo.ContentEntry{}
	case err != nil:
		a.logFailure(c, "list posts", err)
		data.Flashes = append(data.Flashes, views.Flash{Kind: flashError, Message: describe(err, "Unable to list posts")})
	}
	data.Posts = posts
	return Render(c, views.Manage(data))
}

// loadConfig reads config.toml, starting from the defaults when the file is
// missing or no longer parses.
func (a *App) loadConfig(c echo.Context) (blog.Config, error) {
	text, err := a.client(c).ReadFile(c.Request().Context(), blog.ConfigPath)
	if errors.Is(err, repo.ErrNotFound) {
		return blog.DefaultConfig(), nil
	}
	if err != nil {
		return blog.Config{}, err
	}
	cfg, err := blog.ParseConfig(text)
	if err != nil {
		a.logger.Warn("config.toml does not parse, editing defaults", zap.Error(err))
		return blog.DefaultConfig(), nil
	}
	return cfg, nil
}

func (a *App) handleConfigForm(c echo.Context) error {
	cfg, err := a.loadConfig(c)
	if err != nil {
		a.logFailure(c, "read config", err)
		return a.redirectWithFlash(c, "/manage/", flashError, describe(err, "Unable to read config.toml"))
	}
	langs := languages
	if cfg.DefaultLanguage != "" && !slices.Contains(langs, cfg.DefaultLanguage) {
		langs = append(slices.Clone(langs), cfg.DefaultLanguage)
	}
	return Render(c, views.EditConfig(views.ConfigData{
		Page:      a.page(c, "Configuration"),
		Config:    cfg,
		GitHub:    cfg.SocialURL("github"),
		Website:   cfg.SocialURL("www"),
		Languages: langs,
	}))
}

func (a *App) handleConfigSave(c echo.Context) error {
	cfg, err := a.loadConfig(c)
	if err != nil {
		a.logFailure(c, "read config", err)
		return a.redirectWithFlash(c, "/config/", flashError, describe(err, "Error saving configuration"))
	}
	applyConfigForm(c, &cfg)

	text, err := cfg.Encode()
	if err != nil {
		return err
	}
	if err := a.client(c).WriteFile(c.Request().Context(), blog.ConfigPath, text, "Update blog configuration"); err != nil {
		a.logFailure(c, "save config", err)
		return a.redirectWithFlash(c, "/config/", flashError, describe(err, "Error saving configuration"))
	}
	return a.redirectWithFlash(c, "/manage/", flashSuccess, "Configuration saved successfully")
}

func applyConfigForm(c echo.Context, cfg *blog.Config) {
	field := func(name string) string { return strings.TrimSpace(c.FormValue(name)) }
	checked := func(name string) bool { return c.FormValue(name) != "" }

	cfg.Title = field("title")
	cfg.Description = field("description")
	cfg.Author = field("author")
	cfg.BaseURL = field("base_url")
	if lang := field("default_language"); lang != "" {
		cfg.DefaultLanguage = lang
	}
	cfg.GenerateFeeds = checked("generate_feeds")
	cfg.Markdown.HighlightCode = checked("highlight_code")
	if theme := field("highlight_theme"); theme != "" {
		cfg.Markdown.HighlightTheme = theme
	}

	cfg.Extra.Math = checked("math")
	cfg.Extra.Mermaid = checked("mermaid")
	cfg.Extra.Comment = checked("comment")
	cfg.Extra.Profile.Name = field("profile_name")
	cfg.Extra.Profile.Bio = field("profile_bio")
	if avatar := field("avatar_url"); avatar != "" {
		cfg.Extra.Profile.AvatarURL = avatar
	}
	cfg.Extra.Profile.AvatarInvert = checked("avatar_invert")
	cfg.SetSocialURL("github", field("github"))
	cfg.SetSocialURL("www", field("website"))

	if since, err := strconv.Atoi(field("footer_since")); err == nil {
		cfg.Extra.Footer.Since = since
	}
	cfg.Extra.Footer.License = field("footer_license")
	cfg.Extra.Footer.LicenseURL = field("footer_license_url")

	cfg.ApplyLanguageDirection()
}

func (a *App) postForm(c echo.Context, d views.PostData) error {
	d.Page = a.page(c, "Post")
	d.SyntaxCSS = preview.StyleSheet(preview.DefaultTheme)
	return Render(c, views.PostForm(d))
}

func (a *App) handleNewPostForm(c echo.Context) error {
	return a.postForm(c, views.PostData{IsNew: true, Post: blog.NewPost("", "", "", "", a.now())})
}

func (a *App) handleNewPost(c echo.Context) error {
	post := blog.NewPost(
		strings.TrimSpace(c.FormValue("title")),
		strings.TrimSpace(c.FormValue("description")),
		c.FormValue("tags"),
		c.FormValue("content"),
		a.now(),
	)
	filename := blog.PostFilename(post.Title)
	if filename == "" {
		return a.redirectWithFlash(c, "/posts/new/", flashError, "Title must contain letters or digits")
	}
	path, err := blog.PostPath(filename)
	if err != nil {
		return a.redirectWithFlash(c, "/posts/new/", flashError, "Error creating post")
	}
	text, err := post.Encode()
	if err != nil {
		return err
	}
	if err := a.client(c).WriteFile(c.Request().Context(), path, text, "Add new post: "+post.Title); err != nil {
		a.logFailure(c, "create post", err)
		if err := addFlash(c, flashError, describe(err, "Error creating post")); err != nil {
			return err
		}
		return a.postForm(c, views.PostData{IsNew: true, Post: post})
	}
	return a.redirectWithFlash(c, "/manage/", flashSuccess, "New post created successfully")
}

// postParam returns the validated filename route parameter and its
// repository path.
func postParam(c echo.Context) (name, path string, ok bool) {
	name, err := url.PathUnescape(c.Param("filename"))
	if err != nil {
		return "", "", false
	}
	path, err = blog.PostPath(name)
	if err != nil {
		return "", "", false
	}
	return name, path, true
}

func (a *App) handleEditPostForm(c echo.Context) error {
	name, path, ok := postParam(c)
	if !ok {
		return a.redirectWithFlash(c, "/manage/", flashError, "File not found")
	}
	text, err := a.client(c).ReadFile(c.Request().Context(), path)
	if err != nil {
		a.logFailure(c, "read post", err)
		msg := describe(err, "Unable to read post")
		if errors.Is(err, repo.ErrNotFound) {
			msg = "File not found"
		}
		return a.redirectWithFlash(c, "/manage/", flashError, msg)
	}
	post, err := blog.ParsePost(text)
	if err != nil {
		return a.redirectWithFlash(c, "/manage/", flashError, "Error parsing file")
	}
	return a.postForm(c, views.PostData{Post: post, Filename: name})
}

func (a *App) handleUpdatePost(c echo.Context) error {
	name, path, ok := postParam(c)
	if !ok {
		return a.redirectWithFlash(c, "/manage/", flashError, "File not found")
	}
	post := blog.NewPost(
		strings.TrimSpace(c.FormValue("title")),
		strings.TrimSpace(c.FormValue("description")),
		c.FormValue("tags"),
		c.FormValue("content"),
		a.now(),
	)
	// The original publication date survives edits.
	if date := strings.TrimSpace(c.FormValue("date")); date != "" {
		if _, err := time.Parse(blog.DateLayout, date); err == nil {
			post.Date = date
		}
	}
	text, err := post.Encode()
	if err != nil {
		return err
	}
	if err := a.client(c).WriteFile(c.Request().Context(), path, text, "Update post: "+post.Title); err != nil {
		a.logFailure(c, "update post", err)
		if err := addFlash(c, flashError, describe(err, "Error updating post")); err != nil {
			return err
		}
		return a.postForm(c, views.PostData{Post: post, Filename: name})
	}
	return a.redirectWithFlash(c, "/manage/", flashSuccess, "Post updated successfully")
}

func (a *App) handleDeletePost(c echo.Context) error {
	name, path, ok := postParam(c)
	if !ok {
		return a.redirectWithFlash(c, "/manage/", flashError, "File not found")
	}
	if err := a.client(c).DeleteFile(c.Request().Context(), path, "Delete post: "+name); err != nil {
		a.logFailure(c, "delete post", err)
		msg := describe(err, "Error deleting post")
		if errors.Is(err, repo.ErrNotFound) {
			msg = "File not found"
		}
		return a.redirectWithFlash(c, "/manage/", flashError, msg)
	}
	return a.redirectWithFlash(c, "/manage/", flashSuccess, "Post deleted successfully")
}

func (a *App) handlePreview(c echo.Context) error {
	return Render(c, views.Preview(c.FormValue("content")))
}
