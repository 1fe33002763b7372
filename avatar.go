package kitamanager

import (
	"errors"

	"github.com/labstack/echo/v4"

	"github.com/osvaldomontes/kitamanager/avatar"
	"github.com/osvaldomontes/kitamanager/blog"
	"github.com/osvaldomontes/kitamanager/repo"
)

// handleAvatar resizes an uploaded picture, commits it as static/avatar.png
// and points the profile at it.
func (a *App) handleAvatar(c echo.Context) error {
	file, err := c.FormFile("avatar")
	if err != nil {
		return a.redirectWithFlash(c, "/manage/", flashError, "Please choose an image")
	}
	if file.Size > avatar.MaxUploadSize {
		return a.redirectWithFlash(c, "/manage/", flashError, "Image too large (max 5 MB)")
	}
	src, err := file.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	data, err := avatar.Process(src)
	if err != nil {
		return a.redirectWithFlash(c, "/manage/", flashError, "Invalid image")
	}

	ctx := c.Request().Context()
	client := a.client(c)
	if err := client.WriteFile(ctx, avatar.Path, string(data), "Update avatar"); err != nil {
		a.logFailure(c, "upload avatar", err)
		return a.redirectWithFlash(c, "/manage/", flashError, describe(err, "Error uploading avatar"))
	}

	text, err := client.ReadFile(ctx, blog.ConfigPath)
	if errors.Is(err, repo.ErrNotFound) {
		return a.redirectWithFlash(c, "/manage/", flashError, "Avatar uploaded but config.toml not found")
	}
	if err == nil {
		text, err = blog.SetKey(text, avatar.URL, "extra", "profile", "avatar_url")
	}
	if err == nil {
		err = client.WriteFile(ctx, blog.ConfigPath, text, "Use uploaded avatar")
	}
	if err != nil {
		a.logFailure(c, "set avatar_url", err)
		return a.redirectWithFlash(c, "/manage/", flashError, describe(err, "Avatar uploaded but configuration not updated"))
	}
	return a.redirectWithFlash(c, "/manage/", flashSuccess, "Avatar updated successfully")
}
