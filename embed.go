package kitamanager

import "embed"

// EmbeddedAssets contains the stylesheet shared by every admin page,
// served under /assets/.
//
//go:embed embedded/*
var EmbeddedAssets embed.FS
