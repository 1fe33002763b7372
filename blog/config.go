// Package blog models the files of a Zola blog repository: config.toml and
// the posts under content/. Everything is encoded with a TOML encoder, never
// assembled by string interpolation.
package blog

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

// ConfigPath is the location of the site configuration in the repository.
const ConfigPath = "config.toml"

// Config is the site configuration of the kita theme.
type Config struct {
	BaseURL         string     `toml:"base_url"`
	Title           string     `toml:"title"`
	Description     string     `toml:"description"`
	Author          string     `toml:"author"`
	DefaultLanguage string     `toml:"default_language"`
	GenerateFeeds   bool       `toml:"generate_feeds"`
	FeedFilenames   []string   `toml:"feed_filenames"`
	Taxonomies      []Taxonomy `toml:"taxonomies"`
	Markdown        Markdown   `toml:"markdown"`
	Extra           Extra      `toml:"extra"`
}

type Taxonomy struct {
	Name       string `toml:"name"`
	RSS        bool   `toml:"rss"`
	PaginateBy int    `toml:"paginate_by"`
}

type Markdown struct {
	HighlightCode          bool     `toml:"highlight_code"`
	ExtraSyntaxesAndThemes []string `toml:"extra_syntaxes_and_themes"`
	HighlightTheme         string   `toml:"highlight_theme"`
}

type Extra struct {
	Math        bool           `toml:"math"`
	Mermaid     bool           `toml:"mermaid"`
	Comment     bool           `toml:"comment"`
	SocialImage string         `toml:"social_image"`
	Style       map[string]any `toml:"style"`
	Profile     Profile        `toml:"profile"`
	Menu        []Link         `toml:"menu"`
	Footer      Footer         `toml:"footer"`
	Direction   *Direction     `toml:"direction,omitempty"`
}

type Profile struct {
	Name         string `toml:"name"`
	Bio          string `toml:"bio"`
	AvatarURL    string `toml:"avatar_url"`
	AvatarInvert bool   `toml:"avatar_invert"`
	Social       []Link `toml:"social"`
}

// Link is a name/url pair used by the profile social list and the menu.
type Link struct {
	Name string `toml:"name"`
	URL  string `toml:"url"`
}

type Footer struct {
	Since      int    `toml:"since"`
	License    string `toml:"license"`
	LicenseURL string `toml:"license_url"`
}

type Direction struct {
	Direction string `toml:"direction"`
}

// DefaultConfig returns the settings a fresh kita blog starts with.
func DefaultConfig() Config {
	return Config{
		DefaultLanguage: "en",
		GenerateFeeds:   true,
		FeedFilenames:   []string{"atom.xml"},
		Taxonomies:      []Taxonomy{{Name: "tags", RSS: true, PaginateBy: 5}},
		Markdown: Markdown{
			HighlightCode:          true,
			ExtraSyntaxesAndThemes: []string{},
			HighlightTheme:         "base16-ocean-dark",
		},
		Extra: Extra{
			SocialImage: "icons/github.svg",
			Style:       map[string]any{},
			Profile: Profile{
				AvatarURL: "icons/github.svg",
				Social: []Link{
					{Name: "github"},
					{Name: "www"},
					{Name: "rss", URL: "$BASE_URL/atom.xml"},
				},
			},
			Menu: []Link{
				{Name: "Projects", URL: "$BASE_URL/projects"},
				{Name: "Archive", URL: "$BASE_URL/archive"},
				{Name: "Tags", URL: "$BASE_URL/tags"},
				{Name: "About", URL: "$BASE_URL/about"},
			},
			Footer: Footer{
				Since:      2025,
				License:    "CC BY-SA 4.0",
				LicenseURL: "https://creativecommons.org/licenses/by-sa/4.0/deed",
			},
		},
	}
}

// ParseConfig decodes a config.toml document. Keys the model does not know
// are dropped; use SetKey to edit a document without losing them.
func ParseConfig(text string) (Config, error) {
	var cfg Config
	if _, err := toml.Decode(text, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", ConfigPath, err)
	}
	return cfg, nil
}

// Encode serializes the configuration as TOML.
func (c Config) Encode() (string, error) {
	if c.Extra.Style == nil {
		c.Extra.Style = map[string]any{}
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return "", fmt.Errorf("encode %s: %w", ConfigPath, err)
	}
	return buf.String(), nil
}

var rtlLanguages = map[string]bool{"fa": true, "ar": true, "he": true, "ur": true}

// IsRTL reports whether lang is written right to left.
func IsRTL(lang string) bool {
	return rtlLanguages[strings.ToLower(strings.TrimSpace(lang))]
}

// ApplyLanguageDirection adds the rtl direction block for right-to-left
// languages and removes it otherwise.
func (c *Config) ApplyLanguageDirection() {
	if IsRTL(c.DefaultLanguage) {
		c.Extra.Direction = &Direction{Direction: "rtl"}
		return
	}
	c.Extra.Direction = nil
}

// SocialURL returns the url of the named profile link.
func (c Config) SocialURL(name string) string {
	for _, l := range c.Extra.Profile.Social {
		if l.Name == name {
			return l.URL
		}
	}
	return ""
}

// SetSocialURL updates the named profile link, appending it when missing.
func (c *Config) SetSocialURL(name, url string) {
	for i := range c.Extra.Profile.Social {
		if c.Extra.Profile.Social[i].Name == name {
			c.Extra.Profile.Social[i].URL = url
			return
		}
	}
	c.Extra.Profile.Social = append(c.Extra.Profile.Social, Link{Name: name, URL: url})
}

// SetKey sets one value in an arbitrary TOML document, creating intermediate
// tables as needed, and re-encodes it. Unlike a ParseConfig/Encode round trip
// it keeps keys the Config model does not cover.
func SetKey(text string, value any, keys ...string) (string, error) {
	if len(keys) == 0 {
		return "", fmt.Errorf("set key: no key given")
	}
	doc := map[string]any{}
	if _, err := toml.Decode(text, &doc); err != nil {
		return "", fmt.Errorf("parse %s: %w", ConfigPath, err)
	}
	table := doc
	for _, k := range keys[:len(keys)-1] {
		next, ok := table[k].(map[string]any)
		if !ok {
			next = map[string]any{}
			table[k] = next
		}
		table = next
	}
	table[keys[len(keys)-1]] = value

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(doc); err != nil {
		return "", fmt.Errorf("encode %s: %w", ConfigPath, err)
	}
	return buf.String(), nil
}

// SetBaseURL points a config document at url.
func SetBaseURL(text, url string) (string, error) {
	return SetKey(text, url, "base_url")
}
