package blog

import (
	"bytes"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	// ContentDir holds the posts of a Zola site.
	ContentDir = "content"
	// PostSuffix is the extension every post file carries.
	PostSuffix = ".md"
	// DateLayout is the calendar date format used in front matter.
	DateLayout = "2006-01-02"

	delimiter = "+++"
)

var (
	// ErrNoFrontMatter is returned by ParsePost when the document has no
	// +++ delimited header.
	ErrNoFrontMatter = errors.New("post has no front matter")
	// ErrBadFilename is returned for post names that would escape content/
	// or are not markdown files.
	ErrBadFilename = errors.New("invalid post filename")
)

// FrontMatter is the TOML header of a post.
type FrontMatter struct {
	Title       string     `toml:"title"`
	Date        string     `toml:"date"`
	Description string     `toml:"description"`
	Taxonomies  Taxonomies `toml:"taxonomies"`
}

type Taxonomies struct {
	Tags []string `toml:"tags"`
}

// Post is a parsed content file.
type Post struct {
	FrontMatter
	Body string
}

// NewPost builds a post dated on the calendar day of now. tags is the comma
// separated list entered in the editor.
func NewPost(title, description, tags, body string, now time.Time) Post {
	return Post{
		FrontMatter: FrontMatter{
			Title:       title,
			Date:        now.Format(DateLayout),
			Description: description,
			Taxonomies:  Taxonomies{Tags: SplitTags(tags)},
		},
		Body: body,
	}
}

// SplitTags turns "a, b,,c " into [a b c]. The result is never nil.
func SplitTags(s string) []string {
	tags := []string{}
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// TagsField renders the tags back into the editor's comma separated form.
func (p Post) TagsField() string {
	return strings.Join(p.Taxonomies.Tags, ", ")
}

// Encode renders the post as a Zola content document: the TOML header
// between +++ lines, a blank line, then the body.
func (p Post) Encode() (string, error) {
	fm := p.FrontMatter
	if fm.Taxonomies.Tags == nil {
		fm.Taxonomies.Tags = []string{}
	}
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	enc.Indent = ""
	if err := enc.Encode(fm); err != nil {
		return "", fmt.Errorf("encode front matter: %w", err)
	}
	// A literal +++ inside a string value would close the header early. The
	// escaped plus decodes back to the same text.
	header := strings.ReplaceAll(buf.String(), delimiter, `++\u002B`)

	var out strings.Builder
	out.WriteString(delimiter + "\n")
	out.WriteString(header)
	if !strings.HasSuffix(header, "\n") {
		out.WriteString("\n")
	}
	out.WriteString(delimiter + "\n\n")
	out.WriteString(p.Body)
	return out.String(), nil
}

// ParsePost splits a content document into front matter and body. Headers
// that are not valid TOML fall back to a line scan so posts written by hand
// still open in the editor.
func ParsePost(text string) (Post, error) {
	text = strings.TrimPrefix(text, "\ufeff")
	parts := strings.SplitN(text, delimiter, 3)
	if len(parts) < 3 || strings.TrimSpace(parts[0]) != "" {
		return Post{}, ErrNoFrontMatter
	}
	var fm FrontMatter
	if _, err := toml.Decode(parts[1], &fm); err != nil {
		fm = scanFrontMatter(parts[1])
	}
	if fm.Taxonomies.Tags == nil {
		fm.Taxonomies.Tags = []string{}
	}
	return Post{FrontMatter: fm, Body: strings.TrimSpace(parts[2])}, nil
}

var (
	titleLine       = regexp.MustCompile(`(?m)^\s*title\s*=\s*"(.*)"\s*$`)
	descriptionLine = regexp.MustCompile(`(?m)^\s*description\s*=\s*"(.*)"\s*$`)
	dateLine        = regexp.MustCompile(`(?m)^\s*date\s*=\s*"?([^"\s]+)"?\s*$`)
	tagsLine        = regexp.MustCompile(`(?m)^\s*tags\s*=\s*\[(.*)\]\s*$`)
)

func scanFrontMatter(header string) FrontMatter {
	var fm FrontMatter
	if m := titleLine.FindStringSubmatch(header); m != nil {
		fm.Title = m[1]
	}
	if m := descriptionLine.FindStringSubmatch(header); m != nil {
		fm.Description = m[1]
	}
	if m := dateLine.FindStringSubmatch(header); m != nil {
		fm.Date = m[1]
	}
	if m := tagsLine.FindStringSubmatch(header); m != nil {
		tags := []string{}
		for _, t := range strings.Split(m[1], ",") {
			t = strings.Trim(strings.TrimSpace(t), `"'`)
			if t != "" {
				tags = append(tags, t)
			}
		}
		fm.Taxonomies.Tags = tags
	}
	return fm
}

var (
	filenameStrip  = regexp.MustCompile(`[^\p{L}\p{N}_\s-]`)
	filenameSquash = regexp.MustCompile(`[-\s]+`)
)

// PostFilename derives the content file name for a title: punctuation is
// dropped, runs of spaces and dashes become one dash, letters are lowercased.
// Letters and digits of any script are kept. It returns "" when nothing of
// the title survives.
func PostFilename(title string) string {
	stem := filenameStrip.ReplaceAllString(title, "")
	stem = strings.TrimSpace(stem)
	stem = filenameSquash.ReplaceAllString(stem, "-")
	stem = strings.Trim(strings.ToLower(stem), "-")
	if stem == "" {
		return ""
	}
	return stem + PostSuffix
}

// ValidFilename reports whether name is a plain markdown file name that
// stays inside content/.
func ValidFilename(name string) bool {
	if !strings.HasSuffix(name, PostSuffix) || len(name) == len(PostSuffix) {
		return false
	}
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return false
	}
	return true
}

// PostPath returns the repository path of a post file.
func PostPath(name string) (string, error) {
	if !ValidFilename(name) {
		return "", fmt.Errorf("%w: %q", ErrBadFilename, name)
	}
	return path.Join(ContentDir, name), nil
}
