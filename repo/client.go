// Package repo is the only component that talks to the repository hosting
// service. A Client is bound to one token and, optionally, one owner and
// repository; it keeps no other state between calls.
package repo

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	gogithub "github.com/google/go-github/v75/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/osvaldomontes/kitamanager/blog"
)

const (
	defaultAPIURL = "https://api.github.com"

	// SecretName is the Actions secret the deploy workflow reads.
	SecretName = "PERSONAL_TOKEN"

	templatePreviewMediaType = "application/vnd.github.baptiste-preview+json"
	listPageSize             = 100
)

// Client performs authenticated operations against the GitHub REST API on
// behalf of one user/repository pair.
type Client struct {
	creds  Credentials
	gh     *gogithub.Client
	sealer Sealer
	logger *zap.Logger
}

type options struct {
	baseURL    string
	httpClient *http.Client
	sealer     Sealer
	logger     *zap.Logger
}

// Option configures a Client.
type Option func(*options)

// WithBaseURL points the client at a GitHub Enterprise or mock API.
func WithBaseURL(u string) Option {
	return func(o *options) { o.baseURL = u }
}

// WithHTTPClient supplies the transport and timeout used for API calls.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithSealer replaces the sealed-box implementation. Passing nil disables
// GrantActionSecret.
func WithSealer(s Sealer) Option {
	return func(o *options) { o.sealer = s }
}

// WithLogger sets the logger for per-call debug output.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// New builds a Client. An empty token yields a client whose operations fail
// (or, for ListRepositories, return nothing) without touching the network.
func New(creds Credentials, opts ...Option) *Client {
	o := options{sealer: NaClSealer{}, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	base := http.DefaultTransport
	var timeout time.Duration
	if o.httpClient != nil {
		if o.httpClient.Transport != nil {
			base = o.httpClient.Transport
		}
		timeout = o.httpClient.Timeout
	}
	var transport http.RoundTripper = previewTransport{base: base}
	if creds.Token != "" {
		transport = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: creds.Token}),
			Base:   transport,
		}
	}

	gh := gogithub.NewClient(&http.Client{Transport: transport, Timeout: timeout})
	applyBaseURL(gh, o.baseURL)

	return &Client{
		creds:  creds,
		gh:     gh,
		sealer: o.sealer,
		logger: o.logger.With(zap.String("owner", creds.Owner), zap.String("repo", creds.Repo)),
	}
}

func applyBaseURL(c *gogithub.Client, baseURL string) {
	if baseURL == "" || baseURL == defaultAPIURL {
		return
	}
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/") + "/")
	if err != nil {
		return
	}
	c.BaseURL = u
}

// previewTransport adds the Accept header the template generation endpoint
// requires.
type previewTransport struct {
	base http.RoundTripper
}

func (t previewTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method == http.MethodPost && strings.HasSuffix(req.URL.Path, "/generate") {
		req = req.Clone(req.Context())
		req.Header.Set("Accept", templatePreviewMediaType)
	}
	return t.base.RoundTrip(req)
}

func (c *Client) requireToken(op string) error {
	if c.creds.Token == "" {
		return fail(op, KindUnauthenticated, errors.New("no token"))
	}
	return nil
}

func (c *Client) requireOwner(op string) error {
	if err := c.requireToken(op); err != nil {
		return err
	}
	if c.creds.Owner == "" {
		return fail(op, KindUnauthenticated, errors.New("no owner"))
	}
	return nil
}

func (c *Client) requireRepo(op string) error {
	if !c.creds.Complete() {
		return fail(op, KindUnauthenticated, errors.New("incomplete credentials"))
	}
	return nil
}

// Authenticate validates the token and returns its profile.
func (c *Client) Authenticate(ctx context.Context) (User, error) {
	const op = "authenticate"
	if err := c.requireToken(op); err != nil {
		return User{}, err
	}
	u, _, err := c.gh.Users.Get(ctx, "")
	if err != nil {
		return User{}, classify(op, err)
	}
	return userFrom(u), nil
}

// ListRepositories returns one page of at most 100 repositories of the
// authenticated user. Repositories past the first page are not returned.
func (c *Client) ListRepositories(ctx context.Context) ([]Repository, error) {
	const op = "list repositories"
	if c.creds.Token == "" {
		return []Repository{}, nil
	}
	opts := &gogithub.RepositoryListByAuthenticatedUserOptions{
		ListOptions: gogithub.ListOptions{PerPage: listPageSize},
	}
	list, _, err := c.gh.Repositories.ListByAuthenticatedUser(ctx, opts)
	if err != nil {
		return nil, classify(op, err)
	}
	out := make([]Repository, 0, len(list))
	for _, r := range list {
		out = append(out, repositoryFrom(r))
	}
	c.logger.Debug("listed repositories", zap.Int("count", len(out)))
	return out, nil
}

// Stat fetches a file together with its revision.
func (c *Client) Stat(ctx context.Context, path string) (RemoteFile, error) {
	const op = "read file"
	if err := c.requireRepo(op); err != nil {
		return RemoteFile{}, err
	}
	fc, _, _, err := c.gh.Repositories.GetContents(ctx, c.creds.Owner, c.creds.Repo, path, nil)
	if err != nil {
		return RemoteFile{}, classify(op, err)
	}
	if fc == nil {
		return RemoteFile{}, fail(op, KindInvalid, errors.New(path+" is a directory"))
	}
	content, err := fc.GetContent()
	if err != nil {
		return RemoteFile{}, fail(op, KindMalformedResponse, err)
	}
	return RemoteFile{Path: path, Content: content, SHA: fc.GetSHA()}, nil
}

// ReadFile returns the decoded UTF-8 text of the file at path.
func (c *Client) ReadFile(ctx context.Context, path string) (string, error) {
	f, err := c.Stat(ctx, path)
	if err != nil {
		return "", err
	}
	if !utf8.ValidString(f.Content) {
		return "", fail("read file", KindMalformedResponse, errors.New(path+" is not UTF-8 text"))
	}
	return f.Content, nil
}

// revision returns the current SHA of path, or "" when the file does not exist.
func (c *Client) revision(ctx context.Context, op, path string) (string, error) {
	fc, _, _, err := c.gh.Repositories.GetContents(ctx, c.creds.Owner, c.creds.Repo, path, nil)
	if err != nil {
		err = classify(op, err)
		if errors.Is(err, ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	if fc == nil {
		return "", fail(op, KindInvalid, errors.New(path+" is a directory"))
	}
	return fc.GetSHA(), nil
}

// WriteFile creates or replaces the file at path. The current revision is
// looked up first and sent along when the file exists. The lookup and the
// write are separate calls, so a concurrent writer in between surfaces as
// ErrConflict.
func (c *Client) WriteFile(ctx context.Context, path, content, message string) error {
	const op = "write file"
	if err := c.requireRepo(op); err != nil {
		return err
	}
	sha, err := c.revision(ctx, op, path)
	if err != nil {
		return err
	}

	// Content is []byte, so the JSON encoder sends it base64-encoded.
	opts := &gogithub.RepositoryContentFileOptions{
		Message: gogithub.Ptr(message),
		Content: []byte(content),
	}
	if sha != "" {
		opts.SHA = gogithub.Ptr(sha)
	}
	_, resp, err := c.gh.Repositories.CreateFile(ctx, c.creds.Owner, c.creds.Repo, path, opts)
	if err != nil {
		return staleWrite(classify(op, err))
	}
	if err := expectStatus(op, resp, http.StatusOK, http.StatusCreated); err != nil {
		return err
	}
	c.logger.Debug("wrote file", zap.String("path", path), zap.Bool("update", sha != ""))
	return nil
}

// DeleteFile removes the file at path. A missing file yields ErrNotFound.
func (c *Client) DeleteFile(ctx context.Context, path, message string) error {
	const op = "delete file"
	if err := c.requireRepo(op); err != nil {
		return err
	}
	sha, err := c.revision(ctx, op, path)
	if err != nil {
		return err
	}
	if sha == "" {
		return fail(op, KindNotFound, errors.New(path))
	}
	opts := &gogithub.RepositoryContentFileOptions{
		Message: gogithub.Ptr(message),
		SHA:     gogithub.Ptr(sha),
	}
	_, resp, err := c.gh.Repositories.DeleteFile(ctx, c.creds.Owner, c.creds.Repo, path, opts)
	if err != nil {
		return classify(op, err)
	}
	if err := expectStatus(op, resp, http.StatusOK); err != nil {
		return err
	}
	c.logger.Debug("deleted file", zap.String("path", path))
	return nil
}

// ListContentFiles lists the .md files directly under the content directory.
func (c *Client) ListContentFiles(ctx context.Context) ([]ContentEntry, error) {
	const op = "list content"
	if err := c.requireRepo(op); err != nil {
		return nil, err
	}
	_, dir, _, err := c.gh.Repositories.GetContents(ctx, c.creds.Owner, c.creds.Repo, blog.ContentDir, nil)
	if err != nil {
		return nil, classify(op, err)
	}
	var out []ContentEntry
	for _, e := range dir {
		if e.GetType() == "dir" || !strings.HasSuffix(e.GetName(), blog.PostSuffix) {
			continue
		}
		out = append(out, ContentEntry{
			Name: e.GetName(),
			Path: e.GetPath(),
			SHA:  e.GetSHA(),
			Size: e.GetSize(),
		})
	}
	return out, nil
}

// CreateRepositoryFromTemplate generates a public repository named name under
// the bound owner from templateOwner/templateRepo, copying all branches.
func (c *Client) CreateRepositoryFromTemplate(ctx context.Context, name, description, templateOwner, templateRepo string) (Repository, error) {
	const op = "create repository"
	if err := c.requireOwner(op); err != nil {
		return Repository{}, err
	}
	if name == "" {
		return Repository{}, fail(op, KindInvalid, errors.New("repository name is required"))
	}
	req := &gogithub.TemplateRepoRequest{
		Name:               gogithub.Ptr(name),
		Owner:              gogithub.Ptr(c.creds.Owner),
		Description:        gogithub.Ptr(description),
		Private:            gogithub.Ptr(false),
		IncludeAllBranches: gogithub.Ptr(true),
	}
	r, resp, err := c.gh.Repositories.CreateFromTemplate(ctx, templateOwner, templateRepo, req)
	if err != nil {
		return Repository{}, classify(op, err)
	}
	if err := expectStatus(op, resp, http.StatusCreated); err != nil {
		return Repository{}, err
	}
	c.logger.Debug("created repository", zap.String("name", name),
		zap.String("template", templateOwner+"/"+templateRepo))
	return repositoryFrom(r), nil
}

// WaitForRepository polls until repository name answers (and, when readyPath
// is set, until that file can be read) or the policy runs out. Template
// generation finishes asynchronously on the service side.
func (c *Client) WaitForRepository(ctx context.Context, name, readyPath string, policy PollPolicy) error {
	const op = "wait for repository"
	if err := c.requireOwner(op); err != nil {
		return err
	}
	if policy.Attempts < 1 {
		policy.Attempts = 1
	}
	for attempt := 1; ; attempt++ {
		var err error
		if readyPath == "" {
			_, _, err = c.gh.Repositories.Get(ctx, c.creds.Owner, name)
		} else {
			_, _, _, err = c.gh.Repositories.GetContents(ctx, c.creds.Owner, name, readyPath, nil)
		}
		if err == nil {
			return nil
		}
		err = classify(op, err)
		if !errors.Is(err, ErrNotFound) || attempt >= policy.Attempts {
			return err
		}
		c.logger.Debug("repository not ready", zap.String("name", name), zap.Int("attempt", attempt))

		timer := time.NewTimer(policy.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fail(op, KindRemoteUnavailable, ctx.Err())
		case <-timer.C:
		}
	}
}

// DeleteRepository deletes owner/name.
func (c *Client) DeleteRepository(ctx context.Context, name string) error {
	const op = "delete repository"
	if err := c.requireOwner(op); err != nil {
		return err
	}
	if name == "" {
		return fail(op, KindInvalid, errors.New("repository name is required"))
	}
	resp, err := c.gh.Repositories.Delete(ctx, c.creds.Owner, name)
	if err != nil {
		return classify(op, err)
	}
	if err := expectStatus(op, resp, http.StatusNoContent); err != nil {
		return err
	}
	c.logger.Debug("deleted repository", zap.String("name", name))
	return nil
}
