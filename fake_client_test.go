package kitamanager

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"github.com/osvaldomontes/kitamanager/repo"
)

const goodToken = "ghp_good"

type commit struct {
	Repo    string
	Path    string
	Message string
}

// fakeGitHub is the shared state behind every fakeClient built by one test.
type fakeGitHub struct {
	mu       sync.Mutex
	user     repo.User
	repos    []repo.Repository
	files    map[string]string // "owner/repo/path" -> content
	commits  []commit
	created  []string
	deleted  []string
	granted  []string
	waitErr  error
	grantErr error
	writeErr error
}

func newFakeGitHub() *fakeGitHub {
	return &fakeGitHub{
		user:  repo.User{Login: "octo", Name: "Octo Cat"},
		files: map[string]string{},
	}
}

func (f *fakeGitHub) factory(creds repo.Credentials) RepoClient {
	return &fakeClient{f: f, creds: creds}
}

func (f *fakeGitHub) addRepo(owner, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.repos = append(f.repos, repo.Repository{Name: name, Owner: owner, FullName: owner + "/" + name})
}

func (f *fakeGitHub) setFile(fullName, path, content string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[fullName+"/"+path] = content
}

func (f *fakeGitHub) file(fullName, path string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.files[fullName+"/"+path]
	return s, ok
}

func (f *fakeGitHub) lastCommit() commit {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.commits) == 0 {
		return commit{}
	}
	return f.commits[len(f.commits)-1]
}

type fakeClient struct {
	f     *fakeGitHub
	creds repo.Credentials
}

func repoErr(op string, kind repo.Kind) error {
	return &repo.Error{Op: op, Kind: kind, Err: errors.New("fake " + kind.String())}
}

func (c *fakeClient) full() string { return c.creds.Owner + "/" + c.creds.Repo }

func (c *fakeClient) check(op string) error {
	if c.creds.Token != goodToken {
		return repoErr(op, repo.KindUnauthenticated)
	}
	return nil
}

func (c *fakeClient) Authenticate(ctx context.Context) (repo.User, error) {
	if err := c.check("authenticate"); err != nil {
		return repo.User{}, err
	}
	return c.f.user, nil
}

func (c *fakeClient) ListRepositories(ctx context.Context) ([]repo.Repository, error) {
	if c.creds.Token == "" {
		return []repo.Repository{}, nil
	}
	if err := c.check("list repositories"); err != nil {
		return nil, err
	}
	c.f.mu.Lock()
	defer c.f.mu.Unlock()
	return slices.Clone(c.f.repos), nil
}

func (c *fakeClient) ReadFile(ctx context.Context, path string) (string, error) {
	if err := c.check("read file"); err != nil {
		return "", err
	}
	s, ok := c.f.file(c.full(), path)
	if !ok {
		return "", repoErr("read file", repo.KindNotFound)
	}
	return s, nil
}

func (c *fakeClient) WriteFile(ctx context.Context, path, content, message string) error {
	if err := c.check("write file"); err != nil {
		return err
	}
	if c.f.writeErr != nil {
		return c.f.writeErr
	}
	c.f.setFile(c.full(), path, content)
	c.f.mu.Lock()
	c.f.commits = append(c.f.commits, commit{Repo: c.full(), Path: path, Message: message})
	c.f.mu.Unlock()
	return nil
}

func (c *fakeClient) DeleteFile(ctx context.Context, path, message string) error {
	if err := c.check("delete file"); err != nil {
		return err
	}
	c.f.mu.Lock()
	defer c.f.mu.Unlock()
	key := c.full() + "/" + path
	if _, ok := c.f.files[key]; !ok {
		return repoErr("delete file", repo.KindNotFound)
	}
	delete(c.f.files, key)
	c.f.commits = append(c.f.commits, commit{Repo: c.full(), Path: path, Message: message})
	return nil
}

func (c *fakeClient) ListContentFiles(ctx context.Context) ([]repo.ContentEntry, error) {
	if err := c.check("list content"); err != nil {
		return nil, err
	}
	c.f.mu.Lock()
	defer c.f.mu.Unlock()
	prefix := c.full() + "/content/"
	var out []repo.ContentEntry
	for key, content := range c.f.files {
		name, ok := strings.CutPrefix(key, prefix)
		if !ok || !strings.HasSuffix(name, ".md") || strings.Contains(name, "/") {
			continue
		}
		out = append(out, repo.ContentEntry{Name: name, Path: "content/" + name, Size: len(content)})
	}
	slices.SortFunc(out, func(a, b repo.ContentEntry) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

func (c *fakeClient) CreateRepositoryFromTemplate(ctx context.Context, name, description, templateOwner, templateRepo string) (repo.Repository, error) {
	if err := c.check("create repository"); err != nil {
		return repo.Repository{}, err
	}
	full := c.creds.Owner + "/" + name
	template, _ := c.f.file(templateOwner+"/"+templateRepo, "config.toml")
	c.f.addRepo(c.creds.Owner, name)
	c.f.setFile(full, "config.toml", template)
	c.f.mu.Lock()
	c.f.created = append(c.f.created, full)
	c.f.mu.Unlock()
	return repo.Repository{Name: name, Owner: c.creds.Owner, FullName: full, Description: description}, nil
}

func (c *fakeClient) WaitForRepository(ctx context.Context, name, readyPath string, policy repo.PollPolicy) error {
	if c.f.waitErr != nil {
		return c.f.waitErr
	}
	if _, ok := c.f.file(c.creds.Owner+"/"+name, readyPath); !ok {
		return repoErr("wait for repository", repo.KindNotFound)
	}
	return nil
}

func (c *fakeClient) GrantActionSecret(ctx context.Context) error {
	if c.f.grantErr != nil {
		return c.f.grantErr
	}
	c.f.mu.Lock()
	defer c.f.mu.Unlock()
	c.f.granted = append(c.f.granted, c.full())
	return nil
}

func (c *fakeClient) DeleteRepository(ctx context.Context, name string) error {
	if err := c.check("delete repository"); err != nil {
		return err
	}
	c.f.mu.Lock()
	defer c.f.mu.Unlock()
	full := c.creds.Owner + "/" + name
	i := slices.IndexFunc(c.f.repos, func(r repo.Repository) bool { return r.FullName == full })
	if i < 0 {
		return repoErr("delete repository", repo.KindNotFound)
	}
	c.f.repos = slices.Delete(c.f.repos, i, i+1)
	c.f.deleted = append(c.f.deleted, full)
	return nil
}
