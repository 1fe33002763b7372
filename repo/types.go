package repo

import (
	"time"

	gogithub "github.com/google/go-github/v75/github"
)

// Credentials binds a client to one user and, optionally, one repository.
type Credentials struct {
	Token string
	Owner string
	Repo  string
}

// Complete reports whether token, owner and repository are all set.
func (c Credentials) Complete() bool {
	return c.Token != "" && c.Owner != "" && c.Repo != ""
}

// User is the profile behind a token.
type User struct {
	Login     string
	Name      string
	AvatarURL string
	HTMLURL   string
}

// Repository describes a repository visible to the authenticated user.
type Repository struct {
	Name        string
	FullName    string
	Owner       string
	Description string
	HTMLURL     string
	Private     bool
}

// RemoteFile is a file as stored by the hosting service. An empty SHA means
// the file does not exist yet.
type RemoteFile struct {
	Path    string
	Content string
	SHA     string
}

// ContentEntry is one file listed under the content directory.
type ContentEntry struct {
	Name string
	Path string
	SHA  string
	Size int
}

// PollPolicy bounds WaitForRepository.
type PollPolicy struct {
	Attempts int
	Interval time.Duration
}

// DefaultPollPolicy waits up to roughly ten seconds.
var DefaultPollPolicy = PollPolicy{Attempts: 10, Interval: time.Second}

func userFrom(u *gogithub.User) User {
	return User{
		Login:     u.GetLogin(),
		Name:      u.GetName(),
		AvatarURL: u.GetAvatarURL(),
		HTMLURL:   u.GetHTMLURL(),
	}
}

func repositoryFrom(r *gogithub.Repository) Repository {
	return Repository{
		Name:        r.GetName(),
		FullName:    r.GetFullName(),
		Owner:       r.GetOwner().GetLogin(),
		Description: r.GetDescription(),
		HTMLURL:     r.GetHTMLURL(),
		Private:     r.GetPrivate(),
	}
}
