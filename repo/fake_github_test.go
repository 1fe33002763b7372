package repo_test

import (
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"golang.org/x/crypto/nacl/box"
)

const testToken = "ghp_test"

type fakeFile struct {
	content []byte
	sha     string
}

type putRequest struct {
	Message string  `json:"message"`
	Content string  `json:"content"`
	SHA     *string `json:"sha"`
}

// fakeGitHub is an in-memory stand-in for the subset of the REST API the
// client uses.
type fakeGitHub struct {
	t   *testing.T
	srv *httptest.Server

	mu          sync.Mutex
	requests    int
	repos       map[string]bool                // "owner/repo"
	files       map[string]map[string]fakeFile // "owner/repo" -> path -> file
	puts        []putRequest
	accept      string
	generated   map[string]any
	secrets     map[string]map[string]string // "owner/repo" -> name -> encrypted value
	perPage     string
	readyAfter  int // GET /repos/{o}/{r} answers 404 this many times first
	beforeWrite func()
	garbleUser  bool

	pub, priv *[32]byte
}

func newFakeGitHub(t *testing.T) *fakeGitHub {
	t.Helper()
	pub, priv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	f := &fakeGitHub{
		t:       t,
		repos:   make(map[string]bool),
		files:   make(map[string]map[string]fakeFile),
		secrets: make(map[string]map[string]string),
		pub:     pub,
		priv:    priv,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /user", f.handleUser)
	mux.HandleFunc("GET /user/repos", f.handleListRepos)
	mux.HandleFunc("GET /repos/{owner}/{repo}", f.handleGetRepo)
	mux.HandleFunc("DELETE /repos/{owner}/{repo}", f.handleDeleteRepo)
	mux.HandleFunc("POST /repos/{owner}/{repo}/generate", f.handleGenerate)
	mux.HandleFunc("GET /repos/{owner}/{repo}/contents/{path...}", f.handleGetContents)
	mux.HandleFunc("PUT /repos/{owner}/{repo}/contents/{path...}", f.handlePutContents)
	mux.HandleFunc("DELETE /repos/{owner}/{repo}/contents/{path...}", f.handleDeleteContents)
	mux.HandleFunc("GET /repos/{owner}/{repo}/actions/secrets/public-key", f.handlePublicKey)
	mux.HandleFunc("PUT /repos/{owner}/{repo}/actions/secrets/{name}", f.handlePutSecret)

	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.requests++
		f.mu.Unlock()
		if r.Header.Get("Authorization") != "Bearer "+testToken {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Bad credentials"})
			return
		}
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeGitHub) URL() string { return f.srv.URL }

func (f *fakeGitHub) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests
}

func (f *fakeGitHub) addRepo(owner, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.repos[owner+"/"+name] = true
	if f.files[owner+"/"+name] == nil {
		f.files[owner+"/"+name] = make(map[string]fakeFile)
	}
}

func (f *fakeGitHub) setFile(owner, name, path, content string) {
	f.addRepo(owner, name)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[owner+"/"+name][path] = fakeFile{content: []byte(content), sha: shaOf([]byte(content))}
}

func (f *fakeGitHub) file(owner, name, path string) (fakeFile, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ff, ok := f.files[owner+"/"+name][path]
	return ff, ok
}

func (f *fakeGitHub) lastPut() putRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.puts) == 0 {
		f.t.Fatal("no PUT recorded")
	}
	return f.puts[len(f.puts)-1]
}

func shaOf(b []byte) string {
	sum := sha1.Sum(b)
	return hex.EncodeToString(sum[:])
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func notFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
}

// wrapBase64 mimics the service, which breaks base64 payloads into lines.
func wrapBase64(b []byte) string {
	enc := base64.StdEncoding.EncodeToString(b)
	var sb strings.Builder
	for len(enc) > 60 {
		sb.WriteString(enc[:60])
		sb.WriteByte('\n')
		enc = enc[60:]
	}
	sb.WriteString(enc)
	sb.WriteByte('\n')
	return sb.String()
}

func repoJSON(owner, name string) map[string]any {
	return map[string]any{
		"name":      name,
		"full_name": owner + "/" + name,
		"owner":     map[string]any{"login": owner},
		"html_url":  "https://github.com/" + owner + "/" + name,
		"private":   false,
	}
}

func (f *fakeGitHub) handleUser(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	garble := f.garbleUser
	f.mu.Unlock()
	if garble {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"login": 42}`))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"login": "octo", "name": "Octo Cat"})
}

func (f *fakeGitHub) handleListRepos(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.perPage = r.URL.Query().Get("per_page")
	var out []map[string]any
	for key := range f.repos {
		owner, name, _ := strings.Cut(key, "/")
		out = append(out, repoJSON(owner, name))
	}
	writeJSON(w, http.StatusOK, out)
}

func (f *fakeGitHub) handleGetRepo(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readyAfter > 0 {
		f.readyAfter--
		notFound(w)
		return
	}
	owner, name := r.PathValue("owner"), r.PathValue("repo")
	if !f.repos[owner+"/"+name] {
		notFound(w)
		return
	}
	writeJSON(w, http.StatusOK, repoJSON(owner, name))
}

func (f *fakeGitHub) handleDeleteRepo(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := r.PathValue("owner") + "/" + r.PathValue("repo")
	if !f.repos[key] {
		notFound(w)
		return
	}
	delete(f.repos, key)
	delete(f.files, key)
	w.WriteHeader(http.StatusNoContent)
}

func (f *fakeGitHub) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	f.mu.Lock()
	f.accept = r.Header.Get("Accept")
	f.generated = body
	f.mu.Unlock()

	owner, _ := body["owner"].(string)
	name, _ := body["name"].(string)
	f.mu.Lock()
	taken := f.repos[owner+"/"+name]
	f.mu.Unlock()
	if taken {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "Could not clone: Name already exists on this account"})
		return
	}
	f.addRepo(owner, name)
	writeJSON(w, http.StatusCreated, repoJSON(owner, name))
}

func (f *fakeGitHub) handleGetContents(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := r.PathValue("owner") + "/" + r.PathValue("repo")
	path := r.PathValue("path")
	files, ok := f.files[key]
	if !ok {
		notFound(w)
		return
	}
	if ff, ok := files[path]; ok {
		writeJSON(w, http.StatusOK, map[string]any{
			"type":     "file",
			"name":     path[strings.LastIndex(path, "/")+1:],
			"path":     path,
			"sha":      ff.sha,
			"size":     len(ff.content),
			"encoding": "base64",
			"content":  wrapBase64(ff.content),
		})
		return
	}
	var entries []map[string]any
	prefix := path + "/"
	seen := map[string]bool{}
	for p, ff := range files {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		rest := p[len(prefix):]
		name, _, nested := strings.Cut(rest, "/")
		if seen[name] {
			continue
		}
		seen[name] = true
		typ := "file"
		if nested {
			typ = "dir"
		}
		entries = append(entries, map[string]any{
			"type": typ,
			"name": name,
			"path": prefix + name,
			"sha":  ff.sha,
			"size": len(ff.content),
		})
	}
	if entries == nil {
		notFound(w)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (f *fakeGitHub) handlePutContents(w http.ResponseWriter, r *http.Request) {
	var req putRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	if f.beforeWrite != nil {
		f.beforeWrite()
	}
	content, err := base64.StdEncoding.DecodeString(req.Content)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "content is not valid Base64"})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts = append(f.puts, req)
	key := r.PathValue("owner") + "/" + r.PathValue("repo")
	path := r.PathValue("path")
	files, ok := f.files[key]
	if !ok {
		notFound(w)
		return
	}
	existing, exists := files[path]
	switch {
	case exists && req.SHA == nil:
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": `"sha" wasn't supplied.`})
		return
	case exists && *req.SHA != existing.sha:
		writeJSON(w, http.StatusConflict, map[string]string{"message": "is at " + existing.sha + " but expected " + *req.SHA})
		return
	}
	ff := fakeFile{content: content, sha: shaOf(content)}
	files[path] = ff
	code := http.StatusCreated
	if exists {
		code = http.StatusOK
	}
	writeJSON(w, code, map[string]any{
		"content": map[string]any{"path": path, "sha": ff.sha},
		"commit":  map[string]any{"message": req.Message},
	})
}

func (f *fakeGitHub) handleDeleteContents(w http.ResponseWriter, r *http.Request) {
	var req putRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	key := r.PathValue("owner") + "/" + r.PathValue("repo")
	path := r.PathValue("path")
	existing, ok := f.files[key][path]
	if !ok {
		notFound(w)
		return
	}
	if req.SHA == nil || *req.SHA != existing.sha {
		writeJSON(w, http.StatusConflict, map[string]string{"message": "sha mismatch"})
		return
	}
	delete(f.files[key], path)
	writeJSON(w, http.StatusOK, map[string]any{"commit": map[string]any{"message": req.Message}})
}

func (f *fakeGitHub) handlePublicKey(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.repos[r.PathValue("owner")+"/"+r.PathValue("repo")] {
		notFound(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"key_id": "key-1",
		"key":    base64.StdEncoding.EncodeToString(f.pub[:]),
	})
}

func (f *fakeGitHub) handlePutSecret(w http.ResponseWriter, r *http.Request) {
	var body struct {
		KeyID          string `json:"key_id"`
		EncryptedValue string `json:"encrypted_value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.KeyID != "key-1" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "bad secret"})
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	key := r.PathValue("owner") + "/" + r.PathValue("repo")
	if f.secrets[key] == nil {
		f.secrets[key] = make(map[string]string)
	}
	code := http.StatusCreated
	if _, ok := f.secrets[key][r.PathValue("name")]; ok {
		code = http.StatusNoContent
	}
	f.secrets[key][r.PathValue("name")] = body.EncryptedValue
	w.WriteHeader(code)
}

// openSecret decrypts a stored secret with the fake's private key.
func (f *fakeGitHub) openSecret(owner, name, secret string) (string, bool) {
	f.mu.Lock()
	enc := f.secrets[owner+"/"+name][secret]
	f.mu.Unlock()
	sealed, err := base64.StdEncoding.DecodeString(enc)
	if err != nil {
		return "", false
	}
	msg, ok := box.OpenAnonymous(nil, sealed, f.pub, f.priv)
	return string(msg), ok
}
