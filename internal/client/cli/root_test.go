package cli

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubPassword(t *testing.T, pw string) {
	t.Helper()
	old := readPassword
	readPassword = func(int) ([]byte, error) { return []byte(pw), nil }
	t.Cleanup(func() { readPassword = old })
}

func fakeServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/register", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"message":"User created successfully","userId":5}`))
	})
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "token", Value: "s", Path: "/"})
		_, _ = w.Write([]byte(`{"message":"Logged in successfully"}`))
	})
	mux.HandleFunc("POST /api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"message":"Logged out successfully"}`))
	})
	mux.HandleFunc("GET /api/users/me", func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie("token"); err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"id":5,"email":"ann@example.com","apiKey":"0123456789abcdef0123456789abcdef01234567"}`))
	})
	mux.HandleFunc("POST /api/v1/remove-background", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer 0123456789abcdef0123456789abcdef01234567" {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"message":"Invalid API key"}`))
			return
		}
		f, _, err := r.FormFile("image")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		_, _ = w.Write(bytes.ToUpper(data))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func run(t *testing.T, srv *httptest.Server, db string, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	full := append([]string{"--server", srv.URL, "--db", db}, args...)
	err := Execute(context.Background(), full, strings.NewReader(stdin), &out)
	return out.String(), err
}

func TestCLI_EndToEnd(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	stubPassword(t, "pw")
	srv := fakeServer(t)
	db := filepath.Join(t.TempDir(), "cli.db")

	out, err := run(t, srv, db, "ann@example.com\n", "register")
	require.NoError(t, err)
	assert.Contains(t, out, "User created successfully (id 5)")

	_, err = run(t, srv, db, "", "me")
	assert.EqualError(t, err, "not logged in")

	out, err = run(t, srv, db, "ann@example.com\n", "login")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as ann@example.com")

	out, err = run(t, srv, db, "", "me")
	require.NoError(t, err)
	assert.Contains(t, out, "API key: 0123456789abcdef0123456789abcdef01234567")

	dir := t.TempDir()
	src := filepath.Join(dir, "cat.jpg")
	require.NoError(t, os.WriteFile(src, []byte("meow"), 0o600))
	outDir := filepath.Join(dir, "out")

	out, err = run(t, srv, db, "", "remove", src, "-o", outDir)
	require.NoError(t, err)
	assert.Contains(t, out, "bg_removed_cat.png")
	data, err := os.ReadFile(filepath.Join(outDir, "bg_removed_cat.png"))
	require.NoError(t, err)
	assert.Equal(t, "MEOW", string(data))

	_, err = run(t, srv, db, "", "remove", src, "--api-key", "bad")
	assert.Error(t, err)

	out, err = run(t, srv, db, "", "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged out")

	_, err = run(t, srv, db, "", "remove", src)
	assert.ErrorContains(t, err, "not logged in")
}

func TestCLI_Shell(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	stubPassword(t, "pw")
	srv := fakeServer(t)
	db := filepath.Join(t.TempDir(), "cli.db")

	out, err := run(t, srv, db, "login\nann@example.com\nme\nexit\n", "shell")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as ann@example.com")
	assert.Contains(t, out, "cutout(ann@example.com)> ")
	assert.Contains(t, out, "Bye!")
}

func TestCLI_RemoveNeedsFiles(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	srv := fakeServer(t)

	_, err := run(t, srv, filepath.Join(t.TempDir(), "cli.db"), "", "remove")
	assert.Error(t, err)
}
