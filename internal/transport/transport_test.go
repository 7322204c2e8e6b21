package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"syscall"
	"testing"

	"make-upload/internal/config"
	"make-upload/internal/upload"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLocalTransport(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "public")
	writeFile(t, filepath.Join(src, "css", "site.css"), "body{}")

	tr, err := Open(&config.Profile{Name: "local", URL: "file://" + filepath.ToSlash(dst)})
	if err != nil {
		t.Fatal(err)
	}
	defer tr.Close()

	ctx := context.Background()
	if err := tr.Put(ctx, upload.Item{RelPath: "css/site.css", LocalPath: filepath.Join(src, "css", "site.css")}); err != nil {
		t.Fatal(err)
	}
	if err := tr.Put(ctx, upload.Item{RelPath: "dist", Dir: true}); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(filepath.Join(dst, "css", "site.css"))
	if err != nil || string(got) != "body{}" {
		t.Fatalf("copied file = %q, %v", got, err)
	}
	if info, err := os.Stat(filepath.Join(dst, "dist")); err != nil || !info.IsDir() {
		t.Fatalf("empty folder not created: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dst, "css", "site.css.upload")); !os.IsNotExist(err) {
		t.Errorf("temporary file left behind")
	}
}

func TestLocalTransportMissingSourceIsItemError(t *testing.T) {
	tr, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	err = tr.Put(context.Background(), upload.Item{RelPath: "gone.txt", LocalPath: filepath.Join(t.TempDir(), "gone.txt")})
	if err == nil || upload.IsFatal(err) {
		t.Fatalf("err = %v, want a non-fatal error", err)
	}
}

func TestOpenRejectsUnknownScheme(t *testing.T) {
	_, err := Open(&config.Profile{Name: "x", URL: "gopher://example.com/"})
	if !errors.Is(err, upload.ErrConfigurationInvalid) {
		t.Fatalf("err = %v", err)
	}
}

func TestOpenSFTPWithoutCredentials(t *testing.T) {
	_, err := Open(&config.Profile{Name: "x", URL: "sftp://deploy@example.com/var/www"})
	if !errors.Is(err, upload.ErrConfigurationInvalid) {
		t.Fatalf("err = %v", err)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name  string
		err   error
		fatal bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("permission denied"), false},
		{"eof", io.EOF, true},
		{"net", &net.OpError{Op: "dial", Err: errors.New("connection refused")}, true},
		{"closed", net.ErrClosed, true},
		{"already fatal", upload.Fatal(errors.New("x")), true},
		{"connection reset", fmt.Errorf("write: %w", syscall.ECONNRESET), true},
		{"broken pipe", &os.SyscallError{Syscall: "write", Err: syscall.EPIPE}, true},
		{"local errno", fmt.Errorf("failed to copy file: %w", &fs.PathError{Op: "read", Path: "a.txt", Err: syscall.EIO}), false},
		{"local reader", fmt.Errorf("failed to send file data: %w", &localError{err: net.ErrClosed}), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := upload.IsFatal(classify(tc.err)); got != tc.fatal {
				t.Errorf("fatal = %v, want %v", got, tc.fatal)
			}
		})
	}
}

type failingReader struct{ err error }

func (r failingReader) Read([]byte) (int, error) { return 0, r.err }

func TestLocalReadErrorIsItemError(t *testing.T) {
	readErr := &fs.PathError{Op: "read", Path: "a.txt", Err: syscall.EIO}
	_, err := io.Copy(io.Discard, localReader{failingReader{err: readErr}})
	if err == nil {
		t.Fatal("copy succeeded")
	}
	err = classify(fmt.Errorf("failed to copy file: %w", err))
	if upload.IsFatal(err) {
		t.Fatalf("local read error is fatal: %v", err)
	}
	if !errors.Is(err, syscall.EIO) {
		t.Errorf("cause lost: %v", err)
	}

	// EOF from the local file ends the copy normally
	if _, err := io.Copy(io.Discard, localReader{failingReader{err: io.EOF}}); err != nil {
		t.Errorf("copy to EOF: %v", err)
	}
}

func TestRemoteJoin(t *testing.T) {
	cases := map[[2]string]string{
		{"/var/www", "css/a.css"}: "/var/www/css/a.css",
		{"", "a.txt"}:             "a.txt",
		{"/", "a.txt"}:            "/a.txt",
		{"site/", "dist"}:         "site/dist",
	}
	for in, want := range cases {
		if got := remoteJoin(in[0], in[1]); got != want {
			t.Errorf("remoteJoin(%q, %q) = %q, want %q", in[0], in[1], got, want)
		}
	}
}

func TestShellQuote(t *testing.T) {
	if got := shellQuote("it's here"); got != `'it'\''s here'` {
		t.Fatalf("got %s", got)
	}
}

type davServer struct {
	mu    sync.Mutex
	calls []string
	files map[string]string
	user  string
}

func (d *davServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, r.Method+" "+r.URL.Path)
	if u, _, _ := r.BasicAuth(); u != d.user {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	switch r.Method {
	case "MKCOL":
		if r.URL.Path == "/dav/css/" {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusCreated)
	case http.MethodPut:
		if r.URL.Path == "/dav/locked.txt" {
			w.WriteHeader(http.StatusLocked)
			return
		}
		body, _ := io.ReadAll(r.Body)
		d.files[r.URL.Path] = string(body)
		w.WriteHeader(http.StatusCreated)
	default:
		w.WriteHeader(http.StatusNotImplemented)
	}
}

func TestWebDAVTransport(t *testing.T) {
	dav := &davServer{files: map[string]string{}, user: "deploy"}
	srv := httptest.NewServer(dav)
	defer srv.Close()

	src := t.TempDir()
	writeFile(t, filepath.Join(src, "css", "a.css"), "a{}")
	writeFile(t, filepath.Join(src, "locked.txt"), "x")

	u := "webdav://deploy@" + srv.Listener.Addr().String() + "/dav"
	tr, err := Open(&config.Profile{Name: "dav", URL: u, Password: "secret"})
	if err != nil {
		t.Fatal(err)
	}
	defer tr.Close()
	ctx := context.Background()

	if err := tr.Put(ctx, upload.Item{RelPath: "css/a.css", LocalPath: filepath.Join(src, "css", "a.css")}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := tr.Put(ctx, upload.Item{RelPath: "build/out", Dir: true}); err != nil {
		t.Fatalf("mkcol: %v", err)
	}
	err = tr.Put(ctx, upload.Item{RelPath: "locked.txt", LocalPath: filepath.Join(src, "locked.txt")})
	if err == nil || upload.IsFatal(err) {
		t.Fatalf("locked put: err = %v, want item error", err)
	}

	dav.mu.Lock()
	defer dav.mu.Unlock()
	if dav.files["/dav/css/a.css"] != "a{}" {
		t.Errorf("files = %v", dav.files)
	}
	var mkcols []string
	for _, c := range dav.calls {
		if len(c) > 6 && c[:6] == "MKCOL " {
			mkcols = append(mkcols, c[6:])
		}
	}
	sort.Strings(mkcols)
	want := []string{"/dav/build/", "/dav/build/out/", "/dav/css/"}
	if len(mkcols) != len(want) {
		t.Fatalf("MKCOL calls = %v, want %v", mkcols, want)
	}
	for i := range want {
		if mkcols[i] != want[i] {
			t.Fatalf("MKCOL calls = %v, want %v", mkcols, want)
		}
	}
}

func TestWebDAVUnreachableIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.Listener.Addr().String()
	srv.Close()

	src := t.TempDir()
	writeFile(t, filepath.Join(src, "a.txt"), "a")
	tr, err := Open(&config.Profile{
		Name:    "http",
		URL:     "http://" + addr + "/",
		Options: map[string]string{"retries": "0"},
	})
	if err != nil {
		t.Fatal(err)
	}
	err = tr.Put(context.Background(), upload.Item{RelPath: "a.txt", LocalPath: filepath.Join(src, "a.txt")})
	if !upload.IsFatal(err) {
		t.Fatalf("err = %v, want fatal", err)
	}
}
