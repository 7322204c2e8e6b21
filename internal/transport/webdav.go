package transport

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"make-upload/internal/config"
	"make-upload/internal/upload"
)

// webdavTransport PUTs files and, for WebDAV servers, creates collections
// with MKCOL.
type webdavTransport struct {
	client   *retryablehttp.Client
	base     *url.URL
	user     string
	password string
	mkcol    bool
	made     map[string]bool
}

func newWebDAV(p *config.Profile, u *url.URL) (upload.Transport, error) {
	base := *u
	base.User = nil
	dav := false
	switch strings.ToLower(u.Scheme) {
	case "webdav":
		base.Scheme, dav = "http", true
	case "webdavs":
		base.Scheme, dav = "https", true
	}
	mkcol, err := strconv.ParseBool(p.Option("mkcol", strconv.FormatBool(dav)))
	if err != nil {
		return nil, fmt.Errorf("%w: option mkcol: %v", upload.ErrConfigurationInvalid, err)
	}
	retries, err := strconv.Atoi(p.Option("retries", "3"))
	if err != nil {
		return nil, fmt.Errorf("%w: option retries: %v", upload.ErrConfigurationInvalid, err)
	}

	client := retryablehttp.NewClient()
	client.RetryMax = retries
	client.RetryWaitMin = 500 * time.Millisecond
	client.RetryWaitMax = 10 * time.Second
	client.Logger = nil

	t := &webdavTransport{client: client, base: &base, mkcol: mkcol, made: map[string]bool{}}
	if u.User != nil {
		t.user = u.User.Username()
	}
	t.password = p.Password
	if pw, ok := u.User.Password(); ok {
		t.password = pw
	}
	return t, nil
}

func (t *webdavTransport) Put(ctx context.Context, it upload.Item) error {
	if it.Dir {
		if !t.mkcol {
			return nil
		}
		return t.mkcolAll(ctx, it.RelPath)
	}
	if t.mkcol {
		if err := t.mkcolAll(ctx, path.Dir(it.RelPath)); err != nil {
			return err
		}
	}

	f, err := os.Open(it.LocalPath)
	if err != nil {
		return fmt.Errorf("failed to open local file: %w", err)
	}
	defer f.Close()

	req, err := t.request(ctx, http.MethodPut, it.RelPath, f)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	return t.do(req)
}

func (t *webdavTransport) mkcolAll(ctx context.Context, rel string) error {
	if rel == "" || rel == "." || t.made[rel] {
		return nil
	}
	if err := t.mkcolAll(ctx, path.Dir(rel)); err != nil {
		return err
	}
	req, err := t.request(ctx, "MKCOL", rel+"/", nil)
	if err != nil {
		return err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return classify(err)
	}
	resp.Body.Close()
	// 405: the collection exists already
	if resp.StatusCode/100 != 2 && resp.StatusCode != http.StatusMethodNotAllowed {
		return fmt.Errorf("MKCOL %s: %s", rel, resp.Status)
	}
	t.made[rel] = true
	return nil
}

func (t *webdavTransport) request(ctx context.Context, method, rel string, body interface{}) (*retryablehttp.Request, error) {
	target := t.base.JoinPath(rel)
	req, err := retryablehttp.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, err
	}
	if t.user != "" {
		req.SetBasicAuth(t.user, t.password)
	}
	return req, nil
}

func (t *webdavTransport) do(req *retryablehttp.Request) error {
	resp, err := t.client.Do(req)
	if err != nil {
		return classify(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("%s %s: %s", req.Method, req.URL.Path, resp.Status)
	}
	return nil
}

func (t *webdavTransport) Close() error {
	t.client.HTTPClient.CloseIdleConnections()
	return nil
}
