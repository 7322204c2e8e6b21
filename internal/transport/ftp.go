package transport

import (
	"context"
	"errors"
	"fmt"
	"net/textproto"
	"net/url"
	"os"
	"path"
	"time"

	"github.com/jlaffaye/ftp"

	"make-upload/internal/config"
	"make-upload/internal/upload"
)

// 421: the server is closing the control connection.
const ftpServiceNotAvailable = 421

type ftpTransport struct {
	conn *ftp.ServerConn
	base string
	// dirs already known to exist
	made map[string]bool
}

func dialFTP(p *config.Profile, u *url.URL) (upload.Transport, error) {
	conn, err := ftp.Dial(hostPort(u, "21"), ftp.DialWithTimeout(15*time.Second))
	if err != nil {
		return nil, upload.Fatal(fmt.Errorf("failed to connect to ftp server: %w", err))
	}
	user, password := "anonymous", "anonymous"
	if u.User != nil && u.User.Username() != "" {
		user = u.User.Username()
	}
	if p.Password != "" {
		password = p.Password
	}
	if pw, ok := u.User.Password(); ok {
		password = pw
	}
	if err := conn.Login(user, password); err != nil {
		conn.Quit()
		return nil, upload.Fatal(fmt.Errorf("ftp login failed: %w", err))
	}
	return &ftpTransport{conn: conn, base: u.Path, made: map[string]bool{}}, nil
}

func (t *ftpTransport) Put(ctx context.Context, it upload.Item) error {
	dst := remoteJoin(t.base, it.RelPath)
	if it.Dir {
		return t.mkdirAll(dst)
	}
	if err := t.mkdirAll(path.Dir(dst)); err != nil {
		return err
	}

	f, err := os.Open(it.LocalPath)
	if err != nil {
		return fmt.Errorf("failed to open local file: %w", err)
	}
	defer f.Close()
	if err := t.conn.Stor(dst, localReader{f}); err != nil {
		return ftpErr(fmt.Errorf("failed to store %s: %w", dst, err))
	}
	return nil
}

// mkdirAll creates dir and its parents, ignoring "already exists" replies.
func (t *ftpTransport) mkdirAll(dir string) error {
	if dir == "" || dir == "." || dir == "/" || t.made[dir] {
		return nil
	}
	if err := t.mkdirAll(path.Dir(dir)); err != nil {
		return err
	}
	if err := t.conn.MakeDir(dir); err != nil {
		var tp *textproto.Error
		if !errors.As(err, &tp) || tp.Code != ftp.StatusFileUnavailable {
			return ftpErr(fmt.Errorf("failed to create remote directory %s: %w", dir, err))
		}
	}
	t.made[dir] = true
	return nil
}

// ftpErr keeps server replies per item; anything else means the control
// connection broke.
func ftpErr(err error) error {
	var tp *textproto.Error
	if errors.As(err, &tp) {
		if tp.Code == ftpServiceNotAvailable {
			return upload.Fatal(err)
		}
		return err
	}
	return classify(err)
}

func (t *ftpTransport) Close() error { return t.conn.Quit() }
