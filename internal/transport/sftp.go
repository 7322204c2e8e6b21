package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"make-upload/internal/config"
	"make-upload/internal/upload"
)

type sftpTransport struct {
	ssh    *ssh.Client
	client *sftp.Client
	base   string
}

func dialSFTP(p *config.Profile, u *url.URL) (upload.Transport, error) {
	conn, err := dialSSH(p, u)
	if err != nil {
		return nil, err
	}
	client, err := sftp.NewClient(conn, sftp.UseConcurrentWrites(true))
	if err != nil {
		conn.Close()
		return nil, upload.Fatal(fmt.Errorf("failed to start sftp subsystem: %w", err))
	}
	return &sftpTransport{ssh: conn, client: client, base: u.Path}, nil
}

func (t *sftpTransport) Put(ctx context.Context, it upload.Item) error {
	dst := remoteJoin(t.base, it.RelPath)
	if it.Dir {
		return t.sftpErr(t.client.MkdirAll(dst))
	}
	if err := t.client.MkdirAll(path.Dir(dst)); err != nil {
		return t.sftpErr(fmt.Errorf("failed to create remote directory: %w", err))
	}

	src, err := os.Open(it.LocalPath)
	if err != nil {
		return fmt.Errorf("failed to open local file %s: %w", it.LocalPath, err)
	}
	defer src.Close()

	remote, err := t.client.Create(dst)
	if err != nil {
		return t.sftpErr(fmt.Errorf("failed to create remote file %s: %w", dst, err))
	}
	if _, err := io.Copy(remote, localReader{src}); err != nil {
		remote.Close()
		return t.sftpErr(fmt.Errorf("failed to copy file %s: %w", it.LocalPath, err))
	}
	if err := remote.Close(); err != nil {
		return t.sftpErr(err)
	}
	if info, err := src.Stat(); err == nil {
		_ = t.client.Chmod(dst, info.Mode().Perm())
	}
	return nil
}

// sftpErr keeps server status replies per item; anything else means the
// connection broke.
func (t *sftpTransport) sftpErr(err error) error {
	if err == nil {
		return nil
	}
	var status *sftp.StatusError
	if errors.As(err, &status) {
		return err
	}
	return classify(err)
}

func (t *sftpTransport) Close() error {
	err := t.client.Close()
	if cerr := t.ssh.Close(); err == nil {
		err = cerr
	}
	return err
}
