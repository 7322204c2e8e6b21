// Package transport moves upload items to the destination named by a
// profile URL. Each transport keeps one connection for the whole job.
package transport

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"path"
	"strings"
	"syscall"

	"make-upload/internal/config"
	"make-upload/internal/upload"
)

// Open connects to the destination of p. A connection failure is returned
// as an upload.FatalError.
func Open(p *config.Profile) (upload.Transport, error) {
	u, err := p.ParsedURL()
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(u.Scheme) {
	case "file":
		l, err := NewLocal(u.Path)
		if err != nil {
			return nil, err
		}
		return l, nil
	case "scp", "ssh":
		return dialSCP(p, u)
	case "sftp":
		return dialSFTP(p, u)
	case "ftp":
		return dialFTP(p, u)
	case "http", "https", "webdav", "webdavs":
		return newWebDAV(p, u)
	case "s3":
		return newS3(p, u)
	}
	return nil, fmt.Errorf("%w: unsupported scheme %q", upload.ErrConfigurationInvalid, u.Scheme)
}

// remoteJoin appends a project relative path to a remote base directory.
func remoteJoin(base, rel string) string {
	if base == "" {
		base = "."
	}
	return path.Join(base, rel)
}

// localError is a failure reading the local source of an item. It never
// ends the job.
type localError struct {
	err error
}

func (e *localError) Error() string { return "local read: " + e.err.Error() }
func (e *localError) Unwrap() error { return e.err }

// localReader tags read errors of a local file as localError.
type localReader struct {
	r io.Reader
}

func (l localReader) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	if err != nil && err != io.EOF {
		err = &localError{err: err}
	}
	return n, err
}

// classify marks errors that mean the connection is gone as fatal. A
// syscall.Errno satisfies net.Error, so a bare errno (a local EIO say) only
// counts when it is one of the connection errnos.
func classify(err error) error {
	if err == nil || upload.IsFatal(err) {
		return err
	}
	var le *localError
	if errors.As(err, &le) {
		return err
	}
	var op *net.OpError
	var ne net.Error
	switch {
	case errors.As(err, &op),
		errors.As(err, &ne) && !isErrno(ne),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE):
		return upload.Fatal(err)
	}
	return err
}

func isErrno(err error) bool {
	_, ok := err.(syscall.Errno)
	return ok
}

// hostPort returns host:port of u, using def when u has no port.
func hostPort(u *url.URL, def string) string {
	port := u.Port()
	if port == "" {
		port = def
	}
	return net.JoinHostPort(u.Hostname(), port)
}
