package transport

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"make-upload/internal/config"
	"make-upload/internal/upload"
)

const scpAckTimeout = 30 * time.Second

// sshConfig builds the client config of a profile. Credentials come from
// the url user info, the profile password and its private key.
func sshConfig(p *config.Profile, u *url.URL) (*ssh.ClientConfig, error) {
	user := p.Option("user", "")
	if u.User != nil && u.User.Username() != "" {
		user = u.User.Username()
	}
	if user == "" {
		return nil, fmt.Errorf("%w: profile %s has no ssh user", upload.ErrConfigurationInvalid, p.Name)
	}

	var auth []ssh.AuthMethod
	if p.PrivateKey != "" {
		key, err := os.ReadFile(config.ExpandHome(p.PrivateKey))
		if err != nil {
			return nil, fmt.Errorf("unable to read private key: %w", err)
		}
		var signer ssh.Signer
		if pass := p.Option("passphrase", ""); pass != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase(key, []byte(pass))
		} else {
			signer, err = ssh.ParsePrivateKey(key)
		}
		if err != nil {
			return nil, fmt.Errorf("unable to parse private key: %w", err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	password := p.Password
	if pw, ok := u.User.Password(); ok {
		password = pw
	}
	if password != "" {
		auth = append(auth, ssh.Password(password))
	}
	if len(auth) == 0 {
		return nil, fmt.Errorf("%w: profile %s has neither a private key nor a password", upload.ErrConfigurationInvalid, p.Name)
	}

	hostKey := ssh.InsecureIgnoreHostKey()
	if kh := p.Option("known_hosts", ""); kh != "" {
		cb, err := knownhosts.New(config.ExpandHome(kh))
		if err != nil {
			return nil, fmt.Errorf("unable to load known_hosts: %w", err)
		}
		hostKey = cb
	}

	return &ssh.ClientConfig{
		User:            user,
		Auth:            auth,
		HostKeyCallback: hostKey,
		Timeout:         15 * time.Second,
	}, nil
}

func dialSSH(p *config.Profile, u *url.URL) (*ssh.Client, error) {
	cfg, err := sshConfig(p, u)
	if err != nil {
		return nil, err
	}
	client, err := ssh.Dial("tcp", hostPort(u, "22"), cfg)
	if err != nil {
		return nil, upload.Fatal(fmt.Errorf("failed to dial: %w", err))
	}
	return client, nil
}

// scpTransport writes files with the scp sink protocol over one ssh
// connection, one session per command.
type scpTransport struct {
	client *ssh.Client
	base   string
}

func dialSCP(p *config.Profile, u *url.URL) (upload.Transport, error) {
	client, err := dialSSH(p, u)
	if err != nil {
		return nil, err
	}
	return &scpTransport{client: client, base: u.Path}, nil
}

func (t *scpTransport) Put(ctx context.Context, it upload.Item) error {
	dst := remoteJoin(t.base, it.RelPath)
	if it.Dir {
		return t.run("mkdir -p " + shellQuote(dst))
	}
	if err := t.run("mkdir -p " + shellQuote(path.Dir(dst))); err != nil {
		return fmt.Errorf("failed to create remote directory: %w", err)
	}
	return t.copyFile(it.LocalPath, dst)
}

func (t *scpTransport) Close() error { return t.client.Close() }

func (t *scpTransport) run(cmd string) error {
	session, err := t.client.NewSession()
	if err != nil {
		return upload.Fatal(fmt.Errorf("failed to create session: %w", err))
	}
	defer session.Close()
	if out, err := session.CombinedOutput(cmd); err != nil {
		return fmt.Errorf("%s: %v: %s", cmd, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (t *scpTransport) copyFile(localPath, remotePath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open local file: %w", err)
	}
	defer f.Close()
	stat, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat local file: %w", err)
	}

	session, err := t.client.NewSession()
	if err != nil {
		return upload.Fatal(fmt.Errorf("failed to create session: %w", err))
	}
	defer session.Close()

	stdin, err := session.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to get stdin pipe: %w", err)
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to get stdout pipe: %w", err)
	}
	if err := session.Start("scp -t " + shellQuote(path.Dir(remotePath))); err != nil {
		return fmt.Errorf("failed to start scp on remote: %w", err)
	}
	acks := bufio.NewReader(stdout)

	abort := func(err error) error {
		stdin.Close()
		session.Wait()
		return err
	}

	if err := readAck(acks); err != nil {
		return abort(err)
	}
	fmt.Fprintf(stdin, "C%04o %d %s\n", stat.Mode().Perm(), stat.Size(), path.Base(remotePath))
	if err := readAck(acks); err != nil {
		return abort(err)
	}
	if _, err := io.Copy(stdin, localReader{f}); err != nil {
		return abort(classify(fmt.Errorf("failed to send file data: %w", err)))
	}
	if _, err := stdin.Write([]byte{0}); err != nil {
		return abort(classify(fmt.Errorf("failed to send scp terminator: %w", err)))
	}
	if err := readAck(acks); err != nil {
		return abort(err)
	}

	stdin.Close()
	if err := session.Wait(); err != nil {
		return fmt.Errorf("remote scp command failed: %w", err)
	}
	return nil
}

// readAck reads one scp status byte. A warning or error byte is followed
// by a message line.
func readAck(r *bufio.Reader) error {
	ch := make(chan error, 1)
	go func() {
		b, err := r.ReadByte()
		if err != nil {
			ch <- classify(fmt.Errorf("failed to read scp ack: %w", err))
			return
		}
		switch b {
		case 0:
			ch <- nil
		case 1, 2:
			msg, _ := r.ReadString('\n')
			ch <- fmt.Errorf("scp remote error: %s", strings.TrimSpace(msg))
		default:
			ch <- fmt.Errorf("unknown scp ack: %v", b)
		}
	}()

	select {
	case err := <-ch:
		return err
	case <-time.After(scpAckTimeout):
		return upload.Fatal(fmt.Errorf("timeout waiting for scp ack"))
	}
}

// shellQuote quotes a POSIX path using single quotes.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "'\\''") + "'"
}
