package attachment

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/tphakala/pushcore/internal/errors"
	"github.com/tphakala/pushcore/internal/notifyurl"
)

const (
	defaultFTPPort  = 21
	defaultSFTPPort = 22
	anonymousUser   = "anonymous"
)

// ftpSource retrieves a file over FTP. SIZE provides the probe when the
// server supports it.
type ftpSource struct {
	addr     string
	user     string
	password string
	path     string
	redacted string
	timeout  time.Duration
}

func newFTPSource(u *notifyurl.ParsedURL, timeout time.Duration) *ftpSource {
	port := u.Port
	if port == 0 {
		port = defaultFTPPort
	}
	user, password := u.User, u.Password
	if user == "" {
		user, password = anonymousUser, anonymousUser
	}
	return &ftpSource{
		addr:     net.JoinHostPort(u.ASCIIHost(), strconv.Itoa(port)),
		user:     user,
		password: password,
		path:     u.Path,
		redacted: u.Redacted(),
		timeout:  timeout,
	}
}

func (s *ftpSource) Kind() string         { return "ftp" }
func (s *ftpSource) Location() Location   { return LocationRemote }
func (s *ftpSource) Access() AccessClass  { return AccessHosted }
func (s *ftpSource) Describe() string     { return s.redacted }
func (s *ftpSource) fallbackName() string { return baseName(s.path) }

func (s *ftpSource) connect(ctx context.Context) (*ftp.ServerConn, error) {
	conn, err := ftp.Dial(s.addr, ftp.DialWithContext(ctx), ftp.DialWithTimeout(s.timeout))
	if err != nil {
		return nil, notFoundError(s.redacted, fmt.Errorf("ftp connection failed: %w", err))
	}
	if err := conn.Login(s.user, s.password); err != nil {
		_ = conn.Quit()
		return nil, notFoundError(s.redacted, fmt.Errorf("ftp login failed: %w", err))
	}
	return conn, nil
}

func (s *ftpSource) Probe(ctx context.Context) (int64, bool, error) {
	conn, err := s.connect(ctx)
	if err != nil {
		return 0, false, err
	}
	defer func() { _ = conn.Quit() }()

	size, err := conn.FileSize(s.path)
	if err != nil || size < 0 {
		// SIZE is optional; Fetch enforces the limit while reading.
		return 0, false, nil
	}
	return size, true, nil
}

func (s *ftpSource) Fetch(ctx context.Context, limit int64) ([]byte, Meta, error) {
	conn, err := s.connect(ctx)
	if err != nil {
		return nil, Meta{}, err
	}
	defer func() { _ = conn.Quit() }()

	r, err := conn.Retr(s.path)
	if err != nil {
		return nil, Meta{}, notFoundError(s.redacted, err)
	}
	defer func() { _ = r.Close() }()

	data, over, err := readLimited(r, limit)
	if err != nil {
		return nil, Meta{}, notFoundError(s.redacted, err)
	}
	if over {
		return nil, Meta{}, tooLargeError(s.redacted, -1, limit)
	}
	return data, Meta{Name: baseName(s.path)}, nil
}

// sftpSource retrieves a file over SFTP. Password and private key
// authentication are supported; a fingerprint= option pins the host key.
type sftpSource struct {
	addr        string
	user        string
	password    string
	keyFile     string
	fingerprint string
	path        string
	redacted    string
	timeout     time.Duration
}

func newSFTPSource(u *notifyurl.ParsedURL, timeout time.Duration) (*sftpSource, error) {
	port := u.Port
	if port == 0 {
		port = defaultSFTPPort
	}
	s := &sftpSource{
		addr:        net.JoinHostPort(u.ASCIIHost(), strconv.Itoa(port)),
		user:        u.User,
		password:    u.Password,
		path:        u.Path,
		redacted:    u.Redacted(),
		timeout:     timeout,
		keyFile:     u.Query["keyfile"],
		fingerprint: u.Query["fingerprint"],
	}
	if s.user == "" || (s.password == "" && s.keyFile == "") {
		return nil, errors.Newf("sftp attachment %s needs a user and a password or keyfile", s.redacted).
			Component(component).
			Category(errors.CategoryValidation).
			Build()
	}
	return s, nil
}

func (s *sftpSource) Kind() string         { return "sftp" }
func (s *sftpSource) Location() Location   { return LocationRemote }
func (s *sftpSource) Access() AccessClass  { return AccessHosted }
func (s *sftpSource) Describe() string     { return s.redacted }
func (s *sftpSource) fallbackName() string { return baseName(s.path) }

func (s *sftpSource) clientConfig() (*ssh.ClientConfig, error) {
	cfg := &ssh.ClientConfig{
		User:    s.user,
		Timeout: s.timeout,
	}

	if s.keyFile != "" {
		key, err := os.ReadFile(s.keyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read private key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
		cfg.Auth = append(cfg.Auth, ssh.PublicKeys(signer))
	}
	if s.password != "" {
		cfg.Auth = append(cfg.Auth, ssh.Password(s.password))
	}

	if s.fingerprint != "" {
		cfg.HostKeyCallback = func(_ string, _ net.Addr, key ssh.PublicKey) error {
			if got := ssh.FingerprintSHA256(key); got != s.fingerprint {
				return fmt.Errorf("host key fingerprint mismatch: got %s", got)
			}
			return nil
		}
	} else {
		cfg.HostKeyCallback = ssh.InsecureIgnoreHostKey() //nolint:gosec // pin with fingerprint=
	}
	return cfg, nil
}

func (s *sftpSource) connect(ctx context.Context) (*sftp.Client, func(), error) {
	cfg, err := s.clientConfig()
	if err != nil {
		return nil, nil, notFoundError(s.redacted, err)
	}

	d := net.Dialer{Timeout: s.timeout}
	conn, err := d.DialContext(ctx, "tcp", s.addr)
	if err != nil {
		return nil, nil, notFoundError(s.redacted, fmt.Errorf("sftp connection failed: %w", err))
	}

	c, chans, reqs, err := ssh.NewClientConn(conn, s.addr, cfg)
	if err != nil {
		_ = conn.Close()
		return nil, nil, notFoundError(s.redacted, fmt.Errorf("ssh handshake failed: %w", err))
	}
	sshClient := ssh.NewClient(c, chans, reqs)

	client, err := sftp.NewClient(sshClient)
	if err != nil {
		_ = sshClient.Close()
		return nil, nil, notFoundError(s.redacted, fmt.Errorf("failed to start sftp session: %w", err))
	}

	closeAll := func() {
		_ = client.Close()
		_ = sshClient.Close()
	}
	return client, closeAll, nil
}

func (s *sftpSource) Probe(ctx context.Context) (int64, bool, error) {
	client, closeAll, err := s.connect(ctx)
	if err != nil {
		return 0, false, err
	}
	defer closeAll()

	info, err := client.Stat(s.path)
	if err != nil {
		return 0, false, notFoundError(s.redacted, err)
	}
	if !info.Mode().IsRegular() {
		return 0, false, notFoundError(s.redacted, nil)
	}
	return info.Size(), true, nil
}

func (s *sftpSource) Fetch(ctx context.Context, limit int64) ([]byte, Meta, error) {
	client, closeAll, err := s.connect(ctx)
	if err != nil {
		return nil, Meta{}, err
	}
	defer closeAll()

	f, err := client.Open(s.path)
	if err != nil {
		return nil, Meta{}, notFoundError(s.redacted, err)
	}
	defer func() { _ = f.Close() }()

	data, over, err := readLimited(f, limit)
	if err != nil {
		return nil, Meta{}, notFoundError(s.redacted, err)
	}
	if over {
		return nil, Meta{}, tooLargeError(s.redacted, -1, limit)
	}
	return data, Meta{Name: baseName(s.path)}, nil
}
