// Package sftp implements a storage backend over an SFTP connection.
//
// The SSH connection is established at construction and shared by every
// handle; Close tears it down. SFTP has no native pre-authorized URLs, so
// share links use the internal signed-token protocol.
package sftp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"sort"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/caskstore/cask/pkg/storage"
)

// Config contains everything needed to construct a Backend.
type Config struct {
	Name string

	Host string
	Port int

	Username string

	// Password and PrivateKey are alternative auth methods; at least one
	// is required. PrivateKey is a PEM-encoded key.
	Password   string
	PrivateKey []byte

	// HostKey pins the server's public key. When nil the server key is
	// not verified, which is only acceptable for local test fixtures.
	HostKey ssh.PublicKey

	// BasePath is prepended to every object path.
	BasePath string

	// Secret and Endpoint configure the internal link-token protocol.
	Secret   []byte
	Endpoint string
}

// Backend is an SFTP-backed storage.Backend.
type Backend struct {
	storage.InternalLinks

	sshClient  *ssh.Client
	sftpClient *sftp.Client
	basePath   string
}

// New dials the SFTP server and returns a connected backend. The caller
// owns the connection and must release it with Close.
func New(cfg Config) (*Backend, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("host is required")
	}
	if cfg.Username == "" {
		return nil, fmt.Errorf("username is required")
	}

	var auth []ssh.AuthMethod
	if len(cfg.PrivateKey) > 0 {
		signer, err := ssh.ParsePrivateKey(cfg.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("parsing private key: %w", err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if cfg.Password != "" {
		auth = append(auth, ssh.Password(cfg.Password))
	}
	if len(auth) == 0 {
		return nil, fmt.Errorf("either a password or a private key is required")
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey()
	if cfg.HostKey != nil {
		hostKeyCallback = ssh.FixedHostKey(cfg.HostKey)
	}

	port := cfg.Port
	if port == 0 {
		port = 22
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, port)
	sshClient, err := ssh.Dial("tcp", addr, &ssh.ClientConfig{
		User:            cfg.Username,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", addr, err)
	}

	sftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close()
		return nil, fmt.Errorf("starting SFTP subsystem: %w", err)
	}

	return &Backend{
		InternalLinks: storage.NewInternalLinks(cfg.Name, cfg.Secret, cfg.Endpoint),
		sshClient:     sshClient,
		sftpClient:    sftpClient,
		basePath:      cfg.BasePath,
	}, nil
}

// Close releases the SFTP and SSH connections.
func (b *Backend) Close() error {
	var errs []error
	if err := b.sftpClient.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing SFTP client: %w", err))
	}
	if err := b.sshClient.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing SSH connection: %w", err))
	}
	return errors.Join(errs...)
}

func (b *Backend) remotePath(p string) string {
	if b.basePath == "" {
		return p
	}
	return path.Join(b.basePath, p)
}

func isNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist) || os.IsNotExist(err)
}

// List returns the entries directly under path, files and directories
// alike, sorted by name. Directories carry a zero timestamp.
func (b *Backend) List(ctx context.Context, dir string) ([]storage.ListEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	infos, err := b.sftpClient.ReadDir(b.remotePath(dir))
	if err != nil {
		if isNotExist(err) {
			return nil, &storage.FileNotFoundError{Storage: b.Name(), Filename: dir}
		}
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}

	entries := make([]storage.ListEntry, 0, len(infos))
	for _, info := range infos {
		entry := storage.ListEntry{Name: path.Join(dir, info.Name())}
		if !info.IsDir() {
			entry.LastModified = info.ModTime()
			entry.Size = info.Size()
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// Open opens path with the given mode. Read+write handles are supported.
// Opening for write creates missing parent directories.
func (b *Backend) Open(ctx context.Context, p string, mode storage.FileMode) (storage.RemoteFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var flags int
	switch {
	case mode.CanRead() && mode.CanWrite():
		flags = os.O_RDWR | os.O_CREATE
	case mode.CanRead():
		flags = os.O_RDONLY
	case mode.CanWrite():
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	default:
		return nil, fmt.Errorf("unsupported mode %q: %w", mode, storage.ErrUnsupportedOperation)
	}

	remote := b.remotePath(p)

	if mode.CanWrite() {
		if err := b.sftpClient.MkdirAll(path.Dir(remote)); err != nil {
			return nil, fmt.Errorf("creating parent directories for %s: %w", p, err)
		}
	}

	f, err := b.sftpClient.OpenFile(remote, flags)
	if err != nil {
		if isNotExist(err) {
			return nil, &storage.FileNotFoundError{Storage: b.Name(), Filename: p}
		}
		return nil, fmt.Errorf("opening %s: %w", p, err)
	}
	return &file{File: f, mode: mode}, nil
}

// Delete removes the file at path.
func (b *Backend) Delete(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := b.sftpClient.Remove(b.remotePath(p)); err != nil {
		if isNotExist(err) {
			return &storage.FileNotFoundError{Storage: b.Name(), Filename: p}
		}
		return fmt.Errorf("deleting %s: %w", p, err)
	}
	return nil
}

// file wraps an *sftp.File, gating reads and writes by the open mode.
type file struct {
	*sftp.File
	mode storage.FileMode
}

func (f *file) Mode() storage.FileMode { return f.mode }

func (f *file) Read(p []byte) (int, error) {
	if !f.mode.CanRead() {
		return 0, fmt.Errorf("file is write-only: %w", storage.ErrUnsupportedOperation)
	}
	return f.File.Read(p)
}

func (f *file) Write(p []byte) (int, error) {
	if !f.mode.CanWrite() {
		return 0, fmt.Errorf("file is read-only: %w", storage.ErrUnsupportedOperation)
	}
	return f.File.Write(p)
}
