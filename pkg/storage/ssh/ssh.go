package ssh

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/sync/singleflight"

	"github.com/williamokano/backup_receiver/pkg/storage"
)

const Type = "sftp"

type Backend struct {
	name          string
	addr          string
	remotePath    string
	clientConfig  *ssh.ClientConfig
	hostKeyPinned bool

	dial       singleflight.Group
	mu         sync.Mutex
	sshClient  *ssh.Client
	sftpClient *sftp.Client
}

// New creates a new SFTP backend. The connection is dialed on the first
// Receive and re-dialed after it breaks.
func New(name string, cfg Config) (*Backend, error) {
	for option, value := range map[string]string{
		"host":        cfg.Host,
		"user":        cfg.User,
		"remote_path": cfg.RemotePath,
	} {
		if value == "" {
			return nil, storage.WrapError(name, "init", fmt.Errorf("missing required option %s: %w", option, storage.ErrInvalidConfig))
		}
	}

	clientConfig := &ssh.ClientConfig{
		User:            cfg.User,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         30 * time.Second,
	}

	if cfg.HostKey != "" {
		hostKey, _, _, _, err := ssh.ParseAuthorizedKey([]byte(cfg.HostKey))
		if err != nil {
			return nil, storage.WrapError(name, "init", fmt.Errorf("parse host_key: %w", storage.ErrInvalidConfig))
		}
		clientConfig.HostKeyCallback = ssh.FixedHostKey(hostKey)
	}

	// Add authentication methods
	if cfg.Password != "" {
		clientConfig.Auth = append(clientConfig.Auth, ssh.Password(cfg.Password))
	}

	if cfg.KeyPath != "" {
		key, err := os.ReadFile(cfg.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read SSH key: %w", err)
		}

		var signer ssh.Signer
		if cfg.KeyPassphrase != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase(key, []byte(cfg.KeyPassphrase))
		} else {
			signer, err = ssh.ParsePrivateKey(key)
		}

		if err != nil {
			return nil, fmt.Errorf("failed to parse SSH key: %w", err)
		}

		clientConfig.Auth = append(clientConfig.Auth, ssh.PublicKeys(signer))
	}

	port := cfg.Port
	if port == 0 {
		port = 22
	}

	return &Backend{
		name:          name,
		addr:          net.JoinHostPort(cfg.Host, strconv.Itoa(port)),
		remotePath:    cfg.RemotePath,
		clientConfig:  clientConfig,
		hostKeyPinned: cfg.HostKey != "",
	}, nil
}

func (b *Backend) Name() string { return b.name }
func (b *Backend) Type() string { return Type }

// VerifiesHostKey reports whether a host_key was configured
func (b *Backend) VerifiesHostKey() bool { return b.hostKeyPinned }

func (b *Backend) client() (*sftp.Client, error) {
	b.mu.Lock()
	client := b.sftpClient
	b.mu.Unlock()
	if client != nil {
		return client, nil
	}

	// one dial serves every concurrent caller
	v, err, _ := b.dial.Do("dial", func() (interface{}, error) {
		b.mu.Lock()
		if b.sftpClient != nil {
			defer b.mu.Unlock()
			return b.sftpClient, nil
		}
		b.mu.Unlock()

		sshClient, err := ssh.Dial("tcp", b.addr, b.clientConfig)
		if err != nil {
			return nil, storage.WrapError(b.name, "connect", fmt.Errorf("%w: %v", storage.ErrConnFailed, err))
		}

		sftpClient, err := sftp.NewClient(sshClient)
		if err != nil {
			sshClient.Close()
			return nil, storage.WrapError(b.name, "sftp init", err)
		}

		b.mu.Lock()
		b.sshClient = sshClient
		b.sftpClient = sftpClient
		b.mu.Unlock()
		return sftpClient, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*sftp.Client), nil
}

// reset drops a broken connection so the next Receive dials again
func (b *Backend) reset(broken *sftp.Client) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.sftpClient != broken {
		return
	}
	b.closeLocked()
}

// Receive streams body to remotePath/destName via SFTP
func (b *Backend) Receive(ctx context.Context, destName string, body io.Reader, size int64) error {
	if destName == "" {
		return storage.WrapError(b.name, "upload", storage.ErrInvalidName)
	}

	client, err := b.client()
	if err != nil {
		return err
	}

	remotePath := path.Join(b.remotePath, destName)

	// Ensure remote directory exists
	if err := client.MkdirAll(path.Dir(remotePath)); err != nil {
		b.reset(client)
		return storage.WrapError(b.name, "mkdir", err)
	}

	remoteFile, err := client.Create(remotePath)
	if err != nil {
		return storage.WrapError(b.name, "create", err)
	}

	if _, err := io.Copy(remoteFile, body); err != nil {
		remoteFile.Close()
		return storage.WrapError(b.name, "upload", err)
	}

	if err := remoteFile.Close(); err != nil {
		return storage.WrapError(b.name, "upload", err)
	}

	return nil
}

// Close releases resources
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closeLocked()
	return nil
}

func (b *Backend) closeLocked() {
	if b.sftpClient != nil {
		b.sftpClient.Close()
		b.sftpClient = nil
	}
	if b.sshClient != nil {
		b.sshClient.Close()
		b.sshClient = nil
	}
}
