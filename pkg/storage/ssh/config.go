package ssh

type Config struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`           // Default: 22
	User          string `yaml:"user"`
	Password      string `yaml:"password"`       // Optional
	KeyPath       string `yaml:"key_path"`       // Optional: path to private key
	KeyPassphrase string `yaml:"key_passphrase"` // Optional
	HostKey       string `yaml:"host_key"`       // Optional: authorized_keys formatted host key
	RemotePath    string `yaml:"remote_path"`    // Base directory on remote server
}
