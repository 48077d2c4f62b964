package config

import (
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/williamokano/backup_receiver/pkg/storage/backblaze"
	"github.com/williamokano/backup_receiver/pkg/storage/cdk"
	"github.com/williamokano/backup_receiver/pkg/storage/local"
	"github.com/williamokano/backup_receiver/pkg/storage/s3"
	"github.com/williamokano/backup_receiver/pkg/storage/ssh"
)

// Kind identifies a storage backend variant
type Kind string

const (
	KindFilesystem  Kind = local.Type
	KindObjectStore Kind = s3.Type
	KindBackblaze   Kind = backblaze.Type
	KindSFTP        Kind = ssh.Type
	KindBlob        Kind = cdk.Type
)

// kindAliases keeps the short tags older configuration files use
var kindAliases = map[string]Kind{
	"fs": KindFilesystem,
	"s3": KindObjectStore,
}

// ParseKind maps a backend tag to its Kind. Unknown tags are returned as-is
// and report false from Known.
func ParseKind(tag string) Kind {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if k, ok := kindAliases[tag]; ok {
		return k
	}
	return Kind(tag)
}

// Known reports whether k is one of the supported variants
func (k Kind) Known() bool {
	switch k {
	case KindFilesystem, KindObjectStore, KindBackblaze, KindSFTP, KindBlob:
		return true
	}
	return false
}

// BackendSpec is a tagged union over the backend variants. Exactly one of the
// variant pointers is set when Kind is known; none is set otherwise.
type BackendSpec struct {
	Kind Kind
	Tag  string // the backend tag as written in the file

	Filesystem  *local.Config
	ObjectStore *s3.Config
	Backblaze   *backblaze.Config
	SFTP        *ssh.Config
	Blob        *cdk.Config
}

// UnmarshalYAML reads the "backend" tag and decodes the remaining keys into
// the matching variant
func (b *BackendSpec) UnmarshalYAML(node *yaml.Node) error {
	var tag struct {
		Backend string `yaml:"backend"`
	}
	if err := node.Decode(&tag); err != nil {
		return err
	}

	*b = BackendSpec{Tag: tag.Backend, Kind: ParseKind(tag.Backend)}

	switch b.Kind {
	case KindFilesystem:
		b.Filesystem = &local.Config{}
		return node.Decode(b.Filesystem)
	case KindObjectStore:
		b.ObjectStore = &s3.Config{}
		return node.Decode(b.ObjectStore)
	case KindBackblaze:
		b.Backblaze = &backblaze.Config{}
		return node.Decode(b.Backblaze)
	case KindSFTP:
		b.SFTP = &ssh.Config{}
		return node.Decode(b.SFTP)
	case KindBlob:
		b.Blob = &cdk.Config{}
		return node.Decode(b.Blob)
	}

	return nil
}
