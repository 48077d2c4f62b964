package local

// Config holds filesystem backend configuration
type Config struct {
	BaseDir string `yaml:"base_dir"` // Directory uploads are written under
}
