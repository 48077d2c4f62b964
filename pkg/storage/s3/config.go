package s3

// Config holds S3 configuration
type Config struct {
	Endpoint        string `yaml:"endpoint"`          // Optional: for MinIO
	Region          string `yaml:"region"`            // AWS region (default: us-east-1)
	Bucket          string `yaml:"bucket"`            // S3 bucket name
	Prefix          string `yaml:"prefix"`            // Object key prefix
	AccessKeyID     string `yaml:"access_key_id"`     // Optional: static credentials
	SecretAccessKey string `yaml:"secret_access_key"`
	ForcePathStyle  bool   `yaml:"force_path_style"`  // For MinIO
}
