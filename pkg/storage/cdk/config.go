package cdk

// Config holds the bucket URL for a gocloud.dev blob backend, e.g.
// "s3://bucket?region=eu-west-1", "gs://bucket", "file:///srv/backups".
type Config struct {
	URL    string `yaml:"url"`
	Prefix string `yaml:"prefix"`
}
