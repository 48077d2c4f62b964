package backblaze

// Config holds Backblaze B2 configuration
type Config struct {
	AccountID      string `yaml:"account_id"`
	ApplicationKey string `yaml:"application_key"`
	Bucket         string `yaml:"bucket"`
	Prefix         string `yaml:"prefix"`
}
