package filestore

// Provider identifies the object storage backend.
type Provider string

const (
	ProviderMinIO Provider = "minio"
)

// Config holds the settings for one object storage endpoint and the bucket
// a Client is scoped to.
type Config struct {
	Provider Provider `yaml:"provider"`

	// Endpoint is host:port, e.g. "localhost:9000".
	Endpoint string `yaml:"endpoint"`

	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`

	// Region is sent with every request. Setting it skips the bucket
	// location lookup.
	Region string `yaml:"region"`

	// Bucket is the bucket a Client reads and writes.
	Bucket string `yaml:"bucket"`
}

// DefaultConfig returns a local MinIO config with the stock development
// credentials.
func DefaultConfig() *Config {
	return &Config{
		Provider:  ProviderMinIO,
		Endpoint:  "localhost:9000",
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		Region:    "us-east-1",
		Bucket:    "unidb",
	}
}
