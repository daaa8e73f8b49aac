package s3

import (
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
)

// Config holds the settings used to construct a Backend. Callers normally
// populate it through Option values passed to New.
type Config struct {
	// Region is the AWS region for S3 operations. When empty the region is
	// taken from the environment, falling back to us-east-1.
	Region string

	// AccessKeyID and SecretAccessKey provide static credentials. When both
	// are empty the default AWS credential chain is used.
	AccessKeyID     string
	SecretAccessKey string

	// Hostname points the client at an S3-compatible endpoint. It may be a
	// bare host, a host with an inline port, or a full URL with scheme.
	Hostname string

	// Port is appended to Hostname when the hostname carries no port of its
	// own. Zero means no explicit port.
	Port int

	// Secure selects https for hostnames given without a scheme.
	Secure bool

	// ForcePathStyle forces path-style URLs instead of virtual-hosted style.
	// Implied whenever a custom endpoint is configured.
	ForcePathStyle bool

	// MaxRetries is the maximum number of retry attempts for failed
	// operations.
	MaxRetries int

	// HTTPClient overrides the SDK's default HTTP client.
	HTTPClient *http.Client

	// AWSConfig overrides the default configuration loading behavior
	// entirely.
	AWSConfig *aws.Config
}

// Option configures a Backend during construction.
type Option func(*Config)

// defaultConfig returns the construction defaults applied before options.
func defaultConfig() Config {
	return Config{
		Secure:     true,
		MaxRetries: defaultMaxRetries,
	}
}

// WithRegion sets the AWS region for S3 operations.
// If not specified, uses the default AWS region from the credential chain.
func WithRegion(region string) Option {
	return func(c *Config) {
		c.Region = region
	}
}

// WithStaticCredentials sets a fixed access key pair instead of the default
// AWS credential chain.
func WithStaticCredentials(accessKeyID, secretAccessKey string) Option {
	return func(c *Config) {
		c.AccessKeyID = accessKeyID
		c.SecretAccessKey = secretAccessKey
	}
}

// WithEndpoint points the client at a custom S3-compatible endpoint such as
// RadosGW, MinIO, or LocalStack. The hostname may carry an inline scheme or
// port, both of which are preserved as given.
func WithEndpoint(hostname string) Option {
	return func(c *Config) {
		c.Hostname = hostname
	}
}

// WithPort sets an explicit port for a custom endpoint. It is ignored when
// the endpoint hostname already carries a port.
func WithPort(port int) Option {
	return func(c *Config) {
		c.Port = port
	}
}

// WithSecure selects between https and http for custom endpoints given
// without a scheme. Default is true (https).
func WithSecure(secure bool) Option {
	return func(c *Config) {
		c.Secure = secure
	}
}

// WithForcePathStyle forces the use of path-style URLs instead of
// virtual-hosted style. This is required for S3-compatible services that
// don't support virtual hosting.
func WithForcePathStyle(forcePathStyle bool) Option {
	return func(c *Config) {
		c.ForcePathStyle = forcePathStyle
	}
}

// WithMaxRetries sets the maximum number of retry attempts for failed
// operations. Default is 3 retries.
func WithMaxRetries(maxRetries int) Option {
	return func(c *Config) {
		c.MaxRetries = maxRetries
	}
}

// WithCustomHTTPClient allows providing a custom HTTP client.
// This gives full control over HTTP behavior including timeouts and proxies.
func WithCustomHTTPClient(client *http.Client) Option {
	return func(c *Config) {
		c.HTTPClient = client
	}
}

// WithAWSConfig allows providing a custom AWS configuration.
// This overrides the default configuration loading behavior.
func WithAWSConfig(config *aws.Config) Option {
	return func(c *Config) {
		c.AWSConfig = config
	}
}
