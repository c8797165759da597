package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/stacksync/internal/flagx"
)

var flagNames = []string{"-d", "-t", "-u", "-p", "-a", "-s", "-b", "-g", "-k", "-x", "-e", "-w", "-m", "-l"}

// parseFlags populates Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-d string     PostgreSQL DSN
//	-t string     identity tenant name
//	-u string     identity admin username
//	-p string     identity admin password
//	-a string     identity auth endpoint
//	-s string     object store base URL
//	-b string     storage backend (swift|s3)
//	-g string     S3 region
//	-k string     S3 access key
//	-x string     S3 secret key
//	-e string     S3 base endpoint
//	-w duration   per-call timeout (e.g. "10s")
//	-m string     secret master key
//	-l string     log level
//
// Subcommand flags are left alone: os.Args is filtered with
// flagx.FilterArgs first.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], flagNames)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.TenantName, "t", config.TenantName, "identity tenant name")
	fs.StringVar(&config.AdminUsername, "u", config.AdminUsername, "identity admin username")
	fs.StringVar(&config.AdminPassword, "p", config.AdminPassword, "identity admin password")
	fs.StringVar(&config.AuthEndpoint, "a", config.AuthEndpoint, "identity auth endpoint")
	fs.StringVar(&config.StorageBaseURL, "s", config.StorageBaseURL, "object store base URL")
	fs.StringVar(&config.StorageBackend, "b", config.StorageBackend, "storage backend (swift|s3)")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3AccessKey, "k", config.S3AccessKey, "S3 access key")
	fs.StringVar(&config.S3SecretKey, "x", config.S3SecretKey, "S3 secret key")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.DurationVar(&config.CallTimeout, "w", config.CallTimeout, "per-call timeout")
	fs.StringVar(&config.SecretMasterKey, "m", config.SecretMasterKey, "secret master key")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
