package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/s3mirror/internal/flagx"
)

// valueFlags lists every flag recognized here plus the config-file flags,
// so that positional-argument extraction can skip their values.
var valueFlags = []string{
	"-c", "-config",
	"-w", "-x", "-b", "-g", "-u", "-p", "-e",
	"-i", "-n", "-m", "-d", "-dmax", "-j",
}

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-w string     watch root directory
//	-r bool       watch subdirectories recursively (default true)
//	-x string     remote key prefix
//	-b string     S3 bucket name
//	-g string     S3 region
//	-u string     S3 root user
//	-p string     S3 root password
//	-e string     S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-i duration   debounce interval (e.g., "300ms")
//	-n int        upload concurrency
//	-m int        max store submissions per task
//	-d duration   retry base delay
//	-dmax duration  retry delay cap
//	-j string     journal sqlite path ("" disables the journal)
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with the config-file flags and the
// positional arguments.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{
		"-w", "-r", "-x", "-b", "-g", "-u", "-p", "-e",
		"-i", "-n", "-m", "-d", "-dmax", "-j",
	})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.WatchRoot, "w", config.WatchRoot, "watch root directory")
	fs.BoolVar(&config.Recursive, "r", config.Recursive, "watch subdirectories recursively")
	fs.StringVar(&config.KeyPrefix, "x", config.KeyPrefix, "remote key prefix")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.DurationVar(&config.DebounceInterval, "i", config.DebounceInterval, "debounce interval")
	fs.IntVar(&config.Concurrency, "n", config.Concurrency, "upload concurrency")
	fs.IntVar(&config.MaxAttempts, "m", config.MaxAttempts, "max store submissions per task")
	fs.DurationVar(&config.RetryBaseDelay, "d", config.RetryBaseDelay, "retry base delay")
	fs.DurationVar(&config.RetryMaxDelay, "dmax", config.RetryMaxDelay, "retry delay cap")
	fs.StringVar(&config.JournalPath, "j", config.JournalPath, "journal sqlite path")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}

// applyPositionals overlays the command-line surface
// <watch_path> <bucket> [key_prefix] onto the config. Positional values win
// over flags so the documented invocation always behaves as written.
func applyPositionals(config *Config, args []string) {
	positionals := flagx.Positionals(args, valueFlags)

	if len(positionals) > 0 {
		config.WatchRoot = positionals[0]
	}
	if len(positionals) > 1 {
		config.S3Bucket = positionals[1]
	}
	if len(positionals) > 2 {
		config.KeyPrefix = positionals[2]
	}
}
