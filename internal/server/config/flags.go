package config

import (
	"flag"
	"io"

	"github.com/pockethour/image-sentinel/internal/flagx"
)

// parseFlags populates Config fields from short command-line flags.
//
//	-a string     HTTP bind address
//	-l string     log level (debug, info, warn, error)
//	-k string     database driver (postgres, sqlite)
//	-d string     database DSN
//	-s string     storage backend (fs, s3)
//	-f string     data dir for the fs backend
//	-w string     scratch dir shared with the worker
//	-u, -p        S3 access key and secret
//	-b, -g, -e    S3 bucket, region and endpoint
//	-z duration   presigned download link lifetime (0 disables)
//	-x string     worker URL (empty runs processing in-process)
//	-t duration   worker request timeout
//	-r duration   retention window
//	-i duration   sweep interval
//	-m int        max upload bytes
//	-y string     payment secret
//	-o string     checkout URL
//	-n int        price in minor units
//	-q string     currency
//
// Unknown flags are filtered out first so other layers can own them.
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-l", "-k", "-d", "-s", "-f", "-w", "-u", "-p", "-b", "-g", "-e",
		"-z", "-x", "-t", "-r", "-i", "-m", "-y", "-o", "-n", "-q"})

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.HTTPAddress, "a", config.HTTPAddress, "address and port to run server")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.StringVar(&config.DatabaseDriver, "k", config.DatabaseDriver, "database driver")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.StorageBackend, "s", config.StorageBackend, "storage backend")
	fs.StringVar(&config.DataDir, "f", config.DataDir, "data dir")
	fs.StringVar(&config.WorkDir, "w", config.WorkDir, "work dir")
	fs.StringVar(&config.S3AccessKey, "u", config.S3AccessKey, "S3 access key")
	fs.StringVar(&config.S3SecretKey, "p", config.S3SecretKey, "S3 secret key")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3Endpoint, "e", config.S3Endpoint, "S3 endpoint")
	fs.DurationVar(&config.PresignTTL, "z", config.PresignTTL, "presigned link lifetime")
	fs.StringVar(&config.WorkerURL, "x", config.WorkerURL, "worker URL")
	fs.DurationVar(&config.WorkerTimeout, "t", config.WorkerTimeout, "worker timeout")
	fs.DurationVar(&config.RetentionWindow, "r", config.RetentionWindow, "retention window")
	fs.DurationVar(&config.SweepInterval, "i", config.SweepInterval, "sweep interval")
	fs.Int64Var(&config.MaxUploadBytes, "m", config.MaxUploadBytes, "max upload bytes")
	fs.StringVar(&config.PaymentSecret, "y", config.PaymentSecret, "payment secret")
	fs.StringVar(&config.CheckoutURL, "o", config.CheckoutURL, "checkout URL")
	fs.Int64Var(&config.Price, "n", config.Price, "price in minor units")
	fs.StringVar(&config.Currency, "q", config.Currency, "currency")

	return fs.Parse(args)
}

func parseWorkerFlags(config *WorkerConfig, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-l"})

	fs := flag.NewFlagSet("worker", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&config.Address, "a", config.Address, "address and port to run worker")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	return fs.Parse(args)
}
