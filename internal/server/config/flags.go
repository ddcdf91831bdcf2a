package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/weavekeeper/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":3000")
//	-d string   database DSN (postgres:// or mongodb://)
//	-s string   JWT HMAC secret key
//	-m string   environment: development, testnet, production
//	-w string   development wallet key file
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-l string   log level
//
// Only these flags are taken from os.Args; anything else (such as -c) is
// left to other parsers.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-s", "-m", "-w", "-u", "-p", "-b", "-g", "-e", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)
	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.Environment, "m", config.Environment, "environment (development, testnet, production)")
	fs.StringVar(&config.DevWalletPath, "w", config.DevWalletPath, "development wallet key file")
	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 root bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 root region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
