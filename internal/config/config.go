// Package config provides functionality for managing configuration options
// for the application using command-line flags and environment variables.
package config

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"
)

// Options holds the configuration values for the application.
type Options struct {
	// VaultService is the secret-service namespace for token records,
	// the accounts index, and the auto-lock setting.
	VaultService string

	// LockService is the secret-service namespace for the PIN credential.
	LockService string

	// DefaultAutoLockSeconds is used when no auto-lock setting is stored.
	// 0 disables auto-lock.
	DefaultAutoLockSeconds int

	// MaxPinAttempts caps consecutive failed PIN entries per unlock.
	MaxPinAttempts int

	// ClipboardClearDelay is how long a copied code stays on the clipboard.
	ClipboardClearDelay time.Duration

	// RefreshInterval drives the live code/countdown redisplay.
	RefreshInterval time.Duration

	// LockFile is the path of the single-instance lock file.
	LockFile string

	// Config is the path to the Config file.
	Config string
}

// options holds the current configuration values.
var options = &Options{
	DefaultAutoLockSeconds: 300,
	MaxPinAttempts:         3,
	ClipboardClearDelay:    30 * time.Second,
	RefreshInterval:        time.Second,
}

// init initializes command-line flags and sets default values.
func init() {
	flag.StringVar(&options.VaultService, "service", "OTPKeeper", "secret-service namespace for vault data")
	flag.StringVar(&options.LockService, "lock-service", "OTPKeeper_Lock", "secret-service namespace for the PIN")
	flag.StringVar(&options.LockFile, "lockfile", defaultLockFile(), "single-instance lock file path")
	flag.StringVar(&options.Config, "config", "", "path to config file")
	flag.StringVar(&options.Config, "c", "", "path to config file (shorthand)")
}

func defaultLockFile() string {
	return os.TempDir() + string(os.PathSeparator) + "otpkeeper.lock"
}

// Parse parses the command-line flags and environment variables to set
// configuration values. It returns a pointer to the Options struct containing
// the parsed configuration values.
func Parse() *Options {
	flag.Parse()

	// Override flags with environment variables if set
	if configPath := os.Getenv("OTPKEEPER_CONFIG"); configPath != "" {
		options.Config = configPath
	}

	if options.Config != "" {
		if _, err := os.Stat(options.Config); err == nil {
			data, err := os.ReadFile(options.Config)
			if err != nil {
				log.Fatalf("error while reading config file: %v", err)
			}
			if err := json.Unmarshal(data, options); err != nil {
				log.Fatalf("error while parsing config file: %v", err)
			}
		}
	}

	if service := os.Getenv("OTPKEEPER_SERVICE"); service != "" {
		options.VaultService = service
	}
	if lockService := os.Getenv("OTPKEEPER_LOCK_SERVICE"); lockService != "" {
		options.LockService = lockService
	}

	return options
}
