package config

import (
	"flag"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	tests := []struct {
		start       *Config
		expected    *Config
		name        string
		args        []string
		expectPanic bool
	}{
		{name: "all flags", args: []string{"cmd",
			"-a", "127.0.0.1:9090", "-d", "db", "-s", "secret",
			"-t", "60", "-o", "5", "-w", "15", "-k", "12", "-r", "localhost:6379", "-l", "debug",
			"-f", "https://app.example", "-m", "smtp.example",
			"-u", "user", "-p", "password", "-b", "bucket", "-g", "us-west-1", "-e", "http://endpoint",
		},
			start: &Config{},
			expected: &Config{
				EndpointAddrHTTP:             "127.0.0.1:9090",
				DatabaseDSN:                  "db",
				SecretKey:                    "secret",
				SessionTokenValidityDuration: 60 * time.Minute,
				OTPValidityDuration:          5 * time.Minute,
				ResetTokenValidityDuration:   15 * time.Minute,
				BcryptCost:                   12,
				RedisAddr:                    "localhost:6379",
				LogLevel:                     "debug",
				FrontendURL:                  "https://app.example",
				SMTPHost:                     "smtp.example",
				S3RootUser:                   "user",
				S3RootPassword:               "password",
				S3Bucket:                     "bucket",
				S3Region:                     "us-west-1",
				S3BaseEndpoint:               "http://endpoint",
			}},
		{name: "unset duration flags keep sub-minute values",
			args:     []string{"cmd", "-c", "cfg.json"},
			start:    &Config{OTPValidityDuration: 90 * time.Second},
			expected: &Config{OTPValidityDuration: 90 * time.Second},
		},
		{name: "bad integer panics",
			args:        []string{"cmd", "-k", "lots"},
			start:       &Config{},
			expectPanic: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.PanicOnError)

			os.Args = tt.args
			config := tt.start

			if !tt.expectPanic {
				require.NotPanics(t, func() { parseFlags(config) })
				assert.Empty(t, cmp.Diff(config, tt.expected))
			} else {
				require.Panics(t, func() { parseFlags(config) })
			}
		})
	}
}
