// Copyright 2025 The fleetgov Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads the runtime settings of fleetgov from flags,
// FLEETGOV_* environment variables and an optional YAML file, in that order
// of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/saltysoup/ai-infra-scripts/internal/events"
)

// EnvPrefix prefixes every environment variable read by fleetgov.
const EnvPrefix = "FLEETGOV"

// Keys. The environment variable of a key is EnvPrefix_KEY with dashes
// replaced by underscores, e.g. FLEETGOV_NATS_URL.
const (
	KeyProject           = "project"
	KeyPolicy            = "policy"
	KeyListenAddress     = "listen-address"
	KeyPort              = "port"
	KeyWebhookSecret     = "webhook-secret"
	KeyRateLimit         = "rate-limit"
	KeyNATSURL           = "nats-url"
	KeyNATSSubjectPrefix = "nats-subject-prefix"
	KeyStopInterval      = "stop-interval"
	KeyDeleteInterval    = "delete-interval"
	KeyRunImmediately    = "run-immediately"
	KeyComputeEndpoint   = "compute-endpoint"
	KeyContainerEndpoint = "container-endpoint"
)

// Config holds the runtime settings. The governance policy itself lives in
// the document referenced by PolicyFile.
type Config struct {
	Project    string
	PolicyFile string

	ListenAddress string
	Port          int
	WebhookSecret string
	// RateLimit is the number of deliveries accepted per second and subscription.
	RateLimit int

	NATSURL           string
	NATSSubjectPrefix string

	StopInterval   time.Duration
	DeleteInterval time.Duration
	RunImmediately bool

	ComputeEndpoint   string
	ContainerEndpoint string
}

// New returns a viper instance reading FLEETGOV_* variables with the
// defaults of every key set.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyListenAddress, "")
	v.SetDefault(KeyPort, 8080)
	v.SetDefault(KeyRateLimit, 10)
	v.SetDefault(KeyNATSSubjectPrefix, events.DefaultSubjectPrefix)
	v.SetDefault(KeyStopInterval, 24*time.Hour)
	v.SetDefault(KeyDeleteInterval, 24*time.Hour)
	v.SetDefault(KeyRunImmediately, true)
	return v
}

// AddFlags registers the settings shared by every command.
func AddFlags(fs *pflag.FlagSet) {
	fs.String(KeyProject, "", "Google Cloud project to govern")
	fs.String(KeyPolicy, "", "Path to a GovernancePolicy document")
	fs.String(KeyComputeEndpoint, "", "Override the Compute Engine API endpoint")
	fs.String(KeyContainerEndpoint, "", "Override the GKE API endpoint")
	fs.String(KeyNATSURL, "", "NATS server for lifecycle events; empty disables publishing")
	fs.String(KeyNATSSubjectPrefix, events.DefaultSubjectPrefix, "Subject prefix for lifecycle events")
}

// AddServeFlags registers the settings of the serve command.
func AddServeFlags(fs *pflag.FlagSet) {
	fs.String(KeyListenAddress, "", "Address the webhook server listens on")
	fs.Int(KeyPort, 8080, "Port the webhook server listens on")
	fs.String(KeyWebhookSecret, "", "Shared secret for X-Fleetgov-Signature-256; empty disables validation")
	fs.Int(KeyRateLimit, 10, "Deliveries accepted per second and subscription")
	fs.Duration(KeyStopInterval, 24*time.Hour, "Interval between stop passes")
	fs.Duration(KeyDeleteInterval, 24*time.Hour, "Interval between delete passes")
	fs.Bool(KeyRunImmediately, true, "Run both passes once at startup")
}

// Load binds fs to v, reads the config file at path when set and returns
// the resulting settings.
func Load(v *viper.Viper, fs *pflag.FlagSet, path string) (*Config, error) {
	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return nil, fmt.Errorf("binding flags: %w", err)
		}
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("failed to check if config file exists: %w", err)
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		log.Log.V(1).Info("Using configuration", "file", v.ConfigFileUsed())
	}

	cfg := &Config{
		Project:           v.GetString(KeyProject),
		PolicyFile:        v.GetString(KeyPolicy),
		ListenAddress:     v.GetString(KeyListenAddress),
		Port:              v.GetInt(KeyPort),
		WebhookSecret:     v.GetString(KeyWebhookSecret),
		RateLimit:         v.GetInt(KeyRateLimit),
		NATSURL:           v.GetString(KeyNATSURL),
		NATSSubjectPrefix: v.GetString(KeyNATSSubjectPrefix),
		StopInterval:      v.GetDuration(KeyStopInterval),
		DeleteInterval:    v.GetDuration(KeyDeleteInterval),
		RunImmediately:    v.GetBool(KeyRunImmediately),
		ComputeEndpoint:   v.GetString(KeyComputeEndpoint),
		ContainerEndpoint: v.GetString(KeyContainerEndpoint),
	}
	return cfg, nil
}

// RequireProject fails when no project is configured.
func (c *Config) RequireProject() error {
	if c.Project == "" {
		return fmt.Errorf("%s is required (flag --%s or %s_PROJECT)", KeyProject, KeyProject, EnvPrefix)
	}
	return nil
}

// Validate checks the value ranges of the settings.
func (c *Config) Validate() error {
	var errs []error
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("%s %d out of range", KeyPort, c.Port))
	}
	if c.RateLimit <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %d", KeyRateLimit, c.RateLimit))
	}
	if c.StopInterval <= 0 || c.DeleteInterval <= 0 {
		errs = append(errs, errors.New("pass intervals must be positive"))
	}
	return utilerrors.NewAggregate(errs)
}
