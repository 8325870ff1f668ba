// Copyright 2026 The Nyx Orchestrator Authors
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

package config

import (
	"fmt"
	"os"
)

// ServerConfig configures the HTTP API surface.
type ServerConfig struct {
	Host string `yaml:"host,omitempty"`
	Port int    `yaml:"port,omitempty"`

	// BearerToken authenticates requests to the workflow/motivational API.
	// Read from NYX_API_KEY if unset.
	BearerToken string `yaml:"bearer_token,omitempty"`

	// ReadTimeout / WriteTimeout bound request handling, as duration strings.
	ReadTimeout  string `yaml:"read_timeout,omitempty"`
	WriteTimeout string `yaml:"write_timeout,omitempty"`
}

// SetDefaults applies default values to ServerConfig.
func (c *ServerConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.BearerToken == "" {
		c.BearerToken = os.Getenv("NYX_API_KEY")
	}
	if c.ReadTimeout == "" {
		c.ReadTimeout = "30s"
	}
	if c.WriteTimeout == "" {
		c.WriteTimeout = "60s"
	}
}

// Validate checks the server configuration.
func (c *ServerConfig) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be in (0,65535]")
	}
	if c.BearerToken == "" {
		return fmt.Errorf("bearer_token (or NYX_API_KEY) is required")
	}
	return nil
}

// Addr returns the host:port listen address.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
