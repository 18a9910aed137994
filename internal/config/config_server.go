package config

import "fmt"

// ServerConfig configures the §6.5 HTTP/stream transport: listen address
// and the shared secret used to validate bearer tokens on /chat and /stream.
type ServerConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	AuthSecret string `yaml:"auth_secret"`
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host: "0.0.0.0",
		Port: 8080,
	}
}

func (c ServerConfig) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: server.port %d out of range", c.Port)
	}
	return nil
}

// Addr returns the host:port pair net/http.ListenAndServe expects.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
