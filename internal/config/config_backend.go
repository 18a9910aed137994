package config

// BackendConfig selects a storage backend by kind, shared by the pool,
// memory and credential sections. DSN is interpreted per Kind: a file path
// for "sqlite"/"file", a connection string for "postgres".
type BackendConfig struct {
	Kind string `yaml:"kind"`
	DSN  string `yaml:"dsn"`
}
