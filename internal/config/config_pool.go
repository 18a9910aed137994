package config

// PoolConfig selects the reactor.PoolPersistence backend. The loop's own
// MaxAgentsPerTenant/PoolSweepInterval/ApprovalTimeoutMinutes tunables
// already live on reactor.Config (loaded as the top-level Config's Loop
// section); this section only decides where pool state is durably stored.
type PoolConfig struct {
	Backend BackendConfig `yaml:"backend"`
}

func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		Backend: BackendConfig{Kind: "sqlite", DSN: "reactor-pool.db"},
	}
}
