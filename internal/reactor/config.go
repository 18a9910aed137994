package reactor

import "time"

// Config is the react loop's tunable surface. Defaults match the profile the
// loop was designed against; a deployment loads this from YAML via the
// surrounding internal/config package and overrides only what it needs.
type Config struct {
	MaxTurns                  int           `yaml:"max_turns"`
	ToolExecutionTimeout      time.Duration `yaml:"tool_execution_timeout"`
	AgentToolExecutionTimeout time.Duration `yaml:"agent_tool_execution_timeout"`
	MaxToolResultShare        float64       `yaml:"max_tool_result_share"`
	MaxToolResultChars        int           `yaml:"max_tool_result_chars"`
	ContextTokenLimit         int           `yaml:"context_token_limit"`
	ContextTrimThreshold      float64       `yaml:"context_trim_threshold"`
	MaxHistoryMessages        int           `yaml:"max_history_messages"`
	LLMMaxRetries             int           `yaml:"llm_max_retries"`
	LLMRetryBaseDelay         time.Duration `yaml:"llm_retry_base_delay"`
	ApprovalTimeoutMinutes    int           `yaml:"approval_timeout_minutes"`

	// MaxAgentsPerTenant bounds the agent pool; oldest entries are evicted
	// first once exceeded. Not part of spec.md's core config surface but
	// required by the pool's invariants (§4.3).
	MaxAgentsPerTenant int           `yaml:"max_agents_per_tenant"`
	PoolSweepInterval  time.Duration `yaml:"pool_sweep_interval"`

	// ToolConcurrency bounds the number of tool goroutines in flight at
	// once across the process via a shared executor semaphore.
	// Zero means unbounded (one goroutine per call in the current turn).
	ToolConcurrency int `yaml:"tool_concurrency"`
}

// DefaultConfig returns the values named in the external interface contract.
func DefaultConfig() Config {
	return Config{
		MaxTurns:                  10,
		ToolExecutionTimeout:      30 * time.Second,
		AgentToolExecutionTimeout: 120 * time.Second,
		MaxToolResultShare:        0.3,
		MaxToolResultChars:        400_000,
		ContextTokenLimit:         128_000,
		ContextTrimThreshold:      0.8,
		MaxHistoryMessages:        40,
		LLMMaxRetries:             2,
		LLMRetryBaseDelay:         time.Second,
		ApprovalTimeoutMinutes:    30,
		MaxAgentsPerTenant:        50,
		PoolSweepInterval:         5 * time.Minute,
		ToolConcurrency:           0,
	}
}

// sweepInterval returns the configured sweep interval, clamped so a
// misconfigured pool still sweeps at least every ttl/4 as the invariant in
// §4.3 requires. ttl here is the approval timeout expressed as a duration,
// the tightest TTL the pool is expected to enforce.
func (c Config) sweepInterval(ttl time.Duration) time.Duration {
	if c.PoolSweepInterval > 0 && c.PoolSweepInterval <= ttl/4 {
		return c.PoolSweepInterval
	}
	if ttl/4 > 0 {
		return ttl / 4
	}
	return time.Minute
}
