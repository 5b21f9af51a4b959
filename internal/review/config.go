package review

import (
	"encoding/json"
	"fmt"

	"overseer/internal/faststate"
)

const configKey = "reviewer:config"

// RuntimeConfig is the subset of review tuning knobs that are
// runtime-mutable via the admin surface. It is persisted as a JSON
// blob at the reviewer:config fast-state key.
type RuntimeConfig struct {
	LightThreshold float64 `json:"light_threshold"`
	HeavyThreshold float64 `json:"heavy_threshold"`
	WorkerCount    int     `json:"worker_count"`
}

// ConfigStore is a typed accessor over the fast-state store for the
// reviewer's runtime config blob. Reads are not cached — a one-request
// staleness window is acceptable.
type ConfigStore struct {
	store *faststate.Store
}

// NewConfigStore wraps store, seeding the config key with initial if it
// is not already present.
func NewConfigStore(store *faststate.Store, initial RuntimeConfig) (*ConfigStore, error) {
	c := &ConfigStore{store: store}
	if _, ok, err := c.get(); err != nil {
		return nil, err
	} else if !ok {
		if err := c.Set(initial); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *ConfigStore) get() (RuntimeConfig, bool, error) {
	raw, ok, err := c.store.Get(configKey)
	if err != nil {
		return RuntimeConfig{}, false, fmt.Errorf("failed to read reviewer config: %w", err)
	}
	if !ok {
		return RuntimeConfig{}, false, nil
	}
	var cfg RuntimeConfig
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return RuntimeConfig{}, false, fmt.Errorf("failed to decode reviewer config: %w", err)
	}
	return cfg, true, nil
}

// Get returns the current runtime config. If the key was cleared it
// returns an error; it does not fall back to the seeded initial value.
func (c *ConfigStore) Get() (RuntimeConfig, error) {
	cfg, ok, err := c.get()
	if err != nil {
		return RuntimeConfig{}, err
	}
	if !ok {
		return RuntimeConfig{}, fmt.Errorf("reviewer config not initialized")
	}
	return cfg, nil
}

// Set overwrites the runtime config. Threshold changes take effect on the
// next request; WorkerCount is read only when the Router starts.
func (c *ConfigStore) Set(cfg RuntimeConfig) error {
	payload, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode reviewer config: %w", err)
	}
	if err := c.store.Set(configKey, string(payload), 0); err != nil {
		return fmt.Errorf("failed to persist reviewer config: %w", err)
	}
	return nil
}
