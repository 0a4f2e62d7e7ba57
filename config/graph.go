package config

import "time"

// GraphConfig controls graph compilation and per-node fan-in behavior. It is
// consumed only during construction, then folded into the compiled graph
// and not consulted again.
//
// Example:
//
//	cfg := config.DefaultGraphConfig("order-pipeline")
//	cfg.FanInTimeout = 10 * time.Second
//	fqn, err := manager.AddGraphConfig(tree, cfg)
type GraphConfig struct {
	// Name identifies the graph; combined with Variant and each job's short
	// name to build fully-qualified names.
	Name string `json:"name"`

	// Variant disambiguates multiple compilations of structurally similar
	// trees under the same Name. Left empty, the compiler assigns a numeric
	// suffix ("_1", "_2", ...) only if the resulting FQN collides.
	Variant string `json:"variant"`

	// Observer names an observer implementation ("noop", "slog", ...).
	// AddGraphConfig does not read it; events about the graph go to the
	// manager's own observer.
	Observer string `json:"observer"`

	// FanInTimeout bounds how long a node waits for all of its predecessors
	// to deliver before the executor gives up with a FanInTimeout error.
	FanInTimeout time.Duration `json:"fan_in_timeout"`
}

// DefaultGraphConfig returns sensible defaults for graph compilation.
//
// Default values:
//   - Observer: "noop" (zero-overhead unless a caller opts in)
//   - FanInTimeout: 30s, the default fan-in deadline applied to every node
func DefaultGraphConfig(name string) GraphConfig {
	return GraphConfig{
		Name:         name,
		Observer:     "noop",
		FanInTimeout: 30 * time.Second,
	}
}

func (c *GraphConfig) Merge(source *GraphConfig) {
	if source.Name != "" {
		c.Name = source.Name
	}
	if source.Variant != "" {
		c.Variant = source.Variant
	}
	if source.Observer != "" {
		c.Observer = source.Observer
	}
	if source.FanInTimeout > 0 {
		c.FanInTimeout = source.FanInTimeout
	}
}
