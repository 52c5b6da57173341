package subagent

import (
	"os"
	"strconv"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/agentrt/internal/providers"
)

// DefaultMaxTurns bounds a subagent's own tool-call loop when no override
// is configured.
const DefaultMaxTurns = 10

// Environment variables that override task execution, checked ahead of
// any config file value. Left in place for tooling that launches
// subagent runs out-of-process and only has env vars to work with.
const (
	EnvMaxTurns = "GOOSE_SUBAGENT_MAX_TURNS"
	EnvProvider = "GOOSE_SUBAGENT_PROVIDER"
	EnvModel    = "GOOSE_SUBAGENT_MODEL"
)

// TaskConfig carries the resolved provider and turn budget for one
// subagent run. Build one with NewTaskConfig per spawn so environment
// overrides are re-read at dispatch time, not at process startup.
type TaskConfig struct {
	ID       string
	Provider providers.Provider
	MaxTurns int
}

// NewTaskConfig resolves a TaskConfig, falling back to fallbackProvider
// when no subagent-specific provider override is configured and unable
// to be constructed by resolve.
//
// resolve, when non-nil, is asked to build a Provider for an explicit
// (providerName, model) override pulled from the environment; it mirrors
// the provider factory lookup a full agent registry would do.
func NewTaskConfig(fallbackProvider providers.Provider, resolve func(providerName, model string) (providers.Provider, error)) TaskConfig {
	maxTurns := DefaultMaxTurns
	if v := getVar(EnvMaxTurns); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			maxTurns = n
		}
	}

	provider := fallbackProvider
	if resolve != nil {
		providerName := getVar(EnvProvider)
		model := getVar(EnvModel)
		if providerName != "" && model != "" {
			if p, err := resolve(providerName, model); err == nil && p != nil {
				provider = p
			}
		}
	}

	return TaskConfig{
		ID:       uuid.NewString(),
		Provider: provider,
		MaxTurns: maxTurns,
	}
}

func getVar(name string) string {
	return os.Getenv(name)
}
