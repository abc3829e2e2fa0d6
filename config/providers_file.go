package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Provider kinds understood by the provider factory
const (
	KindGemini = "gemini"
	KindClaude = "claude"
	KindOpenAI = "openai"
	KindOllama = "ollama"
)

// IsKnownKind reports whether kind names a supported backend
func IsKnownKind(kind string) bool {
	switch kind {
	case KindGemini, KindClaude, KindOpenAI, KindOllama:
		return true
	}
	return false
}

// providersFile is the on-disk layout of PROVIDERS_FILE.
//
//	[priority]
//	standard = ["gemini", "claude", "openai"]
//	adult    = ["ollama"]
//
//	[[provider]]
//	name        = "ollama-large"
//	kind        = "ollama"
//	base_url    = "http://gpu-box:11434"
//	model       = "mixtral"
//	timeout     = "180s"
type providersFile struct {
	Priority struct {
		Standard []string `toml:"standard"`
		Adult    []string `toml:"adult"`
	} `toml:"priority"`
	Providers []fileProvider `toml:"provider"`
}

type fileProvider struct {
	Name        string   `toml:"name"`
	Kind        string   `toml:"kind"`
	BaseURL     string   `toml:"base_url"`
	APIKey      string   `toml:"api_key"`
	APIKeyEnv   string   `toml:"api_key_env"`
	Model       string   `toml:"model"`
	CostPer1K   *float64 `toml:"cost_per_1k"`
	Timeout     string   `toml:"timeout"`
	Temperature *float64 `toml:"temperature"`
}

// ApplyProvidersFile merges a TOML provider file into the configuration.
// Entries matching an existing provider name override the fields they set;
// new names are appended in file order. Non-empty priority lists replace
// the environment ones.
func (a *AIConfig) ApplyProvidersFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	return a.applyProvidersTOML(string(data))
}

func (a *AIConfig) applyProvidersTOML(data string) error {
	var file providersFile
	if _, err := toml.Decode(data, &file); err != nil {
		return fmt.Errorf("parsing providers file: %w", err)
	}

	for _, fp := range file.Providers {
		if fp.Name == "" {
			return fmt.Errorf("provider entry without name")
		}
		idx := -1
		for i := range a.Providers {
			if a.Providers[i].Name == fp.Name {
				idx = i
				break
			}
		}
		if idx < 0 {
			kind := fp.Kind
			if kind == "" {
				kind = fp.Name
			}
			a.Providers = append(a.Providers, ProviderConfig{Name: fp.Name, Kind: kind})
			idx = len(a.Providers) - 1
		}
		if err := fp.applyTo(&a.Providers[idx]); err != nil {
			return err
		}
	}

	if len(file.Priority.Standard) > 0 {
		a.Priority = file.Priority.Standard
	}
	if len(file.Priority.Adult) > 0 {
		a.AdultPriority = file.Priority.Adult
	}
	return nil
}

func (fp fileProvider) applyTo(p *ProviderConfig) error {
	if fp.Kind != "" {
		p.Kind = fp.Kind
	}
	if fp.BaseURL != "" {
		p.BaseURL = fp.BaseURL
	}
	if fp.APIKey != "" {
		p.APIKey = fp.APIKey
	}
	if fp.APIKeyEnv != "" {
		p.APIKey = os.Getenv(fp.APIKeyEnv)
	}
	if fp.Model != "" {
		p.Model = fp.Model
	}
	if fp.CostPer1K != nil {
		p.CostPer1K = *fp.CostPer1K
	}
	if fp.Temperature != nil {
		p.Temperature = *fp.Temperature
	}
	if fp.Timeout != "" {
		d, err := time.ParseDuration(fp.Timeout)
		if err != nil {
			return fmt.Errorf("provider %q: invalid timeout %q: %w", fp.Name, fp.Timeout, err)
		}
		p.Timeout = d
	}
	return nil
}
