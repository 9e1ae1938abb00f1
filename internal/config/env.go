package config

import (
	"os"
	"strings"

	"github.com/agentstation/stocksync/pkg/suppliers"
)

// EnvPrefixes returns the environment prefixes tried for a supplier's
// credentials, in order: env_prefix, the name, the name with dashes as
// underscores, and the name with separators removed. All are upper-cased.
func EnvPrefixes(cfg suppliers.Config) []string {
	candidates := []string{
		cfg.EnvPrefix,
		cfg.Name,
		strings.ReplaceAll(cfg.Name, "-", "_"),
		strings.NewReplacer("-", "", "_", "").Replace(cfg.Name),
	}

	var out []string
	seen := map[string]bool{}
	for _, c := range candidates {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// Credential looks up <PREFIX>_<field> for each candidate prefix and returns
// the first non-empty value.
func Credential(cfg suppliers.Config, field string) string {
	for _, prefix := range EnvPrefixes(cfg) {
		if v := os.Getenv(prefix + "_" + field); v != "" {
			return v
		}
	}
	return ""
}
