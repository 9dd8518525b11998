package reportconfig

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wonny/marginrecon/internal/contracts"
	"github.com/wonny/marginrecon/internal/window"
)

// Load reads the YAML file, substitutes window placeholders and validates
// SSOT 핵심: KnownFields(true)로 오타/미사용 필드 즉시 실패
func Load(path string, dates window.Dates) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report config: %w", err)
	}
	return Parse(data, dates)
}

// Parse decodes, resolves and validates raw YAML
func Parse(data []byte, dates window.Dates) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", contracts.ErrConfigValidation, err)
	}

	cfg.Resolve(dates)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Resolve replaces {{...}} placeholders in report dates and times
func (c *Config) Resolve(dates window.Dates) {
	pairs := make([]string, 0, 8)
	for token, value := range dates.Placeholders() {
		pairs = append(pairs, token, value)
	}
	r := strings.NewReplacer(pairs...)

	for i := range c.Reports {
		c.Reports[i].Date = r.Replace(c.Reports[i].Date)
		c.Reports[i].TimeOfDay = r.Replace(c.Reports[i].TimeOfDay)
	}
}

// Hash generates SHA256 hash from Config (canonical JSON)
func Hash(cfg *Config) (string, error) {
	jsonBytes, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(jsonBytes)
	return hex.EncodeToString(sum[:]), nil
}
