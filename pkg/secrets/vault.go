// Package secrets copies key/value secrets from a HashiCorp Vault KV mount into
// the process environment so config.Load picks them up like any other variable.
package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/machikuchikomi/kuchikomi-cho/backend/pkg/retry"
)

// VaultConfig addresses one KV secret. Enabled is false unless VAULT_ENABLED=true.
type VaultConfig struct {
	Enabled   bool
	Addr      string
	Token     string
	Namespace string
	Mount     string
	Path      string
	KVVersion int
	Timeout   time.Duration
	// Overwrite replaces variables that are already set
	Overwrite bool

	HTTPClient *http.Client
}

// Result counts what a load did
type Result struct {
	Loaded  int
	Skipped int
}

// VaultConfigFromEnv reads the VAULT_* variables
func VaultConfigFromEnv() VaultConfig {
	cfg := VaultConfig{
		Enabled:   strings.EqualFold(os.Getenv("VAULT_ENABLED"), "true"),
		Addr:      os.Getenv("VAULT_ADDR"),
		Token:     os.Getenv("VAULT_TOKEN"),
		Namespace: os.Getenv("VAULT_NAMESPACE"),
		Mount:     "secret",
		Path:      os.Getenv("VAULT_PATH"),
		KVVersion: 2,
		Timeout:   5 * time.Second,
		Overwrite: strings.EqualFold(os.Getenv("VAULT_OVERWRITE"), "true"),
	}
	if v := os.Getenv("VAULT_MOUNT"); v != "" {
		cfg.Mount = v
	}
	if v, err := strconv.Atoi(os.Getenv("VAULT_KV_VERSION")); err == nil {
		cfg.KVVersion = v
	}
	if v, err := strconv.Atoi(os.Getenv("VAULT_TIMEOUT_MS")); err == nil && v > 0 {
		cfg.Timeout = time.Duration(v) * time.Millisecond
	}
	return cfg
}

// LoadIntoEnv fetches the secret and sets each key as an environment variable.
// A disabled config is a no-op.
func LoadIntoEnv(ctx context.Context, cfg VaultConfig) (Result, error) {
	if !cfg.Enabled {
		return Result{}, nil
	}

	data, err := fetch(ctx, cfg)
	if err != nil {
		return Result{}, err
	}

	var res Result
	for key, value := range data {
		if !cfg.Overwrite && os.Getenv(key) != "" {
			res.Skipped++
			continue
		}
		if err := os.Setenv(key, stringify(value)); err != nil {
			return res, fmt.Errorf("setting %s: %w", key, err)
		}
		res.Loaded++
	}
	return res, nil
}

func fetch(ctx context.Context, cfg VaultConfig) (map[string]interface{}, error) {
	if cfg.Addr == "" || cfg.Token == "" || cfg.Path == "" {
		return nil, errors.New("vault configuration incomplete (VAULT_ADDR, VAULT_TOKEN, VAULT_PATH)")
	}
	url, err := secretURL(cfg.Addr, cfg.Mount, cfg.Path, cfg.KVVersion)
	if err != nil {
		return nil, err
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	var body []byte
	err = retry.Do(ctx, retry.APIConfig(), "vault", func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return retry.Permanent(err)
		}
		req.Header.Set("X-Vault-Token", cfg.Token)
		if cfg.Namespace != "" {
			req.Header.Set("X-Vault-Namespace", cfg.Namespace)
		}

		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		switch {
		case resp.StatusCode >= 500:
			return fmt.Errorf("vault fetch failed: %s", resp.Status)
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			return retry.Permanent(fmt.Errorf("vault fetch failed: %s %s", resp.Status, strings.TrimSpace(string(b))))
		}
		body = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decoding vault response: %w", err)
	}
	return extractData(payload, cfg.KVVersion)
}

func secretURL(addr, mount, path string, kvVersion int) (string, error) {
	addr = strings.TrimRight(addr, "/")
	mount = strings.Trim(mount, "/")
	path = strings.TrimLeft(path, "/")
	if addr == "" || mount == "" || path == "" {
		return "", errors.New("vault address, mount and path must be set")
	}
	if kvVersion == 1 {
		return fmt.Sprintf("%s/v1/%s/%s", addr, mount, path), nil
	}
	return fmt.Sprintf("%s/v1/%s/data/%s", addr, mount, path), nil
}

// KV v2 nests the secret one level deeper than v1
func extractData(payload map[string]interface{}, kvVersion int) (map[string]interface{}, error) {
	data, ok := payload["data"].(map[string]interface{})
	if !ok {
		return nil, errors.New("vault response missing data")
	}
	if kvVersion == 1 {
		return data, nil
	}
	inner, ok := data["data"].(map[string]interface{})
	if !ok {
		return nil, errors.New("vault response missing data for KV v2")
	}
	return inner, nil
}

func stringify(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case nil:
		return ""
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(encoded)
	}
}
