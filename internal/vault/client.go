// Package vault stores the exchange API credentials in HashiCorp Vault.
// With Vault disabled the client serves environment-supplied credentials
// from its local cache instead, which keeps development setups simple.
package vault

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/vault/api"

	"github.com/thomasjamais/bitget-agent-sub001/config"
)

// Credentials holds one exchange API credential set
type Credentials struct {
	APIKey     string `json:"api_key"`
	SecretKey  string `json:"secret_key"`
	Passphrase string `json:"passphrase"`
	Exchange   string `json:"exchange"`
	IsTestnet  bool   `json:"is_testnet"`
}

// Client wraps the HashiCorp Vault client with an in-memory cache
type Client struct {
	client *api.Client
	config config.VaultConfig

	mu    sync.RWMutex
	cache map[string]*Credentials // exchange -> credentials
}

// NewClient creates a Vault client. With Vault disabled the returned client
// only serves credentials seeded via StoreCredentials.
func NewClient(cfg config.VaultConfig) (*Client, error) {
	c := &Client{
		config: cfg,
		cache:  make(map[string]*Credentials),
	}
	if !cfg.Enabled {
		return c, nil
	}

	vaultConfig := api.DefaultConfig()
	vaultConfig.Address = cfg.Address

	if cfg.TLSEnabled && cfg.CACert != "" {
		if err := vaultConfig.ConfigureTLS(&api.TLSConfig{CACert: cfg.CACert}); err != nil {
			return nil, fmt.Errorf("failed to configure TLS: %w", err)
		}
	}

	client, err := api.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	client.SetToken(cfg.Token)

	c.client = client
	return c, nil
}

// StoreCredentials writes a credential set to Vault (or the local cache when
// Vault is disabled)
func (c *Client) StoreCredentials(ctx context.Context, creds Credentials) error {
	c.mu.Lock()
	c.cache[c.cacheKey(creds.Exchange, creds.IsTestnet)] = &creds
	c.mu.Unlock()

	if !c.config.Enabled {
		return nil
	}

	secretData := map[string]interface{}{
		"data": map[string]interface{}{
			"api_key":    creds.APIKey,
			"secret_key": creds.SecretKey,
			"passphrase": creds.Passphrase,
			"exchange":   creds.Exchange,
			"is_testnet": creds.IsTestnet,
		},
	}

	if _, err := c.client.Logical().WriteWithContext(ctx, c.secretPath(creds.Exchange, creds.IsTestnet), secretData); err != nil {
		return fmt.Errorf("failed to store credentials in vault: %w", err)
	}
	return nil
}

// GetCredentials reads a credential set, preferring the cache
func (c *Client) GetCredentials(ctx context.Context, exchange string, isTestnet bool) (*Credentials, error) {
	c.mu.RLock()
	if cached, ok := c.cache[c.cacheKey(exchange, isTestnet)]; ok {
		c.mu.RUnlock()
		return cached, nil
	}
	c.mu.RUnlock()

	if !c.config.Enabled {
		return nil, fmt.Errorf("credentials not found and vault is disabled")
	}

	secret, err := c.client.Logical().ReadWithContext(ctx, c.secretPath(exchange, isTestnet))
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials from vault: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("credentials not found")
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid secret format")
	}

	creds := &Credentials{
		APIKey:     getString(data, "api_key"),
		SecretKey:  getString(data, "secret_key"),
		Passphrase: getString(data, "passphrase"),
		Exchange:   getString(data, "exchange"),
		IsTestnet:  getBool(data, "is_testnet"),
	}

	c.mu.Lock()
	c.cache[c.cacheKey(exchange, isTestnet)] = creds
	c.mu.Unlock()

	return creds, nil
}

// DeleteCredentials removes a credential set from Vault and the cache
func (c *Client) DeleteCredentials(ctx context.Context, exchange string, isTestnet bool) error {
	c.mu.Lock()
	delete(c.cache, c.cacheKey(exchange, isTestnet))
	c.mu.Unlock()

	if !c.config.Enabled {
		return nil
	}

	if _, err := c.client.Logical().DeleteWithContext(ctx, c.metadataPath(exchange, isTestnet)); err != nil {
		return fmt.Errorf("failed to delete credentials from vault: %w", err)
	}
	return nil
}

// Health checks Vault connectivity. Always healthy when disabled.
func (c *Client) Health(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}
	health, err := c.client.Sys().HealthWithContext(ctx)
	if err != nil {
		return fmt.Errorf("vault health check failed: %w", err)
	}
	if health.Sealed {
		return fmt.Errorf("vault is sealed")
	}
	return nil
}

func (c *Client) cacheKey(exchange string, isTestnet bool) string {
	env := "live"
	if isTestnet {
		env = "testnet"
	}
	return exchange + "/" + env
}

func (c *Client) secretPath(exchange string, isTestnet bool) string {
	env := "live"
	if isTestnet {
		env = "testnet"
	}
	return fmt.Sprintf("%s/data/%s/%s/%s", c.config.MountPath, c.config.SecretPath, exchange, env)
}

func (c *Client) metadataPath(exchange string, isTestnet bool) string {
	env := "live"
	if isTestnet {
		env = "testnet"
	}
	return fmt.Sprintf("%s/metadata/%s/%s/%s", c.config.MountPath, c.config.SecretPath, exchange, env)
}

func getString(data map[string]interface{}, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}

func getBool(data map[string]interface{}, key string) bool {
	if v, ok := data[key].(bool); ok {
		return v
	}
	return false
}
