package snowflake

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"net/url"
	"os"
	"strings"

	sf "github.com/snowflakedb/gosnowflake"

	"accessetl/internal/storage"
)

// buildConfig turns backend options into a gosnowflake.Config.
func buildConfig(cfg storage.Config) (*sf.Config, error) {
	sc := &sf.Config{
		Account:   cfg.Option(OptAccount, ""),
		User:      cfg.Option(OptUser, ""),
		Password:  cfg.Option(OptPassword, ""),
		Warehouse: cfg.Option(OptWarehouse, ""),
		Database:  cfg.Option(OptDatabase, ""),
		Schema:    cfg.Option(OptSchema, ""),
		Role:      cfg.Option(OptRole, ""),
		Token:     cfg.Option(OptToken, ""),
	}
	if sc.Account == "" {
		return nil, fmt.Errorf("snowflake: account is required")
	}

	auth, okta, err := parseAuthenticator(cfg.Option(OptAuthenticator, "snowflake"))
	if err != nil {
		return nil, err
	}
	sc.Authenticator = auth
	sc.OktaURL = okta

	if auth == sf.AuthTypeJwt {
		path := cfg.Option(OptPrivateKeyPath, "")
		if path == "" {
			return nil, fmt.Errorf("snowflake: snowflake_jwt requires a private key path")
		}
		key, err := loadPrivateKey(path)
		if err != nil {
			return nil, err
		}
		sc.PrivateKey = key
	}
	return sc, nil
}

// parseAuthenticator maps SNOWFLAKE_AUTH values (as accepted by the
// Snowflake connectors) to gosnowflake auth types. An https URL selects
// native Okta SSO against that URL.
func parseAuthenticator(v string) (sf.AuthType, *url.URL, error) {
	s := strings.TrimSpace(v)
	switch strings.ToLower(s) {
	case "", "snowflake":
		return sf.AuthTypeSnowflake, nil, nil
	case "externalbrowser":
		return sf.AuthTypeExternalBrowser, nil, nil
	case "oauth":
		return sf.AuthTypeOAuth, nil, nil
	case "snowflake_jwt":
		return sf.AuthTypeJwt, nil, nil
	case "username_password_mfa":
		return sf.AuthTypeUsernamePasswordMFA, nil, nil
	}
	if strings.HasPrefix(strings.ToLower(s), "https://") {
		u, err := url.Parse(s)
		if err != nil {
			return 0, nil, fmt.Errorf("snowflake: invalid okta url %q: %w", s, err)
		}
		return sf.AuthTypeOkta, u, nil
	}
	return 0, nil, fmt.Errorf("snowflake: unsupported authenticator %q", v)
}

func loadPrivateKey(path string) (*rsa.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("snowflake: read private key: %w", err)
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("snowflake: %s is not PEM encoded", path)
	}
	if k, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return k, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("snowflake: parse private key: %w", err)
	}
	k, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("snowflake: private key is %T, want RSA", parsed)
	}
	return k, nil
}
