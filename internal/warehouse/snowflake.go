package warehouse

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jmoiron/sqlx"
	sf "github.com/snowflakedb/gosnowflake"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/csassist/internal/config"
)

func snowflakeOpener(cfg config.SnowflakeConfig) Opener {
	return func(ctx context.Context) (*sqlx.DB, error) {
		sfCfg, ambient, err := buildSnowflakeConfig(cfg, os.ReadFile)
		if err != nil {
			return nil, err
		}
		logutil.GetLogger(ctx).Info("opening snowflake session",
			zap.String("account", sfCfg.Account),
			zap.Bool("ambient", ambient),
			zap.String("warehouse", sfCfg.Warehouse),
			zap.String("database", sfCfg.Database),
		)
		dsn, err := sf.DSN(sfCfg)
		if err != nil {
			return nil, fmt.Errorf("build snowflake dsn: %w", err)
		}
		return openAndPing(ctx, "snowflake", dsn)
	}
}

// buildSnowflakeConfig prefers the session token a container service mounts
// for its workloads and falls back to user/password credentials.
func buildSnowflakeConfig(cfg config.SnowflakeConfig, readFile func(string) ([]byte, error)) (*sf.Config, bool, error) {
	out := &sf.Config{
		Account:   cfg.Account,
		Warehouse: cfg.Warehouse,
		Database:  cfg.Database,
		Schema:    cfg.Schema,
		Role:      cfg.Role,
	}
	if cfg.TokenFile != "" && cfg.Host != "" && cfg.Account != "" {
		if token, err := readFile(cfg.TokenFile); err == nil && len(strings.TrimSpace(string(token))) > 0 {
			out.Host = cfg.Host
			out.Protocol = "https"
			out.Port = 443
			out.Authenticator = sf.AuthTypeOAuth
			out.Token = strings.TrimSpace(string(token))
			return out, true, nil
		}
	}
	if cfg.Account == "" || cfg.User == "" || cfg.Password == "" {
		return nil, false, fmt.Errorf("snowflake account/user/password are required when no session token is available")
	}
	out.User = cfg.User
	out.Password = cfg.Password
	if cfg.Host != "" {
		out.Host = cfg.Host
	}
	return out, false, nil
}
