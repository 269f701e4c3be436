// Public domain.

package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/soniakeys/gwagn/internal/config"
	"github.com/soniakeys/gwagn/internal/logger"
)

// ErrCredentials is wrapped by credential download failures.
var ErrCredentials = errors.New("catalog: credentials unavailable")

// Credentials are Postgres connection parameters.
type Credentials struct {
	DBName   string `json:"dbname"`
	User     string `json:"user"`
	Host     string `json:"host"`
	Password string `json:"password"`
}

// DSN returns a postgres URL for c.
func (c Credentials) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   c.Host,
		Path:   "/" + c.DBName,
	}
	return u.String()
}

// FetchCredentials downloads a JSON document of the form
// {"params": {"dbname": ..., "user": ..., "host": ..., "password": ...}}.
func FetchCredentials(ctx context.Context, client *http.Client, rawURL string) (*Credentials, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCredentials, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCredentials, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s", ErrCredentials, resp.Status)
	}
	var doc struct {
		Params *Credentials `json:"params"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCredentials, err)
	}
	if doc.Params == nil || doc.Params.Host == "" {
		return nil, fmt.Errorf("%w: no params", ErrCredentials)
	}
	return doc.Params, nil
}

// open opens and pings.
func open(ctx context.Context, driver, dsn string) (*DB, error) {
	db, err := Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Connect opens the catalog described by cfg.
//
// An explicit DSN is used as is.  Otherwise, for driver pgx, credentials
// are downloaded from cfg.CredentialsURL within cfg.Timeout; if either the
// download or the connection fails the local parameters in cfg are tried
// instead.
func Connect(ctx context.Context, cfg config.Catalog, client *http.Client, log logger.Logger) (*DB, error) {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.DSN != "" {
		db, err := open(ctx, cfg.Driver, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("connect catalog: %w", err)
		}
		db.Log = log
		return db, nil
	}
	if cfg.CredentialsURL != "" {
		tctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		cred, err := FetchCredentials(tctx, client, cfg.CredentialsURL)
		if err == nil {
			var db *DB
			if db, err = open(tctx, "pgx", cred.DSN()); err == nil {
				cancel()
				db.Log = log
				log.Info(ctx, "connected to remote catalog", logger.String("host", cred.Host))
				return db, nil
			}
		}
		cancel()
		log.Warn(ctx, "remote catalog connection failed, using local parameters",
			logger.Error(err))
	}
	local := Credentials{DBName: cfg.DBName, User: cfg.User, Host: cfg.Host, Password: cfg.Password}
	db, err := open(ctx, "pgx", local.DSN())
	if err != nil {
		return nil, fmt.Errorf("connect local catalog: %w", err)
	}
	db.Log = log
	log.Info(ctx, "connected to local catalog", logger.String("host", cfg.Host))
	return db, nil
}
