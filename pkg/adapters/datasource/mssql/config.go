package mssql

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/ekaya-inc/ekaya-querycache/pkg/config"
)

// Config contains SQL Server connection options. Only SQL authentication
// is supported.
type Config struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string

	Encrypt                bool
	TrustServerCertificate bool
	ConnectionTimeout      int // seconds
	MaxConns               int
}

// DefaultPort returns the default SQL Server port.
func DefaultPort() int {
	return 1433
}

// DefaultConnectionTimeout returns the default connection timeout in seconds.
func DefaultConnectionTimeout() int {
	return 30
}

// FromSettings creates a Config from the datasource section of the loaded
// configuration. ssl_mode maps onto encrypt: "disable" turns encryption off,
// "verify-ca" and "verify-full" also verify the server certificate.
func FromSettings(cfg *config.DatasourceConfig) (*Config, error) {
	c := &Config{
		Host:              cfg.Host,
		Port:              cfg.Port,
		Database:          cfg.Database,
		Username:          cfg.User,
		Password:          cfg.Password,
		Encrypt:           true,
		ConnectionTimeout: DefaultConnectionTimeout(),
		MaxConns:          int(cfg.PoolMaxConns),
	}
	// The postgres default port carries over when the type is switched without a port.
	if c.Port == 0 || c.Port == 5432 {
		c.Port = DefaultPort()
	}

	switch cfg.SSLMode {
	case "disable":
		c.Encrypt = false
	case "verify-ca", "verify-full":
		c.TrustServerCertificate = false
	default:
		c.TrustServerCertificate = true
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks required fields.
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.Database == "" {
		return fmt.Errorf("database is required")
	}
	if c.Username == "" {
		return fmt.Errorf("username is required for SQL authentication")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	return nil
}

// ConnectionString builds a sqlserver:// URL for go-mssqldb.
func (c *Config) ConnectionString() string {
	query := url.Values{}
	query.Add("database", c.Database)
	if c.Encrypt {
		query.Add("encrypt", "true")
	} else {
		query.Add("encrypt", "disable")
	}
	if c.TrustServerCertificate {
		query.Add("TrustServerCertificate", "true")
	}
	if c.ConnectionTimeout > 0 {
		query.Add("connection timeout", strconv.Itoa(c.ConnectionTimeout))
	}
	// Generated SQL only reads; route it to a readable secondary when one exists.
	query.Add("ApplicationIntent", "ReadOnly")
	query.Add("app name", "ekaya-querycache")

	u := url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(c.Username, c.Password),
		Host:     config.ResolveHostForDocker(c.Host) + ":" + strconv.Itoa(c.Port),
		RawQuery: query.Encode(),
	}
	return u.String()
}
