package main

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

// mysqlConfigFromURL accepts either a mysql:// URL or a native driver DSN
// (user:pass@tcp(host:port)/db) and returns a driver config with the
// read-only introspection options applied.
func mysqlConfigFromURL(raw string) (*mysql.Config, error) {
	dsn := raw
	if strings.HasPrefix(raw, "mysql://") {
		var err error
		dsn, err = mysqlURLToDSN(raw)
		if err != nil {
			return nil, err
		}
	}

	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}
	if cfg.DBName == "" {
		return nil, fmt.Errorf("mysql dsn has no database name")
	}
	cfg.ParseTime = true
	cfg.InterpolateParams = true
	cfg.Loc = time.UTC
	return cfg, nil
}

func mysqlURLToDSN(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse mysql url: %w", err)
	}

	var userInfo string
	if u.User != nil {
		userInfo = u.User.Username()
		if pass, ok := u.User.Password(); ok {
			userInfo += ":" + pass
		}
		userInfo += "@"
	}

	host := u.Hostname()
	if host == "" {
		host = "127.0.0.1"
	}
	port := u.Port()
	if port == "" {
		port = "3306"
	}

	dsn := fmt.Sprintf("%stcp(%s)/%s", userInfo, net.JoinHostPort(host, port), strings.TrimPrefix(u.Path, "/"))
	if u.RawQuery != "" {
		dsn += "?" + u.RawQuery
	}
	return dsn, nil
}
