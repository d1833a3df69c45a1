package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

type Variant string

const (
	VariantMariaDB Variant = "mariadb"
	VariantMySQL   Variant = "mysql"
	VariantPercona Variant = "percona"
)

// ServerInfo is what Verify learns about the target server.
type ServerInfo struct {
	Version string
	Variant Variant
}

// Verify opens a connection to the server, checks that it answers and that the credentials are
// accepted, and reports the server version and variant.
func Verify(ctx context.Context, c Connection) (ServerInfo, error) {
	var info ServerInfo
	db, err := sql.Open("mysql", c.MySQL())
	if err != nil {
		return info, fmt.Errorf("failed to open connection to database: %w", err)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		return info, fmt.Errorf("failed to connect to database %s: %w", c, err)
	}
	var comment string
	if err := db.QueryRowContext(ctx, "SELECT @@version, @@version_comment").Scan(&info.Version, &comment); err != nil {
		return info, fmt.Errorf("failed to query version: %w", err)
	}
	variant, ok := variantOf(info.Version, comment)
	if !ok {
		variant = probeVariant(ctx, db)
	}
	info.Variant = variant
	return info, nil
}

// variantOf guesses the server flavour from @@version and @@version_comment. ok is false when
// neither string names one.
func variantOf(version, comment string) (variant Variant, ok bool) {
	version, comment = strings.ToLower(version), strings.ToLower(comment)
	switch {
	case strings.Contains(version, "mariadb") || strings.Contains(comment, "mariadb"):
		return VariantMariaDB, true
	case strings.Contains(comment, "percona"):
		return VariantPercona, true
	case strings.Contains(comment, "mysql"):
		return VariantMySQL, true
	}
	return VariantMySQL, false
}

// probeVariant looks for engines and plugins only one flavour ships. None of this is fully
// reliable; anything unrecognized is treated as mysql.
func probeVariant(ctx context.Context, db *sql.DB) Variant {
	var dummy string
	if err := db.QueryRowContext(ctx, "SELECT 1 FROM information_schema.engines WHERE engine = 'Aria' LIMIT 1").Scan(&dummy); err == nil {
		return VariantMariaDB
	}
	if err := db.QueryRowContext(ctx, "SELECT 1 FROM information_schema.plugins WHERE plugin_name LIKE '%percona%' LIMIT 1").Scan(&dummy); err == nil {
		return VariantPercona
	}
	return VariantMySQL
}
