package infra

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"

	"github.com/jackc/pgx/v5"
)

const (
	localDatabase = "cleanflow_stress"
	localRole     = "cleanflow_test"
	localPassword = "cleanflow"
)

// InitLocalDatabase recreates the stress database on a Postgres reachable at
// PGHOST:PGPORT (default 127.0.0.1:5432) and returns a DSN for it.
func InitLocalDatabase(ctx context.Context) (string, error) {
	hostPort := net.JoinHostPort(envOr("PGHOST", "127.0.0.1"), envOr("PGPORT", "5432"))
	if !pgReady(ctx, hostPort) {
		return "", fmt.Errorf("infra: no postgres at %s", hostPort)
	}

	admin, err := connectAdmin(ctx, hostPort)
	if err != nil {
		return "", err
	}
	defer admin.Close(ctx)

	role := pgx.Identifier{localRole}.Sanitize()
	dbName := pgx.Identifier{localDatabase}.Sanitize()
	steps := []struct {
		what string
		sql  string
	}{
		{"create role", fmt.Sprintf(`DO $$ BEGIN CREATE ROLE %s WITH LOGIN PASSWORD '%s'; EXCEPTION WHEN duplicate_object THEN NULL; END $$;`, role, localPassword)},
		{"drop database", "DROP DATABASE IF EXISTS " + dbName + " WITH (FORCE)"},
		{"create database", fmt.Sprintf("CREATE DATABASE %s OWNER %s", dbName, role)},
	}
	for _, s := range steps {
		if _, err := admin.Exec(ctx, s.sql); err != nil {
			return "", fmt.Errorf("infra: %s: %w", s.what, err)
		}
	}

	return fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable", localRole, localPassword, hostPort, localDatabase), nil
}

// connectAdmin tries the usual superuser credentials of a developer install.
func connectAdmin(ctx context.Context, hostPort string) (*pgx.Conn, error) {
	users := []string{"postgres", "postgres:postgres"}
	if u := os.Getenv("USER"); u != "" {
		users = append(users, u, u+":postgres")
	}
	var errs []error
	for _, u := range users {
		conn, err := pgx.Connect(ctx, fmt.Sprintf("postgres://%s@%s/postgres?sslmode=disable", u, hostPort))
		if err == nil {
			return conn, nil
		}
		errs = append(errs, err)
	}
	return nil, fmt.Errorf("infra: connect as admin: %w", errors.Join(errs...))
}

func pgReady(ctx context.Context, hostPort string) bool {
	host, port, _ := net.SplitHostPort(hostPort)
	return exec.CommandContext(ctx, "pg_isready", "-h", host, "-p", port).Run() == nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
