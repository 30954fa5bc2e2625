//go:build integration

package integration

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// databaseURLEnv points the suite at an existing database instead of a
// throwaway container. The database must be empty; migrations run on it.
const databaseURLEnv = "DASHBOARD_TEST_DATABASE_URL"

// startPostgres returns a connection string for the suite and a cleanup
// function. Without databaseURLEnv it runs postgres:16-alpine through the
// Docker CLI on a port Docker picks, with the data dir on tmpfs.
func startPostgres(ctx context.Context) (string, func(), error) {
	if url := os.Getenv(databaseURLEnv); url != "" {
		return url, func() {}, waitForPostgres(ctx, url, 10*time.Second)
	}

	out, err := exec.CommandContext(ctx, "docker", "run", "-d", "--rm",
		"--label", "dashboard-integration",
		"-P",
		"--tmpfs", "/var/lib/postgresql/data",
		"-e", "POSTGRES_USER=dashboard",
		"-e", "POSTGRES_PASSWORD=dashboard",
		"-e", "POSTGRES_DB=dashboard_test",
		"postgres:16-alpine",
		"-c", "fsync=off",
		"-c", "max_connections=50",
	).CombinedOutput()
	if err != nil {
		return "", nil, fmt.Errorf("docker run: %w: %s", err, out)
	}
	id := strings.TrimSpace(string(out))
	cleanup := func() { exec.Command("docker", "stop", "-t", "1", id).Run() }

	addr, err := mappedAddr(ctx, id)
	if err != nil {
		cleanup()
		return "", nil, err
	}
	url := fmt.Sprintf("postgres://dashboard:dashboard@%s/dashboard_test?sslmode=disable", addr)
	if err := waitForPostgres(ctx, url, 30*time.Second); err != nil {
		cleanup()
		return "", nil, err
	}
	return url, cleanup, nil
}

// mappedAddr asks Docker which host port it published for 5432.
func mappedAddr(ctx context.Context, id string) (string, error) {
	out, err := exec.CommandContext(ctx, "docker", "port", id, "5432/tcp").Output()
	if err != nil {
		return "", fmt.Errorf("docker port: %w", err)
	}
	// One line per address family; the first is enough.
	line := strings.TrimSpace(strings.SplitN(string(out), "\n", 2)[0])
	_, port, err := net.SplitHostPort(line)
	if err != nil {
		return "", fmt.Errorf("parse published port %q: %w", line, err)
	}
	return net.JoinHostPort("127.0.0.1", port), nil
}

// waitForPostgres retries until the server answers a query. The entrypoint
// restarts postgres once after init, so a single successful dial is not proof.
func waitForPostgres(ctx context.Context, url string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var lastErr error
	for ok := 0; ok < 2; {
		conn, err := pgx.Connect(ctx, url)
		if err == nil {
			_, err = conn.Exec(ctx, "SELECT 1")
			conn.Close(ctx)
		}
		if err == nil {
			ok++
		} else {
			ok, lastErr = 0, err
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("postgres not ready after %v: %v", timeout, lastErr)
		case <-time.After(300 * time.Millisecond):
		}
	}
	return nil
}
