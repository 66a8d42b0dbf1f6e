package integration

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	postgresImage  = "postgres:16-alpine"
	externalDBEnv  = "LIMS_TEST_DATABASE_URL"
	readyTimeout   = 30 * time.Second
	containerUser  = "lims"
	containerPass  = "lims"
	containerDB    = "limstest"
	containerLabel = "lims-integration"
)

// errNoDocker means neither an external database nor a docker binary is
// available, so the suite has nothing to run against.
var errNoDocker = errors.New("no docker binary on PATH and " + externalDBEnv + " unset")

// postgresURL returns a connection string for an empty database. An
// external database named by LIMS_TEST_DATABASE_URL wins over a throwaway
// container.
func postgresURL(ctx context.Context) (string, func(), error) {
	if url := os.Getenv(externalDBEnv); url != "" {
		return url, func() {}, waitForPostgres(ctx, url, readyTimeout)
	}
	if _, err := exec.LookPath("docker"); err != nil {
		return "", nil, errNoDocker
	}
	return startPostgresContainer(ctx)
}

// startPostgresContainer runs a postgres container on a free host port and
// returns its connection string and a cleanup that removes it.
func startPostgresContainer(ctx context.Context) (string, func(), error) {
	port, err := getFreePort()
	if err != nil {
		return "", nil, fmt.Errorf("find free port: %w", err)
	}

	name := fmt.Sprintf("%s-%d", containerLabel, port)
	_ = exec.CommandContext(ctx, "docker", "rm", "-f", name).Run()

	out, err := exec.CommandContext(ctx, "docker", "run", "-d",
		"--name", name,
		"--label", containerLabel,
		"-p", fmt.Sprintf("%d:5432", port),
		"-e", "POSTGRES_USER="+containerUser,
		"-e", "POSTGRES_PASSWORD="+containerPass,
		"-e", "POSTGRES_DB="+containerDB,
		postgresImage,
	).CombinedOutput()
	if err != nil {
		return "", nil, fmt.Errorf("docker run: %w\n%s", err, out)
	}
	id := strings.TrimSpace(string(out))
	cleanup := func() { _ = exec.Command("docker", "rm", "-f", id).Run() }

	url := fmt.Sprintf("postgres://%s:%s@localhost:%d/%s?sslmode=disable",
		containerUser, containerPass, port, containerDB)
	if err := waitForPostgres(ctx, url, readyTimeout); err != nil {
		cleanup()
		return "", nil, err
	}
	return url, cleanup, nil
}

func getFreePort() (int, error) {
	l, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// waitForPostgres polls until the server answers a ping.
func waitForPostgres(ctx context.Context, url string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		pool, err := pgxpool.New(ctx, url)
		if err == nil {
			err = pool.Ping(ctx)
			pool.Close()
			if err == nil {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("postgres not ready after %v: %w", timeout, err)
		case <-ticker.C:
		}
	}
}
