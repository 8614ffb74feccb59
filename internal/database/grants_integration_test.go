//go:build integration

package database

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/smukkama/pm25-intent/internal/location"
)

func startPostgres(t *testing.T) *DB {
	t.Helper()
	ctx := context.Background()

	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "pm25_user",
				"POSTGRES_PASSWORD": "pm25_pass",
				"POSTGRES_DB":       "pm25_db",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() { _ = c.Terminate(ctx) })

	host, err := c.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := c.MappedPort(ctx, nat.Port("5432/tcp"))
	if err != nil {
		t.Fatalf("mapped port: %v", err)
	}

	dsn := fmt.Sprintf("host=%s port=%s user=pm25_user password=pm25_pass dbname=pm25_db sslmode=disable", host, port.Port())
	db, err := Connect(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := db.RunMigrations(ctx, "../../migrations", logger); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	return db
}

func TestGrants_Postgres(t *testing.T) {
	ctx := context.Background()
	db := startPostgres(t)

	status, err := db.GetGrant(ctx, "phone-1")
	if err != nil || status != location.StatusNotDetermined {
		t.Fatalf("GetGrant(unknown) = (%s, %v); want not_determined", status, err)
	}

	window := time.Now().Add(-time.Minute)

	var wg sync.WaitGroup
	var mu sync.Mutex
	firsts := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			first, err := db.MarkPrompted(ctx, "phone-1", window)
			if err != nil {
				t.Errorf("MarkPrompted err = %v", err)
				return
			}
			if first {
				mu.Lock()
				firsts++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if firsts != 1 {
		t.Errorf("first prompts = %d; want 1", firsts)
	}

	if err := db.UpsertGrant(ctx, "phone-1", location.StatusAuthorized); err != nil {
		t.Fatalf("UpsertGrant err = %v", err)
	}
	grant, err := db.GetLocationGrant(ctx, "phone-1")
	if err != nil || grant == nil {
		t.Fatalf("GetLocationGrant = (%v, %v)", grant, err)
	}
	if grant.Status != location.StatusAuthorized || grant.PromptedAt == nil {
		t.Errorf("grant = %+v; want authorized with prompted_at", grant)
	}

	if first, err := db.MarkPrompted(ctx, "phone-1", time.Now().Add(time.Hour)); err != nil || first {
		t.Errorf("MarkPrompted after answer = (%v, %v); want (false, nil)", first, err)
	}

	// an unanswered prompt is resent once it is older than the window
	if first, err := db.MarkPrompted(ctx, "phone-3", window); err != nil || !first {
		t.Fatalf("MarkPrompted(phone-3) = (%v, %v); want (true, nil)", first, err)
	}
	if again, _ := db.MarkPrompted(ctx, "phone-3", window); again {
		t.Error("MarkPrompted inside the window should not prompt again")
	}
	if again, err := db.MarkPrompted(ctx, "phone-3", time.Now().Add(time.Hour)); err != nil || !again {
		t.Errorf("MarkPrompted after the window = (%v, %v); want (true, nil)", again, err)
	}

	if err := db.UpsertGrant(ctx, "phone-2", location.StatusDenied); err != nil {
		t.Fatalf("UpsertGrant err = %v", err)
	}
	if status, _ := db.GetGrant(ctx, "phone-2"); status != location.StatusDenied {
		t.Errorf("GetGrant(phone-2) = %s; want denied", status)
	}
}
