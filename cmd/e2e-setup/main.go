// This script is for setting up a clean, predictable database state
// for manual end-to-end testing: wipes all jobs and handoffs, then
// recreates two fixed tenants with known employee rosters.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/kkarakas-lxera/coursegen-orchestrator/internal/config"
	pg "github.com/kkarakas-lxera/coursegen-orchestrator/internal/infra/db/postgres"
)

type fixtureTenant struct {
	id        string
	name      string
	employees []string
}

var fixtures = []fixtureTenant{
	{id: "e2e-alpha", name: "Alpha Corp", employees: []string{"Nora Reed", "Omar Haddad", "Priya Nair"}},
	{id: "e2e-beta", name: "Beta Industries", employees: []string{
		"Sam Carter", "Lena Fischer", "Tomás Rivera", "Yuki Tanaka", "Ivan Petrov", "Maya Goldberg",
	}},
}

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	if err := reset(ctx, pool); err != nil {
		log.Fatalf("reset: %v", err)
	}
	fmt.Println("Database reset to e2e fixtures:")
	for _, t := range fixtures {
		fmt.Printf("  %s (%d employees)\n", t.id, len(t.employees))
	}
}

func reset(ctx context.Context, pool *pgxpool.Pool) error {
	// Handoffs reference jobs, jobs and employees reference tenants.
	for _, stmt := range []string{
		`TRUNCATE stage_handoffs, generation_jobs CASCADE`,
		`DELETE FROM employees WHERE tenant_id LIKE 'e2e-%'`,
		`DELETE FROM tenants WHERE id LIKE 'e2e-%'`,
	} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("%s: %w", stmt, err)
		}
	}
	for _, t := range fixtures {
		if _, err := pool.Exec(ctx, `INSERT INTO tenants (id, name) VALUES ($1, $2)`, t.id, t.name); err != nil {
			return err
		}
		for i, name := range t.employees {
			id := fmt.Sprintf("%s-emp-%d", t.id, i+1)
			if _, err := pool.Exec(ctx,
				`INSERT INTO employees (id, tenant_id, full_name) VALUES ($1, $2, $3)`,
				id, t.id, name); err != nil {
				return err
			}
		}
	}
	return nil
}
