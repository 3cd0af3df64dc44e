// Seeds a development tenant with a roster of employees. Idempotent: if
// the tenant already exists nothing is written.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/kkarakas-lxera/coursegen-orchestrator/internal/config"
	pg "github.com/kkarakas-lxera/coursegen-orchestrator/internal/infra/db/postgres"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	tenantID := flag.String("tenant", "demo-tenant", "tenant id to seed")
	tenantName := flag.String("name", "Demo Tenant", "tenant display name")
	employees := flag.Int("employees", 30, "number of employees to create")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	var exists bool
	err = pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tenants WHERE id = $1)`, *tenantID).Scan(&exists)
	if err != nil {
		log.Fatalf("check tenant: %v", err)
	}
	if exists {
		fmt.Printf("tenant %q already present. No changes.\n", *tenantID)
		return
	}

	if _, err := pool.Exec(ctx, `INSERT INTO tenants (id, name) VALUES ($1, $2)`, *tenantID, *tenantName); err != nil {
		log.Fatalf("insert tenant: %v", err)
	}
	for i := 1; i <= *employees; i++ {
		id := fmt.Sprintf("%s-emp-%03d", *tenantID, i)
		name := fmt.Sprintf("Employee %03d", i)
		if _, err := pool.Exec(ctx,
			`INSERT INTO employees (id, tenant_id, full_name) VALUES ($1, $2, $3)`,
			id, *tenantID, name); err != nil {
			log.Fatalf("insert employee %s: %v", id, err)
		}
	}
	fmt.Printf("Seeded tenant %q with %d employees.\n", *tenantID, *employees)
}
