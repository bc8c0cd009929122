package runner

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"upsell-tracker/internal/database"
	"upsell-tracker/internal/workloads/funnel"
)

// BenchmarkWorkloads runs every workload against SQLite and against any
// server whose DSN is exported in the environment.
func BenchmarkWorkloads(b *testing.B) {
	drivers := map[string]func() (database.DatabaseDriver, string){
		"sqlite": func() (database.DatabaseDriver, string) {
			return database.NewSQLiteDriver(nil), ":memory:"
		},
		"postgres": func() (database.DatabaseDriver, string) {
			return database.NewPostgresDriver(nil), os.Getenv("COMMERCE_TEST_POSTGRES_DSN")
		},
		"mysql": func() (database.DatabaseDriver, string) {
			return database.NewMySQLDriver(nil), os.Getenv("COMMERCE_TEST_MYSQL_DSN")
		},
		"mongo": func() (database.DatabaseDriver, string) {
			return database.NewMongoDriver("commerce_bench", nil), os.Getenv("COMMERCE_TEST_MONGO_URI")
		},
	}
	workloads := map[string]func() database.Workload{
		"checkout_funnel":  func() database.Workload { return &funnel.CheckoutFunnelTest{} },
		"session_churn":    func() database.Workload { return &funnel.SessionChurnTest{} },
		"upsell_dashboard": func() database.Workload { return &funnel.UpsellDashboardTest{Flows: 50} },
		"catalog_browse":   func() database.Workload { return &funnel.CatalogBrowseTest{} },
	}

	for dbType, open := range drivers {
		for name, newWorkload := range workloads {
			b.Run(fmt.Sprintf("%s/%s", dbType, name), func(b *testing.B) {
				driver, dsn := open()
				if dsn == "" {
					b.Skipf("no DSN for %s", dbType)
				}
				if _, isMongo := driver.(*database.MongoDriver); isMongo && name != "session_churn" {
					b.Skipf("%s needs a relational store", name)
				}
				ctx := context.Background()
				if err := driver.Connect(ctx, dsn); err != nil {
					b.Fatalf("Failed to connect to %s: %v", dbType, err)
				}
				defer driver.Close()

				for i := 0; i < b.N; i++ {
					result, err := Benchmark(ctx, driver, newWorkload(), 4, time.Second, nil)
					if err != nil {
						b.Fatalf("Benchmark failed: %v", err)
					}
					b.ReportMetric(result.Throughput, "ops/s")
					b.ReportMetric(float64(result.P99Latency.Microseconds()), "p99-µs")
				}
			})
		}
	}
}
