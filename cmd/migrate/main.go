package main

import (
	"context"
	"crypto/sha256"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
)

// Migration is a single versioned DDL file from the migrations directory.
type Migration struct {
	Version  int
	Name     string
	Filename string
	SQL      string
	Checksum string
}

var (
	projectID     = flag.String("project", "", "GCP project ID (required)")
	datasetID     = flag.String("dataset", "retail_dw", "BigQuery dataset ID")
	appliedBy     = flag.String("applied-by", "migrate-cli", "Name of the tool applying migrations")
	migrationsDir = flag.String("migrations", "migrations/bigquery", "Path to migrations directory")
)

func main() {
	flag.Parse()

	ctx := context.Background()

	if *projectID == "" {
		log.Fatal("Error: -project flag is required. Please specify your GCP project ID.")
	}

	client, err := bigquery.NewClient(ctx, *projectID)
	if err != nil {
		log.Fatalf("Failed to create BigQuery client: %v", err)
	}
	defer client.Close()

	log.Printf("Connected to BigQuery project: %s, dataset: %s", *projectID, *datasetID)

	if err := ensureLedgerTable(ctx, client); err != nil {
		log.Fatalf("Failed to ensure schema_migrations table: %v", err)
	}

	migrations, err := readMigrations()
	if err != nil {
		log.Fatalf("Failed to read migrations: %v", err)
	}
	log.Printf("Found %d migration files", len(migrations))

	applied, err := appliedVersions(ctx, client)
	if err != nil {
		log.Fatalf("Failed to read applied migrations: %v", err)
	}
	log.Printf("Found %d already applied migrations", len(applied))

	appliedCount := 0
	for _, m := range migrations {
		if checksum, ok := applied[m.Version]; ok {
			if checksum != "" && checksum != m.Checksum {
				log.Fatalf("Checksum mismatch for applied migration %04d_%s; the file changed after it was applied", m.Version, m.Name)
			}
			log.Printf("  [SKIP] %04d_%s (already applied)", m.Version, m.Name)
			continue
		}

		log.Printf("  [RUN]  %04d_%s", m.Version, m.Name)
		if err := runQuery(ctx, client, m.SQL, nil); err != nil {
			log.Fatalf("Failed to execute migration %04d_%s: %v", m.Version, m.Name, err)
		}
		if err := recordMigration(ctx, client, m); err != nil {
			log.Fatalf("Failed to record migration %04d_%s: %v", m.Version, m.Name, err)
		}
		log.Printf("  [OK]   %04d_%s", m.Version, m.Name)
		appliedCount++
	}

	if appliedCount == 0 {
		log.Println("No new migrations to apply. Dataset is up to date.")
	} else {
		log.Printf("Successfully applied %d migration(s)", appliedCount)
	}
}

func ensureLedgerTable(ctx context.Context, client *bigquery.Client) error {
	sql := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS `+"`%s.%s.schema_migrations`"+` (
			version    INT64 NOT NULL,
			name       STRING NOT NULL,
			applied_at TIMESTAMP NOT NULL,
			checksum   STRING,
			applied_by STRING
		)
	`, *projectID, *datasetID)
	return runQuery(ctx, client, sql, nil)
}

// readMigrations loads every NNNN_name.sql file from the migrations
// directory, sorted by version. The {{PROJECT_ID}} and {{DATASET_ID}}
// placeholders are substituted; the checksum covers the original content so a
// different target does not read as a changed migration.
func readMigrations() ([]Migration, error) {
	dir := *migrationsDir
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		// Allow running from cmd/migrate during development.
		dir = filepath.Join("../..", *migrationsDir)
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			return nil, fmt.Errorf("migrations directory not found: %s", *migrationsDir)
		}
	}

	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading migrations directory: %w", err)
	}

	pattern := regexp.MustCompile(`^(\d{4})_(.+)\.sql$`)

	var migrations []Migration
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		matches := pattern.FindStringSubmatch(file.Name())
		if matches == nil {
			log.Printf("Skipping file with invalid format: %s", file.Name())
			continue
		}
		version, err := strconv.Atoi(matches[1])
		if err != nil {
			log.Printf("Skipping file with invalid version: %s", file.Name())
			continue
		}

		content, err := os.ReadFile(filepath.Join(dir, file.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading file %s: %w", file.Name(), err)
		}

		sql := string(content)
		sql = strings.ReplaceAll(sql, "{{PROJECT_ID}}", *projectID)
		sql = strings.ReplaceAll(sql, "{{DATASET_ID}}", *datasetID)

		migrations = append(migrations, Migration{
			Version:  version,
			Name:     matches[2],
			Filename: file.Name(),
			SQL:      sql,
			Checksum: fmt.Sprintf("%x", sha256.Sum256(content)),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// appliedVersions returns version -> checksum for every recorded migration.
func appliedVersions(ctx context.Context, client *bigquery.Client) (map[int]string, error) {
	sql := fmt.Sprintf(`
		SELECT version, checksum
		FROM `+"`%s.%s.schema_migrations`"+`
		ORDER BY version ASC
	`, *projectID, *datasetID)

	it, err := client.Query(sql).Read(ctx)
	if err != nil {
		if strings.Contains(err.Error(), "Not found") {
			return map[int]string{}, nil
		}
		return nil, fmt.Errorf("reading applied migrations: %w", err)
	}

	applied := make(map[int]string)
	for {
		var row struct {
			Version  int64
			Checksum bigquery.NullString
		}
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterating results: %w", err)
		}
		applied[int(row.Version)] = row.Checksum.StringVal
	}
	return applied, nil
}

func recordMigration(ctx context.Context, client *bigquery.Client, m Migration) error {
	sql := fmt.Sprintf(`
		INSERT INTO `+"`%s.%s.schema_migrations`"+`
		(version, name, applied_at, checksum, applied_by)
		VALUES (@version, @name, @applied_at, @checksum, @applied_by)
	`, *projectID, *datasetID)

	params := []bigquery.QueryParameter{
		{Name: "version", Value: m.Version},
		{Name: "name", Value: m.Name},
		{Name: "applied_at", Value: time.Now().UTC()},
		{Name: "checksum", Value: m.Checksum},
		{Name: "applied_by", Value: *appliedBy},
	}
	return runQuery(ctx, client, sql, params)
}

func runQuery(ctx context.Context, client *bigquery.Client, sql string, params []bigquery.QueryParameter) error {
	query := client.Query(sql)
	query.Parameters = params

	job, err := query.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}
