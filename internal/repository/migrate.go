package repository

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

var (
	// ExtractionRunsColumns holds the columns for the "extraction_runs" table.
	ExtractionRunsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString, Size: 36},
		{Name: "session_id", Type: field.TypeString, Size: 64},
		{Name: "target", Type: field.TypeString, Size: 128},
		{Name: "category", Type: field.TypeString, Size: 32},
		{Name: "file_name", Type: field.TypeString},
		{Name: "mime_type", Type: field.TypeString, Size: 128},
		{Name: "outcome", Type: field.TypeString, Size: 16},
		{Name: "notice", Type: field.TypeString},
		{Name: "remote_json", Type: field.TypeString},
		{Name: "local_json", Type: field.TypeString},
		{Name: "merged_json", Type: field.TypeString},
		{Name: "sources_json", Type: field.TypeString},
		{Name: "disagreements_json", Type: field.TypeString},
		{Name: "created_at_ms", Type: field.TypeInt64},
	}
	// ExtractionRunsTable holds the schema information for the "extraction_runs" table.
	ExtractionRunsTable = &schema.Table{
		Name:       TableExtractionRuns,
		Columns:    ExtractionRunsColumns,
		PrimaryKey: []*schema.Column{ExtractionRunsColumns[0]},
		Indexes: []*schema.Index{
			{
				Name:    "extraction_runs_session_created",
				Unique:  false,
				Columns: []*schema.Column{ExtractionRunsColumns[1], ExtractionRunsColumns[13]},
			},
		},
	}
)

// Migrate creates or updates extraction_runs and its session index. SQLite
// databases need foreign keys enabled in the DSN (_pragma=foreign_keys(1)).
func Migrate(ctx context.Context, db *DB) error {
	m, err := schema.NewMigrate(db.Driver)
	if err != nil {
		return fmt.Errorf("prepare migration: %w", err)
	}
	if err := m.Create(ctx, ExtractionRunsTable); err != nil {
		return fmt.Errorf("migrate %s: %w", TableExtractionRuns, err)
	}
	db.logger.Info("db.migrate.ok", "table", TableExtractionRuns)
	return nil
}
