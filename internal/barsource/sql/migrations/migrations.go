// Package migrations runs the bar database's schema migrations via
// goose, grounded on cmd/dbmigrate's use of goose.Run against the
// teacher's own database migration directory — the same tool, pointed
// at this module's own "bars" table migration instead of the teacher's
// full account/order-history schema.
//
// Unlike cmd/dbmigrate, which reads its migration directory straight
// off disk relative to a process working directory, this package's
// .sql files are embedded into the binary with go:embed so `go install`
// or a copied binary can run migrations without the source tree on
// disk alongside it.
package migrations

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/thrasher-corp/goose"
)

//go:embed *.sql
var embedded embed.FS

// Dir is the default migration directory goose sees once the embedded
// filesystem is in use: the embedded files live at the FS root.
const Dir = "."

// Run executes goose command (e.g. "up", "status", "down") against db
// using dialect ("postgres" or "sqlite3"), reading migration files from
// dir. dir == "" runs against the .sql files embedded in this binary;
// a non-empty dir overrides that with an on-disk directory instead
// (e.g. for a developer iterating on a new migration before embedding
// it). Mirrors cmd/dbmigrate's
// goose.Run(command, db, dialect, dir, args) call shape.
func Run(command string, db *sql.DB, dialect, dir string, args string) error {
	if dir == "" {
		dir = Dir
		goose.SetBaseFS(embedded)
	} else {
		goose.SetBaseFS(nil)
	}
	if err := goose.Run(command, db, dialect, dir, args); err != nil {
		return fmt.Errorf("migrations: running %s: %w", command, err)
	}
	return nil
}
