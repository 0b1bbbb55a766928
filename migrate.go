package accounts

import (
	"context"
	"io/fs"
	"sort"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

const migrationsDir = "data/sql/migrations"

// RunMigrations applies the embedded SQL migrations in lexical order.
// Every statement file is idempotent, so replaying the full set on boot
// is safe.
func RunMigrations(ctx context.Context, db *bun.DB) error {
	entries, err := fs.ReadDir(migrationsFS, migrationsDir)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read embedded migrations")
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, name := range names {
			content, err := fs.ReadFile(migrationsFS, migrationsDir+"/"+name)
			if err != nil {
				return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read migration").
					WithMetadata(map[string]any{"migration": name})
			}

			if _, err := tx.ExecContext(ctx, string(content)); err != nil {
				return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to apply migration").
					WithMetadata(map[string]any{"migration": name})
			}
		}
		return nil
	})
}
