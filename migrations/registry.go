// Package migrations exposes the storefront schema as dialect-specific
// filesystems so host applications can feed them to whatever migration
// runner they already use.
package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"

	storefront "github.com/bloxhub/storefront"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"

	migrationsPath = "data/sql/migrations"
)

type FilesystemSpec struct {
	Dialect string
	Path    string
	FS      fs.FS
}

type Registration struct {
	SourceLabel       string
	ValidationTargets []string
	Filesystems       []FilesystemSpec
}

type RegisterFunc func(ctx context.Context, dialect string, sourceLabel string, fsys fs.FS) error

type Option func(*Registration)

func WithDialectSourceLabel(label string) Option {
	return func(r *Registration) {
		if label = strings.TrimSpace(label); label != "" {
			r.SourceLabel = label
		}
	}
}

func WithValidationTargets(targets ...string) Option {
	return func(r *Registration) {
		if next := normalizeDialects(targets); len(next) > 0 {
			r.ValidationTargets = next
		}
	}
}

func WithFilesystems(filesystems ...FilesystemSpec) Option {
	return func(r *Registration) {
		next := make([]FilesystemSpec, 0, len(filesystems))
		for _, spec := range filesystems {
			spec.Dialect = strings.TrimSpace(strings.ToLower(spec.Dialect))
			if spec.Dialect == "" || spec.FS == nil {
				continue
			}
			next = append(next, spec)
		}
		if len(next) > 0 {
			r.Filesystems = next
		}
	}
}

// Filesystems splits the embedded migration tree into one filesystem per
// dialect. The postgres files live at the root; sqlite alternatives live
// in the sqlite/ subdirectory.
func Filesystems(sources ...fs.FS) ([]FilesystemSpec, error) {
	root := storefront.GetMigrationsFS()
	if len(sources) > 0 && sources[0] != nil {
		root = sources[0]
	}

	base, basePath, err := migrationsRoot(root)
	if err != nil {
		return nil, err
	}
	sqliteFS, err := fs.Sub(base, "sqlite")
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve sqlite filesystem: %w", err)
	}

	specs := []FilesystemSpec{
		{Dialect: DialectPostgres, Path: basePath, FS: base},
		{Dialect: DialectSQLite, Path: path.Join(basePath, "sqlite"), FS: sqliteFS},
	}
	for _, spec := range specs {
		if err := ensureMigrations(spec); err != nil {
			return nil, err
		}
	}
	return specs, nil
}

// ensureMigrations rejects a dialect filesystem with nothing to apply,
// which would otherwise surface much later as a silently empty schema.
func ensureMigrations(spec FilesystemSpec) error {
	matches, err := fs.Glob(spec.FS, "*.up.sql")
	if err != nil {
		return fmt.Errorf("migrations: glob %s %s: %w", spec.Dialect, spec.Path, err)
	}
	if len(matches) == 0 {
		return fmt.Errorf("migrations: %s filesystem %q has no *.up.sql files", spec.Dialect, spec.Path)
	}
	return nil
}

func Register(ctx context.Context, registerFn RegisterFunc, opts ...Option) (Registration, error) {
	reg := Registration{
		SourceLabel:       "storefront",
		ValidationTargets: []string{DialectPostgres, DialectSQLite},
	}
	if registerFn == nil {
		return reg, fmt.Errorf("migrations: register function is required")
	}

	filesystems, err := Filesystems()
	if err != nil {
		return reg, err
	}
	reg.Filesystems = filesystems

	for _, opt := range opts {
		if opt != nil {
			opt(&reg)
		}
	}
	if err := reg.validate(); err != nil {
		return reg, err
	}

	targets := normalizeDialects(reg.ValidationTargets)
	for _, spec := range reg.Filesystems {
		if !slices.Contains(targets, spec.Dialect) {
			continue
		}
		if err := registerFn(ctx, spec.Dialect, reg.SourceLabel, spec.FS); err != nil {
			return reg, fmt.Errorf("migrations: register %s (%s): %w", spec.Dialect, spec.Path, err)
		}
	}
	return reg, nil
}

func (r Registration) validate() error {
	if strings.TrimSpace(r.SourceLabel) == "" {
		return fmt.Errorf("migrations: source label is required")
	}
	if len(r.ValidationTargets) == 0 {
		return fmt.Errorf("migrations: validation targets are required")
	}
	if len(r.Filesystems) == 0 {
		return fmt.Errorf("migrations: filesystems are required")
	}
	for _, spec := range r.Filesystems {
		if spec.FS == nil {
			return fmt.Errorf("migrations: filesystem for %s is nil", spec.Dialect)
		}
	}
	return nil
}

// migrationsRoot accepts either the embedded module filesystem or a
// pre-resolved directory of .sql files, as tests hand in.
func migrationsRoot(root fs.FS) (fs.FS, string, error) {
	sub, err := fs.Sub(root, migrationsPath)
	if err == nil {
		return sub, migrationsPath, nil
	}

	entries, readErr := fs.ReadDir(root, ".")
	if readErr == nil {
		for _, entry := range entries {
			if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
				return root, ".", nil
			}
		}
	}
	return nil, "", fmt.Errorf("migrations: %s not found: %w", migrationsPath, err)
}

func normalizeDialects(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(strings.ToLower(value))
		if value == "" {
			continue
		}
		if _, dup := seen[value]; dup {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
