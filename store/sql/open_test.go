package sqlstore

import (
	"context"
	"testing"
)

func TestDialectFor(t *testing.T) {
	for _, driver := range []string{"postgres", "pg", "PostgreSQL", "sqlite", "sqlite3"} {
		if _, err := DialectFor(driver); err != nil {
			t.Fatalf("expected dialect for %q, got %v", driver, err)
		}
	}
	if _, err := DialectFor("mysql"); err == nil {
		t.Fatalf("expected unsupported driver to be rejected")
	}
}

func TestOpenBunDB_SQLite(t *testing.T) {
	db, err := OpenBunDB("sqlite", "file:storefront-open-test?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open bun db: %v", err)
	}
	defer db.Close()

	if err := db.PingContext(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}

	factory, err := NewRepositoryFactoryFromDB(db)
	if err != nil {
		t.Fatalf("build stores: %v", err)
	}
	if factory.IntentStore() == nil {
		t.Fatalf("expected intent store to be wired")
	}
}

func TestOpenBunDB_RejectsUnknownDriver(t *testing.T) {
	if _, err := OpenBunDB("oracle", "dsn"); err == nil {
		t.Fatalf("expected unknown driver error")
	}
}
