package migrations

import (
	"context"
	"testing"

	"github.com/uptrace/bun"

	"github.com/usikolabs/usiko-middleware/pkg/pgutil"
)

type listingDao struct {
	bun.BaseModel `bun:"table:test_listings"`
	ID            int64  `bun:",pk,autoincrement"`
	Seller        string `bun:",notnull,type:varchar(42)"`
	Serial        int64  `bun:",notnull"`
}

func TestCreateSchema(t *testing.T) {
	db, cleanup := pgutil.SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	err := CreateSchema(ctx, db, &listingDao{})
	if err != nil {
		t.Fatalf("CreateSchema() failed: %v", err)
	}
	pgutil.AssertTableExists(t, db, "test_listings")

	// Idempotent: a second run is a no-op.
	err = CreateSchema(ctx, db, &listingDao{})
	if err != nil {
		t.Errorf("CreateSchema() second call failed: %v", err)
	}
}

func TestDropTables(t *testing.T) {
	db, cleanup := pgutil.SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	if err := CreateSchema(ctx, db, &listingDao{}); err != nil {
		t.Fatalf("CreateSchema() failed: %v", err)
	}

	if err := DropTables(ctx, db, &listingDao{}); err != nil {
		t.Fatalf("DropTables() failed: %v", err)
	}
	pgutil.AssertTableNotExists(t, db, "test_listings")

	if err := DropTables(ctx, db, &listingDao{}); err != nil {
		t.Errorf("DropTables() second call failed: %v", err)
	}
}

func TestCreateModelIndexes(t *testing.T) {
	db, cleanup := pgutil.SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	if err := CreateSchema(ctx, db, &listingDao{}); err != nil {
		t.Fatalf("CreateSchema() failed: %v", err)
	}

	err := CreateModelIndexes(ctx, db, &listingDao{}, "seller", "serial")
	if err != nil {
		t.Fatalf("CreateModelIndexes() failed: %v", err)
	}
	pgutil.AssertIndexExists(t, db, "idx_test_listings_seller")
	pgutil.AssertIndexExists(t, db, "idx_test_listings_serial")

	err = CreateModelIndexes(ctx, db, &listingDao{}, "seller")
	if err != nil {
		t.Errorf("CreateModelIndexes() second call failed: %v", err)
	}
}

func TestDropModelIndexes(t *testing.T) {
	db, cleanup := pgutil.SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	if err := CreateSchema(ctx, db, &listingDao{}); err != nil {
		t.Fatalf("CreateSchema() failed: %v", err)
	}
	if err := CreateModelIndexes(ctx, db, &listingDao{}, "seller"); err != nil {
		t.Fatalf("CreateModelIndexes() failed: %v", err)
	}

	if err := DropModelIndexes(ctx, db, &listingDao{}, "seller"); err != nil {
		t.Fatalf("DropModelIndexes() failed: %v", err)
	}

	var exists bool
	query := `SELECT EXISTS (SELECT FROM pg_indexes WHERE schemaname = 'public' AND indexname = ?)`
	if err := db.NewRaw(query, "idx_test_listings_seller").Scan(ctx, &exists); err != nil {
		t.Fatalf("failed to check index: %v", err)
	}
	if exists {
		t.Error("idx_test_listings_seller should be dropped")
	}
}
