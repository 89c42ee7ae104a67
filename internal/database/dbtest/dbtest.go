// Package dbtest builds in-memory SQLite databases with the service schema
// for DB layer tests.
package dbtest

import (
	"context"
	"database/sql"
	"testing"

	"busticket/internal/models"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"
)

// Models lists every table in creation order.
func Models() []interface{} {
	return []interface{}{
		(*models.User)(nil),
		(*models.Brand)(nil),
		(*models.Bus)(nil),
		(*models.Seat)(nil),
		(*models.Route)(nil),
		(*models.Schedule)(nil),
		(*models.DropoffPoint)(nil),
		(*models.Promotion)(nil),
		(*models.PaymentHistory)(nil),
		(*models.Ticket)(nil),
		(*models.TicketPayment)(nil),
		(*models.Review)(nil),
		(*models.Notification)(nil),
	}
}

// New opens a private in-memory database with all tables created.
func New(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}
	// one connection, otherwise each gets its own empty :memory: database
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	for _, m := range Models() {
		if _, err := db.NewCreateTable().Model(m).Exec(context.Background()); err != nil {
			t.Fatalf("Failed to create table for %T: %v", m, err)
		}
	}
	t.Cleanup(func() { db.Close() })
	return db
}
