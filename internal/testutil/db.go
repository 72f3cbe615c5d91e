// Package testutil builds in-memory databases for package tests.
package testutil

import (
	"fmt"
	"strings"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	ledgerdomain "github.com/smallbiznis/privatedrops/internal/ledger/domain"
	mediadomain "github.com/smallbiznis/privatedrops/internal/media/domain"
	paymentdomain "github.com/smallbiznis/privatedrops/internal/payment/domain"
	userdomain "github.com/smallbiznis/privatedrops/internal/user/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Models lists every table the service owns, in dependency order.
func Models() []any {
	return []any{
		&userdomain.User{},
		&mediadomain.Media{},
		&mediadomain.View{},
		&mediadomain.Rating{},
		&paymentdomain.WebhookEvent{},
		&ledgerdomain.LedgerAccount{},
		&ledgerdomain.LedgerEntry{},
		&ledgerdomain.LedgerEntryLine{},
	}
}

// NewDB opens a private in-memory sqlite database with the schema migrated.
// A single connection keeps transactions and plain queries on the same database.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_", "#", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(Models()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func NewNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	return node
}
