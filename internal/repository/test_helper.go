package repository

import (
	"testing"

	"github.com/nimasrn/church-messaging/pkg/pg"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestDB is an in-memory sqlite database shaped like the production schema.
// Raw exposes the handle for seeding directory tables.
type TestDB struct {
	*pg.DB
	Raw *gorm.DB
}

// Entities lists every table the service owns or reads.
func Entities() []any {
	return []any{
		&MessageEntity{},
		&RecipientEntity{},
		&ScheduleEntity{},
		&DeliveryAttemptEntity{},
		&WorkerRunEntity{},
		&MemberEntity{},
		&CustomGroupEntity{},
		&CustomGroupMemberEntity{},
	}
}

func SetupTestDB(t testing.TB) *TestDB {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// a second connection would open a second, empty database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(Entities()...))

	return &TestDB{
		DB:  pg.New(db, db),
		Raw: db,
	}
}

// SeedMember inserts a directory row.
func (d *TestDB) SeedMember(t testing.TB, m MemberEntity) int64 {
	require.NoError(t, d.Raw.Create(&m).Error)
	return m.ID
}

func (d *TestDB) SeedCustomGroup(t testing.TB, name string, memberIDs ...int64) int64 {
	g := CustomGroupEntity{Name: name}
	require.NoError(t, d.Raw.Create(&g).Error)
	for _, id := range memberIDs {
		require.NoError(t, d.Raw.Create(&CustomGroupMemberEntity{GroupID: g.ID, MemberID: id}).Error)
	}
	return g.ID
}

// Str is a helper for the nullable directory columns.
func Str(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
