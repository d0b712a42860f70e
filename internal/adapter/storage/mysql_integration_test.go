package storage

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/incoming-qc/internal/core/domain"
)

func getMySQLAdapter(t *testing.T) *SQLAdapter {
	t.Helper()
	dsn := os.Getenv("QC_MYSQL_TEST_DSN")
	if dsn == "" {
		dsn = "root:root@tcp(localhost:3306)/incoming_qc_test"
	}
	cfg, err := mysql.ParseDSN(dsn)
	require.NoError(t, err)

	ctx := context.Background()
	adapter, err := OpenMySQL(ctx, cfg)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	t.Cleanup(func() { _ = adapter.Close() })
	require.NoError(t, adapter.Migrate(ctx))
	return adapter
}

func TestMySQL_MigrateCreatesIndexesOnce(t *testing.T) {
	a := getMySQLAdapter(t)
	ctx := context.Background()

	require.NoError(t, a.Migrate(ctx))

	var count int
	err := a.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT index_name) FROM information_schema.statistics
		WHERE table_schema = DATABASE() AND index_name = ?`, "idx_inspections_account_created",
	).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMySQL_ConcurrentPartTypeQuota(t *testing.T) {
	a := getMySQLAdapter(t)
	ctx := context.Background()
	account := "acct-" + uuid.NewString()

	admit := func(count int) error {
		return domain.CheckQuota(domain.TierFree, domain.ResourcePartTypes, count)
	}

	var created atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			pt, err := domain.NewPartType(uuid.NewString(), account, fmt.Sprintf("part %d", i), "", testNow)
			if err != nil {
				t.Errorf("new part type: %v", err)
				return
			}
			// deadlock victims are rolled back and count as rejected
			if err := a.CreatePartType(ctx, *pt, admit); err == nil {
				created.Add(1)
			}
		}(i)
	}
	wg.Wait()

	var stored int
	require.NoError(t, a.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM part_types WHERE account_id = ?`, account).Scan(&stored))
	assert.LessOrEqual(t, stored, 5)
	assert.Equal(t, int(created.Load()), stored)
}

func TestMySQL_QuarantineOptimisticLock(t *testing.T) {
	a := getMySQLAdapter(t)
	ctx := context.Background()

	batch, err := domain.NewQuarantineBatch(uuid.NewString(), "acct-1", "ship-1", "5", "burrs", "user-1", testNow)
	require.NoError(t, err)
	require.NoError(t, a.CreateQuarantineBatch(ctx, *batch))

	next, err := batch.Transition("under-review", "", "user-1", testNow)
	require.NoError(t, err)

	var applied atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			audit := domain.QuarantineAuditEntry{
				ID: uuid.NewString(), BatchID: batch.ID, From: batch.Status, To: next.Status, Actor: "user-1", At: testNow,
			}
			if err := a.UpdateQuarantineBatch(ctx, *next, audit); err == nil {
				applied.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), applied.Load())
	history, err := a.ListQuarantineAudit(ctx, batch.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}
