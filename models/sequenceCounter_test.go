package models

import (
	"errors"
	"sync"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/construction_backend/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func allocate(t *testing.T, db *gorm.DB, kind DocumentKind, prefix string) int64 {
	t.Helper()
	var n int64
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		n, err = AllocateSequence(tx, kind, prefix)
		return err
	})
	require.NoError(t, err)
	return n
}

func TestAllocateSequence_IncrementsWithinScope(t *testing.T) {
	db := newTestDB(t)

	assert.Equal(t, int64(1), allocate(t, db, DocumentKindPurchaseOrder, "2025"))
	assert.Equal(t, int64(2), allocate(t, db, DocumentKindPurchaseOrder, "2025"))
	assert.Equal(t, int64(3), allocate(t, db, DocumentKindPurchaseOrder, "2025"))

	// other scopes start their own sequence
	assert.Equal(t, int64(1), allocate(t, db, DocumentKindPurchaseOrder, "2026"))
	assert.Equal(t, int64(1), allocate(t, db, DocumentKindInvoice, "2025"))
	assert.Equal(t, int64(4), allocate(t, db, DocumentKindPurchaseOrder, "2025"))

	var counters int64
	require.NoError(t, db.Model(&SequenceCounter{}).Count(&counters).Error)
	assert.Equal(t, int64(3), counters)
}

func TestAllocateSequence_ConcurrentCallersGetDistinctNumbers(t *testing.T) {
	db := newFileTestDB(t)
	const n = 40

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[int64]int)
		errs []error
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var got int64
			err := db.Transaction(func(tx *gorm.DB) error {
				var err error
				got, err = AllocateSequence(tx, DocumentKindPurchaseOrder, "2025")
				return err
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			seen[got]++
		}()
	}
	wg.Wait()

	require.Empty(t, errs)
	require.Len(t, seen, n)
	for v, count := range seen {
		assert.Equalf(t, 1, count, "number %d handed out %d times", v, count)
		assert.True(t, v >= 1 && v <= n, "number %d out of range", v)
	}
}

// allocateInLockstep opens n transactions on separate connections and holds every
// one of them at its allocation point until all have arrived, then lets them write.
func allocateInLockstep(t *testing.T, db *gorm.DB, n int, alloc func(tx *gorm.DB, arrived func()) (int64, error)) ([]int64, []error) {
	t.Helper()
	var (
		wg      sync.WaitGroup
		barrier sync.WaitGroup
		mu      sync.Mutex
		numbers []int64
		errs    []error
	)
	barrier.Add(n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var once sync.Once
			arrived := func() {
				once.Do(func() {
					barrier.Done()
					barrier.Wait()
				})
			}
			defer arrived()

			var got int64
			err := db.Transaction(func(tx *gorm.DB) error {
				var err error
				got, err = alloc(tx, arrived)
				return err
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			numbers = append(numbers, got)
		}()
	}
	wg.Wait()
	return numbers, errs
}

func distinct(numbers []int64) map[int64]int {
	seen := make(map[int64]int, len(numbers))
	for _, n := range numbers {
		seen[n]++
	}
	return seen
}

func TestAllocateSequence_LockstepTransactionsGetDistinctNumbers(t *testing.T) {
	db := newFileTestDB(t)
	allocate(t, db, DocumentKindPurchaseOrder, "2025")
	const n = 6

	numbers, errs := allocateInLockstep(t, db, n, func(tx *gorm.DB, arrived func()) (int64, error) {
		arrived()
		return AllocateSequence(tx, DocumentKindPurchaseOrder, "2025")
	})

	require.Empty(t, errs)
	seen := distinct(numbers)
	require.Len(t, seen, n)
	for v := int64(2); v <= n+1; v++ {
		assert.Equal(t, 1, seen[v], "number %d", v)
	}
}

// allocateByReadingLast reads the counter and writes last+1 back as two separate steps.
func allocateByReadingLast(tx *gorm.DB, kind DocumentKind, prefix string, arrived func()) (int64, error) {
	var last int64
	if err := tx.Model(&SequenceCounter{}).
		Where("document_kind = ? AND period_prefix = ?", kind, prefix).
		Select("last_value").
		Scan(&last).Error; err != nil {
		return 0, err
	}
	arrived()
	next := last + 1
	if err := tx.Model(&SequenceCounter{}).
		Where("document_kind = ? AND period_prefix = ?", kind, prefix).
		Update("last_value", next).Error; err != nil {
		return 0, err
	}
	return next, nil
}

func TestLockstepHarness_CatchesReadThenWriteAllocation(t *testing.T) {
	db := newFileTestDB(t)
	allocate(t, db, DocumentKindPurchaseOrder, "2025")
	const n = 6

	numbers, errs := allocateInLockstep(t, db, n, func(tx *gorm.DB, arrived func()) (int64, error) {
		return allocateByReadingLast(tx, DocumentKindPurchaseOrder, "2025", arrived)
	})

	// every caller read 1; at most one of them can commit 2
	assert.Less(t, len(distinct(numbers)), n)
	assert.NotEmpty(t, errs)
	for _, v := range numbers {
		assert.Equal(t, int64(2), v)
	}
}

func TestAllocateSequence_RollbackReturnsNumber(t *testing.T) {
	db := newTestDB(t)
	allocate(t, db, DocumentKindPayment, "2025")

	boom := errors.New("insert failed")
	err := db.Transaction(func(tx *gorm.DB) error {
		n, err := AllocateSequence(tx, DocumentKindPayment, "2025")
		require.NoError(t, err)
		require.Equal(t, int64(2), n)
		return boom
	})
	require.ErrorIs(t, err, boom)

	assert.Equal(t, int64(2), allocate(t, db, DocumentKindPayment, "2025"))
}

func TestAllocateSequence_RejectsBadScope(t *testing.T) {
	db := newTestDB(t)

	_, err := AllocateSequence(db, DocumentKind("QUOTE"), "2025")
	assert.True(t, utils.IsValidationError(err))

	_, err = AllocateSequence(db, DocumentKindInvoice, "  ")
	assert.True(t, utils.IsValidationError(err))
}

func TestAllocateSequence_DatabaseFailureIsAllocationError(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Migrator().DropTable(&SequenceCounter{}))

	_, err := AllocateSequence(db, DocumentKindPurchaseOrder, "2025")
	var allocErr *utils.AllocationError
	require.ErrorAs(t, err, &allocErr)
	assert.Equal(t, "PO/2025", allocErr.Scope)
}

func TestFormatDocumentNumber(t *testing.T) {
	issued := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	cases := []struct {
		kind     DocumentKind
		n        int64
		extra    string
		expected string
	}{
		{DocumentKindPurchaseOrder, 1, "ACM", "PO-001-ACM-20250314"},
		{DocumentKindPurchaseOrder, 42, "VEN", "PO-042-VEN-20250314"},
		{DocumentKindInvoice, 1, "", "INV-001-20250314"},
		{DocumentKindPayment, 1234, " ", "PAY-1234-20250314"},
	}
	for _, tc := range cases {
		got := FormatDocumentNumber(tc.kind, tc.n, tc.extra, issued)
		if got != tc.expected {
			t.Fatalf("FormatDocumentNumber(%s, %d, %q) expected %s, got %s", tc.kind, tc.n, tc.extra, tc.expected, got)
		}
	}
}

func TestPeriodPrefix(t *testing.T) {
	if got := PeriodPrefix(time.Date(2025, 12, 31, 23, 59, 0, 0, time.UTC)); got != "2025" {
		t.Fatalf("expected 2025, got %s", got)
	}
}
