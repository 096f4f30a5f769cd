package wallet

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&Account{}, &LedgerEntry{}))

	return NewService(db), db
}

func TestEarnCoins_Idempotent(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	res, err := svc.EarnCoins(ctx, EarnInput{CustomerID: "C1", OrderID: "O1", Amount: 250})
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, int64(250), res.Balance)

	// retried webhook delivery for the same order
	res, err = svc.EarnCoins(ctx, EarnInput{CustomerID: "C1", OrderID: "O1", Amount: 250})
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.Equal(t, int64(250), res.Balance)

	var count int64
	require.NoError(t, db.Model(&LedgerEntry{}).Where("customer_id = ?", "C1").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestTimeColumnsRoundTrip(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	// two mutations so the second one re-reads the account row written by
	// the first; the timestamp columns must scan back as time.Time
	_, err := svc.EarnCoins(ctx, EarnInput{CustomerID: "C1", OrderID: "O1", Amount: 100})
	require.NoError(t, err)
	_, err = svc.SpendCoins(ctx, SpendInput{CustomerID: "C1", Amount: 50})
	require.NoError(t, err)

	var acct Account
	require.NoError(t, db.First(&acct, "customer_id = ?", "C1").Error)
	assert.False(t, acct.UpdatedAt.IsZero())

	var entries []LedgerEntry
	require.NoError(t, db.Where("customer_id = ?", "C1").Find(&entries).Error)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.False(t, e.CreatedAt.IsZero())
	}
}

func TestEarnCoins_InvalidInput(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.EarnCoins(ctx, EarnInput{OrderID: "O1", Amount: 100})
	assert.ErrorIs(t, err, ErrMissingCustomer)

	_, err = svc.EarnCoins(ctx, EarnInput{CustomerID: "C1", Amount: 100})
	assert.ErrorIs(t, err, ErrMissingOrder)

	_, err = svc.EarnCoins(ctx, EarnInput{CustomerID: "C1", OrderID: "O1", Amount: 0})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.EarnCoins(ctx, EarnInput{CustomerID: "C1", OrderID: "O1", Amount: -5})
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestSpendCoins(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	_, err := svc.EarnCoins(ctx, EarnInput{CustomerID: "C1", OrderID: "O1", Amount: 500})
	require.NoError(t, err)

	ref := "discount-1"
	res, err := svc.SpendCoins(ctx, SpendInput{CustomerID: "C1", Amount: 200, ReferenceID: &ref})
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, int64(300), res.Balance)

	var entry LedgerEntry
	require.NoError(t, db.Where("customer_id = ? AND type = ?", "C1", TypeSpend).First(&entry).Error)
	assert.Equal(t, int64(-200), entry.Amount)
}

func TestSpendCoins_IdempotencyKey(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.EarnCoins(ctx, EarnInput{CustomerID: "C1", OrderID: "O1", Amount: 500})
	require.NoError(t, err)

	key := "redeem-abc"
	res, err := svc.SpendCoins(ctx, SpendInput{CustomerID: "C1", Amount: 100, IdempotencyKey: &key})
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, int64(400), res.Balance)

	res, err = svc.SpendCoins(ctx, SpendInput{CustomerID: "C1", Amount: 100, IdempotencyKey: &key})
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.Equal(t, int64(400), res.Balance)
}

func TestSpendCoins_Insufficient(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.EarnCoins(ctx, EarnInput{CustomerID: "C1", OrderID: "O1", Amount: 100})
	require.NoError(t, err)

	_, err = svc.SpendCoins(ctx, SpendInput{CustomerID: "C1", Amount: 101})
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	snap, err := svc.GetSnapshot(ctx, "C1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), snap.ActualBalance)
}

func TestSpendCoins_BlockedOnDeficit(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	// earn, spend most of it, then the order is refunded: the reversal
	// exceeds what is left and the account goes negative
	_, err := svc.EarnCoins(ctx, EarnInput{CustomerID: "C1", OrderID: "O1", Amount: 250})
	require.NoError(t, err)
	_, err = svc.SpendCoins(ctx, SpendInput{CustomerID: "C1", Amount: 200})
	require.NoError(t, err)

	res, err := svc.ReverseEarned(ctx, ReverseInput{OrderID: "O1", Reason: "refund"})
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, int64(-200), res.Balance)

	// even 1 coin is refused while the account is in deficit
	_, err = svc.SpendCoins(ctx, SpendInput{CustomerID: "C1", Amount: 1})
	assert.ErrorIs(t, err, ErrNegativeBalance)

	snap, err := svc.GetSnapshot(ctx, "C1")
	require.NoError(t, err)
	assert.Equal(t, int64(-200), snap.ActualBalance)
}

func TestReverseEarned_TargetsOldestEarn(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	_, err := svc.EarnCoins(ctx, EarnInput{CustomerID: "C1", OrderID: "O1", Amount: 100})
	require.NoError(t, err)

	// correction scenario: a second EARN for the same order under its own key
	key := "earn:O1:correction"
	orderID := "O1"
	require.NoError(t, db.Create(&LedgerEntry{
		CustomerID:     "C1",
		OrderID:        &orderID,
		Type:           TypeEarn,
		Amount:         40,
		IdempotencyKey: &key,
		CreatedAt:      time.Now(),
	}).Error)

	res, err := svc.ReverseEarned(ctx, ReverseInput{OrderID: "O1"})
	require.NoError(t, err)
	assert.True(t, res.Applied)

	var rev LedgerEntry
	require.NoError(t, db.Where("type = ?", TypeReverse).First(&rev).Error)
	assert.Equal(t, int64(-100), rev.Amount, "must reverse the first-inserted earn only")
}

func TestReverseEarned_Idempotent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.EarnCoins(ctx, EarnInput{CustomerID: "C1", OrderID: "O1", Amount: 100})
	require.NoError(t, err)

	res, err := svc.ReverseEarned(ctx, ReverseInput{OrderID: "O1"})
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, int64(0), res.Balance)

	res, err = svc.ReverseEarned(ctx, ReverseInput{OrderID: "O1"})
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.Equal(t, int64(0), res.Balance)
}

func TestReverseEarned_NoEarn_NoOp(t *testing.T) {
	svc, _ := newTestService(t)

	res, err := svc.ReverseEarned(context.Background(), ReverseInput{OrderID: "never-earned"})
	require.NoError(t, err)
	assert.False(t, res.Applied)
}

func TestCreditAdjustment(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	res, err := svc.CreditAdjustment(ctx, AdjustmentInput{
		CustomerID: "C1",
		Amount:     300,
		Reason:     "goodwill",
	})
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, int64(300), res.Balance)

	var entry LedgerEntry
	require.NoError(t, db.Where("customer_id = ?", "C1").First(&entry).Error)
	assert.Equal(t, TypeEarn, entry.Type)
	assert.Nil(t, entry.OrderID)
	assert.Contains(t, string(entry.Metadata), "goodwill")
}

func TestCreditAdjustment_ClearsDeficit(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.EarnCoins(ctx, EarnInput{CustomerID: "C1", OrderID: "O1", Amount: 100})
	require.NoError(t, err)
	_, err = svc.SpendCoins(ctx, SpendInput{CustomerID: "C1", Amount: 100})
	require.NoError(t, err)
	_, err = svc.ReverseEarned(ctx, ReverseInput{OrderID: "O1"})
	require.NoError(t, err)

	_, err = svc.SpendCoins(ctx, SpendInput{CustomerID: "C1", Amount: 1})
	assert.ErrorIs(t, err, ErrNegativeBalance)

	res, err := svc.CreditAdjustment(ctx, AdjustmentInput{CustomerID: "C1", Amount: 150, Reason: "support"})
	require.NoError(t, err)
	assert.Equal(t, int64(50), res.Balance)

	// spending works again once the account is non-negative
	res, err = svc.SpendCoins(ctx, SpendInput{CustomerID: "C1", Amount: 50})
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, int64(0), res.Balance)
}

func TestFindSpendByReference(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.EarnCoins(ctx, EarnInput{CustomerID: "C1", OrderID: "O1", Amount: 500})
	require.NoError(t, err)

	entry, err := svc.FindSpendByReference(ctx, "C1", "discount-1")
	require.NoError(t, err)
	assert.Nil(t, entry)

	ref := "discount-1"
	_, err = svc.SpendCoins(ctx, SpendInput{CustomerID: "C1", Amount: 100, ReferenceID: &ref})
	require.NoError(t, err)
	_, err = svc.SpendCoins(ctx, SpendInput{CustomerID: "C1", Amount: 50, ReferenceID: &ref})
	require.NoError(t, err)

	entry, err = svc.FindSpendByReference(ctx, "C1", "discount-1")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, int64(-50), entry.Amount, "newest spend wins")
}

// The full lifecycle: earn on capture, partial spend, refund reversal into
// deficit, spend blocked.
func TestWalletLifecycle(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	res, err := svc.EarnCoins(ctx, EarnInput{CustomerID: "C1", OrderID: "O1", Amount: 250})
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, int64(250), res.Balance)

	ref := "discount-1"
	res, err = svc.SpendCoins(ctx, SpendInput{CustomerID: "C1", Amount: 100, ReferenceID: &ref})
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, int64(150), res.Balance)

	res, err = svc.ReverseEarned(ctx, ReverseInput{OrderID: "O1"})
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, int64(-100), res.Balance)

	_, err = svc.SpendCoins(ctx, SpendInput{CustomerID: "C1", Amount: 1})
	assert.ErrorIs(t, err, ErrNegativeBalance)
}
