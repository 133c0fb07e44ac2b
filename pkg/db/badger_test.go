package db

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piratepartyau/donate/pkg/model"
)

var testCtx = context.TODO()

func TestNewBadger(t *testing.T) {
	dir := t.TempDir()

	db, err := NewBadger(&Config{Dir: dir})
	require.NoError(t, err)

	err = db.Close()
	assert.NoError(t, err)
}

func TestBadger_Version(t *testing.T) {
	db := createBadger(t)

	ver, err := db.Version()
	assert.NoError(t, err)
	assert.Equal(t, CurrentVersion, ver)
}

func TestBadger_InsertNonce(t *testing.T) {
	db := createBadger(t)

	nonce := getNonce()
	err := db.InsertNonce(testCtx, nonce)
	assert.NoError(t, err)

	// Second insert with the same ID must fail
	err = db.InsertNonce(testCtx, nonce)
	assert.Equal(t, model.ErrAlreadyExists, err)
}

func TestBadger_FindAndDeleteNonce(t *testing.T) {
	db := createBadger(t)

	nonce := getNonce()
	err := db.InsertNonce(testCtx, nonce)
	require.NoError(t, err)

	actual, err := db.FindAndDeleteNonce(testCtx, nonce.ID)
	assert.NoError(t, err)
	assert.Equal(t, nonce.ID, actual.ID)
	assert.True(t, nonce.ExpiresAt.Equal(actual.ExpiresAt))

	// Record is gone after the first call
	_, err = db.FindAndDeleteNonce(testCtx, nonce.ID)
	assert.Equal(t, model.ErrNotFound, err)
}

func TestBadger_FindAndDeleteNonceUnknown(t *testing.T) {
	db := createBadger(t)

	_, err := db.FindAndDeleteNonce(testCtx, "no-such-nonce")
	assert.Equal(t, model.ErrNotFound, err)
}

func TestBadger_FindAndDeleteNonceConcurrent(t *testing.T) {
	db := createBadger(t)

	nonce := getNonce()
	err := db.InsertNonce(testCtx, nonce)
	require.NoError(t, err)

	const callers = 16

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			if _, err := db.FindAndDeleteNonce(testCtx, nonce.ID); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestBadger_DeleteExpiredNonces(t *testing.T) {
	db := createBadger(t)

	expired := &model.Nonce{ID: "expired", ExpiresAt: time.Now().Add(-time.Minute)}
	pending := &model.Nonce{ID: "pending", ExpiresAt: time.Now().Add(time.Hour)}

	require.NoError(t, db.InsertNonce(testCtx, expired))
	require.NoError(t, db.InsertNonce(testCtx, pending))

	count, err := db.DeleteExpiredNonces(testCtx, time.Now())
	assert.NoError(t, err)
	assert.Equal(t, 1, count)

	// Expired record is gone, pending one survived
	_, err = db.FindAndDeleteNonce(testCtx, expired.ID)
	assert.Equal(t, model.ErrNotFound, err)

	_, err = db.FindAndDeleteNonce(testCtx, pending.ID)
	assert.NoError(t, err)

	// Second sweep has nothing to delete
	count, err = db.DeleteExpiredNonces(testCtx, time.Now())
	assert.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestBadger_SaveReceipt(t *testing.T) {
	db := createBadger(t)

	receipt := getReceipt()
	err := db.SaveReceipt(testCtx, receipt)
	assert.NoError(t, err)

	// Receipts are write-once
	err = db.SaveReceipt(testCtx, receipt)
	assert.Equal(t, model.ErrAlreadyExists, err)
}

func TestBadger_GetReceipt(t *testing.T) {
	db := createBadger(t)

	receipt := getReceipt()
	require.NoError(t, db.SaveReceipt(testCtx, receipt))

	actual, err := db.GetReceipt(testCtx, receipt.ID)
	assert.NoError(t, err)
	assert.Equal(t, receipt.ID, actual.ID)
	assert.Equal(t, receipt.Email, actual.Email)
	assert.Equal(t, receipt.AmountCents, actual.AmountCents)
	assert.Equal(t, receipt.Comment, actual.Comment)
}

func TestBadger_WalkReceipts(t *testing.T) {
	db := createBadger(t)

	receipt := getReceipt()
	require.NoError(t, db.SaveReceipt(testCtx, receipt))

	called := 0
	err := db.WalkReceipts(testCtx, func(actual *model.Receipt) error {
		assert.Equal(t, receipt.ID, actual.ID)
		called++
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 1, called)
}

func createBadger(t *testing.T) *Badger {
	dir := t.TempDir()

	db, err := NewBadger(&Config{Dir: dir})
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = db.Close()
	})

	return db
}

func getNonce() *model.Nonce {
	return &model.Nonce{
		ID:        "4kWcTQbbqbLf9qERgWptbuIuLzmE7kF1Qer4cbRYOg0",
		ExpiresAt: time.Now().Add(5 * time.Minute).UTC(),
	}
}

func getReceipt() *model.Receipt {
	return &model.Receipt{
		ID:          "ch_lfUYEBK14zotCTykezJkfg",
		Email:       "donor@example.com",
		AmountCents: 1250,
		Currency:    "AUD",
		Description: "Pirate Party Donation",
		Comment:     "keep it up",
		ClientIP:    "203.0.113.10",
		CreatedAt:   time.Now().UTC(),
	}
}
