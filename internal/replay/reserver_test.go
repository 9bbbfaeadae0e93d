package replay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReserveThenDuplicate(t *testing.T) {
	r := NewReserver(NewMemoryStore())
	ctx := context.Background()

	assert.Equal(t, Reserved, r.Reserve(ctx, "sig123"))
	assert.Equal(t, AlreadyUsed, r.Reserve(ctx, "sig123"))
}

func TestReleaseAllowsRetry(t *testing.T) {
	r := NewReserver(NewMemoryStore())
	ctx := context.Background()

	require.Equal(t, Reserved, r.Reserve(ctx, "sig123"))
	assert.True(t, r.Release(ctx, "sig123"))
	assert.Equal(t, Reserved, r.Reserve(ctx, "sig123"))
}

func TestConfirmAttachesWallet(t *testing.T) {
	store := NewMemoryStore()
	r := NewReserver(store)
	ctx := context.Background()

	require.Equal(t, Reserved, r.Reserve(ctx, "sig123"))
	assert.True(t, r.Confirm(ctx, "sig123", "walletA"))

	rec, err := store.Get(ctx, "sig123")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, StatusConfirmed, rec.Status)
	assert.Equal(t, "walletA", rec.WalletAddress)
	assert.False(t, rec.UsedAt.IsZero())
}

func TestReleaseAfterConfirmIsNoOp(t *testing.T) {
	store := NewMemoryStore()
	r := NewReserver(store)
	ctx := context.Background()

	require.Equal(t, Reserved, r.Reserve(ctx, "sig123"))
	require.True(t, r.Confirm(ctx, "sig123", "walletA"))

	assert.False(t, r.Release(ctx, "sig123"))

	rec, err := store.Get(ctx, "sig123")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, StatusConfirmed, rec.Status)

	// And the signature stays burned.
	assert.Equal(t, AlreadyUsed, r.Reserve(ctx, "sig123"))
}

func TestConfirmMissingOrUnreservedFails(t *testing.T) {
	r := NewReserver(NewMemoryStore())
	ctx := context.Background()

	assert.False(t, r.Confirm(ctx, "never-reserved", "walletA"))
}

func TestConcurrentReserveExactlyOneWins(t *testing.T) {
	r := NewReserver(NewMemoryStore())
	ctx := context.Background()

	const callers = 16
	outcomes := make([]ReserveOutcome, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i] = r.Reserve(ctx, "sig123")
		}(i)
	}
	wg.Wait()

	reserved, used := 0, 0
	for _, o := range outcomes {
		switch o {
		case Reserved:
			reserved++
		case AlreadyUsed:
			used++
		}
	}
	assert.Equal(t, 1, reserved, "exactly one caller may observe reserved")
	assert.Equal(t, callers-1, used)
}

// failingStore simulates an unreachable store.
type failingStore struct{}

var errDown = errors.New("store unreachable")

func (failingStore) InsertUnique(context.Context, Record) (bool, error) { return false, errDown }
func (failingStore) ConfirmPending(context.Context, string, string, time.Time) (bool, error) {
	return false, errDown
}
func (failingStore) DeletePending(context.Context, string) (bool, error) { return false, errDown }
func (failingStore) Get(context.Context, string) (*Record, error)        { return nil, errDown }

func TestStoreErrorFailsClosed(t *testing.T) {
	r := NewReserver(failingStore{})
	ctx := context.Background()

	// An outage must read as a hard failure, never as a duplicate.
	assert.Equal(t, Failed, r.Reserve(ctx, "sig123"))
	assert.False(t, r.Confirm(ctx, "sig123", "walletA"))
	assert.False(t, r.Release(ctx, "sig123"))
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "reserved", Reserved.String())
	assert.Equal(t, "already_used", AlreadyUsed.String())
	assert.Equal(t, "error", Failed.String())
}
