package lock

import (
	"sync"
	"sync/atomic"
	"testing"

	"pgregory.net/rapid"
)

// TestSerializedReadModifyWrite checks that concurrent read-modify-write
// sequences on one user, each wrapped in the user's lock, end at the same
// balance as sequential execution would.
func TestSerializedReadModifyWrite(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		initial := rapid.Int64Range(1000, 100000).Draw(t, "initial")
		numOps := rapid.IntRange(2, 20).Draw(t, "numOps")
		userID := rapid.Int64Range(1, 1000000).Draw(t, "userID")

		amounts := make([]int64, numOps)
		expected := initial
		for i := range amounts {
			amounts[i] = rapid.Int64Range(-500, 500).Draw(t, "amount")
			expected += amounts[i]
		}

		ul := NewUserLock()
		balance := initial

		var wg sync.WaitGroup
		wg.Add(numOps)
		for _, amount := range amounts {
			go func(amount int64) {
				defer wg.Done()
				ul.Lock(userID)
				defer ul.Unlock(userID)
				balance += amount
			}(amount)
		}
		wg.Wait()

		if balance != expected {
			t.Fatalf("balance mismatch: expected %d, got %d (initial=%d, numOps=%d)",
				expected, balance, initial, numOps)
		}
	})
}

// TestWithLockSerializes checks the WithLock convenience wrapper.
func TestWithLockSerializes(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		numOps := rapid.IntRange(5, 30).Draw(t, "numOps")
		perOp := rapid.Int64Range(1, 100).Draw(t, "perOp")
		userID := rapid.Int64Range(1, 1000000).Draw(t, "userID")

		ul := NewUserLock()
		var balance int64

		var wg sync.WaitGroup
		wg.Add(numOps)
		for i := 0; i < numOps; i++ {
			go func() {
				defer wg.Done()
				_ = ul.WithLock(userID, func() error {
					balance += perOp
					return nil
				})
			}()
		}
		wg.Wait()

		if balance != int64(numOps)*perOp {
			t.Fatalf("expected %d, got %d", int64(numOps)*perOp, balance)
		}
	})
}

// TestIndependentUsersDoNotContend checks that locks for different users
// are independent.
func TestIndependentUsersDoNotContend(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		numUsers := rapid.IntRange(2, 10).Draw(t, "numUsers")
		opsPerUser := rapid.IntRange(5, 20).Draw(t, "opsPerUser")

		ul := NewUserLock()
		balances := make([]int64, numUsers)

		var wg sync.WaitGroup
		wg.Add(numUsers * opsPerUser)
		for u := 0; u < numUsers; u++ {
			for j := 0; j < opsPerUser; j++ {
				go func(u int) {
					defer wg.Done()
					ul.Lock(int64(u + 1))
					defer ul.Unlock(int64(u + 1))
					balances[u] += 10
				}(u)
			}
		}
		wg.Wait()

		for u := 0; u < numUsers; u++ {
			if balances[u] != int64(opsPerUser)*10 {
				t.Fatalf("user %d: expected %d, got %d", u+1, int64(opsPerUser)*10, balances[u])
			}
		}
	})
}

// TestTryLockExclusive checks that TryLock admits at most one holder at a
// time and that the lock is free again once every holder released it.
func TestTryLockExclusive(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		userID := rapid.Int64Range(1, 1000000).Draw(t, "userID")
		numAttempts := rapid.IntRange(5, 20).Draw(t, "numAttempts")

		ul := NewUserLock()
		var successes atomic.Int32
		start := make(chan struct{})

		var wg sync.WaitGroup
		wg.Add(numAttempts)
		for i := 0; i < numAttempts; i++ {
			go func() {
				defer wg.Done()
				<-start
				if ul.TryLock(userID) {
					successes.Add(1)
					ul.Unlock(userID)
				}
			}()
		}
		close(start)
		wg.Wait()

		if successes.Load() < 1 {
			t.Fatalf("at least one TryLock should succeed, got %d", successes.Load())
		}
		if !ul.TryLock(userID) {
			t.Fatal("lock should be free after all holders released")
		}
		ul.Unlock(userID)
	})
}
