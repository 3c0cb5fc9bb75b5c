package poloniex

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rpoliselit/poloniex/errs"
)

func TestSignMatchesKnownVector(t *testing.T) {
	sig, err := Sign([]byte("secret"), "command=returnBalances&nonce=1")
	require.NoError(t, err)
	require.Equal(t,
		"c288f881a6808d0e78827ec6ca9d6b9c34ec1667077163030d6d7abb2b22545631176f528347ab0fd6671ec53aec1f7d3b6de8b8e3ccc23de62fd59452d70db5",
		sig)
}

func TestSignIsDeterministicAndNonceSensitive(t *testing.T) {
	first, err := Sign([]byte("secret"), "command=returnBalances&nonce=1")
	require.NoError(t, err)
	again, err := Sign([]byte("secret"), "command=returnBalances&nonce=1")
	require.NoError(t, err)
	other, err := Sign([]byte("secret"), "command=returnBalances&nonce=2")
	require.NoError(t, err)

	require.Equal(t, first, again)
	require.NotEqual(t, first, other)
	require.Len(t, first, 128)
}

func TestSignRejectsEmptySecret(t *testing.T) {
	_, err := Sign(nil, "command=returnBalances")
	require.True(t, errs.IsCode(err, errs.CodeConfiguration))
}

func TestNonceSourceStrictlyIncreasesOnFrozenClock(t *testing.T) {
	frozen := time.UnixMilli(1_700_000_000_000)
	src := NewNonceSource(func() time.Time { return frozen })

	require.Equal(t, int64(1_700_000_000_000), src.Next())
	require.Equal(t, int64(1_700_000_000_001), src.Next())
	require.Equal(t, int64(1_700_000_000_002), src.Next())
}

func TestNonceSourceFollowsClockForward(t *testing.T) {
	now := time.UnixMilli(1_000)
	src := NewNonceSource(func() time.Time { return now })
	require.Equal(t, int64(1_000), src.Next())
	now = time.UnixMilli(5_000)
	require.Equal(t, int64(5_000), src.Next())
}

func TestNonceSourceUniqueUnderConcurrency(t *testing.T) {
	frozen := time.UnixMilli(42)
	src := NewNonceSource(func() time.Time { return frozen })

	const workers, perWorker = 8, 250
	var (
		mu   sync.Mutex
		seen = make(map[int64]struct{}, workers*perWorker)
		wg   sync.WaitGroup
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]int64, 0, perWorker)
			var last int64
			for j := 0; j < perWorker; j++ {
				n := src.Next()
				if n <= last {
					t.Errorf("nonce went backwards: %d after %d", n, last)
				}
				last = n
				local = append(local, n)
			}
			mu.Lock()
			for _, n := range local {
				seen[n] = struct{}{}
			}
			mu.Unlock()
		}()
	}
	wg.Wait()
	require.Len(t, seen, workers*perWorker)
}
