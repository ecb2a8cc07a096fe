package ctxmutex

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCtxMutex(t *testing.T) {
	t.Run("Lock and unlock", func(t *testing.T) {
		m := New()
		require.NoError(t, m.Lock(context.Background()))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.ErrorIs(t, m.Lock(ctx), context.Canceled, "held mutex is not acquired again")

		m.Unlock()
		require.NoError(t, m.Lock(context.Background()))
		m.Unlock()
	})

	t.Run("Lock honours cancellation", func(t *testing.T) {
		m := New()
		require.NoError(t, m.Lock(context.Background()))
		defer m.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		err := m.Lock(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("Serializes critical sections", func(t *testing.T) {
		m := New()
		var (
			wg      sync.WaitGroup
			inside  int
			maxSeen int
			counter sync.Mutex
		)

		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, m.Lock(context.Background()))
				counter.Lock()
				inside++
				if inside > maxSeen {
					maxSeen = inside
				}
				counter.Unlock()

				time.Sleep(time.Millisecond)

				counter.Lock()
				inside--
				counter.Unlock()
				m.Unlock()
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, maxSeen)
	})
}
