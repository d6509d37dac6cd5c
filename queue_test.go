package jobpool

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func markedTask(n int, seen *[]int) task {
	return task{job: func() error { *seen = append(*seen, n); return nil }}
}

func TestJobQueue(t *testing.T) {
	t.Run("fifo", func(t *testing.T) {
		q := newJobQueue()
		var seen []int
		for i := range 5 {
			require.True(t, q.push(markedTask(i, &seen)))
		}
		require.Equal(t, 5, q.size())

		for range 5 {
			tk, ok := q.next()
			require.True(t, ok)
			require.NoError(t, tk.job())
		}
		require.Equal(t, []int{0, 1, 2, 3, 4}, seen)
		require.Zero(t, q.size())
	})

	t.Run("order survives compaction", func(t *testing.T) {
		q := newJobQueue()
		var seen []int
		for i := range 200 {
			q.push(markedTask(i, &seen))
		}
		for range 150 {
			tk, _ := q.next()
			_ = tk.job()
		}
		for i := 200; i < 210; i++ {
			q.push(markedTask(i, &seen))
		}
		require.Equal(t, 60, q.size())
		for range 60 {
			tk, _ := q.next()
			_ = tk.job()
		}

		require.Len(t, seen, 210)
		for i, v := range seen {
			require.Equal(t, i, v)
		}
	})

	t.Run("next parks until push", func(t *testing.T) {
		q := newJobQueue()
		got := make(chan bool)
		go func() {
			_, ok := q.next()
			got <- ok
		}()

		select {
		case <-got:
			t.Fatal("next returned on an empty queue")
		case <-time.After(20 * time.Millisecond):
		}

		q.push(task{job: func() error { return nil }})
		require.True(t, <-got)
	})

	t.Run("shutdown wakes parked consumers", func(t *testing.T) {
		q := newJobQueue()
		const consumers = 4
		got := make(chan bool, consumers)
		for range consumers {
			go func() {
				_, ok := q.next()
				got <- ok
			}()
		}
		time.Sleep(10 * time.Millisecond)

		require.Empty(t, q.shutdown())
		for range consumers {
			require.False(t, <-got)
		}
	})

	t.Run("shutdown returns unclaimed tasks once", func(t *testing.T) {
		q := newJobQueue()
		var seen []int
		for i := range 3 {
			q.push(markedTask(i, &seen))
		}
		_, ok := q.next()
		require.True(t, ok)

		pending := q.shutdown()
		require.Len(t, pending, 2)
		require.Nil(t, q.shutdown())
		require.Zero(t, q.size())
	})

	t.Run("closed queue rejects and hands out nothing", func(t *testing.T) {
		q := newJobQueue()
		q.shutdown()

		require.False(t, q.push(task{job: func() error { return nil }}))
		_, ok := q.next()
		require.False(t, ok)
	})
}
