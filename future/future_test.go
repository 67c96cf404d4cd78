package future_test

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	llmErrors "github.com/amp-labs/llmtrace/errors"
	"github.com/amp-labs/llmtrace/future"
	"github.com/amp-labs/llmtrace/try"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func TestGoAwait(t *testing.T) {
	t.Parallel()

	fut := future.Go(func() (int, error) {
		return 42, nil
	})

	val, err := fut.Await()
	require.NoError(t, err)
	assert.Equal(t, 42, val)
	assert.True(t, fut.IsDone())
}

func TestGoError(t *testing.T) {
	t.Parallel()

	fut := future.Go(func() (string, error) {
		return "ignored", errBoom
	})

	val, err := fut.Await()
	require.ErrorIs(t, err, errBoom)
	assert.Empty(t, val)
}

func TestGoPanic(t *testing.T) {
	t.Parallel()

	fut := future.Go(func() (int, error) {
		panic("kaboom")
	})

	_, err := fut.Await()
	require.ErrorIs(t, err, llmErrors.ErrPanicRecovery)
	assert.Contains(t, err.Error(), "kaboom")
}

func TestGoContextPassesContext(t *testing.T) {
	t.Parallel()

	type key struct{}

	ctx := context.WithValue(t.Context(), key{}, "v")

	fut := future.GoContext(ctx, func(ctx context.Context) (string, error) {
		val, _ := ctx.Value(key{}).(string)

		return val, nil
	})

	val, err := fut.Await()
	require.NoError(t, err)
	assert.Equal(t, "v", val)
}

func TestPromiseCompletesOnce(t *testing.T) {
	t.Parallel()

	fut, promise := future.New[int]()
	assert.False(t, fut.IsDone())

	promise.Success(1)
	promise.Success(2)
	promise.Failure(errBoom)

	val, err := fut.Await()
	require.NoError(t, err)
	assert.Equal(t, 1, val)
}

func TestAwaitContextGivesUpWithoutCompleting(t *testing.T) {
	t.Parallel()

	fut, promise := future.New[int]()

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()

	_, err := fut.AwaitContext(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, fut.IsDone())

	promise.Success(7)

	val, err := fut.AwaitContext(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 7, val)
}

func TestCallbacksBeforeAndAfterCompletion(t *testing.T) {
	t.Parallel()

	fut, promise := future.New[int]()

	var wg sync.WaitGroup

	wg.Add(3)

	results := make(chan string, 3)

	fut.OnSuccess(func(v int) {
		defer wg.Done()
		results <- "success:" + strconv.Itoa(v)
	})
	fut.OnError(func(error) {
		t.Error("OnError must not fire for a successful future")
	})
	fut.OnResult(func(r try.Try[int]) {
		defer wg.Done()
		results <- "result:" + strconv.Itoa(r.Value)
	})

	promise.Success(5)

	// Registered after completion: fires immediately.
	fut.OnSuccess(func(v int) {
		defer wg.Done()
		results <- "late:" + strconv.Itoa(v)
	})

	wg.Wait()
	close(results)

	var got []string
	for r := range results {
		got = append(got, r)
	}

	assert.ElementsMatch(t, []string{"success:5", "result:5", "late:5"}, got)
}

func TestOnErrorFires(t *testing.T) {
	t.Parallel()

	fut := future.Settled(0, errBoom)

	got := make(chan error, 1)
	fut.OnError(func(err error) { got <- err })

	select {
	case err := <-got:
		assert.ErrorIs(t, err, errBoom)
	case <-time.After(time.Second):
		t.Fatal("OnError callback never fired")
	}
}

func TestMap(t *testing.T) {
	t.Parallel()

	doubled := future.Map(future.Settled(21, nil), func(v int) (int, error) {
		return v * 2, nil
	})

	val, err := doubled.Await()
	require.NoError(t, err)
	assert.Equal(t, 42, val)

	called := false
	failed := future.Map(future.Settled(0, errBoom), func(v int) (int, error) {
		called = true

		return v, nil
	})

	_, err = failed.Await()
	require.ErrorIs(t, err, errBoom)
	assert.False(t, called)
}
