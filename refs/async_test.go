package refs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/statekit/statekit/emitter"
)

func TestNewAsyncWritable_NilProducer(t *testing.T) {
	_, err := NewAsyncWritable[int](0, nil, emitter.Options[int]{})
	assert.ErrorIs(t, err, ErrNilProducer)
}

func TestAsyncWritable_ExecuteStoresResult(t *testing.T) {
	producer := func(_ context.Context, args ...any) (int, error) {
		return args[0].(int) * 2, nil
	}
	a, err := NewAsyncWritable(0, producer, emitter.Options[int]{})
	require.NoError(t, err)
	defer a.Close()

	got, err := a.Execute(context.Background(), 21)
	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 42, a.Get())
	assert.False(t, a.IsAwaiting())
}

func TestAsyncWritable_AwaitingCoversProducerRun(t *testing.T) {
	var duringRun bool
	var ref *AsyncWritable[int]
	ref, err := NewAsyncWritable(0, func(context.Context, ...any) (int, error) {
		duringRun = ref.IsAwaiting()
		return 1, nil
	}, emitter.Options[int]{})
	require.NoError(t, err)
	defer ref.Close()

	_, err = ref.Execute(context.Background())
	require.NoError(t, err)

	assert.True(t, duringRun, "awaiting must be set before the producer runs")
	assert.False(t, ref.IsAwaiting(), "awaiting must reset after settle")
}

func TestAsyncWritable_ProducerErrorPropagates(t *testing.T) {
	boom := errors.New("upstream failure")
	a, err := NewAsyncWritable(7, func(context.Context, ...any) (int, error) {
		return 0, boom
	}, emitter.Options[int]{})
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Execute(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 7, a.Get(), "failed Execute must not touch the stored value")
	assert.False(t, a.IsAwaiting(), "awaiting must reset on failure too")
}

func TestAsyncWritable_OnResolvedFiresOnce(t *testing.T) {
	a, err := NewAsyncWritable(0, func(_ context.Context, args ...any) (int, error) {
		return args[0].(int), nil
	}, emitter.Options[int]{})
	require.NoError(t, err)
	defer a.Close()

	var resolved []int
	a.OnResolved(func(v int) { resolved = append(resolved, v) })

	_, err = a.Execute(context.Background(), 1)
	require.NoError(t, err)
	_, err = a.Execute(context.Background(), 2)
	require.NoError(t, err)

	assert.Equal(t, []int{1}, resolved, "resolved callback is one-shot")
}

func TestAsyncWritable_SetBypassesProducer(t *testing.T) {
	a, err := NewAsyncWritable(0, func(context.Context, ...any) (int, error) {
		t.Fatal("producer must not run on Set")
		return 0, nil
	}, emitter.Options[int]{})
	require.NoError(t, err)
	defer a.Close()

	a.Set(5)
	assert.Equal(t, 5, a.Get())
}

func TestAsyncWritable_OverlappingExecutesLastSettleWins(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	a, err := NewAsyncWritable(0, func(_ context.Context, args ...any) (int, error) {
		if args[0].(int) == 1 {
			close(started)
			<-release // first call finishes after the second
		}
		return args[0].(int), nil
	}, emitter.Options[int]{})
	require.NoError(t, err)
	defer a.Close()

	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		a.Execute(context.Background(), 1)
	}()

	// Second Execute starts later and settles first.
	<-started
	got, err := a.Execute(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 2, got)

	close(release)
	<-firstDone

	assert.Equal(t, 2, a.Get(), "stale Execute must not overwrite a newer settle")
}

func TestAsyncReadable_NoSetter(t *testing.T) {
	a, err := NewAsyncReadable("zero", func(_ context.Context, args ...any) (string, error) {
		return args[0].(string), nil
	}, emitter.Options[string]{})
	require.NoError(t, err)
	defer a.Close()

	got, err := a.Execute(context.Background(), "produced")
	require.NoError(t, err)
	assert.Equal(t, "produced", got)
	assert.Equal(t, "produced", a.Get())
}

func TestAsyncReducable_ExecuteBeforeReduce(t *testing.T) {
	a, err := NewAsyncReducable(0, func(context.Context, ...any) (int, error) {
		return 1, nil
	}, emitter.Options[int]{})
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Execute(context.Background())
	assert.ErrorIs(t, err, ErrNoReducer)
	assert.Equal(t, 0, a.Get())
}

func TestAsyncReducable_FirstReduceTriggersInitialExecute(t *testing.T) {
	calls := 0
	a, err := NewAsyncReducable([]int{}, func(_ context.Context, args ...any) ([]int, error) {
		calls++
		out := make([]int, 0, len(args))
		for _, arg := range args {
			out = append(out, arg.(int))
		}
		return out, nil
	}, emitter.Options[[]int]{}, 10, 20)
	require.NoError(t, err)
	defer a.Close()

	sum := func(prev, latest []int) []int { return append(prev, latest...) }

	require.NoError(t, a.Reduce(context.Background(), sum))
	assert.Equal(t, 1, calls, "first Reduce runs the producer with constructor args")
	assert.Equal(t, []int{10, 20}, a.Get())

	// A second Reduce only swaps the reducer.
	require.NoError(t, a.Reduce(context.Background(), sum))
	assert.Equal(t, 1, calls)
}

func TestAsyncReducable_AccumulatesAcrossExecutes(t *testing.T) {
	a, err := NewAsyncReducable(0, func(_ context.Context, args ...any) (int, error) {
		return args[0].(int), nil
	}, emitter.Options[int]{}, 1)
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.Reduce(context.Background(), func(prev, latest int) int {
		return prev + latest
	}))
	assert.Equal(t, 1, a.Get())

	_, err = a.Execute(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, 5, a.Get())

	_, err = a.Execute(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 15, a.Get())
}

func TestAsyncReducable_ResetSkipsProducer(t *testing.T) {
	calls := 0
	a, err := NewAsyncReducable(100, func(_ context.Context, args ...any) (int, error) {
		calls++
		return args[0].(int), nil
	}, emitter.Options[int]{}, 1)
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.Reduce(context.Background(), func(prev, latest int) int {
		return prev + latest
	}))
	require.Equal(t, 101, a.Get())
	require.Equal(t, 1, calls)

	a.Reset()
	assert.Equal(t, 100, a.Get())
	assert.Equal(t, 1, calls, "Reset must not run the producer")

	// The reducer survives a Reset.
	_, err = a.Execute(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, 105, a.Get())
}
