package tasks

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type recorder struct {
	mu      sync.Mutex
	results map[string][]error
}

func (r *recorder) RecordTask(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results[name] = append(r.results[name], err)
}

func TestQueue_RunsAndDrains(t *testing.T) {
	defer goleak.VerifyNone(t)

	q := NewQueue(10, nil)
	rec := &recorder{results: map[string][]error{}}
	q.SetRecorder(rec)

	var mu sync.Mutex
	var ran []string
	for _, name := range []string{"a", "b", "c"} {
		name := name
		require.True(t, q.Enqueue(&Task{Name: name, Run: func(context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			ran = append(ran, name)
			return nil
		}}))
	}

	require.NoError(t, q.Close(5*time.Second))
	assert.Equal(t, []string{"a", "b", "c"}, ran)
	assert.False(t, q.Enqueue(&Task{Name: "late", Run: func(context.Context) error { return nil }}))
}

func TestQueue_FailuresAreContained(t *testing.T) {
	defer goleak.VerifyNone(t)

	q := NewQueue(10, nil)
	rec := &recorder{results: map[string][]error{}}
	q.SetRecorder(rec)

	q.Enqueue(&Task{Name: "fail", Run: func(context.Context) error { return errors.New("boom") }})
	q.Enqueue(&Task{Name: "panic", Run: func(context.Context) error { panic("bad") }})
	q.Enqueue(&Task{Name: "ok", Run: func(context.Context) error { return nil }})
	require.NoError(t, q.Close(5*time.Second))

	assert.EqualError(t, rec.results["fail"][0], "boom")
	assert.ErrorContains(t, rec.results["panic"][0], "panicked")
	assert.NoError(t, rec.results["ok"][0])
}

func TestQueue_Dedup(t *testing.T) {
	defer goleak.VerifyNone(t)

	q := NewQueue(10, nil)
	block := make(chan struct{})
	run := func(context.Context) error { <-block; return nil }

	assert.True(t, q.Enqueue(&Task{Name: "title", Key: "s1", Run: run}))
	assert.False(t, q.Enqueue(&Task{Name: "title", Key: "s1", Run: run}))
	assert.True(t, q.Enqueue(&Task{Name: "title", Key: "s2", Run: run}))

	close(block)
	require.NoError(t, q.Close(5*time.Second))
}

func TestQueue_KeyReleasedAfterRun(t *testing.T) {
	defer goleak.VerifyNone(t)

	q := NewQueue(10, nil)
	started := make(chan struct{})
	block := make(chan struct{})
	done := make(chan struct{}, 2)
	first := &Task{Name: "summary", Key: "s1", Run: func(context.Context) error {
		close(started)
		<-block
		return nil
	}}
	require.True(t, q.Enqueue(first))
	<-started

	// Still running: refused.
	assert.False(t, q.Enqueue(&Task{Name: "summary", Key: "s1", Run: func(context.Context) error { return nil }}))

	close(block)
	require.Eventually(t, func() bool {
		return q.Enqueue(&Task{Name: "summary", Key: "s1", Run: func(context.Context) error {
			done <- struct{}{}
			return nil
		}})
	}, 2*time.Second, 10*time.Millisecond)
	<-done

	require.Eventually(t, func() bool {
		return q.Enqueue(&Task{Name: "summary", Key: "s1", Run: func(context.Context) error { return nil }})
	}, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, q.Close(5*time.Second))
}

func TestQueue_KeyReleasedWhenFull(t *testing.T) {
	defer goleak.VerifyNone(t)

	q := NewQueue(1, nil)
	started := make(chan struct{})
	block := make(chan struct{})
	q.Enqueue(&Task{Name: "busy", Run: func(context.Context) error {
		close(started)
		<-block
		return nil
	}})
	<-started
	require.True(t, q.Enqueue(&Task{Name: "pending", Run: func(context.Context) error { return nil }}))

	assert.False(t, q.Enqueue(&Task{Name: "title", Key: "s1", Run: func(context.Context) error { return nil }}))
	close(block)
	require.Eventually(t, func() bool {
		return q.Enqueue(&Task{Name: "title", Key: "s1", Run: func(context.Context) error { return nil }})
	}, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, q.Close(5*time.Second))
}

func TestQueue_Full(t *testing.T) {
	defer goleak.VerifyNone(t)

	q := NewQueue(1, nil)
	started := make(chan struct{})
	block := make(chan struct{})
	q.Enqueue(&Task{Name: "busy", Run: func(context.Context) error {
		close(started)
		<-block
		return nil
	}})
	<-started

	assert.True(t, q.Enqueue(&Task{Name: "pending", Run: func(context.Context) error { return nil }}))
	assert.False(t, q.Enqueue(&Task{Name: "dropped", Run: func(context.Context) error { return nil }}))
	assert.Equal(t, 1, q.Len())

	close(block)
	require.NoError(t, q.Close(5*time.Second))
}
