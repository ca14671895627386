package sweep

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExpirer struct {
	calls int
	n     int
	err   error
}

func (f *fakeExpirer) ExpireStale(context.Context) (int, error) {
	f.calls++
	return f.n, f.err
}

type fakeLocker struct {
	grant    bool
	err      error
	acquired int
	released int
}

func (f *fakeLocker) Acquire(context.Context, time.Duration) (bool, error) {
	f.acquired++
	return f.grant, f.err
}

func (f *fakeLocker) Release(context.Context) error {
	f.released++
	return nil
}

func TestSweepOnce_WithoutLocker(t *testing.T) {
	exp := &fakeExpirer{n: 3}
	n, err := New(nil, exp, time.Second).SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 1, exp.calls)
}

func TestSweepOnce_LeaseHeldElsewhere(t *testing.T) {
	exp := &fakeExpirer{n: 3}
	lock := &fakeLocker{grant: false}
	n, err := New(nil, exp, time.Second).WithLocker(lock).SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, exp.calls)
	assert.Zero(t, lock.released)
}

func TestSweepOnce_ReleasesAfterPass(t *testing.T) {
	exp := &fakeExpirer{err: errors.New("db down")}
	lock := &fakeLocker{grant: true}
	_, err := New(nil, exp, time.Second).WithLocker(lock).SweepOnce(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, lock.acquired)
	assert.Equal(t, 1, lock.released)
}

func TestSweepOnce_LockError(t *testing.T) {
	exp := &fakeExpirer{}
	lock := &fakeLocker{err: errors.New("redis down")}
	_, err := New(nil, exp, time.Second).WithLocker(lock).SweepOnce(context.Background())
	require.Error(t, err)
	assert.Zero(t, exp.calls)
}

func TestRun_StopsOnCancel(t *testing.T) {
	exp := &fakeExpirer{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- New(nil, exp, 5*time.Millisecond).Run(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

type fakeRedis struct {
	holder string
	setErr error
}

func (f *fakeRedis) SetNX(_ context.Context, _ string, value interface{}, _ time.Duration) *redis.BoolCmd {
	if f.setErr != nil {
		return redis.NewBoolResult(false, f.setErr)
	}
	if f.holder != "" {
		return redis.NewBoolResult(false, nil)
	}
	f.holder = value.(string)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Eval(_ context.Context, _ string, _ []string, args ...interface{}) *redis.Cmd {
	if f.holder == args[0].(string) {
		f.holder = ""
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

func TestRedisLocker_SingleHolder(t *testing.T) {
	ctx := context.Background()
	rdb := &fakeRedis{}
	a := NewRedisLocker(rdb, "")
	b := NewRedisLocker(rdb, "")

	ok, err := a.Acquire(ctx, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.Acquire(ctx, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// b may not free a lease it does not hold.
	require.NoError(t, b.Release(ctx))
	assert.NotEmpty(t, rdb.holder)

	require.NoError(t, a.Release(ctx))
	ok, err = b.Acquire(ctx, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLocker_AcquireError(t *testing.T) {
	l := NewRedisLocker(&fakeRedis{setErr: errors.New("conn refused")}, "k")
	_, err := l.Acquire(context.Background(), time.Minute)
	require.Error(t, err)
}
