package health

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cuemby/exadt/pkg/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExecer struct {
	mu    sync.Mutex
	calls [][]string
	res   *runtime.ExecResult
	err   error
}

func (f *fakeExecer) Exec(_ context.Context, id string, args []string) (*runtime.ExecResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]string{id}, args...))
	return f.res, f.err
}

// countingChecker fails until it was called okAfter times
type countingChecker struct {
	calls   int
	okAfter int
}

func (c *countingChecker) Check(context.Context) Result {
	c.calls++
	return newResult(time.Now(), c.calls >= c.okAfter, "call %d", c.calls)
}

func (c *countingChecker) Type() CheckType { return CheckTypeExec }

func TestStatusUpdate(t *testing.T) {
	cfg := Config{Retries: 2}
	s := NewStatus()
	assert.True(t, s.Healthy)

	s.Update(Result{Healthy: false}, cfg)
	assert.True(t, s.Healthy)
	s.Update(Result{Healthy: false}, cfg)
	assert.False(t, s.Healthy)
	assert.Equal(t, 2, s.ConsecutiveFailures)

	s.Update(Result{Healthy: true}, cfg)
	assert.True(t, s.Healthy)
	assert.Equal(t, 0, s.ConsecutiveFailures)
	assert.Equal(t, 1, s.ConsecutiveSuccesses)

	assert.False(t, s.InStartPeriod(Config{}))
	assert.True(t, s.InStartPeriod(Config{StartPeriod: time.Hour}))
}

func TestTCPChecker(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port

	checker := NewTCPChecker("127.0.0.1", port)
	assert.Equal(t, CheckTypeTCP, checker.Type())
	result := checker.Check(context.Background())
	assert.True(t, result.Healthy, result.Message)

	ln.Close()
	result = checker.WithTimeout(time.Second).Check(context.Background())
	assert.False(t, result.Healthy)
}

func TestExecChecker(t *testing.T) {
	ex := &fakeExecer{res: &runtime.ExecResult{Stdout: "DB1\n"}}
	checker := NewExecChecker(ex, "c_11", []string{"dwad_client", "shortlist"})
	assert.Equal(t, CheckTypeExec, checker.Type())

	result := checker.Check(context.Background())
	assert.True(t, result.Healthy)
	assert.Contains(t, result.Message, "Output: DB1")
	assert.Equal(t, [][]string{{"c_11", "dwad_client", "shortlist"}}, ex.calls)

	ex.res = &runtime.ExecResult{ExitCode: 1, Stderr: "not running"}
	result = checker.Check(context.Background())
	assert.False(t, result.Healthy)
	assert.Contains(t, result.Message, "Exit code: 1")
	assert.Contains(t, result.Message, "not running")

	ex.err = errors.New("no such task")
	result = checker.Check(context.Background())
	assert.False(t, result.Healthy)
	assert.Contains(t, result.Message, "no such task")

	result = NewExecChecker(ex, "c_11", nil).Check(context.Background())
	assert.False(t, result.Healthy)
}

func TestWaitHealthy(t *testing.T) {
	c := &countingChecker{okAfter: 3}
	err := WaitHealthy(context.Background(), c, Config{Interval: time.Millisecond, Retries: 5})
	require.NoError(t, err)
	assert.Equal(t, 3, c.calls)
}

func TestWaitHealthyRetries(t *testing.T) {
	c := &countingChecker{okAfter: 100}
	err := WaitHealthy(context.Background(), c, Config{Interval: time.Millisecond, Retries: 2})
	require.Error(t, err)
	assert.Equal(t, 2, c.calls)
	assert.True(t, strings.Contains(err.Error(), "failed 2 times"))
}

func TestWaitHealthyContext(t *testing.T) {
	c := &countingChecker{okAfter: 100}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := WaitHealthy(ctx, c, Config{Interval: time.Millisecond})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
