package sandbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucahq/luca/pkg/audit"
)

// captureSink records published events for assertions
type captureSink struct {
	mu     sync.Mutex
	events []audit.Event
}

func (c *captureSink) Publish(event audit.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *captureSink) byKind(kind string) []audit.Event {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []audit.Event
	for _, e := range c.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func permissiveConfig(isolation IsolationLevel) Config {
	return Config{
		AgentType: "general",
		Isolation: isolation,
		ResourceLimits: ResourceLimits{
			MaxCPUPercent:      100.0,
			MaxMemoryMB:        4096,
			MaxExecutionTime:   30 * time.Second,
			MaxFileDescriptors: 100,
			MaxProcesses:       10,
		},
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"valid", func(*Config) {}, nil},
		{"bad isolation", func(c *Config) { c.Isolation = "container" }, ErrInvalidIsolation},
		{"cpu over 100", func(c *Config) { c.ResourceLimits.MaxCPUPercent = 150 }, ErrInvalidCPULimit},
		{"negative cpu", func(c *Config) { c.ResourceLimits.MaxCPUPercent = -1 }, ErrInvalidCPULimit},
		{"negative memory", func(c *Config) { c.ResourceLimits.MaxMemoryMB = -1 }, ErrInvalidMemoryLimit},
		{"negative processes", func(c *Config) { c.ResourceLimits.MaxProcesses = -1 }, ErrInvalidProcessLimit},
		{"negative fds", func(c *Config) { c.ResourceLimits.MaxFileDescriptors = -1 }, ErrInvalidFDLimit},
		{"negative timeout", func(c *Config) { c.ResourceLimits.MaxExecutionTime = -time.Second }, ErrInvalidTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := permissiveConfig(IsolationProcess)
			tt.mutate(&cfg)

			err := ValidateConfig(cfg)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestDefaultLimits(t *testing.T) {
	limits := DefaultLimits()

	assert.Equal(t, 50.0, limits.MaxCPUPercent)
	assert.Equal(t, 512, limits.MaxMemoryMB)
	assert.Equal(t, 30*time.Second, limits.MaxExecutionTime)
	assert.False(t, limits.NetworkAllowed)
	assert.True(t, limits.ReadOnlyFilesystem)
}

func TestNew(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		sb, err := New(permissiveConfig(IsolationProcess), "sess-1", nil)
		require.NoError(t, err)
		assert.NotNil(t, sb)
		assert.False(t, sb.CreatedAt().IsZero())
	})

	t.Run("invalid config rejected", func(t *testing.T) {
		cfg := permissiveConfig(IsolationProcess)
		cfg.Isolation = "vm"

		_, err := New(cfg, "sess-1", nil)
		assert.ErrorIs(t, err, ErrInvalidIsolation)
	})
}

func TestExecuteInline(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		sb, err := New(permissiveConfig(IsolationNone), "sess-1", nil)
		require.NoError(t, err)

		result, err := sb.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
			return "ok", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "ok", result)
	})

	t.Run("error propagates", func(t *testing.T) {
		sb, err := New(permissiveConfig(IsolationNone), "sess-1", nil)
		require.NoError(t, err)

		wantErr := errors.New("agent failed")
		_, err = sb.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
			return nil, wantErr
		})
		assert.ErrorIs(t, err, wantErr)
	})

	t.Run("wall clock overrun is a violation", func(t *testing.T) {
		sink := &captureSink{}
		cfg := permissiveConfig(IsolationNone)
		cfg.ResourceLimits.MaxExecutionTime = 10 * time.Millisecond

		sb, err := New(cfg, "sess-1", sink)
		require.NoError(t, err)

		_, err = sb.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
			time.Sleep(50 * time.Millisecond)
			return "too slow", nil
		})

		require.Error(t, err)
		assert.True(t, IsViolation(err))

		var v *Violation
		require.ErrorAs(t, err, &v)
		assert.Equal(t, ReasonTimeLimit, v.Reason)

		events := sink.byKind(audit.KindSandboxViolation)
		require.Len(t, events, 1)
		assert.Equal(t, "sess-1", events[0].SessionID)
	})
}

func TestExecuteIsolated(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		sb, err := New(permissiveConfig(IsolationProcess), "sess-1", nil)
		require.NoError(t, err)

		result, err := sb.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
			return 42, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 42, result)
	})

	t.Run("monitor terminates on timeout", func(t *testing.T) {
		sink := &captureSink{}
		cfg := permissiveConfig(IsolationProcess)
		cfg.ResourceLimits.MaxExecutionTime = 100 * time.Millisecond

		sb, err := New(cfg, "sess-1", sink)
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_, err = sb.Execute(ctx, func(ctx context.Context) (interface{}, error) {
			select {
			case <-time.After(3 * time.Second):
				return "never", nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		})

		require.Error(t, err)
		assert.True(t, IsViolation(err))

		events := sink.byKind(audit.KindSandboxViolation)
		require.Len(t, events, 1)
		assert.Equal(t, string(ReasonTimeLimit), events[0].Decision)
	})

	t.Run("context cancellation stops the worker", func(t *testing.T) {
		sb, err := New(permissiveConfig(IsolationProcess), "sess-1", nil)
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(20 * time.Millisecond)
			cancel()
		}()

		_, err = sb.Execute(ctx, func(ctx context.Context) (interface{}, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		})
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("worker error propagates", func(t *testing.T) {
		sb, err := New(permissiveConfig(IsolationProcess), "sess-1", nil)
		require.NoError(t, err)

		wantErr := errors.New("boom")
		_, err = sb.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
			return nil, wantErr
		})
		assert.ErrorIs(t, err, wantErr)
	})
}

func TestExecuteClosed(t *testing.T) {
	sb, err := New(permissiveConfig(IsolationNone), "sess-1", nil)
	require.NoError(t, err)

	sb.Close()

	_, err = sb.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
		return "unreachable", nil
	})
	assert.ErrorIs(t, err, ErrSandboxClosed)
}

func TestIsViolation(t *testing.T) {
	v := &Violation{Reason: ReasonMemoryLimit, Usage: Usage{MemoryMB: 600}}

	assert.True(t, IsViolation(v))
	assert.True(t, IsViolation(errors.Join(errors.New("wrapped"), v)))
	assert.False(t, IsViolation(errors.New("plain")))
	assert.Contains(t, v.Error(), "memory_limit_exceeded")
}
