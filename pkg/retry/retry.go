// Package retry runs remote operations with bounded exponential backoff.
// Package retry 为远端调用提供有限次数的指数退避重试
package retry

import (
	"context"
	"time"

	goretry "github.com/sethvargo/go-retry"
)

// Default option values.
// 默认参数
const (
	DefaultMaxAttempts       = 3
	DefaultInitialDelay      = time.Second
	DefaultBackoffMultiplier = 2.0
)

// SleepFunc waits for d or until ctx is done.
// SleepFunc 等待 d 或 ctx 结束
type SleepFunc func(ctx context.Context, d time.Duration) error

// Options retry configuration
// Options 重试配置
type Options struct {
	// MaxAttempts total attempts including the first call, default 3
	// MaxAttempts 总尝试次数（包含首次调用），默认 3
	MaxAttempts int
	// InitialDelay delay before the second attempt, default 1s
	// InitialDelay 第二次尝试前的等待时间，默认 1s
	InitialDelay time.Duration
	// BackoffMultiplier applied to the delay after every retry, default 2
	// BackoffMultiplier 每次重试后延迟的倍数，默认 2
	BackoffMultiplier float64
	// OnRetry called with the attempt that just failed, before sleeping
	// OnRetry 在等待前回调，参数为刚失败的尝试序号
	OnRetry func(attempt int, err error)
	// ShouldRetry decides whether err is worth another attempt, default IsRetryable
	// ShouldRetry 判断错误是否可重试，默认 IsRetryable
	ShouldRetry func(err error) bool
	// Sleep waits between attempts, default is a timer that honours ctx
	// Sleep 两次尝试之间的等待，默认为可被 ctx 取消的定时器
	Sleep SleepFunc
}

// Option mutates Options.
type Option func(*Options)

// WithMaxAttempts sets the total number of attempts.
func WithMaxAttempts(n int) Option {
	return func(o *Options) { o.MaxAttempts = n }
}

// WithInitialDelay sets the delay before the second attempt.
func WithInitialDelay(d time.Duration) Option {
	return func(o *Options) { o.InitialDelay = d }
}

// WithBackoffMultiplier sets the factor applied to the delay after each retry.
func WithBackoffMultiplier(m float64) Option {
	return func(o *Options) { o.BackoffMultiplier = m }
}

// WithOnRetry registers a per-retry callback.
func WithOnRetry(fn func(attempt int, err error)) Option {
	return func(o *Options) { o.OnRetry = fn }
}

// WithShouldRetry replaces the default error classifier.
func WithShouldRetry(fn func(err error) bool) Option {
	return func(o *Options) { o.ShouldRetry = fn }
}

// WithSleep replaces the wait function, mostly for tests.
func WithSleep(fn SleepFunc) Option {
	return func(o *Options) { o.Sleep = fn }
}

// WithOptions copies every non-zero field of base.
// WithOptions 复制 base 中非零值字段
func WithOptions(base Options) Option {
	return func(o *Options) {
		if base.MaxAttempts > 0 {
			o.MaxAttempts = base.MaxAttempts
		}
		if base.InitialDelay > 0 {
			o.InitialDelay = base.InitialDelay
		}
		if base.BackoffMultiplier > 0 {
			o.BackoffMultiplier = base.BackoffMultiplier
		}
		if base.OnRetry != nil {
			o.OnRetry = base.OnRetry
		}
		if base.ShouldRetry != nil {
			o.ShouldRetry = base.ShouldRetry
		}
		if base.Sleep != nil {
			o.Sleep = base.Sleep
		}
	}
}

// DefaultOptions returns the default configuration.
// DefaultOptions 返回默认配置
func DefaultOptions() Options {
	return Options{
		MaxAttempts:       DefaultMaxAttempts,
		InitialDelay:      DefaultInitialDelay,
		BackoffMultiplier: DefaultBackoffMultiplier,
		ShouldRetry:       IsRetryable,
		Sleep:             TimerSleep,
	}
}

func buildOptions(opts []Option) Options {
	o := DefaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.InitialDelay < 0 {
		o.InitialDelay = 0
	}
	if o.BackoffMultiplier <= 0 {
		o.BackoffMultiplier = DefaultBackoffMultiplier
	}
	if o.ShouldRetry == nil {
		o.ShouldRetry = IsRetryable
	}
	if o.Sleep == nil {
		o.Sleep = TimerSleep
	}
	return o
}

// Do runs fn until it succeeds, the error is terminal, or attempts run out.
// The delay before attempt n+1 is InitialDelay * BackoffMultiplier^(n-1).
// Do 执行 fn，直到成功、遇到不可重试错误或次数用尽
func Do[T any](ctx context.Context, fn func(ctx context.Context) (T, error), opts ...Option) (T, error) {
	o := buildOptions(opts)

	var (
		zero    T
		result  T
		lastErr error
		attempt int
	)
	delay := o.InitialDelay

	// 等待由 Options.Sleep 完成，交给 go-retry 的间隔恒为 0
	backoff := goretry.BackoffFunc(func() (time.Duration, bool) {
		if attempt >= o.MaxAttempts {
			return 0, true
		}
		if o.OnRetry != nil {
			o.OnRetry(attempt, lastErr)
		}
		if err := o.Sleep(ctx, delay); err != nil {
			return 0, true
		}
		delay = time.Duration(float64(delay) * o.BackoffMultiplier)
		return 0, false
	})

	err := goretry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		v, err := fn(ctx)
		if err == nil {
			result = v
			return nil
		}
		lastErr = err
		if !o.ShouldRetry(err) {
			return err
		}
		return goretry.RetryableError(err)
	})
	if err != nil {
		if lastErr != nil {
			return zero, lastErr
		}
		return zero, err
	}
	return result, nil
}

// Run is Do for operations without a result.
func Run(ctx context.Context, fn func(ctx context.Context) error, opts ...Option) error {
	_, err := Do(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	}, opts...)
	return err
}

// TimerSleep waits on a timer so other goroutines keep running; it returns early with ctx.Err().
// TimerSleep 基于定时器等待，可被 ctx 提前结束
func TimerSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
