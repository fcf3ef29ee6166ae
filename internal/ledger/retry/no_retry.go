package retry

import "context"

// NoRetryStrategy executes operations exactly once
type NoRetryStrategy struct{}

func NewNoRetryStrategy() *NoRetryStrategy {
	return &NoRetryStrategy{}
}

func (s *NoRetryStrategy) Execute(ctx context.Context, operation Operation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return operation()
}

func (s *NoRetryStrategy) Name() string {
	return "NoRetry"
}
