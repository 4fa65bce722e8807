// Package sagas orchestrates multi-step pipeline operations with
// compensation. Steps before the graph commit compensate on failure; steps
// after it retry instead, since committed graph state is never rolled back.
package sagas

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	pkgerrors "engram-backend/pkg/errors"
)

// SagaStep is a single step with optional compensation and retry policy
type SagaStep struct {
	Name       string
	Execute    func(ctx context.Context, data interface{}) (interface{}, error)
	Compensate func(ctx context.Context, data interface{}) error
	MaxRetries int
	RetryDelay time.Duration
}

// SagaState is the lifecycle state of one saga execution
type SagaState string

const (
	SagaStatePending      SagaState = "PENDING"
	SagaStateRunning      SagaState = "RUNNING"
	SagaStateCompleted    SagaState = "COMPLETED"
	SagaStateFailed       SagaState = "FAILED"
	SagaStateCompensating SagaState = "COMPENSATING"
	SagaStateCompensated  SagaState = "COMPENSATED"
)

// Saga runs a series of steps, compensating completed ones in reverse
// order when a later step fails
type Saga struct {
	id            string
	name          string
	steps         []SagaStep
	compensations []func(ctx context.Context) error
	state         SagaState
	currentStep   int
	logger        *zap.Logger
	metadata      map[string]interface{}
}

// NewSaga creates a saga instance
func NewSaga(name string, logger *zap.Logger) *Saga {
	return &Saga{
		id:       uuid.NewString(),
		name:     name,
		state:    SagaStatePending,
		logger:   logger,
		metadata: map[string]interface{}{},
	}
}

// AddStep appends a step
func (s *Saga) AddStep(step SagaStep) *Saga {
	s.steps = append(s.steps, step)
	return s
}

// SetMetadata attaches metadata to the saga
func (s *Saga) SetMetadata(key string, value interface{}) *Saga {
	s.metadata[key] = value
	return s
}

// Execute runs the saga to completion or compensated failure
func (s *Saga) Execute(ctx context.Context, initialData interface{}) (interface{}, error) {
	s.state = SagaStateRunning
	s.logger.Info("starting saga",
		zap.String("saga_id", s.id),
		zap.String("saga_name", s.name),
		zap.Int("total_steps", len(s.steps)))

	data := initialData
	completedSteps := 0

	for i, step := range s.steps {
		s.currentStep = i

		if err := ctx.Err(); err != nil {
			s.state = SagaStateFailed
			s.compensate(ctx, completedSteps)
			s.state = SagaStateCompensated
			return nil, fmt.Errorf("saga %s canceled before step %s: %w", s.name, step.Name, err)
		}

		result, err := s.executeStepWithRetry(ctx, step, data)
		if err != nil {
			s.state = SagaStateFailed
			s.logger.Error("saga step failed",
				zap.String("saga_id", s.id),
				zap.String("step_name", step.Name),
				zap.Error(err))

			s.compensate(ctx, completedSteps)
			s.state = SagaStateCompensated
			return nil, fmt.Errorf("saga %s failed at step %s: %w", s.name, step.Name, err)
		}

		data = result
		completedSteps = i + 1

		if step.Compensate != nil {
			stepData := data
			compensate := step.Compensate
			s.compensations = append(s.compensations, func(ctx context.Context) error {
				return compensate(ctx, stepData)
			})
		} else {
			s.compensations = append(s.compensations, nil)
		}
	}

	s.state = SagaStateCompleted
	s.logger.Info("saga completed",
		zap.String("saga_id", s.id),
		zap.String("saga_name", s.name),
		zap.Int("completed_steps", completedSteps))

	return data, nil
}

func (s *Saga) executeStepWithRetry(ctx context.Context, step SagaStep, data interface{}) (interface{}, error) {
	maxRetries := step.MaxRetries
	if maxRetries == 0 {
		maxRetries = 1
	}
	retryDelay := step.RetryDelay
	if retryDelay == 0 {
		retryDelay = time.Second
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryDelay):
			}
			s.logger.Debug("retrying saga step",
				zap.String("saga_id", s.id),
				zap.String("step_name", step.Name),
				zap.Int("attempt", attempt+1))
		}

		result, err := step.Execute(ctx, data)
		if err == nil {
			return result, nil
		}
		lastErr = err
		s.logger.Warn("saga step attempt failed",
			zap.String("saga_id", s.id),
			zap.String("step_name", step.Name),
			zap.Int("attempt", attempt+1),
			zap.Error(err))

		// Classified non-retryable errors fail fast; unclassified errors
		// get the step's full retry budget.
		var appErr *pkgerrors.AppError
		if errors.As(err, &appErr) && !pkgerrors.IsRetryable(err) {
			break
		}
	}

	return nil, fmt.Errorf("step %s failed after retries: %w", step.Name, lastErr)
}

// compensate runs registered compensations in reverse order. A failing
// compensation is logged and the rest still run.
func (s *Saga) compensate(ctx context.Context, steps int) {
	s.state = SagaStateCompensating
	s.logger.Info("compensating saga",
		zap.String("saga_id", s.id),
		zap.String("saga_name", s.name),
		zap.Int("steps_to_compensate", steps))

	for i := steps - 1; i >= 0; i-- {
		if i >= len(s.compensations) || s.compensations[i] == nil {
			continue
		}
		if err := s.compensations[i](ctx); err != nil {
			s.logger.Error("compensation failed",
				zap.String("saga_id", s.id),
				zap.Int("step_number", i+1),
				zap.Error(err))
		}
	}
}

// GetState returns the saga's current state
func (s *Saga) GetState() SagaState { return s.state }

// GetID returns the saga's id
func (s *Saga) GetID() string { return s.id }

// GetCurrentStep returns the index of the step last attempted
func (s *Saga) GetCurrentStep() int { return s.currentStep }

// SagaBuilder provides a fluent interface for assembling sagas
type SagaBuilder struct {
	saga *Saga
}

// NewSagaBuilder creates a saga builder
func NewSagaBuilder(name string, logger *zap.Logger) *SagaBuilder {
	return &SagaBuilder{saga: NewSaga(name, logger)}
}

// WithStep adds a plain step
func (b *SagaBuilder) WithStep(name string, execute func(context.Context, interface{}) (interface{}, error)) *SagaBuilder {
	b.saga.AddStep(SagaStep{Name: name, Execute: execute})
	return b
}

// WithCompensableStep adds a step that undoes itself on later failure
func (b *SagaBuilder) WithCompensableStep(
	name string,
	execute func(context.Context, interface{}) (interface{}, error),
	compensate func(context.Context, interface{}) error,
) *SagaBuilder {
	b.saga.AddStep(SagaStep{Name: name, Execute: execute, Compensate: compensate})
	return b
}

// WithRetryableStep adds a step retried on failure instead of compensated
func (b *SagaBuilder) WithRetryableStep(
	name string,
	execute func(context.Context, interface{}) (interface{}, error),
	maxRetries int,
	retryDelay time.Duration,
) *SagaBuilder {
	b.saga.AddStep(SagaStep{Name: name, Execute: execute, MaxRetries: maxRetries, RetryDelay: retryDelay})
	return b
}

// WithMetadata attaches metadata
func (b *SagaBuilder) WithMetadata(key string, value interface{}) *SagaBuilder {
	b.saga.SetMetadata(key, value)
	return b
}

// Build returns the assembled saga
func (b *SagaBuilder) Build() *Saga {
	return b.saga
}
