package core

import (
	"context"
	"errors"
	"fmt"
)

// IService is the lifecycle every external-provider service implements.
type IService interface {
	Init(ctx context.Context) error
	Cleanup() error
}

// BaseHandler owns a primary service plus ordered backups. Handlers embed it
// and walk Services() when the primary fails.
type BaseHandler[S IService] struct {
	Service        S
	BackupServices []S
	Ctx            context.Context
	Logger         *Logger
	initialized    bool
}

func NewBaseHandler[S IService](service S, backupServices []S, logger *Logger) *BaseHandler[S] {
	if logger == nil {
		logger = GetLogger()
	}
	return &BaseHandler[S]{
		Service:        service,
		BackupServices: backupServices,
		Logger:         logger,
	}
}

// Services returns the primary followed by the backups, in fallback order.
func (h *BaseHandler[S]) Services() []S {
	out := make([]S, 0, len(h.BackupServices)+1)
	out = append(out, h.Service)
	return append(out, h.BackupServices...)
}

// Initialize calls Init on every service. Services that fail to initialize
// are dropped from the chain; the next healthy one is promoted to primary.
// It fails only when no service survives.
func (h *BaseHandler[S]) Initialize(ctx context.Context) error {
	h.Ctx = ctx
	var healthy []S
	var errs []error
	for _, svc := range h.Services() {
		if err := svc.Init(ctx); err != nil {
			h.Logger.With(map[string]any{"error": err, "service": fmt.Sprintf("%T", svc)}).Warn("service failed to initialize, removing from chain")
			errs = append(errs, err)
			continue
		}
		healthy = append(healthy, svc)
	}
	if len(healthy) == 0 {
		return fmt.Errorf("no service could be initialized: %w", errors.Join(errs...))
	}
	h.Service = healthy[0]
	h.BackupServices = healthy[1:]
	h.initialized = true
	return nil
}

func (h *BaseHandler[S]) Initialized() bool {
	return h.initialized
}

func (h *BaseHandler[S]) Cleanup() error {
	var errs []error
	for _, svc := range h.Services() {
		if err := svc.Cleanup(); err != nil {
			errs = append(errs, err)
		}
	}
	h.initialized = false
	return errors.Join(errs...)
}
