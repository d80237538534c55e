package bootstrap

import (
	"context"
	"fmt"

	"audience/internal/config"
	"audience/internal/logger"
)

// Base carries what every entrypoint needs and runs the shared shutdown
// sequence.
type Base struct {
	Config    *config.Config
	Logger    logger.Logger
	Databases *DatabaseConnector
}

func NewBase(cfg *config.Config, log logger.Logger) *Base {
	return &Base{
		Config:    cfg,
		Logger:    log,
		Databases: NewDatabaseConnector(cfg, log),
	}
}

// Shutdown runs additionalShutdown, then closes the databases opened through
// Databases, and reports every error encountered.
func (b *Base) Shutdown(ctx context.Context, additionalShutdown func(ctx context.Context) []error) error {
	b.Logger.InfowCtx(ctx, "Shutting down application")

	var errs []error

	if additionalShutdown != nil {
		errs = append(errs, additionalShutdown(ctx)...)
	}

	errs = append(errs, b.Databases.ShutdownDatabases(ctx)...)

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}

	b.Logger.InfowCtx(ctx, "Application exited successfully")
	return nil
}
