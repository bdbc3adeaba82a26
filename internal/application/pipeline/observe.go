package pipeline

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Haleralex/marketbridge/internal/application/ports"
	domainerrors "github.com/Haleralex/marketbridge/internal/domain/errors"
	"github.com/Haleralex/marketbridge/internal/pkg/metrics"
)

// Traced открывает span с именем команды вокруг handler'а.
func Traced[C any, R any](tracer trace.Tracer, next Handler[C, R]) Handler[C, R] {
	name := CommandName[C]()

	return HandlerFunc[C, R](func(ctx context.Context, cmd C) (R, error) {
		ctx, span := tracer.Start(ctx, name, trace.WithAttributes(attribute.String("command", name)))
		defer span.End()

		result, err := next.Execute(ctx, cmd)
		if err != nil {
			span.RecordError(err)
			if code := domainerrors.CodeOf(err); code != "" {
				span.SetAttributes(attribute.String("error.code", code))
			}
			span.SetStatus(codes.Error, err.Error())
		}
		return result, err
	})
}

// Logged пишет имя команды, длительность и результат.
// Ожидаемые доменные ошибки логируются на WARN, остальные на ERROR.
func Logged[C any, R any](logger *slog.Logger, next Handler[C, R]) Handler[C, R] {
	name := CommandName[C]()

	return HandlerFunc[C, R](func(ctx context.Context, cmd C) (R, error) {
		start := time.Now()
		result, err := next.Execute(ctx, cmd)
		elapsed := time.Since(start)

		switch {
		case err == nil:
			metrics.RecordCommand(name, "ok", elapsed)
			logger.DebugContext(ctx, "command handled",
				slog.String("command", name),
				slog.Duration("duration", elapsed),
			)
		case domainerrors.IsDomainError(err) || domainerrors.IsValidationError(err):
			metrics.RecordCommand(name, "rejected", elapsed)
			logger.WarnContext(ctx, "command rejected",
				slog.String("command", name),
				slog.String("code", domainerrors.CodeOf(err)),
				slog.String("error", err.Error()),
				slog.Duration("duration", elapsed),
			)
		default:
			metrics.RecordCommand(name, "error", elapsed)
			logger.ErrorContext(ctx, "command failed",
				slog.String("command", name),
				slog.String("error", err.Error()),
				slog.Duration("duration", elapsed),
			)
		}
		return result, err
	})
}

// Command собирает стандартную цепочку для command use case:
// Traced → Logged → Validated → Transactional → handler.
func Command[C any, R any](
	uow ports.UnitOfWork,
	logger *slog.Logger,
	tracer trace.Tracer,
	next Handler[C, R],
	opts ...TxOption,
) Handler[C, R] {
	return Traced(tracer, Logged(logger, Validated(Transactional(uow, next, opts...))))
}
