package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"upload-throttle/pipeline/throttle/domain"
)

// ChunkWorkflow cria um chunk no serviço remoto com retentativas.
//
// Ordem de aquisição por chunk:
//
//	CreateChunk (segurado durante todo o workflow, inclusive entre tentativas)
//	  por tentativa: Call -> dispara -> libera Call; Wait -> aguarda -> libera Wait
//
// Assim a concorrência de disparo/espera é limitada globalmente, não importa
// quantos chunks estejam no meio de retentativas.
type ChunkWorkflow struct {
	CreateChunk GateService
	Call        GateService
	Wait        GateService

	Creator domain.ChunkCreator
	Pacer   domain.Pacer
	Backoff Backoff
	Logger  *slog.Logger
}

func (w *ChunkWorkflow) Create(ctx context.Context, c domain.Chunk) (domain.ChunkID, error) {
	lease, err := w.CreateChunk.Acquire(ctx, 1)
	if err != nil {
		return 0, fmt.Errorf("create chunk %s#%d: %w", c.Path, c.Index, err)
	}
	defer lease.Release()

	b := w.Backoff
	if b.MaxAttempts <= 0 {
		b = DefaultBackoff()
	}

	for attempt := 1; ; attempt++ {
		id, err := w.attempt(ctx, c)
		if err == nil {
			return id, nil
		}
		if !domain.IsTransient(err) || attempt >= b.MaxAttempts {
			w.logger().Warn("create chunk failed",
				slog.String("path", c.Path),
				slog.Int("chunk", c.Index),
				slog.Int("attempts", attempt),
				slog.Any("err", err),
			)
			return 0, fmt.Errorf("create chunk %s#%d after %d attempt(s): %w", c.Path, c.Index, attempt, err)
		}

		delay := b.Delay(attempt)
		w.logger().Debug("create chunk retry",
			slog.String("path", c.Path),
			slog.Int("chunk", c.Index),
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.Any("err", err),
		)
		if err := sleep(ctx, delay); err != nil {
			return 0, err
		}
	}
}

func (w *ChunkWorkflow) attempt(ctx context.Context, c domain.Chunk) (domain.ChunkID, error) {
	if w.Pacer != nil {
		if err := w.Pacer.Wait(ctx); err != nil {
			return 0, err
		}
	}

	var pending domain.PendingChunk
	err := w.Call.Do(ctx, 1, func(ctx context.Context) error {
		var err error
		pending, err = w.Creator.Call(ctx, c)
		return err
	})
	if err != nil {
		return 0, err
	}

	var id domain.ChunkID
	err = w.Wait.Do(ctx, 1, func(ctx context.Context) error {
		var err error
		id, err = pending.Wait(ctx)
		return err
	})
	return id, err
}

func (w *ChunkWorkflow) logger() *slog.Logger {
	if w.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return w.Logger
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
