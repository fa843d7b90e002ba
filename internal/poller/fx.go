package poller

import (
	"context"

	"github.com/smallbiznis/claimsync/internal/cursor"
	"github.com/smallbiznis/claimsync/internal/reconcile"
	"go.uber.org/fx"
)

var Module = fx.Module("poller",
	fx.Provide(ConfigFrom),
	fx.Provide(func(e *reconcile.Engine) Applier { return e }),
	fx.Provide(func(s *cursor.Store) CursorStore { return s }),
	fx.Provide(NewWorker),
	fx.Invoke(runWorker),
)

func runWorker(lc fx.Lifecycle, worker *Worker) {
	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				worker.RunForever(runCtx)
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}
