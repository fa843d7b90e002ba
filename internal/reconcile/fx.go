package reconcile

import (
	"github.com/smallbiznis/claimsync/internal/journal"
	"go.uber.org/fx"
)

var Module = fx.Module("reconcile",
	fx.Provide(ConfigFrom),
	fx.Provide(func(j *journal.Journal) FailureRecorder { return j }),
	fx.Provide(NewEngine),
)
