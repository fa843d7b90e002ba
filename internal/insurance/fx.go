package insurance

import (
	"github.com/smallbiznis/claimsync/internal/insurance/repository"
	"github.com/smallbiznis/claimsync/internal/insurance/service"
	"go.uber.org/fx"
)

var Module = fx.Module("insurance",
	fx.Provide(repository.New),
	fx.Provide(service.NewService),
)
