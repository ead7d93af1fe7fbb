package finance

import (
	"github.com/clinvia/clinvia/internal/finance/repository"
	"github.com/clinvia/clinvia/internal/finance/service"
	"go.uber.org/fx"
)

var Module = fx.Module("finance.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
