package installment

import (
	"github.com/clinvia/clinvia/internal/installment/repository"
	"github.com/clinvia/clinvia/internal/installment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("installment.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
