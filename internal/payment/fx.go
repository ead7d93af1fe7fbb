package payment

import (
	"github.com/clinvia/clinvia/internal/payment/repository"
	"github.com/clinvia/clinvia/internal/payment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
