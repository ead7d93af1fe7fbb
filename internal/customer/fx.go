package customer

import (
	"github.com/clinvia/clinvia/internal/customer/repository"
	"github.com/clinvia/clinvia/internal/customer/service"
	"go.uber.org/fx"
)

var Module = fx.Module("customer.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
