package aster

import (
	"fundingarb/internal/domain/model"
	"fundingarb/internal/infrastructure/exchange/binance"
	"fundingarb/internal/infrastructure/source"
)

// DefaultURL Aster 的合约接口与 binance 兼容
const DefaultURL = "https://fapi.asterdex.com"

func init() {
	source.Register(model.VenueAster, func(deps source.Deps) source.Adapter {
		base := deps.BaseURL
		if base == "" {
			base = DefaultURL
		}
		c := binance.NewFuturesClient(binance.FuturesOptions{
			Venue:      model.VenueAster,
			BaseURL:    base,
			HTTP:       deps.HTTP,
			Resolver:   deps.Resolver,
			Convention: deps.Convention,
		})
		return source.Adapter{Funding: c, Quotes: c}
	})
}
