package binance

import (
	"fundingarb/internal/domain/model"
	"fundingarb/internal/infrastructure/source"
)

// init() automatically registers the Binance futures adapter
func init() {
	source.Register(model.VenueBinance, func(deps source.Deps) source.Adapter {
		c := NewFuturesClient(FuturesOptions{
			Venue:        model.VenueBinance,
			BaseURL:      deps.BaseURL,
			HTTP:         deps.HTTP,
			Resolver:     deps.Resolver,
			Convention:   deps.Convention,
			SkipInactive: true,
		})
		return source.Adapter{Funding: c, Quotes: c}
	})
}
