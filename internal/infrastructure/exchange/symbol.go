package exchange

import (
	"fundingarb/internal/domain/model"
	"fundingarb/internal/domain/service"
)

// symbolRules 各交易所的 symbol 规则
var symbolRules = map[string]service.ResolverConfig{
	model.VenueLighter:     {},
	model.VenueBinance:     {Suffixes: []string{"USDT", "USD"}},
	model.VenueAster:       {Suffixes: []string{"USDT"}},
	model.VenueBackpack:    {Suffixes: []string{"_USDC_PERP"}},
	model.VenueHyperliquid: {Prefixes: []service.PrefixRule{{From: "k", To: "1000"}}, Remaps: service.KPrefixRemaps},
	model.VenueEdgeX:       {Suffixes: []string{"USDT", "USD"}},
	model.VenueGRVT:        {},
	model.VenueVariational: {},
	model.VenueParadex:     {Suffixes: []string{"-PERP", "-USD"}},
	model.VenueEthereal:    {},
	model.VenueDYDX:        {Suffixes: []string{"-USD"}},
	model.VenueNado:        {Suffixes: []string{"-PERP"}},
}

// ResolverFor 返回交易所的 symbol 解析器，未知交易所使用全部规则的并集
func ResolverFor(venue string) *service.SymbolResolver {
	cfg, ok := symbolRules[venue]
	if !ok {
		return service.DefaultResolver()
	}
	return service.NewSymbolResolver(cfg)
}
