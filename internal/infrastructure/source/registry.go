package source

import (
	"sort"
	"time"

	"fundingarb/internal/application/port"
	"fundingarb/internal/domain/service"
	"fundingarb/internal/infrastructure/exchange"

	"github.com/rs/zerolog/log"
)

// Deps 构造交易所适配器需要的依赖，空字段由适配器使用自己的默认值
type Deps struct {
	HTTP       *exchange.Client
	BaseURL    string
	AltURL     string
	Convention service.Convention
	Gap        time.Duration
	Resolver   *service.SymbolResolver
}

// Adapter 一个交易所提供的数据源，不支持的字段为 nil
type Adapter struct {
	Funding port.FundingSource
	Quotes  port.QuoteSource
	Stream  port.StreamSource
}

// Factory 由各交易所包的 init() 注册
type Factory func(deps Deps) Adapter

// registry maps venue names to their adapter factories
var registry = make(map[string]Factory)

// Register 注册一个交易所的 adapter factory
func Register(venue string, factory Factory) {
	if factory == nil {
		log.Warn().Str("venue", venue).Msg("invalid adapter factory")
		return
	}
	if _, exists := registry[venue]; exists {
		log.Warn().Str("venue", venue).Msg("adapter factory already registered, overwriting")
	}
	registry[venue] = factory
}

// Get 获取已注册的 adapter factory
func Get(venue string) (Factory, bool) {
	factory, ok := registry[venue]
	return factory, ok
}

// Names 已注册的交易所，按名字排序
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
