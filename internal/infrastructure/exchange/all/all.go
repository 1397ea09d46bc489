// Package all 导入全部交易所适配器，触发它们的 init() 注册
package all

import (
	_ "fundingarb/internal/infrastructure/exchange/aster"
	_ "fundingarb/internal/infrastructure/exchange/backpack"
	_ "fundingarb/internal/infrastructure/exchange/binance"
	_ "fundingarb/internal/infrastructure/exchange/dydx"
	_ "fundingarb/internal/infrastructure/exchange/edgex"
	_ "fundingarb/internal/infrastructure/exchange/ethereal"
	_ "fundingarb/internal/infrastructure/exchange/grvt"
	_ "fundingarb/internal/infrastructure/exchange/hyperliquid"
	_ "fundingarb/internal/infrastructure/exchange/lighter"
	_ "fundingarb/internal/infrastructure/exchange/nado"
	_ "fundingarb/internal/infrastructure/exchange/paradex"
	_ "fundingarb/internal/infrastructure/exchange/variational"
)
