package model

// 交易所标识，全部小写，同时也是配置和 HTTP 路由中的 source 名
const (
	VenueLighter     = "lighter"
	VenueBinance     = "binance"
	VenueEdgeX       = "edgex"
	VenueGRVT        = "grvt"
	VenueAster       = "aster"
	VenueBackpack    = "backpack"
	VenueHyperliquid = "hyperliquid"
	VenueVariational = "variational"
	VenueParadex     = "paradex"
	VenueEthereal    = "ethereal"
	VenueDYDX        = "dydx"
	VenueNado        = "nado"
)

// KnownVenues 固定的展示顺序
var KnownVenues = []string{
	VenueLighter,
	VenueBinance,
	VenueEdgeX,
	VenueGRVT,
	VenueAster,
	VenueBackpack,
	VenueHyperliquid,
	VenueVariational,
	VenueParadex,
	VenueEthereal,
	VenueDYDX,
	VenueNado,
}

// IsKnownVenue reports whether v is one of KnownVenues.
func IsKnownVenue(v string) bool {
	for _, k := range KnownVenues {
		if k == v {
			return true
		}
	}
	return false
}

// VenueIndex 返回 venue 在 KnownVenues 中的位置，未知返回 len(KnownVenues)
func VenueIndex(v string) int {
	for i, k := range KnownVenues {
		if k == v {
			return i
		}
	}
	return len(KnownVenues)
}
