package service

import (
	"sort"
	"strings"
)

// PrefixRule 区分大小写的前缀替换，例如 hyperliquid 的 kPEPE → 1000PEPE
type PrefixRule struct {
	From string
	To   string
}

// ResolverConfig 交易所 symbol 规则
type ResolverConfig struct {
	Suffixes []string
	Prefixes []PrefixRule
	Remaps   map[string]string
}

// SymbolResolver 把交易所原始 symbol 转换为标准 symbol
type SymbolResolver struct {
	suffixes []string
	prefixes []PrefixRule
	remaps   map[string]string
}

// NewSymbolResolver suffixes are matched longest first.
func NewSymbolResolver(cfg ResolverConfig) *SymbolResolver {
	suffixes := make([]string, 0, len(cfg.Suffixes))
	for _, s := range cfg.Suffixes {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			suffixes = append(suffixes, s)
		}
	}
	sort.SliceStable(suffixes, func(i, j int) bool { return len(suffixes[i]) > len(suffixes[j]) })

	remaps := make(map[string]string, len(cfg.Remaps))
	for k, v := range cfg.Remaps {
		remaps[strings.ToUpper(k)] = strings.ToUpper(v)
	}
	return &SymbolResolver{
		suffixes: suffixes,
		prefixes: append([]PrefixRule(nil), cfg.Prefixes...),
		remaps:   remaps,
	}
}

// Canonicalize 去后缀 → 前缀规则 → 大写 → remap
func (r *SymbolResolver) Canonicalize(raw string) string {
	s := r.stripSuffixes(strings.TrimSpace(raw))
	for _, p := range r.prefixes {
		rest := strings.TrimPrefix(s, p.From)
		// 只处理 k 后面紧跟大写部分的情况，避免重复应用
		if len(rest) < len(s) && rest != "" && rest == strings.ToUpper(rest) {
			s = p.To + rest
			break
		}
	}
	s = strings.ToUpper(s)
	if to, ok := r.remaps[s]; ok {
		s = to
	}
	return s
}

func (r *SymbolResolver) stripSuffixes(s string) string {
	for {
		upper := strings.ToUpper(s)
		stripped := false
		for _, suf := range r.suffixes {
			if len(s) > len(suf) && strings.HasSuffix(upper, suf) {
				s = s[:len(s)-len(suf)]
				stripped = true
				break
			}
		}
		if !stripped {
			return s
		}
	}
}

// KPrefixRemaps hyperliquid 的 k 系列合约
var KPrefixRemaps = map[string]string{
	"KBONK":  "1000BONK",
	"KPEPE":  "1000PEPE",
	"KSHIB":  "1000SHIB",
	"KFLOKI": "1000FLOKI",
	"KLUNC":  "1000LUNC",
	"KDOGS":  "1000DOGS",
	"KNEIRO": "1000NEIRO",
}

// DefaultResolver 所有交易所规则的并集
func DefaultResolver() *SymbolResolver {
	return NewSymbolResolver(ResolverConfig{
		Suffixes: []string{"_USDC_PERP", "-PERP", "-USD", "USDT", "USDC", "USD"},
		Prefixes: []PrefixRule{{From: "k", To: "1000"}},
		Remaps:   KPrefixRemaps,
	})
}
