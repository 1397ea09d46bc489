package svc

import "errors"

// ErrNoSourcesEnabled 错误：没有启用任何数据源
var ErrNoSourcesEnabled = errors.New("no funding sources enabled")

// ErrUnknownSource 错误：交易所没有注册 adapter
var ErrUnknownSource = errors.New("no adapter registered for venue")
