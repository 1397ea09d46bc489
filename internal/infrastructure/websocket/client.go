package websocket

import (
	"context"
	"errors"
	"sync"
	"time"

	"fundingarb/internal/domain/model"
	"fundingarb/internal/infrastructure/metrics"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	DefaultDialTimeout    = 10 * time.Second
	DefaultReadTimeout    = 60 * time.Second
	DefaultPingInterval   = 25 * time.Second
	DefaultReconnectDelay = 5 * time.Second

	writeTimeout = 5 * time.Second
)

var errEmptyURL = errors.New("websocket url is empty")

// Session 一次连接，写操作加锁，读只在 readLoop 里发生
type Session struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// WriteJSON 发送一条 JSON 消息
func (s *Session) WriteJSON(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteJSON(v)
}

func (s *Session) ping() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(writeTimeout))
}

// Options 连接参数。URL 每次拨号前调用，可以带时间戳之类的参数
type Options struct {
	Venue string
	URL   func() string

	// OnConnect 连接建立后调用，一般用来订阅频道；返回错误会断开重连
	OnConnect func(s *Session) error
	// OnMessage 每条文本或二进制消息
	OnMessage func(s *Session, data []byte)
	// OnState 连接状态变化，err 为断开原因
	OnState func(state model.SourceState, err error)

	DialTimeout    time.Duration
	ReadTimeout    time.Duration
	PingInterval   time.Duration
	ReconnectDelay time.Duration
	Dialer         *websocket.Dialer
}

func (o *Options) applyDefaults() {
	if o.DialTimeout <= 0 {
		o.DialTimeout = DefaultDialTimeout
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = DefaultReadTimeout
	}
	if o.PingInterval <= 0 {
		o.PingInterval = DefaultPingInterval
	}
	if o.ReconnectDelay <= 0 {
		o.ReconnectDelay = DefaultReconnectDelay
	}
	if o.Dialer == nil {
		o.Dialer = websocket.DefaultDialer
	}
	if o.OnMessage == nil {
		o.OnMessage = func(*Session, []byte) {}
	}
	if o.OnState == nil {
		o.OnState = func(model.SourceState, error) {}
	}
}

// Run 保持连接直到 ctx 结束。断线后固定间隔重连，不会放弃
func Run(ctx context.Context, opts Options) {
	opts.applyDefaults()
	if opts.URL == nil {
		opts.OnState(model.StateDisconnected, errEmptyURL)
		return
	}

	first := true
	for {
		if ctx.Err() != nil {
			return
		}
		if !first {
			metrics.StreamReconnected(opts.Venue)
		}
		first = false

		err := connectOnce(ctx, &opts)
		if ctx.Err() != nil {
			return
		}
		log.Warn().Str("venue", opts.Venue).Err(err).Dur("delay", opts.ReconnectDelay).Msg("ws disconnected, reconnecting")
		opts.OnState(model.StateDisconnected, err)

		t := time.NewTimer(opts.ReconnectDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

func connectOnce(ctx context.Context, opts *Options) error {
	wsURL := opts.URL()
	if wsURL == "" {
		return errEmptyURL
	}

	log.Debug().Str("venue", opts.Venue).Str("url", wsURL).Msg("ws connecting")
	cctx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
	conn, _, err := opts.Dialer.DialContext(cctx, wsURL, nil)
	cancel()
	if err != nil {
		return err
	}
	defer conn.Close()

	s := &Session{conn: conn}
	if opts.OnConnect != nil {
		if err := opts.OnConnect(s); err != nil {
			return err
		}
	}
	log.Info().Str("venue", opts.Venue).Msg("ws connected")
	opts.OnState(model.StateConnected, nil)

	return readLoop(ctx, s, opts)
}

func readLoop(ctx context.Context, s *Session, opts *Options) error {
	conn := s.conn
	_ = conn.SetReadDeadline(time.Now().Add(opts.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(opts.ReadTimeout))
		return nil
	})

	pingTicker := time.NewTicker(opts.PingInterval)
	defer pingTicker.Stop()

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		for {
			_, b, err := conn.ReadMessage()
			if err != nil {
				errCh <- err
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(opts.ReadTimeout))
			opts.OnMessage(s, b)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			// 关闭连接让读 goroutine 退出
			_ = conn.Close()
			<-errCh
			return ctx.Err()
		case err := <-errCh:
			return err
		case <-pingTicker.C:
			if err := s.ping(); err != nil {
				_ = conn.Close()
				<-errCh
				return err
			}
		}
	}
}
