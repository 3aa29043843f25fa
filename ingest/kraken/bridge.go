package kraken

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"titan/service"
)

// Bridge dials the Kraken websocket, subscribes to the level-3 channel
// and feeds normalized frames into the engine, reconnecting with
// backoff when the feed drops.
type Bridge struct {
	url    string
	symbol string
	depth  int
	svc    *service.EngineService
	log    *zap.Logger
	norm   *Normalizer
}

func NewBridge(url, symbol string, depth int, svc *service.EngineService, log *zap.Logger) *Bridge {
	return &Bridge{
		url:    url,
		symbol: symbol,
		depth:  depth,
		svc:    svc,
		log:    log,
		norm:   NewNormalizer(),
	}
}

type subscribeRequest struct {
	Method string          `json:"method"`
	Params subscribeParams `json:"params"`
}

type subscribeParams struct {
	Channel string   `json:"channel"`
	Symbol  []string `json:"symbol"`
	Depth   int      `json:"depth,omitempty"`
}

// Run blocks until the context ends.
func (b *Bridge) Run(ctx context.Context) {
	backoff := time.Second
	for ctx.Err() == nil {
		if err := b.session(ctx); err != nil && ctx.Err() == nil {
			b.log.Warn("kraken session ended, reconnecting",
				zap.Error(err), zap.Duration("backoff", backoff))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second
	}
}

func (b *Bridge) session(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, b.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	sub := subscribeRequest{
		Method: "subscribe",
		Params: subscribeParams{
			Channel: "level3",
			Symbol:  []string{b.symbol},
			Depth:   b.depth,
		},
	}
	payload, _ := json.Marshal(sub)
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return err
	}
	b.log.Info("kraken subscribed", zap.String("symbol", b.symbol))

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		for _, frame := range b.norm.Frames(raw) {
			if err := b.svc.Dispatch(frame); err != nil {
				b.log.Warn("kraken frame rejected", zap.Error(err))
			}
		}
	}
}
