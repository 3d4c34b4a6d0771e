package bitget

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// PublicStreamURL is the Bitget public websocket endpoint
	PublicStreamURL = "wss://ws.bitget.com/v2/ws/public"

	pingInterval       = 25 * time.Second
	reconnectBaseDelay = 2 * time.Second
	reconnectMaxDelay  = 60 * time.Second
)

// streamSubscription is the subscribe frame for the public stream
type streamSubscription struct {
	Op   string      `json:"op"`
	Args []streamArg `json:"args"`
}

type streamArg struct {
	InstType string `json:"instType"`
	Channel  string `json:"channel"`
	InstID   string `json:"instId"`
}

// streamMessage is the envelope of pushed candle data
type streamMessage struct {
	Action string     `json:"action"`
	Arg    streamArg  `json:"arg"`
	Data   [][]string `json:"data"`
}

// Stream maintains a websocket connection to the public candle channels and
// keeps the market data cache warm so decision paths rarely hit REST
type Stream struct {
	url         string
	cache       *MarketDataCache
	granularity string

	mu       sync.Mutex
	symbols  map[string]bool
	conn     *websocket.Conn
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewStream creates a stream feeding the given cache
func NewStream(url string, cache *MarketDataCache, granularity string) *Stream {
	if url == "" {
		url = PublicStreamURL
	}
	return &Stream{
		url:         url,
		cache:       cache,
		granularity: granularity,
		symbols:     make(map[string]bool),
	}
}

// Subscribe adds a symbol to the candle subscription set. Takes effect on
// the next (re)connect if the stream is already running.
func (s *Stream) Subscribe(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.symbols[symbol] = true
}

// Start begins the stream loop
func (s *Stream) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("stream already running")
	}
	s.running = true
	s.stopChan = make(chan struct{})
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run()
	return nil
}

// Stop closes the stream and waits for the loop to exit
func (s *Stream) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopChan)
	if s.conn != nil {
		s.conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *Stream) run() {
	defer s.wg.Done()

	delay := reconnectBaseDelay
	for {
		select {
		case <-s.stopChan:
			return
		default:
		}

		if err := s.connectAndRead(); err != nil {
			select {
			case <-s.stopChan:
				return
			case <-time.After(delay):
			}
			delay *= 2
			if delay > reconnectMaxDelay {
				delay = reconnectMaxDelay
			}
			continue
		}
		delay = reconnectBaseDelay
	}
}

func (s *Stream) connectAndRead() error {
	conn, _, err := websocket.DefaultDialer.Dial(s.url, nil)
	if err != nil {
		return fmt.Errorf("dial stream: %w", err)
	}

	s.mu.Lock()
	s.conn = conn
	args := make([]streamArg, 0, len(s.symbols))
	for symbol := range s.symbols {
		args = append(args, streamArg{
			InstType: ProductUSDTFutures,
			Channel:  "candle" + s.granularity,
			InstID:   symbol,
		})
	}
	s.mu.Unlock()

	if len(args) > 0 {
		if err := conn.WriteJSON(streamSubscription{Op: "subscribe", Args: args}); err != nil {
			conn.Close()
			return fmt.Errorf("subscribe: %w", err)
		}
	}

	// Bitget closes idle connections after 30s without a ping
	pingDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-pingDone:
				return
			case <-ticker.C:
				if err := conn.WriteMessage(websocket.TextMessage, []byte("ping")); err != nil {
					return
				}
			}
		}
	}()
	defer close(pingDone)
	defer conn.Close()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read stream: %w", err)
		}
		if string(raw) == "pong" {
			continue
		}
		s.handleMessage(raw)
	}
}

func (s *Stream) handleMessage(raw []byte) {
	var msg streamMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}
	if msg.Arg.InstID == "" || len(msg.Data) == 0 {
		return
	}

	for _, row := range msg.Data {
		if len(row) < 6 {
			continue
		}
		ts, _ := strconv.ParseInt(row[0], 10, 64)
		open, _ := strconv.ParseFloat(row[1], 64)
		high, _ := strconv.ParseFloat(row[2], 64)
		low, _ := strconv.ParseFloat(row[3], 64)
		closePrice, _ := strconv.ParseFloat(row[4], 64)
		volume, _ := strconv.ParseFloat(row[5], 64)

		s.cache.UpdateCandle(msg.Arg.InstID, s.granularity, Candle{
			Timestamp: ts,
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closePrice,
			Volume:    volume,
		})
	}
}
