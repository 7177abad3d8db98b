// Command sync-client tails the watchlist event feed, over the raw TCP
// stream or the websocket endpoint, and prints one event per line.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	synchub "animehub/internal/sync"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:7070", "TCP sync server address")
	wsURL := flag.String("ws", "", "websocket URL (e.g. ws://127.0.0.1:8080/ws); overrides -addr")
	owner := flag.String("owner", "", "only print events for this session id")
	pretty := flag.Bool("pretty", true, "pretty print JSON events")
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := printer{out: os.Stdout, owner: *owner, pretty: *pretty}
	for {
		var err error
		if *wsURL != "" {
			err = runWS(ctx, *wsURL, p, logger)
		} else {
			err = runTCP(ctx, *addr, p, logger)
		}
		if ctx.Err() != nil {
			return
		}
		logger.Warn("disconnected", zap.Error(err))

		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second): // auto reconnect
		}
	}
}

func runTCP(ctx context.Context, addr string, p printer, logger *zap.Logger) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()
	stopClose := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stopClose()

	logger.Info("connected", zap.String("addr", addr))

	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		p.print(sc.Bytes())
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return io.EOF
}

func runWS(ctx context.Context, url string, p printer, logger *zap.Logger) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", url, err)
	}
	defer conn.Close()
	stopClose := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stopClose()

	logger.Info("connected", zap.String("url", url))

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return io.EOF
			}
			return err
		}
		p.print(msg)
	}
}

type printer struct {
	out    io.Writer
	owner  string
	pretty bool
}

func (p printer) print(line []byte) {
	var ev synchub.WatchlistEvent
	if err := json.Unmarshal(line, &ev); err != nil || ev.Type == "" {
		// not an event (welcome line or raw text); print as-is
		fmt.Fprintln(p.out, string(line))
		return
	}
	if p.owner != "" && ev.Owner != p.owner {
		return
	}
	if !p.pretty {
		fmt.Fprintln(p.out, string(line))
		return
	}
	b, err := json.MarshalIndent(ev, "", "  ")
	if err != nil {
		fmt.Fprintln(p.out, string(line))
		return
	}
	fmt.Fprintln(p.out, string(b))
}
