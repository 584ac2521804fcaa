package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/ledgerchat/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_watch: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/api/ws", "WebSocket address")
	token := flag.String("token", "", "API token (from `ledgerchat token`)")
	frames := flag.Int("frames", 0, "exit after this many snapshots, 0 runs until timeout")
	timeout := flag.Duration("timeout", time.Minute, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	target := *addr
	if *token != "" {
		u, err := url.Parse(target)
		if err != nil {
			return fmt.Errorf("parse addr: %w", err)
		}
		q := u.Query()
		q.Set("token", *token)
		u.RawQuery = q.Encode()
		target = u.String()
	}

	conn, _, err := websocket.Dial(ctx, target, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	for n := 1; *frames == 0 || n <= *frames; n++ {
		var outbound proto.Outbound
		if err := wsjson.Read(ctx, conn, &outbound); err != nil {
			return fmt.Errorf("read: %w", err)
		}

		if outbound.Error != nil {
			fmt.Printf("Error: %s %s\n", outbound.Error.Code, outbound.Error.Msg)
			continue
		}
		if outbound.Data == nil {
			continue
		}

		s := outbound.Data
		fmt.Printf("Snapshot #%d: session=%s account=%s messages=%d pending=%d\n",
			n, s.Session.Status, s.Session.Account, len(s.Messages), len(s.Pending))
		for _, p := range s.Pending {
			fmt.Printf("  pending %s -> %s stage=%s\n", p.ID, p.Receiver, p.Stage)
		}
		if len(s.Messages) > 0 {
			last := s.Messages[len(s.Messages)-1]
			fmt.Printf("  latest %s -> %s cid=%s ts=%d\n", last.Sender, last.Receiver, last.ContentRef, last.TS)
		}
	}
	return nil
}
