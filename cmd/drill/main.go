// Package main - drill
// Guard drill bot: connects to the asylum server over WebSocket, arms an alert and
// selects every escapee it hears about after a reaction delay.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MRamiBalles/ArkhamAsylum/server/internal/engine"
	"github.com/MRamiBalles/ArkhamAsylum/server/internal/events"
	"github.com/MRamiBalles/ArkhamAsylum/server/internal/network"
)

// Config for the drill
type Config struct {
	ServerURL string
	Guards    int
	Reaction  time.Duration
	MissRate  float64
	Timeout   time.Duration
}

// Stats tracks what the guards did.
type Stats struct {
	EscapesSeen  int64
	SelectsSent  int64
	Captures     int64
	Errors       int64
	resultOnce   sync.Once
	Outcome      engine.Outcome
	ResultBanner string
}

type inbound struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func main() {
	serverURL := flag.String("url", "ws://localhost:3001/ws", "WebSocket server URL")
	guards := flag.Int("guards", 1, "Number of concurrent guards")
	reaction := flag.Duration("reaction", 1500*time.Millisecond, "Delay before a guard reacts to an escape")
	miss := flag.Float64("miss", 0, "Probability a guard ignores an escapee (0-1)")
	timeout := flag.Duration("timeout", 5*time.Minute, "Give up after this long")
	flag.Parse()

	cfg := Config{
		ServerURL: *serverURL,
		Guards:    *guards,
		Reaction:  *reaction,
		MissRate:  *miss,
		Timeout:   *timeout,
	}

	fmt.Println("=========================================")
	fmt.Println("🦇 ARKHAM DRILL - Guard simulation")
	fmt.Println("=========================================")
	fmt.Printf("Server: %s\n", cfg.ServerURL)
	fmt.Printf("Guards: %d\n", cfg.Guards)
	fmt.Printf("Reaction: %v  Miss rate: %.2f\n", cfg.Reaction, cfg.MissRate)
	fmt.Println("=========================================")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	stats := runDrill(ctx, cfg)
	printResults(stats)
	if stats.Outcome == "" {
		os.Exit(1)
	}
}

func runDrill(ctx context.Context, cfg Config) *Stats {
	stats := &Stats{}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < cfg.Guards; i++ {
		wg.Add(1)
		go func(guardID int) {
			defer wg.Done()
			// The first guard arms; the drill ends for everyone at resolution.
			if runGuard(ctx, guardID, cfg, stats) {
				cancel()
			}
		}(i)
		time.Sleep(10 * time.Millisecond)
	}
	wg.Wait()
	return stats
}

// runGuard plays until the alert resolves. It reports whether it saw the resolution.
func runGuard(ctx context.Context, guardID int, cfg Config, stats *Stats) bool {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, cfg.ServerURL, nil)
	if err != nil {
		fmt.Printf("Guard %d: connection failed: %v\n", guardID, err)
		atomic.AddInt64(&stats.Errors, 1)
		return false
	}
	defer conn.Close()

	// gorilla allows one concurrent writer.
	outbox := make(chan network.GuardAction, 64)
	go func() {
		for a := range outbox {
			if err := conn.WriteJSON(a); err != nil {
				atomic.AddInt64(&stats.Errors, 1)
				return
			}
		}
	}()
	var closeOnce sync.Once
	closeOutbox := func() { closeOnce.Do(func() { close(outbox) }) }
	defer closeOutbox()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	if guardID == 0 {
		outbox <- network.GuardAction{Type: network.ActionArm}
	}

	rng := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), uint64(guardID)))
	var pending sync.WaitGroup
	defer pending.Wait()

	for {
		var m inbound
		if err := conn.ReadJSON(&m); err != nil {
			return false
		}
		switch m.Type {
		case network.MsgTypeDetail:
			var d engine.Detail
			if json.Unmarshal(m.Payload, &d) == nil && d.CapturedNow {
				atomic.AddInt64(&stats.Captures, 1)
				fmt.Printf("Guard %d: %s is back in their cell.\n", guardID, d.Inmate.Name)
			}
		case network.MsgTypeError:
			atomic.AddInt64(&stats.Errors, 1)
		case network.MsgTypeEvent:
			var e struct {
				Type    events.EventType `json:"type"`
				Payload json.RawMessage  `json:"payload"`
			}
			if json.Unmarshal(m.Payload, &e) != nil {
				continue
			}
			switch e.Type {
			case events.EventTypeInmatesEscaped:
				var batch engine.EscapeBatchPayload
				if json.Unmarshal(e.Payload, &batch) != nil {
					continue
				}
				atomic.AddInt64(&stats.EscapesSeen, int64(len(batch.InmateIDs)))
				fmt.Printf("Guard %d: %d inmates have escaped: %v\n", guardID, len(batch.InmateIDs), batch.Names)
				for _, id := range batch.InmateIDs {
					if rng.Float64() < cfg.MissRate {
						continue
					}
					pending.Add(1)
					time.AfterFunc(cfg.Reaction, func() {
						defer pending.Done()
						if ctx.Err() != nil {
							return
						}
						select {
						case outbox <- network.GuardAction{Type: network.ActionSelect, InmateID: id}:
							atomic.AddInt64(&stats.SelectsSent, 1)
						default:
						}
					})
				}
			case events.EventTypeSimulationResolved:
				var res engine.ResolvedPayload
				if json.Unmarshal(e.Payload, &res) == nil {
					stats.resultOnce.Do(func() {
						stats.Outcome = res.Outcome
						stats.ResultBanner = res.Message
					})
				}
				return true
			}
		}
	}
}

func printResults(stats *Stats) {
	fmt.Println("\n=========================================")
	fmt.Println("📋 DRILL RESULTS")
	fmt.Println("=========================================")
	fmt.Printf("Escapes seen:  %d\n", atomic.LoadInt64(&stats.EscapesSeen))
	fmt.Printf("Selects sent:  %d\n", atomic.LoadInt64(&stats.SelectsSent))
	fmt.Printf("Captures:      %d\n", atomic.LoadInt64(&stats.Captures))
	fmt.Printf("Errors:        %d\n", atomic.LoadInt64(&stats.Errors))
	if stats.Outcome == "" {
		fmt.Println("Outcome:       (alert did not resolve)")
		return
	}
	fmt.Printf("Outcome:       %s\n", stats.Outcome)
	fmt.Println(stats.ResultBanner)
}
