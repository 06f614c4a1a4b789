// cmd/duel/main.go is the terminal client: it joins a relay room and plays one
// side of the duel.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/bridgeduel/internal/cache"
	"github.com/jason-s-yu/bridgeduel/internal/client"
	"github.com/jason-s-yu/bridgeduel/internal/config"
	"github.com/jason-s-yu/bridgeduel/internal/game"
	"github.com/jason-s-yu/bridgeduel/internal/models"
	"github.com/jason-s-yu/bridgeduel/internal/replication"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// seatHandler prints the seat token before the peer sees role_assigned.
type seatHandler struct {
	peer *replication.Peer
	out  io.Writer
}

func (h seatHandler) HandleMessage(ctx context.Context, msg models.Message) error {
	switch msg.Type {
	case models.MsgRoleAssigned:
		fmt.Fprintf(h.out, "seated as %s. rejoin with -token %s\n", msg.Role, msg.Token)
	case models.MsgPong:
		if msg.Data > 0 {
			fmt.Fprintf(h.out, "pong in %s\n", time.Since(time.UnixMilli(msg.Data)).Round(time.Millisecond))
		}
	}
	return h.peer.HandleMessage(ctx, msg)
}

func main() {
	relayURL := flag.String("relay", config.GetEnv("DUEL_RELAY_URL", "ws://localhost:3000/ws"), "relay websocket url")
	room := flag.String("room", "", "room id (required)")
	passcode := flag.String("passcode", "", "room passcode")
	token := flag.String("token", "", "seat token from an earlier session")
	flag.Parse()

	logrus.SetLevel(config.LogLevel(logrus.WarnLevel))
	log := logrus.WithField("client", "duel")

	if *room == "" {
		fmt.Fprintln(os.Stderr, "-room is required")
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := client.Dial(ctx, *relayURL, client.Options{RoomID: *room, Passcode: *passcode, Token: *token}, log)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer conn.Close()

	engine := game.NewEngine(log)
	engine.TrickDelay = config.GetEnvDuration("DUEL_TRICK_DELAY", game.DefaultTrickDelay)
	if engine.TrickDelay <= 0 {
		log.Warn("DUEL_TRICK_DELAY disabled, resolve tricks with 'next'")
	}
	peer := replication.NewPeer(*room, engine, conn, log)
	defer peer.Close()

	if config.GetEnv("REDIS_ADDR", "") != "" {
		if err := cache.ConnectRedis(); err != nil {
			log.WithError(err).Warn("action log disabled")
		} else {
			defer cache.Rdb.Close()
			recorder := cache.NewRecorder(cache.Rdb, log)
			defer recorder.Close()
			peer.Recorder = recorder
		}
	}

	theme := client.ColorTheme()
	out := os.Stdout
	peer.OnState = func(state models.GameState, change game.Change) {
		if role := peer.Role(); role != "" {
			fmt.Fprint(out, client.RenderWith(state, role, theme))
		}
	}
	peer.OnError = func(msg string) {
		fmt.Fprintf(out, "relay: %s\n", msg)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := conn.Run(gctx, seatHandler{peer: peer, out: out}); err != nil {
			return err
		}
		// stops the input loop too
		return errRelayClosed
	})
	g.Go(func() error {
		return readCommands(gctx, peer, conn, os.Stdin, out, theme)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errQuit) && !errors.Is(err, errRelayClosed) && !errors.Is(err, context.Canceled) {
		log.WithError(err).Error("duel ended")
		os.Exit(1)
	}
}

var (
	errQuit        = errors.New("quit")
	errRelayClosed = errors.New("relay closed the connection")
)

// readCommands runs the input loop. Stdin is read on its own goroutine since
// it cannot be interrupted by ctx.
func readCommands(ctx context.Context, peer *replication.Peer, conn *client.Conn, in io.Reader, out io.Writer, theme client.Theme) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	fmt.Fprintln(out, client.Usage)
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return errQuit
			}
			role := peer.Role()
			cmd, err := client.ParseCommand(line, role)
			if errors.Is(err, client.ErrEmptyCommand) {
				continue
			}
			if err != nil {
				fmt.Fprintln(out, err)
				continue
			}
			switch cmd.Kind {
			case client.CmdQuit:
				return errQuit
			case client.CmdHelp:
				fmt.Fprintln(out, client.Usage)
			case client.CmdShow:
				if role == "" {
					fmt.Fprintln(out, "waiting for a seat")
					continue
				}
				fmt.Fprint(out, client.RenderWith(peer.State(), role, theme))
			case client.CmdSync:
				if err := peer.RequestSync(ctx); err != nil {
					fmt.Fprintln(out, err)
				}
			case client.CmdNext:
				if !peer.ResolveTrick() {
					fmt.Fprintln(out, "no complete trick on the table")
				}
			case client.CmdPing:
				if err := conn.Ping(ctx); err != nil {
					fmt.Fprintln(out, err)
				}
			case client.CmdAction:
				if err := peer.Act(ctx, cmd.Action); err != nil {
					fmt.Fprintln(out, err)
				}
			}
		}
	}
}
