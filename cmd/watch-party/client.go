package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cwrk-planet/watch-party/internal/protocol"
	"github.com/cwrk-planet/watch-party/internal/syncengine"
	"github.com/cwrk-planet/watch-party/internal/transport/wsclient"
)

var clientOpts struct {
	url   string
	room  string
	user  string
	name  string
	token string
}

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Join a room from the terminal with a headless player",
	Long: `Commands: /load <url>, /play, /pause, /seek <seconds>, /state, /quit.
Any other line is sent as a chat message.`,
	RunE: runClient,
}

func init() {
	f := clientCmd.Flags()
	f.StringVar(&clientOpts.url, "url", "ws://localhost:8080/ws", "relay WebSocket endpoint")
	f.StringVar(&clientOpts.room, "room", "", "room id to join")
	f.StringVar(&clientOpts.user, "user", "", "user id (random when empty)")
	f.StringVar(&clientOpts.name, "name", "", "display name")
	f.StringVar(&clientOpts.token, "token", "", "bearer token sent with the upgrade request")
	_ = clientCmd.MarkFlagRequired("room")
}

func runClient(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if clientOpts.user == "" {
		clientOpts.user = uuid.NewString()
	}
	var header http.Header
	if clientOpts.token != "" {
		header = http.Header{"Authorization": {"Bearer " + clientOpts.token}}
	}

	conn, err := wsclient.Dial(ctx, clientOpts.url, header)
	if err != nil {
		return err
	}
	defer conn.Close()

	out := cmd.OutOrStdout()
	clock := syncengine.RealClock()
	player := syncengine.NewVirtualPlayer(clock)
	engine := syncengine.New(syncengine.Config{
		RoomID:         clientOpts.room,
		UserID:         clientOpts.user,
		UserName:       clientOpts.name,
		DriftTolerance: cfg.Sync.DriftTolerance,
		SettleWindow:   cfg.Sync.SettleWindow,
	}, player, conn, clock, syncengine.Hooks{
		StateChanged: func(s syncengine.State) { fmt.Fprintf(out, "* player %s\n", s) },
		Chat: func(c syncengine.ChatEntry) {
			who := c.UserName
			if who == "" {
				who = c.UserID
			}
			fmt.Fprintf(out, "[%s] %s: %s\n", c.CreatedAt.Local().Format("15:04"), who, c.Content)
		},
		Presence: func(ms []protocol.Member) { fmt.Fprintf(out, "* %d in room\n", len(ms)) },
		Notice:   func(msg string) { fmt.Fprintf(out, "! %s\n", msg) },
	})
	player.Observe(engine)

	runErr := make(chan error, 1)
	go func() { runErr <- conn.Run(ctx, engine.HandleFrame) }()

	if err := engine.Join(); err != nil {
		return fmt.Errorf("join: %w", err)
	}

	lines := make(chan string)
	go readLines(cmd.InOrStdin(), lines)

	for {
		select {
		case err := <-runErr:
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit, err := clientCommand(engine, out, line)
			if err != nil {
				fmt.Fprintf(out, "! %v\n", err)
			}
			if quit {
				return nil
			}
		}
	}
}

func readLines(r io.Reader, out chan<- string) {
	defer close(out)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			out <- line
		}
	}
	if err := sc.Err(); err != nil {
		slog.Debug("client: stdin", "err", err)
	}
}

func clientCommand(e *syncengine.Engine, out io.Writer, line string) (quit bool, err error) {
	if !strings.HasPrefix(line, "/") {
		return false, e.SendChat(line)
	}
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/quit", "/exit":
		return true, nil
	case "/load":
		url, err := e.SubmitURL(arg)
		if err == nil {
			fmt.Fprintf(out, "* loading %s\n", url)
		}
		return false, err
	case "/play":
		return false, e.Play()
	case "/pause":
		return false, e.Pause()
	case "/seek":
		secs, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return false, fmt.Errorf("seek: %w", err)
		}
		return false, e.Seek(secs)
	case "/state":
		s := e.Snapshot()
		src := "generic"
		if s.Source != nil {
			src = string(s.Source.Kind)
		}
		fmt.Fprintf(out, "* %s %s (%s) playing=%t at %.1fs, %d members\n",
			s.State, s.URL, src, s.IsPlaying, s.LastKnownTimestamp, len(s.Members))
		return false, nil
	default:
		return false, fmt.Errorf("unknown command %s", name)
	}
}
