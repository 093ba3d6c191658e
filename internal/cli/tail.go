package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dolsel/livetv/pkg/config"
	"github.com/dolsel/livetv/pkg/models"
	"github.com/dolsel/livetv/pkg/poller"
)

func init() {
	f := tailCmd.Flags()
	f.String("server", "http://127.0.0.1:8080", "chatd base URL")
	f.String("key", "", "API key sent as a bearer token")
	f.String("channel", "", "channel to follow")
	f.String("user", "", "user whose thread to follow")
	f.String("peer", "", "other party of the followed thread")
	f.Int("limit", 0, "window size (server default when 0)")
	rootCmd.AddCommand(tailCmd)
}

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Follow a channel or a private thread by polling",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		server, _ := f.GetString("server")
		key, _ := f.GetString("key")
		channel, _ := f.GetString("channel")
		user, _ := f.GetString("user")
		peer, _ := f.GetString("peer")
		limit, _ := f.GetInt("limit")

		cfg, _, err := config.LoadFile(configPath(cmd))
		if err != nil {
			return err
		}
		cfg.ApplyDefaults()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		client := poller.NewClient(server, key, 5*time.Second)
		out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()
		onErr := func(err error) { fmt.Fprintf(errOut, "poll error: %v\n", err) }

		switch {
		case channel != "" && user == "":
			p := poller.New(func() ([]models.ChannelMessageView, error) {
				return client.ChannelMessages(channel, limit)
			}, func(m models.ChannelMessageView) uint64 { return m.ID }, poller.ChannelOptions(cfg.Poller))
			return p.Run(ctx, func(m models.ChannelMessageView) { printChannel(out, m) }, onErr)
		case user != "" && peer != "" && channel == "":
			p := poller.New(func() ([]models.PrivateMessageView, error) {
				return client.PrivateThread(user, peer, limit)
			}, func(m models.PrivateMessageView) uint64 { return m.ID }, poller.ThreadOptions(cfg.Poller))
			return p.Run(ctx, func(m models.PrivateMessageView) { printPrivate(out, m) }, onErr)
		default:
			return errors.New("pass either --channel or both --user and --peer")
		}
	},
}

func printChannel(w io.Writer, m models.ChannelMessageView) {
	name := m.Username
	if name == "" {
		name = m.AuthorID
	}
	fmt.Fprintf(w, "%s #%s <%s> %s\n", m.CreatedAt.Format(time.RFC3339), m.ChannelID, name, body(m.Kind, m.Body, m.GiftRef))
}

func printPrivate(w io.Writer, m models.PrivateMessageView) {
	name := m.SenderUsername
	if name == "" {
		name = m.SenderID
	}
	fmt.Fprintf(w, "%s <%s> %s\n", m.CreatedAt.Format(time.RFC3339), name, body(m.Kind, m.Body, m.GiftRef))
}

func body(kind models.Kind, text, gift string) string {
	if kind == models.KindGift {
		return fmt.Sprintf("[gift %s] %s", gift, text)
	}
	return text
}
