package cli

import (
	"encoding/json"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/dolsel/livetv/pkg/store"
)

func init() {
	inspectCmd.Flags().Uint64("message", 0, "print one message by id")
	rootCmd.AddCommand(inspectCmd)
}

var inspectCmd = &cobra.Command{
	Use:   "inspect [database-path]",
	Short: "Print row counts or a single message from a stopped database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := store.Open(args[0], store.Options{NoSync: true})
		if err != nil {
			return err
		}
		defer db.Close()

		out := cmd.OutOrStdout()
		if id, _ := cmd.Flags().GetUint64("message"); id != 0 {
			env, err := db.GetMessage(id)
			if err != nil {
				return err
			}
			b, _ := json.MarshalIndent(env, "", "  ")
			fmt.Fprintln(out, string(b))
			return nil
		}

		st, err := db.Stats()
		if err != nil {
			return err
		}
		m := db.Metrics()
		fmt.Fprintf(out, "channel messages: %s\n", humanize.Comma(int64(st.ChannelMessages)))
		fmt.Fprintf(out, "private messages: %s (%s unread)\n", humanize.Comma(int64(st.PrivateMessages)), humanize.Comma(int64(st.UnreadMessages)))
		fmt.Fprintf(out, "activity records: %s\n", humanize.Comma(int64(st.ActivityRecords)))
		fmt.Fprintf(out, "users: %d, channels: %d\n", st.Users, st.Channels)
		fmt.Fprintf(out, "last id: %d\n", st.LastID)
		fmt.Fprintf(out, "disk usage: %s\n", humanize.IBytes(m.DiskSpaceUsage()))
		return nil
	},
}
