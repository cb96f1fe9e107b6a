package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"timetrack-go/internal/protocol"
)

var subscribeCmd = &cobra.Command{
	Use:   "subscribe",
	Short: "Print every state broadcast until interrupted",
	RunE:  runSubscribe,
}

func init() {
	subscribeCmd.Flags().BoolVar(&pretty, "pretty", false, "Render each state as a table")
}

func runSubscribe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	msgs, err := newClient(cfg).Subscribe(ctx)
	if err != nil {
		return err
	}
	codec := protocol.NewSonicCodec()
	for msg := range msgs {
		if !pretty {
			fmt.Println(string(msg))
			continue
		}
		state, err := protocol.DecodeState(codec, msg)
		if err != nil {
			fmt.Fprintln(os.Stderr, "skipping malformed broadcast:", err)
			continue
		}
		fmt.Println(renderState(state))
	}
	return nil
}
