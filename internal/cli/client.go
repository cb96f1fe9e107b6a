package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"timetrack-go/internal/core"
	"timetrack-go/internal/protocol"
)

var pretty bool

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Send one command to the running daemon",
}

// clientCommand 一条 client 子命令与其线上命令的对应关系
type clientCommand struct {
	use   string
	short string
	args  cobra.PositionalArgs
	build func(args []string) (protocol.Command, error)
}

func parseTaskID(s string) (core.TaskID, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("invalid task id %q", s)
	}
	return core.TaskID(id), nil
}

var keepPrevious bool

var clientCommands = []clientCommand{
	{"exit", "Stop the daemon", cobra.NoArgs, func([]string) (protocol.Command, error) {
		return protocol.Exit{}, nil
	}},
	{"push-task NAME...", "Create a task", cobra.MinimumNArgs(1), func(args []string) (protocol.Command, error) {
		return protocol.PushTask{TaskName: strings.Join(args, " ")}, nil
	}},
	{"disable-task ID", "Disable a task", cobra.ExactArgs(1), func(args []string) (protocol.Command, error) {
		id, err := parseTaskID(args[0])
		return protocol.DisableTask{TaskID: id}, err
	}},
	{"switch-task ID", "Start working on a task", cobra.ExactArgs(1), func(args []string) (protocol.Command, error) {
		id, err := parseTaskID(args[0])
		return protocol.SwitchTask{TaskID: id}, err
	}},
	{"current-task", "Print the current task", cobra.NoArgs, func([]string) (protocol.Command, error) {
		return protocol.CurrentTask{}, nil
	}},
	{"list-tasks", "List all tasks as CSV", cobra.NoArgs, func([]string) (protocol.Command, error) {
		return protocol.ListTasks{}, nil
	}},
	{"json-push-task NAME...", "Create a task and print the state", cobra.MinimumNArgs(1), func(args []string) (protocol.Command, error) {
		return protocol.JsonPushTask{TaskName: strings.Join(args, " ")}, nil
	}},
	{"json-disable-task ID", "Disable a task and print the state", cobra.ExactArgs(1), func(args []string) (protocol.Command, error) {
		id, err := parseTaskID(args[0])
		return protocol.JsonDisableTask{TaskID: id}, err
	}},
	{"json-switch-task ID", "Switch task and print the state", cobra.ExactArgs(1), func(args []string) (protocol.Command, error) {
		id, err := parseTaskID(args[0])
		return protocol.JsonSwitchTask{TaskID: id}, err
	}},
	{"json-retro-switch-task ID TIMESTAMP", "Record a switch in the past and print the state", cobra.ExactArgs(2), func(args []string) (protocol.Command, error) {
		id, err := parseTaskID(args[0])
		if err != nil {
			return nil, err
		}
		ts, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid unix timestamp %q", args[1])
		}
		return protocol.JsonRetroSwitchTask{TaskID: id, Timestamp: ts, KeepPreviousTask: keepPrevious}, nil
	}},
	{"json-state", "Print the current state", cobra.NoArgs, func([]string) (protocol.Command, error) {
		return protocol.JsonState{}, nil
	}},
	{"timesheet", "Print the per-day timesheet as CSV", cobra.NoArgs, func([]string) (protocol.Command, error) {
		return protocol.Timesheet{}, nil
	}},
}

func init() {
	clientCmd.PersistentFlags().BoolVar(&pretty, "pretty", false, "Render CSV and JSON replies as tables")

	for _, def := range clientCommands {
		def := def
		c := &cobra.Command{
			Use:   def.use,
			Short: def.short,
			Args:  def.args,
			RunE: func(cmd *cobra.Command, args []string) error {
				pc, err := def.build(args)
				if err != nil {
					return err
				}
				return runClientCommand(cmd.Context(), pc)
			},
		}
		if strings.HasPrefix(def.use, "json-retro-switch-task") {
			c.Flags().BoolVar(&keepPrevious, "keep-previous", false, "Switch back to the current task right away")
		}
		clientCmd.AddCommand(c)
	}
}

func runClientCommand(ctx context.Context, pc protocol.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	reply, err := newClient(cfg).Send(ctx, pc)
	if err != nil {
		return err
	}
	if !reply.OK {
		return fmt.Errorf("daemon replied: %s", reply.Data)
	}

	out, err := formatReply(pc, reply.Data, pretty)
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, strings.TrimRight(out, "\n"))
	return nil
}

// formatReply 非 pretty 模式原样输出；pretty 模式下 CSV 与状态 JSON 渲染为表格
func formatReply(pc protocol.Command, data string, pretty bool) (string, error) {
	if !pretty {
		return data, nil
	}
	switch pc.(type) {
	case protocol.ListTasks, protocol.Timesheet:
		header, rows, err := protocol.ParseCSV(data)
		if err != nil {
			return "", err
		}
		return renderTable(header, rows), nil
	case protocol.JsonPushTask, protocol.JsonDisableTask, protocol.JsonSwitchTask, protocol.JsonRetroSwitchTask, protocol.JsonState:
		state, err := protocol.DecodeState(protocol.NewSonicCodec(), []byte(data))
		if err != nil {
			return "", err
		}
		return renderState(state), nil
	}
	return data, nil
}
