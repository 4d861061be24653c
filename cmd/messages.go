package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/parley/internal/chat"
	"github.com/jon4hz/parley/internal/scheduler"
	"github.com/jon4hz/parley/internal/session"
	"github.com/jon4hz/parley/web/templates/components"
	"github.com/spf13/cobra"
)

var messagesCmdFlags struct {
	Follow bool
}

var messagesCmd = &cobra.Command{
	Use:   "messages <user>",
	Short: "Show the conversation with a user",
	Long:  `Show the conversation with a user, given by id or username. With --follow, new messages are printed as they arrive.`,
	Example: `parley messages bob
parley messages 3 --follow`,
	Args: cobra.ExactArgs(1),
	RunE: showMessages,
}

var sendCmd = &cobra.Command{
	Use:     "send <user> <text...>",
	Short:   "Send a message to a user",
	Example: `parley send bob "are you there?"`,
	Args:    cobra.MinimumNArgs(2),
	RunE:    sendMessage,
}

func init() {
	messagesCmd.Flags().BoolVarP(&messagesCmdFlags.Follow, "follow", "f", false, "Keep polling for new messages")
	rootCmd.AddCommand(messagesCmd, sendCmd)
}

func showMessages(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a := openApp(ctx)
	defer a.Close()

	if err := a.authorize(session.AccessAuthenticated); err != nil {
		return err
	}

	peer, err := a.findPeer(ctx, args[0])
	if err != nil {
		return err
	}
	conv := chat.NewConversation(a.client, a.session, peer)

	if _, err := conv.Load(ctx); err != nil {
		return fmt.Errorf("failed to load messages: %w", err)
	}
	printed := printLines(cmd.OutOrStdout(), conv.Lines(), 0)

	if !messagesCmdFlags.Follow {
		return nil
	}
	return follow(ctx, a, conv, cmd.OutOrStdout(), printed)
}

// follow refreshes the conversation every refresh interval and prints new
// lines until ctx is cancelled.
func follow(ctx context.Context, a *app, conv *chat.Conversation, out io.Writer, printed int) error {
	sched, err := scheduler.New(ctx)
	if err != nil {
		return err
	}

	err = sched.AddSingletonJob("follow-conversation", "Follow conversation", a.cfg.Refresh.Interval, func(ctx context.Context) error {
		if _, err := conv.Refresh(ctx); err != nil {
			if errors.Is(err, chat.ErrStale) {
				return nil
			}
			return err
		}
		printed = printLines(out, conv.Lines(), printed)
		return nil
	}, false)
	if err != nil {
		return err
	}

	log.Debug("following conversation", "peer", conv.Peer().Username, "interval", a.cfg.Refresh.Interval)
	sched.Start()
	<-ctx.Done()
	return sched.Stop()
}

// printLines prints the lines after the first skip and returns the number
// of lines printed so far.
func printLines(out io.Writer, lines []chat.Line, skip int) int {
	if skip > len(lines) {
		// history shrank, e.g. after the peer was removed
		skip = 0
	}
	for _, l := range lines[skip:] {
		if at := components.FormatRelativeTime(l.At); at != "" {
			fmt.Fprintf(out, "[%s] ", at)
		}
		fmt.Fprintf(out, "%s: %s\n", l.Sender, l.Content)
	}
	return len(lines)
}

func sendMessage(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a := openApp(ctx)
	defer a.Close()

	if err := a.authorize(session.AccessAuthenticated); err != nil {
		return err
	}

	peer, err := a.findPeer(ctx, args[0])
	if err != nil {
		return err
	}

	conv := chat.NewConversation(a.client, a.session, peer)
	if err := conv.Send(ctx, strings.Join(args[1:], " ")); err != nil {
		return err
	}

	lines := conv.Lines()
	printLines(cmd.OutOrStdout(), lines, max(len(lines)-1, 0))
	return nil
}
