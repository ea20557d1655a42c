////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// The conversation subcommands list, watch, read and write conversations.

package cmd

import (
	"context"
	"fmt"
	"sync"

	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"
	"github.com/spf13/viper"

	"gitlab.com/elixxir/carechat/attachments"
	"gitlab.com/elixxir/carechat/chatsync"
	"gitlab.com/elixxir/carechat/conversation"
	"gitlab.com/elixxir/carechat/display"
	"gitlab.com/elixxir/carechat/event"
	"gitlab.com/elixxir/carechat/store"
)

// conversationsCmd lists the viewer's conversations once.
var conversationsCmd = &cobra.Command{
	Use:   "conversations",
	Short: "List conversations, newest activity first",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signalContext()
		defer cancel()

		client := initClient()
		engine := initEngine(client, nil, nil)
		if err := engine.RefreshList(ctx); err != nil {
			exitWithError(err)
		}
		printList(initFormatter(), engine.State().ListView())
	},
}

// watchCmd runs the sync engine until interrupted, printing every change.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll conversations and the open thread until interrupted",
	Long: "Poll conversations and the open thread until interrupted. " +
		"SIGUSR1 hides the view, pausing polling, and SIGUSR2 shows it again.",
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signalContext()
		defer cancel()

		client := initClient()
		visibility := chatsync.NewVisibility(true)
		printer := &viewPrinter{
			formatter: initFormatter(),
			viewerID:  client.Session().UserID,
		}
		engine := initEngine(client, printer, visibility)

		bus := event.NewBus()
		if err := bus.Subscribe("watchReports", func(c event.Command) {
			if c.Kind == event.Report {
				jww.INFO.Printf("[Watch] %s", c)
			}
		}); err != nil {
			jww.FATAL.Panicf("%+v", err)
		}
		if err := engine.Attach(bus); err != nil {
			jww.FATAL.Panicf("%+v", err)
		}
		bus.Start()

		stopSignals := watchVisibility(visibility)
		defer stopSignals()

		if err := engine.Start(); err != nil {
			jww.FATAL.Panicf("%+v", err)
		}
		if id := viper.GetString(openFlag); id != "" {
			bus.Post(event.Command{
				Kind:           event.OpenConversation,
				ConversationID: id,
				Source:         "cli",
			})
		}

		<-ctx.Done()
		fmt.Println("Stopping...")
		if err := engine.Stop(); err != nil {
			jww.ERROR.Printf("%+v", err)
		}
		if err := bus.Stop(chatsync.GetDefaultParams().StopTimeout); err != nil {
			jww.ERROR.Printf("%+v", err)
		}
	},
}

// threadCmd prints one conversation, optionally with earlier pages.
var threadCmd = &cobra.Command{
	Use:   "thread CONVERSATION_ID",
	Short: "Print a conversation's messages",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signalContext()
		defer cancel()

		client := initClient()
		engine := initEngine(client, nil, nil)
		thread := engine.Thread()
		if err := thread.Open(ctx, requireArg(args, "conversation ID")); err != nil {
			exitWithError(err)
		}

		for i := 0; i < viper.GetInt(earlierFlag); i++ {
			more, err := thread.LoadEarlier(ctx)
			if err != nil {
				exitWithError(err)
			}
			if !more {
				break
			}
		}
		printThread(initFormatter(), engine.State().ThreadView(),
			client.Session().UserID)
	},
}

// sendCmd sends a message, with any attached files, to a conversation.
var sendCmd = &cobra.Command{
	Use:   "send CONVERSATION_ID",
	Short: "Send a message with optional attachments",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signalContext()
		defer cancel()

		client := initClient()
		previewer := attachments.NewThumbnailPreviewer()
		engine := initEngine(client, nil, nil, previewer)
		thread := engine.Thread()
		if err := thread.Open(ctx, requireArg(args, "conversation ID")); err != nil {
			exitWithError(err)
		}

		files := make([]attachments.File, 0)
		for _, path := range viper.GetStringSlice(attachFlag) {
			f, err := attachments.FromPath(path)
			if err != nil {
				exitWithError(err)
			}
			files = append(files, f)
		}
		for _, err := range thread.Attachments().AddFiles(files) {
			fmt.Println("Skipped:", err)
		}
		for _, s := range thread.Attachments().Files() {
			fmt.Printf("Attaching %s (%s, %s)\n", s.File.Name, s.Category,
				attachments.FormatSize(s.File.Size))
		}

		msg, err := sendStaged(ctx, thread, viper.GetString(messageFlag))
		if err != nil {
			exitWithError(err)
		}
		fmt.Printf("Sent %s\n", msg.ID)
		printThread(initFormatter(), engine.State().ThreadView(),
			client.Session().UserID)
	},
}

// deleteMessageCmd soft-deletes one message of a conversation.
var deleteMessageCmd = &cobra.Command{
	Use:   "delete-message CONVERSATION_ID MESSAGE_ID",
	Short: "Delete a message (staff only)",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signalContext()
		defer cancel()

		convID := requireArgAt(args, 0, "conversation ID")
		messageID := requireArgAt(args, 1, "message ID")

		client := initClient()
		engine := initEngine(client, nil, nil)
		thread := engine.Thread()
		if err := thread.Open(ctx, convID); err != nil {
			exitWithError(err)
		}
		if !confirm(fmt.Sprintf("Delete message %s?", messageID)) {
			fmt.Println("Cancelled")
			return
		}
		if err := thread.DeleteMessage(ctx, messageID); err != nil {
			exitWithError(err)
		}
		printThread(initFormatter(), engine.State().ThreadView(),
			client.Session().UserID)
	},
}

// sendStaged sends content with the staged files. A failed send drops the
// staged files and releases their previews.
func sendStaged(ctx context.Context, thread *chatsync.Thread,
	content string) (conversation.Message, error) {
	msg, err := thread.Send(ctx, content)
	if err != nil {
		thread.Attachments().Clear()
	}
	return msg, err
}

// initEngine builds a sync engine over client from the poll flags and the
// conversation filter. A previewer may be given for staged images.
func initEngine(client *store.Client, listener chatsync.Listener,
	visibility *chatsync.Visibility,
	previewer ...attachments.Previewer) *chatsync.Engine {
	params := chatsync.GetDefaultParams()
	if p := viper.GetDuration(listPeriodFlag); p > 0 {
		params.ListPeriod = p
	}
	if p := viper.GetDuration(threadPeriodFlag); p > 0 {
		params.ThreadPeriod = p
	}

	var pv attachments.Previewer
	if len(previewer) > 0 {
		pv = previewer[0]
	}

	engine := chatsync.NewEngine(client,
		chatsync.ViewerFromSession(client.Session()), params, listener,
		visibility, pv)

	filter, err := chatsync.ParseFilter(viper.GetString(filterFlag))
	if err != nil {
		exitWithError(err)
	}
	engine.SetFilter(filter)
	return engine
}

// viewPrinter prints list and thread updates as they are applied.
type viewPrinter struct {
	formatter *display.Formatter
	viewerID  string
	mux       sync.Mutex
}

func (vp *viewPrinter) ListUpdated(v chatsync.ListView) {
	vp.mux.Lock()
	defer vp.mux.Unlock()
	printList(vp.formatter, v)
}

func (vp *viewPrinter) ThreadUpdated(v chatsync.ThreadView) {
	vp.mux.Lock()
	defer vp.mux.Unlock()
	if v.Sending || v.LoadingEarlier {
		return
	}
	printThread(vp.formatter, v, vp.viewerID)
}

func init() {
	conversationsCmd.PersistentFlags().String(filterFlag, "all",
		"Conversation filter: all, direct, groups, unread or incidents")
	bindPersistentFlagHelper(filterFlag, conversationsCmd)

	conversationsCmd.PersistentFlags().Duration(listPeriodFlag, 0,
		"Interval between conversation list polls (0 uses the default)")
	bindPersistentFlagHelper(listPeriodFlag, conversationsCmd)

	conversationsCmd.PersistentFlags().Duration(threadPeriodFlag, 0,
		"Interval between open thread polls (0 uses the default)")
	bindPersistentFlagHelper(threadPeriodFlag, conversationsCmd)

	watchCmd.Flags().String(openFlag, "",
		"Conversation to open once polling starts")
	bindFlagHelper(openFlag, watchCmd)

	threadCmd.Flags().Int(earlierFlag, 0,
		"Number of earlier pages to load before printing")
	bindFlagHelper(earlierFlag, threadCmd)

	sendCmd.Flags().StringP(messageFlag, "m", "", "Message text")
	bindFlagHelper(messageFlag, sendCmd)

	sendCmd.Flags().StringSlice(attachFlag, nil,
		"Files to attach, repeatable")
	bindFlagHelper(attachFlag, sendCmd)

	conversationsCmd.AddCommand(watchCmd, threadCmd, sendCmd, deleteMessageCmd)
	rootCmd.AddCommand(conversationsCmd)
}
