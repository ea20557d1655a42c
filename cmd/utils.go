////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"github.com/spf13/viper"
	"gitlab.com/elixxir/ekv"
	"gitlab.com/xx_network/primitives/netTime"

	"gitlab.com/elixxir/carechat/chatsync"
	"gitlab.com/elixxir/carechat/conversation"
	"gitlab.com/elixxir/carechat/display"
	"gitlab.com/elixxir/carechat/store"
)

// initClient builds the backend client for the configured session. A
// missing or expired token is fatal.
func initClient() *store.Client {
	token := viper.GetString(tokenFlag)
	if token == "" {
		jww.FATAL.Panicf("No session token, set --%s or %s_TOKEN",
			tokenFlag, envPrefix)
	}
	session, err := store.NewSession(token)
	if err != nil {
		jww.FATAL.Panicf("%+v", err)
	}
	if session.Expired(netTime.Now()) {
		jww.FATAL.Panicf("Session token expired at %s", session.Expires)
	}

	params := store.GetDefaultParams()
	params.BaseURL = viper.GetString(apiURLFlag)
	if timeout := viper.GetDuration(timeoutFlag); timeout > 0 {
		params.Timeout = timeout
	}
	if rate := viper.GetInt(rateFlag); rate >= 0 {
		params.RequestsPerSecond = rate
	}

	client, err := store.NewClient(params, session, nil)
	if err != nil {
		jww.FATAL.Panicf("%+v", err)
	}
	client.OnUnauthenticated(func(loginURL string) {
		fmt.Printf("Session rejected, sign in again at %s\n", loginURL)
	})

	jww.INFO.Printf("Signed in as %s (%s, %s)", session.Name, session.UserID,
		session.Role)
	return client
}

// initFormatter builds the display formatter in the configured timezone.
func initFormatter() *display.Formatter {
	p := display.GetDefaultParams()
	if tz := viper.GetString(timezoneFlag); tz != "" {
		p.Timezone = tz
	}
	return display.NewFormatter(p)
}

// initKV opens the local state store. Without a storage directory state is
// kept in memory for the run.
func initKV() ekv.KeyValue {
	dir := viper.GetString(storageFlag)
	if dir == "" {
		return ekv.MakeMemstore()
	}
	kv, err := ekv.NewFilestore(dir, viper.GetString(passwordFlag))
	if err != nil {
		jww.FATAL.Panicf("Failed to open local state at %s: %+v", dir, err)
	}
	return kv
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt,
		syscall.SIGTERM)
}

// fetchConversation loads one conversation summary.
func fetchConversation(ctx context.Context, client *store.Client,
	id string) conversation.Conversation {
	d, err := client.GetConversation(ctx, id, time.Time{})
	if err != nil {
		exitWithError(err)
	}
	return d.Conversation
}

// exitWithError prints the server-provided message of err and exits.
func exitWithError(err error) {
	jww.ERROR.Printf("%+v", err)
	switch store.Classify(err) {
	case store.Unauthenticated:
		fmt.Println("Not signed in:", store.ServerMessage(err))
	case store.Forbidden:
		fmt.Println("Not allowed:", store.ServerMessage(err))
	case store.NotFound:
		fmt.Println("Not found:", store.ServerMessage(err))
	default:
		fmt.Println("Error:", store.ServerMessage(err))
	}
	os.Exit(1)
}

// confirm asks a yes/no question on the terminal.
func confirm(prompt string) bool {
	if viper.GetBool(yesFlag) {
		return true
	}
	fmt.Printf("%s [y/N] ", prompt)
	answer, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

// printList prints conversation summaries, one per line.
func printList(f *display.Formatter, v chatsync.ListView) {
	fmt.Printf("%s conversations, %d unread\n", v.Filter, v.Unread)
	for _, s := range f.Summaries(v.Conversations) {
		marker := " "
		if s.Urgent {
			marker = "!"
		}
		unread := ""
		if s.Unread > 0 {
			unread = fmt.Sprintf(" (%d)", s.Unread)
		}
		fmt.Printf("%s %-10s %-30s %8s%s  %s\n", marker, s.ID, s.Title,
			s.Time, unread, s.Preview)
	}
}

// printThread prints the open thread with date separators.
func printThread(f *display.Formatter, v chatsync.ThreadView,
	viewerID string) {
	switch v.Phase {
	case chatsync.NotFound:
		fmt.Printf("Conversation %s was not found\n", v.ConversationID)
		return
	case chatsync.Failed:
		fmt.Printf("Could not load %s: %s\n", v.ConversationID,
			store.ServerMessage(v.Err))
		return
	case chatsync.Idle, chatsync.Loading:
		return
	}

	title := v.Conversation.Title
	if title == "" {
		title = v.ConversationID
	}
	fmt.Printf("== %s ==\n", title)
	if v.HasMore {
		fmt.Println("   (earlier messages available)")
	}
	for _, row := range f.Timeline(v.Messages, viewerID) {
		if row.IsSeparator() {
			fmt.Printf("-- %s --\n", row.Separator)
			continue
		}
		l := row.Line
		text := l.Text
		if l.EmojiOnly {
			text = "[ " + text + " ]"
		}
		fmt.Printf("%8s %-8s %s: %s\n", l.Time, l.Kind, l.Sender, text)
		for _, a := range l.Attachments {
			fmt.Printf("%17s [%s] %s\n", "", a.Category, a.Filename)
		}
	}
}

// requireArg returns the first positional argument or exits.
func requireArg(args []string, what string) string {
	return requireArgAt(args, 0, what)
}

// requireArgAt returns the trimmed positional argument at i or exits.
func requireArgAt(args []string, i int, what string) string {
	arg, err := argAt(args, i, what)
	if err != nil {
		exitWithError(err)
	}
	return arg
}

// argAt returns the trimmed positional argument at i. A missing or blank
// argument is an error.
func argAt(args []string, i int, what string) (string, error) {
	if i < 0 || i >= len(args) || strings.TrimSpace(args[i]) == "" {
		return "", errors.Errorf("missing %s", what)
	}
	return strings.TrimSpace(args[i]), nil
}
