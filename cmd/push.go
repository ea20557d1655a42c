////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// The push subcommand manages this device's push subscription and replays
// notification clicks.

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"
	"github.com/spf13/viper"

	"gitlab.com/elixxir/carechat/event"
	"gitlab.com/elixxir/carechat/push"
	"gitlab.com/elixxir/carechat/store"
)

// clickWait bounds how long a click waits for its open command.
const clickWait = 2 * time.Second

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Manage the push subscription of this device",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		client := initClient()
		bridge := initBridge(client, false)
		if s, ok := bridge.Subscription(); ok {
			fmt.Printf("Subscribed at %s\n", s.Endpoint)
		} else {
			fmt.Println("Not subscribed")
		}
	},
}

var pushSubscribeCmd = &cobra.Command{
	Use:   "subscribe",
	Short: "Subscribe this device, or re-send its stored subscription",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signalContext()
		defer cancel()

		client := initClient()
		bridge := initBridge(client,
			confirm("Allow CareChat to show notifications?"))
		if !bridge.Init(ctx) {
			fmt.Println("Push is unavailable")
			os.Exit(1)
		}
		state, err := bridge.Subscribe(ctx)
		if err != nil {
			exitWithError(err)
		}
		s, _ := bridge.Subscription()
		fmt.Printf("%s at %s\n", state, s.Endpoint)
	},
}

var pushUnsubscribeCmd = &cobra.Command{
	Use:   "unsubscribe",
	Short: "Remove this device's subscription",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signalContext()
		defer cancel()

		bridge := initBridge(initClient(), false)
		if err := bridge.Unsubscribe(ctx); err != nil {
			exitWithError(err)
		}
		fmt.Println(bridge.State())
	},
}

var pushClickCmd = &cobra.Command{
	Use:   "click PAYLOAD",
	Short: "Handle a click on a notification carrying PAYLOAD",
	Long: "Handle a click on a notification carrying PAYLOAD, either the " +
		"JSON push payload or plain text. With --window the conversation " +
		"is opened in this process; otherwise the deep link is printed.",
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signalContext()
		defer cancel()

		p, err := push.ParsePayload([]byte(args[0]))
		if err != nil {
			exitWithError(err)
		}
		fmt.Printf("%s: %s\n", p.Title, p.Body)

		bus := event.NewBus()
		opened := make(chan string, 1)
		if err = bus.Subscribe("pushClick", func(c event.Command) {
			if c.Kind == event.OpenConversation {
				opened <- c.ConversationID
			}
		}); err != nil {
			jww.FATAL.Panicf("%+v", err)
		}
		bus.Start()
		defer func() {
			if err := bus.Stop(clickWait); err != nil {
				jww.WARN.Printf("%+v", err)
			}
		}()

		host := cliHost{window: viper.GetBool(windowFlag)}
		err = push.HandleClick(p, viper.GetString(actionFlag), host, bus)
		if err != nil {
			exitWithError(err)
		}
		if !host.window || p.ConversationID == "" ||
			viper.GetString(actionFlag) == push.ActionDismiss {
			return
		}

		select {
		case id := <-opened:
			client := initClient()
			engine := initEngine(client, nil, nil)
			if err = engine.Thread().Open(ctx, id); err != nil {
				exitWithError(err)
			}
			printThread(initFormatter(), engine.State().ThreadView(),
				client.Session().UserID)
		case <-time.After(clickWait):
			jww.WARN.Print("[Push] Open command was not delivered")
		case <-ctx.Done():
		}
	},
}

// initBridge builds the push bridge for the signed-in user over the local
// state store. granted answers the device permission prompt.
func initBridge(client *store.Client, granted bool) *push.Bridge {
	platform := push.LocalPlatform{
		EndpointBase: viper.GetString(endpointBaseFlag),
		Granted:      granted,
	}
	return push.NewBridge(client, platform, initKV(),
		client.Session().UserID, viper.GetString(deviceInfoFlag))
}

// cliHost stands in for the application shell. window says whether an app
// window is already open.
type cliHost struct {
	window bool
}

func (h cliHost) FocusWindow() bool {
	return h.window
}

func (h cliHost) OpenWindow(path string) error {
	fmt.Printf("Open %s\n", path)
	return nil
}

func init() {
	pushCmd.PersistentFlags().String(deviceInfoFlag, "carechat-cli",
		"Description of this device sent with the subscription")
	bindPersistentFlagHelper(deviceInfoFlag, pushCmd)

	pushCmd.PersistentFlags().String(endpointBaseFlag,
		"https://push.localhost/carechat",
		"Base URL of subscription endpoints created by this device")
	bindPersistentFlagHelper(endpointBaseFlag, pushCmd)

	pushClickCmd.Flags().String(actionFlag, push.ActionOpen,
		"Action clicked: open or dismiss")
	bindFlagHelper(actionFlag, pushClickCmd)

	pushClickCmd.Flags().Bool(windowFlag, false,
		"Whether an app window is already open")
	bindFlagHelper(windowFlag, pushClickCmd)

	pushCmd.AddCommand(pushSubscribeCmd, pushUnsubscribeCmd, pushClickCmd)
	rootCmd.AddCommand(pushCmd)
}
