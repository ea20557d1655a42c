////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// The members subcommand lists and edits group conversation membership.

package cmd

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"gitlab.com/elixxir/carechat/membership"
	"gitlab.com/elixxir/carechat/store"
)

var membersCmd = &cobra.Command{
	Use:   "members CONVERSATION_ID",
	Short: "List the current and former members of a conversation",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signalContext()
		defer cancel()

		m := initManager(initClient())
		r, err := m.ListMembers(ctx, requireArg(args, "conversation ID"))
		if err != nil {
			exitWithError(err)
		}
		printRoster(r)
	},
}

var membersAddCmd = &cobra.Command{
	Use:   "add CONVERSATION_ID",
	Short: "Add a user to a group conversation (staff only)",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signalContext()
		defer cancel()

		client := initClient()
		m := initManager(client)
		c := fetchConversation(ctx, client, requireArg(args, "conversation ID"))
		r, err := m.AddMember(ctx, c, membership.UserRef{
			ID:   viper.GetString(userIDFlag),
			Name: viper.GetString(userNameFlag),
			Type: viper.GetString(userTypeFlag),
		})
		if err != nil {
			exitWithError(err)
		}
		printRoster(r)
	},
}

var membersRemoveCmd = &cobra.Command{
	Use:   "remove CONVERSATION_ID USER_ID",
	Short: "Remove a member from a group conversation (staff only)",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signalContext()
		defer cancel()

		client := initClient()
		m := initManager(client)
		convID := requireArgAt(args, 0, "conversation ID")
		userID := requireArgAt(args, 1, "user ID")
		c := fetchConversation(ctx, client, convID)
		if _, err := m.ListMembers(ctx, c.ID); err != nil {
			exitWithError(err)
		}
		r, err := m.RemoveMember(ctx, c, userID,
			membership.ConfirmFunc(confirm))
		if errors.Is(err, membership.ErrNotConfirmed) {
			fmt.Println("Cancelled")
			return
		} else if err != nil {
			exitWithError(err)
		}
		printRoster(r)
	},
}

func initManager(client *store.Client) *membership.Manager {
	return membership.NewManager(client, client.Session().Role)
}

func printRoster(r membership.Roster) {
	fmt.Printf("%d members\n", r.Len())
	for _, m := range r.Active {
		fmt.Printf("  %-12s %-24s %-10s %s\n", m.UserID, m.UserName,
			m.UserType, m.Role)
	}
	if len(r.Former) == 0 {
		return
	}
	fmt.Println("Former members")
	for _, m := range r.Former {
		fmt.Printf("  %-12s %-24s %s\n", m.UserID, m.UserName,
			m.RemovedReason)
	}
}

func init() {
	membersAddCmd.Flags().String(userIDFlag, "", "ID of the user to add")
	bindFlagHelper(userIDFlag, membersAddCmd)

	membersAddCmd.Flags().String(userNameFlag, "", "Name of the user to add")
	bindFlagHelper(userNameFlag, membersAddCmd)

	membersAddCmd.Flags().String(userTypeFlag, "worker",
		"Type of the user to add, for example worker or client")
	bindFlagHelper(userTypeFlag, membersAddCmd)

	membersCmd.AddCommand(membersAddCmd, membersRemoveCmd)
	rootCmd.AddCommand(membersCmd)
}
