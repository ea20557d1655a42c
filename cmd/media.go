////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"gitlab.com/elixxir/carechat/attachments"
)

// mediaCmd lists every attachment shared in a client's group chats.
var mediaCmd = &cobra.Command{
	Use:   "media CLIENT_ID",
	Short: "List the attachments shared in a client's conversations",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signalContext()
		defer cancel()

		client := initClient()
		items, total, err := client.ClientMedia(ctx,
			requireArg(args, "client ID"))
		if err != nil {
			exitWithError(err)
		}

		f := initFormatter()
		fmt.Printf("%d of %d items\n", len(items), total)
		for _, item := range items {
			fmt.Printf("%-10s %-9s %-32s %8s  %s by %s\n", item.ConversationID,
				item.Category, item.Filename,
				attachments.FormatSize(item.FileSize),
				f.DateLabel(item.CreatedAt), item.SenderName)
		}
	},
}

func init() {
	rootCmd.AddCommand(mediaCmd)
}
