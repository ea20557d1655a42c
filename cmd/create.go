////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// The group and office subcommands start new conversations.

package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var groupCmd = &cobra.Command{
	Use:   "group",
	Short: "Create a client group conversation and print it",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signalContext()
		defer cancel()

		client := initClient()
		engine := initEngine(client, nil, nil)
		_, err := engine.CreateGroup(ctx, viper.GetString(clientIDFlag),
			viper.GetString(clientNameFlag),
			viper.GetStringSlice(memberIDsFlag))
		if err != nil {
			exitWithError(err)
		}
		printThread(initFormatter(), engine.State().ThreadView(),
			client.Session().UserID)
	},
}

var officeCmd = &cobra.Command{
	Use:   "office",
	Short: "Open the direct conversation between a worker and the office",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signalContext()
		defer cancel()

		client := initClient()
		session := client.Session()
		workerID := viper.GetString(workerIDFlag)
		workerName := viper.GetString(workerNameFlag)
		if workerID == "" {
			workerID, workerName = session.UserID, session.Name
		}

		engine := initEngine(client, nil, nil)
		_, err := engine.MessageOffice(ctx, workerID, workerName)
		if err != nil {
			exitWithError(err)
		}
		printThread(initFormatter(), engine.State().ThreadView(),
			session.UserID)
	},
}

func init() {
	groupCmd.Flags().String(clientIDFlag, "", "ID of the client")
	bindFlagHelper(clientIDFlag, groupCmd)

	groupCmd.Flags().String(clientNameFlag, "", "Name of the client")
	bindFlagHelper(clientNameFlag, groupCmd)

	groupCmd.Flags().StringSlice(memberIDsFlag, nil,
		"IDs of the initial members")
	bindFlagHelper(memberIDsFlag, groupCmd)

	officeCmd.Flags().String(workerIDFlag, "",
		"ID of the worker (defaults to the signed in user)")
	bindFlagHelper(workerIDFlag, officeCmd)

	officeCmd.Flags().String(workerNameFlag, "", "Name of the worker")
	bindFlagHelper(workerNameFlag, officeCmd)

	rootCmd.AddCommand(groupCmd, officeCmd)
}
