////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package cmd

import (
	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"
	"github.com/spf13/viper"
)

// This is a comprehensive list of CLI flag name constants. Organized by
// subcommand, with root level CLI flags at the top of the list. Pulling flags
// using Viper should use the constants defined here.
const (
	//////////////// Root flags ///////////////////////////////////////////////

	// Log flags
	logLevelFlag = "logLevel"
	logFlag      = "log"

	// Backend and session
	configFlag   = "config"
	envFileFlag  = "env-file"
	apiURLFlag   = "api-url"
	tokenFlag    = "token"
	timeoutFlag  = "timeout"
	rateFlag     = "rate"
	timezoneFlag = "timezone"

	// Local storage
	storageFlag  = "storage"
	passwordFlag = "password"

	// Misc
	yesFlag        = "yes"
	profileCpuFlag = "profile-cpu"

	///////////////// Conversation subcommand flags ///////////////////////////
	filterFlag       = "filter"
	listPeriodFlag   = "list-period"
	threadPeriodFlag = "thread-period"
	openFlag         = "open"
	earlierFlag      = "earlier"
	messageFlag      = "message"
	attachFlag       = "attach"

	///////////////// Membership subcommand flags /////////////////////////////
	userIDFlag   = "user-id"
	userNameFlag = "user-name"
	userTypeFlag = "user-type"

	///////////////// Create subcommand flags /////////////////////////////////
	clientIDFlag   = "client-id"
	clientNameFlag = "client-name"
	memberIDsFlag  = "member-ids"
	workerIDFlag   = "worker-id"
	workerNameFlag = "worker-name"

	///////////////// Push subcommand flags ///////////////////////////////////
	deviceInfoFlag   = "device-info"
	endpointBaseFlag = "endpoint-base"
	actionFlag       = "action"
	windowFlag       = "window"

	///////////////// Cache subcommand flags //////////////////////////////////
	originFlag       = "origin"
	cacheVersionFlag = "cache-version"
)

// bindFlagHelper binds the key to a pflag.Flag used by Cobra and prints an
// error if one occurs.
func bindFlagHelper(key string, command *cobra.Command) {
	err := viper.BindPFlag(key, command.Flags().Lookup(key))
	if err != nil {
		jww.ERROR.Printf("viper.BindPFlag failed for %q: %+v", key, err)
	}
}

// bindPersistentFlagHelper binds the key to a persistent pflag.Flag used by
// Cobra and prints an error if one occurs.
func bindPersistentFlagHelper(key string, command *cobra.Command) {
	err := viper.BindPFlag(key, command.PersistentFlags().Lookup(key))
	if err != nil {
		jww.ERROR.Printf("viper.BindPFlag failed for %q: %+v", key, err)
	}
}
