////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package cmd initializes the CLI and config parsers as well as the logger.
package cmd

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/profile"
	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"
	"github.com/spf13/viper"
)

// envPrefix is the prefix of environment variables that set flags, for
// example CARECHAT_TOKEN.
const envPrefix = "CARECHAT"

// profiler is the running CPU profile, if one was requested.
var profiler interface{ Stop() }

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main(). It only needs to happen once
// to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if profiler != nil {
		profiler.Stop()
	}
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "carechat",
	Short: "Care team chat client: conversations, threads, members and push",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initLog(viper.GetUint(logLevelFlag), viper.GetString(logFlag))

		if profileOut := viper.GetString(profileCpuFlag); profileOut != "" {
			profiler = profile.Start(profile.CPUProfile,
				profile.ProfilePath(profileOut), profile.NoShutdownHook)
		}
	},
	SilenceUsage: true,
}

func init() {
	// NOTE: The point of init() is to be declarative. There is one init in
	// each sub command.
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().UintP(logLevelFlag, "v", 0,
		"Verbose mode for debugging")
	bindPersistentFlagHelper(logLevelFlag, rootCmd)

	rootCmd.PersistentFlags().StringP(logFlag, "l", "-",
		"Path to the log output path (- is stdout)")
	bindPersistentFlagHelper(logFlag, rootCmd)

	rootCmd.PersistentFlags().String(configFlag, "",
		"Path to a config file (yaml, json or toml)")
	bindPersistentFlagHelper(configFlag, rootCmd)

	rootCmd.PersistentFlags().String(envFileFlag, ".env",
		"Path to a .env file of CARECHAT_ variables, ignored if missing")
	bindPersistentFlagHelper(envFileFlag, rootCmd)

	rootCmd.PersistentFlags().String(apiURLFlag,
		"http://localhost:3000/api/chat", "Root of the chat API")
	bindPersistentFlagHelper(apiURLFlag, rootCmd)

	rootCmd.PersistentFlags().StringP(tokenFlag, "t", "",
		"Bearer token of the session")
	bindPersistentFlagHelper(tokenFlag, rootCmd)

	rootCmd.PersistentFlags().Duration(timeoutFlag, 0,
		"Per-request timeout (0 uses the default)")
	bindPersistentFlagHelper(timeoutFlag, rootCmd)

	rootCmd.PersistentFlags().Int(rateFlag, -1,
		"Maximum requests per second, 0 for unpaced (-1 uses the default)")
	bindPersistentFlagHelper(rateFlag, rootCmd)

	rootCmd.PersistentFlags().String(timezoneFlag, "",
		"IANA timezone dates are shown in")
	bindPersistentFlagHelper(timezoneFlag, rootCmd)

	rootCmd.PersistentFlags().StringP(storageFlag, "s", "",
		"Directory for local state (push subscription, offline cache); "+
			"empty keeps it in memory")
	bindPersistentFlagHelper(storageFlag, rootCmd)

	rootCmd.PersistentFlags().StringP(passwordFlag, "p", "",
		"Password of the local state directory")
	bindPersistentFlagHelper(passwordFlag, rootCmd)

	rootCmd.PersistentFlags().BoolP(yesFlag, "y", false,
		"Answer yes to confirmation prompts")
	bindPersistentFlagHelper(yesFlag, rootCmd)

	rootCmd.PersistentFlags().String(profileCpuFlag, "",
		"Enable cpu profiling to this directory")
	bindPersistentFlagHelper(profileCpuFlag, rootCmd)
}

// initConfig reads in the .env file, the config file and ENV variables if
// set.
func initConfig() {
	if envFile := viper.GetString(envFileFlag); envFile != "" {
		if err := godotenv.Load(envFile); err != nil &&
			!os.IsNotExist(err) {
			jww.WARN.Printf("Failed to load %s: %+v", envFile, err)
		}
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if cfgFile := viper.GetString(configFlag); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			jww.FATAL.Panicf("Failed to read config %s: %+v", cfgFile, err)
		}
	}
}

func initLog(threshold uint, logPath string) {
	if logPath != "-" && logPath != "" {
		// Disable stdout output
		jww.SetStdoutOutput(io.Discard)
		// Use log file
		logOutput, err := os.OpenFile(logPath,
			os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			panic(err.Error())
		}
		jww.SetLogOutput(logOutput)
	}

	if threshold > 1 {
		jww.INFO.Printf("log level set to: TRACE")
		jww.SetStdoutThreshold(jww.LevelTrace)
		jww.SetLogThreshold(jww.LevelTrace)
		jww.SetFlags(log.LstdFlags | log.Lmicroseconds)
	} else if threshold == 1 {
		jww.INFO.Printf("log level set to: DEBUG")
		jww.SetStdoutThreshold(jww.LevelDebug)
		jww.SetLogThreshold(jww.LevelDebug)
		jww.SetFlags(log.LstdFlags | log.Lmicroseconds)
	} else {
		jww.SetStdoutThreshold(jww.LevelWarn)
		jww.SetLogThreshold(jww.LevelInfo)
	}

	jww.INFO.Print(Version())
}
