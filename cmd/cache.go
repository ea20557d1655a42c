////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// The cache subcommand maintains the offline copy of the app shell.

package cmd

import (
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"
	"github.com/spf13/viper"

	"gitlab.com/elixxir/carechat/offline"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Maintain the offline copy of the app shell",
}

var cacheInstallCmd = &cobra.Command{
	Use:   "install [ASSET...]",
	Short: "Fetch the shell assets into a new generation and activate it",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signalContext()
		defer cancel()

		params := cacheParams()
		if len(args) > 0 {
			params.Assets = args
		}
		c := initCache(params)
		if err := c.Install(ctx); err != nil {
			exitWithError(err)
		}
		purged, err := c.Activate()
		if err != nil {
			exitWithError(err)
		}
		fmt.Printf("Activated %s with %d assets\n", c.Name(),
			len(params.Assets))
		for _, name := range purged {
			fmt.Printf("Purged %s\n", name)
		}
	},
}

var cacheGetCmd = &cobra.Command{
	Use:   "get PATH",
	Short: "Fetch PATH through the offline cache and print it",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signalContext()
		defer cancel()

		c := initCache(cacheParams())
		defer c.Wait()

		u := viper.GetString(originFlag) + requireArg(args, "path")
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			exitWithError(err)
		}
		req.Header.Set("Accept", "text/html")

		client := &http.Client{Transport: c.Transport()}
		resp, err := client.Do(req)
		if err != nil {
			exitWithError(err)
		}
		defer resp.Body.Close()

		jww.INFO.Printf("[Cache] %s: %s", u, resp.Status)
		if _, err = io.Copy(os.Stdout, resp.Body); err != nil {
			exitWithError(err)
		}
	},
}

func cacheParams() offline.Params {
	p := offline.GetDefaultParams()
	if v := viper.GetInt(cacheVersionFlag); v > 0 {
		p.Version = v
	}
	return p
}

func initCache(p offline.Params) *offline.Cache {
	c, err := offline.NewCache(initKV(), viper.GetString(originFlag), nil, p)
	if err != nil {
		exitWithError(err)
	}
	return c
}

func init() {
	cacheCmd.PersistentFlags().String(originFlag, "http://localhost:3000",
		"Origin the shell is served from")
	bindPersistentFlagHelper(originFlag, cacheCmd)

	cacheCmd.PersistentFlags().Int(cacheVersionFlag, 0,
		"Shell cache generation (0 uses the default)")
	bindPersistentFlagHelper(cacheVersionFlag, cacheCmd)

	cacheCmd.AddCommand(cacheInstallCmd, cacheGetCmd)
	rootCmd.AddCommand(cacheCmd)
}
