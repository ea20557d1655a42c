////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Handles command-line version functionality

package cmd

import (
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"
)

// Change this value to set the version for this build
const currentVersion = "1.4.0"

// Version returns the version line and the module dependencies the binary
// was built with.
func Version() string {
	out := fmt.Sprintf("CareChat Client v%s -- %s\n\n", currentVersion,
		gitVersion())

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return out
	}
	deps := make([]string, 0, len(info.Deps))
	for _, dep := range info.Deps {
		deps = append(deps, "\t"+dep.Path+" "+dep.Version)
	}
	out += fmt.Sprintf("Dependencies:\n\n%s\n", strings.Join(deps, "\n"))
	return out
}

// gitVersion returns the VCS revision stamped into the binary.
func gitVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" {
			return s.Value
		}
	}
	return "unknown"
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version and dependency information for the CareChat binary",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Print(Version())
	},
}
