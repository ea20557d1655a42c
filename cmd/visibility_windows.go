////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

//go:build windows

package cmd

import (
	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/elixxir/carechat/chatsync"
)

// watchVisibility is unsupported on Windows; the view stays visible.
func watchVisibility(*chatsync.Visibility) func() {
	jww.DEBUG.Print("[Watch] Visibility signals are not supported on windows")
	return func() {}
}
