////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

//go:build !windows

package cmd

import (
	"os"
	"os/signal"
	"syscall"

	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/elixxir/carechat/chatsync"
)

// watchVisibility maps SIGUSR1 to the view being hidden and SIGUSR2 to it
// being shown again. The returned function stops listening.
func watchVisibility(v *chatsync.Visibility) func() {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGUSR1, syscall.SIGUSR2)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case sig := <-signals:
				visible := sig == syscall.SIGUSR2
				jww.INFO.Printf("[Watch] Received %s, visible: %t", sig,
					visible)
				v.Set(visible)
			case <-done:
				return
			}
		}
	}()

	return func() {
		signal.Stop(signals)
		close(done)
	}
}
