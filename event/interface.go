////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package event

// Callback receives every command posted on a Bus.
type Callback func(Command)

// Poster posts commands. Push handling and the poll engine only need this.
type Poster interface {
	Post(Command)
}
