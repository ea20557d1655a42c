////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package display

import (
	"strings"

	"github.com/forPelevin/gomoji"
)

// maxEnlargedEmoji is the most emoji a message may hold and still be drawn
// enlarged.
const maxEnlargedEmoji = 3

// EmojiOnly reports whether text is made up of between one and three emoji
// and nothing else but whitespace.
func EmojiOnly(text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}
	if strings.TrimSpace(gomoji.RemoveEmojis(text)) != "" {
		return false
	}

	n := len(gomoji.CollectAll(text))
	return n > 0 && n <= maxEnlargedEmoji
}
