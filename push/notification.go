////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package push

import (
	"encoding/json"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/elixxir/carechat/event"
)

// Notification actions.
const (
	ActionOpen    = "open"
	ActionDismiss = "dismiss"
)

// DefaultTitle is shown when a push arrives without a title.
const DefaultTitle = "New message"

// chatPath is the deep link to a conversation.
const chatPath = "/chat"

const clickSource = "push"

// Payload is a push message as delivered by the push service. It never
// carries message content beyond the body preview.
type Payload struct {
	Title          string `json:"title"`
	Body           string `json:"body"`
	ConversationID string `json:"conversationId"`
	Type           string `json:"type"`
}

// ParsePayload decodes a push message. Plain text is accepted as the body of
// an untargeted notification.
func ParsePayload(data []byte) (Payload, error) {
	var p Payload
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return p, errors.New("push message is empty")
	}
	if !strings.HasPrefix(trimmed, "{") {
		return Payload{Title: DefaultTitle, Body: trimmed}, nil
	}
	if err := json.Unmarshal([]byte(trimmed), &p); err != nil {
		return p, errors.Wrap(err, "failed to decode push message")
	}
	if p.Title == "" {
		p.Title = DefaultTitle
	}
	return p, nil
}

// DeepLink is the path that opens the payload's conversation.
func (p Payload) DeepLink() string {
	if p.ConversationID == "" {
		return chatPath
	}
	return chatPath + "?conversation=" + url.QueryEscape(p.ConversationID)
}

// Host is the application shell a notification click lands in.
type Host interface {
	// FocusWindow focuses an existing app window and reports whether one
	// existed.
	FocusWindow() bool
	// OpenWindow opens a new app window at path.
	OpenWindow(path string) error
}

// HandleClick routes a notification click. Dismiss does nothing. If an app
// window exists it is focused and told to open the conversation through
// commands; otherwise a new window is opened at the conversation's deep
// link.
func HandleClick(p Payload, action string, host Host,
	commands event.Poster) error {
	if action == ActionDismiss {
		jww.DEBUG.Print("[Push] Notification dismissed")
		return nil
	}

	if host.FocusWindow() {
		if p.ConversationID != "" {
			commands.Post(event.Command{
				Kind:           event.OpenConversation,
				ConversationID: p.ConversationID,
				Source:         clickSource,
			})
		}
		return nil
	}

	link := p.DeepLink()
	jww.INFO.Printf("[Push] Opening new window at %s", link)
	return errors.WithMessage(host.OpenWindow(link), "failed to open window")
}
