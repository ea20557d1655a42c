////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package event

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Tests that posted commands reach a subscribed callback in order, and stop
// reaching it once it is unsubscribed.
func TestBus_Delivery(t *testing.T) {
	var (
		got []Command
		mux sync.Mutex
	)
	cb := func(c Command) {
		mux.Lock()
		got = append(got, c)
		mux.Unlock()
	}
	count := func() int {
		mux.Lock()
		defer mux.Unlock()
		return len(got)
	}

	b := NewBus()
	b.Start()
	require.NoError(t, b.Subscribe("test", cb))
	require.Error(t, b.Subscribe("test", cb))

	b.Post(Command{Kind: OpenConversation, ConversationID: "c1", Source: "push"})
	b.Post(Command{Kind: Report, Priority: 1, Category: "Polling",
		Details: "polled 12 times"})
	b.Post(Command{Kind: OpenConversation, ConversationID: "c2"})

	require.Eventually(t, func() bool { return count() == 3 },
		time.Second, 5*time.Millisecond)

	mux.Lock()
	require.Equal(t, "c1", got[0].ConversationID)
	require.Equal(t, Report, got[1].Kind)
	require.Equal(t, "c2", got[2].ConversationID)
	mux.Unlock()

	b.Unsubscribe("test")
	b.Post(Command{Kind: OpenConversation, ConversationID: "c3"})
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 3, count())

	require.NoError(t, b.Stop(time.Second))
	require.ErrorIs(t, b.Stop(time.Second), ErrNotRunning)
}

// Tests that commands posted while the bus is stopped are delivered once it
// starts.
func TestBus_QueuedBeforeStart(t *testing.T) {
	b := NewBus()
	received := make(chan Command, 1)
	require.NoError(t, b.Subscribe("test", func(c Command) { received <- c }))

	b.Post(Command{Kind: OpenConversation, ConversationID: "early"})
	b.Start()
	defer func() { require.NoError(t, b.Stop(time.Second)) }()

	select {
	case c := <-received:
		require.Equal(t, "early", c.ConversationID)
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for queued command")
	}
}

// Tests the String output of both kinds.
func TestCommand_String(t *testing.T) {
	require.Equal(t, "OpenConversation(c1 from push)",
		Command{Kind: OpenConversation, ConversationID: "c1",
			Source: "push"}.String())
	require.Equal(t, "Report(1, Polling, x)",
		Command{Kind: Report, Priority: 1, Category: "Polling",
			Details: "x"}.String())
}
