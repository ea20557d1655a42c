////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package store

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/elixxir/carechat/attachments"
	"gitlab.com/elixxir/carechat/conversation"
)

type messageRequest struct {
	ConversationID string `json:"conversation_id"`
	Content        string `json:"content"`
}

// SendMessage creates a text-only message.
func (c *Client) SendMessage(ctx context.Context, conversationID,
	content string) (conversation.Message, error) {
	var msg conversation.Message
	err := c.sendJSON(ctx, http.MethodPost, "/message",
		messageRequest{conversationID, content}, &msg)
	return msg, err
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// SendAttachments creates one message carrying the optional text and every
// file in a single multipart upload. The body is streamed, so files are read
// only as the request is written.
func (c *Client) SendAttachments(ctx context.Context, conversationID,
	content string, files []attachments.File) (conversation.Message, error) {
	if len(files) == 0 {
		return conversation.Message{}, errors.New("no files to upload")
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(writeAttachmentForm(mw, conversationID, content,
			files))
	}()

	var msg conversation.Message
	err := c.do(ctx, http.MethodPost, "/attachment", nil, pr,
		mw.FormDataContentType(), &msg)

	// unblock the writer if the request ended before consuming the body
	if cerr := pr.Close(); cerr != nil {
		jww.DEBUG.Printf("[Store] Closing upload pipe: %+v", cerr)
	}
	return msg, err
}

func writeAttachmentForm(mw *multipart.Writer, conversationID, content string,
	files []attachments.File) error {
	if err := mw.WriteField("conversation_id", conversationID); err != nil {
		return err
	}
	if content != "" {
		if err := mw.WriteField("content", content); err != nil {
			return err
		}
	}

	for _, f := range files {
		if err := writeFilePart(mw, f); err != nil {
			return err
		}
	}
	return mw.Close()
}

func writeFilePart(mw *multipart.Writer, f attachments.File) error {
	if f.Open == nil {
		return errors.Errorf("file %q has no contents", f.Name)
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(
		`form-data; name="files"; filename="%s"`, quoteEscaper.Replace(f.Name)))
	h.Set(contentTypeHeader, f.MIMEType)

	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}

	r, err := f.Open()
	if err != nil {
		return errors.Wrapf(err, "failed to open %q", f.Name)
	}
	defer r.Close()

	_, err = io.Copy(part, r)
	return errors.Wrapf(err, "failed to upload %q", f.Name)
}

// DeleteMessage soft-deletes a message. The backend restricts this to staff.
func (c *Client) DeleteMessage(ctx context.Context, messageID string) error {
	return c.sendJSON(ctx, http.MethodDelete,
		"/messages/"+url.PathEscape(messageID), nil, nil)
}
