package mcp

import "context"

// replyCapture is a Sender that keeps the first reply and rejects the rest.
type replyCapture struct {
	slot chan Response
}

func newReplyCapture() *replyCapture {
	return &replyCapture{slot: make(chan Response, 1)}
}

// Send stores resp if no reply has been stored yet.
func (c *replyCapture) Send(_ context.Context, resp Response) error {
	select {
	case c.slot <- resp:
		return nil
	default:
		return ErrReplySent
	}
}

// Reply returns the captured reply, if any. It must be called once
// dispatch has returned.
func (c *replyCapture) Reply() (Response, bool) {
	select {
	case resp := <-c.slot:
		return resp, true
	default:
		return Response{}, false
	}
}
