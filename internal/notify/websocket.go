package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

var ErrMissingURL = errors.New("websocket url is required")

type sendFrame struct {
	Type    string `json:"type"`
	ID      string `json:"id"`
	Target  string `json:"target"`
	Message string `json:"message"`
}

type ackFrame struct {
	Type  string `json:"type"`
	ID    string `json:"id"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// WebSocketNotifier sends each message over a fresh gateway connection and waits for the
// matching acknowledgement.
type WebSocketNotifier struct {
	URL   string
	Token string
}

func NewWebSocketNotifier(rawURL, token string) (*WebSocketNotifier, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, ErrMissingURL
	}
	return &WebSocketNotifier{URL: rawURL, Token: strings.TrimSpace(token)}, nil
}

func (n *WebSocketNotifier) Notify(ctx context.Context, target, message string) Result {
	var opts websocket.DialOptions
	if n.Token != "" {
		opts.HTTPHeader = http.Header{"Authorization": {"Bearer " + n.Token}}
	}
	conn, _, err := websocket.Dial(ctx, n.URL, &opts)
	if err != nil {
		return Failed("dial gateway: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	frame := sendFrame{Type: "message.send", ID: uuid.NewString(), Target: target, Message: message}
	if err := wsjson.Write(ctx, conn, frame); err != nil {
		return Failed("send frame: %v", err)
	}
	for {
		var ack ackFrame
		if err := wsjson.Read(ctx, conn, &ack); err != nil {
			return Failed("await ack: %v", err)
		}
		if ack.Type != "ack" || ack.ID != frame.ID {
			continue
		}
		if !ack.OK {
			return Result{Detail: fmt.Sprintf("gateway rejected message: %s", ack.Error)}
		}
		return Delivered()
	}
}
