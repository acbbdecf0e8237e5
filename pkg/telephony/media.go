package telephony

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/gofiber/websocket/v2"

	"github.com/byteai/voiceline/pkg/audio"
	"github.com/byteai/voiceline/pkg/voice"
)

// wsWriter serializes concurrent writes onto one websocket connection.
// The egress pump and the event loop both write; the websocket library
// allows only one writer at a time.
type wsWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsWriter) sendJSON(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteJSON(v)
}

func (w *wsWriter) close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.conn.Close()
}

// handleMediaWS bridges one provider media stream onto one session:
// inbound media frames feed the session's Ingress, synthesized Egress
// frames flow back as media messages. The session is admitted on the
// stream's start event and ended when the stream stops or the socket
// drops.
func (s *Server) handleMediaWS(c *websocket.Conn) {
	logger := s.logger.With("component", "media")
	writer := &wsWriter{conn: c}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		session  *voice.Session
		callSid  string
		pumpDone chan struct{}
	)
	defer func() {
		if session != nil {
			session.End(voice.EndCallerHangup)
			cancel()
			<-session.Done()
			if pumpDone != nil {
				<-pumpDone
			}
			s.events.publish(newCallEvent("call_ended", session.ID, callSid, string(session.Reason())))
			logger.Info("media stream closed", "session", session.ID)
		}
	}()

	for {
		_, raw, err := c.ReadMessage()
		if err != nil {
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			logger.Debug("unparseable media message", "error", err)
			continue
		}

		switch msg.Event {
		case eventConnected:
			// Protocol preamble, nothing to do.

		case eventStart:
			if msg.Start == nil || session != nil {
				continue
			}
			session, err = s.sched.Admit()
			if err != nil {
				var capErr *voice.CapacityExceededError
				if errors.As(err, &capErr) {
					logger.Warn("media stream rejected at capacity",
						"call", msg.Start.CallSid, "active", capErr.Active)
				} else {
					logger.Error("admission failed", "call", msg.Start.CallSid, "error", err)
				}
				s.events.publish(newCallEvent("call_rejected", "", msg.Start.CallSid, err.Error()))
				return
			}
			callSid = msg.Start.CallSid
			logger = logger.With("call", callSid, "session", session.ID)
			logger.Info("media stream started", "stream", msg.Start.StreamSid)
			s.events.publish(newCallEvent("call_started", session.ID, callSid, ""))

			go session.Run()
			pumpDone = make(chan struct{})
			go s.pumpEgress(ctx, session, msg.Start.StreamSid, writer, pumpDone, logger)

		case eventMedia:
			if session == nil || msg.Media == nil {
				continue
			}
			data, err := decodeMedia(msg.Media.Payload)
			if err != nil {
				logger.Debug("dropping bad media frame", "error", err)
				continue
			}
			if err := session.Ingress.Push(ctx, audio.NewULawFrame(data)); err != nil {
				return
			}

		case eventMark:
			// Playback position acknowledgement; informational only.
			if msg.Mark != nil {
				logger.Debug("mark received", "name", msg.Mark.Name)
			}

		case eventStop:
			logger.Info("media stream stopped")
			return
		}
	}
}

// closeoutMessages are sent when a session's egress channel closes. An
// evicted call is cut off: whatever the provider has buffered is
// cleared instead of played out. Every path ends with the final mark.
func closeoutMessages(streamSid string, reason voice.EndReason) []wsMessage {
	var msgs []wsMessage
	if reason == voice.EndEvicted {
		msgs = append(msgs, clearMessage(streamSid))
	}
	return append(msgs, markMessage(streamSid, "session_end"))
}

// pumpEgress forwards synthesized audio to the provider until the
// session's egress channel closes, then signals end of playback and
// closes the socket so the provider hangs up.
func (s *Server) pumpEgress(ctx context.Context, session *voice.Session, streamSid string, writer *wsWriter, done chan struct{}, logger *slog.Logger) {
	defer close(done)

	for {
		frame, err := session.Egress.Pull(ctx)
		if err != nil {
			if errors.Is(err, audio.ErrChannelClosed) {
				for _, msg := range closeoutMessages(streamSid, session.Reason()) {
					writer.sendJSON(msg)
				}
				writer.close()
			}
			return
		}
		if err := writer.sendJSON(mediaMessage(streamSid, frame.Data)); err != nil {
			logger.Debug("egress write failed", "error", err)
			session.End(voice.EndCallerHangup)
			return
		}
	}
}
