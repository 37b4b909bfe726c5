package pushhub

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/openkaraoke/studio/internal/domain/entities"
	"github.com/openkaraoke/studio/internal/eventbus"
)

// session is one client connection on either logical channel.
type session struct {
	id      string
	channel Channel
	conn    *websocket.Conn
	send    chan Frame
	hub     *Hub
	sub     *eventbus.Subscription

	closeOnce doOnce
}

// doOnce is a minimal, unsynchronized run-once guard. close() is only
// called from Hub.Run, which receives an unregister from both readPump and
// writePump; the guard keeps send from being closed twice.
type doOnce struct {
	done bool
}

func (o *doOnce) do(f func()) {
	if o.done {
		return
	}
	o.done = true
	f()
}

func (s *session) close() {
	s.closeOnce.do(func() {
		s.sub.Close()
		close(s.send)
		s.conn.Close()
	})
}

// sendSnapshot emits the initial snapshot frame per spec.md §4.3: every job
// the JobStore lists for "jobs" (terminal jobs stay listed until dismissed;
// no retention window is applied here), the current PerformanceState for
// "performance".
func (s *session) sendSnapshot(ctx context.Context) {
	switch s.channel {
	case ChannelJobs:
		jobs, err := s.hub.backend.ListJobs(ctx)
		if err != nil {
			s.hub.logger.Warn("failed to build jobs snapshot", zap.Error(err))
			jobs = []entities.Job{}
		}
		s.enqueue(Frame{Type: FrameSnapshot, Payload: jobs})
	case ChannelPerformance:
		state := s.hub.backend.CurrentPerformanceState(ctx)
		s.enqueue(Frame{Type: FrameState, Payload: state})
	}
}

// relayLoop forwards EventBus events matching this session's channel until
// the subscription is closed.
func (s *session) relayLoop() {
	for ev := range s.sub.Recv() {
		if ev.IsLossMarker() {
			s.enqueue(Frame{Type: FrameResync})
			continue
		}
		for _, frame := range translate(s.channel, ev) {
			s.enqueue(frame)
		}
	}
}

func translate(channel Channel, ev eventbus.Event) []Frame {
	switch channel {
	case ChannelJobs:
		return translateJobEvent(ev)
	case ChannelPerformance:
		return translatePerformanceEvent(ev)
	default:
		return nil
	}
}

func translateJobEvent(ev eventbus.Event) []Frame {
	var frameType string
	switch ev.Topic {
	case eventbus.TopicJobCreated:
		frameType = FrameJobCreated
	case eventbus.TopicJobUpdated:
		frameType = FrameJobUpdated
	case eventbus.TopicJobCompleted:
		frameType = FrameJobCompleted
	case eventbus.TopicJobFailed:
		frameType = FrameJobFailed
	case eventbus.TopicJobCancelled:
		frameType = FrameJobCancelled
	default:
		return nil
	}
	return []Frame{{Type: frameType, Payload: ev.Payload}}
}

// translatePerformanceEvent splits a performance.changed event into the
// distinct frame types spec.md §6.2 names: playback_play/pause when Play
// changed, playback_seek when a seek was requested, and changed for
// everything else.
func translatePerformanceEvent(ev eventbus.Event) []Frame {
	if ev.Topic != eventbus.TopicPerformanceChanged {
		return nil
	}
	patch, ok := ev.Payload.(entities.PerformanceControlPatch)
	if !ok {
		return []Frame{{Type: FrameChanged, Payload: ev.Payload}}
	}

	var frames []Frame
	if patch.Play != nil {
		if *patch.Play {
			frames = append(frames, Frame{Type: FramePlaybackPlay})
		} else {
			frames = append(frames, Frame{Type: FramePlaybackPause})
		}
	}
	if patch.SeekPositionMs != nil {
		frames = append(frames, Frame{Type: FramePlaybackSeek, Payload: SeekPayload{PositionMs: *patch.SeekPositionMs}})
	}
	if patch.VocalVolume != nil || patch.InstrumentalVolume != nil || patch.LyricsSize != nil || patch.LyricsOffsetMs != nil {
		frames = append(frames, Frame{Type: FrameChanged, Payload: patch})
	}
	return frames
}

func (s *session) enqueue(f Frame) {
	select {
	case s.send <- f:
	default:
		s.hub.logger.Warn("dropping frame to slow client", zap.String("session", s.id))
	}
}

// writePump owns the connection's write side exclusively, per the
// single-writer convention gorilla/websocket requires.
func (s *session) writePump() {
	ticker := time.NewTicker(heartbeatInterval)
	defer func() {
		ticker.Stop()
		s.hub.unregister <- s
	}()

	for {
		select {
		case frame, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteJSON(frame); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump owns the connection's read side, handling client-originated
// commands on the performance channel and enforcing the idle deadline.
func (s *session) readPump() {
	defer func() {
		s.hub.unregister <- s
	}()

	s.conn.SetReadLimit(4096)
	s.conn.SetReadDeadline(time.Now().Add(idleTimeout))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(idleTimeout))
		return nil
	})

	for {
		var frame Frame
		if err := s.conn.ReadJSON(&frame); err != nil {
			return
		}
		s.conn.SetReadDeadline(time.Now().Add(idleTimeout))

		if s.channel != ChannelPerformance {
			continue
		}
		s.handleCommand(frame)
	}
}

func (s *session) handleCommand(frame Frame) {
	ctx := context.Background()
	patch, ok := decodeCommand(frame)
	if !ok {
		s.hub.logger.Warn("ignoring unknown push command", zap.String("type", frame.Type))
		return
	}

	if _, err := s.hub.backend.UpdatePerformanceControl(ctx, patch); err != nil {
		s.hub.logger.Warn("performance command rejected", zap.Error(err), zap.String("type", frame.Type))
	}
}

// decodeCommand maps an incoming client frame to the PerformanceControlPatch
// Coordinator expects. Unknown frame types are reported via the bool
// return so the caller can warn and ignore, per spec.md §6.2.
func decodeCommand(frame Frame) (entities.PerformanceControlPatch, bool) {
	switch frame.Type {
	case FrameUpdateControl:
		m, ok := frame.Payload.(map[string]interface{})
		if !ok {
			return entities.PerformanceControlPatch{}, false
		}
		return patchFromMap(m), true
	case FramePlay:
		play := true
		return entities.PerformanceControlPatch{Play: &play}, true
	case FramePause:
		play := false
		return entities.PerformanceControlPatch{Play: &play}, true
	case FrameSeek:
		m, ok := frame.Payload.(map[string]interface{})
		if !ok {
			return entities.PerformanceControlPatch{}, false
		}
		pos, ok := numberField(m, "positionMs")
		if !ok {
			return entities.PerformanceControlPatch{}, false
		}
		posMs := int64(pos)
		return entities.PerformanceControlPatch{SeekPositionMs: &posMs}, true
	default:
		return entities.PerformanceControlPatch{}, false
	}
}

func patchFromMap(m map[string]interface{}) entities.PerformanceControlPatch {
	var patch entities.PerformanceControlPatch
	if v, ok := numberField(m, "vocalVolume"); ok {
		patch.VocalVolume = &v
	}
	if v, ok := numberField(m, "instrumentalVolume"); ok {
		patch.InstrumentalVolume = &v
	}
	if v, ok := m["lyricsSize"].(string); ok {
		size := entities.LyricsSize(v)
		patch.LyricsSize = &size
	}
	if v, ok := numberField(m, "lyricsOffsetMs"); ok {
		offset := int(v)
		patch.LyricsOffsetMs = &offset
	}
	return patch
}

func numberField(m map[string]interface{}, key string) (float64, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}
