// Package audio owns the single long-lived capture stream of an exam and
// the per-part segment buffers cut from it.
package audio

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
)

// Clip is a finalized, contiguous audio segment for one part of the exam.
type Clip struct {
	Label       string
	Data        []byte
	MIME        string
	FinalizedAt time.Time
}

var (
	ErrSegmentOpen   = errors.New("a segment is already open")
	ErrNoOpenSegment = errors.New("no open segment")
	ErrSessionClosed = errors.New("capture session is closed")
)

type segmentState int

const (
	segIdle segmentState = iota
	segRecording
	segPaused
)

type cmdKind int

const (
	cmdOpen cmdKind = iota
	cmdPause
	cmdResume
	cmdFinalize
	cmdClose
)

type command struct {
	kind  cmdKind
	label string
	clip  chan Clip
	err   chan error
}

// Session owns one logical microphone stream for a whole exam. Frames are
// delivered asynchronously; all segment operations are serialized through a
// single collector goroutine, so a pause or finalize acts as a barrier that
// flushes every frame fed before it.
type Session struct {
	frames chan []byte
	cmds   chan command
	done   chan struct{}

	mime string
	log  *logrus.Entry
}

// NewSession starts the collector. mime describes the frame encoding the
// client streams up (e.g. "audio/webm").
func NewSession(mime string, log *logrus.Logger) *Session {
	if log == nil {
		log = logrus.New()
	}
	s := &Session{
		frames: make(chan []byte, 256),
		cmds:   make(chan command),
		done:   make(chan struct{}),
		mime:   mime,
		log:    log.WithField("component", "audio.Session"),
	}
	go s.collect()
	return s
}

// Feed delivers one audio frame. Frames fed while no segment is recording
// are dropped by the collector. Never blocks the caller on a slow collector
// for longer than the channel buffer allows.
func (s *Session) Feed(frame []byte) {
	if len(frame) == 0 {
		return
	}
	select {
	case s.frames <- frame:
	case <-s.done:
	}
}

// Open starts a new segment under the given label. Fails if another segment
// is still open.
func (s *Session) Open(label string) error {
	return s.do(command{kind: cmdOpen, label: label})
}

// Pause stops appending without closing the segment. All frames fed before
// the call are flushed into the buffer first.
func (s *Session) Pause() error {
	return s.do(command{kind: cmdPause})
}

// Resume continues appending to the open segment.
func (s *Session) Resume() error {
	return s.do(command{kind: cmdResume})
}

// Finalize flushes, closes the open segment, and returns the assembled
// clip. It blocks until the collector has settled; the caller must not open
// the next segment or hand the clip off before it returns.
func (s *Session) Finalize(ctx context.Context) (Clip, error) {
	cmd := command{kind: cmdFinalize, clip: make(chan Clip, 1), err: make(chan error, 1)}
	select {
	case s.cmds <- cmd:
	case <-s.done:
		return Clip{}, ErrSessionClosed
	case <-ctx.Done():
		return Clip{}, ctx.Err()
	}
	select {
	case clip := <-cmd.clip:
		return clip, nil
	case err := <-cmd.err:
		return Clip{}, err
	case <-ctx.Done():
		return Clip{}, ctx.Err()
	}
}

// Close releases the stream. Any open segment is discarded; finalize first
// if its audio matters.
func (s *Session) Close() error {
	return s.do(command{kind: cmdClose})
}

func (s *Session) do(cmd command) error {
	cmd.err = make(chan error, 1)
	select {
	case s.cmds <- cmd:
	case <-s.done:
		return ErrSessionClosed
	}
	return <-cmd.err
}

func (s *Session) collect() {
	var (
		state segmentState
		label string
		buf   []byte
	)

	for {
		select {
		case frame := <-s.frames:
			if state == segRecording {
				buf = append(buf, frame...)
			}

		case cmd := <-s.cmds:
			// Drain frames fed before this command so pause/finalize
			// never lose the tail of the segment.
			s.drain(&state, &buf)

			switch cmd.kind {
			case cmdOpen:
				if state != segIdle {
					cmd.err <- ErrSegmentOpen
					continue
				}
				state = segRecording
				label = cmd.label
				buf = nil
				s.log.WithField("label", label).Debug("segment opened")
				cmd.err <- nil

			case cmdPause:
				if state == segIdle {
					cmd.err <- ErrNoOpenSegment
					continue
				}
				state = segPaused
				cmd.err <- nil

			case cmdResume:
				if state == segIdle {
					cmd.err <- ErrNoOpenSegment
					continue
				}
				state = segRecording
				cmd.err <- nil

			case cmdFinalize:
				if state == segIdle {
					cmd.err <- ErrNoOpenSegment
					continue
				}
				clip := Clip{
					Label:       label,
					Data:        buf,
					MIME:        s.mime,
					FinalizedAt: time.Now().UTC(),
				}
				state = segIdle
				label = ""
				buf = nil
				s.log.WithFields(logrus.Fields{
					"label": clip.Label,
					"bytes": len(clip.Data),
				}).Debug("segment finalized")
				cmd.clip <- clip

			case cmdClose:
				cmd.err <- nil
				close(s.done)
				return
			}
		}
	}
}

// drain consumes every frame already queued, appending if recording.
func (s *Session) drain(state *segmentState, buf *[]byte) {
	for {
		select {
		case frame := <-s.frames:
			if *state == segRecording {
				*buf = append(*buf, frame...)
			}
		default:
			return
		}
	}
}
