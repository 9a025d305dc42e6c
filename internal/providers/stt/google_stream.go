package stt

import (
	"context"
	"io"
	"sync"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/sirupsen/logrus"
)

// GoogleStream is a streaming recognizer backed by Cloud Speech. The
// underlying gRPC stream has a server-side idle limit and is torn down after
// long silences; GoogleStream reopens it transparently while the turn is
// still listening, keeping previously finalized text intact.
type GoogleStream struct {
	c   *speech.Client
	log *logrus.Entry

	Encoding     speechpb.RecognitionConfig_AudioEncoding
	SampleRateHz int32
	LanguageCode string

	mu        sync.Mutex
	cb        Callback
	stream    speechpb.Speech_StreamingRecognizeClient
	cancel    context.CancelFunc
	listening bool
}

func NewGoogleStream(ctx context.Context, language string, log *logrus.Logger) (*GoogleStream, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	if language == "" {
		language = "en-US"
	}
	if log == nil {
		log = logrus.New()
	}
	return &GoogleStream{
		c:            c,
		log:          log.WithField("component", "stt.GoogleStream"),
		Encoding:     speechpb.RecognitionConfig_WEBM_OPUS,
		SampleRateHz: 48000,
		LanguageCode: language,
	}, nil
}

func (g *GoogleStream) Close() error { return g.c.Close() }

// Start opens a streaming recognition turn.
func (g *GoogleStream) Start(ctx context.Context, cb Callback) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.listening {
		return nil
	}

	sctx, cancel := context.WithCancel(ctx)
	stream, err := g.open(sctx)
	if err != nil {
		cancel()
		return err
	}

	g.cb = cb
	g.stream = stream
	g.cancel = cancel
	g.listening = true

	go g.recv(sctx, stream)
	return nil
}

// SendAudio forwards a frame to the live stream. A no-op when no turn is
// open.
func (g *GoogleStream) SendAudio(frame []byte) {
	g.mu.Lock()
	stream := g.stream
	listening := g.listening
	g.mu.Unlock()

	if !listening || stream == nil || len(frame) == 0 {
		return
	}

	err := stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: frame,
		},
	})
	if err != nil {
		// The recv loop notices the broken stream and restarts it; frames
		// sent into the gap are lost, which streaming capture tolerates.
		g.log.WithError(err).Debug("send on stale stream")
	}
}

// Stop closes the current turn. Results arriving after Stop are discarded.
func (g *GoogleStream) Stop() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.listening {
		return nil
	}
	g.listening = false
	g.cb = nil
	if g.stream != nil {
		_ = g.stream.CloseSend()
		g.stream = nil
	}
	if g.cancel != nil {
		g.cancel()
		g.cancel = nil
	}
	return nil
}

func (g *GoogleStream) open(ctx context.Context) (speechpb.Speech_StreamingRecognizeClient, error) {
	stream, err := g.c.StreamingRecognize(ctx)
	if err != nil {
		return nil, err
	}
	err = stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:                   g.Encoding,
					SampleRateHertz:            g.SampleRateHz,
					LanguageCode:               g.LanguageCode,
					EnableAutomaticPunctuation: true,
				},
				InterimResults: true,
			},
		},
	})
	if err != nil {
		return nil, err
	}
	return stream, nil
}

func (g *GoogleStream) recv(ctx context.Context, stream speechpb.Speech_StreamingRecognizeClient) {
	for {
		resp, err := stream.Recv()
		if err != nil {
			g.mu.Lock()
			if !g.listening || ctx.Err() != nil {
				g.mu.Unlock()
				return
			}
			// Still logically listening: the server ended the stream
			// (silence timeout or io.EOF). Reopen and keep going without
			// surfacing an error.
			if err != io.EOF {
				g.log.WithError(err).Debug("stream ended, restarting")
			}
			next, oerr := g.open(ctx)
			if oerr != nil {
				cb := g.cb
				g.listening = false
				g.stream = nil
				g.mu.Unlock()
				if cb != nil {
					cb.OnError(oerr)
				}
				return
			}
			g.stream = next
			g.mu.Unlock()
			stream = next
			continue
		}

		g.mu.Lock()
		cb := g.cb
		listening := g.listening
		g.mu.Unlock()
		if !listening || cb == nil {
			continue
		}

		for _, res := range resp.Results {
			if len(res.Alternatives) == 0 {
				continue
			}
			alt := res.Alternatives[0]
			if res.IsFinal {
				cb.OnFinal(alt.Transcript, float64(alt.Confidence))
			} else {
				cb.OnInterim(alt.Transcript)
			}
		}
	}
}
