package room

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
	"github.com/pion/webrtc/v3/pkg/media"
	"gopkg.in/hraban/opus.v2"

	"github.com/voicebridge/voicebridge/pkg/audio"
)

// WebRTCRoom joins a call through a websocket signalling server and
// exchanges opus audio over a peer connection.
type WebRTCRoom struct {
	cfg    Config
	logger *slog.Logger

	ws      *websocket.Conn
	wsMutex sync.Mutex
	pc      *webrtc.PeerConnection

	peerID    string
	sessionID string

	localTrack *webrtc.TrackLocalStaticSample
	encoder    *opus.Encoder
	pending    []int16

	audioIn      chan audio.Chunk
	participants chan Participant
	connected    chan struct{}

	trackWG   sync.WaitGroup
	closeOnce sync.Once
	closed    chan struct{}
}

// NewWebRTCRoom creates an unconnected room client.
func NewWebRTCRoom(url, name, token string, opts ...Option) (*WebRTCRoom, error) {
	cfg := Config{URL: url, Name: name, Token: token}
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &WebRTCRoom{
		cfg:          cfg,
		logger:       cfg.Logger.With("component", "room", "room", name),
		audioIn:      make(chan audio.Chunk, 32),
		participants: make(chan Participant, 4),
		connected:    make(chan struct{}),
		closed:       make(chan struct{}),
	}, nil
}

// Connect dials signalling, joins the room, and completes the media
// handshake. Only audio is negotiated.
func (r *WebRTCRoom) Connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: r.cfg.HandshakeTimeout}

	ws, _, err := dialer.DialContext(ctx, r.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("room: signalling connect failed: %w", err)
	}
	r.ws = ws

	if err := r.waitForWelcome(); err != nil {
		r.ws.Close()
		return fmt.Errorf("room: welcome failed: %w", err)
	}

	if err := r.join(); err != nil {
		r.ws.Close()
		return fmt.Errorf("room: join failed: %w", err)
	}

	if err := r.createPeerConnection(); err != nil {
		r.ws.Close()
		return fmt.Errorf("room: peer connection failed: %w", err)
	}

	go r.handleSignalling()

	select {
	case <-r.connected:
		r.logger.Info("room connected", "peer_id", r.peerID)
		return nil
	case <-ctx.Done():
		r.Close()
		return ctx.Err()
	case <-time.After(r.cfg.ConnectTimeout):
		r.Close()
		return fmt.Errorf("room: timeout waiting for media connection")
	}
}

func (r *WebRTCRoom) waitForWelcome() error {
	r.ws.SetReadDeadline(time.Now().Add(r.cfg.HandshakeTimeout))
	_, msg, err := r.ws.ReadMessage()
	r.ws.SetReadDeadline(time.Time{})
	if err != nil {
		return err
	}

	var welcome struct {
		Type   string `json:"type"`
		PeerID string `json:"peerId"`
	}
	if err := json.Unmarshal(msg, &welcome); err != nil {
		return err
	}
	if welcome.Type != "welcome" {
		return fmt.Errorf("expected welcome, got %s", welcome.Type)
	}
	r.peerID = welcome.PeerID
	return nil
}

func (r *WebRTCRoom) join() error {
	return r.writeJSON(map[string]string{
		"type":     "join",
		"room":     r.cfg.Name,
		"token":    r.cfg.Token,
		"identity": r.cfg.Identity,
	})
}

func (r *WebRTCRoom) createPeerConnection() error {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return err
	}
	r.pc = pc

	// Receive the participant's audio; nothing else is subscribed.
	if _, err = pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		return err
	}

	r.localTrack, err = webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{
		MimeType:  webrtc.MimeTypeOpus,
		ClockRate: DefaultSampleRate,
		Channels:  1,
	}, "audio", r.cfg.Identity)
	if err != nil {
		return err
	}
	if _, err = pc.AddTrack(r.localTrack); err != nil {
		return err
	}

	r.encoder, err = opus.NewEncoder(DefaultSampleRate, 1, opus.AppVoIP)
	if err != nil {
		return fmt.Errorf("opus encoder: %w", err)
	}

	pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		r.logger.Debug("track received", "kind", track.Kind().String(), "codec", track.Codec().MimeType)
		if track.Kind() == webrtc.RTPCodecTypeAudio {
			r.trackWG.Add(1)
			go func() {
				defer r.trackWG.Done()
				r.handleAudioTrack(track)
			}()
		}
	})

	pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		if candidate != nil {
			r.sendICECandidate(candidate)
		}
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		r.logger.Debug("connection state", "state", state.String())
		if state == webrtc.PeerConnectionStateConnected {
			select {
			case <-r.connected:
			default:
				close(r.connected)
			}
		}
	})

	return nil
}

func (r *WebRTCRoom) handleSignalling() {
	for {
		select {
		case <-r.closed:
			return
		default:
		}

		_, msg, err := r.ws.ReadMessage()
		if err != nil {
			select {
			case <-r.closed:
			default:
				r.logger.Warn("signalling read failed", "error", err)
			}
			return
		}

		var base struct {
			Type      string `json:"type"`
			SessionID string `json:"sessionId"`
		}
		if err := json.Unmarshal(msg, &base); err != nil {
			r.logger.Warn("malformed signalling message", "error", err)
			continue
		}

		switch base.Type {
		case "sessionStarted":
			r.sessionID = base.SessionID

		case "participant":
			r.handleParticipant(msg)

		case "peer":
			r.handlePeerMessage(msg)

		case "endSession":
			r.Close()
			return
		}
	}
}

func (r *WebRTCRoom) handleParticipant(msg []byte) {
	var p struct {
		Identity string `json:"identity"`
		Metadata string `json:"metadata"`
	}
	if err := json.Unmarshal(msg, &p); err != nil {
		r.logger.Warn("malformed participant message", "error", err)
		return
	}
	if p.Identity == r.cfg.Identity {
		return
	}
	r.logger.Info("participant joined", "identity", p.Identity)
	select {
	case r.participants <- Participant{Identity: p.Identity, Metadata: p.Metadata}:
	default:
	}
}

func (r *WebRTCRoom) handlePeerMessage(msg []byte) {
	var peer struct {
		SDP *struct {
			Type string `json:"type"`
			SDP  string `json:"sdp"`
		} `json:"sdp"`
		ICE *struct {
			Candidate     string  `json:"candidate"`
			SDPMid        *string `json:"sdpMid"`
			SDPMLineIndex *uint16 `json:"sdpMLineIndex"`
		} `json:"ice"`
	}
	if err := json.Unmarshal(msg, &peer); err != nil {
		r.logger.Warn("malformed peer message", "error", err)
		return
	}

	if peer.SDP != nil && peer.SDP.Type == "offer" {
		offer := webrtc.SessionDescription{
			Type: webrtc.SDPTypeOffer,
			SDP:  peer.SDP.SDP,
		}
		if err := r.pc.SetRemoteDescription(offer); err != nil {
			r.logger.Error("set remote description failed", "error", err)
			return
		}
		answer, err := r.pc.CreateAnswer(nil)
		if err != nil {
			r.logger.Error("create answer failed", "error", err)
			return
		}
		if err := r.pc.SetLocalDescription(answer); err != nil {
			r.logger.Error("set local description failed", "error", err)
			return
		}
		r.sendSDP(answer)
	}

	if peer.ICE != nil {
		if err := r.pc.AddICECandidate(webrtc.ICECandidateInit{
			Candidate:     peer.ICE.Candidate,
			SDPMid:        peer.ICE.SDPMid,
			SDPMLineIndex: peer.ICE.SDPMLineIndex,
		}); err != nil {
			r.logger.Warn("add ICE candidate failed", "error", err)
		}
	}
}

func (r *WebRTCRoom) sendSDP(sdp webrtc.SessionDescription) {
	err := r.writeJSON(map[string]interface{}{
		"type":      "peer",
		"sessionId": r.sessionID,
		"sdp": map[string]string{
			"type": sdp.Type.String(),
			"sdp":  sdp.SDP,
		},
	})
	if err != nil {
		r.logger.Error("send SDP failed", "error", err)
	}
}

func (r *WebRTCRoom) sendICECandidate(candidate *webrtc.ICECandidate) {
	if r.sessionID == "" {
		return
	}
	init := candidate.ToJSON()
	err := r.writeJSON(map[string]interface{}{
		"type":      "peer",
		"sessionId": r.sessionID,
		"ice": map[string]interface{}{
			"candidate":     init.Candidate,
			"sdpMid":        init.SDPMid,
			"sdpMLineIndex": init.SDPMLineIndex,
		},
	})
	if err != nil {
		r.logger.Error("send ICE candidate failed", "error", err)
	}
}

func (r *WebRTCRoom) handleAudioTrack(track *webrtc.TrackRemote) {
	decoder, err := opus.NewDecoder(DefaultSampleRate, 1)
	if err != nil {
		r.logger.Error("opus decoder failed", "error", err)
		return
	}

	pcm := make([]int16, frameSamples*3)
	for {
		var pkt *rtp.Packet
		pkt, _, err = track.ReadRTP()
		if err != nil {
			return
		}
		if len(pkt.Payload) == 0 {
			continue
		}

		n, err := decoder.Decode(pkt.Payload, pcm)
		if err != nil {
			r.logger.Debug("opus decode failed", "error", err)
			continue
		}

		samples := make([]int16, n)
		copy(samples, pcm[:n])
		select {
		case r.audioIn <- audio.Chunk{Samples: samples, SampleRate: DefaultSampleRate}:
		case <-r.closed:
			return
		}
	}
}

// WaitForParticipant blocks until the human joins.
func (r *WebRTCRoom) WaitForParticipant(ctx context.Context) (*Participant, error) {
	select {
	case p := <-r.participants:
		return &p, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrNoParticipant, ctx.Err())
	case <-r.closed:
		return nil, ErrClosed
	}
}

// AudioIn returns the participant's decoded audio.
func (r *WebRTCRoom) AudioIn() <-chan audio.Chunk {
	return r.audioIn
}

// WriteAudio encodes and plays a chunk to the room. Audio is packed into
// 20ms opus frames; a trailing partial frame is held until the next call.
func (r *WebRTCRoom) WriteAudio(ctx context.Context, chunk audio.Chunk) error {
	select {
	case <-r.closed:
		return ErrClosed
	default:
	}

	samples := chunk.Samples
	if chunk.SampleRate != DefaultSampleRate {
		samples = audio.Resample(samples, chunk.SampleRate, DefaultSampleRate)
	}
	r.pending = append(r.pending, samples...)

	buf := make([]byte, 4000)
	for len(r.pending) >= frameSamples {
		if err := ctx.Err(); err != nil {
			return err
		}
		frame := r.pending[:frameSamples]
		r.pending = r.pending[frameSamples:]

		n, err := r.encoder.Encode(frame, buf)
		if err != nil {
			return fmt.Errorf("room: opus encode: %w", err)
		}
		if err := r.localTrack.WriteSample(media.Sample{
			Data:     append([]byte(nil), buf[:n]...),
			Duration: 20 * time.Millisecond,
		}); err != nil {
			return fmt.Errorf("room: write sample: %w", err)
		}
	}
	return nil
}

func (r *WebRTCRoom) writeJSON(v interface{}) error {
	r.wsMutex.Lock()
	defer r.wsMutex.Unlock()
	return r.ws.WriteJSON(v)
}

// Close leaves the room.
func (r *WebRTCRoom) Close() error {
	r.closeOnce.Do(func() {
		close(r.closed)
		if r.pc != nil {
			r.pc.Close()
		}
		if r.ws != nil {
			r.ws.Close()
		}
		// Track readers drain before the audio channel closes, so
		// consumers see a clean end of stream.
		go func() {
			r.trackWG.Wait()
			close(r.audioIn)
		}()
	})
	return nil
}

var _ Room = (*WebRTCRoom)(nil)
