package client

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
)

// TranscriptToken is one decoded token with its timing and, when
// diarization was requested, its speaker tag.
type TranscriptToken struct {
	Token     int32   `json:"token"`
	StartS    float64 `json:"start_s"`
	DurationS float64 `json:"duration_s"`
	SpeakerID string  `json:"speaker_id,omitempty"`
}

// SpeakerSegment is a diarized speaker turn.
type SpeakerSegment struct {
	SpeakerID  string  `json:"speaker_id"`
	StartS     float64 `json:"start_s"`
	EndS       float64 `json:"end_s"`
	Confidence float32 `json:"confidence"`
}

// TranscriptResponse holds the server's transcription result, matching
// parakeetstream-server's TranscriptResponse JSON shape.
type TranscriptResponse struct {
	Text          string            `json:"text"`
	Tokens        []TranscriptToken `json:"tokens"`
	AudioDuration float64           `json:"audio_duration"`
	ProcessingMs  int64             `json:"processing_ms"`
	Confidence    float32           `json:"confidence"`
	Model         string            `json:"model"`
	Segments      []SpeakerSegment  `json:"segments,omitempty"`
}

// Client communicates with a parakeetstream transcription server.
type Client struct {
	serverURL string
	token     string
	http      *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithToken sets the Bearer token for server authentication.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// New creates a Client for the given server URL.
func New(serverURL string, opts ...Option) *Client {
	c := &Client{
		serverURL: strings.TrimRight(serverURL, "/"),
		http:      http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Transcribe sends encoded audio to the server and returns the transcript.
// Pass diarize=true to additionally request speaker segmentation.
func (c *Client) Transcribe(audio []byte, filename string, diarize bool) (*TranscriptResponse, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("audio", filename)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return nil, fmt.Errorf("write audio: %w", err)
	}
	writer.Close()

	url := c.serverURL + "/transcribe"
	if diarize {
		url += "?diarize=1"
	}

	req, err := http.NewRequest("POST", url, &body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}

	var result TranscriptResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &result, nil
}

// StreamSession is an open /transcribe/stream websocket connection. Each
// Send delivers one chunk of raw float32 little-endian PCM and blocks
// until the server replies with the transcript of that chunk; the reply
// does not repeat text from earlier chunks.
type StreamSession struct {
	conn *websocket.Conn
}

// OpenStream upgrades to the server's streaming transcription endpoint.
func (c *Client) OpenStream() (*StreamSession, error) {
	wsURL := "ws" + strings.TrimPrefix(c.serverURL, "http") + "/transcribe/stream"
	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		return nil, fmt.Errorf("dial stream: %w", err)
	}
	return &StreamSession{conn: conn}, nil
}

// Send writes one chunk of float32 samples and waits for the server's
// transcript of that chunk.
func (s *StreamSession) Send(samples []float32) (*TranscriptResponse, error) {
	buf := make([]byte, len(samples)*4)
	for i, v := range samples {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	if err := s.conn.WriteMessage(websocket.BinaryMessage, buf); err != nil {
		return nil, fmt.Errorf("write chunk: %w", err)
	}

	var result TranscriptResponse
	if err := s.conn.ReadJSON(&result); err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}
	return &result, nil
}

// Close ends the streaming session.
func (s *StreamSession) Close() error {
	return s.conn.Close()
}
