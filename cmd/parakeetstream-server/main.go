package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/embervox/parakeetstream/internal/asr"
	"github.com/embervox/parakeetstream/internal/audio"
	"github.com/embervox/parakeetstream/internal/config"
	"github.com/embervox/parakeetstream/internal/diarize"
	"github.com/embervox/parakeetstream/internal/doctor"
	"github.com/embervox/parakeetstream/internal/logging"
	"github.com/embervox/parakeetstream/internal/model"
	"github.com/embervox/parakeetstream/internal/models"
	"github.com/embervox/parakeetstream/internal/parakeet"
	"github.com/embervox/parakeetstream/internal/tdt"
	"github.com/embervox/parakeetstream/internal/vocab"
	"github.com/embervox/parakeetstream/internal/wav"
)

// TranscriptToken mirrors one index across TranscriptionResult's parallel
// arrays, optionally tagged with a diarized speaker.
type TranscriptToken struct {
	Token     int32   `json:"token"`
	StartS    float64 `json:"start_s"`
	DurationS float64 `json:"duration_s"`
	SpeakerID string  `json:"speaker_id,omitempty"`
}

// SpeakerSegment is one diarized speaker turn, JSON-shaped from
// diarize.Segment (whose own fields carry no wire tags, since it is
// consumed in-process by internal/asr before this package ever sees it).
type SpeakerSegment struct {
	SpeakerID  string  `json:"speaker_id"`
	StartS     float64 `json:"start_s"`
	EndS       float64 `json:"end_s"`
	Confidence float32 `json:"confidence"`
}

// TranscriptResponse is the JSON shape returned by POST /transcribe and
// streamed, one per chunk, over GET /transcribe/stream.
type TranscriptResponse struct {
	Text          string            `json:"text"`
	Tokens        []TranscriptToken `json:"tokens"`
	AudioDuration float64           `json:"audio_duration"`
	ProcessingMs  int64             `json:"processing_ms"`
	Confidence    float32           `json:"confidence"`
	Model         string            `json:"model"`
	Segments      []SpeakerSegment  `json:"segments,omitempty"`
}

// server owns the loaded model sessions and hands out one asr.Session
// per request/connection: independent sessions, no shared mutable
// decode state.
type server struct {
	cfg      *config.Server
	log      *logging.Logger
	six      model.Six
	vocab    *vocab.Vocabulary
	diarizer *diarize.Pipeline
}

func main() {
	if hasDoctorFlag(os.Args[1:]) {
		fmt.Fprintln(os.Stderr, "parakeetstream-server preflight checks:")
		results := doctor.RunChecks("server")
		if doctor.PrintResults(results) {
			os.Exit(0)
		}
		os.Exit(1)
	}

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := logging.New("server", cfg.LogLevel, os.Stderr)

	srv, err := newServer(cfg, log)
	if err != nil {
		log.Error("init: %v", err)
		os.Exit(1)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/transcribe", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST only", http.StatusMethodNotAllowed)
			return
		}
		srv.handleTranscribe(w, r)
	})
	mux.HandleFunc("/transcribe/stream", srv.handleStream)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	log.Info("listening on %s", cfg.Addr)
	log.Error("%v", http.ListenAndServe(cfg.Addr, mux))
}

func hasDoctorFlag(args []string) bool {
	for _, a := range args {
		if a == "-doctor" || a == "--doctor" {
			return true
		}
	}
	return false
}

// newServer brings up ONNX Runtime, fetches/loads the ASR and diarization
// model files, and wires the diarization pipeline. Loading happens
// eagerly at startup since all six networks are needed for either HTTP
// route to function.
func newServer(cfg *config.Server, log *logging.Logger) (*server, error) {
	ortPath := cfg.OrtLibPath
	if ortPath == "" {
		for _, p := range []string{
			filepath.Join(cfg.CacheDir, "libs", "libonnxruntime.so.1"),
			"/usr/lib/libonnxruntime.so.1",
			"/usr/local/lib/libonnxruntime.so.1",
		} {
			if _, err := os.Stat(p); err == nil {
				ortPath = p
				break
			}
		}
	}
	if ortPath == "" {
		return nil, fmt.Errorf("no ONNX Runtime library found, pass -ort")
	}
	if err := parakeet.InitRuntime(ortPath); err != nil {
		return nil, err
	}

	asrDir, err := models.EnsureModel(cfg.CacheDir, models.ASRModel)
	if err != nil {
		return nil, fmt.Errorf("fetch asr model: %w", err)
	}
	six, vocabulary, err := parakeet.LoadASR(asrDir)
	if err != nil {
		return nil, fmt.Errorf("load asr model: %w", err)
	}

	diarizeDir, err := models.EnsureModel(cfg.CacheDir, models.DiarizeModel)
	if err != nil {
		return nil, fmt.Errorf("fetch diarize model: %w", err)
	}
	seg, emb, err := parakeet.LoadDiarize(diarizeDir)
	if err != nil {
		return nil, fmt.Errorf("load diarize model: %w", err)
	}
	six.Segmentation, six.Embedding = seg, emb

	log.Info("loaded parakeet-tdt-v3 and pyannote diarization models")

	return &server{
		cfg:      cfg,
		log:      log,
		six:      six,
		vocab:    vocabulary,
		diarizer: diarize.NewPipeline(cfg.Diarize),
	}, nil
}

func (s *server) newSession() *asr.Session {
	return asr.NewSession(s.six, s.vocab, tdt.DefaultConfig())
}

func (s *server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Token != "" && r.Header.Get("Authorization") != "Bearer "+s.cfg.Token {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 50<<20)

	file, header, err := r.FormFile("audio")
	if err != nil {
		http.Error(w, "missing 'audio' form file: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "failed to read upload: "+err.Error(), http.StatusBadRequest)
		return
	}

	samples, _, err := decodeAudio(header.Filename, data)
	if err != nil {
		http.Error(w, "failed to decode audio: "+err.Error(), http.StatusBadRequest)
		return
	}

	wantDiarize := r.URL.Query().Get("diarize") == "1"
	start := time.Now()

	session := s.newSession()

	var resp *TranscriptResponse
	if wantDiarize {
		combined, err := session.TranscribeAndDiarize(r.Context(), samples, s.diarizer, s.six.Segmentation, s.six.Embedding)
		if err != nil {
			http.Error(w, "diarization failed: "+err.Error(), http.StatusInternalServerError)
			return
		}
		resp = toResponse(combined.Transcription, combined.Segments)
		for i, tok := range combined.Tokens {
			resp.Tokens[i].SpeakerID = tok.SpeakerID
		}
	} else {
		result, err := session.Transcribe(r.Context(), samples)
		if err != nil {
			http.Error(w, "transcription failed: "+err.Error(), http.StatusInternalServerError)
			return
		}
		resp = toResponse(result, nil)
	}
	resp.ProcessingMs = time.Since(start).Milliseconds()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)

	s.log.Info("%s fmt=%s diarize=%v audio=%.1fs proc=%dms",
		r.RemoteAddr, filepath.Ext(header.Filename), wantDiarize, resp.AudioDuration, resp.ProcessingMs)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleStream upgrades to a websocket and runs one asr.Session per
// connection: the client sends raw float32 little-endian PCM chunks and
// the server replies after each chunk with the TranscriptionResult for
// that chunk alone, decoded with the session's PredictorState carried
// over from the connection's earlier chunks. Earlier chunks' text is not
// repeated or merged into a reply.
func (s *server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	sessionID := uuid.New().String()
	session := s.newSession()
	sessLog := s.log.With(sessionID[:8])
	sessLog.Info("stream session opened")

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			sessLog.Info("stream session closed: %v", err)
			return
		}

		samples := bytesToFloat32(data)
		result, err := session.Transcribe(context.Background(), samples)
		if err != nil {
			conn.WriteJSON(map[string]string{"error": err.Error()})
			continue
		}
		if err := conn.WriteJSON(toResponse(result, nil)); err != nil {
			return
		}
	}
}

func decodeAudio(filename string, data []byte) ([]float32, int32, error) {
	name := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(name, ".wav"):
		return wav.Decode(data)
	case strings.HasSuffix(name, ".opus"):
		return audio.DecodeOpus(data)
	case strings.HasSuffix(name, ".mp3"):
		return audio.DecodeMP3(data)
	default:
		return nil, 0, fmt.Errorf("unsupported format %q, send .wav, .opus or .mp3", filepath.Ext(filename))
	}
}

func bytesToFloat32(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		bits := uint32(b[i*4]) | uint32(b[i*4+1])<<8 | uint32(b[i*4+2])<<16 | uint32(b[i*4+3])<<24
		out[i] = math.Float32frombits(bits)
	}
	return out
}

func toResponse(result *asr.TranscriptionResult, segments asr.DiarizationResult) *TranscriptResponse {
	tokens := make([]TranscriptToken, len(result.Tokens))
	for i, id := range result.Tokens {
		tokens[i] = TranscriptToken{
			Token:     id,
			StartS:    frameToSeconds(result.TimestampsFrames[i]),
			DurationS: frameToSeconds(result.TokenDurationsFrames[i]),
		}
	}
	var wireSegments []SpeakerSegment
	if len(segments) > 0 {
		wireSegments = make([]SpeakerSegment, len(segments))
		for i, seg := range segments {
			wireSegments[i] = SpeakerSegment{
				SpeakerID:  seg.SpeakerID,
				StartS:     round3(float64(seg.StartS)),
				EndS:       round3(float64(seg.EndS)),
				Confidence: seg.Confidence,
			}
		}
	}
	return &TranscriptResponse{
		Text:          result.Text,
		Tokens:        tokens,
		AudioDuration: round3(result.DurationS),
		Confidence:    result.Confidence,
		Model:         "parakeet-tdt-v3",
		Segments:      wireSegments,
	}
}

func frameToSeconds(f int32) float64 {
	return round3(float64(f) / 12.5)
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
