package main

import (
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/embervox/parakeetstream/client"
	"github.com/embervox/parakeetstream/internal/audio"
	"github.com/embervox/parakeetstream/internal/doctor"
	"github.com/embervox/parakeetstream/internal/wav"
)

const sampleRate = 16000

var (
	styleStatus  = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	styleMeta    = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Italic(true)
	styleSpeaker = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
)

func main() {
	doctorFlag := flag.Bool("doctor", false, "run preflight checks and exit")
	server := flag.String("server", "http://localhost:9765", "transcription server URL")
	token := flag.String("token", "", "Bearer token for server authentication")
	diarize := flag.Bool("diarize", false, "request speaker diarization")
	clipboard := flag.Bool("clipboard", false, "copy result to clipboard via wl-copy")
	saveWav := flag.String("save-wav", "", "save recorded audio to this WAV file for debugging")
	stream := flag.Bool("stream", false, "stream chunks over a websocket instead of one batch request")
	flag.Parse()

	if *doctorFlag {
		fmt.Fprintln(os.Stderr, "parakeetstream-client preflight checks:")
		results := doctor.RunChecks("client")
		if doctor.PrintResults(results) {
			os.Exit(0)
		}
		os.Exit(1)
	}

	var opts []client.Option
	if *token != "" {
		opts = append(opts, client.WithToken(*token))
	}
	c := client.New(*server, opts...)

	if *stream {
		runStreaming(c)
		return
	}

	rec, err := client.NewRecorder(sampleRate, 1024)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open microphone: %v\n", err)
		os.Exit(1)
	}
	defer rec.Close()

	opusEnc, err := audio.NewStreamEncoder(32000)
	if err != nil {
		fmt.Fprintf(os.Stderr, "opus encoder init failed: %v\n", err)
		os.Exit(1)
	}

	if err := rec.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start recording: %v\n", err)
		os.Exit(1)
	}

	fmt.Fprintln(os.Stderr, styleStatus.Render("recording... press Ctrl+C to stop and transcribe"))
	stopped := make(chan struct{})
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt)
		<-sig
		signal.Stop(sig)
		close(stopped)
	}()

	start := time.Now()
	<-stopped
	recorded := rec.Stop()
	opusEnc.Write(recorded)

	elapsed := time.Since(start).Truncate(time.Millisecond)
	fmt.Fprintf(os.Stderr, "recorded %s (%d samples)\n", elapsed, len(recorded))

	if len(recorded) == 0 {
		fmt.Fprintln(os.Stderr, "nothing recorded.")
		return
	}

	// Pad 1s of silence so the decoder's drain sees a clean trailing blank run.
	pad := make([]float32, sampleRate)
	recorded = append(recorded, pad...)
	opusEnc.Write(pad)
	opusEnc.Flush()

	wavData := wav.Encode(recorded, sampleRate)
	backupPath := filepath.Join(os.TempDir(), fmt.Sprintf("parakeetstream-%d.wav", time.Now().Unix()))
	if err := os.WriteFile(backupPath, wavData, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to save backup: %v\n", err)
	}
	if *saveWav != "" {
		if err := os.WriteFile(*saveWav, wavData, 0644); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to save WAV: %v\n", err)
		} else {
			fmt.Fprintf(os.Stderr, "saved to %s\n", *saveWav)
		}
	}

	opusData := opusEnc.Bytes()
	fmt.Fprintf(os.Stderr, "encoded: %dKB WAV -> %dKB Opus\n", len(wavData)/1024, len(opusData)/1024)

	fmt.Fprintln(os.Stderr, "sending to server...")
	resp, err := c.Transcribe(opusData, "recording.opus", *diarize)
	if err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		fmt.Fprintf(os.Stderr, "audio saved at: %s\n", backupPath)
		os.Exit(1)
	}
	os.Remove(backupPath)

	if resp.Text == "" {
		fmt.Fprintln(os.Stderr, "no speech detected.")
		return
	}

	meta := fmt.Sprintf("[%s, %.1fs audio, %dms processing, confidence=%.2f]",
		resp.Model, resp.AudioDuration, resp.ProcessingMs, resp.Confidence)
	fmt.Fprintln(os.Stderr, "\n"+styleMeta.Render(meta))
	fmt.Println(resp.Text)

	if len(resp.Segments) > 0 {
		fmt.Fprintln(os.Stderr, "\nspeaker segments:")
		for _, seg := range resp.Segments {
			fmt.Fprintf(os.Stderr, "  %s  [%.1fs - %.1fs]\n", styleSpeaker.Render(seg.SpeakerID), seg.StartS, seg.EndS)
		}
	}

	if *clipboard {
		copyToClipboard(resp.Text)
	}
}

// runStreaming records microphone audio and sends it chunk by chunk over a
// websocket, printing each chunk's transcript as it arrives.
func runStreaming(c *client.Client) {
	rec, err := client.NewRecorder(sampleRate, sampleRate/5) // 200ms chunks
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open microphone: %v\n", err)
		os.Exit(1)
	}
	defer rec.Close()

	sess, err := c.OpenStream()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open stream: %v\n", err)
		os.Exit(1)
	}
	defer sess.Close()

	segments, err := rec.StartContinuous(2 * time.Second)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start recording: %v\n", err)
		os.Exit(1)
	}

	fmt.Fprintln(os.Stderr, styleStatus.Render("streaming... press Ctrl+C to stop"))
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)

	for {
		select {
		case <-sig:
			rec.StopContinuous()
			return
		case seg, ok := <-segments:
			if !ok {
				return
			}
			resp, err := sess.Send(seg.Samples)
			if err != nil {
				fmt.Fprintf(os.Stderr, "stream error: %v\n", err)
				return
			}
			fmt.Printf("\r%s", resp.Text)
		}
	}
}

func copyToClipboard(text string) {
	cmd := exec.Command("wl-copy")
	cmd.Stdin = strings.NewReader(text)
	if err := cmd.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "wl-copy failed: %v\n", err)
		return
	}
	fmt.Fprintln(os.Stderr, "copied to clipboard")
}
