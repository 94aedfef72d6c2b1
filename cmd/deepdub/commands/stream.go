package commands

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/deepdub-ai/deepdub-go/pkg/audio/wavio"
	"github.com/deepdub-ai/deepdub-go/pkg/cli"
	"github.com/deepdub-ai/deepdub-go/pkg/deepdub"
)

var streamCmd = &cobra.Command{
	Use:   "stream [text...]",
	Short: "Interactive streaming synthesis session",
	Long: `Open a long-lived streaming synthesis session and speak text through it.

Text is taken from the command arguments (one utterance per argument),
from an input file (one utterance per line), or from stdin when neither
is given. The session stays open across utterances and audio chunks are
collected into the output file.

With --format headerless-wav and a .wav output file the raw PCM is
wrapped in a WAV container on write.

Examples:
  deepdub -c myctx stream "Hello there." "How are you today?" --voice VOICE_ID -o out.wav
  deepdub -c myctx stream -f lines.txt --voice VOICE_ID --format headerless-wav -o out.wav
  echo "Hello" | deepdub -c myctx stream --voice VOICE_ID -o out.wav`,
	RunE: runStream,
}

func runStream(cmd *cobra.Command, args []string) error {
	if err := requireOutputFile(); err != nil {
		return err
	}

	cliCtx, err := getContext()
	if err != nil {
		return err
	}

	voice, _ := cmd.Flags().GetString("voice")
	if voice == "" {
		voice = cliCtx.DefaultVoice
	}
	if voice == "" {
		return fmt.Errorf("--voice is required (or set default_voice in the context)")
	}
	model, _ := cmd.Flags().GetString("model")
	if model == "" {
		model = cliCtx.DefaultModel
	}
	locale, _ := cmd.Flags().GetString("locale")
	format, _ := cmd.Flags().GetString("format")
	sampleRate, _ := cmd.Flags().GetInt("sample-rate")
	wait, _ := cmd.Flags().GetDuration("wait")

	lines, err := streamInputLines(args)
	if err != nil {
		return err
	}
	if len(lines) == 0 {
		return fmt.Errorf("no text to synthesize")
	}

	client, err := createClient(cliCtx)
	if err != nil {
		return err
	}

	cfg := &deepdub.StreamConfig{
		Model:         model,
		Locale:        locale,
		VoicePromptID: voice,
		Format:        format,
		SampleRate:    sampleRate,
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 16000
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	session, err := client.Stream.OpenSession(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open streaming session: %w", err)
	}
	defer session.Close()

	transcript := cli.NewLogWriter(200)
	fmt.Fprintf(transcript, "session %s opened", session.GenerationID())

	var audio bytes.Buffer
	recvDone := make(chan error, 1)
	recvFinished := make(chan struct{})
	go func() {
		defer close(recvFinished)
		for chunk, err := range session.Recv() {
			if err != nil {
				recvDone <- err
				return
			}
			audio.Write(chunk.Data)
			fmt.Fprintf(transcript, "recv chunk %d (%s)", chunk.Seq, cli.FormatBytes(int64(len(chunk.Data))))
		}
		recvDone <- nil
	}()

	start := time.Now()
	for _, line := range lines {
		if err := session.SendText(ctx, line); err != nil {
			return fmt.Errorf("failed to send text: %w", err)
		}
		fmt.Fprintf(transcript, "sent %q", line)
		printVerbose("sent: %s", line)
	}

	// Close once the stream has been quiet for the wait interval.
	if !waitForQuiet(session, wait, recvFinished) {
		session.Close()
	}

	recvErr := <-recvDone
	if recvErr != nil && !errors.Is(recvErr, context.Canceled) {
		return fmt.Errorf("stream session failed: %w", recvErr)
	}

	if err := writeStreamOutput(getOutputFile(), audio.Bytes(), format, cfg.SampleRate); err != nil {
		return err
	}

	chunks, bytesTotal, _ := session.Stats()
	fmt.Fprintf(transcript, "session closed: %d chunks, %s", chunks, cli.FormatBytes(bytesTotal))

	if isVerbose() {
		printStreamSummary(session.GenerationID(), transcript)
	}

	result := map[string]any{
		"generation_id": session.GenerationID(),
		"chunks":        chunks,
		"audio_size":    bytesTotal,
		"elapsed":       time.Since(start).Round(time.Millisecond).String(),
		"output_file":   getOutputFile(),
	}
	return outputResult(result, "", isJSONOutput())
}

// streamInputLines gathers utterances from args, the input file, or stdin.
func streamInputLines(args []string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}

	var r *os.File
	if path := getInputFile(); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open input file: %w", err)
		}
		defer f.Close()
		r = f
	} else {
		r = os.Stdin
	}

	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	return lines, nil
}

// waitForQuiet blocks until the session has received nothing for the
// wait interval, then returns. Returns true if the receive loop already
// finished on its own.
func waitForQuiet(session *deepdub.StreamSession, wait time.Duration, recvFinished <-chan struct{}) bool {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-recvFinished:
			return true
		case <-ticker.C:
			_, _, last := session.Stats()
			if time.Since(last) > wait {
				return false
			}
		}
	}
}

// writeStreamOutput writes the collected audio, wrapping headerless PCM
// in a WAV container when the output file asks for one.
func writeStreamOutput(path string, audio []byte, format string, sampleRate int) error {
	if format == deepdub.FormatHeaderlessWAV && strings.HasSuffix(path, ".wav") {
		if err := wavio.WriteFile(path, audio, sampleRate, 1); err != nil {
			return fmt.Errorf("failed to write WAV file: %w", err)
		}
		return nil
	}
	if err := os.WriteFile(path, audio, 0644); err != nil {
		return fmt.Errorf("failed to write audio file: %w", err)
	}
	return nil
}

func printStreamSummary(generationID string, transcript *cli.LogWriter) {
	frame := cli.Frame{
		Styles: cli.NewStyles(cli.DefaultTheme),
		Title:  "Streaming Session",
		Status: generationID,
		Sections: []cli.Section{
			{Label: "Transcript", Content: transcript.Lines},
		},
	}
	fmt.Println(frame.Render(80, len(transcript.Lines())+8))
}

func init() {
	streamCmd.Flags().String("voice", "", "Voice prompt ID")
	streamCmd.Flags().String("model", "", "Synthesis model")
	streamCmd.Flags().String("locale", "", "Speech locale")
	streamCmd.Flags().String("format", "", "Audio format: wav, headerless-wav or mp3")
	streamCmd.Flags().Int("sample-rate", 0, "Audio sample rate")
	streamCmd.Flags().Duration("wait", 5*time.Second, "Close the session after this much receive inactivity")
}
