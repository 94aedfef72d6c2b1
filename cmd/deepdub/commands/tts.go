package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/deepdub-ai/deepdub-go/pkg/deepdub"
)

var ttsCmd = &cobra.Command{
	Use:   "tts",
	Short: "Speech synthesis service",
	Long: `Speech synthesis (TTS) service.

Supports one-shot, streamed and retroactive synthesis.

Example request file (tts.yaml):
  text: Hello, this is a test message.
  model: dd-etts-2.5
  voice_prompt_id: YOUR_VOICE_PROMPT_ID
  locale: en-US
  format: mp3
  sample_rate: 24000`,
}

var ttsSynthesizeCmd = &cobra.Command{
	Use:   "synthesize",
	Short: "Synthesize speech from text",
	Long: `Synthesize speech from text (one-shot REST call).

The audio output will be saved to the specified output file.

Examples:
  deepdub -c myctx tts synthesize -f tts.yaml -o output.mp3
  deepdub -c myctx tts synthesize -f tts.yaml -o output.mp3 --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireInputFile(); err != nil {
			return err
		}
		if err := requireOutputFile(); err != nil {
			return err
		}

		ctx, err := getContext()
		if err != nil {
			return err
		}

		var req deepdub.TTSRequest
		if err := loadRequest(getInputFile(), &req); err != nil {
			return err
		}

		// Use context defaults if not specified
		if req.Model == "" {
			req.Model = ctx.DefaultModel
		}
		if req.VoicePromptID == "" && req.VoiceReference == "" {
			req.VoicePromptID = ctx.DefaultVoice
		}

		printVerbose("Using context: %s", ctx.Name)
		printVerbose("Model: %s", req.Model)
		printVerbose("Text length: %d characters", len(req.Text))

		client, err := createClient(ctx)
		if err != nil {
			return err
		}

		reqCtx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
		defer cancel()

		start := time.Now()
		audio, err := client.TTS.Synthesize(reqCtx, &req)
		if err != nil {
			return fmt.Errorf("speech synthesis failed: %w", err)
		}

		outputPath := getOutputFile()
		if err := outputBytes(audio, outputPath); err != nil {
			return fmt.Errorf("failed to write audio file: %w", err)
		}
		printVerbose("Audio saved to: %s", outputPath)

		result := map[string]any{
			"audio_size":  len(audio),
			"elapsed":     time.Since(start).Round(time.Millisecond).String(),
			"output_file": outputPath,
		}

		return outputResult(result, "", isJSONOutput())
	},
}

var ttsStreamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Stream speech synthesis",
	Long: `Stream speech synthesis over the websocket endpoint.

Audio chunks are appended to the output file as they arrive.

Examples:
  deepdub -c myctx tts stream -f tts.yaml -o output.wav`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireInputFile(); err != nil {
			return err
		}
		if err := requireOutputFile(); err != nil {
			return err
		}

		ctx, err := getContext()
		if err != nil {
			return err
		}

		var req deepdub.TTSRequest
		if err := loadRequest(getInputFile(), &req); err != nil {
			return err
		}
		if req.Model == "" {
			req.Model = ctx.DefaultModel
		}
		if req.VoicePromptID == "" && req.VoiceReference == "" {
			req.VoicePromptID = ctx.DefaultVoice
		}

		client, err := createClient(ctx)
		if err != nil {
			return err
		}

		reqCtx, cancel := context.WithTimeout(context.Background(), 300*time.Second)
		defer cancel()

		out, err := os.Create(getOutputFile())
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer out.Close()

		start := time.Now()
		var chunks int
		var total int64
		for chunk, err := range client.TTS.SynthesizeStream(reqCtx, &req) {
			if err != nil {
				return fmt.Errorf("stream synthesis failed: %w", err)
			}
			if _, err := out.Write(chunk.Data); err != nil {
				return fmt.Errorf("failed to write audio chunk: %w", err)
			}
			chunks++
			total += int64(len(chunk.Data))
			printVerbose("chunk %d: %s", chunk.Seq, formatBytes(int64(len(chunk.Data))))
		}

		result := map[string]any{
			"chunks":      chunks,
			"audio_size":  total,
			"elapsed":     time.Since(start).Round(time.Millisecond).String(),
			"output_file": getOutputFile(),
		}

		return outputResult(result, "", isJSONOutput())
	},
}

var ttsRetroCmd = &cobra.Command{
	Use:   "retro <text>",
	Short: "Retroactive speech synthesis",
	Long: `Synthesize speech retroactively against a previously used voice prompt.

Examples:
  deepdub -c myctx tts retro "Hello again" --voice VOICE_PROMPT_ID -o output.mp3`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireOutputFile(); err != nil {
			return err
		}

		ctx, err := getContext()
		if err != nil {
			return err
		}

		voice, err := cmd.Flags().GetString("voice")
		if err != nil {
			return fmt.Errorf("failed to read 'voice' flag: %w", err)
		}
		if voice == "" {
			voice = ctx.DefaultVoice
		}
		if voice == "" {
			return fmt.Errorf("--voice is required (or set default_voice in the context)")
		}
		model, err := cmd.Flags().GetString("model")
		if err != nil {
			return fmt.Errorf("failed to read 'model' flag: %w", err)
		}
		if model == "" {
			model = ctx.DefaultModel
		}
		locale, err := cmd.Flags().GetString("locale")
		if err != nil {
			return fmt.Errorf("failed to read 'locale' flag: %w", err)
		}

		client, err := createClient(ctx)
		if err != nil {
			return err
		}

		reqCtx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
		defer cancel()

		audio, err := client.TTS.SynthesizeRetro(reqCtx, args[0], voice, model, locale)
		if err != nil {
			return fmt.Errorf("retroactive synthesis failed: %w", err)
		}

		if err := outputBytes(audio, getOutputFile()); err != nil {
			return fmt.Errorf("failed to write audio file: %w", err)
		}

		printSuccess("Audio saved to %s (%s)", getOutputFile(), formatBytes(int64(len(audio))))
		return nil
	},
}

func init() {
	ttsRetroCmd.Flags().String("voice", "", "Voice prompt ID")
	ttsRetroCmd.Flags().String("model", "", "Synthesis model")
	ttsRetroCmd.Flags().String("locale", "", "Speech locale")

	ttsCmd.AddCommand(ttsSynthesizeCmd)
	ttsCmd.AddCommand(ttsStreamCmd)
	ttsCmd.AddCommand(ttsRetroCmd)
}
