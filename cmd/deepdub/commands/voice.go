package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/deepdub-ai/deepdub-go/pkg/deepdub"
)

var voiceCmd = &cobra.Command{
	Use:   "voice",
	Short: "Voice cloning service",
	Long: `Voice cloning service.

Manage cloned voices and classify speaker gender from reference audio.`,
}

var voiceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cloned voices",
	Long: `List all cloned voices in the account.

Examples:
  deepdub -c myctx voice list
  deepdub -c myctx voice list --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, err := getContext()
		if err != nil {
			return err
		}

		client, err := createClient(ctx)
		if err != nil {
			return err
		}

		reqCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		voices, err := client.Voice.List(reqCtx)
		if err != nil {
			return fmt.Errorf("failed to list voices: %w", err)
		}

		if isJSONOutput() || getOutputFile() != "" {
			return outputResult(voices, getOutputFile(), isJSONOutput())
		}

		if len(voices) == 0 {
			printInfo("No voices found")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "VOICE_ID\tNAME\tGENDER\tLOCALE\tSTYLE\tPUBLISHED")
		for _, v := range voices {
			published := ""
			if v.Published {
				published = "yes"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				v.VoiceID, v.Name, v.Gender, v.Locale, v.SpeakingStyle, published)
		}
		return w.Flush()
	},
}

var voiceAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Clone a voice from reference audio",
	Long: `Clone a voice from a reference audio file.

Examples:
  deepdub -c myctx voice add --name Ada --gender female --locale en-US --audio sample.wav
  deepdub -c myctx voice add --name Ada --gender female --locale en-US --age 30 --style Neutral --publish --audio sample.wav`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, err := getContext()
		if err != nil {
			return err
		}

		audioFile, err := cmd.Flags().GetString("audio")
		if err != nil {
			return fmt.Errorf("failed to read 'audio' flag: %w", err)
		}
		if audioFile == "" {
			return fmt.Errorf("--audio is required")
		}
		data, err := os.ReadFile(audioFile)
		if err != nil {
			return fmt.Errorf("failed to read audio file: %w", err)
		}

		name, _ := cmd.Flags().GetString("name")
		gender, _ := cmd.Flags().GetString("gender")
		locale, _ := cmd.Flags().GetString("locale")
		age, _ := cmd.Flags().GetInt("age")
		style, _ := cmd.Flags().GetString("style")
		publish, _ := cmd.Flags().GetBool("publish")

		req := &deepdub.AddVoiceRequest{
			Name:          name,
			Gender:        gender,
			Locale:        locale,
			Age:           age,
			SpeakingStyle: style,
			Publish:       publish,
			Data:          data,
			Filename:      filepath.Base(audioFile),
		}

		printVerbose("Reference audio: %s (%s)", audioFile, formatBytes(int64(len(data))))

		client, err := createClient(ctx)
		if err != nil {
			return err
		}

		reqCtx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
		defer cancel()

		voice, err := client.Voice.Add(reqCtx, req)
		if err != nil {
			return fmt.Errorf("failed to add voice: %w", err)
		}

		return outputResult(voice, getOutputFile(), isJSONOutput())
	},
}

var voiceGenderCmd = &cobra.Command{
	Use:   "gender",
	Short: "Classify speaker gender from audio",
	Long: `Classify the speaker gender of a WAV audio sample.

Only the first second of audio is inspected by the service.

Examples:
  deepdub -c myctx voice gender --audio sample.wav
  deepdub -c myctx voice gender --audio sample.wav --sample-rate 24000`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, err := getContext()
		if err != nil {
			return err
		}

		audioFile, err := cmd.Flags().GetString("audio")
		if err != nil {
			return fmt.Errorf("failed to read 'audio' flag: %w", err)
		}
		if audioFile == "" {
			return fmt.Errorf("--audio is required")
		}
		data, err := os.ReadFile(audioFile)
		if err != nil {
			return fmt.Errorf("failed to read audio file: %w", err)
		}
		sampleRate, err := cmd.Flags().GetInt("sample-rate")
		if err != nil {
			return fmt.Errorf("failed to read 'sample-rate' flag: %w", err)
		}

		client, err := createClient(ctx)
		if err != nil {
			return err
		}

		reqCtx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		result, err := client.Voice.ClassifyGender(reqCtx, &deepdub.GenderClassifyRequest{
			Audio:      data,
			SampleRate: sampleRate,
		})
		if err != nil {
			return fmt.Errorf("gender classification failed: %w", err)
		}

		return outputResult(result, getOutputFile(), isJSONOutput())
	},
}

func init() {
	voiceAddCmd.Flags().String("name", "", "Voice name (required)")
	voiceAddCmd.Flags().String("gender", "", "Speaker gender: male or female (required)")
	voiceAddCmd.Flags().String("locale", "", "Locale of the reference audio (required)")
	voiceAddCmd.Flags().Int("age", 0, "Speaker age")
	voiceAddCmd.Flags().String("style", "", "Speaking style (default Neutral)")
	voiceAddCmd.Flags().Bool("publish", false, "Publish the voice")
	voiceAddCmd.Flags().String("audio", "", "Reference audio file (required)")
	_ = voiceAddCmd.MarkFlagRequired("name")
	_ = voiceAddCmd.MarkFlagRequired("gender")
	_ = voiceAddCmd.MarkFlagRequired("locale")

	voiceGenderCmd.Flags().String("audio", "", "WAV audio file (required)")
	voiceGenderCmd.Flags().Int("sample-rate", 0, "Audio sample rate (default 16000)")

	voiceCmd.AddCommand(voiceListCmd)
	voiceCmd.AddCommand(voiceAddCmd)
	voiceCmd.AddCommand(voiceGenderCmd)
}
