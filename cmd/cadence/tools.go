package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nadzzz/cadence/internal/ssml"
)

func buildCmd() *cobra.Command {
	var (
		emotion     string
		confidence  float64
		speed       string
		respType    string
		formal      bool
		maxDuration float64
		validate    bool
	)
	cmd := &cobra.Command{
		Use:   "build [text]",
		Short: "Render text to SSML and print it",
		Long:  "Render text to SSML. The text is read from the arguments or, when none are given, from stdin.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if maxDuration < 0 || math.IsNaN(maxDuration) || math.IsInf(maxDuration, 0) {
				return fmt.Errorf("--max-duration must be a finite, non-negative number of seconds, got %v", maxDuration)
			}
			_, builder, err := loadBuilder(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			text, err := inputText(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			resp := ssml.Response{Text: text}
			if emotion != "" {
				resp.Emotion = &ssml.EmotionalContext{PrimaryEmotion: ssml.Emotion(emotion), Confidence: confidence}
			}
			doc := builder.Build(resp, ssml.Options{
				Speed:               ssml.VoiceSpeed(speed),
				ResponseType:        respType,
				Formal:              formal,
				MaxResponseDuration: maxDuration,
			})
			fmt.Fprintln(cmd.OutOrStdout(), doc)

			if validate {
				return printReport(cmd, builder.Validate(doc))
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&emotion, "emotion", "", "primary emotion: excitement, stress, achievement, frustration, neutral")
	f.Float64Var(&confidence, "confidence", 1, "confidence of the emotion, 0..1")
	f.StringVar(&speed, "speed", "normal", "voice speed: slow, normal, fast")
	f.StringVar(&respType, "type", "", "response type, e.g. CLIENT, GOAL, GENERAL")
	f.BoolVar(&formal, "formal", false, "use the professional profile")
	f.Float64Var(&maxDuration, "max-duration", 0, "cap the spoken length in seconds (0 uses the rule set default)")
	f.BoolVar(&validate, "validate", false, "print a validation report to stderr")
	return cmd
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Validate an SSML document from a file or stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, builder, err := loadBuilder(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			var r io.Reader = cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}
			data, err := io.ReadAll(r)
			if err != nil {
				return fmt.Errorf("reading document: %w", err)
			}
			rep := builder.Validate(string(data))
			if err := printReport(cmd, rep); err != nil {
				return err
			}
			if !rep.Valid {
				return errors.New("document is not valid")
			}
			return nil
		},
	}
}

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect the active rule set",
	}
	cmd.AddCommand(rulesExportCmd())
	return cmd
}

func rulesExportCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Print the active rule set, including config overrides",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, builder, err := loadBuilder(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			data, err := ssml.MarshalRules(builder.Rules(), format)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().StringVar(&format, "format", "yaml", "output format: yaml or json")
	return cmd
}

func inputText(stdin io.Reader, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", errors.New("no text given")
	}
	return text, nil
}

func printReport(cmd *cobra.Command, rep ssml.Report) error {
	enc := json.NewEncoder(cmd.ErrOrStderr())
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}
