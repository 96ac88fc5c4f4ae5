package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/0xlemi/chordpad/internal/chord"
	"github.com/0xlemi/chordpad/internal/pitch"
	"github.com/0xlemi/chordpad/internal/practice"
)

var transposeCmd = &cobra.Command{
	Use:   "transpose CHORD SEMITONES",
	Short: "Transpose a chord symbol",
	Example: `  chordpad transpose Bb/D 2
  chordpad transpose --spelling accidental F#m7 -1`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("semitones must be an integer: %w", err)
		}
		policy := chord.ParseSpellingPolicy(spelling)
		fmt.Fprintln(cmd.OutOrStdout(), chord.TransposeWith(args[0], n, policy))
		return nil
	},
}

var noteCmd = &cobra.Command{
	Use:   "note FREQUENCY|NOTE",
	Short: "Convert between a frequency and a note name",
	Example: `  chordpad note 261.63
  chordpad note A4`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if f, err := strconv.ParseFloat(args[0], 64); err == nil {
			n, ok := pitch.FrequencyToNote(f)
			if !ok {
				return fmt.Errorf("no note for %v Hz", f)
			}
			fmt.Fprintf(out, "%s (%+.1f cents)\n", n, n.Cents)
			return nil
		}
		fmt.Fprintf(out, "%.2f Hz\n", pitch.NoteToFrequency(args[0]))
		return nil
	},
}

var (
	clickBPM   int
	clickBars  int
	clickMeter uint8
	clickOut   string
	clickPad   string
)

var clickTrackCmd = &cobra.Command{
	Use:   "clicktrack",
	Short: "Export a metronome click track or pad note as a MIDI file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		var w io.Writer = cmd.OutOrStdout()
		if clickOut != "" && clickOut != "-" {
			f, err := os.Create(clickOut)
			if err != nil {
				return err
			}
			defer f.Close()
			w = f
		}
		if clickPad != "" {
			return practice.WritePadNote(w, strings.TrimSpace(clickPad), clickBPM, clickBars*int(clickMeter))
		}
		return practice.WriteClickTrack(w, practice.ClickTrack{
			BPM:         clickBPM,
			Bars:        clickBars,
			BeatsPerBar: clickMeter,
		})
	},
}

func init() {
	transposeCmd.Flags().StringVar(&spelling, "spelling", "reference", "spelling after transposition (reference, accidental)")
	// Flags go before CHORD so that a negative offset is read as an argument.
	transposeCmd.Flags().SetInterspersed(false)

	clickTrackCmd.Flags().IntVar(&clickBPM, "bpm", practice.DefaultBPM, "tempo in beats per minute")
	clickTrackCmd.Flags().IntVar(&clickBars, "bars", 4, "number of bars")
	clickTrackCmd.Flags().Uint8Var(&clickMeter, "beats", 4, "beats per bar")
	clickTrackCmd.Flags().StringVarP(&clickOut, "out", "o", "-", "output file, - for stdout")
	clickTrackCmd.Flags().StringVar(&clickPad, "pad", "", "export a held pad chord for this pitch class instead")

	rootCmd.AddCommand(transposeCmd, noteCmd, clickTrackCmd)
}
