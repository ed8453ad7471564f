package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/MimeLyc/livesub/internal/subtitle"
)

func newParseCommand() *cobra.Command {
	var asVTT bool

	cmd := &cobra.Command{
		Use:         "parse <file|->",
		Short:       "Parse a WebVTT file and print its cues",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"skipConfig": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			track := subtitle.ParseTrack(args[0], content)

			out := cmd.OutOrStdout()
			if asVTT {
				return subtitle.WriteWebVTT(out, track.Cues)
			}
			fmt.Fprintf(out, "%d cues, language %s\n", len(track.Cues), track.Language)
			if len(track.Cues) > 0 {
				fmt.Fprintln(out, renderCues(track.Cues, isTerminal(out)))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asVTT, "vtt", false, "Write the cues back as normalized WebVTT")
	return cmd
}

func readInput(stdin io.Reader, path string) (string, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

func renderCues(cues []subtitle.Cue, rounded bool) string {
	rows := make([][]string, 0, len(cues))
	for i, cue := range cues {
		rows = append(rows, []string{
			strconv.Itoa(i),
			subtitle.FormatTimestamp(cue.StartTime),
			subtitle.FormatTimestamp(cue.EndTime),
			truncate(subtitle.Clean(cue.Text), 60),
		})
	}
	return renderTable(
		[]string{"#", "Start", "End", "Text"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
		rounded,
	)
}
