package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"i4.energy/across/linkstation/at"
)

// atCmd represents the at command
var atCmd = &cobra.Command{
	Use:   "at <command>",
	Short: "Execute one AT command on the modem",
	Long: `Execute one AT command through the same gateway the server uses.

The device is resolved from the configured port and USB interface suffix,
and an I/O failure goes through the reconnect schedule before the command
is reported as failed. Do not run this while the server holds the port.

Example usage:
  linkstation at ATI
  linkstation at 'AT+QENG="servingcell"' --deadline 3s
  linkstation at AT+COPS? --plain`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		config, logger, err := setup(cmd)
		if err != nil {
			return err
		}
		plain, _ := cmd.Flags().GetBool("plain")

		m, err := newModem(cmd.Context(), config, logger)
		if err != nil {
			return err
		}
		defer m.Close()

		start := time.Now()
		lines, err := m.Execute(cmd.Context(), strings.TrimSpace(args[0]), 0)
		if err != nil {
			return fmt.Errorf("execute %s: %w", args[0], err)
		}

		if plain {
			for _, line := range lines {
				fmt.Println(line)
			}
		} else {
			renderResponse(os.Stdout, lines, m.Status().Device, time.Since(start))
		}
		if line, failed := at.Failed(lines); failed {
			return errors.New(line)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(atCmd)

	atCmd.Flags().BoolP("plain", "p", false, "Print the raw response lines without styling")
}

var (
	echoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
	dataStyle = lipgloss.NewStyle()
	urcStyle  = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))
	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("40")).
			Bold(true)
	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)
	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("99")).
			Bold(true)
)

// renderResponse prints the response lines styled by their kind, followed
// by a summary line.
func renderResponse(w io.Writer, lines []string, device string, elapsed time.Duration) {
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		fmt.Fprintln(w, styleFor(line).Render(line))
	}
	summary := fmt.Sprintf("%d line(s) from %s in %s", len(lines), device, elapsed.Round(time.Millisecond))
	fmt.Fprintln(w, infoStyle.Render(summary))
}

func styleFor(line string) lipgloss.Style {
	switch at.Classify(line) {
	case at.TypeEcho:
		return echoStyle
	case at.TypeURC:
		return urcStyle
	case at.TypeFinal:
		if _, failed := at.Failed([]string{line}); failed {
			return errorStyle
		}
		return successStyle
	default:
		return dataStyle
	}
}
