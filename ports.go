package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"i4.energy/across/linkstation/modem"
)

// portsCmd represents the ports command
var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List candidate modem serial ports",
	Long: `List the serial device nodes the resolver would consider, with the
USB interface identity of each one. The node whose interface ends in the
configured suffix is marked as the AT port.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		config, _, err := setup(cmd)
		if err != nil {
			return err
		}

		rows, err := listPorts(modem.NewSysfsTopology(), config.Serial.Port, config.Serial.InterfaceSuffix)
		if err != nil {
			return fmt.Errorf("list ports: %w", err)
		}
		if len(rows) == 0 {
			fmt.Println("No serial ports found")
			return nil
		}
		renderPorts(os.Stdout, rows)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(portsCmd)
}

type portRow struct {
	Device    string
	Interface string
	Preferred bool
	Match     bool
}

func listPorts(topo modem.Topology, preferred, suffix string) ([]portRow, error) {
	nodes, err := topo.Candidates()
	if err != nil {
		return nil, err
	}
	rows := make([]portRow, 0, len(nodes))
	for _, node := range nodes {
		row := portRow{Device: node, Preferred: node == preferred}
		if id, ok := topo.InterfaceID(node); ok {
			row.Interface = id
			row.Match = suffix != "" && strings.HasSuffix(id, suffix)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// renderPorts renders the port list in a styled static table format
func renderPorts(w io.Writer, rows []portRow) {
	fmt.Fprintf(w, "Found %d serial port(s):\n\n", len(rows))

	portWidth := 15
	ifaceWidth := 20
	noteWidth := 20

	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("99")).
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("240")).
		PaddingBottom(1)

	cellStyle := lipgloss.NewStyle().
		PaddingRight(2)

	header := fmt.Sprintf("%-*s %-*s %-*s",
		portWidth, "Port",
		ifaceWidth, "Interface",
		noteWidth, "Note")
	fmt.Fprintln(w, headerStyle.Render(header))

	for _, r := range rows {
		iface := r.Interface
		if iface == "" {
			iface = "-"
		}
		var notes []string
		if r.Match {
			notes = append(notes, "AT port")
		}
		if r.Preferred {
			notes = append(notes, "configured")
		}
		row := fmt.Sprintf("%-*s %-*s %-*s",
			portWidth, r.Device,
			ifaceWidth, iface,
			noteWidth, strings.Join(notes, ", "))
		style := cellStyle
		if r.Match {
			style = successStyle.PaddingRight(2)
		}
		fmt.Fprintln(w, style.Render(row))
	}
}
