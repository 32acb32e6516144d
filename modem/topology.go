package modem

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
)

// Topology abstracts the OS device metadata the Resolver consults, so
// resolution can be exercised without real hardware.
type Topology interface {
	// Exists reports whether the device node is currently present.
	Exists(path string) bool
	// Candidates lists all candidate serial device nodes, sorted.
	Candidates() ([]string, error)
	// InterfaceID derives the USB interface identity (e.g. "2-1:1.2") of a
	// device node.
	InterfaceID(device string) (string, bool)
	// InterfaceNodes lists the device nodes advertised under a USB interface
	// identity, sorted. Nodes are not checked for existence.
	InterfaceNodes(id string) ([]string, error)
}

// interfacePattern matches a USB interface directory name: bus-port[.port]:config.interface
var interfacePattern = regexp.MustCompile(`^\d+-[\d.]+:\d+\.\d+$`)

// SysfsTopology reads USB topology from Linux sysfs.
type SysfsTopology struct {
	// DevDir holds device nodes, normally /dev.
	DevDir string
	// ClassDir holds tty class links, normally /sys/class/tty.
	ClassDir string
	// USBDir holds USB interface directories, normally /sys/bus/usb/devices.
	USBDir string
	// Pattern selects candidate tty names, normally ttyUSB*.
	Pattern string
}

// NewSysfsTopology returns a SysfsTopology rooted at the standard Linux
// locations.
func NewSysfsTopology() SysfsTopology {
	return SysfsTopology{
		DevDir:   "/dev",
		ClassDir: "/sys/class/tty",
		USBDir:   "/sys/bus/usb/devices",
		Pattern:  "ttyUSB*",
	}
}

func (s SysfsTopology) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (s SysfsTopology) Candidates() ([]string, error) {
	nodes, err := filepath.Glob(filepath.Join(s.DevDir, s.Pattern))
	if err != nil {
		return nil, err
	}
	sort.Strings(nodes)
	return nodes, nil
}

// InterfaceID resolves the tty class link of device and walks up the real
// sysfs path until it reaches the USB interface directory.
func (s SysfsTopology) InterfaceID(device string) (string, bool) {
	target, err := filepath.EvalSymlinks(filepath.Join(s.ClassDir, filepath.Base(device)))
	if err != nil {
		return "", false
	}
	for dir := target; dir != "/" && dir != "."; dir = filepath.Dir(dir) {
		if base := filepath.Base(dir); interfacePattern.MatchString(base) {
			return base, true
		}
	}
	return "", false
}

func (s SysfsTopology) InterfaceNodes(id string) ([]string, error) {
	entries, err := filepath.Glob(filepath.Join(s.USBDir, id, s.Pattern))
	if err != nil {
		return nil, err
	}
	sort.Strings(entries)
	nodes := make([]string, 0, len(entries))
	for _, e := range entries {
		nodes = append(nodes, filepath.Join(s.DevDir, filepath.Base(e)))
	}
	return nodes, nil
}
