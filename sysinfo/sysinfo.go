// Package sysinfo reports host metrics for the base info endpoint.
package sysinfo

import (
	"bufio"
	"io"
	"math"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// Info is a host metrics snapshot. Metrics the platform cannot provide
// are nil.
type Info struct {
	Hostname  string   `json:"hostname"`
	OSName    string   `json:"os_name"`
	OSVersion string   `json:"os_version"`
	Arch      string   `json:"arch"`
	UptimeSec *int64   `json:"uptime_sec"`
	Load1     *float64 `json:"load_1"`
	Load5     *float64 `json:"load_5"`
	Load15    *float64 `json:"load_15"`
	MemTotal  *uint64  `json:"mem_total_kb"`
	MemUsed   *uint64  `json:"mem_used_kb"`
	MemFree   *uint64  `json:"mem_free_kb"`
	DiskTotal *float64 `json:"disk_total_gb"`
	DiskUsed  *float64 `json:"disk_used_gb"`
	DiskFree  *float64 `json:"disk_free_gb"`
	SoCTempC  *float64 `json:"soc_temp_c"`
}

// Paths of the files read on Linux. Tests point them at fixtures.
type Paths struct {
	OSRelease string
	MemInfo   string
	Thermal   string
	Root      string
}

// DefaultPaths are the standard Linux locations.
var DefaultPaths = Paths{
	OSRelease: "/etc/os-release",
	MemInfo:   "/proc/meminfo",
	Thermal:   "/sys/class/thermal/thermal_zone0/temp",
	Root:      "/",
}

// Collect gathers host metrics from the default locations.
func Collect() Info {
	return CollectFrom(DefaultPaths)
}

func baseInfo(p Paths) Info {
	info := Info{OSName: runtime.GOOS, Arch: runtime.GOARCH}
	if host, err := os.Hostname(); err == nil {
		info.Hostname = host
	}
	if f, err := os.Open(p.OSRelease); err == nil {
		defer f.Close()
		if name, version := parseOSRelease(f); name != "" {
			info.OSName, info.OSVersion = name, version
		}
	}
	return info
}

// parseOSRelease returns NAME and VERSION_ID of an os-release file.
func parseOSRelease(r io.Reader) (string, string) {
	var name, version string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		key, value, ok := strings.Cut(sc.Text(), "=")
		if !ok {
			continue
		}
		value = strings.Trim(value, `"'`)
		switch key {
		case "NAME":
			name = value
		case "VERSION_ID":
			version = value
		}
	}
	return name, version
}

// parseMemAvailable returns MemAvailable in kB from /proc/meminfo.
func parseMemAvailable(r io.Reader) (uint64, bool) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) >= 2 && fields[0] == "MemAvailable:" {
			v, err := strconv.ParseUint(fields[1], 10, 64)
			return v, err == nil
		}
	}
	return 0, false
}

// parseMilliCelsius reads a thermal zone value. Zones reporting whole
// degrees are passed through.
func parseMilliCelsius(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	if v > 1000 {
		v /= 1000
	}
	return round1(v), true
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
