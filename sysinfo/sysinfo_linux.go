//go:build linux

package sysinfo

import (
	"math"
	"os"

	"golang.org/x/sys/unix"
)

const gib = 1 << 30

// CollectFrom gathers host metrics reading the files named in p.
func CollectFrom(p Paths) Info {
	info := baseInfo(p)

	var si unix.Sysinfo_t
	if err := unix.Sysinfo(&si); err == nil {
		uptime := int64(si.Uptime)
		info.UptimeSec = &uptime

		scale := float64(uint64(1) << unix.SI_LOAD_SHIFT)
		l1 := round2(float64(si.Loads[0]) / scale)
		l5 := round2(float64(si.Loads[1]) / scale)
		l15 := round2(float64(si.Loads[2]) / scale)
		info.Load1, info.Load5, info.Load15 = &l1, &l5, &l15

		unit := uint64(si.Unit)
		if unit == 0 {
			unit = 1
		}
		total := uint64(si.Totalram) * unit / 1024
		free := uint64(si.Freeram) * unit / 1024
		if f, err := os.Open(p.MemInfo); err == nil {
			if avail, ok := parseMemAvailable(f); ok {
				free = avail
			}
			f.Close()
		}
		used := total - min(free, total)
		info.MemTotal, info.MemUsed, info.MemFree = &total, &used, &free
	}

	var st unix.Statfs_t
	if err := unix.Statfs(p.Root, &st); err == nil {
		bsize := uint64(st.Bsize)
		total := round1(float64(st.Blocks*bsize) / gib)
		free := round1(float64(st.Bavail*bsize) / gib)
		used := round1(float64((st.Blocks-st.Bfree)*bsize) / gib)
		info.DiskTotal, info.DiskUsed, info.DiskFree = &total, &used, &free
	}

	if raw, err := os.ReadFile(p.Thermal); err == nil {
		if temp, ok := parseMilliCelsius(string(raw)); ok {
			info.SoCTempC = &temp
		}
	}
	return info
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
