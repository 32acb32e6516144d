//go:build !linux

package sysinfo

// CollectFrom returns only the platform-independent fields.
func CollectFrom(p Paths) Info {
	return baseInfo(p)
}
