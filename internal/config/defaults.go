package config

import "runtime"

// PlatformDefaults holds values that differ between operating systems.
type PlatformDefaults struct {
	TargetsFile    string
	DefaultTargets []string
}

// GetPlatformDefaults returns platform-specific defaults based on runtime.GOOS.
func GetPlatformDefaults() PlatformDefaults {
	return platformDefaults(runtime.GOOS)
}

func platformDefaults(goos string) PlatformDefaults {
	switch goos {
	case "windows":
		return PlatformDefaults{
			TargetsFile: `conf\ServiceKeeper\services.txt`,
			// Print Spooler, SSDP Discovery.
			DefaultTargets: []string{"Spooler", "SSDPSRV"},
		}
	default:
		return PlatformDefaults{
			TargetsFile:    "conf/ServiceKeeper/services.txt",
			DefaultTargets: []string{},
		}
	}
}
