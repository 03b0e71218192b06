package platform

import (
	"context"
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v4/host"
)

// RealDetector implements Detector using the running process's GOOS/GOARCH.
type RealDetector struct {
	goos   string
	goarch string
}

// NewDetector creates a detector for the current process.
func NewDetector() Detector {
	return &RealDetector{goos: runtime.GOOS, goarch: runtime.GOARCH}
}

// NewDetectorFor creates a detector that reports the given GOOS/GOARCH pair
// instead of the running one. Distro lookup only happens when goos matches
// the host.
func NewDetectorFor(goos, goarch string) Detector {
	return &RealDetector{goos: goos, goarch: goarch}
}

// Detect validates OS and architecture and fills in Linux distro details.
//
// OS is checked before architecture so an unsupported OS is reported as
// such even on an unsupported CPU. If gopsutil fails to read the
// distribution, distro fields stay empty and detection still succeeds;
// a cancelled context is a hard failure.
func (d *RealDetector) Detect(ctx context.Context) (*Info, error) {
	info := &Info{
		OSRaw:   d.goos,
		ArchRaw: d.goarch,
	}

	osName, err := normalizeOS(d.goos)
	if err != nil {
		return nil, err
	}
	info.OS = osName

	arch, err := normalizeArch(d.goarch)
	if err != nil {
		return nil, err
	}
	info.Arch = arch

	if d.goos == "linux" && runtime.GOOS == "linux" {
		platform, family, version, err := host.PlatformInformationWithContext(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("platform detection cancelled: %w", ctx.Err())
			}
			return info, nil
		}

		platform = normalizePlatform(platform)
		if platform != "" {
			info.Platform = platform
			info.Family = mapFamily(family)
			info.Version = normalizePlatform(version)
		}
	}

	return info, nil
}
