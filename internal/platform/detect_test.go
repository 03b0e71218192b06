package platform

import (
	"context"
	"errors"
	"runtime"
	"strings"
	"testing"
)

func TestRealDetector_Detect(t *testing.T) {
	info, err := NewDetector().Detect(context.Background())

	switch runtime.GOOS + "/" + runtime.GOARCH {
	case "linux/amd64", "linux/arm64", "darwin/amd64", "darwin/arm64":
	default:
		if err == nil {
			t.Fatalf("Detect() on %s/%s should fail", runtime.GOOS, runtime.GOARCH)
		}
		return
	}

	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if info.OS != runtime.GOOS {
		t.Errorf("OS = %v, want %v", info.OS, runtime.GOOS)
	}
	if info.ArchRaw != runtime.GOARCH {
		t.Errorf("ArchRaw = %v, want %v", info.ArchRaw, runtime.GOARCH)
	}
	if info.Platform != "" && info.Family == "" {
		t.Error("Family should be set when Platform is set")
	}
	if runtime.GOOS != "linux" && info.Platform != "" {
		t.Errorf("Platform should be empty on non-Linux, got %v", info.Platform)
	}
}

func TestDetectorFor(t *testing.T) {
	tests := []struct {
		name     string
		goos     string
		goarch   string
		want     string
		wantErr  error
		errMatch string
	}{
		{name: "darwin arm64", goos: "darwin", goarch: "arm64", want: "darwin/arm64"},
		{name: "linux amd64", goos: "linux", goarch: "amd64", want: "linux/amd64"},
		{name: "windows", goos: "windows", goarch: "amd64", wantErr: ErrUnsupportedPlatform, errMatch: "unsupported platform: windows"},
		{name: "linux riscv64", goos: "linux", goarch: "riscv64", wantErr: ErrUnsupportedArch, errMatch: "unsupported architecture: riscv64"},
		{name: "os checked first", goos: "plan9", goarch: "mips", wantErr: ErrUnsupportedPlatform},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := NewDetectorFor(tt.goos, tt.goarch).Detect(context.Background())
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Detect() error = %v, want %v", err, tt.wantErr)
				}
				if tt.errMatch != "" && !strings.Contains(err.Error(), tt.errMatch) {
					t.Errorf("error %q does not contain %q", err, tt.errMatch)
				}
				return
			}
			if err != nil {
				t.Fatalf("Detect() error = %v", err)
			}
			if info.String() != tt.want {
				t.Errorf("Detect() = %s, want %s", info, tt.want)
			}
		})
	}
}

func TestInfo_GetDistro(t *testing.T) {
	linux := &Info{OS: "linux", Arch: "amd64", Platform: "ubuntu", Family: FamilyDebian, Version: "22.04"}
	if d := linux.GetDistro(); d == nil || d.ID != "ubuntu" || d.Family != FamilyDebian || d.Version != "22.04" {
		t.Errorf("GetDistro() = %+v", d)
	}

	bare := &Info{OS: "linux", Arch: "arm64"}
	if d := bare.GetDistro(); d != nil {
		t.Errorf("GetDistro() without platform = %+v, want nil", d)
	}

	mac := &Info{OS: "darwin", Arch: "arm64", Platform: "darwin"}
	if d := mac.GetDistro(); d != nil {
		t.Errorf("GetDistro() on darwin = %+v, want nil", d)
	}
	if !mac.IsAppleSilicon() || mac.IsLinux() || !mac.IsMacOS() {
		t.Error("darwin/arm64 boolean helpers disagree")
	}
}
