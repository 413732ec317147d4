package deps

import (
	"os/exec"
	"strings"
)

// Status reports whether an external tool is present on this machine.
type Status struct {
	Name      string
	Installed bool
	Path      string
	Version   string
	Required  bool
}

// tool describes how to locate an external binary and read its version.
type tool struct {
	name        string
	versionFlag string
	required    bool
}

func check(t tool) Status {
	path, err := exec.LookPath(t.name)
	if err != nil {
		return Status{Name: t.name, Required: t.required}
	}

	status := Status{
		Name:      t.name,
		Installed: true,
		Path:      path,
		Required:  t.required,
	}

	// First line of version output is enough for a status report.
	out, err := exec.Command(path, t.versionFlag).Output()
	if err == nil {
		if line, _, _ := strings.Cut(string(out), "\n"); line != "" {
			status.Version = strings.TrimSpace(line)
		}
	}

	return status
}

// CheckFFmpeg reports the ffmpeg binary used for segment extraction.
func CheckFFmpeg() Status {
	return check(tool{name: "ffmpeg", versionFlag: "-version", required: true})
}

// CheckFFprobe reports the ffprobe binary used to measure upload duration.
func CheckFFprobe() Status {
	return check(tool{name: "ffprobe", versionFlag: "-version", required: true})
}

// CheckWhisperCLI reports the whisper.cpp binary. Only required when the
// transcription provider is whisper-cpp; cli overrides the binary name.
func CheckWhisperCLI(cli string) Status {
	if cli == "" {
		cli = "whisper-cli"
	}
	return check(tool{name: cli, versionFlag: "--version"})
}

// CheckAll runs every check relevant to the given provider.
func CheckAll(provider, whisperCLI string) []Status {
	statuses := []Status{CheckFFmpeg(), CheckFFprobe()}
	if provider == "whisper-cpp" {
		s := CheckWhisperCLI(whisperCLI)
		s.Required = true
		statuses = append(statuses, s)
	}
	return statuses
}

// Missing filters statuses down to required tools that are not installed.
func Missing(statuses []Status) []Status {
	var missing []Status
	for _, s := range statuses {
		if s.Required && !s.Installed {
			missing = append(missing, s)
		}
	}
	return missing
}
