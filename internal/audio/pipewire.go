package audio

import (
	"fmt"
	"os/exec"
	"strings"
)

// PipeWire manages PipeWire port queries through pw-link
type PipeWire struct{}

// NewPipeWire creates a new PipeWire instance
func NewPipeWire() *PipeWire {
	return &PipeWire{}
}

// ListPorts returns all output ports known to PipeWire
func (pw *PipeWire) ListPorts() ([]string, error) {
	cmd := exec.Command("pw-link", "-o")
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("failed to list PipeWire ports: %w", err)
	}
	return parsePortList(string(output)), nil
}

func parsePortList(output string) []string {
	var ports []string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "Input ports:") && !strings.HasPrefix(line, "Output ports:") {
			ports = append(ports, line)
		}
	}
	return ports
}

// ListTargets returns the nodes that expose monitor ports, i.e. the sinks
// whose output can be recorded
func (pw *PipeWire) ListTargets() ([]string, error) {
	ports, err := pw.ListPorts()
	if err != nil {
		return nil, err
	}
	return monitorTargetsInList(ports), nil
}

func monitorTargetsInList(ports []string) []string {
	seen := make(map[string]bool)
	var targets []string
	for _, port := range ports {
		node, name, ok := strings.Cut(port, ":")
		if !ok || !strings.HasPrefix(name, "monitor_") || seen[node] {
			continue
		}
		seen[node] = true
		targets = append(targets, node)
	}
	return targets
}

// ValidateTarget checks that a sink exists and that its ports are not
// ambiguous
func (pw *PipeWire) ValidateTarget(target string) error {
	if target == "" {
		return nil
	}

	ports, err := pw.ListPorts()
	if err != nil {
		return fmt.Errorf("failed to check target: %w", err)
	}
	return pw.validateTargetInList(target, ports)
}

func (pw *PipeWire) validateTargetInList(target string, allPorts []string) error {
	if target == "" {
		return nil
	}

	var targetPorts []string
	for _, port := range allPorts {
		if strings.HasPrefix(port, target+":") {
			targetPorts = append(targetPorts, port)
		}
	}
	if len(targetPorts) == 0 {
		return fmt.Errorf("target not found: %s", target)
	}

	duplicates := pw.findPortDuplicatesInList(targetPorts[0], allPorts)
	if len(duplicates) > 1 {
		return fmt.Errorf("duplicate sources detected for '%s': %v. Please close conflicting applications", target, duplicates)
	}
	return nil
}

// findPortDuplicatesInList finds all ports with exactly the same name
func (pw *PipeWire) findPortDuplicatesInList(portName string, allPorts []string) []string {
	var duplicates []string
	for _, port := range allPorts {
		if port == portName {
			duplicates = append(duplicates, port)
		}
	}

	return duplicates
}

// pwFormatName maps an encoding to the pw-record --format value
func pwFormatName(e Encoding) (string, error) {
	switch e {
	case EncodingInt16:
		return "s16", nil
	case EncodingInt24:
		return "s24", nil
	case EncodingInt32:
		return "s32", nil
	case EncodingFloat32:
		return "f32", nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, e)
	}
}

// buildRecordArgs builds the pw-record command line that writes raw
// interleaved frames of format to stdout
func buildRecordArgs(format Format, target string) ([]string, error) {
	pwFormat, err := pwFormatName(format.Encoding)
	if err != nil {
		return nil, err
	}

	args := []string{
		"--raw",
		"-P", "{ stream.capture.sink = true }",
		"--rate", fmt.Sprintf("%d", format.SampleRate),
		"--channels", fmt.Sprintf("%d", format.Channels),
		"--format", pwFormat,
	}
	if target != "" {
		args = append(args, "--target", target)
	}
	return append(args, "-"), nil
}
