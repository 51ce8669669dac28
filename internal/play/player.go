package play

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/audiolibrelab/wavrec/internal/config"
	"github.com/audiolibrelab/wavrec/internal/recorder"
)

// preferred audio players, in order
var players = []string{"aplay", "pw-play", "ffplay", "mpv", "vlc"}

type Player struct {
	cfg      *config.Config
	lookPath func(string) (string, error)
}

func New(cfg *config.Config) *Player {
	return &Player{cfg: cfg, lookPath: exec.LookPath}
}

// Resolve returns the recording path for name, using the same rules as
// recording does
func (p *Player) Resolve(name string) (string, error) {
	audioFile := recorder.ResolveDestination(name, p.cfg.Output.Directory)
	if _, err := os.Stat(audioFile); err != nil {
		return "", fmt.Errorf("audio file not found: %s", audioFile)
	}
	return audioFile, nil
}

func (p *Player) Play(name string) error {
	audioFile, err := p.Resolve(name)
	if err != nil {
		return err
	}

	player, err := p.findAudioPlayer()
	if err != nil {
		return fmt.Errorf("no suitable audio player found: %w", err)
	}

	slog.Info("Playing", "file", audioFile, "player", player)
	cmd := exec.Command(player, playerArgs(player, audioFile)...)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("playback failed with %s: %w", player, err)
	}

	slog.Info("Playback completed", "file", audioFile)
	return nil
}

func playerArgs(player, audioFile string) []string {
	switch player {
	case "vlc":
		return []string{"--play-and-exit", audioFile}
	case "mpv":
		return []string{"--no-video", audioFile}
	case "ffplay":
		return []string{"-nodisp", "-autoexit", audioFile}
	default:
		return []string{audioFile}
	}
}

func (p *Player) findAudioPlayer() (string, error) {
	for _, player := range players {
		if _, err := p.lookPath(player); err == nil {
			return player, nil
		}
	}

	return "", fmt.Errorf("no audio player found (tried: %s)", strings.Join(players, ", "))
}
