//go:build portaudio

package config

import (
	"github.com/tphakala/audiobridge/internal/audiocore"
	"github.com/tphakala/audiobridge/internal/audiocore/backends/portaudio"
)

func init() {
	RegisterBackend("portaudio", func() audiocore.Backend { return portaudio.New() })
}
