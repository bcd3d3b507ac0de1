package main

import (
	"encoding/hex"
	"os"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/scopewire/internal/observability"
	"github.com/danmuck/scopewire/payload"
)

const configPath = "scopectl.toml"

func main() {
	observability.InitLogger("scopectl")

	if len(os.Args) < 2 {
		log.Fatal().Msg("usage: scopectl <payload-file>")
	}
	path := os.Args[1]

	cfg, level, err := loadInspectConfig(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load scopectl config")
	}
	if level != "" {
		os.Setenv(observability.EnvLogLevel, level)
		observability.InitLogger("scopectl")
	}

	f, err := os.Open(path)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open payload file")
	}
	defer f.Close()

	p, err := payload.DecodeEnvelope(f)
	if err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("invalid payload envelope")
	}

	log.Info().
		Str("path", path).
		Int("namespaces", len(p.Header)).
		Int("body_bytes", len(p.Body)).
		Msg("envelope ok")

	ids := make([]payload.ID, 0, len(p.Header))
	for id := range p.Header {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		d := p.Header[id]
		event := log.Info().
			Int16("id", int16(id)).
			Str("uid", d.UID.String()).
			Str("label", d.Label)
		if cfg.ShowOrigin && d.Origin != "" {
			event = event.Str("origin", d.Origin)
		}
		event.Msg("namespace")
	}

	if cfg.PreviewBytes > 0 && len(p.Body) > 0 {
		n := min(cfg.PreviewBytes, len(p.Body))
		log.Info().Str("body_preview", hex.EncodeToString(p.Body[:n])).Msg("body")
	}
}
