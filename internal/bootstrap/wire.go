package bootstrap

import (
	"go.uber.org/zap"

	"yessir/internal/audio"
	"yessir/internal/backend"
	"yessir/internal/config"
	"yessir/internal/logging"
	"yessir/internal/ports"
	"yessir/internal/providers/deepgram"
	"yessir/internal/rules"
	"yessir/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Controller  *usecase.CommandController
	Cache       *usecase.LocalCache
	Backend     *backend.Client
	Transcriber ports.Transcriber
	Config      config.Config
	Logger      *zap.Logger

	closeLogs func()
}

// Close stops the controller and flushes logs.
func (s Services) Close() {
	if s.Controller != nil {
		s.Controller.Close()
	}
	if s.closeLogs != nil {
		s.closeLogs()
	}
}

// Build loads configuration and wires the runtime. A nil logger is built from
// the logging configuration.
func Build(logger *zap.Logger) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}
	return BuildWith(cfg, logger)
}

// BuildWith wires the runtime from an already resolved configuration.
func BuildWith(cfg config.Config, logger *zap.Logger) (Services, error) {
	if err := cfg.Validate(); err != nil {
		return Services{}, err
	}

	closeLogs := func() {}
	if logger == nil {
		built, closer, err := logging.New(cfg.Logging)
		if err != nil {
			return Services{}, err
		}
		logger, closeLogs = built, closer
	}

	rulesEngine, err := rules.Load(cfg.Rules.Path, cfg.Rules.IterationLimit, logger)
	if err != nil {
		closeLogs()
		return Services{}, err
	}

	client, err := backend.NewClient(backend.Config{
		URL:            cfg.Backend.URL,
		AuthToken:      cfg.Backend.AuthToken,
		Timeout:        cfg.Backend.Timeout,
		RawAudioUpload: cfg.Backend.RawAudioUpload,
	}, logger)
	if err != nil {
		closeLogs()
		return Services{}, err
	}

	var transcriber ports.Transcriber = client
	if cfg.Transcriber.Provider == config.TranscriberDeepgram {
		transcriber = deepgram.NewProvider(deepgram.Config{
			APIKey:      cfg.Deepgram.APIKey,
			APIBaseURL:  cfg.Deepgram.APIBaseURL,
			Model:       cfg.Deepgram.Model,
			Language:    cfg.Deepgram.Language,
			SmartFormat: cfg.Deepgram.SmartFormat,
			SampleRate:  cfg.Audio.SampleRate,
			Channels:    cfg.Audio.Channels,
		}, logger)
	}

	cache := usecase.NewLocalCache(client, client, logger)
	controller := usecase.NewCommandController(
		audio.NewFFMPEGCapture(cfg.Audio.RecorderCommand, logger),
		transcriber,
		client,
		rulesEngine,
		cache,
		logger,
		usecase.Config{
			Audio: ports.AudioConfig{
				SampleRate:  cfg.Audio.SampleRate,
				Channels:    cfg.Audio.Channels,
				InputFormat: cfg.Audio.InputFormat,
				InputDevice: cfg.Audio.InputDevice,
				TempDir:     cfg.Audio.TempDir,
			},
			Timezone: cfg.Command.Timezone,
			Email:    cfg.Command.Email,
		},
	)

	logger.Info("services ready",
		zap.String("transcriber", cfg.Transcriber.Provider),
		zap.Bool("rawAudioUpload", cfg.Backend.RawAudioUpload))

	return Services{
		Controller:  controller,
		Cache:       cache,
		Backend:     client,
		Transcriber: transcriber,
		Config:      cfg,
		Logger:      logger,
		closeLogs:   closeLogs,
	}, nil
}
