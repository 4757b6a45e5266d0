package main

import (
	"fmt"
	"net"
	"net/http"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"pkt.systems/forgeview"
	"pkt.systems/forgeview/backend"
	"pkt.systems/forgeview/core"
	"pkt.systems/forgeview/internal/appconfig"
	"pkt.systems/forgeview/internal/mirror"
	"pkt.systems/forgeview/internal/mockbackend"
	"pkt.systems/forgeview/internal/previewchrome"
	"pkt.systems/forgeview/schema"
	"pkt.systems/forgeview/tui"
	"pkt.systems/pslog"
)

func newRunCmd() *cobra.Command {
	var cfgPath string
	var stack string
	var plain bool
	var useMock bool
	cmd := &cobra.Command{
		Use:   "run <project>",
		Short: "Build a project and attach the live preview",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := pslog.Ctx(cmd.Context())
			project := schema.ProjectID(args[0])
			if err := schema.ValidateProjectID(project); err != nil {
				return err
			}
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}

			baseURL := cfg.Backend.BaseURL
			if useMock {
				mockURL, stop, err := startInProcessMock(logger)
				if err != nil {
					return err
				}
				defer stop()
				baseURL = mockURL
				logger.Info("using in-process mock backend", "url", baseURL)
			}

			client, err := backend.NewClient(backend.Config{
				BaseURL: baseURL,
				Timeout: time.Duration(cfg.Backend.TimeoutSeconds) * time.Second,
				Logger:  logger,
			})
			if err != nil {
				return err
			}

			var target core.PreviewTarget
			switch cfg.Preview.Mode {
			case "chrome":
				viewport, err := previewchrome.New(cmd.Context(), previewchrome.Options{
					Headless: cfg.Preview.Headless,
					Logger:   logger,
				})
				if err != nil {
					return fmt.Errorf("launch preview browser: %w", err)
				}
				defer viewport.Close()
				target = viewport
			default:
				target = previewchrome.LogTarget{Logger: logger}
			}

			var artifacts *mirror.Mirror
			if cfg.Mirror.Enabled {
				artifacts, err = mirror.New(cfg.Mirror.Dir, client, logger)
				if err != nil {
					return err
				}
			}

			sink := tui.NewSink()
			engine, err := forgeview.New(forgeview.Options{
				Backend:       client,
				StreamBaseURL: baseURL,
				Target:        target,
				Sinks:         []core.EventSink{sink},
				Mirror:        artifacts,
				Config:        cfg.EngineSettings(),
				Logger:        logger,
			})
			if err != nil {
				return err
			}
			defer engine.Close()

			if artifacts != nil {
				watcher := mirror.NewWatcher(artifacts.ProjectDir(project), 0, engine.NotifyChange, logger)
				if err := watcher.Start(); err != nil {
					logger.Warn("mirror watch unavailable", "err", err)
				} else {
					defer watcher.Stop()
				}
			}

			if _, err := engine.Start(cmd.Context(), project, schema.TechStack(stack)); err != nil {
				return err
			}

			if plain {
				return runPlain(cmd, engine)
			}

			program := tea.NewProgram(tui.NewModel(engine, project),
				tea.WithAltScreen(),
				tea.WithContext(cmd.Context()),
			)
			sink.Attach(program)
			engine.RefreshFileTree()
			_, err = program.Run()
			return err
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "config file path")
	cmd.Flags().StringVar(&stack, "stack", "python-flask", "tech stack to generate")
	cmd.Flags().BoolVar(&plain, "plain", false, "log progress instead of the dashboard")
	cmd.Flags().BoolVar(&useMock, "mock", false, "run against an in-process mock backend")
	return cmd
}

// runPlain follows the build in the logs and exits when the pipeline
// reaches a terminal stage or the context ends.
func runPlain(cmd *cobra.Command, engine *forgeview.Engine) error {
	logger := pslog.Ctx(cmd.Context())
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	var last schema.ProgressSnapshot
	for {
		select {
		case <-cmd.Context().Done():
			return nil
		case <-ticker.C:
			snapshot := engine.Snapshot()
			if snapshot != last {
				logger.Info("build progress",
					"stage", snapshot.Stage,
					"percent", snapshot.ProgressPercent,
					"message", snapshot.Message,
				)
				last = snapshot
			}
			if snapshot.Stage == schema.StageReady {
				logger.Info("preview ready", "url", snapshot.PreviewURL)
				return nil
			}
			if snapshot.Stage == schema.StageFailed {
				if snapshot.MockMode {
					logger.Warn("build failed, mock mode available", "error", snapshot.Error)
				}
				return fmt.Errorf("build failed: %s", snapshot.Error)
			}
		}
	}
}

func startInProcessMock(logger pslog.Logger) (string, func(), error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, err
	}
	server := &http.Server{
		Handler:           mockbackend.New(mockbackend.Options{Logger: logger}).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() { _ = server.Serve(listener) }()
	stop := func() { _ = server.Close() }
	return "http://" + listener.Addr().String(), stop, nil
}
