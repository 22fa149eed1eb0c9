package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gamepilot/gamepilot/internal/config"
	"github.com/gamepilot/gamepilot/internal/events"
	"github.com/gamepilot/gamepilot/internal/httpapi"
	"github.com/gamepilot/gamepilot/internal/knowledge"
	"github.com/gamepilot/gamepilot/internal/loop"
	"github.com/gamepilot/gamepilot/internal/meta"
	"github.com/gamepilot/gamepilot/internal/metrics"
	"github.com/gamepilot/gamepilot/internal/modelstore"
	"github.com/gamepilot/gamepilot/internal/rl"
	"github.com/gamepilot/gamepilot/internal/sim"
	"github.com/gamepilot/gamepilot/internal/transfer"
)

var rootCmd = &cobra.Command{
	Use:   "gamepilot",
	Short: "Screen-observing game automation agent",
	Long: `Gamepilot watches a game, classifies what it sees, and chooses touch
actions with a family of reinforcement-learning algorithms plus a
meta-learning layer that picks among them.`,
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error; overrides LOG_LEVEL)")
	viper.BindPFlags(rootCmd.PersistentFlags())
	viper.SetEnvPrefix("GAMEPILOT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	rootCmd.AddCommand(runCmd, trainCmd, modelsCmd)

	trainCmd.Flags().Int("episodes", 100, "Training episodes")
	trainCmd.Flags().Int("max-steps", 50, "Maximum steps per episode")
	trainCmd.Flags().String("algorithm", "dqn", "Algorithm (dqn, ppo, sarsa, q-learning)")
	trainCmd.Flags().Bool("force-new", false, "Skip transfer seeding and existing models")
	trainCmd.Flags().Int64("seed", time.Now().UnixNano(), "Environment seed")

	modelsCmd.AddCommand(modelsListCmd, modelsDeleteCmd)
}

// resolveLogLevel picks the effective log level: the --log-level flag or the
// GAMEPILOT_LOG_LEVEL variable, via viper, win over the config value.
func resolveLogLevel(fallback string) string {
	if lvl := viper.GetString("log-level"); lvl != "" {
		return lvl
	}
	return fallback
}

func setupLogging(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the decision loop with the HTTP operator API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		setupLogging(resolveLogLevel(cfg.LogLevel))
		logger := log.Logger

		var storeOpts []modelstore.Option
		if cfg.Storage.StagedDelete {
			storeOpts = append(storeOpts, modelstore.WithStagedDelete())
		}
		store, err := modelstore.New(cfg.Storage.ModelDir, storeOpts...)
		if err != nil {
			return err
		}

		selector := meta.NewSelector()
		selector.SetAdaptive(cfg.Learning.AdaptiveParams)
		if cfg.Learning.PersistMetaState {
			if err := selector.LoadState(cfg.Storage.MetaStatePath); err != nil {
				logger.Warn().Err(err).Msg("could not restore meta-learner state")
			}
		}
		if cfg.Learning.ForcedAlgorithm >= 0 {
			selector.ForceAlgorithm(rl.Type(cfg.Learning.ForcedAlgorithm))
		}

		// The simulated game encodes one feature per tappable region, so the
		// state and action dimensionality coincide.
		game := sim.NewTargetGame(cfg.Loop.GameID, cfg.Learning.ActionSize, 50, time.Now().UnixNano())
		stateSize := game.ActionCount()

		manager := transfer.NewManager(store, nil)
		manager.RegisterGame(transfer.GameProfile{ID: cfg.Loop.GameID, Type: "tap-target"})
		for _, typ := range rl.Types() {
			algo, err := rl.New(typ)
			if err != nil {
				return err
			}
			if err := manager.InitializeWithTransfer(cfg.Loop.GameID, algo,
				stateSize, game.ActionCount(), cfg.Learning.TransferForceNew); err != nil {
				return fmt.Errorf("initialize %s: %w", typ, err)
			}
			if dqn, ok := algo.(*rl.DQN); ok {
				dqn.SampleWithoutReplacement(cfg.Learning.SampleWithoutRepl)
			}
			selector.Register(algo)
		}

		var publisher events.Publisher = events.NewObserverPublisher()
		if cfg.NATS.Enabled {
			natsPub, err := events.NewNATSPublisher(cfg.NATS.URL, cfg.NATS.Subject, logger)
			if err != nil {
				return fmt.Errorf("connect to NATS: %w", err)
			}
			defer natsPub.Close()
			publisher = natsPub
		}

		engine, err := loop.New(loop.Config{
			Mode:              loop.Mode(cfg.Loop.Mode),
			GameID:            cfg.Loop.GameID,
			CycleInterval:     cfg.Loop.CycleInterval,
			MinActionInterval: cfg.Loop.MinActionInterval,
			UserCooldown:      cfg.Loop.UserCooldown,
			RepeatCooldown:    cfg.Loop.RepeatCooldown,
			MaxSuggestions:    cfg.Loop.MaxSuggestions,
			AutosaveInterval:  cfg.Loop.AutosaveInterval,
		}, game, game, game, selector, store, knowledge.NewStore(), publisher,
			metrics.NewCollector(logger))
		if err != nil {
			return err
		}
		engine.AddSource(&loop.RuleSource{Width: 1080, Height: 1920})
		engine.AddSource(loop.NewPatternSource())

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		go func() {
			if err := engine.Run(ctx); err != nil && err != context.Canceled {
				logger.Error().Err(err).Msg("decision loop exited")
			}
		}()

		api := httpapi.NewServer(engine, store, &logger)
		srv := &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler:           api.Routes(),
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       cfg.Server.ReadTimeout,
			WriteTimeout:      cfg.Server.WriteTimeout,
		}

		done := make(chan struct{})
		go func() {
			logger.Info().Str("addr", srv.Addr).Msg("gamepilot HTTP server starting")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Fatal().Err(err).Msg("http server failed")
			}
			close(done)
		}()

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		logger.Info().Msg("shutdown signal received")
		cancel()

		if cfg.Learning.PersistMetaState {
			if err := selector.SaveState(cfg.Storage.MetaStatePath); err != nil {
				logger.Error().Err(err).Msg("could not persist meta-learner state")
			}
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown failed")
		}
		<-done
		logger.Info().Msg("gamepilot stopped")
		return nil
	},
}

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train an algorithm offline against the simulated environment",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		setupLogging(resolveLogLevel(cfg.LogLevel))

		name, _ := cmd.Flags().GetString("algorithm")
		episodes, _ := cmd.Flags().GetInt("episodes")
		maxSteps, _ := cmd.Flags().GetInt("max-steps")
		forceNew, _ := cmd.Flags().GetBool("force-new")
		seed, _ := cmd.Flags().GetInt64("seed")

		typ, err := parseAlgorithm(name)
		if err != nil {
			return err
		}

		store, err := modelstore.New(cfg.Storage.ModelDir)
		if err != nil {
			return err
		}
		manager := transfer.NewManager(store, nil)
		manager.RegisterGame(transfer.GameProfile{ID: cfg.Loop.GameID, Type: "tap-target"})

		algo, err := rl.New(typ)
		if err != nil {
			return err
		}
		if err := manager.InitializeWithTransfer(cfg.Loop.GameID, algo,
			cfg.Learning.ActionSize, cfg.Learning.ActionSize, forceNew); err != nil {
			return err
		}

		env := sim.NewTargetGame(cfg.Loop.GameID, cfg.Learning.ActionSize, maxSteps, seed)
		log.Info().
			Str("algorithm", typ.String()).
			Int("episodes", episodes).
			Msg("training started")

		avgReward, err := algo.Train(cmd.Context(), env, episodes, maxSteps)
		if err != nil {
			return err
		}
		if err := store.Save(cfg.Loop.GameID, algo); err != nil {
			return err
		}

		log.Info().
			Float32("avg_reward", avgReward).
			Float32("exploration", algo.ExplorationRate()).
			Msg("training complete, model saved")
		return nil
	},
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Inspect and manage persisted models",
}

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List games with persisted models",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		setupLogging(resolveLogLevel(cfg.LogLevel))

		store, err := modelstore.New(cfg.Storage.ModelDir)
		if err != nil {
			return err
		}
		games, err := store.ListGames()
		if err != nil {
			return err
		}
		for _, game := range games {
			typs, err := store.ListModels(game)
			if err != nil {
				continue
			}
			names := make([]string, 0, len(typs))
			for _, t := range typs {
				names = append(names, t.String())
			}
			fmt.Printf("%s: %v\n", game, names)
		}
		return nil
	},
}

var modelsDeleteCmd = &cobra.Command{
	Use:   "delete <game-id>",
	Short: "Delete all persisted models for a game",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		setupLogging(resolveLogLevel(cfg.LogLevel))

		var opts []modelstore.Option
		if cfg.Storage.StagedDelete {
			opts = append(opts, modelstore.WithStagedDelete())
		}
		store, err := modelstore.New(cfg.Storage.ModelDir, opts...)
		if err != nil {
			return err
		}
		if err := store.DeleteAll(args[0]); err != nil {
			return err
		}
		fmt.Printf("deleted models for %s\n", args[0])
		return nil
	},
}

func parseAlgorithm(name string) (rl.Type, error) {
	switch name {
	case "dqn":
		return rl.TypeDQN, nil
	case "ppo":
		return rl.TypePPO, nil
	case "sarsa":
		return rl.TypeSARSA, nil
	case "q-learning", "qlearning":
		return rl.TypeQLearning, nil
	default:
		return 0, fmt.Errorf("unknown algorithm %q", name)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
