package system

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/KevinKickass/ecconf/internal/compiler"
	"github.com/KevinKickass/ecconf/internal/config"
	"github.com/KevinKickass/ecconf/internal/initcmds"
	"github.com/KevinKickass/ecconf/internal/interfaces"
	"github.com/KevinKickass/ecconf/internal/shm"
	"github.com/KevinKickass/ecconf/internal/slavetypes"
	"github.com/KevinKickass/ecconf/internal/status"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type LifecycleManager struct {
	config    *config.Config
	compiler  *compiler.Compiler
	publisher *shm.Publisher
	counters  *status.Counters
	logger    *zap.Logger

	statusServer *status.Server
	healthServer *status.HealthServer
	hub          *status.Hub
	stopHub      context.CancelFunc

	stateMu      sync.RWMutex
	currentState SystemState
	runID        uuid.UUID
	length       uint32
	lastErr      error
	published    bool

	shutdownOnce sync.Once
}

func NewLifecycleManager(cfg *config.Config, logger *zap.Logger) (*LifecycleManager, error) {
	types := slavetypes.NewRegistry()
	loader, err := slavetypes.NewLoader(cfg.SlaveTypes.SearchPaths, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create slave type loader: %w", err)
	}
	n, err := loader.LoadInto(types)
	if err != nil {
		return nil, fmt.Errorf("failed to load slave types: %w", err)
	}
	logger.Info("Slave types loaded", zap.Int("custom", n), zap.Int("total", len(types.Names())))

	baseDir := cfg.InitCmds.BaseDir
	if baseDir == "" {
		baseDir = filepath.Dir(cfg.Input)
	}

	counters := &status.Counters{}

	return &LifecycleManager{
		config: cfg,
		compiler: compiler.New(compiler.Options{
			Types:          types,
			Counters:       counters,
			InitCmds:       initcmds.NewLoader(baseDir, logger),
			ChunkSize:      cfg.Compiler.ChunkSize,
			MaxBufferBytes: cfg.Compiler.MaxBufferBytes,
			Logger:         logger,
		}),
		publisher:    shm.NewPublisher(cfg.Output.Path, logger),
		counters:     counters,
		logger:       logger,
		currentState: StateInitializing,
		runID:        uuid.New(),
	}, nil
}

// Start brings up the status endpoints, compiles the input and publishes
// the result. The endpoints run first so a slow compilation can be
// watched.
func (lm *LifecycleManager) Start(ctx context.Context) error {
	lm.logger.Info("Starting ecconf",
		zap.String("run_id", lm.runID.String()),
		zap.String("input", lm.config.Input),
		zap.String("output", lm.publisher.Path()))

	if lm.config.Status.HTTPPort > 0 {
		hub := status.NewHub(lm, lm.logger)
		hubCtx, cancel := context.WithCancel(context.Background())
		go hub.Run(hubCtx)
		lm.stateMu.Lock()
		lm.hub, lm.stopHub = hub, cancel
		lm.stateMu.Unlock()

		lm.statusServer = status.NewServer(lm.config, lm, lm.counters, hub, lm.logger)
		if err := lm.statusServer.Start(); err != nil {
			lm.setError(fmt.Errorf("failed to start status server: %w", err))
			return err
		}
	}

	if lm.config.Status.GRPCPort > 0 {
		health := status.NewHealthServer(lm.config.Status.GRPCPort, lm.logger)
		if err := health.Start(); err != nil {
			lm.setError(fmt.Errorf("failed to start health server: %w", err))
			return err
		}
		lm.stateMu.Lock()
		lm.healthServer = health
		lm.stateMu.Unlock()
	}

	lm.setState(StateCompiling)
	lm.counters.Reset()

	blob, err := lm.compile(ctx)
	if err != nil {
		lm.setError(err)
		return err
	}

	if _, err := lm.publisher.Publish(blob.Bytes()); err != nil {
		lm.setError(err)
		return err
	}

	lm.stateMu.Lock()
	lm.length = blob.Header.Length
	lm.published = true
	lm.stateMu.Unlock()
	lm.setState(StatePublished)

	lm.logger.Info("Configuration ready",
		zap.String("run_id", lm.runID.String()),
		zap.Int("masters", blob.Masters),
		zap.Int("slaves", blob.Slaves))
	return nil
}

func (lm *LifecycleManager) compile(ctx context.Context) (*compiler.Blob, error) {
	f, err := os.Open(lm.config.Input)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()

	blob, err := lm.compiler.Compile(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", lm.config.Input, err)
	}
	return blob, nil
}

// Shutdown stops the status server and withdraws the published image.
func (lm *LifecycleManager) Shutdown(ctx context.Context) error {
	var shutdownErr error

	lm.shutdownOnce.Do(func() {
		lm.logger.Info("Shutting down")
		lm.setState(StateStopping)

		if lm.statusServer != nil {
			shutdownCtx, cancel := context.WithTimeout(ctx, lm.shutdownTimeout())
			if err := lm.statusServer.Shutdown(shutdownCtx); err != nil {
				shutdownErr = fmt.Errorf("status server shutdown failed: %w", err)
			}
			cancel()
		}

		if lm.healthServer != nil {
			shutdownCtx, cancel := context.WithTimeout(ctx, lm.shutdownTimeout())
			if err := lm.healthServer.Shutdown(shutdownCtx); err != nil && shutdownErr == nil {
				shutdownErr = fmt.Errorf("health server shutdown failed: %w", err)
			}
			cancel()
		}

		lm.stateMu.RLock()
		published := lm.published
		lm.stateMu.RUnlock()
		if published {
			if err := lm.publisher.Remove(); err != nil && shutdownErr == nil {
				shutdownErr = err
			}
		}

		lm.setState(StateStopped)
		if lm.stopHub != nil {
			lm.stopHub()
		}
	})

	return shutdownErr
}

func (lm *LifecycleManager) shutdownTimeout() time.Duration {
	if d := lm.config.Status.ShutdownTimeout; d > 0 {
		return d
	}
	return 5 * time.Second
}

func (lm *LifecycleManager) setState(state SystemState) {
	lm.stateMu.Lock()
	defer lm.stateMu.Unlock()

	if err := ValidateTransition(lm.currentState, state); err != nil {
		lm.logger.Warn("Ignoring state change", zap.Error(err))
		return
	}
	prev := lm.currentState
	lm.currentState = state
	lm.notify(state, prev, nil)
}

func (lm *LifecycleManager) setError(err error) {
	lm.stateMu.Lock()
	defer lm.stateMu.Unlock()

	prev := lm.currentState
	lm.lastErr = err
	lm.currentState = StateError
	lm.notify(StateError, prev, err)
}

// notify must be called with stateMu held.
func (lm *LifecycleManager) notify(state, prev SystemState, err error) {
	if lm.hub != nil {
		lm.hub.Broadcast(status.NewStateMessage(state.String(), prev.String(), err))
	}
	if lm.healthServer != nil {
		lm.healthServer.SetServing(state == StatePublished)
	}
}

// State returns the current lifecycle state.
func (lm *LifecycleManager) State() SystemState {
	lm.stateMu.RLock()
	defer lm.stateMu.RUnlock()
	return lm.currentState
}

// GetCurrentStatus implements interfaces.LifecycleManager.
func (lm *LifecycleManager) GetCurrentStatus() interfaces.ConfStatus {
	lm.stateMu.RLock()
	defer lm.stateMu.RUnlock()

	st := interfaces.ConfStatus{
		State:       lm.currentState.String(),
		RunID:       lm.runID.String(),
		InputPath:   lm.config.Input,
		OutputPath:  lm.publisher.Path(),
		MasterCount: lm.counters.Masters(),
		SlaveCount:  lm.counters.Slaves(),
		Length:      lm.length,
		Timestamp:   time.Now().Unix(),
	}
	if lm.lastErr != nil {
		st.Error = lm.lastErr.Error()
	}
	return st
}
