package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/rocketscienceinc/caro/internal/config"
	"github.com/rocketscienceinc/caro/internal/console"
	"github.com/rocketscienceinc/caro/internal/repository"
	"github.com/rocketscienceinc/caro/internal/repository/storage"
	"github.com/rocketscienceinc/caro/internal/service"
	"github.com/rocketscienceinc/caro/internal/session"
	"github.com/rocketscienceinc/caro/internal/usecase"
	"github.com/rocketscienceinc/caro/transport"
	"github.com/rocketscienceinc/caro/transport/tcp"
	"github.com/rocketscienceinc/caro/transport/websocket"
)

var ErrAddrNotFound = errors.New("redis address string is empty")

// RunApp - runs the application until the user quits or a signal arrives.
func RunApp(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	go func() {
		select {
		case sig := <-sigs:
			log.Info("Received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return run(ctx, logger, conf, os.Stdin, os.Stdout)
}

func run(ctx context.Context, logger *slog.Logger, conf *config.Config, in io.Reader, out io.Writer) error {
	log := logger.With("component", "app")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var snapshots repository.SnapshotRepository
	if conf.Redis.Enabled {
		redisAddrString := conf.Redis.GetRedisAddr()
		if redisAddrString == "" {
			return ErrAddrNotFound
		}

		redisStorage, err := storage.NewRedisStorage(ctx, redisAddrString)
		if err != nil {
			return fmt.Errorf("could not connect to redis storage: %w", err)
		}

		defer func() {
			if err = redisStorage.Close(); err != nil {
				log.Error("could not close redis storage", "error", err)
			}
		}()

		snapshots = repository.NewSnapshotRepository(redisStorage.Connection, conf.Redis.SnapshotTTL)
	}

	bot := service.NewBotService()
	manager := usecase.NewGameManager(logger, bot, snapshots, usecase.Options{AIMoveDelay: conf.AIMoveDelay})

	managerDone := make(chan error, 1)
	go func() {
		managerDone <- manager.Run(ctx)
	}()

	if err := startGame(ctx, logger, conf, manager); err != nil {
		cancel()
		<-managerDone
		return err
	}

	consoleDone := make(chan error, 1)
	go func() {
		consoleDone <- console.New(logger, manager, bot, in, out, console.Options{AutoPlay: conf.AutoPlay}).Run(ctx)
	}()

	var err error
	select {
	case err = <-consoleDone:
		log.Info("Console closed, shutting down")
	case <-ctx.Done():
		log.Info("Application context canceled, shutting down")
	}

	cancel()

	if managerErr := <-managerDone; managerErr != nil {
		return fmt.Errorf("game manager error: %w", managerErr)
	}

	return err
}

// startGame - single player starts at once; host and join bring up a session and hand it to the manager.
func startGame(ctx context.Context, logger *slog.Logger, conf *config.Config, manager *usecase.GameManager) error {
	log := logger.With("component", "app")
	difficulty := conf.GetDifficulty()

	if conf.Mode == config.ModeSingle {
		return manager.StartSinglePlayer(ctx, difficulty)
	}

	tr, err := newTransport(logger, conf)
	if err != nil {
		return err
	}

	sess := session.New(logger, tr, session.Config{
		HeartbeatInterval: conf.Heartbeat.Interval,
		HeartbeatTimeout:  conf.Heartbeat.Timeout,
	})

	isHost := conf.Mode == config.ModeHost
	if isHost {
		addr, err := sess.Host(ctx)
		if err != nil {
			return fmt.Errorf("could not host a game: %w", err)
		}
		log.Info("Hosting game", "addr", addr, "transport", conf.Transport.Kind)
	} else {
		if err = sess.Join(ctx, conf.Transport.PeerAddr); err != nil {
			return fmt.Errorf("could not join a game: %w", err)
		}
		log.Info("Joining game", "addr", conf.Transport.PeerAddr, "transport", conf.Transport.Kind)
	}

	err = manager.AttachSession(ctx, sess, usecase.AttachOptions{
		IsHost:     isHost,
		Difficulty: difficulty,
		ResumeID:   conf.ResumeSessionID,
	})
	if err != nil {
		_ = sess.Close()
		return fmt.Errorf("could not attach session: %w", err)
	}

	return nil
}

func newTransport(logger *slog.Logger, conf *config.Config) (transport.Transport, error) {
	switch conf.Transport.Kind {
	case config.TransportTCP:
		return tcp.New(logger, conf.Transport.ListenAddr, conf.Transport.DialTimeout, conf.Transport.WriteTimeout), nil
	case config.TransportWebsocket:
		return websocket.New(logger, conf.Transport.ListenAddr, conf.Transport.DialTimeout, conf.Transport.WriteTimeout), nil
	default:
		return nil, fmt.Errorf("%w: unknown transport %q", config.ErrInvalidConfig, conf.Transport.Kind)
	}
}
