package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/chzyer/readline"
	pathoram "github.com/etclab/pathoram-client"
	"github.com/etclab/pathoram-client/internal/config"
	"github.com/etclab/pathoram-client/internal/logging"
	"github.com/etclab/pathoram-client/leveldbstore"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run an interactive pathoram session.",
	Long: `Run an interactive pathoram session.

Every session starts with a fresh secret key and an empty tree; the
key and position map are never written anywhere. Commands:
` + help,
	RunE: runRun,
}

func init() {
	RootCmd.AddCommand(runCmd)
	runCmd.Flags().String("history", "", "File to keep command history in.")
}

func runRun(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("config")
	history, _ := cmd.Flags().GetString("history")

	conf, err := config.Load(path)
	if err != nil {
		return err
	}
	logger, err := logging.New(conf.Logger)
	if err != nil {
		return err
	}
	defer logger.Sync()

	client, closer, err := openClient(conf, logger)
	if err != nil {
		return err
	}
	defer closer.Close()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:      "pathoram> ",
		HistoryFile: history,
	})
	if err != nil {
		return fmt.Errorf("start readline: %w", err)
	}
	defer rl.Close()

	sh := newShell(client, rl.Stdout())
	fmt.Fprintf(rl.Stdout(), "Path ORAM: %d blocks of %d bytes, height %d, %d slots per bucket.\n",
		client.Capacity(), client.BlockSize(), client.Height(), client.BucketSize())
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		quit, err := sh.exec(line)
		if err != nil {
			logger.Error("session terminated", zap.Error(err))
			return err
		}
		if quit {
			return nil
		}
	}
}

// openClient builds the configured backend and a fresh client over it.
func openClient(conf *config.Config, logger *zap.Logger) (*pathoram.Client, io.Closer, error) {
	cfg, err := conf.PathORAM(logger)
	if err != nil {
		return nil, nil, err
	}
	geo, err := cfg.Geometry()
	if err != nil {
		return nil, nil, err
	}

	var storage pathoram.Storage
	closer := io.Closer(nopCloser{})
	switch conf.Storage.Backend {
	case config.BackendLevelDB:
		store, err := leveldbstore.Open(conf.Storage.Path, leveldbstore.Options{
			NumBuckets: geo.TreeSize,
			BucketSize: geo.BucketSize,
			SlotSize:   cfg.SlotSize(),
			Sync:       conf.Storage.Sync,
		})
		if err != nil {
			return nil, nil, err
		}
		storage, closer = store, store
	default:
		storage = pathoram.NewInMemoryStorage(geo.TreeSize, geo.BucketSize)
	}

	client, err := pathoram.NewClient(cfg, storage)
	if err != nil {
		closer.Close()
		return nil, nil, err
	}
	logger.Info("session started",
		zap.String("backend", conf.Storage.Backend),
		zap.Int("tree_size", geo.TreeSize))
	return client, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
