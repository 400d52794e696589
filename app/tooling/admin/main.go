// This program performs administrative tasks against the blocks a node
// has stored.
package main

import (
	"fmt"
	"os"

	"github.com/ardanlabs/edublock/app/tooling/admin/commands"
	"github.com/ardanlabs/edublock/foundation/blockchain/genesis"
	"github.com/ardanlabs/edublock/foundation/blockchain/storage"
	"github.com/ardanlabs/edublock/foundation/blockchain/storage/badger"
	"github.com/ardanlabs/edublock/foundation/blockchain/storage/disk"
	"github.com/ardanlabs/edublock/foundation/logger"
	"go.uber.org/zap"
)

func main() {

	// Construct the application logger.
	log, err := logger.New("ADMIN")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	// Perform the startup and shutdown sequence.
	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {
	genesisPath := env("ADMIN_GENESIS_PATH", "zblock/genesis.json")
	kind := env("ADMIN_STORAGE", "disk")
	dbPath := env("ADMIN_DB_PATH", "zblock/blocks/")

	if len(os.Args) < 2 {
		fmt.Println("verify: replay the stored blocks and validate the chain")
		fmt.Println("blocks <from> <to>: print the stored blocks")
		return nil
	}

	gen, err := genesis.Load(genesisPath)
	if err != nil {
		return fmt.Errorf("loading genesis: %w", err)
	}

	var strg storage.Storage
	switch kind {
	case "disk":
		strg, err = disk.New(dbPath)
	case "badger":
		strg, err = badger.New(badger.Config{Path: dbPath})
	default:
		err = fmt.Errorf("unknown storage %q", kind)
	}
	if err != nil {
		return err
	}
	defer strg.Close()

	log.Infow("admin", "command", os.Args[1], "storage", kind, "path", dbPath)

	return processCommands(os.Args, gen, strg)
}

// processCommands handles the execution of the commands specified on
// the command line.
func processCommands(args []string, gen genesis.Genesis, strg storage.Storage) error {
	switch args[1] {
	case "verify":
		if err := commands.Verify(gen, strg); err != nil {
			return fmt.Errorf("verifying chain: %w", err)
		}

	case "blocks":
		if err := commands.Blocks(args, strg); err != nil {
			return fmt.Errorf("listing blocks: %w", err)
		}

	default:
		return fmt.Errorf("unknown command %q", args[1])
	}

	return nil
}

// env returns the value of the environment variable or the default.
func env(key string, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
