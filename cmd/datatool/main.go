package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"booru_feed/internal/config"
	"booru_feed/internal/sanitize"
	"booru_feed/internal/state"
	"booru_feed/internal/storage"
)

func main() {
	_ = godotenv.Load()

	dbPath := flag.String("db", config.DatabasePath(), "path to sqlite database")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: datatool [-db path] <command> [file]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Commands:")
		fmt.Fprintln(os.Stderr, "  export [file]        Write the library as JSON (stdout by default)")
		fmt.Fprintln(os.Stderr, "  import <file>        Load an exported library")
		fmt.Fprintln(os.Stderr, "  import-posts <file>  Add posts from a provider JSON dump to favorites")
		fmt.Fprintln(os.Stderr, "  reset                Delete settings, filters, feeds and favorites")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Stop the bot before import, import-posts or reset: a running bot keeps its")
		fmt.Fprintln(os.Stderr, "own copy of the library and overwrites these changes on its next save.")
		fmt.Fprintln(os.Stderr, "Use /import and /reset in the chat while it runs.")
		os.Exit(1)
	}

	store, err := storage.NewSQLite(*dbPath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	lib, err := state.Load(ctx, store, slog.New(slog.NewTextHandler(os.Stderr, nil)))
	if err != nil {
		log.Fatalf("load library: %v", err)
	}

	cmd := args[0]
	switch cmd {
	case "export":
		err = export(lib, args[1:])
	case "import":
		err = withFile(args[1:], func(data []byte) error {
			return lib.Import(ctx, data)
		})
	case "import-posts":
		err = withFile(args[1:], func(data []byte) error {
			posts, err := sanitize.JSON(data)
			if err != nil {
				return err
			}
			n, err := lib.AddFavorites(ctx, posts)
			if err != nil {
				return err
			}
			fmt.Printf("added %d of %d posts to favorites\n", n, len(posts))
			return nil
		})
	case "reset":
		err = lib.Reset(ctx)
	default:
		log.Fatalf("unknown command: %s", cmd)
	}

	if err != nil {
		log.Fatalf("%s: %v", cmd, err)
	}
}

func export(lib *state.Library, args []string) error {
	data, err := lib.Export()
	if err != nil {
		return err
	}
	if len(args) == 0 {
		_, err = os.Stdout.Write(append(data, '\n'))
		return err
	}
	return os.WriteFile(args[0], data, 0o600)
}

// withFile reads the file named by args[0], or stdin when it is "-".
func withFile(args []string, fn func([]byte) error) error {
	if len(args) == 0 {
		return fmt.Errorf("file argument is required")
	}
	var (
		data []byte
		err  error
	)
	if args[0] == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	return fn(data)
}
