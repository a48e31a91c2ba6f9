// Command roomadmin manages access codes and room archives out of band.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"text/tabwriter"
	"time"

	"github.com/dukerupert/listacompra/internal/archive"
	"github.com/dukerupert/listacompra/internal/config"
	"github.com/dukerupert/listacompra/internal/database"
	"github.com/dukerupert/listacompra/internal/firebase"
	"github.com/dukerupert/listacompra/internal/handler"
	"github.com/dukerupert/listacompra/internal/logging"
	"github.com/dukerupert/listacompra/internal/model"
	"github.com/dukerupert/listacompra/internal/store"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

const usage = `usage: roomadmin <command> [flags]

commands:
  create <code> [-inactive]   create a 4-digit access code
  activate <code>             allow logins with the code
  deactivate <code>           refuse logins with the code
  list                        list access codes
  supermarket-add <name>      add a supermarket to the reference list
  hash-password <password>    print a bcrypt hash for admin.passwordHash
  export -room <code>         upload an encrypted archive of the room
  exports -room <code>        list the room's archives
  fetch -room <code> -id <id> download and decrypt an archive to stdout
  cleanup -room <code>        delete archives past the retention period

The archive passphrase is read from -passphrase or LISTACOMPRA_ARCHIVE_PASSPHRASE.
`

var codePattern = regexp.MustCompile(`^[0-9]{4}$`)

type supermarketCreator interface {
	CreateSupermarket(ctx context.Context, name string) (*model.Supermarket, error)
}

type backend struct {
	codes        handler.CodeAdmin
	supermarkets supermarketCreator
	source       archive.RoomSource
	close        func()
}

type itemLister interface {
	ListItems(ctx context.Context, roomID string) ([]model.Item, error)
}

type priceLister interface {
	ListPrices(ctx context.Context, roomID string) ([]model.PriceEntry, error)
}

type roomSource struct {
	itemLister
	priceLister
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}

	if err := run(context.Background(), os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "roomadmin: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd string, args []string) error {
	if cmd == "hash-password" {
		if len(args) != 1 {
			return errors.New("hash-password takes exactly one argument")
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(args[0]), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		fmt.Println(string(hash))
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format).With("component", "roomadmin")

	b, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.close()

	switch cmd {
	case "create":
		fs := flag.NewFlagSet("create", flag.ExitOnError)
		inactive := fs.Bool("inactive", false, "create the code deactivated")
		code, err := codeArg(fs, args)
		if err != nil {
			return err
		}
		if existing, err := b.codes.GetCode(ctx, code); err != nil {
			return err
		} else if existing != nil {
			return fmt.Errorf("code %s already exists", code)
		}
		c, err := b.codes.CreateCode(ctx, code, !*inactive)
		if err != nil {
			return err
		}
		fmt.Printf("created %s (active=%t)\n", c.Code, c.IsActive())
	case "activate", "deactivate":
		code, err := codeArg(flag.NewFlagSet(cmd, flag.ExitOnError), args)
		if err != nil {
			return err
		}
		if err := b.codes.SetCodeActive(ctx, code, cmd == "activate"); err != nil {
			return err
		}
		fmt.Printf("%sd %s\n", cmd, code)
	case "list":
		codes, err := b.codes.ListCodes(ctx)
		if err != nil {
			return err
		}
		printCodes(codes)
	case "supermarket-add":
		if len(args) != 1 || args[0] == "" {
			return errors.New("supermarket-add takes exactly one name")
		}
		m, err := b.supermarkets.CreateSupermarket(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("added %s (%s)\n", m.Name, m.ID)
	case "export", "exports", "fetch", "cleanup":
		return runArchive(ctx, cmd, args, cfg, b, logger)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}

func runArchive(ctx context.Context, cmd string, args []string, cfg *config.Config, b *backend, logger *slog.Logger) error {
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	room := fs.String("room", "", "room code")
	id := fs.String("id", "", "export id")
	passphrase := fs.String("passphrase", os.Getenv("LISTACOMPRA_ARCHIVE_PASSPHRASE"), "archive passphrase")
	limit := fs.Int("limit", 20, "number of exports to list")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !codePattern.MatchString(*room) {
		return errors.New("-room must be a 4-digit code")
	}

	// The export log lives in the local database for every backend.
	db, err := database.Open(cfg.DB.Path)
	if err != nil {
		return fmt.Errorf("open export log: %w", err)
	}
	defer db.Close()

	mgr := archive.NewManager(cfg.Archive.S3, b.source, store.NewExportStore(db), logger)

	switch cmd {
	case "export":
		exp, err := mgr.Export(ctx, *room, *passphrase)
		if err != nil {
			return err
		}
		fmt.Printf("exported %s to %s (%d bytes)\n", exp.ID, exp.S3Key, exp.SizeBytes)
	case "exports":
		exports, err := mgr.List(ctx, *room, *limit)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATUS\tBYTES\tCREATED\tKEY")
		for _, e := range exports {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", e.ID, e.Status, e.SizeBytes, e.CreatedAt.Format(time.RFC3339), e.S3Key)
		}
		w.Flush()
	case "fetch":
		if *id == "" {
			return errors.New("-id is required")
		}
		doc, err := mgr.Fetch(ctx, *room, *id, *passphrase)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case "cleanup":
		n, err := mgr.Cleanup(ctx, *room, cfg.Archive.RetentionDays)
		if err != nil {
			return err
		}
		fmt.Printf("removed %d exports\n", n)
	}
	return nil
}

func codeArg(fs *flag.FlagSet, args []string) (string, error) {
	// Accept the code before or after the flags.
	var code string
	if len(args) > 0 && codePattern.MatchString(args[0]) {
		code, args = args[0], args[1:]
	}
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	if code == "" && fs.NArg() > 0 {
		code = fs.Arg(0)
	}
	if !codePattern.MatchString(code) {
		return "", errors.New("a 4-digit code is required")
	}
	return code, nil
}

func printCodes(codes []model.AccessCode) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CODE\tACTIVE\tLAST ACTIVE")
	for _, c := range codes {
		last := "-"
		if c.LastActive != nil {
			last = c.LastActive.Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s\t%t\t%s\n", c.Code, c.IsActive(), last)
	}
	w.Flush()
}

func openBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*backend, error) {
	switch cfg.Backend {
	case config.BackendFirestore:
		client, err := firebase.New(ctx, cfg.Firebase, logger)
		if err != nil {
			return nil, err
		}
		return &backend{
			codes:        client.Codes(),
			supermarkets: client.Supermarkets(),
			source:       roomSource{client.Items(), client.Prices()},
			close:        func() { client.Close() },
		}, nil
	default:
		db, err := database.Open(cfg.DB.Path)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		return &backend{
			codes:        store.NewCodeStore(db),
			supermarkets: store.NewSupermarketStore(db),
			source:       roomSource{store.NewItemStore(db), store.NewPriceStore(db)},
			close:        func() { db.Close() },
		}, nil
	}
}
