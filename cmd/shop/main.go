package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"storefront/internal/appstate"
	"storefront/internal/client"
	"storefront/internal/localstore"
	"storefront/internal/logger"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"
)

const usage = `Usage: shop [flags] <command> [args]

Commands:
  register                      create an account
  login <email> <password>      sign in
  logout                        sign out and empty the cart
  whoami                        show the signed-in user
  profile                       update name, phone, address or password
  forgot-password               reset a password with the security answer
  categories                    list categories
  products [page]               list products, newest first
  show <slug>                   show one product
  search <keyword>              search names and descriptions
  add <slug>                    put a product in the cart
  remove <product-id>           take one entry out of the cart
  cart                          show the cart
  checkout                      pay for the cart
  orders                        list your orders

Flags:
`

func defaultStateDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "storefront")
	}
	return ".storefront"
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	_ = godotenv.Load(".env")

	fs := flag.NewFlagSet("shop", flag.ContinueOnError)
	apiURL := fs.String("api", envOr("SHOP_API_URL", "http://localhost:8080/api/v1"), "storefront API base URL")
	stateDir := fs.String("state-dir", envOr("SHOP_STATE_DIR", defaultStateDir()), "directory for the saved session and cart")
	verbose := fs.BoolP("verbose", "v", false, "log requests and state changes")
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		fs.PrintDefaults()
	}
	fs.SetInterspersed(false)

	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		os.Exit(2)
	}
	if fs.NArg() == 0 {
		fs.Usage()
		os.Exit(2)
	}

	log := logger.NewCLI(*verbose)
	defer log.Sync()

	store, err := localstore.NewFileStore(*stateDir)
	if err != nil {
		log.Fatal("Failed to open state directory", zap.String("dir", *stateDir), zap.Error(err))
	}

	state, err := appstate.Load(store, log)
	if err != nil {
		log.Fatal("Failed to load saved state", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := &shop{
		state:  state,
		api:    client.New(*apiURL, state.Session, client.WithLogger(log)),
		logger: log,
		out:    os.Stdout,
		in:     os.Stdin,
	}

	if err := app.run(ctx, fs.Arg(0), fs.Args()[1:]); err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) {
			fmt.Fprintf(os.Stderr, "error: %s\n", apiErr.Message)
		} else {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}
