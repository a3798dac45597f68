// Command maru is a terminal client for the maru restaurant
// recommendation chat service.
//
// Configuration comes from flags or MARU_* environment variables:
//
//	MARU_BASE_URL      Backend base URL (default http://localhost:8000)
//	MARU_EMAIL         Account email; with MARU_PASSWORD, logs in at startup
//	MARU_PASSWORD      Account password
//	MARU_LOCATION      Initial location for recommendations
//	MARU_SEND_TIMEOUT  Per-send deadline (default 60s)
//	MARU_DEBUG_LOG     Path to a debug log file (off when unset)
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/sejinpk/maru"
	"github.com/sejinpk/maru/api"
	bt "github.com/sejinpk/maru/bubbletea"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "maru: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("maru")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:          "maru",
		Short:        "맛집 추천 채팅 터미널 클라이언트",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), v)
		},
	}

	flags := cmd.Flags()
	flags.String("base-url", "http://localhost:8000", "backend base URL")
	flags.String("email", "", "account email (logs in at startup)")
	flags.String("password", "", "account password")
	flags.String("location", "", "initial location for recommendations")
	flags.Duration("send-timeout", maru.DefaultSendTimeout, "per-send deadline")
	flags.String("debug-log", "", "path to a debug log file")
	if err := v.BindPFlags(flags); err != nil {
		panic(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	cmd.SetContext(ctx)
	cmd.PersistentPostRun = func(*cobra.Command, []string) { stop() }

	return cmd
}

func run(ctx context.Context, v *viper.Viper) error {
	logger, err := newLogger(v.GetString("debug-log"))
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	client := api.New(v.GetString("base-url"))

	// Change notifications from the store drive TUI repaints. Buffered so
	// the store never blocks on a slow repaint; coalescing is fine because
	// the view re-reads the whole store on every signal.
	changes := make(chan struct{}, 64)
	store := maru.NewStore(client,
		maru.WithLogger(logger),
		maru.WithSendTimeout(v.GetDuration("send-timeout")),
		maru.WithOnChange(func() {
			select {
			case changes <- struct{}{}:
			default:
			}
		}),
	)

	account, err := authenticate(ctx, client, store, v.GetString("email"), v.GetString("password"))
	if err != nil {
		return err
	}

	if loc := v.GetString("location"); loc != "" {
		store.SetLocation(loc)
	}

	cfg := bt.Config{
		AccountName: account.Name,
		Changes:     changes,
	}
	m := bt.New(store, client, client, maru.DefaultTheme(), cfg)

	if err := bt.Run(ctx, m); err != nil {
		return fmt.Errorf("TUI: %w", err)
	}
	return nil
}

// authenticate establishes an authenticated session: explicit login when
// credentials were given, otherwise an existing ambient session must
// already be valid. A fresh login resets the store so nothing cached from
// a previous account survives.
func authenticate(ctx context.Context, client *api.Client, store *maru.Store, email, password string) (api.Account, error) {
	if email != "" {
		account, err := client.Login(ctx, email, password)
		if err != nil {
			return api.Account{}, fmt.Errorf("login: %w", err)
		}
		store.Reset()
		return account, nil
	}
	account, err := client.Status(ctx)
	if err != nil {
		return api.Account{}, fmt.Errorf("not logged in (set MARU_EMAIL and MARU_PASSWORD): %w", err)
	}
	return account, nil
}

func newLogger(path string) (*zap.Logger, error) {
	if path == "" {
		return zap.NewNop(), nil
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.OutputPaths = []string{path}
	cfg.ErrorOutputPaths = []string{path}
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("open debug log: %w", err)
	}
	return logger, nil
}
