package cmd

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-drift/locate/internal/host"
	"github.com/go-drift/locate/pkg/flow"
	"github.com/go-drift/locate/pkg/platform"
)

// shutdownTimeout bounds releasing the subscription on exit.
const shutdownTimeout = 2 * time.Second

func init() {
	RegisterCommand(&Command{
		Name:  "run",
		Short: "Run the location screen in the terminal",
		Long: `Run the location screen against the terminal host.

The screen checks the required permissions and asks for missing ones,
checks that the location source is available, then shows the last known
position followed by live updates.

While running, type:
  pause | resume            send the screen to the background and back
  revoke fine|coarse        withdraw a permission
  grant fine|coarse         grant a permission
  quit                      exit

Flags:
  --config PATH      configuration file (default: locate.yaml)
  --source KIND      static, nmea, google or chain
  --codec NAME       json or cbor
  --log-level LEVEL  trace, debug, info, warn or error
  --grant PERM       permission granted at start; repeatable
  --for DURATION     exit after DURATION
  --verbose          include stack traces in error logs`,
		Usage: "locate run [--config PATH] [--source KIND] [--codec NAME] [--log-level LEVEL] [--grant PERM]... [--for DURATION]",
		Run:   runRun,
	})
}

func runRun(args []string) error {
	flags := newCommonFlags("run")
	var runFor time.Duration
	flags.fs.DurationVar(&runFor, "for", 0, "exit after this long (0 runs until quit)")
	if err := flags.parse(args); err != nil {
		return err
	}

	r, err := flags.resolve()
	if err != nil {
		return err
	}
	logger, err := setup(r)
	if err != nil {
		return err
	}
	provider, err := r.Source.Provider()
	if err != nil {
		return fmt.Errorf("location source: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if runFor > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, runFor)
		defer cancel()
	}

	h := host.New(host.Options{
		Provider:     provider,
		Granted:      r.Granted,
		Availability: hostAvailability(r),
		Out:          os.Stdout,
		Logger:       logger,
	})
	defer h.Close()

	// The loop outlives ctx so the flow can be closed on it at shutdown.
	loopCtx, stopLoop := context.WithCancel(context.Background())
	defer stopLoop()
	loop := host.NewLoop()
	platform.RegisterDispatch(loop.Post)
	go loop.Run(loopCtx)

	platform.SetNativeBridge(h)
	defer platform.SetNativeBridge(nil)

	f := flow.New(flow.PlatformDeps(nil), r.FlowOptions(logger))
	unbind := flow.Bind(loopCtx, f)
	defer unbind()

	logger.Info().
		Str("app", r.AppName).
		Str("source", provider.Name()).
		Str("codec", r.Codec).
		Stringer("guard", r.Guard).
		Msg("starting")

	loop.Post(func() {
		f.Start(loopCtx)
		if platform.Lifecycle.IsResumed() {
			f.OnResume(loopCtx)
		}
	})

	err = h.ReadInput(ctx, os.Stdin)
	if stderrors.Is(err, io.EOF) {
		// No more input; keep showing updates until interrupted.
		<-ctx.Done()
		err = nil
	}

	// An open dialog would keep the UI loop busy past the timeout.
	h.CancelPrompts()
	closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if syncErr := loop.Sync(closeCtx, func() { f.Close(loopCtx) }); syncErr != nil {
		logger.Warn().Err(syncErr).Msg("flow did not close in time")
	}
	logger.Info().Stringer("state", f.State()).Msg("stopped")
	return err
}
