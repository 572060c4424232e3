package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-drift/locate/internal/config"
	"github.com/go-drift/locate/internal/host"
	"github.com/go-drift/locate/pkg/flow"
	"github.com/go-drift/locate/pkg/platform"
)

// checkTimeout bounds the single fix taken by check.
const checkTimeout = 15 * time.Second

func init() {
	RegisterCommand(&Command{
		Name:  "check",
		Short: "Show resolved settings, permissions and one fix",
		Long: `Resolve the configuration, print it with the status of every required
permission, and ask the configured source for a single fix.

With --request the missing permissions are requested on the terminal and
the answers are printed before the fix is taken.

Takes the same --config, --source, --codec, --log-level and --grant flags
as run.`,
		Usage: "locate check [--config PATH] [--source KIND] [--request]",
		Run:   runCheck,
	})
}

func runCheck(args []string) error {
	flags := newCommonFlags("check")
	var request bool
	flags.fs.BoolVar(&request, "request", false, "request missing permissions and wait for the answers")
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
	printResolved(os.Stdout, r)

	h := host.New(host.Options{Granted: r.Granted, Out: os.Stdout, Logger: logger})
	defer h.Close()
	platform.SetNativeBridge(h)
	defer platform.SetNativeBridge(nil)

	inputCtx, stopInput := context.WithCancel(context.Background())
	defer stopInput()
	if request {
		go func() { _ = h.ReadInput(inputCtx, os.Stdin) }()
	}
	if err := permissionReport(context.Background(), os.Stdout, r.Required, request); err != nil {
		return err
	}

	if !r.Source.Configured() {
		return fmt.Errorf("source %q is not configured", r.Source.Kind)
	}
	provider, err := r.Source.Provider()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
	defer cancel()
	fix, err := provider.Locate(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", provider.Name(), err)
	}
	fmt.Printf("Fix:          %s (±%gm via %s)\n", flow.FormatFix(fix), fix.Accuracy, fix.Provider)
	return nil
}

// permissionReport prints the status of each required permission. With
// request set, the missing ones are requested and the answers printed.
func permissionReport(ctx context.Context, out io.Writer, required []platform.PermissionID, request bool) error {
	var missing []platform.PermissionID
	for _, id := range required {
		status, err := platform.Permissions.Status(ctx, id)
		if err != nil {
			return fmt.Errorf("permission %s: %w", id, err)
		}
		fmt.Fprintf(out, "Permission:   %s %s\n", id, status)
		if status != platform.PermissionGranted {
			missing = append(missing, id)
		}
	}
	if !request || len(missing) == 0 {
		return nil
	}

	ev, err := platform.Permissions.RequestAndWait(ctx, flow.DefaultRequestCode, missing)
	if err != nil {
		return fmt.Errorf("permission request: %w", err)
	}
	for i, id := range ev.Permissions {
		answer := "denied"
		if i < len(ev.Granted) && ev.Granted[i] {
			answer = "granted"
		}
		fmt.Fprintf(out, "Answer:       %s %s\n", id, answer)
	}
	return nil
}

func printResolved(out io.Writer, r *config.Resolved) {
	perms := func(ids []string) string {
		if len(ids) == 0 {
			return "(none)"
		}
		return strings.Join(ids, ", ")
	}
	required := make([]string, len(r.Required))
	for i, id := range r.Required {
		required[i] = string(id)
	}
	granted := make([]string, len(r.Granted))
	for i, id := range r.Granted {
		granted[i] = string(id)
	}

	fmt.Fprintf(out, "App:          %s (%s)\n", r.AppName, r.AppID)
	fmt.Fprintf(out, "Config:       %s\n", r.Path)
	fmt.Fprintf(out, "Required:     %s\n", perms(required))
	fmt.Fprintf(out, "Granted:      %s\n", perms(granted))
	fmt.Fprintf(out, "Guard:        %s\n", r.Guard)
	fmt.Fprintf(out, "Updates:      every %dms (fastest %dms, %s)\n", r.Request.IntervalMs, r.Request.FastestIntervalMs, r.Request.Priority)
	fmt.Fprintf(out, "Source:       %s (configured: %t)\n", r.Source.Kind, r.Source.Configured())
	fmt.Fprintf(out, "Availability: %s\n", hostAvailability(r))
	fmt.Fprintf(out, "Codec:        %s\n", r.Codec)
}
