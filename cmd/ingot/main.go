// Command ingot resolves free-form ticket references into normalized
// tickets from Jira, GitHub, Linear, Azure DevOps, Monday, and Trello.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/catherinevee/ingot/internal/cache"
	"github.com/catherinevee/ingot/internal/config"
	ingoterrors "github.com/catherinevee/ingot/internal/errors"
	"github.com/catherinevee/ingot/internal/logger"
	"github.com/catherinevee/ingot/internal/service"
	"github.com/catherinevee/ingot/internal/ticket"
)

// Exit codes, stable for scripting.
const (
	exitOK          = 0
	exitError       = 1
	exitUnsupported = 2
	exitNotFound    = 3
	exitCredentials = 4
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		usage()
		return exitError
	}
	switch args[0] {
	case "fetch":
		return cmdFetch(args[1:])
	case "cache":
		return cmdCache(args[1:])
	case "platforms":
		return cmdPlatforms()
	case "-h", "--help", "help":
		usage()
		return exitOK
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", args[0])
		usage()
		return exitError
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: ingot <command> [flags]

commands:
  fetch <ref>     resolve a ticket reference (URL, PROJ-123, owner/repo#42, ...)
  cache clear     drop the local file cache
  cache stats     show file cache statistics
  platforms       list supported platforms

fetch flags:
  --json          print the raw normalized JSON instead of a table
  --skip-cache    bypass the cache read (the result is still stored)
  --ttl <dur>     cache TTL override for this fetch (e.g. 30m)
  --timeout <dur> per-fetch budget (e.g. 90s)
  --config <path> config file (default ingot.yaml or $INGOT_CONFIG)`)
}

func cmdFetch(args []string) int {
	fs := flag.NewFlagSet("fetch", flag.ExitOnError)
	jsonOut := fs.Bool("json", false, "print raw JSON")
	skipCache := fs.Bool("skip-cache", false, "bypass the cache read")
	ttl := fs.Duration("ttl", 0, "cache TTL override")
	timeout := fs.Duration("timeout", 0, "per-fetch budget")
	configPath := fs.String("config", "", "config file path")
	_ = fs.Parse(args)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: ingot fetch [flags] <ref>")
		return exitError
	}
	input := fs.Arg(0)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fail(err)
	}
	initLogging(cfg)

	svc, err := service.Build(cfg, service.BuildOptions{})
	if err != nil {
		return fail(err)
	}
	defer svc.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	t, err := svc.GetTicket(ctx, input, service.GetOptions{
		SkipCache:   *skipCache,
		TTLOverride: *ttl,
		Timeout:     *timeout,
	})
	if err != nil {
		return fail(err)
	}

	if *jsonOut {
		data, err := json.MarshalIndent(t, "", "  ")
		if err != nil {
			return fail(err)
		}
		fmt.Println(string(data))
		return exitOK
	}
	printTicket(t)
	return exitOK
}

func cmdCache(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: ingot cache <clear|stats>")
		return exitError
	}
	fs := flag.NewFlagSet("cache", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path")
	_ = fs.Parse(args[1:])

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fail(err)
	}
	dir := cfg.Cache.Dir
	if dir == "" {
		dir = cache.DefaultDir()
	}
	fc, err := cache.NewFile(dir, cfg.Cache.TTL, cfg.Cache.MaxEntries)
	if err != nil {
		return fail(err)
	}

	switch args[0] {
	case "clear":
		n := fc.Size()
		fc.Clear()
		fmt.Printf("cleared %d cached tickets from %s\n", n, fc.Dir())
		return exitOK
	case "stats":
		fmt.Printf("directory: %s\nentries:   %d\n", fc.Dir(), fc.Size())
		return exitOK
	default:
		fmt.Fprintf(os.Stderr, "unknown cache subcommand %q\n", args[0])
		return exitError
	}
}

func cmdPlatforms() int {
	for _, name := range ticket.PlatformNames() {
		fmt.Println(name)
	}
	return exitOK
}

func printTicket(t *ticket.Ticket) {
	title := color.New(color.Bold)
	title.Printf("%s  %s\n", t.ID, t.Title)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Field", "Value"})
	table.SetBorder(false)
	table.SetColumnSeparator(" ")
	table.Append([]string{"Platform", t.Platform.String()})
	table.Append([]string{"Status", string(t.Status)})
	table.Append([]string{"Type", string(t.Type)})
	if t.Assignee != "" {
		table.Append([]string{"Assignee", t.Assignee})
	}
	if len(t.Labels) > 0 {
		table.Append([]string{"Labels", strings.Join(t.Labels, ", ")})
	}
	if t.URL != "" {
		table.Append([]string{"URL", t.URL})
	}
	table.Append([]string{"Branch", t.ID + "-" + t.BranchSummary()})
	if t.UpdatedAt != nil {
		table.Append([]string{"Updated", t.UpdatedAt.Local().Format(time.RFC1123)})
	}
	table.Render()
}

// fail prints a user-facing message for the error taxonomy and maps it to
// an exit code.
func fail(err error) int {
	red := color.New(color.FgRed)
	switch ingoterrors.KindOf(err) {
	case ingoterrors.KindUnsupportedInput, ingoterrors.KindUnsupportedPlatform:
		red.Fprintln(os.Stderr, "platform not supported")
		fmt.Fprintf(os.Stderr, "supported platforms: %s\n", strings.Join(ticket.PlatformNames(), ", "))
		return exitUnsupported
	case ingoterrors.KindPlatformNotFound:
		red.Fprintf(os.Stderr, "ticket not found: %v\n", err)
		return exitNotFound
	case ingoterrors.KindCredentialValidation:
		red.Fprintln(os.Stderr, "authentication not configured")
		fmt.Fprintf(os.Stderr, "%v\n", err)
		var ingotErr *ingoterrors.Error
		if errors.As(err, &ingotErr) && ingotErr.Hint != "" {
			fmt.Fprintf(os.Stderr, "hint: %s\n", ingotErr.Hint)
		}
		return exitCredentials
	default:
		red.Fprintf(os.Stderr, "fetch failed: %v\n", err)
		return exitError
	}
}

func initLogging(cfg *config.Config) {
	logger.Initialize(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
}
