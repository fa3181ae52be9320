package console

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"cosmetic-picker/internal/config"
	"cosmetic-picker/internal/entity"
	"cosmetic-picker/internal/usecase"
	"cosmetic-picker/pkg/apperr"
	"cosmetic-picker/pkg/logg"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

var errExit = errors.New("exit")

type Interface struct {
	config     *config.Config
	logger     *zap.Logger
	usecase    *usecase.Service
	shutdowner fx.Shutdowner
	in         io.Reader
	out        io.Writer

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	stopping bool
}

type Params struct {
	fx.In

	Config     *config.Config
	Logger     *zap.Logger
	Usecase    *usecase.Service
	Shutdowner fx.Shutdowner `optional:"true"`
}

func NewInterface(params Params) *Interface {
	ctx, cancel := context.WithCancel(context.Background())

	return &Interface{
		config:     params.Config,
		logger:     params.Logger.With(zap.String(logg.Layer, "Console")),
		usecase:    params.Usecase,
		shutdowner: params.Shutdowner,
		in:         os.Stdin,
		out:        os.Stdout,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start runs the read-eval loop until exit or end of input, then asks the
// application to shut down.
func (i *Interface) Start() error {
	i.printBanner()
	i.printHelp()

	scanner := bufio.NewScanner(i.in)

	for !i.isStopping() {
		fmt.Fprint(i.out, "\n> ")

		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if err := i.handleCommand(input); err != nil {
			if errors.Is(err, errExit) {
				break
			}

			i.logger.Error("Command error", zap.Error(err))
			fmt.Fprintf(i.out, "❌ %v\n", err)
		}
	}

	if i.shutdowner != nil && !i.isStopping() {
		return i.shutdowner.Shutdown()
	}

	return scanner.Err()
}

// Stop cancels whatever command is running.
func (i *Interface) Stop() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.stopping {
		return nil
	}

	i.stopping = true
	i.logger.Info("Stopping console interface...")
	i.cancel()

	return nil
}

func (i *Interface) isStopping() bool {
	i.mu.Lock()
	defer i.mu.Unlock()

	return i.stopping
}

func (i *Interface) handleCommand(input string) error {
	fields := strings.Fields(input)
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "help", "h":
		i.printHelp()

		return nil
	case "exit", "quit", "q":
		fmt.Fprintln(i.out, "Shutting down...")

		return errExit
	case "open", "o":
		if len(args) != 1 {
			return fmt.Errorf("usage: open <url>")
		}

		return i.usecase.Filters.Open(i.ctx, args[0])
	case "pick", "add", "p":
		host := ""
		if len(args) > 0 {
			host = args[0]
		}

		return i.pick(host)
	case "list", "ls":
		i.printFilters(i.usecase.Filters.ListFilters())

		return nil
	case "rm":
		return i.remove(args)
	case "sync":
		n, err := i.usecase.Filters.Sync(i.ctx)
		fmt.Fprintf(i.out, "Installed %d userscript(s)\n", n)

		return err
	case "check":
		host := ""
		if len(args) > 0 {
			host = args[0]
		}

		return i.check(host)
	case "screenshot", "shot":
		path := ""
		if len(args) > 0 {
			path = args[0]
		}

		return i.usecase.Filters.Screenshot(i.ctx, path)
	case "page":
		return i.page()
	case "eval", "js":
		script := strings.TrimSpace(input[len(fields[0]):])
		if script == "" {
			return fmt.Errorf("usage: eval <javascript>")
		}

		return i.eval(script)
	default:
		return fmt.Errorf("unknown command %q, type help", cmd)
	}
}

func (i *Interface) pick(host string) error {
	fmt.Fprintln(i.out, "🎯 Click an element in the browser, Esc to cancel.")

	out, err := i.usecase.Filters.AddFilter(i.ctx, host)
	if err != nil {
		if apperr.Is(err, apperr.CodeCancelledByUser) {
			fmt.Fprintln(i.out, "Picker cancelled.")
			return nil
		}

		return err
	}

	switch {
	case out.Rule == nil:
		fmt.Fprintln(i.out, "Picker cancelled.")
	case out.Duplicate:
		fmt.Fprintf(i.out, "Rule already stored for %s: %s\n", out.Host, formatRule(*out.Rule))
	default:
		fmt.Fprintf(i.out, "✅ Saved for %s: %s\n", out.Host, formatRule(*out.Rule))
	}

	return nil
}

func (i *Interface) remove(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: rm <host> <index>")
	}

	index, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("index must be a number: %w", err)
	}

	removed, err := i.usecase.Filters.RemoveFilter(i.ctx, args[0], index)
	if err != nil {
		return err
	}
	fmt.Fprintf(i.out, "Removed from %s: %s\n", args[0], formatRule(removed))

	return nil
}

func (i *Interface) check(host string) error {
	host, reports, err := i.usecase.Filters.CheckActivePage(i.ctx, host)
	if err != nil {
		return err
	}

	fmt.Fprintf(i.out, "%s\n", host)
	PrintReports(i.out, reports)

	return nil
}

func (i *Interface) page() error {
	if !i.usecase.Browser.IsReady() {
		return apperr.WrapErrorWithReason("page", apperr.CodeBrowserNotReady, "browser_not_ready")
	}

	info, err := i.usecase.Browser.ActivePage(i.ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(i.out, "%s\n%s\n", info.Title, info.URL)

	return nil
}

func (i *Interface) eval(script string) error {
	if !i.usecase.Browser.IsReady() {
		return apperr.WrapErrorWithReason("eval", apperr.CodeBrowserNotReady, "browser_not_ready")
	}

	result, err := i.usecase.Browser.EvaluateJS(i.ctx, script)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fmt.Fprintf(i.out, "%v\n", result)
		return nil
	}
	fmt.Fprintf(i.out, "%s\n", out)

	return nil
}

func (i *Interface) printFilters(list []entity.HostFilters) {
	if len(list) == 0 {
		fmt.Fprintln(i.out, "No filters stored.")
		return
	}

	PrintFilters(i.out, list)
}

// PrintFilters writes the stored rules grouped by host with 1-based indexes.
func PrintFilters(w io.Writer, list []entity.HostFilters) {
	for _, hf := range list {
		fmt.Fprintf(w, "%s\n", hf.Host)
		for n, rule := range hf.Rules {
			fmt.Fprintf(w, "  %d. %s\n", n+1, formatRule(rule))
		}
	}
}

// PrintReports writes one line per checked rule.
func PrintReports(w io.Writer, reports []entity.RuleReport) {
	for _, r := range reports {
		status := fmt.Sprintf("%d match(es)", r.Matches)
		if r.Invalid {
			status = "invalid selector"
		}
		fmt.Fprintf(w, "  %d. %s  [%s]\n", r.Index, formatRule(r.Rule), status)
	}
}

func formatRule(rule entity.FilterRule) string {
	if rule.HasText == "" {
		return rule.Selector
	}

	return fmt.Sprintf("%s  has-text %q", rule.Selector, rule.HasText)
}

func (i *Interface) printBanner() {
	fmt.Fprintln(i.out, `
  cosmetic-picker
  Point at page elements, get cosmetic filters.`)
}

func (i *Interface) printHelp() {
	fmt.Fprintln(i.out, `
Available commands:
  open <url>           - Open a page in the active tab
  pick [host]          - Pick an element and save a filter (host defaults to the tab's)
  list, ls             - List stored filters
  rm <host> <index>    - Remove a filter (1-based index from list)
  sync                 - Reinstall the userscripts of every stored host
  check [host]         - Count what each stored filter hides on the current page
  screenshot [path]    - Save a screenshot of the active tab
  page                 - Show the active tab's title and URL
  eval <javascript>    - Evaluate an expression in the active tab
  help, h              - Show this help message
  exit, quit, q        - Exit the application`)
}
