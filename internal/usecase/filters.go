package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"cosmetic-picker/internal/config"
	"cosmetic-picker/internal/dom/snapshot"
	"cosmetic-picker/internal/entity"
	"cosmetic-picker/internal/filters"
	"cosmetic-picker/internal/picker"
	"cosmetic-picker/internal/ports"
	"cosmetic-picker/pkg/apperr"
	"cosmetic-picker/pkg/logg"
	"cosmetic-picker/pkg/tracing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	filterServiceName = "FilterService"
	filterTracer      = "usecase.filters"
)

var errPageNavigated = errors.New("page navigated away while picking")

type FilterService struct {
	config  *config.Config
	logger  *zap.Logger
	browser ports.BrowserManager
	store   ports.FilterStore
	tracer  trace.Tracer
}

type FilterServiceParams struct {
	fx.In

	Config  *config.Config
	Logger  *zap.Logger
	Browser ports.BrowserManager
	Store   ports.FilterStore
}

func NewFilterService(params FilterServiceParams) *FilterService {
	return &FilterService{
		config:  params.Config,
		logger:  params.Logger.With(zap.String(logg.Layer, filterServiceName)),
		browser: params.Browser,
		store:   params.Store,
		tracer:  otel.Tracer(filterTracer),
	}
}

// AddFilter runs the picker on the active tab and stores the confirmed rule
// for hostOverride, or for the tab's host when the override is empty. A nil
// outcome rule means the user cancelled.
func (s *FilterService) AddFilter(ctx context.Context, hostOverride string) (out *entity.PickerOutcome, err error) {
	const op = "AddFilter"
	logger := s.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, s.tracer, logger, op)
	defer func() {
		step.End(err)
	}()

	if !s.browser.IsReady() {
		return nil, apperr.WrapErrorWithReason(op, apperr.CodeBrowserNotReady, "browser_not_ready")
	}

	page, err := s.browser.ActivePage(ctx)
	if err != nil {
		return nil, err
	}

	host := strings.TrimSpace(hostOverride)
	if host == "" {
		host = HostOf(page.URL)
	}
	if host == "" {
		return nil, apperr.InvalidReqError(op, "host", fmt.Errorf("cannot determine host from %q, pass one explicitly", page.URL))
	}
	logger = logger.With(zap.String(logg.Host, host))
	step.SetAttributes(attribute.String("host", host))

	doc, err := s.browser.NewPickerHost(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := doc.Close(); cerr != nil {
			logger.Debug("Picker host close failed", zap.Error(cerr))
		}
	}()

	started := time.Now()
	session, err := picker.Start(doc,
		picker.WithLogger(s.logger),
		picker.WithStrictness(s.config.PickerConfig.DefaultStrictness),
		picker.WithTextSuggestionMax(s.config.PickerConfig.TextSuggestionMax),
	)
	if err != nil {
		return nil, apperr.Wrap(op, apperr.CodeActionFailed, err, map[string]any{
			apperr.MetaStage: apperr.StagePicker,
			apperr.MetaHost:  host,
		})
	}
	logger = logger.With(zap.String(logg.SessionID, session.ID()))
	logger.Info("Picker started", zap.String(logg.URL, page.URL))

	out = &entity.PickerOutcome{SessionID: session.ID(), Host: host}

	rule, err := waitSession(ctx, session, doc.Gone())
	out.Elapsed = time.Since(started)
	switch {
	case errors.Is(err, errPageNavigated):
		logger.Info("Picker abandoned, page navigated")
		return out, nil
	case err != nil:
		return nil, apperr.Wrap(op, apperr.CodeCancelledByUser, err, map[string]any{
			apperr.MetaStage:  apperr.StagePicker,
			apperr.MetaReason: "context_cancelled",
		})
	case rule == nil:
		logger.Info("Picker cancelled")
		return out, nil
	}

	if rule.Selector == "" {
		return out, apperr.InvalidReqError(op, "selector", errors.New("empty selector, aborted"))
	}
	if !filters.ValidSelector(rule.Selector) {
		return out, apperr.InvalidReqError(op, "selector", fmt.Errorf("%q is not a valid CSS selector", rule.Selector))
	}
	out.Rule = rule

	if _, err := s.store.Append(host, *rule); err != nil {
		if errors.Is(err, filters.ErrDuplicate) {
			logger.Info("Rule already stored", zap.String(logg.Selector, rule.Selector))
			out.Duplicate = true
			return out, nil
		}
		return nil, err
	}

	if err := s.store.Save(); err != nil {
		return nil, err
	}
	out.Saved = true

	if err := s.installHost(ctx, op, host); err != nil {
		return out, err
	}

	if err := s.browser.Reload(ctx); err != nil {
		return out, err
	}

	logger.Info("Rule saved",
		zap.String(logg.Selector, rule.Selector),
		zap.String("has_text", rule.HasText),
		zap.Duration("elapsed", out.Elapsed))

	return out, nil
}

// waitSession waits for the session, abandoning it if the page goes away.
func waitSession(ctx context.Context, session *picker.Session, gone <-chan struct{}) (*entity.FilterRule, error) {
	select {
	case <-session.Done():
		return session.Result(), nil
	case <-gone:
		session.Cancel()
		return nil, errPageNavigated
	case <-ctx.Done():
		session.Cancel()
		return nil, ctx.Err()
	}
}

func (s *FilterService) ListFilters() []entity.HostFilters {
	hosts := s.store.Hosts()
	out := make([]entity.HostFilters, 0, len(hosts))
	for _, host := range hosts {
		out = append(out, entity.HostFilters{Host: host, Rules: s.store.Rules(host)})
	}

	return out
}

// RemoveFilter deletes the index-th (1-based) rule of host and refreshes the
// host's userscript when a browser is running.
func (s *FilterService) RemoveFilter(ctx context.Context, host string, index int) (removed entity.FilterRule, err error) {
	const op = "RemoveFilter"
	logger := s.logger.With(zap.String(logg.Operation, op), zap.String(logg.Host, host), zap.Int("index", index))

	ctx, step := tracing.StartSpan(ctx, s.tracer, logger, op,
		attribute.String("host", host), attribute.Int("index", index))
	defer func() {
		step.End(err)
	}()

	removed, remaining, err := s.store.Remove(host, index)
	if err != nil {
		return entity.FilterRule{}, err
	}

	if err := s.store.Save(); err != nil {
		return entity.FilterRule{}, err
	}
	logger.Info("Rule removed", zap.String(logg.Selector, removed.Selector), zap.Int("remaining", remaining))

	if !s.browser.IsReady() {
		return removed, nil
	}

	if remaining == 0 {
		err = s.browser.RemoveUserScript(ctx, filters.ScriptID(host))
	} else {
		err = s.installHost(ctx, op, host)
	}

	return removed, err
}

// Sync installs the userscript of every stored host into the running browser.
func (s *FilterService) Sync(ctx context.Context) (installed int, err error) {
	const op = "Sync"
	logger := s.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, s.tracer, logger, op)
	defer func() {
		step.End(err)
	}()

	if !s.browser.IsReady() {
		return 0, apperr.WrapErrorWithReason(op, apperr.CodeBrowserNotReady, "browser_not_ready")
	}

	for _, host := range s.store.Hosts() {
		if ierr := s.installHost(ctx, op, host); ierr != nil {
			err = multierr.Append(err, ierr)
			continue
		}
		installed++
	}
	step.SetAttributes(attribute.Int("installed", installed))
	logger.Info("Userscripts synced", zap.Int("installed", installed))

	return installed, err
}

// CheckFilters evaluates the stored rules of host against an HTML snapshot.
func (s *FilterService) CheckFilters(host, html string) (reports []entity.RuleReport, err error) {
	const op = "CheckFilters"
	logger := s.logger.With(zap.String(logg.Operation, op), zap.String(logg.Host, host))

	_, step := tracing.StartSpan(context.Background(), s.tracer, logger, op, attribute.String("host", host))
	defer func() {
		step.End(err)
	}()

	rules := s.store.Rules(host)
	if len(rules) == 0 {
		return nil, apperr.NotFoundError(op, fmt.Errorf("no rules stored for %q", host))
	}

	doc, err := snapshot.ParseString(html)
	if err != nil {
		return nil, apperr.InvalidReqError(op, "html", err)
	}

	reports = make([]entity.RuleReport, 0, len(rules))
	for i, rule := range rules {
		eval := picker.Evaluate(doc, picker.EvalInput{Selector: rule.Selector, Predicate: rule.HasText})
		reports = append(reports, entity.RuleReport{
			Index:   i + 1,
			Rule:    rule,
			Matches: len(eval.Matches),
			Invalid: eval.InvalidSelector,
		})
	}

	return reports, nil
}

// CheckActivePage runs CheckFilters against the active tab's current markup.
func (s *FilterService) CheckActivePage(ctx context.Context, hostOverride string) (string, []entity.RuleReport, error) {
	const op = "CheckActivePage"

	if !s.browser.IsReady() {
		return "", nil, apperr.WrapErrorWithReason(op, apperr.CodeBrowserNotReady, "browser_not_ready")
	}

	page, err := s.browser.ActivePage(ctx)
	if err != nil {
		return "", nil, err
	}

	host := strings.TrimSpace(hostOverride)
	if host == "" {
		host = HostOf(page.URL)
	}

	html, err := s.browser.Content(ctx)
	if err != nil {
		return host, nil, err
	}

	reports, err := s.CheckFilters(host, html)

	return host, reports, err
}

// RenderScript returns the userscript that would be installed for host.
func (s *FilterService) RenderScript(host string) (string, error) {
	const op = "RenderScript"

	rules := s.store.Rules(host)
	if len(rules) == 0 {
		return "", apperr.NotFoundError(op, fmt.Errorf("no rules stored for %q", host))
	}

	src, err := filters.RenderUserScript(host, rules)
	if err != nil {
		return "", apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{apperr.MetaStage: apperr.StageScript})
	}

	return src, nil
}

func (s *FilterService) Open(ctx context.Context, rawURL string) error {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return apperr.InvalidReqError("Open", "url", errors.New("empty url"))
	}
	if !strings.Contains(rawURL, "://") {
		rawURL = "https://" + rawURL
	}

	return s.browser.Navigate(ctx, rawURL)
}

func (s *FilterService) Screenshot(ctx context.Context, path string) error {
	if strings.TrimSpace(path) == "" {
		path = fmt.Sprintf("screenshot-%d.jpg", time.Now().Unix())
	}

	return s.browser.Screenshot(ctx, path)
}

func (s *FilterService) installHost(ctx context.Context, op, host string) error {
	src, err := filters.RenderUserScript(host, s.store.Rules(host))
	if err != nil {
		return apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaStage: apperr.StageScript,
			apperr.MetaHost:  host,
		})
	}

	return s.browser.InstallUserScript(ctx, filters.ScriptID(host), src)
}

// HostOf returns the hostname of rawURL, or "" for URLs without one such as
// about:blank.
func HostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	return u.Hostname()
}
