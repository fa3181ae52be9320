package picker

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"cosmetic-picker/internal/dom"
	"cosmetic-picker/internal/entity"
	"cosmetic-picker/pkg/logg"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Phase int

const (
	PhasePicking Phase = iota
	PhaseLocked
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhasePicking:
		return "picking"
	case PhaseLocked:
		return "locked"
	case PhaseDone:
		return "done"
	}

	return fmt.Sprintf("phase(%d)", int(p))
}

const defaultTextSuggestionMax = 60

type Option func(*Session)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithStrictness sets the level selected when the session locks.
func WithStrictness(level int) Option {
	return func(s *Session) {
		s.strictness = clampLevel(level)
	}
}

// WithTextSuggestionMax bounds the text predicate suggested from the clicked
// element, in runes.
func WithTextSuggestionMax(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.textMax = n
		}
	}
}

// Session is one picker invocation. It starts in the picking phase, locks on
// a click or an iframe entry, and completes exactly once with a rule or nil.
// Every listener and injected node is released before completion.
type Session struct {
	mu     sync.Mutex
	id     uuid.UUID
	doc    dom.Document
	logger *zap.Logger

	phase          Phase
	current        dom.Element
	original       dom.Element
	candidates     []string
	selector       string
	manualOverride bool
	strictness     int
	textEnabled    bool
	text           string
	textMax        int
	eval           Evaluation

	res            *scope
	highlighter    *Highlighter
	cover          dom.Cover
	panel          dom.Panel
	releasePicking []func() error

	done   chan struct{}
	result *entity.FilterRule
}

// Start acquires the highlight layer, the picking cover and every listener,
// and returns a session in the picking phase.
func Start(doc dom.Document, opts ...Option) (*Session, error) {
	s := &Session{
		id:         uuid.New(),
		doc:        doc,
		logger:     zap.NewNop(),
		strictness: LevelAttribute,
		textMax:    defaultTextSuggestionMax,
		res:        &scope{},
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String(logg.SessionID, s.id.String()))

	if err := s.acquire(); err != nil {
		_ = s.res.Close()
		return nil, err
	}

	s.logger.Debug("Picker session started")

	return s, nil
}

func (s *Session) acquire() error {
	hl, err := NewHighlighter(s.doc)
	if err != nil {
		return err
	}
	s.highlighter = hl
	s.res.add(hl.Close)

	cover, err := s.doc.Overlay().NewCover()
	if err != nil {
		return fmt.Errorf("create picking cover: %w", err)
	}
	s.cover = cover

	s.releasePicking = []func() error{
		s.res.add(cover.Remove),
		s.res.add(asRelease(s.doc.AddEventListener(dom.EventPointerMove, false, s.handlePointerMove))),
		s.res.add(asRelease(s.doc.AddEventListener(dom.EventClick, true, s.handleClick))),
	}
	s.res.addFunc(s.doc.AddEventListener(dom.EventKeyDown, true, s.handleKeyDown))

	frames := NewFrameMonitor(s.doc, s.handleFrameEnter)
	s.res.addFunc(frames.Close)

	return nil
}

func (s *Session) ID() string {
	return s.id.String()
}

// Done is closed once the session has completed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the session completes and returns the confirmed rule, or
// nil when the user cancelled. A cancelled ctx tears the session down.
func (s *Session) Wait(ctx context.Context) (*entity.FilterRule, error) {
	select {
	case <-s.done:
		return s.Result(), nil
	case <-ctx.Done():
		s.mu.Lock()
		s.finish(nil, "context")
		s.mu.Unlock()

		return nil, ctx.Err()
	}
}

func (s *Session) Result() *entity.FilterRule {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.result == nil {
		return nil
	}
	rule := *s.result

	return &rule
}

func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.phase
}

func (s *Session) Current() dom.Element {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.current
}

func (s *Session) Original() dom.Element {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.original
}

func (s *Session) Selector() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.selector
}

func (s *Session) ManualOverride() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.manualOverride
}

func (s *Session) Strictness() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.strictness
}

func (s *Session) Candidates() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.candidates...)
}

func (s *Session) Evaluation() Evaluation {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.eval
}

// MatchBoxes is the number of non-primary highlight boxes on screen.
func (s *Session) MatchBoxes() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.highlighter.MatchBoxes()
}

func (s *Session) CanAscend() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.phase == PhaseLocked && ParentCandidate(s.current) != nil
}

func (s *Session) CanDescend() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.phase == PhaseLocked && ChildCandidate(s.current, s.original) != nil
}

// SetStrictness switches to the candidate at level and drops a hand-typed
// selector.
func (s *Session) SetStrictness(level int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseLocked {
		return
	}

	s.strictness = clampLevel(level)
	s.manualOverride = false
	s.recompute(true)
}

// EditSelector replaces the selector with a hand-typed one. Candidates are
// kept as they are.
func (s *Session) EditSelector(selector string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseLocked {
		return
	}

	s.selector = selector
	s.manualOverride = true
	s.recompute(false)
}

// Ascend moves to the parent candidate. It reports false when there is none.
func (s *Session) Ascend() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseLocked {
		return false
	}

	return s.moveTo(ParentCandidate(s.current))
}

// Descend moves to the child candidate. It reports false when there is none.
func (s *Session) Descend() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseLocked {
		return false
	}

	return s.moveTo(ChildCandidate(s.current, s.original))
}

// SetTextPredicate updates the text filter. The selector is left alone.
func (s *Session) SetTextPredicate(enabled bool, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseLocked {
		return
	}

	s.textEnabled = enabled
	s.text = text
	s.recompute(false)
}

// Confirm completes the session with the current rule. Warnings never block
// it. It reports false outside the locked phase.
func (s *Session) Confirm() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseLocked {
		return false
	}

	rule := entity.FilterRule{Selector: strings.TrimSpace(s.selector)}
	if s.textEnabled {
		rule.HasText = strings.TrimSpace(s.text)
	}
	s.finish(&rule, "confirm")

	return true
}

func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.finish(nil, "cancel")
}

func (s *Session) handlePointerMove(ev dom.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhasePicking {
		return
	}

	s.current = s.hitTest(ev.X, ev.Y)
	s.highlighter.SetHighlights(s.current, nil)
}

func (s *Session) handleClick(ev dom.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhasePicking || ev.InPanel {
		return
	}

	target := s.hitTest(ev.X, ev.Y)
	if target == nil {
		target = dom.Live(s.current)
	}
	if target == nil {
		return
	}

	s.lockOn(target)
}

func (s *Session) handleKeyDown(ev dom.Event) {
	if ev.Key != "Escape" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.finish(nil, "escape")
}

func (s *Session) handleFrameEnter(frame dom.Element) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhasePicking || dom.Live(frame) == nil {
		return
	}

	s.lockOn(frame)
}

func (s *Session) handlePanelAction(a dom.PanelAction) {
	switch a.Kind {
	case dom.ActionStrictness:
		s.SetStrictness(a.Level)
	case dom.ActionEdit:
		s.EditSelector(a.Value)
	case dom.ActionAscend:
		s.Ascend()
	case dom.ActionDescend:
		s.Descend()
	case dom.ActionText:
		s.SetTextPredicate(a.Enabled, a.Value)
	case dom.ActionConfirm:
		s.Confirm()
	case dom.ActionCancel:
		s.Cancel()
	default:
		s.logger.Warn("Unknown panel action", zap.String(logg.Action, string(a.Kind)))
	}
}

// hitTest reads the element under the pointer with the cover lifted, so the
// page below is hit rather than the cover itself.
func (s *Session) hitTest(x, y float64) dom.Element {
	s.cover.Hide()
	el := s.doc.ElementFromPoint(x, y)
	s.cover.Show()

	if el == nil || dom.IsRoot(el) {
		return nil
	}

	return el
}

func (s *Session) lockOn(target dom.Element) {
	for _, release := range s.releasePicking {
		if err := release(); err != nil {
			s.logger.Debug("Release picking resource", zap.Error(err))
		}
	}
	s.releasePicking = nil

	s.phase = PhaseLocked
	s.current = target
	s.original = target
	s.manualOverride = false
	s.textEnabled = false
	s.text = suggestText(target, s.textMax)

	panel, err := s.doc.Overlay().NewPanel(s.handlePanelAction)
	if err != nil {
		s.logger.Warn("Failed to create picker panel", zap.Error(err))
	} else {
		s.panel = panel
		s.res.add(panel.Remove)
	}

	s.recompute(true)

	s.logger.Debug("Picker locked",
		zap.String("tag", target.TagName()),
		zap.String(logg.Selector, s.selector))
}

func (s *Session) moveTo(next dom.Element) bool {
	if next == nil {
		return false
	}

	s.current = next
	s.manualOverride = false
	s.recompute(true)

	return true
}

// recompute runs synthesis (when resynth is set), evaluation and the
// highlight redraw for the current element, then refreshes the panel.
func (s *Session) recompute(resynth bool) {
	if s.original != nil && !dom.Contains(s.original, s.current) && !dom.Contains(s.current, s.original) {
		s.original = nil
	}

	if resynth {
		s.candidates = Synthesize(s.current)
		if !s.manualOverride {
			s.selector = s.candidates[s.strictness]
		}
	}

	predicate := ""
	if s.textEnabled {
		predicate = s.text
	}

	s.eval = Evaluate(s.doc, EvalInput{
		Selector:  s.selector,
		Predicate: predicate,
		Primary:   s.current,
		Original:  dom.Live(s.original),
		Locked:    s.phase == PhaseLocked,
	})
	s.highlighter.SetHighlights(s.current, s.eval.Others)

	if s.panel == nil {
		return
	}

	tag := ""
	if s.current != nil {
		tag = s.current.TagName()
	}
	s.panel.Render(dom.PanelView{
		TargetTag:        tag,
		Candidates:       append([]string(nil), s.candidates...),
		Strictness:       s.strictness,
		Selector:         s.selector,
		ManualOverride:   s.manualOverride,
		CanAscend:        ParentCandidate(s.current) != nil,
		CanDescend:       ChildCandidate(s.current, s.original) != nil,
		TextEnabled:      s.textEnabled,
		Text:             s.text,
		MatchCount:       len(s.eval.Matches),
		PredicateWarning: s.eval.PredicateWarning,
		SelectorWarning:  s.eval.SelectorWarning,
	})
}

func (s *Session) finish(result *entity.FilterRule, reason string) {
	if s.phase == PhaseDone {
		return
	}
	s.phase = PhaseDone

	if err := s.res.Close(); err != nil {
		s.logger.Warn("Picker teardown incomplete", zap.Error(err))
	}
	s.panel = nil
	s.releasePicking = nil
	s.result = result
	close(s.done)

	s.logger.Debug("Picker session finished",
		zap.String("reason", reason),
		zap.Bool("confirmed", result != nil))
}

func suggestText(el dom.Element, max int) string {
	text := strings.Join(strings.Fields(el.InnerText()), " ")

	runes := []rune(text)
	if len(runes) > max {
		text = strings.TrimSpace(string(runes[:max]))
	}

	return text
}

func clampLevel(level int) int {
	switch {
	case level < LevelLoose:
		return LevelLoose
	case level > LevelStrict:
		return LevelStrict
	}

	return level
}

func asRelease(remove func()) func() error {
	return func() error {
		remove()
		return nil
	}
}
