package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"cosmetic-picker/pkg/apperr"
	"cosmetic-picker/pkg/logg"
	"cosmetic-picker/pkg/tracing"

	"github.com/playwright-community/playwright-go"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Init scripts cannot be withdrawn from a browser context once added, so every
// install or removal appends a registration. Later registrations overwrite
// earlier ones for the same id and only the survivors run.
const userScriptInit = `(() => {
	const registry = (window.__cosmeticPickerScripts = window.__cosmeticPickerScripts || { scripts: {}, scheduled: false });
	registry.scripts[%[1]s] = %[2]s;
	if (registry.scheduled) return;
	registry.scheduled = true;
	setTimeout(() => {
		for (const run of Object.values(registry.scripts)) {
			if (typeof run !== 'function') continue;
			try { run(); } catch (err) { console.error('cosmetic filter script failed', err); }
		}
	}, 0);
})();`

type scriptRegistry struct {
	mu        sync.Mutex
	installed map[string]int
}

func newScriptRegistry() *scriptRegistry {
	return &scriptRegistry{installed: make(map[string]int)}
}

func (r *scriptRegistry) record(id string, installed bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if installed {
		r.installed[id]++
		return r.installed[id]
	}
	delete(r.installed, id)

	return 0
}

func (r *scriptRegistry) has(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.installed[id]

	return ok
}

func registration(id, source string) (string, error) {
	key, err := json.Marshal(id)
	if err != nil {
		return "", fmt.Errorf("encode script id: %w", err)
	}

	body := "null"
	if source != "" {
		body = "function() {\n" + source + "\n}"
	}

	return fmt.Sprintf(userScriptInit, key, body), nil
}

// InstallUserScript registers source under id for every document the context
// loads from now on, replacing an earlier script with the same id.
func (m *Manager) InstallUserScript(ctx context.Context, id, source string) (err error) {
	const op = "InstallUserScript"
	logger := m.logger.With(zap.String(logg.Operation, op), zap.String("script_id", id))

	_, step := tracing.StartSpan(ctx, m.tracer, logger, op, attribute.String("script_id", id))
	defer func() {
		step.End(err)
	}()

	if source == "" {
		return apperr.InvalidReqError(op, "source", fmt.Errorf("empty userscript"))
	}

	if err := m.addRegistration(op, id, source); err != nil {
		return err
	}

	rev := m.scripts.record(id, true)
	logger.Debug("Userscript installed", zap.Int("revision", rev))

	return nil
}

func (m *Manager) RemoveUserScript(ctx context.Context, id string) (err error) {
	const op = "RemoveUserScript"
	logger := m.logger.With(zap.String(logg.Operation, op), zap.String("script_id", id))

	_, step := tracing.StartSpan(ctx, m.tracer, logger, op, attribute.String("script_id", id))
	defer func() {
		step.End(err)
	}()

	if !m.scripts.has(id) {
		logger.Debug("Userscript not installed in this session")
	}

	if err := m.addRegistration(op, id, ""); err != nil {
		return err
	}
	m.scripts.record(id, false)

	return nil
}

func (m *Manager) addRegistration(op, id, source string) error {
	if !m.ready || m.browserContext == nil {
		return apperr.WrapErrorWithReason(op, apperr.CodeBrowserNotReady, "browser_not_ready")
	}

	script, err := registration(id, source)
	if err != nil {
		return apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{apperr.MetaStage: apperr.StageScript})
	}

	if err := m.browserContext.AddInitScript(playwright.Script{Content: playwright.String(script)}); err != nil {
		return apperr.Wrap(op, apperr.CodeActionFailed, err, map[string]any{
			apperr.MetaReason: "add_init_script_failed",
			apperr.MetaStage:  apperr.StageScript,
		})
	}

	return nil
}
