package filters

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"cosmetic-picker/internal/entity"
)

const (
	ScriptIDPrefix = "cosmetic-filter-"

	matchAnchor  = "__COSMETIC_PICKER_MATCH__"
	configAnchor = "__COSMETIC_PICKER_CONFIG__"
	cssAnchor    = "__COSMETIC_PICKER_CSS__"
	hostAnchor   = "__COSMETIC_PICKER_HOST__"
)

var scriptIDUnsafe = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// ScriptID names the per-host userscript.
func ScriptID(host string) string {
	return ScriptIDPrefix + scriptIDUnsafe.ReplaceAllString(host, "-")
}

func MatchPattern(host string) string {
	return "*://" + host + "/*"
}

// RenderUserScript fills the execute template for host. Rules without a text
// predicate become a stylesheet; the rest are applied by a debounced mutation
// watcher. Selectors that do not parse are left out of both.
func RenderUserScript(host string, rules []entity.FilterRule) (string, error) {
	if host == "" {
		return "", fmt.Errorf("render userscript: host is empty")
	}

	config, err := json.MarshalIndent(textRules(rules), "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode rules: %w", err)
	}
	css, err := json.Marshal(Stylesheet(rules))
	if err != nil {
		return "", fmt.Errorf("encode stylesheet: %w", err)
	}
	hostJSON, err := json.Marshal(host)
	if err != nil {
		return "", fmt.Errorf("encode host: %w", err)
	}

	return strings.NewReplacer(
		matchAnchor, MatchPattern(host),
		hostAnchor, string(hostJSON),
		configAnchor, string(config),
		cssAnchor, string(css),
	).Replace(userScriptTemplate), nil
}

// Stylesheet compiles the rules that carry no text predicate.
func Stylesheet(rules []entity.FilterRule) string {
	var lines []string
	for _, r := range rules {
		r = r.Normalize()
		if r.HasText != "" || !ValidSelector(r.Selector) {
			continue
		}
		lines = append(lines, r.Selector+" { display: none !important; }")
	}

	return strings.Join(lines, "\n")
}

type scriptRule struct {
	Selector string `json:"selector"`
	HasText  string `json:"hasText,omitempty"`
}

func textRules(rules []entity.FilterRule) []scriptRule {
	out := make([]scriptRule, 0, len(rules))
	for _, r := range rules {
		r = r.Normalize()
		if r.HasText == "" || !ValidSelector(r.Selector) {
			continue
		}
		out = append(out, scriptRule{Selector: r.Selector, HasText: r.HasText})
	}

	return out
}

const userScriptTemplate = `// ==UserScript==
// @name        Cosmetic Filter
// @match       __COSMETIC_PICKER_MATCH__
// @run-at      document-start
// ==/UserScript==
(function() {
	if (location.hostname !== __COSMETIC_PICKER_HOST__) return;

	const CSS = __COSMETIC_PICKER_CSS__;
	let CONFIG = [];
	try {
		CONFIG = __COSMETIC_PICKER_CONFIG__;
	} catch (err) {
		CONFIG = [];
	}

	if (CSS && !document.getElementById('cosmetic-picker-css')) {
		const style = document.createElement('style');
		style.id = 'cosmetic-picker-css';
		style.textContent = CSS;
		const install = () => {
			const target = document.head || document.documentElement;
			if (!target) {
				setTimeout(install, 0);
				return;
			}
			target.appendChild(style);
		};
		install();
	}

	const textRules = (CONFIG || []).filter(r => r.hasText);
	if (!textRules.length) return;

	const apply = () => {
		for (const rule of textRules) {
			let candidates;
			try {
				candidates = document.querySelectorAll(rule.selector);
			} catch (err) {
				continue;
			}
			const needle = rule.hasText.toLowerCase();
			candidates.forEach(el => {
				if (el.dataset.cosmeticHidden) return;
				const text = (el.innerText || '').toLowerCase();
				if (text.includes(needle)) {
					el.style.setProperty('display', 'none', 'important');
					el.dataset.cosmeticHidden = 'true';
				}
			});
		}
	};

	document.addEventListener('DOMContentLoaded', apply);
	window.addEventListener('load', apply);

	let timer;
	const observer = new MutationObserver(mutations => {
		if (!mutations.some(m => m.addedNodes.length > 0)) return;
		clearTimeout(timer);
		timer = setTimeout(apply, 150);
	});
	const observe = () => {
		if (!document.documentElement) {
			setTimeout(observe, 0);
			return;
		}
		observer.observe(document.documentElement, { childList: true, subtree: true });
	};
	observe();
})();
`
