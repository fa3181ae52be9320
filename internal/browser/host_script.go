package browser

// bridgeScript installs window.__cosmeticPicker in the page. Elements are
// handed to Go as [id, tag] pairs backed by a WeakRef registry, so the page
// keeps ownership of its nodes. Events, mutations and panel actions are
// pushed through the exposed binding named in opts.binding.
const bridgeScript = `(opts) => {
	if (window.__cosmeticPicker) {
		try { window.__cosmeticPicker.dispose(); } catch (err) {}
	}

	const emit = (payload) => {
		const fn = window[opts.binding];
		if (typeof fn !== 'function') return;
		try {
			const pending = fn(payload);
			if (pending && typeof pending.catch === 'function') pending.catch(() => {});
		} catch (err) {}
	};

	const refs = new Map();
	const ids = new WeakMap();
	let nextElement = 1;
	const idOf = (el) => {
		if (!el || el.nodeType !== Node.ELEMENT_NODE) return 0;
		let id = ids.get(el);
		if (!id) {
			id = nextElement++;
			ids.set(el, id);
			refs.set(id, new WeakRef(el));
		}
		return id;
	};
	const get = (id) => {
		const ref = refs.get(id);
		const el = ref ? ref.deref() : null;
		if (!el) refs.delete(id);
		return el || null;
	};

	const own = new Set();
	const panels = new Set();
	const isOwn = (node) => {
		for (const root of own) {
			if (root === node || root.contains(node)) return true;
		}
		return false;
	};
	const inPanel = (ev) => {
		const path = ev.composedPath ? ev.composedPath() : [ev.target];
		for (const node of path) {
			if (panels.has(node)) return true;
		}
		return false;
	};
	const ref = (el) => (el && el.nodeType === Node.ELEMENT_NODE && !isOwn(el)) ? [idOf(el), el.tagName.toLowerCase()] : null;

	const nodes = new Map();
	const renderers = new Map();
	let nextNode = 1;
	const addNode = (node, parent) => {
		(parent || document.documentElement).appendChild(node);
		const nid = nextNode++;
		nodes.set(nid, node);
		return nid;
	};
	const make = (tag, props, ...kids) => {
		const node = document.createElement(tag);
		Object.assign(node, props || {});
		for (const kid of kids) node.append(kid);
		return node;
	};

	// The cover swallows the pointer, so iframes never see mouseenter while
	// picking. Entry is recovered by hit testing underneath the injected nodes.
	const frameEnter = new Map();
	let lastHit = null;
	const hitTest = (x, y) => {
		const saved = [];
		for (const root of own) {
			saved.push([root, root.style.pointerEvents]);
			root.style.pointerEvents = 'none';
		}
		const el = document.elementFromPoint(x, y);
		for (const [root, value] of saved) root.style.pointerEvents = value;
		return el;
	};
	const onMove = (ev) => {
		if (!frameEnter.size) return;
		const hit = hitTest(ev.clientX, ev.clientY);
		if (hit === lastHit) return;
		lastHit = hit;
		for (const [lid, frame] of frameEnter) {
			if (frame === hit) {
				emit({ kind: 'event', lid, type: 'mouseenter', x: ev.clientX, y: ev.clientY, key: '', target: ref(frame), inPanel: false });
			}
		}
	};
	document.addEventListener('mousemove', onMove, true);

	const listeners = new Map();
	const targetOf = (kind, id) => kind === 'window' ? window : kind === 'document' ? document : get(id);
	const payloadOf = (lid, ev) => ({
		kind: 'event',
		lid,
		type: ev.type,
		x: ev.clientX || 0,
		y: ev.clientY || 0,
		key: ev.key || '',
		target: ref(ev.target),
		inPanel: inPanel(ev),
	});

	const observers = new Map();

	const api = {
		token: opts.token,

		ping: () => true,
		body: () => ref(document.body),
		query: (selector) => {
			try {
				return { refs: Array.from(document.querySelectorAll(selector)).filter((el) => !isOwn(el)).map(ref) };
			} catch (err) {
				return { error: String((err && err.message) || err) };
			}
		},
		fromPoint: (x, y) => ref(hitTest(x, y)),
		attr: (id, name) => {
			const el = get(id);
			return el && el.hasAttribute(name) ? el.getAttribute(name) : null;
		},
		classes: (id) => {
			const el = get(id);
			return el ? Array.from(el.classList) : [];
		},
		parent: (id) => {
			const el = get(id);
			return el ? ref(el.parentElement) : null;
		},
		children: (id) => {
			const el = get(id);
			return el ? Array.from(el.children).filter((c) => !isOwn(c)).map(ref) : [];
		},
		connected: (id) => {
			const el = get(id);
			return !!el && el.isConnected;
		},
		rect: (id) => {
			const el = get(id);
			if (!el) return { left: 0, top: 0, width: 0, height: 0 };
			const r = el.getBoundingClientRect();
			return { left: r.left, top: r.top, width: r.width, height: r.height };
		},
		text: (id) => {
			const el = get(id);
			return el ? (el.innerText || '') : '';
		},
		matches: (id, selector) => {
			const el = get(id);
			try {
				return { ok: !!el && el.matches(selector) };
			} catch (err) {
				return { error: String((err && err.message) || err) };
			}
		},

		listen: (lid, kind, id, type, capture) => {
			const target = targetOf(kind, id);
			if (!target) return false;
			let queued = null;
			const fn = (ev) => {
				if (type === 'click' && !inPanel(ev)) {
					ev.preventDefault();
					ev.stopPropagation();
				}
				if (type === 'keydown' && ev.key === 'Escape') ev.preventDefault();
				if (type === 'mousemove' || type === 'scroll') {
					const first = queued === null;
					queued = payloadOf(lid, ev);
					if (first) {
						requestAnimationFrame(() => {
							const payload = queued;
							queued = null;
							emit(payload);
						});
					}
					return;
				}
				emit(payloadOf(lid, ev));
			};
			target.addEventListener(type, fn, capture);
			listeners.set(lid, { target, type, fn, capture });
			if (type === 'mouseenter' && target.tagName === 'IFRAME') frameEnter.set(lid, target);
			return true;
		},
		unlisten: (lid) => {
			const entry = listeners.get(lid);
			if (!entry) return false;
			entry.target.removeEventListener(entry.type, entry.fn, entry.capture);
			listeners.delete(lid);
			frameEnter.delete(lid);
			return true;
		},

		observe: (oid) => {
			const mo = new MutationObserver((records) => {
				const added = [];
				const removed = [];
				for (const record of records) {
					record.addedNodes.forEach((node) => {
						if (node.nodeType === Node.ELEMENT_NODE && !isOwn(node)) added.push(ref(node));
					});
					record.removedNodes.forEach((node) => {
						if (node.nodeType === Node.ELEMENT_NODE && !own.has(node)) removed.push([idOf(node), node.tagName.toLowerCase()]);
					});
				}
				if (added.length || removed.length) emit({ kind: 'mutation', oid, added, removed });
			});
			mo.observe(document.documentElement, { childList: true, subtree: true });
			observers.set(oid, mo);
			return true;
		},
		disconnect: (oid) => {
			const mo = observers.get(oid);
			if (!mo) return false;
			mo.disconnect();
			observers.delete(oid);
			return true;
		},

		layer: () => {
			const node = make('div');
			node.setAttribute('data-cosmetic-picker', 'layer');
			Object.assign(node.style, { position: 'fixed', left: '0', top: '0', width: '100vw', height: '100vh', pointerEvents: 'none', zIndex: '2147483646' });
			own.add(node);
			return addNode(node);
		},
		box: (layer, style) => {
			const parent = nodes.get(layer);
			if (!parent || !parent.isConnected) return 0;
			const node = make('div');
			Object.assign(node.style, { position: 'fixed', display: 'none', boxSizing: 'border-box', pointerEvents: 'none' });
			if (style === 'primary') {
				Object.assign(node.style, { border: '2px solid #e5484d', background: 'rgba(229, 72, 77, 0.15)' });
			} else {
				Object.assign(node.style, { border: '1px dashed #f5a524', background: 'rgba(245, 165, 36, 0.12)' });
			}
			return addNode(node, parent);
		},
		place: (nid, r) => {
			const node = nodes.get(nid);
			if (!node) return false;
			Object.assign(node.style, { display: 'block', left: r.left + 'px', top: r.top + 'px', width: r.width + 'px', height: r.height + 'px' });
			return true;
		},
		show: (nid) => {
			const node = nodes.get(nid);
			if (node) node.style.display = 'block';
			return !!node;
		},
		hide: (nid) => {
			const node = nodes.get(nid);
			if (node) node.style.display = 'none';
			return !!node;
		},
		remove: (nid) => {
			const node = nodes.get(nid);
			if (!node) return false;
			for (const [other, child] of nodes) {
				if (node.contains(child)) nodes.delete(other);
			}
			own.delete(node);
			panels.delete(node);
			renderers.delete(nid);
			node.remove();
			return true;
		},
		cover: () => {
			const node = make('div');
			node.setAttribute('data-cosmetic-picker', 'cover');
			Object.assign(node.style, { position: 'fixed', left: '0', top: '0', width: '100vw', height: '100vh', cursor: 'crosshair', background: 'transparent', zIndex: '2147483645' });
			own.add(node);
			return addNode(node);
		},
		panel: () => {
			let nid = 0;
			const act = (action) => emit({ kind: 'panel', nid, action });
			const button = (label, action) => {
				const b = make('button', { type: 'button', textContent: label });
				b.addEventListener('click', () => act(action()));
				return b;
			};

			const title = make('div');
			title.style.fontWeight = 'bold';
			const levelButtons = [0, 1, 2, 3].map((level) => button(String(level), () => ({ kind: 'strictness', level })));
			const selector = make('input', { type: 'text', spellcheck: false });
			selector.style.width = '100%';
			selector.addEventListener('input', () => act({ kind: 'edit', value: selector.value }));
			const up = button('Parent', () => ({ kind: 'ascend' }));
			const down = button('Child', () => ({ kind: 'descend' }));
			const textOn = make('input', { type: 'checkbox' });
			const text = make('input', { type: 'text', spellcheck: false });
			const sendText = () => act({ kind: 'text', enabled: textOn.checked, value: text.value });
			textOn.addEventListener('change', sendText);
			text.addEventListener('input', sendText);
			const warning = make('div');
			warning.style.color = '#f5a524';
			const save = button('Save', () => ({ kind: 'confirm' }));
			const cancel = button('Cancel', () => ({ kind: 'cancel' }));

			const root = make('div', {},
				title,
				make('div', {}, 'Strictness ', ...levelButtons),
				selector,
				make('div', {}, up, down),
				make('label', {}, textOn, ' text contains ', text),
				warning,
				make('div', {}, save, cancel));
			Object.assign(root.style, {
				width: '380px', padding: '10px', boxSizing: 'border-box',
				font: '12px/1.5 system-ui, sans-serif', color: '#eee', background: '#1f2023',
				border: '1px solid #444', borderRadius: '6px',
			});
			root.addEventListener('keydown', (ev) => ev.stopPropagation());

			// Page stylesheets stop at the shadow boundary.
			const host = make('div');
			host.setAttribute('data-cosmetic-picker', 'panel');
			Object.assign(host.style, { position: 'fixed', right: '16px', bottom: '16px', zIndex: '2147483647', pointerEvents: 'auto' });
			const shadow = host.attachShadow({ mode: 'open' });
			const reset = make('style', { textContent: ':host { all: initial; } button, input { font: inherit; }' });
			shadow.append(reset, root);

			own.add(host);
			panels.add(host);
			nid = addNode(host);
			renderers.set(nid, (view) => {
				title.textContent = '<' + view.targetTag + '>  ' + view.matchCount + (view.matchCount === 1 ? ' match' : ' matches');
				levelButtons.forEach((b, i) => {
					b.title = (view.candidates || [])[i] || '';
					b.style.fontWeight = !view.manualOverride && i === view.strictness ? 'bold' : 'normal';
				});
				if (shadow.activeElement !== selector) selector.value = view.selector;
				up.disabled = !view.canAscend;
				down.disabled = !view.canDescend;
				textOn.checked = view.textEnabled;
				if (shadow.activeElement !== text) text.value = view.text;
				const warnings = [];
				if (view.selectorWarning) warnings.push('The selector does not match the selected element.');
				if (view.predicateWarning) warnings.push('The text does not appear in the clicked element.');
				warning.textContent = warnings.join(' ');
			});
			return nid;
		},
		render: (nid, view) => {
			const fn = renderers.get(nid);
			if (fn) fn(view);
			return !!fn;
		},

		dispose: () => {
			document.removeEventListener('mousemove', onMove, true);
			for (const lid of Array.from(listeners.keys())) api.unlisten(lid);
			for (const oid of Array.from(observers.keys())) api.disconnect(oid);
			for (const nid of Array.from(nodes.keys())) api.remove(nid);
			if (window.__cosmeticPicker === api) delete window.__cosmeticPicker;
			return true;
		},
	};

	window.__cosmeticPicker = api;
	return true;
}`

// bridgeCall dispatches one operation to the installed bridge. A bridge that
// is missing or belongs to another host answers with {gone: true}.
const bridgeCall = `([token, op, args]) => {
	const api = window.__cosmeticPicker;
	if (!api || api.token !== token) return { gone: true };
	return { value: api[op](...args) };
}`
