// internal/browser/scripts.go
package browser

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/rateidea-agent/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// targetAttribute temporarily tags the element a click is aimed at so that
// chromedp can address it with a plain selector.
const targetAttribute = "data-rateidea-target"

// locatorLibrary resolves a serialized schemas.Locator into a list of elements.
// Exact name matches sort before substring matches; otherwise document order is kept.
const locatorLibrary = `
const isVisible = (el) => {
	const style = window.getComputedStyle(el);
	if (style.visibility === 'hidden' || style.display === 'none' || style.opacity === '0') return false;
	const rect = el.getBoundingClientRect();
	return rect.width > 0 && rect.height > 0;
};
const norm = (s) => (s || '').replace(/\s+/g, ' ').trim().toLowerCase();
const score = (text, want, exact) => {
	const t = norm(text), w = norm(want);
	if (t === w) return 2;
	if (!exact && t.includes(w)) return 1;
	return 0;
};
const accessibleName = (el) =>
	el.getAttribute('aria-label') || el.innerText || el.value || el.getAttribute('title') || '';
const roleSelectors = {
	button: 'button, [role="button"], input[type="button"], input[type="submit"]',
	link: 'a[href], [role="link"]',
	textbox: 'input:not([type]), input[type="text"], textarea, [role="textbox"]',
	slider: 'input[type="range"], [role="slider"]',
	heading: 'h1, h2, h3, h4, h5, h6, [role="heading"]',
};
const ranked = (els, textOf, want, exact) => {
	const scored = [];
	els.forEach((el, i) => {
		const s = score(textOf(el), want, exact);
		if (s > 0) scored.push({ el, s, i });
	});
	scored.sort((a, b) => (b.s - a.s) || (a.i - b.i));
	return scored.map((x) => x.el);
};
const resolve = (loc) => {
	switch (loc.strategy) {
	case 'css':
		return Array.from(document.querySelectorAll(loc.value));
	case 'role': {
		const els = Array.from(document.querySelectorAll(roleSelectors[loc.value] || '[role="' + loc.value + '"]'));
		return loc.name ? ranked(els, accessibleName, loc.name, loc.exact) : els;
	}
	case 'text': {
		if (!document.body) return [];
		const skip = ['SCRIPT', 'STYLE', 'NOSCRIPT', 'TEMPLATE'];
		const all = Array.from(document.body.querySelectorAll('*')).filter((el) => !skip.includes(el.tagName));
		const hits = ranked(all, (el) => el.textContent, loc.value, loc.exact);
		return hits.filter((el) => !hits.some((other) => other !== el && el.contains(other)));
	}
	case 'placeholder':
		return ranked(Array.from(document.querySelectorAll('[placeholder]')),
			(el) => el.getAttribute('placeholder'), loc.value, loc.exact);
	default:
		return [];
	}
};
const pick = (els) => els.find(isVisible) || null;
`

// locatorScript wraps body in an IIFE in which els holds the resolved matches.
// body must return a JSON-serializable value.
func locatorScript(loc schemas.Locator, body string) string {
	return fmt.Sprintf("(() => {\n%s\nconst els = resolve(%s);\n%s\n})()", locatorLibrary, jsonEncode(loc), body)
}

const visibleBody = `return els.some(isVisible);`

const snapshotBody = `
return els.map((el, i) => {
	const attributes = {};
	for (const attr of el.attributes) attributes[attr.name] = attr.value;
	return { position: i, outerHTML: el.outerHTML, text: (el.innerText || el.textContent || '').trim(), attributes, visible: isVisible(el) };
});`

const textBody = `
const el = pick(els) || els[0];
if (!el) return { found: false, value: '' };
return { found: true, value: (el.innerText || el.textContent || '').trim() };`

func attributeBody(name string) string {
	return fmt.Sprintf(`
const el = pick(els) || els[0];
if (!el) return { found: false, present: false, value: '' };
const v = el.getAttribute(%s);
return { found: true, present: v !== null, value: v || '' };`, jsonEncode(name))
}

// setValueBody assigns through the prototype's native setter so that
// framework-wrapped inputs register the change, then announces it.
func setValueBody(value string) string {
	return fmt.Sprintf(`
const el = pick(els);
if (!el) return false;
el.focus();
const proto = el instanceof HTMLTextAreaElement ? HTMLTextAreaElement.prototype
	: el instanceof HTMLSelectElement ? HTMLSelectElement.prototype
	: HTMLInputElement.prototype;
const desc = Object.getOwnPropertyDescriptor(proto, 'value');
if (desc && desc.set) { desc.set.call(el, %[1]s); } else { el.value = %[1]s; }
el.dispatchEvent(new Event('input', { bubbles: true }));
el.dispatchEvent(new Event('change', { bubbles: true }));
return true;`, jsonEncode(value))
}

func tagBody(id string) string {
	return fmt.Sprintf(`
const el = pick(els);
if (!el) return false;
el.setAttribute(%s, %s);
return true;`, jsonEncode(targetAttribute), jsonEncode(id))
}

func untagScript(id string) string {
	return fmt.Sprintf(`(() => { const el = document.querySelector(%s); if (el) el.removeAttribute(%s); return true; })()`,
		jsonEncode(targetSelector(id)), jsonEncode(targetAttribute))
}

func targetSelector(id string) string {
	return fmt.Sprintf(`[%s="%s"]`, targetAttribute, id)
}

// jsonEncode renders v as a JavaScript literal.
func jsonEncode(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}
