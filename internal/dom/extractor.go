package dom

import (
	"fmt"

	"github.com/go-rod/rod"
)

// IndexAttr is the attribute written onto every extracted node so the
// executor can re-locate it by index alone. Re-extraction strips all
// previous tags before assigning new ones.
const IndexAttr = "data-vocalweb-index"

// extractJS scans the document for visible interactive elements, tags each
// surviving node with its index, and returns compact candidate records.
// Selector set and visibility filter mirror what the extension content
// script observes.
const extractJS = `
() => {
	const selector = [
		'button',
		'a[href]',
		'input:not([type="hidden"])',
		'textarea',
		'select',
		'[role="button"]', '[role="link"]', '[role="tab"]',
		'[role="menuitem"]', '[role="checkbox"]', '[role="combobox"]',
		'[onclick]'
	].join(', ');

	// A stale tag from a previous pass must never survive re-extraction.
	document.querySelectorAll('[data-vocalweb-index]').forEach(el => {
		el.removeAttribute('data-vocalweb-index');
	});

	const elements = [];
	const seen = new Set();

	document.querySelectorAll(selector).forEach(el => {
		if (seen.has(el)) return;
		seen.add(el);

		const rect = el.getBoundingClientRect();
		const style = getComputedStyle(el);
		if (rect.width <= 0 || rect.height <= 0 ||
		    style.display === 'none' || style.visibility === 'hidden' ||
		    parseFloat(style.opacity) === 0) {
			return;
		}

		const tag = el.tagName.toLowerCase();
		const ariaLabel = el.getAttribute('aria-label') || '';

		// Label resolution: accessible label, visible text, placeholder, empty.
		let text = ariaLabel ||
			el.innerText?.trim() ||
			el.placeholder ||
			'';
		text = text.replace(/\s+/g, ' ').trim().substring(0, 100);

		const index = elements.length;
		el.setAttribute('data-vocalweb-index', String(index));

		elements.push({
			index: index,
			tag: tag,
			text: text,
			ariaLabel: ariaLabel.substring(0, 100),
			role: el.getAttribute('role') || '',
			inputType: tag === 'input' ? (el.type || 'text') : '',
			href: tag === 'a' ? (el.getAttribute('href') || '') : '',
			id: el.id || '',
			classes: Array.from(el.classList).slice(0, 5)
		});
	});

	return {
		url: window.location.href,
		title: document.title,
		count: elements.length,
		elements: elements
	};
}
`

// pageInfoJS gathers the raw material for summarization.
const pageInfoJS = `
(maxChars) => {
	return {
		url: window.location.href,
		title: document.title,
		content: (document.body?.innerText || '').substring(0, maxChars)
	};
}
`

// Extract runs one extraction pass over the page's current document and
// returns the candidate snapshot in traversal order. Extraction is total:
// an empty page yields an empty slice, not an error.
func Extract(page *rod.Page) ([]Candidate, error) {
	result, err := page.Eval(extractJS)
	if err != nil {
		return nil, fmt.Errorf("extracting interactive elements: %w", err)
	}
	return CandidatesFromEval(result.Value.Val()), nil
}

// PageInfo is the summarization input for one page.
type PageInfo struct {
	URL     string
	Title   string
	Content string
	// Elements carries the label inventory the summarizer enumerates.
	Elements []Candidate
}

// ExtractPageInfo gathers page title and flattened text alongside the
// candidate snapshot from the same document state.
func ExtractPageInfo(page *rod.Page, maxContentChars int) (PageInfo, error) {
	if maxContentChars <= 0 {
		maxContentChars = 6000
	}
	result, err := page.Eval(pageInfoJS, maxContentChars)
	if err != nil {
		return PageInfo{}, fmt.Errorf("extracting page info: %w", err)
	}

	info := PageInfo{}
	if data, ok := result.Value.Val().(map[string]interface{}); ok {
		info.URL = stringFromMap(data, "url")
		info.Title = stringFromMap(data, "title")
		info.Content = stringFromMap(data, "content")
	}

	candidates, err := Extract(page)
	if err != nil {
		return info, err
	}
	info.Elements = candidates
	return info, nil
}
