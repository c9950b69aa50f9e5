package schemas

import (
	"context"
	"errors"
	"time"
)

// ErrElementNotFound is returned by Page operations whose locator matched nothing.
var ErrElementNotFound = errors.New("element not found")

// -- Locator Schemas --

// LocatorStrategy selects how a Locator is resolved against the live DOM.
type LocatorStrategy string

const (
	ByCSS         LocatorStrategy = "css"
	ByRole        LocatorStrategy = "role"
	ByText        LocatorStrategy = "text"
	ByPlaceholder LocatorStrategy = "placeholder"
)

// Locator describes an element the way a person would point at it: by selector,
// by ARIA role and accessible name, by visible text or by input placeholder.
// Matching for role names, text and placeholders is a case-insensitive
// substring match unless Exact is set.
type Locator struct {
	Strategy LocatorStrategy `json:"strategy"`
	// Value is the CSS selector, the role, the text or the placeholder.
	Value string `json:"value"`
	// Name is the accessible name, only used with ByRole.
	Name  string `json:"name,omitempty"`
	Exact bool   `json:"exact,omitempty"`
}

// CSS locates elements by selector.
func CSS(selector string) Locator {
	return Locator{Strategy: ByCSS, Value: selector}
}

// Role locates elements by ARIA role (explicit or implicit) and accessible name.
func Role(role, name string) Locator {
	return Locator{Strategy: ByRole, Value: role, Name: name}
}

// Text locates the innermost elements whose text contains text.
func Text(text string) Locator {
	return Locator{Strategy: ByText, Value: text}
}

// Placeholder locates form fields by their placeholder attribute.
func Placeholder(placeholder string) Locator {
	return Locator{Strategy: ByPlaceholder, Value: placeholder}
}

func (l Locator) String() string {
	if l.Strategy == ByRole {
		return string(l.Strategy) + "=" + l.Value + "[name=" + l.Name + "]"
	}
	return string(l.Strategy) + "=" + l.Value
}

// ElementSnapshot is a read-only capture of one matched element.
type ElementSnapshot struct {
	// Position is the element's index in document order among the matches.
	Position   int               `json:"position"`
	OuterHTML  string            `json:"outerHTML"`
	Text       string            `json:"text"`
	Attributes map[string]string `json:"attributes"`
	Visible    bool              `json:"visible"`
}

// -- Driver Contract --

// Page is the browser automation contract the workflows are written against.
//
// Fill and SetRangeValue assign through the element prototype's native value
// setter and then dispatch bubbling "input" and "change" events. The target
// site's reactive front end only observes value changes announced that way.
//
//go:generate mockery --name Page --output ../../internal/mocks --outpkg mocks
type Page interface {
	// Navigate loads url, waits for the load event and then for the network to settle.
	Navigate(ctx context.Context, url string) error
	URL(ctx context.Context) (string, error)
	// WaitVisible polls until loc matches a visible element. It reports false once
	// timeout elapses; the error is reserved for driver failures.
	WaitVisible(ctx context.Context, loc Locator, timeout time.Duration) (bool, error)
	IsVisible(ctx context.Context, loc Locator) (bool, error)
	Snapshot(ctx context.Context, loc Locator) ([]ElementSnapshot, error)
	Text(ctx context.Context, loc Locator) (string, error)
	Attribute(ctx context.Context, loc Locator, name string) (string, bool, error)
	Fill(ctx context.Context, loc Locator, value string) error
	SetRangeValue(ctx context.Context, loc Locator, value string) error
	Click(ctx context.Context, loc Locator) error
	// WaitNetworkIdle reports false if requests were still in flight when timeout elapsed.
	WaitNetworkIdle(ctx context.Context, timeout time.Duration) (bool, error)
	// Screenshot captures the full page as PNG.
	Screenshot(ctx context.Context) ([]byte, error)
}

// Session owns one browser instance and its single page.
type Session interface {
	ID() string
	Page() Page
	// Close releases the browser. It is safe to call more than once.
	Close(ctx context.Context) error
}

// SessionFactory opens browser sessions.
type SessionFactory interface {
	NewSession(ctx context.Context) (Session, error)
}
