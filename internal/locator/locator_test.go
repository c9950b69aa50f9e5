package locator

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/rateidea-agent/api/schemas"
	"github.com/xkilldash9x/rateidea-agent/internal/config"
	"github.com/xkilldash9x/rateidea-agent/internal/mocks"
)

func testSite() config.SiteConfig {
	return config.SiteConfig{
		CandidateSelector: `a[href^="/idea/"]`,
		Exclusions:        []string{"/create"},
	}
}

func testWaits() config.WaitsConfig {
	return config.WaitsConfig{Candidates: 50 * time.Millisecond}
}

// entry builds the snapshot of a listing card.
func entry(pos int, href, title, label string) schemas.ElementSnapshot {
	html := fmt.Sprintf(`<a href=%q><h3>%s</h3>`, href, title)
	if label != "" {
		html += fmt.Sprintf(`<span>%s</span>`, label)
	}
	html += `</a>`
	return schemas.ElementSnapshot{
		Position:   pos,
		OuterHTML:  html,
		Text:       title + " " + label,
		Attributes: map[string]string{"href": href},
		Visible:    true,
	}
}

func newTestFinder(t *testing.T) *Finder {
	return NewFinder(testSite(), testWaits(), FeedbackSignal(), zaptest.NewLogger(t))
}

func TestSelectLowest(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		assert.Nil(t, SelectLowest(nil))
	})

	t.Run("strict minimum", func(t *testing.T) {
		got := SelectLowest([]schemas.Candidate{
			{URL: "/idea/a", Signal: 5},
			{URL: "/idea/b", Signal: 2},
			{URL: "/idea/c", Signal: 9},
		})
		require.NotNil(t, got)
		assert.Equal(t, "/idea/b", got.URL)
	})

	t.Run("ties keep the first seen", func(t *testing.T) {
		got := SelectLowest([]schemas.Candidate{
			{URL: "/idea/a", Signal: 3},
			{URL: "/idea/b", Signal: 1},
			{URL: "/idea/c", Signal: 1},
		})
		require.NotNil(t, got)
		assert.Equal(t, "/idea/b", got.URL)
	})

	t.Run("returned candidate is a copy", func(t *testing.T) {
		in := []schemas.Candidate{{URL: "/idea/a", Signal: 0}}
		got := SelectLowest(in)
		got.URL = "changed"
		assert.Equal(t, "/idea/a", in[0].URL)
	})
}

func TestCandidates(t *testing.T) {
	f := newTestFinder(t)

	hidden := entry(3, "/idea/hidden", "Hidden", "0 feedback")
	hidden.Visible = false
	noHref := entry(4, "", "Broken", "0 feedback")

	got := f.Candidates([]schemas.ElementSnapshot{
		entry(0, "/idea/1", "Fitness Coach", "3 feedback"),
		entry(1, "/create", "Share your idea", ""),
		entry(2, "/idea/2", "Meal Planner", ""),
		hidden,
		noHref,
	})

	want := []schemas.Candidate{
		{URL: "/idea/1", Title: "Fitness Coach", Signal: 3, HasSignal: true, Position: 0},
		{URL: "/idea/2", Title: "Meal Planner", Signal: 0, HasSignal: false, Position: 2},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Candidates() mismatch (-want +got):\n%s", diff)
	}
}

func TestTitleFallsBackToLinkText(t *testing.T) {
	f := newTestFinder(t)
	snap := schemas.ElementSnapshot{
		OuterHTML:  `<a href="/idea/9"><div>Plant   Tracker</div></a>`,
		Text:       "Plant\n  Tracker",
		Attributes: map[string]string{"href": "/idea/9"},
		Visible:    true,
	}
	got := f.Candidates([]schemas.ElementSnapshot{snap})
	require.Len(t, got, 1)
	assert.Equal(t, "Plant Tracker", got[0].Title)
}

func TestFindLowestRanked(t *testing.T) {
	ctx := context.Background()
	loc := schemas.CSS(`a[href^="/idea/"]`)

	t.Run("entries without a label rank as zero", func(t *testing.T) {
		page := new(mocks.MockPage)
		page.On("WaitVisible", mock.Anything, loc, 50*time.Millisecond).Return(true, nil)
		page.On("Snapshot", mock.Anything, loc).Return([]schemas.ElementSnapshot{
			entry(0, "/idea/1", "One", "2 feedback"),
			entry(1, "/idea/2", "Two", ""),
			entry(2, "/idea/3", "Three", "1 feedback"),
		}, nil)

		got, err := newTestFinder(t).FindLowestRanked(ctx, page)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "/idea/2", got.URL)
		assert.False(t, got.HasSignal)
		page.AssertExpectations(t)
	})

	t.Run("excluded links are never selected", func(t *testing.T) {
		page := new(mocks.MockPage)
		page.On("WaitVisible", mock.Anything, loc, mock.Anything).Return(true, nil)
		page.On("Snapshot", mock.Anything, loc).Return([]schemas.ElementSnapshot{
			entry(0, "/create", "Create", ""),
			entry(1, "/idea/1", "One", "4 feedback"),
		}, nil)

		got, err := newTestFinder(t).FindLowestRanked(ctx, page)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "/idea/1", got.URL)
		assert.Equal(t, 4, got.Signal)
	})

	t.Run("only excluded links yields no candidate", func(t *testing.T) {
		page := new(mocks.MockPage)
		page.On("WaitVisible", mock.Anything, loc, mock.Anything).Return(true, nil)
		page.On("Snapshot", mock.Anything, loc).Return([]schemas.ElementSnapshot{
			entry(0, "/create", "Create", ""),
		}, nil)

		got, err := newTestFinder(t).FindLowestRanked(ctx, page)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("nothing visible within the bound", func(t *testing.T) {
		page := new(mocks.MockPage)
		page.On("WaitVisible", mock.Anything, loc, 50*time.Millisecond).Return(false, nil)

		got, err := newTestFinder(t).FindLowestRanked(ctx, page)
		require.NoError(t, err)
		assert.Nil(t, got)
		page.AssertNotCalled(t, "Snapshot", mock.Anything, mock.Anything)
	})

	t.Run("driver errors propagate", func(t *testing.T) {
		boom := errors.New("target crashed")
		page := new(mocks.MockPage)
		page.On("WaitVisible", mock.Anything, loc, mock.Anything).Return(true, nil)
		page.On("Snapshot", mock.Anything, loc).Return(nil, boom)

		_, err := newTestFinder(t).FindLowestRanked(ctx, page)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("reach signal on the dashboard", func(t *testing.T) {
		page := new(mocks.MockPage)
		page.On("WaitVisible", mock.Anything, loc, mock.Anything).Return(true, nil)
		page.On("Snapshot", mock.Anything, loc).Return([]schemas.ElementSnapshot{
			entry(0, "/idea/1", "One", "1,204 reach"),
			entry(1, "/idea/2", "Two", "87 reach"),
		}, nil)

		f := NewFinder(testSite(), testWaits(), ReachSignal(), zaptest.NewLogger(t))
		got, err := f.FindLowestRanked(ctx, page)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "/idea/2", got.URL)
		assert.Equal(t, 87, got.Signal)
	})
}
