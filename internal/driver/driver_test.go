package driver_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/mfaflow/internal/browser/memory"
	"github.com/ternarybob/mfaflow/internal/driver"
	"github.com/ternarybob/mfaflow/internal/models"
)

func newDriver(t *testing.T, html string) (*driver.Driver, *memory.Provider) {
	t.Helper()
	p := memory.New()
	t.Cleanup(p.Close)
	require.NoError(t, p.Load(html))
	return driver.New(p, 5*time.Millisecond, arbor.NewLogger()), p
}

func TestFindWhenReady_ImmediateMatch(t *testing.T) {
	d, _ := newDriver(t, `<input id="email">`)

	el, err := d.FindWhenReady(context.Background(), models.ID("email"), time.Second)
	require.NoError(t, err)
	assert.Equal(t, d.ActiveContext(), el.Context())
}

func TestFindWhenReady_WaitsForDelayedRender(t *testing.T) {
	d, p := newDriver(t, `<main id="app"><button id="go"></button></main>`)
	p.OnClick("#go", func(m *memory.Mutator, _ *goquery.Selection) {
		m.Later(30*time.Millisecond, func(m *memory.Mutator) {
			m.Append("#app", `<span id="late">ready</span>`)
		})
	})

	ctx := context.Background()
	btn, err := d.FindWhenReady(ctx, models.ID("go"), time.Second)
	require.NoError(t, err)
	require.NoError(t, d.Click(ctx, btn))

	el, err := d.FindWhenReady(ctx, models.ID("late"), time.Second)
	require.NoError(t, err)

	text, err := d.ReadText(ctx, el)
	require.NoError(t, err)
	assert.Equal(t, "ready", text)
}

func TestFindWhenReady_NotFoundAfterTimeout(t *testing.T) {
	d, _ := newDriver(t, `<div></div>`)

	start := time.Now()
	_, err := d.FindWhenReady(context.Background(), models.ID("missing"), 40*time.Millisecond)
	require.Error(t, err)
	assert.True(t, errors.Is(err, driver.ErrNotFound))
	assert.Equal(t, "NotFound", driver.Kind(err))
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestFindWhenReady_ParentCancellation(t *testing.T) {
	d, _ := newDriver(t, `<div></div>`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.FindWhenReady(ctx, models.ID("missing"), time.Second)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestFindAllWhenReady(t *testing.T) {
	d, _ := newDriver(t, `<input class="m" data-pos="1"><input class="m" data-pos="2" disabled>`)
	ctx := context.Background()

	found, err := d.FindAllWhenReady(ctx, models.CSS("input.m"), time.Second)
	require.NoError(t, err)
	assert.Len(t, found, 2)

	found, err = d.FindAllWhenReady(ctx, models.CSS("input.none"), 20*time.Millisecond)
	require.NoError(t, err, "an empty result is not an error")
	assert.Empty(t, found)

	found, err = d.FindAllWhenReady(ctx, models.Attr("data-pos", "2"), time.Second)
	require.NoError(t, err)
	require.Len(t, found, 1)

	ok, err := d.IsInteractable(ctx, found[0])
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReadText_TrimsSurroundingWhitespace(t *testing.T) {
	d, _ := newDriver(t, "<div id=\"code\">\n\t  123456 \n</div>")
	ctx := context.Background()

	el, err := d.FindWhenReady(ctx, models.ID("code"), time.Second)
	require.NoError(t, err)

	text, err := d.ReadText(ctx, el)
	require.NoError(t, err)
	assert.Equal(t, "123456", text)
}

func TestSetText_ReplacesPriorValue(t *testing.T) {
	d, p := newDriver(t, `<input id="code" value="stale">`)
	ctx := context.Background()

	el, err := d.FindWhenReady(ctx, models.ID("code"), time.Second)
	require.NoError(t, err)
	require.NoError(t, d.SetText(ctx, el, "482913"))

	value, present, err := d.ReadAttribute(ctx, el, "value")
	require.NoError(t, err)
	assert.True(t, present)
	assert.Equal(t, "482913", value)

	events := p.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "clear", events[0].Kind)
	assert.Equal(t, "keys", events[1].Kind)
}

func TestReadAttribute_Absent(t *testing.T) {
	d, _ := newDriver(t, `<input id="plain">`)
	ctx := context.Background()

	el, err := d.FindWhenReady(ctx, models.ID("plain"), time.Second)
	require.NoError(t, err)

	_, present, err := d.ReadAttribute(ctx, el, "data-pos")
	require.NoError(t, err)
	assert.False(t, present)
}

func TestContexts_SwitchCloseAndStale(t *testing.T) {
	d, p := newDriver(t, `<div id="origin"></div>`)
	ctx := context.Background()
	origin := d.ActiveContext()

	originEl, err := d.FindWhenReady(ctx, models.ID("origin"), time.Second)
	require.NoError(t, err)

	second := p.Open("memory://second", `<div id="second"></div>`)

	set, err := d.WaitForContextCount(ctx, 1, time.Second)
	require.NoError(t, err)
	assert.Equal(t, []models.ContextHandle{second}, set.Difference(models.NewContextSet(origin)))

	require.NoError(t, d.SwitchTo(ctx, second))

	// Element resolved in the origin is stale while another context is active
	err = d.Click(ctx, originEl)
	assert.True(t, errors.Is(err, driver.ErrStaleContext))

	require.NoError(t, d.CloseActive(ctx))
	assert.Equal(t, models.ContextHandle(""), d.ActiveContext())

	_, err = d.FindWhenReady(ctx, models.ID("second"), time.Second)
	assert.True(t, errors.Is(err, driver.ErrStaleContext), "lookups with nothing active fail fast")

	err = d.CloseActive(ctx)
	assert.True(t, errors.Is(err, driver.ErrStaleContext))

	err = d.SwitchTo(ctx, second)
	assert.True(t, errors.Is(err, driver.ErrStaleContext))

	require.NoError(t, d.SwitchTo(ctx, origin))
	open, err := d.ListOpenContexts(ctx)
	require.NoError(t, err)
	assert.True(t, open.Equal(models.NewContextSet(origin)))
}

func TestWaitForContextCount_Timeout(t *testing.T) {
	d, _ := newDriver(t, `<div></div>`)

	_, err := d.WaitForContextCount(context.Background(), 1, 30*time.Millisecond)
	assert.True(t, errors.Is(err, driver.ErrNotFound))
}

func TestKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{driver.ErrNotFound, "NotFound"},
		{driver.ErrAmbiguousContext, "AmbiguousContext"},
		{driver.ErrInvalidPosition, "InvalidPosition"},
		{driver.ErrStaleContext, "StaleContext"},
		{errors.New("boom"), "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, driver.Kind(tt.err))
		})
	}
}
