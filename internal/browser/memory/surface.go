package memory

import (
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// SurfaceURL is the address the scripted login surface is routed at
const SurfaceURL = "memory://login"

// SurfaceOptions configures the scripted multi-factor login surface
type SurfaceOptions struct {
	Login            string
	Password         string
	DisplayName      string
	Code             string
	EnabledPositions []int
	// FieldCount is the number of masked inputs; 0 means one per password character
	FieldCount int
	// Positions overrides the data-pos marker of each field (use "-" to omit the attribute)
	Positions []string
	// RenderDelay postpones every reveal, modelling asynchronous rendering
	RenderDelay time.Duration
	// CodeTabs is the number of tabs the code link opens (default 1)
	CodeTabs int
}

// DefaultSurfaceOptions matches the reference scenario
func DefaultSurfaceOptions() SurfaceOptions {
	return SurfaceOptions{
		Login:            "alice@example.com",
		Password:         "P@ssw0rd",
		DisplayName:      "Alice",
		Code:             "482913",
		EnabledPositions: []int{1, 3, 5, 7},
	}
}

const surfaceIndex = `<!DOCTYPE html>
<html><head><title>Sign in</title></head>
<body>
<main id="app">
  <section id="login-step">
    <label for="email">Email</label>
    <input id="email" type="email" value="">
    <button id="next-btn" type="button">Next</button>
  </section>
</main>
</body></html>`

// ScriptLoginSurface routes SurfaceURL on p and wires the click behaviour of every step
func ScriptLoginSurface(p *Provider, opts SurfaceOptions) {
	if opts.CodeTabs <= 0 {
		opts.CodeTabs = 1
	}
	p.Route(SurfaceURL, surfaceIndex)

	reveal := func(m *Mutator, fn func(m *Mutator)) {
		if opts.RenderDelay > 0 {
			m.Later(opts.RenderDelay, fn)
			return
		}
		fn(m)
	}

	p.OnClick("#next-btn", func(m *Mutator, _ *goquery.Selection) {
		email, _ := m.Find("#email").Attr("value")
		if email != opts.Login {
			m.Append("#app", `<p id="error">Unknown account</p>`)
			return
		}
		reveal(m, func(m *Mutator) {
			m.Append("#app", `<section id="code-step">
    <a id="open-code-link" href="/code" target="_blank">Open code page</a>
    <input id="code" type="text" value="">
    <button id="code-next-btn" type="button">Next</button>
  </section>`)
		})
	})

	p.OnClick("#open-code-link", func(m *Mutator, _ *goquery.Selection) {
		for i := 0; i < opts.CodeTabs; i++ {
			tab := m.Open("memory://code", `<html><body><main id="code-page"></main></body></html>`)
			reveal(tab, func(tab *Mutator) {
				tab.Append("#code-page", fmt.Sprintf(`<div id="code-value">
      %s
    </div>`, html.EscapeString(opts.Code)))
			})
		}
	})

	p.OnClick("#code-next-btn", func(m *Mutator, _ *goquery.Selection) {
		code, _ := m.Find("#code").Attr("value")
		if code != opts.Code {
			m.Append("#app", `<p id="error">Invalid code</p>`)
			return
		}
		reveal(m, func(m *Mutator) {
			m.Append("#app", maskedStepHTML(opts))
		})
	})

	p.OnClick("#login-btn", func(m *Mutator, _ *goquery.Selection) {
		password := []rune(opts.Password)
		ok := true
		m.Find("input.masked-input").Each(func(_ int, s *goquery.Selection) {
			if _, disabled := s.Attr("disabled"); disabled {
				return
			}
			raw, _ := s.Attr("data-pos")
			pos, err := strconv.Atoi(raw)
			if err != nil || pos < 1 || pos > len(password) {
				ok = false
				return
			}
			if value, _ := s.Attr("value"); value != string(password[pos-1]) {
				ok = false
			}
		})
		if !ok {
			m.Append("#app", `<p id="error">Invalid password</p>`)
			return
		}
		reveal(m, func(m *Mutator) {
			m.Append("#app", fmt.Sprintf(`<h1 id="welcome">
    Welcome, %s!
  </h1>`, html.EscapeString(opts.DisplayName)))
		})
	})
}

func maskedStepHTML(opts SurfaceOptions) string {
	count := opts.FieldCount
	if count == 0 {
		count = len([]rune(opts.Password))
	}
	if len(opts.Positions) > count {
		count = len(opts.Positions)
	}

	enabled := make(map[int]bool, len(opts.EnabledPositions))
	for _, pos := range opts.EnabledPositions {
		enabled[pos] = true
	}

	var b strings.Builder
	b.WriteString(`<section id="masked-step"><div class="masked-row">`)
	for i := 1; i <= count; i++ {
		marker := strconv.Itoa(i)
		if i <= len(opts.Positions) {
			marker = opts.Positions[i-1]
		}

		b.WriteString(`<input class="masked-input" type="password" maxlength="1" value=""`)
		if marker != "-" {
			fmt.Fprintf(&b, ` data-pos="%s"`, html.EscapeString(marker))
		}
		if !enabled[i] {
			b.WriteString(` disabled`)
		}
		b.WriteString(`>`)
	}
	b.WriteString(`</div><button id="login-btn" type="button">Log in</button></section>`)
	return b.String()
}
