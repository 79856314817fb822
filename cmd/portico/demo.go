package main

import (
	"fmt"

	portico "github.com/portico-dev/portico"
)

// demoCSS is inlined into the bootstrap page.
const demoCSS = `
body { font-family: system-ui, sans-serif; margin: 2rem auto; max-width: 40rem; padding: 0 1rem; }
button { margin: 0 0.5rem 0.5rem 0; }
section { min-height: 4rem; border: 1px dashed #999; border-radius: 4px; margin: 0.75rem 0; padding: 0.75rem; }
.banner { background: #ffd54f; padding: 0.5rem; border-radius: 4px; margin-top: 0.5rem; }
.ticker { background: #90caf9; padding: 0.5rem; border-radius: 4px; margin-top: 0.5rem; }
`

// mountDemo builds the demo document for one session: two zones, a dynamic
// banner that is torn down and rebuilt wherever it lands, and a persistent
// ticker whose element identity and count survive every move.
func mountDemo(s *portico.Session) error {
	doc := s.Document()
	root := doc.Root()

	title := doc.CreateElement("h1")
	title.AppendChild(doc.CreateText("Portico demo"))
	root.AppendChild(title)

	intro := doc.CreateElement("p")
	intro.AppendChild(doc.CreateText(
		"The banner is rebuilt on every move. The ticker moves in place and keeps its count."))
	root.AppendChild(intro)

	controls := doc.CreateElement("div")
	root.AppendChild(controls)

	zoneA := demoZone(doc, "zone-a", "Zone A")
	zoneB := demoZone(doc, "zone-b", "Zone B")

	bannerHost := portico.NewHost(nil)
	tickerHost := portico.NewHost(zoneA)
	ticks := portico.NewSignal(0)
	builds := 0

	portico.MountDynamic(doc, bannerHost, func(d *portico.Document) *portico.Element {
		builds++
		div := d.CreateElement("div")
		div.SetAttr("class", "banner")
		div.AppendChild(d.CreateText(fmt.Sprintf("dynamic banner, build #%d", builds)))
		return div
	})

	portico.MountPersistent(doc, tickerHost, func(d *portico.Document) *portico.Element {
		div := d.CreateElement("div")
		div.SetAttr("class", "ticker")
		count := d.CreateText("")
		div.AppendChild(count)
		portico.NewEffect(func() portico.Cleanup {
			count.SetText(fmt.Sprintf("persistent ticker, %d ticks", ticks.Get()))
			return nil
		})
		return div
	})

	button := func(label string, onClick func()) {
		b := doc.CreateElement("button")
		b.AppendChild(doc.CreateText(label))
		controls.AppendChild(b)
		s.HandleEvent(b.EID(), portico.EventClick, func(portico.Ctx) error {
			onClick()
			return nil
		})
	}

	button("Banner to A", func() { bannerHost.Set(zoneA) })
	button("Banner to B", func() { bannerHost.Set(zoneB) })
	button("Release banner", func() { bannerHost.Set(nil) })
	button("Ticker to A", func() { tickerHost.Set(zoneA) })
	button("Ticker to B", func() { tickerHost.Set(zoneB) })
	button("Tick", func() { ticks.Update(func(n int) int { return n + 1 }) })

	return nil
}

// demoZone creates one drop zone under the document root.
func demoZone(doc *portico.Document, id, label string) *portico.Element {
	zone := doc.CreateElement("section")
	zone.SetID(id)
	zone.AppendChild(doc.CreateText(label))
	doc.Root().AppendChild(zone)
	return zone
}
