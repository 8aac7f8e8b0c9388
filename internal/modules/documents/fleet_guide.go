package documents

import (
	"bytes"
	"fmt"
	"image/color"
	"strings"
	"time"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"

	domainagg "github.com/Kcheesee/StarCitiSalesAgent/internal/domain/aggregates"
)

const (
	guideWidth    = 1200
	guideMargin   = 48
	cardPadding   = 28
	cardGap       = 24
	maxDescLines  = 4
	headerHeight  = 180
	sectionGap    = 36
	lineSpacing   = 1.4
	guideDateFmt  = "January 2, 2006"
	defaultClient = "Prospective Citizen"
)

var (
	colorBackground = color.RGBA{R: 0x0b, G: 0x10, B: 0x1e, A: 0xff}
	colorHeader     = color.RGBA{R: 0x13, G: 0x2a, B: 0x4a, A: 0xff}
	colorCard       = color.RGBA{R: 0x17, G: 0x1f, B: 0x33, A: 0xff}
	colorAccent     = color.RGBA{R: 0x4f, G: 0xc3, B: 0xf7, A: 0xff}
	colorText       = color.RGBA{R: 0xe8, G: 0xee, B: 0xf6, A: 0xff}
	colorMuted      = color.RGBA{R: 0x9a, G: 0xa8, B: 0xbd, A: 0xff}
	colorReason     = color.RGBA{R: 0x81, G: 0xe6, B: 0x9a, A: 0xff}
)

// Renderer draws fleet guides. Parsed fonts are shared; faces are created per
// render because font.Face is not safe for concurrent use.
type Renderer struct {
	regular *truetype.Font
	bold    *truetype.Font
}

func NewRenderer() (*Renderer, error) {
	regular, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse regular font: %w", err)
	}
	bold, err := truetype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse bold font: %w", err)
	}
	return &Renderer{regular: regular, bold: bold}, nil
}

type faces struct {
	title, heading, body, small font.Face
}

func (r *Renderer) faces() faces {
	return faces{
		title:   truetype.NewFace(r.bold, &truetype.Options{Size: 44}),
		heading: truetype.NewFace(r.bold, &truetype.Options{Size: 26}),
		body:    truetype.NewFace(r.regular, &truetype.Options{Size: 18}),
		small:   truetype.NewFace(r.regular, &truetype.Options{Size: 15}),
	}
}

// Transcript renders the plain-text transcript.
func (r *Renderer) Transcript(snap *domainagg.ConversationSnapshot, now time.Time) []byte {
	return RenderTranscript(snap, now)
}

// FleetGuide renders one PNG with a header, the fleet summary and a card per
// ledger entry in priority order.
func (r *Renderer) FleetGuide(snap *domainagg.ConversationSnapshot, entries []FleetEntry, now time.Time) ([]byte, error) {
	if snap == nil || snap.Conversation == nil {
		return nil, fmt.Errorf("fleet guide: conversation required")
	}
	f := r.faces()
	contentWidth := float64(guideWidth - 2*guideMargin)
	textWidth := contentWidth - 2*cardPadding

	// measure pass on a throwaway context
	m := gg.NewContext(1, 1)
	summary := wrap(m, f.body, FleetSummary(entries), contentWidth)
	cards := make([]cardLayout, 0, len(entries))
	for i, e := range entries {
		cards = append(cards, layoutCard(m, f, i+1, e, textWidth))
	}
	steps := NextSteps(entries)

	height := float64(headerHeight) + sectionGap
	height += lineHeight(f.heading) + float64(len(summary))*lineHeight(f.body) + sectionGap
	for _, c := range cards {
		height += c.height + cardGap
	}
	height += lineHeight(f.heading) + float64(len(steps))*lineHeight(f.body) + sectionGap + 2*lineHeight(f.small)

	dc := gg.NewContext(guideWidth, int(height+guideMargin))
	dc.SetColor(colorBackground)
	dc.Clear()

	// header band
	dc.SetColor(colorHeader)
	dc.DrawRectangle(0, 0, guideWidth, headerHeight)
	dc.Fill()
	dc.SetColor(colorAccent)
	dc.DrawRectangle(0, headerHeight-6, guideWidth, 6)
	dc.Fill()
	dc.SetFontFace(f.title)
	dc.SetColor(colorText)
	dc.DrawString("Your Fleet Composition Guide", guideMargin, 78)
	dc.SetFontFace(f.body)
	dc.SetColor(colorMuted)
	client := strOr(snap.Conversation.ContactName, strOr(snap.Conversation.ContactEmail, defaultClient))
	dc.DrawString("Prepared for: "+client, guideMargin, 118)
	dc.DrawString("Generated by StarCiti Sales Agent on "+now.UTC().Format(guideDateFmt), guideMargin, 148)

	y := float64(headerHeight) + sectionGap
	y = drawHeading(dc, f, "Fleet Analysis", y)
	dc.SetFontFace(f.body)
	dc.SetColor(colorText)
	for _, line := range summary {
		y += lineHeight(f.body)
		dc.DrawString(line, guideMargin, y)
	}
	y += sectionGap

	for _, c := range cards {
		drawCard(dc, f, c, y, contentWidth)
		y += c.height + cardGap
	}

	y = drawHeading(dc, f, "Next Steps", y)
	dc.SetFontFace(f.body)
	dc.SetColor(colorText)
	for i, s := range steps {
		y += lineHeight(f.body)
		dc.DrawString(fmt.Sprintf("%d. %s", i+1, s), guideMargin, y)
	}
	y += sectionGap
	dc.SetFontFace(f.small)
	dc.SetColor(colorMuted)
	dc.DrawString("Ship specifications and prices are subject to change during Star Citizen's development.", guideMargin, y)

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode fleet guide: %w", err)
	}
	return buf.Bytes(), nil
}

type cardLayout struct {
	title  string
	meta   string
	desc   []string
	reason []string
	height float64
}

func layoutCard(m *gg.Context, f faces, n int, e FleetEntry, width float64) cardLayout {
	c := cardLayout{title: fmt.Sprintf("%d. %s", n, e.Name())}

	meta := []string{}
	if v := e.Manufacturer(); v != "" {
		meta = append(meta, v)
	}
	if v := e.Role(); v != "" {
		meta = append(meta, v)
	}
	if e.Item != nil {
		meta = append(meta, fmt.Sprintf("Crew %d-%d", e.Item.CrewMin, e.Item.CrewMax))
		if e.Item.CargoCapacity > 0 {
			meta = append(meta, groupThousands(int64(e.Item.CargoCapacity))+" SCU")
		}
	}
	meta = append(meta, e.PriceLabel())
	c.meta = strings.Join(meta, " | ")

	if e.Item != nil && strings.TrimSpace(e.Item.Description) != "" {
		c.desc = wrap(m, f.body, e.Item.Description, width)
		if len(c.desc) > maxDescLines {
			c.desc = c.desc[:maxDescLines]
			c.desc[maxDescLines-1] = strings.TrimRight(c.desc[maxDescLines-1], " .,") + "..."
		}
	}
	if e.Record != nil && strings.TrimSpace(e.Record.Reason) != "" {
		c.reason = wrap(m, f.body, "Why this ship? "+e.Record.Reason, width)
	}

	c.height = 2*cardPadding + lineHeight(f.heading) + lineHeight(f.small) + 8
	c.height += float64(len(c.desc)+len(c.reason)) * lineHeight(f.body)
	return c
}

func drawCard(dc *gg.Context, f faces, c cardLayout, top, width float64) {
	dc.SetColor(colorCard)
	dc.DrawRoundedRectangle(guideMargin, top, width, c.height, 14)
	dc.Fill()
	dc.SetColor(colorAccent)
	dc.DrawRectangle(guideMargin, top+14, 5, c.height-28)
	dc.Fill()

	x := float64(guideMargin + cardPadding)
	y := top + cardPadding + lineHeight(f.heading)*0.8
	dc.SetFontFace(f.heading)
	dc.SetColor(colorText)
	dc.DrawString(c.title, x, y)

	y += lineHeight(f.small) + 8
	dc.SetFontFace(f.small)
	dc.SetColor(colorMuted)
	dc.DrawString(c.meta, x, y)

	dc.SetFontFace(f.body)
	dc.SetColor(colorText)
	for _, line := range c.desc {
		y += lineHeight(f.body)
		dc.DrawString(line, x, y)
	}
	dc.SetColor(colorReason)
	for _, line := range c.reason {
		y += lineHeight(f.body)
		dc.DrawString(line, x, y)
	}
}

func drawHeading(dc *gg.Context, f faces, text string, y float64) float64 {
	y += lineHeight(f.heading)
	dc.SetFontFace(f.heading)
	dc.SetColor(colorAccent)
	dc.DrawString(text, guideMargin, y)
	return y
}

func wrap(m *gg.Context, face font.Face, text string, width float64) []string {
	m.SetFontFace(face)
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return nil
	}
	return m.WordWrap(text, width)
}

func lineHeight(face font.Face) float64 {
	return float64(face.Metrics().Height.Ceil()) * lineSpacing
}
