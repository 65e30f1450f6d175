package rpspresenter

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"image/png"
	"strings"
	"sync"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/park285/rpsminus-bot/pkg/rpsdto"
)

//go:embed assets/*.svg
var symbolFiles embed.FS

const (
	cardWidth   = 480
	cardHeight  = 300
	iconSize    = 128
	panelWidth  = 180
	panelHeight = 180
	panelTop    = 56
	panelRadius = 14
)

var (
	cardBackground   = color.RGBA{R: 28, G: 31, B: 46, A: 255}
	panelColor       = color.NRGBA{R: 44, G: 48, B: 70, A: 255}
	winnerPanelColor = color.NRGBA{R: 64, G: 122, B: 84, A: 255}
	shadowColor      = color.NRGBA{0, 0, 0, 60}
	textPrimary      = color.NRGBA{R: 236, G: 239, B: 255, A: 255}
	textSecondary    = color.NRGBA{R: 204, G: 210, B: 236, A: 255}
)

type iconKey struct {
	name string
	size int
}

var (
	iconCache   = map[iconKey]image.Image{}
	iconCacheMu sync.RWMutex
)

// Renderer draws the result card: both kept symbols, the winner and the score.
type Renderer struct{}

func NewRenderer() *Renderer { return &Renderer{} }

func (r *Renderer) RenderPNG(ctx context.Context, v rpsdto.RoundView) ([]byte, error) {
	if !v.Resolved() {
		return nil, fmt.Errorf("round %s is not resolved", v.RoundID)
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	img := image.NewRGBA(image.Rect(0, 0, cardWidth, cardHeight))
	imagedraw.Draw(img, img.Bounds(), image.NewUniform(cardBackground), image.Point{}, imagedraw.Src)
	drawer := &font.Drawer{Dst: img, Face: basicfont.Face7x13}

	gap := (cardWidth - panelWidth*2) / 3
	left := image.Rect(gap, panelTop, gap+panelWidth, panelTop+panelHeight)
	right := image.Rect(cardWidth-gap-panelWidth, panelTop, cardWidth-gap, panelTop+panelHeight)

	for _, side := range []struct {
		rect   image.Rectangle
		symbol string
		label  string
		won    bool
	}{
		{left, v.PlayerFinal, "YOU", v.Result == "player"},
		{right, v.BotFinal, "BOT", v.Result == "bot"},
	} {
		fill := panelColor
		if side.won {
			fill = winnerPanelColor
		}
		drawRoundedPanel(img, side.rect.Add(image.Pt(0, 5)), panelRadius, shadowColor)
		drawRoundedPanel(img, side.rect, panelRadius, fill)
		if err := drawSymbol(img, side.symbol, side.rect); err != nil {
			return nil, err
		}
		caption := image.Rect(side.rect.Min.X, side.rect.Max.Y-28, side.rect.Max.X, side.rect.Max.Y)
		drawCenteredString(drawer, caption, side.label+" - "+strings.ToUpper(side.symbol), textSecondary)
	}

	drawCenteredString(drawer, image.Rect(0, 12, cardWidth, panelTop-8), headline(v.Result), textPrimary)
	scoreLine := fmt.Sprintf("ROUND %d   YOU %d : %d BOT", v.RoundNumber, v.Score.PlayerWins, v.Score.BotWins)
	if v.Score.Volatile {
		scoreLine += "  (not saved)"
	}
	drawCenteredString(drawer, image.Rect(0, panelTop+panelHeight+12, cardWidth, cardHeight-12), scoreLine, textPrimary)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func headline(result string) string {
	switch result {
	case "player":
		return "YOU WIN!"
	case "bot":
		return "BOT WINS!"
	default:
		return "IT'S A TIE!"
	}
}

func drawSymbol(dst *image.RGBA, name string, panel image.Rectangle) error {
	icon, err := renderSymbolImage(name, iconSize)
	if err != nil {
		return err
	}
	x := panel.Min.X + (panel.Dx()-iconSize)/2
	y := panel.Min.Y + 12
	imagedraw.Draw(dst, image.Rect(x, y, x+iconSize, y+iconSize), icon, image.Point{}, imagedraw.Over)
	return nil
}

func renderSymbolImage(name string, size int) (image.Image, error) {
	key := iconKey{name: name, size: size}
	iconCacheMu.RLock()
	if img, ok := iconCache[key]; ok {
		iconCacheMu.RUnlock()
		return img, nil
	}
	iconCacheMu.RUnlock()

	data, err := symbolFiles.ReadFile("assets/" + name + ".svg")
	if err != nil {
		return nil, fmt.Errorf("read symbol asset %q: %w", name, err)
	}
	icon, err := oksvg.ReadIconStream(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse symbol svg: %w", err)
	}
	icon.SetTarget(0, 0, float64(size), float64(size))

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	scanner := rasterx.NewScannerGV(size, size, img, img.Bounds())
	raster := rasterx.NewDasher(size, size, scanner)
	icon.Draw(raster, 1.0)

	iconCacheMu.Lock()
	iconCache[key] = img
	iconCacheMu.Unlock()
	return img, nil
}

func drawCenteredString(d *font.Drawer, rect image.Rectangle, text string, clr color.Color) {
	d.Src = image.NewUniform(clr)
	width := d.MeasureString(text).Round()
	metrics := d.Face.Metrics()
	height := (metrics.Ascent + metrics.Descent).Round()
	x := rect.Min.X + (rect.Dx()-width)/2
	y := rect.Min.Y + (rect.Dy()-height)/2 + metrics.Ascent.Round()
	d.Dot = fixed.P(x, y)
	d.DrawString(text)
}

func drawRoundedPanel(img *image.RGBA, rect image.Rectangle, radius int, clr color.Color) {
	if rect.Empty() {
		return
	}
	if maxRadius := min(rect.Dx(), rect.Dy()) / 2; radius > maxRadius {
		radius = maxRadius
	}
	fill := image.NewUniform(clr)
	imagedraw.Draw(img, image.Rect(rect.Min.X+radius, rect.Min.Y, rect.Max.X-radius, rect.Max.Y), fill, image.Point{}, imagedraw.Over)
	imagedraw.Draw(img, image.Rect(rect.Min.X, rect.Min.Y+radius, rect.Min.X+radius, rect.Max.Y-radius), fill, image.Point{}, imagedraw.Over)
	imagedraw.Draw(img, image.Rect(rect.Max.X-radius, rect.Min.Y+radius, rect.Max.X, rect.Max.Y-radius), fill, image.Point{}, imagedraw.Over)

	corners := []image.Point{
		{rect.Min.X + radius, rect.Min.Y + radius},
		{rect.Max.X - radius - 1, rect.Min.Y + radius},
		{rect.Min.X + radius, rect.Max.Y - radius - 1},
		{rect.Max.X - radius - 1, rect.Max.Y - radius - 1},
	}
	r2 := radius * radius
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy > r2 {
				continue
			}
			for i, c := range corners {
				// only the quarter that lies outside the straight bands
				if (i%2 == 0 && dx >= 0) || (i%2 == 1 && dx <= 0) || (i < 2 && dy >= 0) || (i >= 2 && dy <= 0) {
					continue
				}
				img.Set(c.X+dx, c.Y+dy, blendOver(img.At(c.X+dx, c.Y+dy), clr))
			}
		}
	}
}

func blendOver(dst, src color.Color) color.Color {
	sr, sg, sb, sa := src.RGBA()
	dr, dg, db, da := dst.RGBA()
	inv := 0xffff - sa
	return color.RGBA64{
		R: uint16(sr + dr*inv/0xffff),
		G: uint16(sg + dg*inv/0xffff),
		B: uint16(sb + db*inv/0xffff),
		A: uint16(sa + da*inv/0xffff),
	}
}
