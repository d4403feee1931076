// Package render composes card images from rarity backgrounds and character
// art and stamps the stats and serial number on top.
package render

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/avvvet/cardbot-services/internal/cardsvc/catalog"
	"github.com/avvvet/cardbot-services/internal/cardsvc/models"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var ErrAssetMissing = errors.New("render: asset missing")

// stat rows start here and step down by statStep pixels
const (
	statX       = 200
	statY       = 400
	statStep    = 80
	serialLift  = 250
	strokeWidth = 2
)

// Request is everything needed to draw one card.
type Request struct {
	Rarity       models.Rarity
	Set          string
	Name         string
	Variant      string
	SerialNumber string
	Stats        models.Stats
}

func FromRecord(r models.CardRecord) Request {
	return Request{
		Rarity:       r.Rarity,
		Set:          r.Set,
		Name:         r.Name,
		Variant:      r.Variant,
		SerialNumber: r.SerialNumber,
		Stats:        r.Stats,
	}
}

// Renderer reads art from <assetDir>/backgrounds/<rarity>.png and
// <assetDir>/characters/<setCode>/<charCode>.png.
type Renderer struct {
	assetDir string
	codes    *catalog.Codes
	face     font.Face
}

func New(assetDir string, codes *catalog.Codes) *Renderer {
	return &Renderer{assetDir: assetDir, codes: codes, face: basicfont.Face7x13}
}

// BackgroundPath returns the background for a rarity; unknown rarities use the
// common background.
func (r *Renderer) BackgroundPath(rarity models.Rarity) string {
	name := "common"
	if rarity.Valid() {
		name = strings.ToLower(strings.ReplaceAll(string(rarity), " ", ""))
	}
	return filepath.Join(r.assetDir, "backgrounds", name+".png")
}

// CharacterPath prefers the variant code over the character's base code.
func (r *Renderer) CharacterPath(set, name, variant string) string {
	setCode := r.codes.SetCode(catalog.Name(set))
	charCode := r.codes.CharacterCode(catalog.Name(name))
	if variant != "" {
		charCode = r.codes.CharacterCode(catalog.Code(variant))
	}
	return filepath.Join(r.assetDir, "characters", setCode, charCode+".png")
}

// Render returns the composed card as PNG bytes. A missing background or
// character file yields an error wrapping ErrAssetMissing.
func (r *Renderer) Render(req Request) ([]byte, error) {
	bg, err := loadPNG(r.BackgroundPath(req.Rarity))
	if err != nil {
		return nil, err
	}
	char, err := loadPNG(r.CharacterPath(req.Set, req.Name, req.Variant))
	if err != nil {
		return nil, err
	}

	bounds := bg.Bounds()
	canvas := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	xdraw.Draw(canvas, canvas.Bounds(), bg, bounds.Min, xdraw.Src)
	xdraw.CatmullRom.Scale(canvas, canvas.Bounds(), char, char.Bounds(), xdraw.Over, nil)

	for i, f := range req.Stats.Fields() {
		r.drawText(canvas, statX, statY+i*statStep, strconv.Itoa(f.Value)+" "+f.Abbr)
	}

	width := font.MeasureString(r.face, req.SerialNumber).Ceil()
	x := max((canvas.Bounds().Dx()-width)/2, 0)
	y := canvas.Bounds().Dy() - serialLift
	if y < r.face.Metrics().Ascent.Ceil() {
		y = canvas.Bounds().Dy() - r.face.Metrics().Descent.Ceil()
	}
	r.drawText(canvas, x, y, req.SerialNumber)

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, fmt.Errorf("render: encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// drawText draws white text with a black outline with its baseline at y.
func (r *Renderer) drawText(dst xdraw.Image, x, y int, text string) {
	d := &font.Drawer{Dst: dst, Face: r.face}

	d.Src = image.NewUniform(color.Black)
	for dx := -strokeWidth; dx <= strokeWidth; dx++ {
		for dy := -strokeWidth; dy <= strokeWidth; dy++ {
			if dx == 0 && dy == 0 {
				continue
			}
			d.Dot = fixed.P(x+dx, y+dy)
			d.DrawString(text)
		}
	}

	d.Src = image.NewUniform(color.White)
	d.Dot = fixed.P(x, y)
	d.DrawString(text)
}

func loadPNG(path string) (image.Image, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrAssetMissing, path)
	}
	if err != nil {
		return nil, fmt.Errorf("render: open %s: %w", path, err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("render: decode %s: %w", path, err)
	}
	return img, nil
}
