package tiles

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// LocalTileProvider renders a labelled grid tile without any network access.
// It backs the offline mode and tests.
type LocalTileProvider struct{}

func NewLocalTileProvider() *LocalTileProvider {
	return &LocalTileProvider{}
}

var layerBackgrounds = map[Layer]color.RGBA{
	LayerMap:       {200, 220, 255, 255},
	LayerSatellite: {90, 110, 80, 255},
}

func (p *LocalTileProvider) FetchTile(ctx context.Context, key Key) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img := RenderPlaceholder(key)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode placeholder %s: %w", key, err)
	}
	return buf.Bytes(), nil
}

// RenderPlaceholder draws a tile showing its zoom, row and column.
func RenderPlaceholder(key Key) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, TileSize, TileSize))

	bg, ok := layerBackgrounds[key.Layer]
	if !ok {
		bg = layerBackgrounds[LayerMap]
	}
	draw.Draw(img, img.Bounds(), &image.Uniform{bg}, image.Point{}, draw.Src)

	drawLabel(img, fmt.Sprintf("%d/%d/%d", key.Zoom, key.Row, key.Col))

	borderColor := color.RGBA{100, 100, 100, 255}
	borders := []image.Rectangle{
		image.Rect(0, 0, TileSize, 1),
		image.Rect(0, TileSize-1, TileSize, TileSize),
		image.Rect(0, 0, 1, TileSize),
		image.Rect(TileSize-1, 0, TileSize, TileSize),
	}
	for _, rect := range borders {
		draw.Draw(img, rect, &image.Uniform{borderColor}, image.Point{}, draw.Src)
	}
	return img
}

func drawLabel(img *image.RGBA, text string) {
	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.Black),
		Face: face,
	}

	textWidth := d.MeasureString(text).Round()
	textHeight := face.Metrics().Height.Round()
	mid := TileSize / 2

	padding := 10
	textBg := image.Rect(
		(TileSize-textWidth)/2-padding,
		mid-textHeight/2-padding,
		(TileSize+textWidth)/2+padding,
		mid+textHeight/2+padding,
	)
	draw.Draw(img, textBg, &image.Uniform{color.RGBA{255, 255, 255, 220}}, image.Point{}, draw.Over)

	d.Dot = fixed.Point26_6{
		X: fixed.I((TileSize - textWidth) / 2),
		Y: fixed.I(mid + textHeight/2),
	}
	d.DrawString(text)
}
