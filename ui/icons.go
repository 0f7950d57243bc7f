package ui

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"sync"

	"github.com/yllada/vpn-client/common"
	"github.com/yllada/vpn-client/tray"
)

// iconPalette colours one tray state.
type iconPalette struct {
	fill   color.RGBA
	border color.RGBA
	accent color.RGBA
	symbol color.RGBA
	check  bool
}

var (
	white = color.RGBA{255, 255, 255, 255}
	badge = color.RGBA{33, 150, 243, 255} // Blue
)

var palettes = map[tray.IconBase]iconPalette{
	tray.BaseSignedOut: {
		fill:   color.RGBA{117, 117, 117, 255},
		border: color.RGBA{158, 158, 158, 255},
		accent: color.RGBA{189, 189, 189, 255},
		symbol: white,
	},
	tray.BaseBusy: {
		fill:   color.RGBA{245, 124, 0, 255},
		border: color.RGBA{255, 167, 38, 255},
		accent: color.RGBA{255, 224, 178, 255},
		symbol: white,
	},
	tray.BaseSignedIn: {
		fill:   color.RGBA{56, 142, 60, 255},
		border: color.RGBA{76, 175, 80, 255},
		accent: color.RGBA{200, 230, 201, 255},
		symbol: white,
		check:  true,
	},
}

var (
	iconCacheMu sync.Mutex
	iconCache   = map[tray.Icon][]byte{}
)

// iconPNG returns the PNG for icon. Renders are cached; there are only six.
func iconPNG(icon tray.Icon) []byte {
	iconCacheMu.Lock()
	defer iconCacheMu.Unlock()

	if b, ok := iconCache[icon]; ok {
		return b
	}
	b, err := renderIcon(icon, common.TrayIconSize)
	if err != nil {
		common.LogError("Couldn't render tray icon: %v", err)
		return nil
	}
	iconCache[icon] = b
	return b
}

func renderIcon(icon tray.Icon, size int) ([]byte, error) {
	p, ok := palettes[icon.Base]
	if !ok {
		p = palettes[tray.BaseSignedOut]
	}

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	drawShield(img, p)
	if p.check {
		drawCheckmark(img, p.symbol)
	} else {
		drawLock(img, p.symbol)
	}
	if icon.UpdateReady {
		drawBadge(img)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func drawShield(img *image.RGBA, p iconPalette) {
	size := img.Bounds().Dx()
	centerX := float64(size) / 2
	top, bottom := 1.0, float64(size)-2
	width := float64(size) - 4

	inside := func(x, y float64) bool {
		rel := (y - top) / (bottom - top)
		if rel < 0 || rel > 1 {
			return false
		}
		half := width/2 - rel*0.5
		if rel >= 0.5 {
			t := (rel - 0.5) * 2
			half = (width/2 - 0.25) * (1 - t*t)
		}
		return x >= centerX-half && x <= centerX+half
	}

	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			fx, fy := float64(x)+0.5, float64(y)+0.5
			if !inside(fx, fy) {
				continue
			}
			switch {
			case !inside(fx-1, fy) || !inside(fx+1, fy) || !inside(fx, fy-1) || !inside(fx, fy+1):
				img.Set(x, y, p.border)
			case float64(y)/float64(size) < 0.3:
				img.Set(x, y, p.accent)
			default:
				img.Set(x, y, p.fill)
			}
		}
	}
}

func drawCheckmark(img *image.RGBA, c color.RGBA) {
	for _, pt := range []image.Point{
		{6, 11}, {7, 11}, {7, 12}, {8, 12}, {8, 13}, {9, 13},
		{9, 12}, {10, 12}, {10, 11}, {11, 11}, {11, 10}, {12, 10},
		{12, 9}, {13, 9}, {13, 8}, {14, 8},
	} {
		if pt.In(img.Bounds()) {
			img.Set(pt.X, pt.Y, c)
		}
	}
}

func drawLock(img *image.RGBA, c color.RGBA) {
	// Body.
	for y := 10; y <= 15; y++ {
		for x := 8; x <= 14; x++ {
			if y == 10 || y == 15 || x == 8 || x == 14 {
				img.Set(x, y, c)
			}
		}
	}
	// Shackle.
	for x := 9; x <= 13; x++ {
		img.Set(x, 6, c)
	}
	for y := 6; y <= 8; y++ {
		img.Set(9, y, c)
		img.Set(13, y, c)
	}
}

// drawBadge puts a dot in the bottom right corner.
func drawBadge(img *image.RGBA) {
	size := img.Bounds().Dx()
	r := size / 5
	cx, cy := size-r-1, size-r-1
	for y := cy - r; y <= cy+r; y++ {
		for x := cx - r; x <= cx+r; x++ {
			dx, dy := x-cx, y-cy
			if dx*dx+dy*dy <= r*r {
				img.Set(x, y, badge)
			}
		}
	}
}
