// Package layout defines the fixed slot geometry for collage compositions.
//
// Each layout lists its slots once, in paint order: the sequence is both the
// ffmpeg input order and the overlay z-order, with later slots drawn on top.
package layout

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/nocodecult/composer-api/internal/filtergraph"
)

// ErrSlotMismatch is returned when an image map does not cover a layout's
// slots exactly.
var ErrSlotMismatch = errors.New("image slots do not match layout")

// Slot is one image position on the canvas. Images are cover-scaled to W x H
// and composited at (X, Y).
type Slot struct {
	Name string
	X    int
	Y    int
	W    int
	H    int
}

// Layout is a named canvas with its ordered slots.
type Layout struct {
	Name         string
	CanvasWidth  int
	CanvasHeight int
	// HeaderHeight > 0 draws a filled black band across the top.
	HeaderHeight int
	Slots        []Slot
}

// Label is a short caption anchored to a point on the canvas.
type Label struct {
	Text string
	X    int
	Y    int
}

const (
	outfitTileSize    = 380
	outfitLabelOffset = -70
)

var (
	outfitTileX = []int{40, 350, 660}
	outfitTileY = []int{435, 891, 1361}
)

// Outfit is the 3x3 grid of equally sized tiles on a 9:16 canvas.
var Outfit = Layout{
	Name:         "outfit",
	CanvasWidth:  1080,
	CanvasHeight: 1920,
	Slots:        outfitSlots(),
}

func outfitSlots() []Slot {
	slots := make([]Slot, 0, 9)
	i := 0
	for _, y := range outfitTileY {
		for _, x := range outfitTileX {
			i++
			slots = append(slots, Slot{
				Name: fmt.Sprintf("tile%d", i),
				X:    x, Y: y,
				W: outfitTileSize, H: outfitTileSize,
			})
		}
	}
	return slots
}

// OutfitLabels returns the captions drawn above each outfit tile, centered
// horizontally on the tile.
func OutfitLabels() []Label {
	texts := []string{"A:", "B:", "C:", "1:", "2:", "3:", "D:", "E:", "F:"}
	labels := make([]Label, 0, len(texts))
	i := 0
	for _, y := range outfitTileY {
		for _, x := range outfitTileX {
			labels = append(labels, Label{
				Text: texts[i],
				X:    x + outfitTileSize/2,
				Y:    y + outfitLabelOffset,
			})
			i++
		}
	}
	return labels
}

// OutfitSingle is the single-outfit composition: six overlapping garment
// shots under a black header band.
var OutfitSingle = Layout{
	Name:         "outfit-single",
	CanvasWidth:  1080,
	CanvasHeight: 1920,
	HeaderHeight: 280,
	Slots: []Slot{
		{Name: "hoodie", X: 270, Y: 590, W: 540, H: 540},
		{Name: "hat", X: 365, Y: 320, W: 350, H: 350},
		{Name: "meme", X: 120, Y: 980, W: 250, H: 250},
		{Name: "pants", X: 290, Y: 1060, W: 500, H: 500},
		{Name: "extra", X: 680, Y: 825, W: 280, H: 280},
		{Name: "shoes", X: 370, Y: 1450, W: 340, H: 340},
	},
}

// POV is the eight-slot scene composition under a taller header band.
var POV = Layout{
	Name:         "pov",
	CanvasWidth:  1080,
	CanvasHeight: 1920,
	HeaderHeight: 346,
	Slots: []Slot{
		{Name: "landscape", X: 455, Y: 597, W: 625, H: 625},
		{Name: "pants", X: 37, Y: 1139, W: 380, H: 380},
		{Name: "shirt", X: 69, Y: 768, W: 358, H: 358},
		{Name: "cap", X: 69, Y: 427, W: 339, H: 339},
		{Name: "car", X: 419, Y: 1199, W: 624, H: 624},
		{Name: "flag", X: 428, Y: 425, W: 394, H: 394},
		{Name: "watch", X: 419, Y: 987, W: 190, H: 190},
		{Name: "shoes", X: 69, Y: 1589, W: 256, H: 256},
	},
}

// Fitpic is the static 4:5 grid of logos and garment shots.
var Fitpic = Layout{
	Name:         "fitpic",
	CanvasWidth:  1080,
	CanvasHeight: 1350,
	Slots: []Slot{
		{Name: "npc_logo", X: 20, Y: 20, W: 425, H: 160},
		{Name: "brand_logo", X: 635, Y: 40, W: 425, H: 160},
		{Name: "hoodie", X: 40, Y: 220, W: 550, H: 550},
		{Name: "pants", X: 40, Y: 780, W: 550, H: 550},
		{Name: "hat", X: 610, Y: 240, W: 383, H: 383},
		{Name: "meme", X: 625, Y: 600, W: 333, H: 333},
		{Name: "shoes", X: 625, Y: 980, W: 333, H: 333},
	},
}

// SlotNames returns the slot names in paint order.
func (l Layout) SlotNames() []string {
	names := make([]string, len(l.Slots))
	for i, s := range l.Slots {
		names[i] = s.Name
	}
	return names
}

// ValidateKeys checks that the provided image map covers the layout's slots
// exactly. Missing and unknown keys are both reported, sorted for stable
// messages.
func (l Layout) ValidateKeys(images map[string]string) error {
	required := make(map[string]struct{}, len(l.Slots))
	for _, s := range l.Slots {
		required[s.Name] = struct{}{}
	}

	var missing, extra []string
	for name := range required {
		if _, ok := images[name]; !ok {
			missing = append(missing, name)
		}
	}
	for name := range images {
		if _, ok := required[name]; !ok {
			extra = append(extra, name)
		}
	}

	if len(missing) == 0 && len(extra) == 0 {
		return nil
	}

	sort.Strings(missing)
	sort.Strings(extra)
	var parts []string
	if len(missing) > 0 {
		parts = append(parts, "missing image slots: "+strings.Join(missing, ", "))
	}
	if len(extra) > 0 {
		parts = append(parts, "unknown image slots: "+strings.Join(extra, ", "))
	}
	return fmt.Errorf("%w: layout %s: %s", ErrSlotMismatch, l.Name, strings.Join(parts, "; "))
}

// Compose adds the base canvas and slot compositing stages to a graph.
// Input 0 is the generated canvas; slot i reads stream i+1, matching the
// paint order. It returns the label of the last composited stage.
func (l Layout) Compose(g *filtergraph.Graph, videoInputs bool) (string, error) {
	base := filtergraph.FormatRGBA
	if l.HeaderHeight > 0 {
		base += "," + filtergraph.HeaderBand(l.HeaderHeight)
	}
	if err := g.Add(base, "base0", "0:v"); err != nil {
		return "", err
	}

	for i, s := range l.Slots {
		label := "img_" + s.Name
		if err := g.Add(filtergraph.ScaleCover(s.W, s.H), label, fmt.Sprintf("%d:v", i+1)); err != nil {
			return "", err
		}
	}

	prev := "base0"
	for i, s := range l.Slots {
		next := fmt.Sprintf("ov%d", i+1)
		opts := filtergraph.OverlayOpts{Shortest: videoInputs}
		overlay := filtergraph.Overlay(fmt.Sprintf("%d", s.X), fmt.Sprintf("%d", s.Y), opts)
		if err := g.Add(overlay, next, prev, "img_"+s.Name); err != nil {
			return "", err
		}
		prev = next
	}

	return prev, nil
}
