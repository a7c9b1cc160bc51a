// Package graph lays out a log as a star-shaped mind map: the log itself in
// the middle, its images on a fixed slot grid around it and its related logs
// in a row underneath.
package graph

import (
	"fmt"
	"strings"

	"mindlog/internal/models"
)

// NodeKind distinguishes the three node roles.
type NodeKind string

const (
	KindMain       NodeKind = "main"
	KindSupporting NodeKind = "supporting"
	KindRelated    NodeKind = "related"
)

// MainNodeID is the id of the single central node.
const MainNodeID = "main"

// Position is a node center in layout units.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is one renderable vertex.
type Node struct {
	ID       string   `json:"id"`
	Kind     NodeKind `json:"kind"`
	Label    string   `json:"label"`
	ImageURL string   `json:"image_url,omitempty"`

	// Placeholder marks a supporting node that has a caption but no image.
	Placeholder  bool     `json:"placeholder,omitempty"`
	RelatedLogID uint     `json:"related_log_id,omitempty"`
	Position     Position `json:"position"`
}

// Edge connects a non-main node to the main node.
type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// Graph is the builder output.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Image is a supporting image candidate. Either field may be empty.
type Image struct {
	URL     string
	Caption string
}

// Related is a related log with its resolved display title.
type Related struct {
	ID    uint
	Title string
}

// Input is everything the builder needs about one log.
type Input struct {
	Title            string
	MainImage        string
	SupportingImages []Image
	RelatedLogs      []Related
}

// Layout holds the geometry constants.
type Layout struct {
	NodeWidth  float64
	NodeHeight float64
	Margin     float64
	AnchorX    float64
	AnchorY    float64
	// OverflowColumns is the width, in nodes, of each overflow row.
	OverflowColumns int
}

// DefaultLayout matches the mind-map page's node size.
var DefaultLayout = Layout{
	NodeWidth:       160,
	NodeHeight:      120,
	Margin:          40,
	AnchorX:         400,
	AnchorY:         300,
	OverflowColumns: 3,
}

func (l Layout) spacingX() float64 { return l.NodeWidth + l.Margin }
func (l Layout) spacingY() float64 { return l.NodeHeight + l.Margin }

// slotOffsets are the eight fixed positions around the anchor, in units of
// spacing: left, right, top, bottom, then the four corners.
var slotOffsets = [8][2]float64{
	{-1, 0},
	{1, 0},
	{0, -1},
	{0, 1},
	{-1, -1},
	{1, -1},
	{-1, 1},
	{1, 1},
}

// supportingPosition returns the center of the i-th kept supporting node.
func (l Layout) supportingPosition(i int) Position {
	sx, sy := l.spacingX(), l.spacingY()
	if i < len(slotOffsets) {
		off := slotOffsets[i]
		return Position{X: l.AnchorX + off[0]*sx, Y: l.AnchorY + off[1]*sy}
	}
	cols := l.OverflowColumns
	if cols <= 0 {
		cols = 1
	}
	j := i - len(slotOffsets)
	return Position{
		X: l.AnchorX - sx + float64(j%cols)*sx,
		Y: l.AnchorY + 2*sy + float64(j/cols)*sy,
	}
}

// Build lays out in. It never fails: blank fields degrade to labels
// derived from position, and images with neither URL nor caption are
// skipped. Identical input always yields identical output.
func Build(in Input, layout Layout) Graph {
	center := Node{
		ID:       MainNodeID,
		Kind:     KindMain,
		Label:    strings.TrimSpace(in.Title),
		ImageURL: strings.TrimSpace(in.MainImage),
		Position: Position{X: layout.AnchorX, Y: layout.AnchorY},
	}

	g := Graph{Nodes: []Node{center}, Edges: []Edge{}}
	lowestY := layout.AnchorY

	kept := 0
	for _, img := range in.SupportingImages {
		url := strings.TrimSpace(img.URL)
		caption := strings.TrimSpace(img.Caption)
		if url == "" && caption == "" {
			continue
		}
		label := caption
		if label == "" {
			label = fmt.Sprintf("Image %d", kept+1)
		}
		pos := layout.supportingPosition(kept)
		if pos.Y > lowestY {
			lowestY = pos.Y
		}
		g.addLeaf(Node{
			ID:          fmt.Sprintf("supporting-%d", kept),
			Kind:        KindSupporting,
			Label:       label,
			ImageURL:    url,
			Placeholder: url == "",
			Position:    pos,
		})
		kept++
	}

	n := len(in.RelatedLogs)
	if n > 0 {
		rowWidth := float64(n)*layout.NodeWidth + float64(n-1)*layout.Margin
		firstX := layout.AnchorX - rowWidth/2 + layout.NodeWidth/2
		y := lowestY + layout.NodeHeight + layout.Margin
		for i, rel := range in.RelatedLogs {
			label := strings.TrimSpace(rel.Title)
			if label == "" {
				label = fmt.Sprintf("Related Log %d", i+1)
			}
			g.addLeaf(Node{
				ID:           fmt.Sprintf("related-%d", i),
				Kind:         KindRelated,
				Label:        label,
				RelatedLogID: rel.ID,
				Position:     Position{X: firstX + float64(i)*(layout.NodeWidth+layout.Margin), Y: y},
			})
		}
	}

	return g
}

// addLeaf appends a non-main node and its edge to the main node.
func (g *Graph) addLeaf(n Node) {
	g.Nodes = append(g.Nodes, n)
	g.Edges = append(g.Edges, Edge{
		ID:     "edge-main-" + n.ID,
		Source: n.ID,
		Target: MainNodeID,
	})
}

// SplitImages elects the main image of a stored image list and returns the
// rest as supporting candidates. An explicit IsMain flag wins (the first
// one if several are set); otherwise the first entry with a URL is used;
// otherwise there is no main image.
func SplitImages(images []models.LogImage) (string, []Image) {
	mainIdx := -1
	for i, img := range images {
		if img.IsMain && img.HasURL() {
			mainIdx = i
			break
		}
	}
	if mainIdx < 0 {
		for i, img := range images {
			if img.HasURL() {
				mainIdx = i
				break
			}
		}
	}

	var mainURL string
	supporting := make([]Image, 0, len(images))
	for i, img := range images {
		if i == mainIdx {
			mainURL = strings.TrimSpace(*img.URL)
			continue
		}
		var s Image
		if img.URL != nil {
			s.URL = *img.URL
		}
		if img.Caption != nil {
			s.Caption = *img.Caption
		}
		supporting = append(supporting, s)
	}
	return mainURL, supporting
}

// FromLog assembles the builder input for a stored log, pairing each
// related id with its cached title.
func FromLog(l *models.Log) Input {
	mainURL, supporting := SplitImages(l.Images)
	related := make([]Related, 0, len(l.RelatedLogIDs))
	for i, id := range l.RelatedLogIDs {
		r := Related{ID: id}
		if i < len(l.RelatedLogTitles) {
			r.Title = l.RelatedLogTitles[i]
		}
		related = append(related, r)
	}
	return Input{
		Title:            l.Title,
		MainImage:        mainURL,
		SupportingImages: supporting,
		RelatedLogs:      related,
	}
}
