package geo

import (
	"fmt"
	"math"
	"strings"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// Path 一个要素对应的SVG路径
type Path struct {
	Name  string
	Fill  string
	Title string
	D     string
}

// SVGPaths 把 fc 的多边形投影到 width × height 视口 (等距投影, x 乘以平均纬度的余弦),
// 颜色取 Join 设置的 "fill" 属性; 没有多边形的要素跳过
func SVGPaths(fc *geojson.FeatureCollection, nameKey string, width, height float64) []Path {
	bounds := geom.NewBounds(geom.XY)
	found := false
	for _, f := range fc.Features {
		if f.Geometry != nil {
			bounds.Extend(f.Geometry)
			found = true
		}
	}
	if !found {
		return nil
	}

	minX, minY, maxX, maxY := bounds.Min(0), bounds.Min(1), bounds.Max(0), bounds.Max(1)
	k := math.Cos((minY + maxY) / 2 * math.Pi / 180)
	spanX, spanY := (maxX-minX)*k, maxY-minY
	if spanX <= 0 || spanY <= 0 {
		return nil
	}
	scale := math.Min(width/spanX, height/spanY)
	project := func(c []float64) (float64, float64) {
		return (c[0] - minX) * k * scale, height - (c[1]-minY)*scale
	}

	var paths []Path
	for _, f := range fc.Features {
		var rings [][]geom.Coord
		switch g := f.Geometry.(type) {
		case *geom.Polygon:
			rings = polygonRings(g)
		case *geom.MultiPolygon:
			for i := 0; i < g.NumPolygons(); i++ {
				rings = append(rings, polygonRings(g.Polygon(i))...)
			}
		default:
			continue
		}

		var d strings.Builder
		for _, ring := range rings {
			for i, c := range ring {
				x, y := project(c)
				if i == 0 {
					fmt.Fprintf(&d, "M%.1f %.1f", x, y)
				} else {
					fmt.Fprintf(&d, "L%.1f %.1f", x, y)
				}
			}
			d.WriteString("Z")
		}

		name, _ := f.Properties[nameKey].(string)
		fill, _ := f.Properties["fill"].(string)
		if fill == "" {
			fill = NoDataColor
		}
		title := name
		if v, ok := f.Properties["value"].(float64); ok {
			title = fmt.Sprintf("%s : %.2f", name, v)
		}
		paths = append(paths, Path{Name: name, Fill: fill, Title: title, D: d.String()})
	}
	return paths
}

func polygonRings(p *geom.Polygon) [][]geom.Coord {
	rings := make([][]geom.Coord, 0, p.NumLinearRings())
	for i := 0; i < p.NumLinearRings(); i++ {
		rings = append(rings, p.LinearRing(i).Coords())
	}
	return rings
}
