// Package rasterio implements the raster and polygon I/O collaborator
// (spec.md §6, C9) as a self-describing flat container: a JSON header
// (shape, affine transform, CRS, NoData, per-band descriptions) followed
// by a raw float32 body. No GDAL/GeoTIFF binding is available anywhere in
// this codebase's dependency graph, so this format stands in for one,
// behind the same RasterReader/RasterWriter interfaces a GDAL-backed
// implementation would satisfy.
package rasterio

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"io"
	"os"

	"github.com/paulmach/orb"
	"github.com/stbrinkmann/shadowscan/internal/geo"
	"github.com/stbrinkmann/shadowscan/internal/shaderr"
)

// header is the JSON preamble of a container file.
type header struct {
	Rows        int        `json:"rows"`
	Cols        int        `json:"cols"`
	Bands       int        `json:"bands"`
	Transform   [6]float64 `json:"transform"`
	CRS         string     `json:"crs"`
	NoData      string     `json:"no_data"`
	Descriptions []string  `json:"descriptions,omitempty"`
}

const magic = "SHADOWSCAN-RASTER-1\n"

// RasterReader reads a single-band elevation grid (spec.md §6: "Raster
// reader (collaborator)").
type RasterReader interface {
	ReadGrid(path string) (*geo.Grid, error)
}

// RasterWriter writes a multi-band float32 raster with per-band
// descriptions (spec.md §6: "Raster writer (collaborator)").
type RasterWriter interface {
	WriteMultiband(path string, bands [][]float32, rows, cols int, transform geo.Transform, crs string, descriptions []string) error
}

// MultibandReader reads back a multi-band raster, the counterpart
// exercised by the restart/reload testable property (spec.md §8).
type MultibandReader interface {
	ReadMultiband(path string) (bands [][]float32, rows, cols int, transform geo.Transform, crs string, descriptions []string, err error)
}

// PolygonReader reads a single AOI polygon (spec.md §6).
type PolygonReader interface {
	ReadPolygon(path string) (geo.Polygon, error)
}

// PolygonWriter writes a single AOI polygon.
type PolygonWriter interface {
	WritePolygon(path string, p geo.Polygon) error
}

// FileIO is the concrete flat-container implementation of all five
// interfaces above.
type FileIO struct{}

// ReadGrid reads a single-band container as a *geo.Grid.
func (FileIO) ReadGrid(path string) (*geo.Grid, error) {
	bands, rows, cols, transform, crs, _, err := FileIO{}.ReadMultiband(path)
	if err != nil {
		return nil, err
	}
	if len(bands) == 0 {
		return nil, shaderr.New("rasterio", shaderr.Format, errNoBands(path))
	}
	g := geo.NewGrid(rows, cols, transform, crs)
	copy(g.Data, bands[0])
	return g, nil
}

// ReadMultiband reads a container file's full band stack.
func (FileIO) ReadMultiband(path string) ([][]float32, int, int, geo.Transform, string, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, 0, geo.Transform{}, "", nil, shaderr.New("rasterio", shaderr.Io, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	magicBuf := make([]byte, len(magic))
	if _, err := io.ReadFull(r, magicBuf); err != nil || string(magicBuf) != magic {
		return nil, 0, 0, geo.Transform{}, "", nil, shaderr.New("rasterio", shaderr.Format, errBadMagic(path))
	}

	var headerLen uint32
	if err := binary.Read(r, binary.LittleEndian, &headerLen); err != nil {
		return nil, 0, 0, geo.Transform{}, "", nil, shaderr.New("rasterio", shaderr.Format, err)
	}
	headerBuf := make([]byte, headerLen)
	if _, err := io.ReadFull(r, headerBuf); err != nil {
		return nil, 0, 0, geo.Transform{}, "", nil, shaderr.New("rasterio", shaderr.Format, err)
	}
	var h header
	if err := json.Unmarshal(headerBuf, &h); err != nil {
		return nil, 0, 0, geo.Transform{}, "", nil, shaderr.New("rasterio", shaderr.Format, err)
	}
	if h.Bands == 0 {
		return nil, 0, 0, geo.Transform{}, "", nil, shaderr.New("rasterio", shaderr.Format, errNoBands(path))
	}

	bandLen := h.Rows * h.Cols
	bands := make([][]float32, h.Bands)
	for b := 0; b < h.Bands; b++ {
		buf := make([]float32, bandLen)
		if err := binary.Read(r, binary.LittleEndian, buf); err != nil {
			return nil, 0, 0, geo.Transform{}, "", nil, shaderr.New("rasterio", shaderr.Io, err)
		}
		bands[b] = buf
	}
	return bands, h.Rows, h.Cols, geo.NewTransform(h.Transform), h.CRS, h.Descriptions, nil
}

// WriteMultiband writes a multi-band float32 raster in the container
// format, with NoData set to NaN as spec.md §6 requires.
func (FileIO) WriteMultiband(path string, bands [][]float32, rows, cols int, transform geo.Transform, crs string, descriptions []string) error {
	f, err := os.Create(path)
	if err != nil {
		return shaderr.New("rasterio", shaderr.Io, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if _, err := w.WriteString(magic); err != nil {
		return shaderr.New("rasterio", shaderr.Io, err)
	}

	h := header{
		Rows:         rows,
		Cols:         cols,
		Bands:        len(bands),
		Transform:    transform.Array(),
		CRS:          crs,
		NoData:       "NaN", // JSON has no NaN literal, so it is stored as a string
		Descriptions: descriptions,
	}
	headerBuf, err := json.Marshal(h)
	if err != nil {
		return shaderr.New("rasterio", shaderr.Io, err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(headerBuf))); err != nil {
		return shaderr.New("rasterio", shaderr.Io, err)
	}
	if _, err := w.Write(headerBuf); err != nil {
		return shaderr.New("rasterio", shaderr.Io, err)
	}
	for _, band := range bands {
		if err := binary.Write(w, binary.LittleEndian, band); err != nil {
			return shaderr.New("rasterio", shaderr.Io, err)
		}
	}
	return w.Flush()
}

// polygonFile is the JSON-on-disk shape for a single AOI polygon.
type polygonFile struct {
	Ring [][2]float64 `json:"ring"`
}

// ReadPolygon reads a JSON polygon file: a single exterior ring of (x, y)
// world coordinates in the raster CRS.
func (FileIO) ReadPolygon(path string) (geo.Polygon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return geo.Polygon{}, shaderr.New("rasterio", shaderr.Io, err)
	}
	var pf polygonFile
	if err := json.Unmarshal(data, &pf); err != nil {
		return geo.Polygon{}, shaderr.New("rasterio", shaderr.Format, err)
	}
	if len(pf.Ring) == 0 {
		return geo.Polygon{}, shaderr.Configf("rasterio", "AOI polygon %s has an empty ring", path)
	}
	ring := make(orb.Ring, len(pf.Ring))
	for i, pt := range pf.Ring {
		ring[i] = orb.Point{pt[0], pt[1]}
	}
	return geo.NewPolygon(ring), nil
}

// WritePolygon writes a single AOI polygon as a JSON ring.
func (FileIO) WritePolygon(path string, p geo.Polygon) error {
	pf := polygonFile{Ring: make([][2]float64, len(p.Ring))}
	for i, pt := range p.Ring {
		pf.Ring[i] = [2]float64{pt.X(), pt.Y()}
	}
	data, err := json.MarshalIndent(pf, "", "  ")
	if err != nil {
		return shaderr.New("rasterio", shaderr.Io, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return shaderr.New("rasterio", shaderr.Io, err)
	}
	return nil
}

func errBadMagic(path string) error {
	return &formatError{path: path, reason: "not a shadowscan raster container"}
}

func errNoBands(path string) error {
	return &formatError{path: path, reason: "raster has no bands"}
}

type formatError struct {
	path, reason string
}

func (e *formatError) Error() string { return e.path + ": " + e.reason }
