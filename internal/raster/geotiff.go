package raster

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/airbusgeo/godal"
)

func init() {
	godal.RegisterAll()
}

// OpenDataset opens any raster GDAL can read, including /vsicurl/ hrefs.
// GDAL warnings (missing overviews, unknown tags, ...) do not fail the open.
func OpenDataset(name string) (*godal.Dataset, error) {
	ds, err := godal.Open(name, godal.RasterOnly(), godal.ErrLogger(func(ec godal.ErrorCategory, code int, msg string) error {
		if ec == godal.CE_Warning {
			return nil
		}
		return fmt.Errorf("gdal error %d: %s", code, msg)
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to open raster %s: %w", name, err)
	}
	return ds, nil
}

// SpatialRef builds a GDAL spatial reference from an EPSG code ("EPSG:32619"),
// a PROJ string or WKT.
func SpatialRef(crs string) (*godal.SpatialRef, error) {
	crs = strings.TrimSpace(crs)
	switch {
	case crs == "":
		return nil, fmt.Errorf("empty crs")
	case strings.HasPrefix(strings.ToUpper(crs), "EPSG:"):
		code, err := strconv.Atoi(crs[len("EPSG:"):])
		if err != nil {
			return nil, fmt.Errorf("invalid epsg code %q: %w", crs, err)
		}
		return godal.NewSpatialRefFromEPSG(code)
	case strings.HasPrefix(crs, "+proj"):
		return godal.NewSpatialRefFromProj4(crs)
	default:
		return godal.NewSpatialRefFromWKT(crs)
	}
}

// DataTypeFromGDAL maps a GDAL sample type onto DataType. Complex types read as Float32.
func DataTypeFromGDAL(dt godal.DataType) DataType {
	switch dt {
	case godal.Byte:
		return Byte
	case godal.UInt16:
		return UInt16
	case godal.Int16:
		return Int16
	case godal.UInt32:
		return UInt32
	case godal.Int32:
		return Int32
	case godal.Float64:
		return Float64
	default:
		return Float32
	}
}

func dataTypeToGDAL(dt DataType) godal.DataType {
	switch dt {
	case Byte:
		return godal.Byte
	case UInt16:
		return godal.UInt16
	case Int16:
		return godal.Int16
	case UInt32:
		return godal.UInt32
	case Int32:
		return godal.Int32
	case Float64:
		return godal.Float64
	default:
		return godal.Float32
	}
}

// ReadGeoTIFF loads the first band of a raster file with its georeferencing.
func ReadGeoTIFF(path string) (*Grid, error) {
	ds, err := OpenDataset(path)
	if err != nil {
		return nil, err
	}
	defer ds.Close()

	gt, err := ds.GeoTransform()
	if err != nil {
		return nil, fmt.Errorf("failed to get GeoTransform of %s: %w", path, err)
	}
	bands := ds.Bands()
	if len(bands) == 0 {
		return nil, fmt.Errorf("raster %s has no bands", path)
	}
	band := bands[0]
	structure := band.Structure()

	g := &Grid{
		Width:     structure.SizeX,
		Height:    structure.SizeY,
		Transform: GeoTransform(gt),
		CRS:       ds.Projection(),
		DataType:  DataTypeFromGDAL(structure.DataType),
		Data:      make([]float64, structure.SizeX*structure.SizeY),
	}
	g.NoData, g.HasNoData = band.NoData()

	if err := band.Read(0, 0, g.Data, g.Width, g.Height); err != nil {
		return nil, fmt.Errorf("failed to read raster data from %s: %w", path, err)
	}
	return g, nil
}

// WriteGeoTIFF writes g as a single band GeoTIFF, keeping transform, CRS, data type
// and nodata.
func WriteGeoTIFF(path string, g *Grid) error {
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return fmt.Errorf("failed to create output folder: %w", err)
	}

	ds, err := godal.Create(godal.GTiff, path, 1, dataTypeToGDAL(g.DataType), g.Width, g.Height,
		godal.CreationOption("TILED=YES", "COMPRESS=DEFLATE"))
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	if err := ds.SetGeoTransform([6]float64(g.Transform)); err != nil {
		ds.Close()
		return fmt.Errorf("failed to set GeoTransform: %w", err)
	}
	if g.CRS != "" {
		sr, err := SpatialRef(g.CRS)
		if err != nil {
			ds.Close()
			return fmt.Errorf("failed to parse crs: %w", err)
		}
		err = ds.SetSpatialRef(sr)
		sr.Close()
		if err != nil {
			ds.Close()
			return fmt.Errorf("failed to set spatial reference: %w", err)
		}
	}

	band := ds.Bands()[0]
	if g.HasNoData {
		if err := band.SetNoData(g.NoData); err != nil {
			ds.Close()
			return fmt.Errorf("failed to set nodata: %w", err)
		}
	}
	if err := band.Write(0, 0, g.Data, g.Width, g.Height); err != nil {
		ds.Close()
		return fmt.Errorf("failed to write raster data: %w", err)
	}

	if err := ds.Close(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}
	return nil
}
