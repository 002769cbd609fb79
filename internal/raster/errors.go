package raster

import "errors"

var (
	// ErrInvalidRasterDimensions - длина буфера не совпадает с width×height
	ErrInvalidRasterDimensions = errors.New("raster: размер буфера не совпадает с размерами растра")
	// ErrUnresolvedElevationSample - точка растра вне решённой сетки (пиксель пропускается)
	ErrUnresolvedElevationSample = errors.New("raster: высота в точке не определена")
)
