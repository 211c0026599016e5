package repository

import "errors"

var (
	ErrNotFound          = errors.New("record not found")
	ErrInsufficientStock = errors.New("insufficient active quantity")
	ErrDuplicateScan     = errors.New("barcode already scanned for this item")
	ErrDuplicateItem     = errors.New("batch already on this dispatch")
	ErrDuplicateNumber   = errors.New("dispatch number already in use")
	ErrStaleVersion      = errors.New("dispatch was modified concurrently")
)
