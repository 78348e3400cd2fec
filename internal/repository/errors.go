package repository

import "errors"

// Errores sentinel compartidos por todas las implementaciones.
var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)
