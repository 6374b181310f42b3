//go:build cgo

package main

import (
	_ "github.com/davidZakaria/cath-archives-sub000/internal/engines/tesseract" // registers the tesseract engine factory
)
