// Package cgo groups the bindings to native libraries so that the rest
// of the module builds with CGO_ENABLED=0. The only binding today is
// tesseract, an in-process OCR engine over libtesseract.
package cgo
