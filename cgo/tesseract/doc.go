// Package tesseract recognises page images in-process through the
// gosseract binding to libtesseract.
//
// Builds without CGO get a stub whose Recognize always reports the
// engine as unavailable; use the tesseract CLI engine in internal/ocr
// there instead.
package tesseract
