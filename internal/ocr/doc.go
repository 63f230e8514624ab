// Package ocr recovers text from pages that direct extraction could not
// read. Pages are rasterised with poppler's pdftoppm and recognised by an
// Engine: the tesseract CLI in this package, or the gosseract binding in
// the tesseract subpackage.
//
// OCR is selective: the Fallback is only asked to recover pages that the
// text extractor flagged as low-yield.
package ocr
