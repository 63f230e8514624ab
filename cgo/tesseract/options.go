package tesseract

// Option configures an Engine.
type Option func(*Engine)

// WithLanguages sets the recognition languages, e.g. "eng", "deu".
func WithLanguages(langs ...string) Option {
	return func(e *Engine) {
		if len(langs) > 0 {
			e.languages = langs
		}
	}
}

// WithPageSegMode sets tesseract's page segmentation mode.
func WithPageSegMode(psm int) Option {
	return func(e *Engine) { e.psm = psm }
}

// WithTessdata points libtesseract at a custom model directory.
func WithTessdata(dir string) Option {
	return func(e *Engine) { e.tessdata = dir }
}
