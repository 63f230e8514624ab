// Package file provides the TOML configuration store.
//
// The file lives at ~/.opptrack/config.toml unless another directory or
// path is given. Tables flatten to dot-notation keys:
//
//	[embedding]
//	batch_size = 32
//
// is read back as "embedding.batch_size".
package file
