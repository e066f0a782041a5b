// Package extract turns uploaded document bytes into text for the knowledge
// store.
//
// Plain-text formats (source code, markdown, config files) are decoded by
// sniffing the byte-order mark and falling back to Windows-1252 when the
// content is not valid UTF-8. Output is NFC-normalized with Unix line
// endings. PDFs are converted through the poppler `pdftotext` binary; when it
// is missing the extraction fails with a hint instead of storing garbage.
package extract
