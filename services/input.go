package services

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

type InputType string

const (
	InputTXT  InputType = "txt"
	InputMD   InputType = "md"
	InputDOCX InputType = "docx"
	InputPDF  InputType = "pdf"
)

// InputTypeFromName maps a file name to a supported input type.
func InputTypeFromName(name string) (InputType, bool) {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(name), ".")) {
	case "txt":
		return InputTXT, true
	case "md", "markdown":
		return InputMD, true
	case "docx":
		return InputDOCX, true
	case "pdf":
		return InputPDF, true
	}
	return "", false
}

// ExtractText turns a stored file into plain text and pre-cleans it.
func ExtractText(name string, data []byte) (string, error) {
	kind, ok := InputTypeFromName(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFile, filepath.Ext(name))
	}

	var (
		text string
		err  error
	)
	switch kind {
	case InputTXT, InputMD:
		text = string(data)
	case InputPDF:
		text, err = ExtractTextFromPDF(data)
	case InputDOCX:
		text, err = ExtractTextFromDOCX(data)
	}
	if err != nil {
		return "", err
	}
	return PreCleanText(text), nil
}

var (
	reTOC          = regexp.MustCompile(`(?im)^.*table of contents.*$`)
	rePageNumber   = regexp.MustCompile(`(?im)^\s*page\s*\d+(\s*(of|/)\s*\d+)?\s*$`)
	reSpecialLines = regexp.MustCompile(`(?m)^[^\p{L}\n]*$`)
	reMultiNewLine = regexp.MustCompile(`\n{2,}`)
)

// PreCleanText drops table-of-contents headers, page markers and lines with no
// letters, then collapses blank lines.
func PreCleanText(text string) string {
	cleaned := strings.ReplaceAll(text, "\r\n", "\n")
	cleaned = reTOC.ReplaceAllString(cleaned, "")
	cleaned = rePageNumber.ReplaceAllString(cleaned, "")
	cleaned = reSpecialLines.ReplaceAllString(cleaned, "")
	cleaned = reMultiNewLine.ReplaceAllString(cleaned, "\n")
	return strings.TrimSpace(cleaned)
}
