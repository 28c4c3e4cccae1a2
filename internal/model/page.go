package model

// Page is one entry of a raw text record.
type Page struct {
	Page int    `json:"page"`
	Text string `json:"text"`
}

// PagesFromTexts numbers texts from 1 in order.
func PagesFromTexts(texts []string) []Page {
	pages := make([]Page, len(texts))
	for i, t := range texts {
		pages[i] = Page{Page: i + 1, Text: t}
	}
	return pages
}
