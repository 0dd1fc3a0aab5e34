package puregym

import (
	"bytes"

	"golang.org/x/net/html"
)

// findInputValue returns the value attribute of the first <input> whose
// name attribute equals name.
func findInputValue(page []byte, name string) (string, bool) {
	z := html.NewTokenizer(bytes.NewReader(page))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return "", false
		case html.StartTagToken, html.SelfClosingTagToken:
			tag, hasAttr := z.TagName()
			if string(tag) != "input" || !hasAttr {
				continue
			}
			var inputName, value string
			for {
				key, val, more := z.TagAttr()
				switch string(key) {
				case "name":
					inputName = string(val)
				case "value":
					value = string(val)
				}
				if !more {
					break
				}
			}
			if inputName == name {
				return value, true
			}
		}
	}
}
