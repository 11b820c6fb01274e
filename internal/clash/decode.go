package clash

import (
	"encoding/json"
	"fmt"
	"io"
)

// decodeProxies reads {"proxies": {name: {...}, ...}} keeping the object's key
// order, which a map would lose. Unknown top-level keys are skipped.
func decodeProxies(r io.Reader) ([]ProxyInfo, error) {
	dec := json.NewDecoder(r)
	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}

	var out []ProxyInfo
	for dec.More() {
		key, err := readKey(dec)
		if err != nil {
			return nil, err
		}
		if key != "proxies" {
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return nil, err
			}
			continue
		}

		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		if tok == nil {
			continue // "proxies": null
		}
		if d, ok := tok.(json.Delim); !ok || d != '{' {
			return nil, fmt.Errorf("proxies: expected object, got %v", tok)
		}

		for dec.More() {
			name, err := readKey(dec)
			if err != nil {
				return nil, err
			}
			var p ProxyInfo
			if err := dec.Decode(&p); err != nil {
				return nil, fmt.Errorf("proxy %q: %w", name, err)
			}
			if p.Name == "" {
				p.Name = name
			}
			out = append(out, p)
		}
		if err := expectDelim(dec, '}'); err != nil {
			return nil, err
		}
	}

	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}
	return out, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}

func readKey(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", err
	}
	key, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("expected object key, got %v", tok)
	}
	return key, nil
}
